// ABOUTME: Reads a CSV export through its Format into rows of unified field values
// ABOUTME: Handles legacy Czech encodings, byte order marks and ragged rows
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Row is one data line of an export.
type Row struct {
	Source string
	// Line is the 1-based line number in the file.
	Line   int
	Values map[string]string
	// Cells holds the raw cells, for scans over every column.
	Cells []string
}

// Get returns a unified field value, trimmed.
func (r Row) Get(field string) string {
	return strings.TrimSpace(r.Values[field])
}

// ReadFile opens path and reads it with f.
func ReadFile(path string, f Format) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	rows, err := Read(file, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}

// Read decodes r according to f.
func Read(r io.Reader, f Format) ([]Row, error) {
	reader := csv.NewReader(transform.NewReader(r, decoder(f.Encoding)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if f.Delimiter != "" {
		reader.Comma = []rune(f.Delimiter)[0]
	}

	headers := map[string]int{}
	if f.HasHeader {
		header, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		for i, h := range header {
			key := strings.ToLower(CleanHeader(h))
			if _, dup := headers[key]; !dup {
				headers[key] = i
			}
		}
	}

	columns := make([][]int, len(f.Columns))
	for i, c := range f.Columns {
		idx, err := c.resolve(headers)
		if err != nil {
			return nil, fmt.Errorf("format %q: column %q: %w", f.Name, c.Field, err)
		}
		columns[i] = idx
	}
	var filter []int
	if f.Filter != nil {
		idx, err := f.Filter.resolve(headers)
		if err != nil {
			return nil, fmt.Errorf("format %q: filter: %w", f.Name, err)
		}
		filter = idx
	}

	var rows []Row
	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("failed to parse CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)

		if blank(cells) {
			continue
		}
		if f.Filter != nil {
			v := firstNonEmpty(cells, filter)
			if v == "" || !strings.Contains(strings.ToLower(v), strings.ToLower(f.Filter.Contains)) {
				continue
			}
		}

		values := make(map[string]string, len(f.Columns))
		for i, c := range f.Columns {
			if v := firstNonEmpty(cells, columns[i]); v != "" {
				values[c.Field] = v
			}
		}
		rows = append(rows, Row{Source: f.Name, Line: line, Values: values, Cells: cells})
	}

	return rows, nil
}

// CleanHeader strips a byte order mark, surrounding quotes and whitespace.
func CleanHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.TrimSpace(h)
	h = strings.Trim(h, "\"'")
	return strings.TrimSpace(h)
}

func (l Locator) resolve(headers map[string]int) ([]int, error) {
	if l.Header != "" {
		if i, ok := headers[strings.ToLower(CleanHeader(l.Header))]; ok {
			return []int{i}, nil
		}
		if l.Index == nil && len(l.Indexes) == 0 {
			return nil, fmt.Errorf("header %q not found", l.Header)
		}
	}
	if len(l.Indexes) > 0 {
		return l.Indexes, nil
	}
	if l.Index == nil {
		return nil, errors.New("no header or index given")
	}
	return []int{*l.Index}, nil
}

func decoder(name string) transform.Transformer {
	var enc encoding.Encoding
	switch strings.ToLower(name) {
	case "windows-1250", "cp1250":
		enc = charmap.Windows1250
	case "iso-8859-2", "latin2":
		enc = charmap.ISO8859_2
	default:
		// UTF-8, with any leading byte order mark removed.
		return unicode.BOMOverride(unicode.UTF8.NewDecoder())
	}
	return enc.NewDecoder()
}

func firstNonEmpty(cells []string, indexes []int) string {
	for _, i := range indexes {
		if i >= 0 && i < len(cells) {
			if v := strings.TrimSpace(cells[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
