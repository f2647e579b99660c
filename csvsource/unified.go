// ABOUTME: The unified contacts CSV: fixed columns, read for upserts and written by merges
// ABOUTME: Writes go to a temp file first and are renamed into place
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Unified column names.
const (
	FieldFirstName  = "Jméno"
	FieldLastName   = "Příjmení"
	FieldEmail      = "Email"
	FieldSalutation = "Oslovení"
	FieldPhone      = "Telefon"
	FieldLinkedIn   = "LinkedIn profil"
	FieldPosition   = "Pracovní pozice"
	FieldCompany    = "Společnost / Firma"
	FieldPrograms   = "Účastnil se"
	FieldHRContact  = "HR kontakt"
	FieldStatus     = "Stav"
)

// UnifiedColumns is the column order of the unified file.
var UnifiedColumns = []string{
	FieldFirstName, FieldLastName, FieldEmail, FieldSalutation, FieldPhone, FieldLinkedIn,
	FieldPosition, FieldCompany, FieldPrograms, FieldHRContact, FieldStatus,
}

// Sheet is a header plus rows keyed by header name.
type Sheet struct {
	Header []string
	Rows   []map[string]string
}

// ReadUnified reads a headered UTF-8 CSV. Header names are cleaned of byte
// order marks and stray quotes.
func ReadUnified(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &Sheet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	for i := range header {
		header[i] = CleanHeader(header[i])
	}

	sheet := &Sheet{Header: header}
	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if blank(cells) {
			continue
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if name == "" || i >= len(cells) {
				continue
			}
			row[name] = strings.TrimSpace(cells[i])
		}
		sheet.Rows = append(sheet.Rows, row)
	}

	return sheet, nil
}

// WriteUnified writes sheet to path atomically.
func WriteUnified(path string, sheet *Sheet) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".kontakty-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := csv.NewWriter(tmp)
	if err := w.Write(sheet.Header); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	record := make([]string, len(sheet.Header))
	for _, row := range sheet.Rows {
		for i, name := range sheet.Header {
			record[i] = row[name]
		}
		if err := w.Write(record); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
