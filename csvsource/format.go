// ABOUTME: Declarative description of a CSV export: encoding, header, and where each field lives
// ABOUTME: Formats are loaded from YAML so new exports need no code changes
package csvsource

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harperreed/kontakty/merge"
	"gopkg.in/yaml.v3"
)

// Locator finds a cell by header name or by position. With Indexes the first
// non-empty cell wins.
type Locator struct {
	Header  string `yaml:"header,omitempty"`
	Index   *int   `yaml:"index,omitempty"`
	Indexes []int  `yaml:"indexes,omitempty"`
}

// Column maps a located cell to a unified field.
type Column struct {
	Field   string `yaml:"field"`
	Locator `yaml:",inline"`
}

// Filter keeps only rows whose located cell contains a substring (case-insensitive).
type Filter struct {
	Locator  `yaml:",inline"`
	Contains string `yaml:"contains"`
}

// Format describes one export file.
type Format struct {
	Name      string   `yaml:"name"`
	File      string   `yaml:"file"`
	HasHeader bool     `yaml:"header"`
	Delimiter string   `yaml:"delimiter,omitempty"`
	Encoding  string   `yaml:"encoding,omitempty"`
	Program   string   `yaml:"program,omitempty"`
	Columns   []Column `yaml:"columns"`
	Filter    *Filter  `yaml:"filter,omitempty"`
	// NoteColumns are scanned for HR contact mentions.
	NoteColumns []int `yaml:"note_columns,omitempty"`
}

// BouncedSource lists addresses that bounced.
type BouncedSource struct {
	File         string `yaml:"file"`
	EmailHeader  string `yaml:"email_header"`
	StatusHeader string `yaml:"status_header"`
	Value        string `yaml:"value"`
}

// Config is the whole merge setup for a directory of exports.
type Config struct {
	Dir            string            `yaml:"dir,omitempty"`
	Formats        []Format          `yaml:"formats"`
	Bounced        *BouncedSource    `yaml:"bounced,omitempty"`
	ProgramAliases map[string]string `yaml:"program_aliases,omitempty"`
	HRKeywords     []string          `yaml:"hr_keywords,omitempty"`
	Merge          merge.Policy      `yaml:"merge"`
}

// LoadConfig reads a YAML merge config. Relative file paths resolve against
// Dir, or the config file's directory when Dir is empty.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read formats file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse formats file %s: %w", path, err)
	}

	if cfg.Dir == "" {
		cfg.Dir = filepath.Dir(path)
	}
	for i := range cfg.Formats {
		if err := cfg.Formats[i].validate(); err != nil {
			return Config{}, err
		}
	}
	if len(cfg.HRKeywords) == 0 {
		cfg.HRKeywords = DefaultHRKeywords()
	}
	policy, err := withDefaultPolicy(cfg.Merge)
	if err != nil {
		return Config{}, fmt.Errorf("formats file %s: %w", path, err)
	}
	cfg.Merge = policy

	return cfg, nil
}

// Path resolves a file name against the config directory.
func (c Config) Path(file string) string {
	if filepath.IsAbs(file) || c.Dir == "" {
		return file
	}
	return filepath.Join(c.Dir, file)
}

// DefaultHRKeywords mark text around an address as an HR or billing contact.
func DefaultHRKeywords() []string {
	return []string{"hr", "personalist", "personální", "kontakt", "faktur"}
}

// DefaultPolicy merges exports the way repeated course sign-ups need:
// first name seen wins, multi-valued details accumulate.
func DefaultPolicy() merge.Policy {
	return merge.Policy{
		Default: merge.PreferExisting,
		Fields: map[string]merge.Strategy{
			FieldSalutation: merge.Union,
			FieldPhone:      merge.Union,
			FieldLinkedIn:   merge.Union,
			FieldPosition:   merge.Union,
			FieldCompany:    merge.Union,
			FieldPrograms:   merge.Union,
			FieldHRContact:  merge.Union,
			FieldStatus:     merge.PreferIncoming,
		},
	}
}

// withDefaultPolicy validates a declared policy and fills the default
// strategy and every field it leaves out from DefaultPolicy.
func withDefaultPolicy(p merge.Policy) (merge.Policy, error) {
	def := DefaultPolicy()
	if p.Default == "" {
		p.Default = def.Default
	}
	st, err := merge.ParseStrategy(string(p.Default))
	if err != nil {
		return merge.Policy{}, err
	}
	p.Default = st

	fields := make(map[string]merge.Strategy, len(def.Fields)+len(p.Fields))
	for name, st := range def.Fields {
		fields[name] = st
	}
	for name, declared := range p.Fields {
		st, err := merge.ParseStrategy(string(declared))
		if err != nil {
			return merge.Policy{}, fmt.Errorf("field %q: %w", name, err)
		}
		fields[name] = st
	}
	p.Fields = fields
	return p, nil
}

func (f Format) validate() error {
	if f.File == "" {
		return fmt.Errorf("format %q: file is required", f.Name)
	}
	switch strings.ToLower(f.Encoding) {
	case "", "utf-8", "utf8", "windows-1250", "cp1250", "iso-8859-2", "latin2":
	default:
		return fmt.Errorf("format %q: unsupported encoding %q", f.Name, f.Encoding)
	}
	if len([]rune(f.Delimiter)) > 1 {
		return fmt.Errorf("format %q: delimiter must be one character", f.Name)
	}
	hasEmail := false
	for _, c := range f.Columns {
		if c.Header == "" && c.Index == nil && len(c.Indexes) == 0 {
			return fmt.Errorf("format %q: column %q needs a header or an index", f.Name, c.Field)
		}
		if c.Header != "" && !f.HasHeader {
			return fmt.Errorf("format %q: column %q located by header but file has none", f.Name, c.Field)
		}
		if c.Field == FieldEmail {
			hasEmail = true
		}
	}
	if !hasEmail {
		return fmt.Errorf("format %q: an %s column is required", f.Name, FieldEmail)
	}
	return nil
}
