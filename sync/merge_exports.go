// ABOUTME: Combines the declared CSV exports into the unified contacts CSV
// ABOUTME: Missing export files are reported and skipped rather than failing the run
package sync

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/harperreed/kontakty/csvsource"
	"github.com/harperreed/kontakty/normalize"
)

// MergeOptions controls MergeExports.
type MergeOptions struct {
	// Output is the unified CSV path. Empty with DryRun set writes nothing.
	Output string
	DryRun bool
}

// FormatStats reports one export file.
type FormatStats struct {
	Name    string
	File    string
	Rows    int
	Missing bool
	csvsource.CombineStats
}

// MergeSummary reports a MergeExports run.
type MergeSummary struct {
	Formats  []FormatStats
	Bounced  int
	Contacts int
	Output   string
	DryRun   bool
}

func (s MergeSummary) String() string {
	rows, missing := 0, 0
	for _, f := range s.Formats {
		rows += f.Rows
		if f.Missing {
			missing++
		}
	}
	out := fmt.Sprintf("%d contacts from %d rows in %d files", s.Contacts, rows, len(s.Formats)-missing)
	if missing > 0 {
		out += fmt.Sprintf(", %d files missing", missing)
	}
	if s.Bounced > 0 {
		out += fmt.Sprintf(", %d bounced", s.Bounced)
	}
	return out
}

// MergeExports reads every format of cfg, merges contacts by email and writes the unified sheet.
func MergeExports(cfg csvsource.Config, norm *normalize.Normalizer, logger *log.Logger, opts MergeOptions) (*MergeSummary, *csvsource.Sheet, error) {
	if norm == nil {
		norm = normalize.Default()
	}
	if logger == nil {
		logger = log.Default()
	}
	if !opts.DryRun && opts.Output == "" {
		return nil, nil, errors.New("an output path is required")
	}

	combiner := csvsource.NewCombiner(norm, cfg)
	summary := &MergeSummary{Output: opts.Output, DryRun: opts.DryRun}

	for _, f := range cfg.Formats {
		stats := FormatStats{Name: f.Name, File: cfg.Path(f.File)}
		rows, err := csvsource.ReadFile(stats.File, f)
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("export file missing, skipping", "format", f.Name, "file", stats.File)
			stats.Missing = true
			summary.Formats = append(summary.Formats, stats)
			continue
		}
		if err != nil {
			return summary, nil, err
		}
		stats.Rows = len(rows)
		stats.CombineStats = combiner.Add(f, rows)
		logger.Info("merged export", "format", f.Name, "rows", stats.Rows, "new", stats.New, "merged", stats.Merged)
		summary.Formats = append(summary.Formats, stats)
	}

	if b := cfg.Bounced; b != nil {
		n, err := markBounced(combiner, cfg.Path(b.File), b)
		if err != nil {
			return summary, nil, err
		}
		summary.Bounced = n
	}

	sheet := combiner.Sheet()
	summary.Contacts = len(sheet.Rows)
	if opts.DryRun {
		return summary, sheet, nil
	}
	if err := csvsource.WriteUnified(opts.Output, sheet); err != nil {
		return summary, sheet, err
	}
	return summary, sheet, nil
}

// markBounced flags addresses of a bounce list, optionally only rows whose
// status column contains the configured value.
func markBounced(c *csvsource.Combiner, path string, b *csvsource.BouncedSource) (int, error) {
	sheet, err := csvsource.ReadUnified(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read bounce list: %w", err)
	}
	emailHeader := b.EmailHeader
	if emailHeader == "" {
		emailHeader = csvsource.FieldEmail
	}

	n := 0
	for _, row := range sheet.Rows {
		if b.StatusHeader != "" && b.Value != "" &&
			!strings.Contains(strings.ToLower(row[b.StatusHeader]), strings.ToLower(b.Value)) {
			continue
		}
		if email := strings.TrimSpace(row[emailHeader]); email != "" {
			c.MarkBounced(email)
			n++
		}
	}
	return n, nil
}
