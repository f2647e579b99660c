// ABOUTME: Upserts contacts from the unified CSV into the contacts table, keyed by email
// ABOUTME: Validates column names against the table schema before writing anything
package sync

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/harperreed/kontakty/airtable"
	"github.com/harperreed/kontakty/csvsource"
	"github.com/harperreed/kontakty/merge"
)

// ValidationError reports CSV columns the table does not have.
type ValidationError struct {
	Table     string
	Fields    []string
	Available []string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("table %q has no field(s) %s", e.Table, strings.Join(quoteAll(e.Fields), ", "))
	if len(e.Available) > 0 {
		msg += "; available: " + strings.Join(e.Available, ", ")
	}
	return msg + "; create them in the table or rerun with --skip-unknown-fields"
}

// UpsertOptions controls an upsert run.
type UpsertOptions struct {
	// Table defaults to the contacts table of the schema.
	Table string
	// EmailColumn is the CSV column holding the address. Default "Email".
	EmailColumn       string
	DryRun            bool
	Limit             int
	OverwriteEmpty    bool
	SkipUnknownFields bool
}

// UpsertSummary counts what an upsert did or would do.
type UpsertSummary struct {
	Table          string
	Rows           int
	Created        int
	Updated        int
	MatchedSkip    int
	SkippedNoEmail int
	// SkippedFields are CSV columns left out because the table lacks them.
	SkippedFields []string
	// SchemaChecked is false when table metadata was unavailable.
	SchemaChecked bool
	DryRun        bool
}

// String renders the non-zero counters, e.g. "1 created, 1 matched-skip".
func (s UpsertSummary) String() string {
	var parts []string
	add := func(n int, label string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, label))
		}
	}
	add(s.Created, "created")
	add(s.Updated, "updated")
	add(s.MatchedSkip, "matched-skip")
	add(s.SkippedNoEmail, "skipped-no-email")
	if len(parts) == 0 {
		return "nothing to do"
	}
	return strings.Join(parts, ", ")
}

type plannedWrite struct {
	id     string
	fields airtable.Fields
}

// Upsert writes sheet rows to the contacts table: rows whose email exists are
// updated, new emails are created, repeats within the sheet are merged.
func (r *Runner) Upsert(ctx context.Context, sheet *csvsource.Sheet, opts UpsertOptions) (*UpsertSummary, error) {
	if opts.Table == "" {
		opts.Table = r.Schema.Contacts.Table
	}
	if opts.EmailColumn == "" {
		opts.EmailColumn = csvsource.FieldEmail
	}

	table, err := r.Store.ResolveTableName(ctx, opts.Table)
	if err != nil {
		return nil, err
	}
	if table != opts.Table {
		r.Logger.Info("resolved table id", "id", opts.Table, "table", table)
	}
	summary := &UpsertSummary{Table: table, DryRun: opts.DryRun}

	known, err := r.Store.ListFields(ctx, table)
	if err != nil {
		r.Logger.Warn("table schema unavailable, skipping field validation", "table", table, "err", err)
		known = nil
	}
	summary.SchemaChecked = len(known) > 0

	columns := r.mapColumns(sheet.Header)
	emailField := r.mapField(opts.EmailColumn)
	// A repeated CSV row folds into the write already planned for its email.
	pendingMerge := merge.Policy{Default: merge.PreferExisting, Fields: map[string]merge.Strategy{}}
	multi := make(map[string]bool, len(r.Schema.MultiSelect))
	for _, f := range r.Schema.MultiSelect {
		multi[f] = true
		pendingMerge.Fields[f] = merge.Union
	}

	if summary.SchemaChecked {
		if !known.Has(emailField) {
			return nil, &ValidationError{Table: table, Fields: []string{emailField}, Available: known.Names()}
		}
		var unknown []string
		for _, target := range columns {
			if target != "" && !known.Has(target) && !slices.Contains(unknown, target) {
				unknown = append(unknown, target)
			}
		}
		if len(unknown) > 0 {
			if !opts.SkipUnknownFields {
				return nil, &ValidationError{Table: table, Fields: unknown, Available: known.Names()}
			}
			summary.SkippedFields = unknown
			r.Logger.Warn("skipping unknown fields", "table", table, "fields", unknown)
		}
	}

	existing, err := r.Store.FetchAll(ctx, table, airtable.WithFields(emailField))
	if err != nil {
		return nil, fmt.Errorf("failed to read existing records: %w", err)
	}
	matcher := NewContactMatcher(r.Norm, existing, emailField, "")
	r.Logger.Info("indexed existing contacts", "table", table, "records", len(existing))

	rows := sheet.Rows
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	summary.Rows = len(rows)

	var creates, updates []*plannedWrite
	planned := make(map[string]*plannedWrite)

	for _, row := range rows {
		email := r.Norm.FirstEmail(row[opts.EmailColumn])
		if email == "" {
			summary.SkippedNoEmail++
			continue
		}

		fields := airtable.Fields{}
		for i, col := range sheet.Header {
			target := columns[i]
			if target == "" || slices.Contains(summary.SkippedFields, target) {
				continue
			}
			value := strings.TrimSpace(row[col])
			if multi[target] {
				items := splitOptions(value)
				if len(items) > 0 || opts.OverwriteEmpty {
					fields[target] = items
				}
				continue
			}
			if value != "" || opts.OverwriteEmpty {
				fields[target] = value
			}
		}
		if _, ok := fields[emailField]; !ok || fields[emailField] == "" {
			fields[emailField] = email
		}

		if pw, ok := planned[email]; ok {
			merged, _ := pendingMerge.Apply(merge.Fields(pw.fields), merge.Fields(fields))
			pw.fields = airtable.Fields(merged)
			summary.MatchedSkip++
			continue
		}

		pw := &plannedWrite{fields: fields}
		planned[email] = pw
		if id, ok := matcher.FindByEmail(email); ok {
			pw.id = id
			updates = append(updates, pw)
			summary.Updated++
		} else {
			creates = append(creates, pw)
			summary.Created++
		}
	}

	r.Logger.Info("planned upsert", "table", table, "create", len(creates), "update", len(updates))
	if opts.DryRun {
		return summary, nil
	}

	if len(creates) > 0 {
		batch := make([]airtable.Fields, len(creates))
		for i, pw := range creates {
			batch[i] = pw.fields
		}
		if _, err := r.Store.Create(ctx, table, batch); err != nil {
			return summary, upsertError("create", err)
		}
	}
	if len(updates) > 0 {
		batch := make([]airtable.Record, len(updates))
		for i, pw := range updates {
			batch[i] = airtable.Record{ID: pw.id, Fields: pw.fields}
		}
		if _, err := r.Store.Update(ctx, table, batch); err != nil {
			return summary, upsertError("update", err)
		}
	}

	return summary, nil
}

// mapColumns returns the table field for each header column, "" for blank headers.
func (r *Runner) mapColumns(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = r.mapField(h)
	}
	return out
}

func (r *Runner) mapField(column string) string {
	clean := csvsource.CleanHeader(column)
	if mapped, ok := r.Schema.FieldMapping[clean]; ok {
		return mapped
	}
	return clean
}

func upsertError(op string, err error) error {
	if airtable.IsUnknownField(err) {
		return fmt.Errorf("failed to %s records: %w (a CSV column has no matching table field; create it or rerun with --skip-unknown-fields)", op, err)
	}
	return fmt.Errorf("failed to %s records: %w", op, err)
}

// splitOptions turns "A, B" (or "A; B") into multi-select options.
func splitOptions(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if part = strings.TrimSpace(part); part != "" && !slices.Contains(out, part) {
			out = append(out, part)
		}
	}
	if out == nil {
		return []string{}
	}
	return out
}

func quoteAll(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
