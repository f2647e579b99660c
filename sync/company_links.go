// ABOUTME: Links records (contacts, deals) to company records by normalized company name
// ABOUTME: Exact key matches are written; loose overlaps become suggestions for review
package sync

import (
	"context"
	"fmt"

	"github.com/harperreed/kontakty/airtable"
	"github.com/harperreed/kontakty/models"
)

// LinkSpec names the table to link, its company text field and its link field.
type LinkSpec struct {
	Table        string
	CompanyField string
	LinkField    string
}

func (s LinkSpec) String() string {
	return fmt.Sprintf("%s.%s -> %s", s.Table, s.CompanyField, s.LinkField)
}

// DefaultLinkSpecs links contacts and deals to companies.
func DefaultLinkSpecs(schema models.Schema) []LinkSpec {
	return []LinkSpec{
		{Table: schema.Contacts.Table, CompanyField: schema.Contacts.Company, LinkField: schema.Contacts.CompanyLink},
		{Table: schema.Deals.Table, CompanyField: schema.Deals.Company, LinkField: schema.Deals.CompanyLink},
	}
}

// Suggestion proposes linking a record to a company whose key only overlaps.
type Suggestion struct {
	Spec        LinkSpec
	RecordID    string
	CompanyText string
	CompanyID   string
	CompanyName string
	Status      string
}

// LinkOptions controls LinkCompanies.
type LinkOptions struct {
	DryRun bool
	Limit  int
	// ExactOnly skips the overlap fallback.
	ExactOnly bool
}

// LinkSummary reports a LinkCompanies run.
type LinkSummary struct {
	Spec          LinkSpec
	Scanned       int
	AlreadyLinked int
	NoCompany     int
	Linked        int
	Unmatched     int
	Suggestions   []Suggestion
	DryRun        bool
}

func (s LinkSummary) String() string {
	verb := "linked"
	if s.DryRun {
		verb = "to link"
	}
	return fmt.Sprintf("%s: %d %s, %d suggested, %d unmatched, %d already linked, %d without company",
		s.Spec, s.Linked, verb, len(s.Suggestions), s.Unmatched, s.AlreadyLinked, s.NoCompany)
}

// LoadCompanies builds the company index from the companies table.
func (r *Runner) LoadCompanies(ctx context.Context) (*CompanyIndex, error) {
	k := r.Schema.Companies
	_, records, err := r.fetch(ctx, k.Table, airtable.WithFields(k.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to load companies: %w", err)
	}
	return NewCompanyIndex(r.Norm, records, k.Name), nil
}

// LinkCompanies links unlinked records of spec.Table to companies.
func (r *Runner) LinkCompanies(ctx context.Context, spec LinkSpec, opts LinkOptions) (*LinkSummary, error) {
	companies, err := r.LoadCompanies(ctx)
	if err != nil {
		return nil, err
	}
	return r.linkWith(ctx, companies, spec, opts)
}

func (r *Runner) linkWith(ctx context.Context, companies *CompanyIndex, spec LinkSpec, opts LinkOptions) (*LinkSummary, error) {
	table, records, err := r.fetch(ctx, spec.Table, airtable.WithFields(spec.CompanyField, spec.LinkField))
	if err != nil {
		return nil, err
	}
	spec.Table = table
	records = limitRecords(records, opts.Limit)
	summary := &LinkSummary{Spec: spec, Scanned: len(records), DryRun: opts.DryRun}

	var updates []airtable.Record
	for _, rec := range records {
		if len(rec.Fields.Strings(spec.LinkField)) > 0 {
			summary.AlreadyLinked++
			continue
		}
		text := trimmed(rec.Fields, spec.CompanyField)
		if r.Norm.IsPlaceholderCompany(text) {
			summary.NoCompany++
			continue
		}

		if id, ok := companies.Exact(text); ok {
			updates = append(updates, airtable.Record{ID: rec.ID, Fields: airtable.Fields{spec.LinkField: []string{id}}})
			summary.Linked++
			continue
		}
		if !opts.ExactOnly {
			if id, ok := companies.Suggest(text); ok {
				summary.Suggestions = append(summary.Suggestions, Suggestion{
					Spec:        spec,
					RecordID:    rec.ID,
					CompanyText: text,
					CompanyID:   id,
					CompanyName: companies.Name(id),
					Status:      models.SuggestionStatusPending,
				})
				continue
			}
		}
		summary.Unmatched++
	}

	if opts.DryRun || len(updates) == 0 {
		return summary, nil
	}
	if _, err := r.Store.Update(ctx, table, updates); err != nil {
		return summary, fmt.Errorf("failed to link %s: %w", spec, err)
	}
	return summary, nil
}

// AcceptSuggestions writes the accepted suggestions and returns how many were written.
func (r *Runner) AcceptSuggestions(ctx context.Context, suggestions []Suggestion, dryRun bool) (int, error) {
	byTable := make(map[string][]airtable.Record)
	var order []string
	for _, s := range suggestions {
		if s.Status != models.SuggestionStatusAccepted {
			continue
		}
		if _, ok := byTable[s.Spec.Table]; !ok {
			order = append(order, s.Spec.Table)
		}
		byTable[s.Spec.Table] = append(byTable[s.Spec.Table], airtable.Record{
			ID:     s.RecordID,
			Fields: airtable.Fields{s.Spec.LinkField: []string{s.CompanyID}},
		})
	}

	written := 0
	for _, table := range order {
		updates := byTable[table]
		if dryRun {
			written += len(updates)
			continue
		}
		done, err := r.Store.Update(ctx, table, updates)
		written += len(done)
		if err != nil {
			return written, fmt.Errorf("failed to write accepted links to %s: %w", table, err)
		}
	}
	return written, nil
}

// AcceptAll marks every pending suggestion accepted.
func AcceptAll(suggestions []Suggestion) []Suggestion {
	out := make([]Suggestion, len(suggestions))
	for i, s := range suggestions {
		if s.Status == models.SuggestionStatusPending {
			s.Status = models.SuggestionStatusAccepted
		}
		out[i] = s
	}
	return out
}
