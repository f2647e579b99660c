// ABOUTME: Creates company records for company names contacts mention but the companies table lacks
// ABOUTME: Afterwards contacts are linked to companies on exact key matches
package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/kontakty/airtable"
	"github.com/harperreed/kontakty/csvsource"
)

// EnsureOptions controls EnsureCompanies.
type EnsureOptions struct {
	DryRun bool
	// Sheet, when set, supplies company names instead of the contacts table.
	Sheet *csvsource.Sheet
	// SkipLink leaves contact links alone.
	SkipLink bool
}

// EnsureSummary reports an EnsureCompanies run.
type EnsureSummary struct {
	Distinct    int
	Existing    int
	Placeholder int
	Created     []string
	Link        *LinkSummary
	DryRun      bool
}

func (s EnsureSummary) String() string {
	verb := "created"
	if s.DryRun {
		verb = "to create"
	}
	return fmt.Sprintf("%d companies %s, %d already present, %d placeholders ignored (of %d distinct)",
		len(s.Created), verb, s.Existing, s.Placeholder, s.Distinct)
}

// EnsureCompanies makes sure every company a contact names has a company record.
func (r *Runner) EnsureCompanies(ctx context.Context, opts EnsureOptions) (*EnsureSummary, error) {
	names, err := r.companyNames(ctx, opts.Sheet)
	if err != nil {
		return nil, err
	}

	companies, err := r.LoadCompanies(ctx)
	if err != nil {
		return nil, err
	}

	summary := &EnsureSummary{DryRun: opts.DryRun}
	seen := make(map[string]bool)
	var missing []string
	for _, name := range names {
		if name == "" {
			continue
		}
		if r.Norm.IsPlaceholderCompany(name) {
			summary.Placeholder++
			continue
		}
		key := r.Norm.Company(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		summary.Distinct++
		if _, ok := companies.Exact(name); ok {
			summary.Existing++
			continue
		}
		missing = append(missing, name)
	}
	summary.Created = missing

	if opts.DryRun {
		return summary, nil
	}

	k := r.Schema.Companies
	if len(missing) > 0 {
		fields := make([]airtable.Fields, len(missing))
		for i, name := range missing {
			fields[i] = airtable.Fields{k.Name: name}
		}
		table, err := r.Store.ResolveTableName(ctx, k.Table)
		if err != nil {
			return summary, err
		}
		created, err := r.Store.Create(ctx, table, fields)
		for _, rec := range created {
			companies.Add(rec.ID, rec.Fields.String(k.Name))
		}
		if err != nil {
			summary.Created = missing[:len(created)]
			return summary, fmt.Errorf("failed to create companies: %w", err)
		}
		r.Logger.Info("created companies", "table", table, "count", len(created))
	}

	if opts.SkipLink {
		return summary, nil
	}
	c := r.Schema.Contacts
	link, err := r.linkWith(ctx, companies, LinkSpec{Table: c.Table, CompanyField: c.Company, LinkField: c.CompanyLink}, LinkOptions{ExactOnly: true})
	summary.Link = link
	return summary, err
}

// companyNames lists company texts in first-seen order, from the sheet or the contacts table.
func (r *Runner) companyNames(ctx context.Context, sheet *csvsource.Sheet) ([]string, error) {
	var names []string
	if sheet != nil {
		for _, row := range sheet.Rows {
			names = append(names, splitCompanies(row[csvsource.FieldCompany])...)
		}
		return names, nil
	}

	c := r.Schema.Contacts
	_, records, err := r.fetch(ctx, c.Table, airtable.WithFields(c.Company))
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		names = append(names, splitCompanies(rec.Fields.String(c.Company))...)
	}
	return names, nil
}

// splitCompanies splits the "; "-joined company cell of a merged contact.
func splitCompanies(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
