// ABOUTME: Builds readable deal names from the company, the kind of request and the note date
// ABOUTME: Names look like "Alfa s.r.o. | Workshop | 05.03."; empty names are filled by default
package sync

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/harperreed/kontakty/airtable"
)

const (
	dealNameSeparator  = " | "
	maxDealCompanyRune = 35
)

// DefaultDealTypes shortens the request options used in deal names.
func DefaultDealTypes() map[string]string {
	return map[string]string{
		"Přednáška / keynote":          "Přednáška",
		"Workshop":                     "Workshop",
		"Školení":                      "Školení",
		"Konzultace":                   "Konzultace",
		"Jiné (interní program apod.)": "Program",
	}
}

// DealNameOptions controls NameDeals.
type DealNameOptions struct {
	DryRun bool
	Limit  int
	// Overwrite renames deals that already have a name.
	Overwrite bool
	// Types maps request options to name parts. Nil uses DefaultDealTypes.
	Types map[string]string
}

// DealName is one planned rename.
type DealName struct {
	RecordID string
	Old      string
	New      string
}

// DealNameSummary reports a NameDeals run.
type DealNameSummary struct {
	Table     string
	Scanned   int
	Named     int
	Unchanged int
	// Nameless counts deals with nothing to build a name from.
	Nameless int
	Changes  []DealName
	DryRun   bool
}

func (s DealNameSummary) String() string {
	verb := "renamed"
	if s.DryRun {
		verb = "to rename"
	}
	return fmt.Sprintf("%s: %d %s, %d unchanged, %d already named, %d without company (of %d)",
		s.Table, len(s.Changes), verb, s.Unchanged, s.Named, s.Nameless, s.Scanned)
}

// NameDeals writes generated names into the deal name field.
func (r *Runner) NameDeals(ctx context.Context, opts DealNameOptions) (*DealNameSummary, error) {
	if opts.Types == nil {
		opts.Types = DefaultDealTypes()
	}
	companies, err := r.LoadCompanies(ctx)
	if err != nil {
		return nil, err
	}

	d := r.Schema.Deals
	table, deals, err := r.fetch(ctx, d.Table,
		airtable.WithFields(d.Name, d.Company, d.CompanyLink, d.Interest, d.Notes))
	if err != nil {
		return nil, err
	}
	deals = limitRecords(deals, opts.Limit)
	summary := &DealNameSummary{Table: table, Scanned: len(deals), DryRun: opts.DryRun}

	var updates []airtable.Record
	for _, rec := range deals {
		old := trimmed(rec.Fields, d.Name)
		if old != "" && !opts.Overwrite {
			summary.Named++
			continue
		}
		name := r.dealName(rec.Fields, companies, opts.Types)
		switch {
		case name == "":
			summary.Nameless++
			continue
		case name == old:
			summary.Unchanged++
			continue
		}
		summary.Changes = append(summary.Changes, DealName{RecordID: rec.ID, Old: old, New: name})
		updates = append(updates, airtable.Record{ID: rec.ID, Fields: airtable.Fields{d.Name: name}})
	}

	if opts.DryRun || len(updates) == 0 {
		return summary, nil
	}
	if _, err := r.Store.Update(ctx, table, updates); err != nil {
		return summary, fmt.Errorf("failed to name deals: %w", err)
	}
	return summary, nil
}

// dealName returns "" when no company can be found for the deal.
func (r *Runner) dealName(f airtable.Fields, companies *CompanyIndex, types map[string]string) string {
	d := r.Schema.Deals
	notes := f.String(d.Notes)

	var company string
	for _, id := range f.Strings(d.CompanyLink) {
		if company = companies.Name(id); company != "" {
			break
		}
	}
	if company == "" {
		if text := trimmed(f, d.Company); text != "" && !r.Norm.IsPlaceholderCompany(text) {
			company = text
		}
	}
	if company == "" {
		company = noteCompany(notes)
	}
	if company == "" {
		return ""
	}
	if utf8.RuneCountInString(company) > maxDealCompanyRune {
		company = strings.TrimSpace(string([]rune(company)[:maxDealCompanyRune]))
	}

	parts := []string{company}
	for _, option := range f.Strings(d.Interest) {
		if t, ok := types[strings.TrimSpace(option)]; ok {
			parts = append(parts, t)
			break
		}
	}
	if date := dealNameDate(notes); date != "" {
		parts = append(parts, date)
	}
	return strings.Join(parts, dealNameSeparator)
}

// noteCompany takes the company from notes written as "Company - details".
func noteCompany(notes string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(notes), "\n")
	head, _, found := strings.Cut(line, " - ")
	if !found {
		return ""
	}
	head = strings.Trim(noteDate.ReplaceAllString(head, ""), " ,:;-")
	if n := utf8.RuneCountInString(head); n < 3 || n >= 50 {
		return ""
	}
	return head
}

// dealNameDate returns "DD.MM." for a note date that carries a year.
func dealNameDate(notes string) string {
	m := noteDate.FindStringSubmatch(notes)
	if m == nil || m[3] == "" {
		return ""
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("%02d.%02d.", day, month)
}
