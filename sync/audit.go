// ABOUTME: Data-quality audit of the CRM tables: missing fields, duplicate keys, value distributions
// ABOUTME: Which fields are checked per table is declared as data
package sync

import (
	"context"
	"sort"

	"github.com/harperreed/kontakty/models"
)

// AuditSpec declares what to check in one table.
type AuditSpec struct {
	Table string
	// Required fields are counted when blank.
	Required []string
	// Unique is a field whose normalized email values must not repeat.
	Unique string
	// Distribution fields get a value histogram.
	Distribution []string
}

// Count is a labeled number.
type Count struct {
	Label string
	N     int
}

// Distribution is a histogram of one field, most frequent first.
type Distribution struct {
	Field  string
	Counts []Count
}

// TableAudit is the audit result of one table.
type TableAudit struct {
	Table         string
	Records       int
	Missing       []Count
	Duplicates    []Count
	Distributions []Distribution
}

// DefaultAuditSpecs checks contacts, companies and deals.
func DefaultAuditSpecs(s models.Schema) []AuditSpec {
	return []AuditSpec{
		{
			Table:        s.Contacts.Table,
			Required:     []string{s.Contacts.Email, s.Contacts.Salutation, s.Contacts.Company, s.Contacts.CompanyLink},
			Unique:       s.Contacts.Email,
			Distribution: []string{s.Contacts.Status},
		},
		{
			Table:    s.Companies.Table,
			Required: []string{s.Companies.ContactLinks, s.Companies.DealLinks},
		},
		{
			Table:        s.Deals.Table,
			Required:     []string{s.Deals.ContactLink, s.Deals.CompanyLink, s.Deals.Outcome},
			Distribution: []string{s.Deals.Outcome, s.Deals.Interest},
		},
	}
}

// Unset labels blank values in distributions.
const Unset = "(blank)"

// Audit runs every spec in order.
func (r *Runner) Audit(ctx context.Context, specs []AuditSpec) ([]TableAudit, error) {
	var out []TableAudit
	for _, spec := range specs {
		table, records, err := r.fetch(ctx, spec.Table)
		if err != nil {
			return out, err
		}

		audit := TableAudit{Table: table, Records: len(records)}
		for _, field := range spec.Required {
			n := 0
			for _, rec := range records {
				if !rec.Fields.Has(field) {
					n++
				}
			}
			audit.Missing = append(audit.Missing, Count{Label: field, N: n})
		}

		if spec.Unique != "" {
			seen := map[string]int{}
			for _, rec := range records {
				if key := r.Norm.FirstEmail(rec.Fields.String(spec.Unique)); key != "" {
					seen[key]++
				}
			}
			for key, n := range seen {
				if n > 1 {
					audit.Duplicates = append(audit.Duplicates, Count{Label: key, N: n})
				}
			}
			sortCounts(audit.Duplicates)
		}

		for _, field := range spec.Distribution {
			hist := map[string]int{}
			for _, rec := range records {
				values := rec.Fields.Strings(field)
				if len(values) == 0 {
					hist[Unset]++
				}
				for _, v := range values {
					hist[v]++
				}
			}
			dist := Distribution{Field: field}
			for label, n := range hist {
				dist.Counts = append(dist.Counts, Count{Label: label, N: n})
			}
			sortCounts(dist.Counts)
			audit.Distributions = append(audit.Distributions, dist)
		}

		out = append(out, audit)
	}
	return out, nil
}

func sortCounts(c []Count) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].N != c[j].N {
			return c[i].N > c[j].N
		}
		return c[i].Label < c[j].Label
	})
}
