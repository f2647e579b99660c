// ABOUTME: Fills the salutation field of contacts with the vocative of their first name
// ABOUTME: Only blank salutations are touched unless asked to recompute all of them
package sync

import (
	"context"
	"fmt"

	"github.com/harperreed/kontakty/airtable"
)

// SalutationOptions controls FillSalutations.
type SalutationOptions struct {
	DryRun bool
	Limit  int
	// Overwrite recomputes salutations that are already filled.
	Overwrite bool
}

// SalutationChange is one planned salutation write.
type SalutationChange struct {
	RecordID string
	Name     string
	Old      string
	New      string
}

// SalutationSummary reports a FillSalutations run.
type SalutationSummary struct {
	Table     string
	Scanned   int
	NoName    int
	Unchanged int
	// AlreadySet counts filled salutations left alone without Overwrite.
	AlreadySet int
	Changes    []SalutationChange
	DryRun     bool
}

func (s SalutationSummary) String() string {
	verb := "updated"
	if s.DryRun {
		verb = "to update"
	}
	return fmt.Sprintf("%d %s, %d unchanged, %d already set, %d without name (of %d)",
		len(s.Changes), verb, s.Unchanged, s.AlreadySet, s.NoName, s.Scanned)
}

// FillSalutations writes Vocative(FirstName(name)) into the salutation field.
func (r *Runner) FillSalutations(ctx context.Context, opts SalutationOptions) (*SalutationSummary, error) {
	c := r.Schema.Contacts
	table, records, err := r.fetch(ctx, c.Table, airtable.WithFields(c.FirstName, c.Salutation))
	if err != nil {
		return nil, err
	}
	records = limitRecords(records, opts.Limit)
	summary := &SalutationSummary{Table: table, Scanned: len(records), DryRun: opts.DryRun}

	var updates []airtable.Record
	for _, rec := range records {
		name := trimmed(rec.Fields, c.FirstName)
		current := trimmed(rec.Fields, c.Salutation)
		if name == "" {
			summary.NoName++
			continue
		}
		if current != "" && !opts.Overwrite {
			summary.AlreadySet++
			continue
		}

		salutation := r.Norm.Vocative(r.Norm.FirstName(name))
		if salutation == "" || salutation == current {
			summary.Unchanged++
			continue
		}

		summary.Changes = append(summary.Changes, SalutationChange{
			RecordID: rec.ID, Name: name, Old: current, New: salutation,
		})
		updates = append(updates, airtable.Record{ID: rec.ID, Fields: airtable.Fields{c.Salutation: salutation}})
	}

	if opts.DryRun || len(updates) == 0 {
		return summary, nil
	}
	if _, err := r.Store.Update(ctx, table, updates); err != nil {
		return summary, fmt.Errorf("failed to update salutations: %w", err)
	}
	return summary, nil
}
