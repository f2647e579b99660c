// ABOUTME: Finds deals recorded twice for the same company and merges them
// ABOUTME: A shared company is not enough; emails, note dates or detail level must agree
package sync

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/harperreed/kontakty/airtable"
	"github.com/harperreed/kontakty/merge"
)

var noteDate = regexp.MustCompile(`\b(\d{1,2})\.\s?(\d{1,2})\.(\d{4})?`)

// DealGroup is a set of deals judged to be one deal.
type DealGroup struct {
	Key    string
	Reason string
	Keep   airtable.Record
	Remove []airtable.Record
	// Fields holds the merged values of Keep that change.
	Fields airtable.Fields
}

// DealDedupeSummary reports a DedupeDeals run.
type DealDedupeSummary struct {
	Table string
	Deals int
	// Candidates counts companies with more than one deal.
	Candidates int
	Groups     []DealGroup
	Updated    int
	Deleted    int
	SnapshotID string
	DryRun     bool
}

func (s DealDedupeSummary) String() string {
	remove := 0
	for _, g := range s.Groups {
		remove += len(g.Remove)
	}
	if s.DryRun {
		return fmt.Sprintf("%d duplicate deals in %d groups (%d companies with several deals, of %d deals)",
			remove, len(s.Groups), s.Candidates, s.Deals)
	}
	return fmt.Sprintf("%d duplicate groups, %d keepers updated, %d duplicates deleted (of %d deals)",
		len(s.Groups), s.Updated, s.Deleted, s.Deals)
}

// dealPolicy merges a duplicate deal into the kept one.
func (r *Runner) dealPolicy() merge.Policy {
	d := r.Schema.Deals
	return merge.Policy{
		Default: merge.PreferExisting,
		Fields: map[string]merge.Strategy{
			d.Person:      merge.PreferLonger,
			d.Email:       merge.PreferLonger,
			d.Phone:       merge.PreferLonger,
			d.Company:     merge.PreferLonger,
			d.Outcome:     merge.PreferLonger,
			d.Notes:       merge.Append,
			d.Interest:    merge.PreferExisting,
			d.Owner:       merge.PreferExisting,
			d.CompanyLink: merge.Union,
			d.ContactLink: merge.Union,
		},
	}
}

// DedupeDeals merges duplicate deals into the one with the longest notes.
// Only fields named by the deal policy are written, so computed fields are
// never sent back.
func (r *Runner) DedupeDeals(ctx context.Context, opts DedupeOptions) (*DealDedupeSummary, error) {
	if opts.MinKeyRunes <= 0 {
		opts.MinKeyRunes = 3
	}
	table, records, err := r.fetch(ctx, r.Schema.Deals.Table)
	if err != nil {
		return nil, err
	}
	summary := &DealDedupeSummary{Table: table, Deals: len(records), DryRun: opts.DryRun}
	summary.Groups, summary.Candidates = r.groupDeals(records, opts.MinKeyRunes)
	if len(summary.Groups) == 0 || opts.DryRun {
		return summary, nil
	}

	if opts.Snapshot != nil {
		id, err := opts.Snapshot(ctx, table, "dedupe-deals", records)
		if err != nil {
			return summary, fmt.Errorf("failed to snapshot %s: %w", table, err)
		}
		summary.SnapshotID = id
		r.Logger.Info("saved snapshot", "table", table, "run", id, "records", len(records))
	}

	var updates []airtable.Record
	var deletes []string
	for _, g := range summary.Groups {
		if len(g.Fields) > 0 {
			updates = append(updates, airtable.Record{ID: g.Keep.ID, Fields: g.Fields})
		}
		for _, rec := range g.Remove {
			deletes = append(deletes, rec.ID)
		}
	}

	if len(updates) > 0 {
		done, err := r.Store.Update(ctx, table, updates)
		summary.Updated = len(done)
		if err != nil {
			return summary, fmt.Errorf("failed to merge deals: %w", err)
		}
	}
	deleted, err := r.Store.Delete(ctx, table, deletes)
	summary.Deleted = len(deleted)
	if err != nil {
		return summary, fmt.Errorf("failed to delete duplicate deals: %w", err)
	}
	return summary, nil
}

// groupDeals groups deals by company key and keeps the groups that look like
// one deal entered twice. It also returns how many keys had several deals.
func (r *Runner) groupDeals(records []airtable.Record, minRunes int) ([]DealGroup, int) {
	d := r.Schema.Deals
	byKey := make(map[string][]airtable.Record)
	var keys []string
	for _, rec := range records {
		key := r.Norm.Company(rec.Fields.String(d.Company))
		if utf8.RuneCountInString(key) < minRunes {
			continue
		}
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], rec)
	}

	notesLen := func(rec airtable.Record) int {
		return utf8.RuneCountInString(trimmed(rec.Fields, d.Notes))
	}
	policy := r.dealPolicy()

	var groups []DealGroup
	candidates := 0
	for _, key := range keys {
		members := byKey[key]
		if len(members) < 2 {
			continue
		}
		candidates++
		reason := r.duplicateDealReason(members)
		if reason == "" {
			continue
		}

		sort.SliceStable(members, func(i, j int) bool {
			return notesLen(members[i]) > notesLen(members[j])
		})
		keep := members[0]
		merged := merge.Fields{}
		for name := range policy.Fields {
			if v, ok := keep.Fields[name]; ok {
				merged[name] = v
			}
		}
		var changed []string
		for _, dup := range members[1:] {
			incoming := merge.Fields{}
			for name := range policy.Fields {
				if v, ok := dup.Fields[name]; ok {
					incoming[name] = v
				}
			}
			var c []string
			merged, c = policy.Apply(merged, incoming)
			changed = appendMissing(changed, c...)
		}

		fields := airtable.Fields{}
		for _, name := range changed {
			fields[name] = merged[name]
		}
		groups = append(groups, DealGroup{
			Key:    key,
			Reason: reason,
			Keep:   keep,
			Remove: members[1:],
			Fields: fields,
		})
	}
	return groups, candidates
}

// duplicateDealReason says why deals of one company are the same deal, or ""
// when they look like separate deals. Distinct note dates always mean separate deals.
func (r *Runner) duplicateDealReason(members []airtable.Record) string {
	d := r.Schema.Deals

	var emails []string
	distinct := map[string]bool{}
	for _, rec := range members {
		if e := r.Norm.FirstEmail(rec.Fields.String(d.Email)); e != "" {
			emails = append(emails, e)
			distinct[e] = true
		}
	}
	if len(emails) > 1 && len(distinct) == 1 {
		return "same email " + emails[0]
	}

	var dates []string
	distinct = map[string]bool{}
	for _, rec := range members {
		if date := dealNoteDate(rec.Fields.String(d.Notes)); date != "" {
			dates = append(dates, date)
			distinct[date] = true
		}
	}
	if len(dates) > 1 {
		if len(distinct) == 1 {
			return "same date " + dates[0]
		}
		return ""
	}

	if len(members) == 2 {
		a := utf8.RuneCountInString(trimmed(members[0].Fields, d.Notes))
		b := utf8.RuneCountInString(trimmed(members[1].Fields, d.Notes))
		if max(a, b) > 50 && min(a, b) < 30 {
			return "short copy of a detailed deal"
		}
	}
	return ""
}

// dealNoteDate returns the first "D.M." or "D.M.YYYY" date in a note, normalized.
func dealNoteDate(note string) string {
	m := noteDate.FindStringSubmatch(note)
	if m == nil {
		return ""
	}
	date := strings.TrimLeft(m[1], "0") + "." + strings.TrimLeft(m[2], "0") + "."
	return date + m[3]
}
