// ABOUTME: Merges company records that share a normalized name
// ABOUTME: The best-linked record keeps the union of all links; the others are deleted
package sync

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"unicode/utf8"

	"github.com/harperreed/kontakty/airtable"
	"github.com/harperreed/kontakty/merge"
)

// DedupeOptions controls DedupeCompanies.
type DedupeOptions struct {
	DryRun bool
	// Snapshot is called with every company record before anything is written.
	// Nil skips the snapshot.
	Snapshot SnapshotFunc
	// MinKeyRunes ignores keys shorter than this. Default 3.
	MinKeyRunes int
}

// CompanyGroup is a set of company records sharing a key.
type CompanyGroup struct {
	Key    string
	Keep   airtable.Record
	Remove []airtable.Record
	// Changed lists link fields of Keep that gain links.
	Changed []string
}

// DedupeSummary reports a DedupeCompanies run.
type DedupeSummary struct {
	Table      string
	Companies  int
	Groups     []CompanyGroup
	Updated    int
	Deleted    int
	SnapshotID string
	DryRun     bool
}

func (s DedupeSummary) String() string {
	remove := 0
	for _, g := range s.Groups {
		remove += len(g.Remove)
	}
	if s.DryRun {
		return fmt.Sprintf("%d duplicate groups, %d records would be merged away (of %d companies)", len(s.Groups), remove, s.Companies)
	}
	return fmt.Sprintf("%d duplicate groups, %d keepers updated, %d duplicates deleted (of %d companies)", len(s.Groups), s.Updated, s.Deleted, s.Companies)
}

// DedupeCompanies merges companies with the same key into the record with the most links.
func (r *Runner) DedupeCompanies(ctx context.Context, opts DedupeOptions) (*DedupeSummary, error) {
	if opts.MinKeyRunes <= 0 {
		opts.MinKeyRunes = 3
	}
	k := r.Schema.Companies
	linkFields := []string{k.DealLinks, k.ContactLinks}

	table, records, err := r.fetch(ctx, k.Table)
	if err != nil {
		return nil, err
	}
	summary := &DedupeSummary{Table: table, Companies: len(records), DryRun: opts.DryRun}
	summary.Groups = r.groupCompanies(records, k.Name, linkFields, opts.MinKeyRunes)
	if len(summary.Groups) == 0 || opts.DryRun {
		return summary, nil
	}

	if opts.Snapshot != nil {
		id, err := opts.Snapshot(ctx, table, "dedupe-companies", records)
		if err != nil {
			return summary, fmt.Errorf("failed to snapshot %s: %w", table, err)
		}
		summary.SnapshotID = id
		r.Logger.Info("saved snapshot", "table", table, "run", id, "records", len(records))
	}

	var updates []airtable.Record
	var deletes []string
	for _, g := range summary.Groups {
		if len(g.Changed) > 0 {
			fields := airtable.Fields{}
			for _, f := range g.Changed {
				fields[f] = g.Keep.Fields[f]
			}
			updates = append(updates, airtable.Record{ID: g.Keep.ID, Fields: fields})
		}
		for _, rec := range g.Remove {
			deletes = append(deletes, rec.ID)
		}
	}

	// Links move to the keeper before the duplicates go away.
	if len(updates) > 0 {
		done, err := r.Store.Update(ctx, table, updates)
		summary.Updated = len(done)
		if err != nil {
			return summary, fmt.Errorf("failed to move links: %w", err)
		}
	}
	deleted, err := r.Store.Delete(ctx, table, deletes)
	summary.Deleted = len(deleted)
	if err != nil {
		return summary, fmt.Errorf("failed to delete duplicates: %w", err)
	}
	return summary, nil
}

// groupCompanies groups records by key and picks a keeper per group: most
// links first, then the shortest name, then table order.
func (r *Runner) groupCompanies(records []airtable.Record, nameField string, linkFields []string, minRunes int) []CompanyGroup {
	byKey := make(map[string][]airtable.Record)
	var keys []string
	for _, rec := range records {
		key := r.Norm.Company(rec.Fields.String(nameField))
		if utf8.RuneCountInString(key) < minRunes {
			continue
		}
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], rec)
	}

	score := func(rec airtable.Record) int {
		n := 0
		for _, f := range linkFields {
			n += len(rec.Fields.Strings(f))
		}
		return n
	}

	policy := merge.Policy{Default: merge.Union}
	var groups []CompanyGroup
	for _, key := range keys {
		members := byKey[key]
		if len(members) < 2 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool {
			si, sj := score(members[i]), score(members[j])
			if si != sj {
				return si > sj
			}
			return utf8.RuneCountInString(members[i].Fields.String(nameField)) <
				utf8.RuneCountInString(members[j].Fields.String(nameField))
		})

		keep := members[0]
		links := merge.Fields{}
		for _, f := range linkFields {
			if ids := keep.Fields.Strings(f); len(ids) > 0 {
				links[f] = ids
			}
		}
		var changed []string
		for _, dup := range members[1:] {
			incoming := merge.Fields{}
			for _, f := range linkFields {
				if ids := dup.Fields.Strings(f); len(ids) > 0 {
					incoming[f] = ids
				}
			}
			var c []string
			links, c = policy.Apply(links, incoming)
			changed = appendMissing(changed, c...)
		}
		sort.Strings(changed)

		kept := airtable.Record{ID: keep.ID, CreatedTime: keep.CreatedTime, Fields: airtable.Fields{}}
		for name, v := range keep.Fields {
			kept.Fields[name] = v
		}
		for _, f := range changed {
			kept.Fields[f] = links[f]
		}

		groups = append(groups, CompanyGroup{
			Key:     key,
			Keep:    kept,
			Remove:  members[1:],
			Changed: changed,
		})
	}
	return groups
}

func appendMissing(dst []string, items ...string) []string {
	for _, s := range items {
		if !slices.Contains(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}
