// ABOUTME: Rewrites the values of one field through a declared value map
// ABOUTME: Used to unify spelling variants of single- and multi-select options
package sync

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/harperreed/kontakty/airtable"
	"gopkg.in/yaml.v3"
)

// ValueMap maps old field values to new ones.
type ValueMap struct {
	Table  string            `yaml:"table"`
	Field  string            `yaml:"field"`
	Values map[string]string `yaml:"values"`
	// IgnoreCase matches old values case-insensitively, trimmed.
	IgnoreCase bool `yaml:"ignore_case"`
	// Target receives the mapped values instead of Field. Every non-empty
	// value is copied, mapped or not.
	Target string `yaml:"target"`
	// Colors picks option colors when ConvertField creates the select field.
	Colors map[string]string `yaml:"colors"`
}

func (vm ValueMap) copying() bool {
	return vm.Target != "" && vm.Target != vm.Field
}

// Choices lists the distinct mapped values, sorted.
func (vm ValueMap) Choices() []string {
	var out []string
	for _, to := range vm.Values {
		if to = strings.TrimSpace(to); to != "" && !slices.Contains(out, to) {
			out = append(out, to)
		}
	}
	slices.Sort(out)
	return out
}

// LoadValueMap reads a value map from YAML.
func LoadValueMap(path string) (ValueMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ValueMap{}, fmt.Errorf("failed to read value map: %w", err)
	}
	var vm ValueMap
	if err := yaml.Unmarshal(data, &vm); err != nil {
		return ValueMap{}, fmt.Errorf("failed to parse value map %s: %w", path, err)
	}
	if vm.Table == "" || vm.Field == "" {
		return ValueMap{}, fmt.Errorf("value map %s: table and field are required", path)
	}
	if len(vm.Values) == 0 {
		return ValueMap{}, fmt.Errorf("value map %s: no values", path)
	}
	return vm, nil
}

// Lookup returns the replacement for v.
func (vm ValueMap) Lookup(v string) (string, bool) {
	if to, ok := vm.Values[v]; ok {
		return to, true
	}
	if !vm.IgnoreCase {
		return "", false
	}
	needle := strings.ToLower(strings.TrimSpace(v))
	for from, to := range vm.Values {
		if strings.ToLower(strings.TrimSpace(from)) == needle {
			return to, true
		}
	}
	return "", false
}

// RemapOptions controls RemapValues.
type RemapOptions struct {
	DryRun bool
	Limit  int
}

// RemapSummary reports a RemapValues run.
type RemapSummary struct {
	Table   string
	Field   string
	Target  string
	Scanned int
	Changed int
	// Copied counts records written to the target field.
	Copied int
	// Rewrites counts "old -> new" pairs.
	Rewrites map[string]int
	// Unmapped counts values with no entry in the map.
	Unmapped map[string]int
	DryRun   bool
}

func (s RemapSummary) String() string {
	verb := "changed"
	if s.DryRun {
		verb = "to change"
	}
	if s.Target != "" {
		copyVerb := "copied"
		if s.DryRun {
			copyVerb = "to copy"
		}
		return fmt.Sprintf("%s.%s -> %s: %d records %s, %d rewritten, %d distinct unmapped values (of %d)",
			s.Table, s.Field, s.Target, s.Copied, copyVerb, s.Changed, len(s.Unmapped), s.Scanned)
	}
	return fmt.Sprintf("%s.%s: %d records %s, %d distinct unmapped values (of %d)",
		s.Table, s.Field, s.Changed, verb, len(s.Unmapped), s.Scanned)
}

// RemapValues rewrites vm.Field of every record in vm.Table through the map,
// or copies the mapped values into vm.Target when one is set.
// Lists are rewritten element-wise and deduplicated.
func (r *Runner) RemapValues(ctx context.Context, vm ValueMap, opts RemapOptions) (*RemapSummary, error) {
	table, records, err := r.fetch(ctx, vm.Table, airtable.WithFields(vm.Field))
	if err != nil {
		return nil, err
	}
	records = limitRecords(records, opts.Limit)
	summary := &RemapSummary{
		Table:    table,
		Field:    vm.Field,
		Target:   vm.Target,
		Scanned:  len(records),
		Rewrites: map[string]int{},
		Unmapped: map[string]int{},
		DryRun:   opts.DryRun,
	}

	dest := vm.Field
	if vm.copying() {
		dest = vm.Target
	} else {
		summary.Target = ""
	}

	var updates []airtable.Record
	for _, rec := range records {
		raw, ok := rec.Fields[vm.Field]
		if !ok || !rec.Fields.Has(vm.Field) {
			continue
		}

		changed := false
		mapValue := func(v string) string {
			to, ok := vm.Lookup(v)
			if !ok {
				summary.Unmapped[v]++
				return v
			}
			if to != v {
				summary.Rewrites[v+" -> "+to]++
				changed = true
			}
			return to
		}

		var value any
		switch raw.(type) {
		case string:
			value = mapValue(rec.Fields.String(vm.Field))
		default:
			var out []string
			for _, v := range rec.Fields.Strings(vm.Field) {
				if m := mapValue(v); !slices.Contains(out, m) {
					out = append(out, m)
				}
			}
			value = out
		}

		if changed {
			summary.Changed++
		}
		if vm.copying() {
			summary.Copied++
		} else if !changed {
			continue
		}
		updates = append(updates, airtable.Record{ID: rec.ID, Fields: airtable.Fields{dest: value}})
	}

	if opts.DryRun || len(updates) == 0 {
		return summary, nil
	}
	if _, err := r.Store.Update(ctx, table, updates); err != nil {
		return summary, fmt.Errorf("failed to remap %s: %w", dest, err)
	}
	return summary, nil
}
