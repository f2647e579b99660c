// ABOUTME: Data-quality CLI commands: duplicate report, table audit and value remapping
// ABOUTME: Reports are read-only; remap writes only with changes and without --dry-run
package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/harperreed/kontakty/sync"
)

// DuplicatesCommand reports contacts sharing a phone, email or company domain.
func DuplicatesCommand(env *Env, args []string) error {
	fs := env.flags("duplicates")
	jsonPath := fs.String("json", "", "Also write the full report as JSON to this file")
	show := fs.Int("show", 10, "Groups to print per section (0 prints all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	runner, _, err := env.runner()
	if err != nil {
		return err
	}

	report, err := runner.FindDuplicates(env.context())
	if err != nil {
		return err
	}

	env.printSection("Shared phone numbers", report.Phones, *show)
	env.printSection("Shared emails", report.Emails, *show)

	if len(report.Domains) > 0 {
		env.printf("\nCompany domains with differing company names (%d)\n", len(report.Domains))
		for i, d := range report.Domains {
			if *show > 0 && i >= *show {
				env.printf("  … %d more\n", len(report.Domains)-i)
				break
			}
			env.printf("  %s: %s (%d contacts)\n", d.Domain, strings.Join(d.Companies, " | "), len(d.Contacts))
		}
	}

	if *jsonPath != "" {
		if err := report.WriteJSON(*jsonPath); err != nil {
			return err
		}
		env.printf("\n✓ Report written to %s\n", *jsonPath)
	}
	env.printf("\n✓ %s\n", report)
	return nil
}

func (e *Env) printSection(title string, groups []sync.ContactGroup, show int) {
	if len(groups) == 0 {
		return
	}
	e.printf("\n%s (%d)\n", title, len(groups))
	for i, g := range groups {
		if show > 0 && i >= show {
			e.printf("  … %d more\n", len(groups)-i)
			return
		}
		names := make([]string, len(g.Contacts))
		for j, c := range g.Contacts {
			names[j] = fmt.Sprintf("%s (%s)", dash(c.Name), c.ID)
		}
		e.printf("  %s: %s\n", g.Key, strings.Join(names, ", "))
	}
}

// AuditCommand prints missing-field counts, duplicate keys and value distributions.
func AuditCommand(env *Env, args []string) error {
	fs := env.flags("audit")
	only := fs.String("table", "", "Audit only this table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	runner, _, err := env.runner()
	if err != nil {
		return err
	}

	specs := sync.DefaultAuditSpecs(runner.Schema)
	if *only != "" {
		specs = slices.DeleteFunc(specs, func(s sync.AuditSpec) bool { return s.Table != *only })
		if len(specs) == 0 {
			return fmt.Errorf("no audit defined for table %q", *only)
		}
	}

	audits, err := runner.Audit(env.context(), specs)
	if err != nil {
		return err
	}

	for _, a := range audits {
		env.printf("\n%s (%d records)\n", a.Table, a.Records)

		w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "  FIELD\tMISSING\t%")
		for _, m := range a.Missing {
			_, _ = fmt.Fprintf(w, "  %s\t%d\t%s\n", m.Label, m.N, percent(m.N, a.Records))
		}
		_ = w.Flush()

		if len(a.Duplicates) > 0 {
			env.printf("  Duplicate keys: %d\n", len(a.Duplicates))
			for _, d := range a.Duplicates {
				env.printf("    %s ×%d\n", d.Label, d.N)
			}
		}
		for _, d := range a.Distributions {
			env.printf("  %s:\n", d.Field)
			for _, c := range d.Counts {
				env.printf("    %-30s %d\n", c.Label, c.N)
			}
		}
	}
	return nil
}

func percent(n, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", float64(n)*100/float64(total))
}

// RemapCommand rewrites field values through a YAML value map.
func RemapCommand(env *Env, args []string) error {
	fs := env.flags("remap")
	mapPath := fs.String("map", "", "Value map file (required)")
	dryRun := fs.Bool("dry-run", false, "Show the rewrites without writing them")
	limit := fs.Int("limit", 0, "Process only the first N records")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mapPath == "" {
		return fmt.Errorf("--map is required")
	}

	vm, err := sync.LoadValueMap(*mapPath)
	if err != nil {
		return err
	}

	runner, _, err := env.runner()
	if err != nil {
		return err
	}

	summary, err := runner.RemapValues(env.context(), vm, sync.RemapOptions{DryRun: *dryRun, Limit: *limit})
	if err != nil {
		return err
	}

	for _, k := range slices.Sorted(maps.Keys(summary.Rewrites)) {
		env.printf("  %s ×%d\n", k, summary.Rewrites[k])
	}
	for _, k := range slices.Sorted(maps.Keys(summary.Unmapped)) {
		env.printf("  ✗ unmapped: %s ×%d\n", k, summary.Unmapped[k])
	}
	env.printf("✓ %s%s\n", summary, dryRunNote(summary.DryRun))
	return nil
}
