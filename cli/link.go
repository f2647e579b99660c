// ABOUTME: Company link CLI commands: link records to companies and create missing companies
// ABOUTME: Loose matches are reviewed in the terminal UI or accepted wholesale with --accept-all
package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/harperreed/kontakty/csvsource"
	"github.com/harperreed/kontakty/sync"
	"github.com/harperreed/kontakty/tui"
)

// LinkCommand links contacts and deals to companies by normalized name.
func LinkCommand(env *Env, args []string) error {
	fs := env.flags("link")
	which := fs.String("table", "all", "What to link: contacts, deals or all")
	dryRun := fs.Bool("dry-run", false, "Report matches without writing links")
	limit := fs.Int("limit", 0, "Process only the first N records per table")
	exactOnly := fs.Bool("exact-only", false, "Do not suggest loose matches")
	acceptAll := fs.Bool("accept-all", false, "Write every suggestion without review")
	if err := fs.Parse(args); err != nil {
		return err
	}

	runner, _, err := env.runner()
	if err != nil {
		return err
	}

	specs := sync.DefaultLinkSpecs(runner.Schema)
	switch *which {
	case "all":
	case "contacts":
		specs = specs[:1]
	case "deals":
		specs = specs[1:]
	default:
		return fmt.Errorf("unknown --table %q: use contacts, deals or all", *which)
	}

	var suggestions []sync.Suggestion
	for _, spec := range specs {
		summary, err := runner.LinkCompanies(env.context(), spec, sync.LinkOptions{
			DryRun:    *dryRun,
			Limit:     *limit,
			ExactOnly: *exactOnly,
		})
		if err != nil {
			return err
		}
		env.printf("✓ %s%s\n", summary, dryRunNote(*dryRun))
		suggestions = append(suggestions, summary.Suggestions...)
	}

	if len(suggestions) == 0 {
		return nil
	}

	reviewed, write, err := env.review(suggestions, *acceptAll, *dryRun)
	if err != nil {
		return err
	}
	if !write {
		return nil
	}

	n, err := runner.AcceptSuggestions(env.context(), reviewed, *dryRun)
	if err != nil {
		return err
	}
	env.printf("✓ %d suggested links written%s\n", n, dryRunNote(*dryRun))
	return nil
}

// review decides which suggestions to write: all of them, the ones accepted
// in the terminal UI, or none when there is no terminal to ask on.
func (e *Env) review(suggestions []sync.Suggestion, acceptAll, dryRun bool) ([]sync.Suggestion, bool, error) {
	if acceptAll {
		return sync.AcceptAll(suggestions), true, nil
	}
	if e.Interactive && !dryRun {
		return tui.Run(suggestions)
	}

	e.printf("\n%d suggestions need review:\n", len(suggestions))
	w := tabwriter.NewWriter(e.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TABLE\tCOMPANY TEXT\tSUGGESTED\tRECORD")
	_, _ = fmt.Fprintln(w, "-----\t------------\t---------\t------")
	for _, s := range suggestions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Spec.Table, s.CompanyText, s.CompanyName, s.RecordID)
	}
	_ = w.Flush()
	e.printf("\n→ Run in a terminal to review them, or pass --accept-all\n")
	return suggestions, false, nil
}

// EnsureCompaniesCommand creates company records for company names contacts mention.
func EnsureCompaniesCommand(env *Env, args []string) error {
	fs := env.flags("ensure-companies")
	csvPath := fs.String("csv", "", "Take company names from a unified CSV instead of the contacts table")
	dryRun := fs.Bool("dry-run", false, "List missing companies without creating them")
	skipLink := fs.Bool("skip-link", false, "Do not link contacts afterwards")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := sync.EnsureOptions{DryRun: *dryRun, SkipLink: *skipLink}
	if *csvPath != "" {
		sheet, err := csvsource.ReadUnified(*csvPath)
		if err != nil {
			return err
		}
		opts.Sheet = sheet
	}

	runner, _, err := env.runner()
	if err != nil {
		return err
	}

	summary, err := runner.EnsureCompanies(env.context(), opts)
	if summary != nil {
		for _, name := range summary.Created {
			env.printf("  + %s\n", name)
		}
		env.printf("✓ %s%s\n", summary, dryRunNote(summary.DryRun))
		if summary.Link != nil {
			env.printf("✓ %s\n", summary.Link)
		}
	}
	return err
}
