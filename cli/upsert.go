// ABOUTME: Contact write CLI commands: CSV upsert and salutation fill
// ABOUTME: Both support --dry-run and --limit for a safe first pass
package cli

import (
	"fmt"
	"strings"

	"github.com/harperreed/kontakty/csvsource"
	"github.com/harperreed/kontakty/sync"
)

// UpsertCommand creates or updates contacts from a unified CSV, keyed by email.
func UpsertCommand(env *Env, args []string) error {
	fs := env.flags("upsert")
	csvPath := fs.String("csv", "", "Unified contacts CSV (required)")
	table := fs.String("table", "", "Target table name or id (default: contacts table)")
	emailColumn := fs.String("email-column", "Email", "CSV column holding the email")
	dryRun := fs.Bool("dry-run", false, "Plan the writes without sending them")
	limit := fs.Int("limit", 0, "Process only the first N rows")
	overwriteEmpty := fs.Bool("overwrite-empty", false, "Write empty CSV cells over existing values")
	skipUnknown := fs.Bool("skip-unknown-fields", false, "Drop CSV columns the table does not have")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *csvPath == "" {
		return fmt.Errorf("--csv is required")
	}

	sheet, err := csvsource.ReadUnified(*csvPath)
	if err != nil {
		return err
	}

	runner, _, err := env.runner()
	if err != nil {
		return err
	}

	summary, err := runner.Upsert(env.context(), sheet, sync.UpsertOptions{
		Table:             *table,
		EmailColumn:       *emailColumn,
		DryRun:            *dryRun,
		Limit:             *limit,
		OverwriteEmpty:    *overwriteEmpty,
		SkipUnknownFields: *skipUnknown,
	})
	if err != nil {
		return err
	}

	if len(summary.SkippedFields) > 0 {
		env.printf("→ Skipped unknown columns: %s\n", strings.Join(summary.SkippedFields, ", "))
	}
	if !summary.SchemaChecked {
		env.printf("→ Field check skipped (schema unavailable)\n")
	}
	env.printf("✓ %s: %s (%d rows)%s\n", summary.Table, summary, summary.Rows, dryRunNote(summary.DryRun))
	return nil
}

// SalutationsCommand fills the salutation field from first names.
func SalutationsCommand(env *Env, args []string) error {
	fs := env.flags("salutations")
	dryRun := fs.Bool("dry-run", false, "Show the changes without writing them")
	limit := fs.Int("limit", 0, "Process only the first N records")
	overwrite := fs.Bool("overwrite", false, "Recompute salutations that are already filled")
	verbose := fs.Bool("verbose", false, "List every change")
	if err := fs.Parse(args); err != nil {
		return err
	}

	runner, _, err := env.runner()
	if err != nil {
		return err
	}

	summary, err := runner.FillSalutations(env.context(), sync.SalutationOptions{
		DryRun:    *dryRun,
		Limit:     *limit,
		Overwrite: *overwrite,
	})
	if err != nil {
		return err
	}

	if *dryRun || *verbose {
		for _, c := range summary.Changes {
			if c.Old == "" {
				env.printf("  %s → %s\n", c.Name, c.New)
			} else {
				env.printf("  %s: %s → %s\n", c.Name, c.Old, c.New)
			}
		}
	}
	env.printf("✓ %s: %s%s\n", summary.Table, summary, dryRunNote(summary.DryRun))
	return nil
}
