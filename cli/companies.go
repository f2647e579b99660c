// ABOUTME: Company dedupe CLI command
// ABOUTME: Saves a local snapshot of the companies table before merging duplicates
package cli

import (
	"context"
	"fmt"

	"github.com/harperreed/kontakty/airtable"
	"github.com/harperreed/kontakty/config"
	"github.com/harperreed/kontakty/db"
	"github.com/harperreed/kontakty/sync"
)

// DedupeCompaniesCommand merges company records that share a normalized name.
func DedupeCompaniesCommand(env *Env, args []string) error {
	fs := env.flags("dedupe-companies")
	dryRun := fs.Bool("dry-run", false, "List duplicate groups without changing anything")
	noSnapshot := fs.Bool("no-snapshot", false, "Skip the local snapshot before deleting")
	minKey := fs.Int("min-key", 3, "Ignore company keys shorter than this many letters")
	if err := fs.Parse(args); err != nil {
		return err
	}

	runner, cfg, err := env.runner()
	if err != nil {
		return err
	}

	opts := sync.DedupeOptions{DryRun: *dryRun, MinKeyRunes: *minKey}
	if !*noSnapshot {
		opts.Snapshot = snapshotter(cfg)
	}

	summary, err := runner.DedupeCompanies(env.context(), opts)
	if summary != nil {
		for _, g := range summary.Groups {
			env.printf("  %s: keep %q (%s), merge %d\n",
				g.Key, g.Keep.Fields.String(runner.Schema.Companies.Name), g.Keep.ID, len(g.Remove))
			for _, r := range g.Remove {
				env.printf("    - %q (%s)\n", r.Fields.String(runner.Schema.Companies.Name), r.ID)
			}
		}
		if summary.SnapshotID != "" {
			env.printf("→ Snapshot %s saved to %s\n", summary.SnapshotID, cfg.SnapshotDB)
		}
		env.printf("✓ %s%s\n", summary, dryRunNote(summary.DryRun))
	}
	return err
}

// snapshotter saves records into the configured snapshot database.
func snapshotter(cfg *config.Config) sync.SnapshotFunc {
	return func(ctx context.Context, table, reason string, records []airtable.Record) (string, error) {
		database, err := db.OpenDatabase(cfg.SnapshotDB)
		if err != nil {
			return "", fmt.Errorf("failed to open snapshot database: %w", err)
		}
		defer func() { _ = database.Close() }()
		return db.SaveSnapshot(ctx, database, table, reason, records)
	}
}
