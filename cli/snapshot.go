// ABOUTME: Snapshot CLI commands: save, list, show and prune local table backups
// ABOUTME: Snapshots live in the SQLite file named by the snapshot_db setting
package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/harperreed/kontakty/airtable"
	"github.com/harperreed/kontakty/config"
	"github.com/harperreed/kontakty/db"
)

// SnapshotCommand routes the snapshot subcommands.
func SnapshotCommand(env *Env, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("snapshot requires a subcommand: save, list, show or prune")
	}

	cfg, err := env.loadConfig()
	if err != nil {
		return err
	}
	database, err := db.OpenDatabase(cfg.SnapshotDB)
	if err != nil {
		return fmt.Errorf("failed to open snapshot database: %w", err)
	}
	defer func() { _ = database.Close() }()

	switch args[0] {
	case "save":
		return snapshotSave(env, cfg, database, args[1:])
	case "list":
		return snapshotList(env, database, args[1:])
	case "show":
		return snapshotShow(env, database, args[1:])
	case "prune":
		return snapshotPrune(env, database, args[1:])
	}
	return fmt.Errorf("unknown snapshot command: %s", args[0])
}

func snapshotSave(env *Env, cfg *config.Config, database *sql.DB, args []string) error {
	fs := env.flags("snapshot save")
	reason := fs.String("reason", "manual", "Why the snapshot was taken")
	view := fs.String("view", "", "Save only the records of this view")
	filter := fs.String("filter", "", "Save only records matching this filterByFormula expression")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("snapshot save requires a table name or id")
	}

	client, err := env.client(cfg)
	if err != nil {
		return err
	}
	ctx := env.context()
	table, err := client.ResolveTableName(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	var opts []airtable.ListOption
	if *view != "" {
		opts = append(opts, airtable.WithView(*view))
	}
	if *filter != "" {
		opts = append(opts, airtable.WithFilterFormula(*filter))
	}
	records, err := client.FetchAll(ctx, table, opts...)
	if err != nil {
		return err
	}

	id, err := db.SaveSnapshot(ctx, database, table, *reason, records)
	if err != nil {
		return err
	}
	env.printf("✓ Snapshot %s: %d records of %s\n", id, len(records), table)
	return nil
}

func snapshotList(env *Env, database *sql.DB, args []string) error {
	fs := env.flags("snapshot list")
	table := fs.String("table", "", "Only snapshots of this table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	runs, err := db.ListSnapshots(env.context(), database, *table)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		env.println("No snapshots found")
		return nil
	}

	w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTABLE\tREASON\tRECORDS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t-------\t-------")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Table, r.Reason, r.Records, r.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = w.Flush()

	env.printf("\nTotal: %d snapshot(s)\n", len(runs))
	return nil
}

func snapshotShow(env *Env, database *sql.DB, args []string) error {
	fs := env.flags("snapshot show")
	output := fs.String("output", "", "Write the records as JSON to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("snapshot show requires a snapshot id")
	}

	records, err := db.LoadSnapshot(env.context(), database, fs.Arg(0))
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if *output == "" {
		env.println(string(data))
		return nil
	}
	if err := os.WriteFile(*output, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	env.printf("✓ %d records written to %s\n", len(records), *output)
	return nil
}

func snapshotPrune(env *Env, database *sql.DB, args []string) error {
	fs := env.flags("snapshot prune")
	table := fs.String("table", "", "Only prune snapshots of this table")
	keep := fs.Int("keep", 5, "Snapshots to keep")
	if err := fs.Parse(args); err != nil {
		return err
	}

	n, err := db.PruneSnapshots(env.context(), database, *table, *keep)
	if err != nil {
		return err
	}
	env.printf("✓ Pruned %d snapshot(s), kept the newest %d\n", n, *keep)
	return nil
}
