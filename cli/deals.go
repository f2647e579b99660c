// ABOUTME: Deal maintenance commands: contact links, contacts from deals, dedupe and names
// ABOUTME: Also the HR contact links on companies and select-field conversion
package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/harperreed/kontakty/sync"
)

// DealsCommand routes the deals subcommands.
func DealsCommand(env *Env, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: deals link-contacts|create-contacts|dedupe|names [flags]")
	}
	switch args[0] {
	case "link-contacts":
		return dealsLinkContacts(env, args[1:])
	case "create-contacts":
		return dealsCreateContacts(env, args[1:])
	case "dedupe":
		return dealsDedupe(env, args[1:])
	case "names":
		return dealsNames(env, args[1:])
	default:
		return fmt.Errorf("unknown deals subcommand %q", args[0])
	}
}

func dealsLinkContacts(env *Env, args []string) error {
	fs := env.flags("deals link-contacts")
	dryRun := fs.Bool("dry-run", false, "Count matches without writing links")
	limit := fs.Int("limit", 0, "Process only the first N deals")
	if err := fs.Parse(args); err != nil {
		return err
	}

	runner, _, err := env.runner()
	if err != nil {
		return err
	}
	summary, err := runner.LinkDealContacts(env.context(), sync.DealContactOptions{DryRun: *dryRun, Limit: *limit})
	if summary != nil {
		env.printf("✓ %s%s\n", summary, dryRunNote(summary.DryRun))
	}
	return err
}

func dealsCreateContacts(env *Env, args []string) error {
	fs := env.flags("deals create-contacts")
	dryRun := fs.Bool("dry-run", false, "List the contacts without creating them")
	limit := fs.Int("limit", 0, "Process only the first N deals")
	if err := fs.Parse(args); err != nil {
		return err
	}

	runner, _, err := env.runner()
	if err != nil {
		return err
	}
	summary, err := runner.CreateContactsFromDeals(env.context(), sync.DealContactOptions{DryRun: *dryRun, Limit: *limit})
	if summary != nil {
		c := runner.Schema.Contacts
		for _, nc := range summary.Created {
			env.printf("  + %s %s <%s> %s\n",
				nc.Fields.String(c.FirstName), nc.Fields.String(c.LastName),
				nc.Fields.String(c.Email), dash(nc.Fields.String(c.Company)))
		}
		env.printf("✓ %s%s\n", summary, dryRunNote(summary.DryRun))
	}
	return err
}

func dealsDedupe(env *Env, args []string) error {
	fs := env.flags("deals dedupe")
	dryRun := fs.Bool("dry-run", false, "List duplicate deals without changing anything")
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

	summary, err := runner.DedupeDeals(env.context(), opts)
	if summary != nil {
		d := runner.Schema.Deals
		for _, g := range summary.Groups {
			env.printf("  %s (%s): keep %s, merge %d\n", g.Key, g.Reason, g.Keep.ID, len(g.Remove))
			for _, r := range g.Remove {
				env.printf("    - %s %q\n", r.ID, truncate(r.Fields.String(d.Notes), 60))
			}
		}
		if summary.SnapshotID != "" {
			env.printf("→ Snapshot %s saved to %s\n", summary.SnapshotID, cfg.SnapshotDB)
		}
		env.printf("✓ %s%s\n", summary, dryRunNote(summary.DryRun))
	}
	return err
}

func dealsNames(env *Env, args []string) error {
	fs := env.flags("deals names")
	dryRun := fs.Bool("dry-run", false, "Show the names without writing them")
	limit := fs.Int("limit", 0, "Process only the first N deals")
	overwrite := fs.Bool("overwrite", false, "Rebuild names that are already set")
	verbose := fs.Bool("verbose", false, "List every rename")
	if err := fs.Parse(args); err != nil {
		return err
	}

	runner, _, err := env.runner()
	if err != nil {
		return err
	}
	summary, err := runner.NameDeals(env.context(), sync.DealNameOptions{
		DryRun:    *dryRun,
		Limit:     *limit,
		Overwrite: *overwrite,
	})
	if summary != nil {
		if *verbose || summary.DryRun {
			for _, c := range summary.Changes {
				env.printf("  %s: %s → %s\n", c.RecordID, dash(c.Old), c.New)
			}
		}
		env.printf("✓ %s%s\n", summary, dryRunNote(summary.DryRun))
	}
	return err
}

// LinkHRCommand adds HR contacts to the HR links of their companies.
func LinkHRCommand(env *Env, args []string) error {
	fs := env.flags("link-hr")
	dryRun := fs.Bool("dry-run", false, "Count changes without writing links")
	if err := fs.Parse(args); err != nil {
		return err
	}

	runner, _, err := env.runner()
	if err != nil {
		return err
	}
	summary, err := runner.LinkHRContacts(env.context(), *dryRun)
	if summary != nil {
		env.printf("✓ %s%s\n", summary, dryRunNote(summary.DryRun))
	}
	return err
}

// ConvertFieldCommand turns a text field into a select field through a value map.
func ConvertFieldCommand(env *Env, args []string) error {
	fs := env.flags("convert-field")
	mapPath := fs.String("map", "", "Value map file (required)")
	fieldType := fs.String("type", sync.SingleSelect, "New field type: singleSelect or multipleSelects")
	tempName := fs.String("temp-name", "", "Name of the field while values are copied")
	dryRun := fs.Bool("dry-run", false, "Show the options and values without touching the table")
	noSnapshot := fs.Bool("no-snapshot", false, "Skip the local snapshot before deleting the old field")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mapPath == "" {
		return fmt.Errorf("--map is required")
	}
	if *fieldType != sync.SingleSelect && *fieldType != sync.MultipleSelect {
		return fmt.Errorf("unsupported field type %q", *fieldType)
	}

	vm, err := sync.LoadValueMap(*mapPath)
	if err != nil {
		return err
	}
	runner, cfg, err := env.runner()
	if err != nil {
		return err
	}
	opts := sync.ConvertOptions{Type: *fieldType, TempName: *tempName, DryRun: *dryRun}
	if !*noSnapshot {
		opts.Snapshot = snapshotter(cfg)
	}

	summary, err := runner.ConvertField(env.context(), vm, opts)
	if summary != nil {
		for _, c := range summary.Choices {
			env.printf("  option: %s\n", c)
		}
		if summary.Copy != nil {
			for _, k := range slices.Sorted(maps.Keys(summary.Copy.Unmapped)) {
				env.printf("  ✗ unmapped: %s ×%d\n", k, summary.Copy.Unmapped[k])
			}
		}
		if summary.SnapshotID != "" {
			env.printf("→ Snapshot %s saved to %s\n", summary.SnapshotID, cfg.SnapshotDB)
		}
		if summary.Copy != nil {
			env.printf("✓ %s%s\n", summary, dryRunNote(summary.DryRun))
		}
	}
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
