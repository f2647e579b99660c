// ABOUTME: Schema CLI commands
// ABOUTME: Lists the tables of the base and the fields of one table
package cli

import (
	"fmt"
	"text/tabwriter"
)

// TablesCommand lists the tables of the base.
func TablesCommand(env *Env, args []string) error {
	fs := env.flags("tables")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := env.loadConfig()
	if err != nil {
		return err
	}
	client, err := env.client(cfg)
	if err != nil {
		return err
	}

	tables, err := client.Tables(env.context())
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tID\tFIELDS")
	_, _ = fmt.Fprintln(w, "----\t--\t------")
	for _, t := range tables {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", t.Name, t.ID, len(t.Fields))
	}
	_ = w.Flush()

	env.printf("\nTotal: %d table(s)\n", len(tables))
	return nil
}

// FieldsCommand lists the fields of one table, by name or id.
func FieldsCommand(env *Env, args []string) error {
	fs := env.flags("fields")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("fields requires a table name or id")
	}

	cfg, err := env.loadConfig()
	if err != nil {
		return err
	}
	client, err := env.client(cfg)
	if err != nil {
		return err
	}

	table, err := client.FindTable(env.context(), fs.Arg(0))
	if err != nil {
		return err
	}

	env.printf("%s (%s)\n\n", table.Name, table.ID)
	w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tTYPE\tID")
	_, _ = fmt.Fprintln(w, "----\t----\t--")
	for _, f := range table.Fields {
		name := f.Name
		if f.ID == table.PrimaryFieldID {
			name += " *"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", name, f.Type, f.ID)
	}
	_ = w.Flush()

	env.printf("\nTotal: %d field(s), * marks the primary field\n", len(table.Fields))
	return nil
}
