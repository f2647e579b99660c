// ABOUTME: Converts a free-text field into a select field holding the mapped values
// ABOUTME: A new field is filled first; the old one is deleted and the new one takes its name
package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/harperreed/kontakty/airtable"
)

// FieldEditor is the schema-editing part of *airtable.Client.
type FieldEditor interface {
	FindTable(ctx context.Context, identifier string) (*airtable.Table, error)
	CreateField(ctx context.Context, tableID string, spec airtable.Field) (airtable.Field, error)
	RenameField(ctx context.Context, tableID, fieldID, name string) (airtable.Field, error)
	DeleteField(ctx context.Context, tableID, fieldID string) error
}

var _ FieldEditor = (*airtable.Client)(nil)

// ErrNoFieldEditor is returned when the store cannot change the table schema.
var ErrNoFieldEditor = errors.New("store cannot edit table fields")

// Select field types.
const (
	SingleSelect   = "singleSelect"
	MultipleSelect = "multipleSelects"
)

// ConvertOptions controls ConvertField.
type ConvertOptions struct {
	// Type of the new field. Default SingleSelect.
	Type string
	// TempName holds the new field until the old one is gone.
	// Default "<field> (new)".
	TempName string
	DryRun   bool
	// Snapshot is called with every record of the table before the old field
	// is deleted. Nil skips the snapshot.
	Snapshot SnapshotFunc
}

// ConvertSummary reports a ConvertField run.
type ConvertSummary struct {
	Table      string
	Field      string
	Type       string
	Choices    []string
	Copy       *RemapSummary
	Created    bool
	SnapshotID string
	DryRun     bool
}

func (s ConvertSummary) String() string {
	if s.DryRun {
		return fmt.Sprintf("%s.%s would become %s with %d options; %s", s.Table, s.Field, s.Type, len(s.Choices), s.Copy)
	}
	return fmt.Sprintf("%s.%s is now %s with %d options; %s", s.Table, s.Field, s.Type, len(s.Choices), s.Copy)
}

// ConvertField replaces vm.Field with a select field of the same name whose
// values are the mapped old values. Unmapped values are copied unchanged and
// become options through typecast. A temporary field left by an interrupted
// run is reused.
func (r *Runner) ConvertField(ctx context.Context, vm ValueMap, opts ConvertOptions) (*ConvertSummary, error) {
	editor, ok := r.Store.(FieldEditor)
	if !ok {
		return nil, ErrNoFieldEditor
	}
	if opts.Type == "" {
		opts.Type = SingleSelect
	}
	if opts.TempName == "" {
		opts.TempName = vm.Field + " (new)"
	}

	table, err := editor.FindTable(ctx, vm.Table)
	if err != nil {
		return nil, err
	}
	old, ok := table.Field(vm.Field)
	if !ok {
		return nil, fmt.Errorf("table %s has no field %q", table.Name, vm.Field)
	}
	summary := &ConvertSummary{
		Table:   table.Name,
		Field:   old.Name,
		Type:    opts.Type,
		Choices: vm.Choices(),
		DryRun:  opts.DryRun,
	}

	copyMap := vm
	copyMap.Table = table.Name
	copyMap.Target = opts.TempName
	if opts.DryRun {
		summary.Copy, err = r.RemapValues(ctx, copyMap, RemapOptions{DryRun: true})
		return summary, err
	}

	target, ok := table.Field(opts.TempName)
	if !ok {
		target, err = editor.CreateField(ctx, table.ID, selectField(opts.TempName, opts.Type, summary.Choices, vm.Colors))
		if err != nil {
			return summary, err
		}
		summary.Created = true
		r.Logger.Info("created field", "table", table.Name, "field", target.Name, "type", target.Type)
	}

	summary.Copy, err = r.RemapValues(ctx, copyMap, RemapOptions{})
	if err != nil {
		return summary, err
	}

	if opts.Snapshot != nil {
		_, records, err := r.fetch(ctx, table.Name)
		if err != nil {
			return summary, err
		}
		id, err := opts.Snapshot(ctx, table.Name, "convert-field", records)
		if err != nil {
			return summary, fmt.Errorf("failed to snapshot %s: %w", table.Name, err)
		}
		summary.SnapshotID = id
	}

	if err := editor.DeleteField(ctx, table.ID, old.ID); err != nil {
		return summary, err
	}
	if _, err := editor.RenameField(ctx, table.ID, target.ID, old.Name); err != nil {
		return summary, err
	}
	r.Logger.Info("converted field", "table", table.Name, "field", old.Name, "type", opts.Type)
	return summary, nil
}

func selectField(name, typ string, choices []string, colors map[string]string) airtable.Field {
	spec := airtable.Field{Name: name, Type: typ}
	if typ != SingleSelect && typ != MultipleSelect {
		return spec
	}
	opts := make([]map[string]any, 0, len(choices))
	for _, c := range choices {
		choice := map[string]any{"name": c}
		if color, ok := colors[c]; ok {
			choice["color"] = color
		}
		opts = append(opts, choice)
	}
	spec.Options = map[string]any{"choices": opts}
	return spec
}
