// ABOUTME: Base schema metadata: table name resolution, field listing and field edits
// ABOUTME: Field sets are used to preflight writes before any record is sent
package airtable

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
)

var tableIDPattern = regexp.MustCompile(`^tbl[A-Za-z0-9]{14}$`)

// Table is one table from the base schema.
type Table struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	PrimaryFieldID string  `json:"primaryFieldId,omitempty"`
	Fields         []Field `json:"fields"`
}

// Field is one column of a table schema.
type Field struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

// Field looks up a field by name or id.
func (t Table) Field(nameOrID string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == nameOrID || f.ID == nameOrID {
			return f, true
		}
	}
	return Field{}, false
}

// FieldSet is the set of field names a table accepts.
type FieldSet map[string]struct{}

// Has reports whether name is a known field.
func (s FieldSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the field names sorted.
func (s FieldSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsTableID reports whether identifier looks like an opaque table id.
func IsTableID(identifier string) bool {
	return tableIDPattern.MatchString(identifier)
}

// Tables lists the base schema.
func (c *Client) Tables(ctx context.Context) ([]Table, error) {
	var resp struct {
		Tables []Table `json:"tables"`
	}
	if err := c.do(ctx, http.MethodGet, c.metaURL(), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return resp.Tables, nil
}

// FindTable returns the schema of the table matching a name or id.
func (c *Client) FindTable(ctx context.Context, identifier string) (*Table, error) {
	tables, err := c.Tables(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tables {
		if tables[i].ID == identifier || tables[i].Name == identifier {
			return &tables[i], nil
		}
	}
	return nil, &ConfigurationError{Msg: fmt.Sprintf("table %q not found in base %s", identifier, c.cfg.BaseID)}
}

// ResolveTableName maps an opaque table id to its name. Names pass through
// without a request; an id absent from the schema is returned unchanged.
func (c *Client) ResolveTableName(ctx context.Context, identifier string) (string, error) {
	if !IsTableID(identifier) {
		return identifier, nil
	}

	tables, err := c.Tables(ctx)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return "", err
		}
		return "", &ConfigurationError{Msg: fmt.Sprintf("cannot resolve table id %s", identifier), Err: err}
	}
	for _, t := range tables {
		if t.ID == identifier {
			return t.Name, nil
		}
	}
	return identifier, nil
}

// ListFields returns the field names of table. When metadata is unavailable it
// returns a nil set and the error; callers may treat that as "validation skipped".
// A table missing from the schema yields an empty set.
func (c *Client) ListFields(ctx context.Context, table string) (FieldSet, error) {
	tables, err := c.Tables(ctx)
	if err != nil {
		return nil, err
	}
	set := FieldSet{}
	for _, t := range tables {
		if t.Name != table && t.ID != table {
			continue
		}
		for _, f := range t.Fields {
			set[f.Name] = struct{}{}
		}
		break
	}
	return set, nil
}

// CreateField adds a field to the table with the given id.
func (c *Client) CreateField(ctx context.Context, tableID string, spec Field) (Field, error) {
	spec.ID = ""
	var created Field
	if err := c.do(ctx, http.MethodPost, c.metaURL(tableID, "fields"), spec, &created); err != nil {
		return Field{}, fmt.Errorf("failed to create field %q: %w", spec.Name, err)
	}
	return created, nil
}

// RenameField changes a field's name.
func (c *Client) RenameField(ctx context.Context, tableID, fieldID, name string) (Field, error) {
	var updated Field
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPatch, c.metaURL(tableID, "fields", fieldID), body, &updated); err != nil {
		return Field{}, fmt.Errorf("failed to rename field %s: %w", fieldID, err)
	}
	return updated, nil
}

// DeleteField removes a field. Not every plan exposes this endpoint; a 404
// comes back as an *APIError.
func (c *Client) DeleteField(ctx context.Context, tableID, fieldID string) error {
	if err := c.do(ctx, http.MethodDelete, c.metaURL(tableID, "fields", fieldID), nil, nil); err != nil {
		return fmt.Errorf("failed to delete field %s: %w", fieldID, err)
	}
	return nil
}
