// ABOUTME: Shared plumbing for the batch jobs: the remote store interface and the job runner
// ABOUTME: Every job fetches tables, builds maps on normalized keys, then writes in batches
package sync

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/harperreed/kontakty/airtable"
	"github.com/harperreed/kontakty/models"
	"github.com/harperreed/kontakty/normalize"
)

// RecordStore is the part of *airtable.Client the jobs use.
type RecordStore interface {
	ResolveTableName(ctx context.Context, identifier string) (string, error)
	ListFields(ctx context.Context, table string) (airtable.FieldSet, error)
	FetchAll(ctx context.Context, table string, opts ...airtable.ListOption) ([]airtable.Record, error)
	Create(ctx context.Context, table string, fields []airtable.Fields) ([]airtable.Record, error)
	Update(ctx context.Context, table string, records []airtable.Record) ([]airtable.Record, error)
	Delete(ctx context.Context, table string, ids []string) ([]string, error)
}

var _ RecordStore = (*airtable.Client)(nil)

// SnapshotFunc saves records of a table before a destructive write and returns a run id.
type SnapshotFunc func(ctx context.Context, table, reason string, records []airtable.Record) (string, error)

// Runner carries what every job needs.
type Runner struct {
	Store  RecordStore
	Norm   *normalize.Normalizer
	Schema models.Schema
	Logger *log.Logger
}

// NewRunner builds a runner with default rules, schema and logger where nil or empty.
func NewRunner(store RecordStore, norm *normalize.Normalizer, schema models.Schema, logger *log.Logger) *Runner {
	if norm == nil {
		norm = normalize.Default()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Store:  store,
		Norm:   norm,
		Schema: schema.WithDefaults(),
		Logger: logger,
	}
}

// fetch resolves a table identifier and loads every record.
func (r *Runner) fetch(ctx context.Context, table string, opts ...airtable.ListOption) (string, []airtable.Record, error) {
	name, err := r.Store.ResolveTableName(ctx, table)
	if err != nil {
		return "", nil, err
	}
	records, err := r.Store.FetchAll(ctx, name, opts...)
	if err != nil {
		return name, nil, err
	}
	r.Logger.Info("loaded table", "table", name, "records", len(records))
	return name, records, nil
}

func limitRecords(records []airtable.Record, limit int) []airtable.Record {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

func trimmed(f airtable.Fields, name string) string {
	return strings.TrimSpace(f.String(name))
}
