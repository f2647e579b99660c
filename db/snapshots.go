// ABOUTME: Saves, lists, loads and prunes table snapshots
// ABOUTME: Destructive jobs snapshot the records they touch before writing
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/kontakty/airtable"
	"github.com/oklog/ulid/v2"
)

// SnapshotRun describes one saved snapshot.
type SnapshotRun struct {
	ID        string
	Table     string
	Reason    string
	Records   int
	CreatedAt time.Time
}

// SaveSnapshot stores records of table as one run and returns the run id.
func SaveSnapshot(ctx context.Context, db *sql.DB, table, reason string, records []airtable.Record) (string, error) {
	runID := ulid.Make().String()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshot_runs (id, table_name, reason, record_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, table, reason, len(records), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert snapshot run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshot_records (run_id, position, record_id, fields_json, created_time) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		fields := rec.Fields
		if fields == nil {
			fields = airtable.Fields{}
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return "", fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, i, rec.ID, string(data), rec.CreatedTime); err != nil {
			return "", fmt.Errorf("failed to insert record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return runID, nil
}

// ListSnapshots returns runs newest first, optionally limited to one table.
func ListSnapshots(ctx context.Context, db *sql.DB, table string) ([]SnapshotRun, error) {
	query := `SELECT id, table_name, COALESCE(reason, ''), record_count, created_at FROM snapshot_runs`
	var args []any
	if table != "" {
		query += ` WHERE table_name = ?`
		args = append(args, table)
	}
	query += ` ORDER BY id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var runs []SnapshotRun
	for rows.Next() {
		var run SnapshotRun
		if err := rows.Scan(&run.ID, &run.Table, &run.Reason, &run.Records, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LoadSnapshot returns the records of a run in their original order.
func LoadSnapshot(ctx context.Context, db *sql.DB, runID string) ([]airtable.Record, error) {
	var exists int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshot_runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up snapshot: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("snapshot %s not found", runID)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT record_id, fields_json, COALESCE(created_time, '') FROM snapshot_records WHERE run_id = ? ORDER BY position`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	defer rows.Close()

	records := []airtable.Record{}
	for rows.Next() {
		var rec airtable.Record
		var data string
		if err := rows.Scan(&rec.ID, &data, &rec.CreatedTime); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot record: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &rec.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PruneSnapshots deletes all but the newest keep runs of table and reports how many went.
func PruneSnapshots(ctx context.Context, db *sql.DB, table string, keep int) (int, error) {
	runs, err := ListSnapshots(ctx, db, table)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(runs) <= keep {
		return 0, nil
	}

	removed := 0
	for _, run := range runs[keep:] {
		res, err := db.ExecContext(ctx, `DELETE FROM snapshot_runs WHERE id = ?`, run.ID)
		if err != nil {
			return removed, fmt.Errorf("failed to delete snapshot %s: %w", run.ID, err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}
	return removed, nil
}
