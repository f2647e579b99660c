// ABOUTME: Snapshot schema: one run per backup, one row per remote record
// ABOUTME: Field maps are stored as JSON text exactly as the API returned them
package db

import (
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshot_runs (
	id TEXT PRIMARY KEY,
	table_name TEXT NOT NULL,
	reason TEXT,
	record_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshot_runs_table ON snapshot_runs(table_name);

CREATE TABLE IF NOT EXISTS snapshot_records (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	record_id TEXT NOT NULL,
	fields_json TEXT NOT NULL,
	created_time TEXT,
	PRIMARY KEY (run_id, position),
	FOREIGN KEY (run_id) REFERENCES snapshot_runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_snapshot_records_record ON snapshot_records(record_id);
`

// InitSchema creates the snapshot tables when missing.
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize snapshot schema: %w", err)
	}
	return nil
}
