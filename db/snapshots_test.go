package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/harperreed/kontakty/airtable"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDatabase(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	records := []airtable.Record{
		{ID: "rec1", Fields: airtable.Fields{"Firma": "Alfa s.r.o.", "Kontakty": []any{"recA", "recB"}}, CreatedTime: "2024-01-02T03:04:05.000Z"},
		{ID: "rec2"},
	}
	runID, err := SaveSnapshot(ctx, db, "Klienti", "dedupe-companies", records)
	require.NoError(t, err)
	_, err = ulid.Parse(runID)
	require.NoError(t, err, "run ids are ULIDs")

	loaded, err := LoadSnapshot(ctx, db, runID)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "rec1", loaded[0].ID)
	assert.Equal(t, "Alfa s.r.o.", loaded[0].Fields.String("Firma"))
	assert.Equal(t, []string{"recA", "recB"}, loaded[0].Fields.Strings("Kontakty"))
	assert.Equal(t, "2024-01-02T03:04:05.000Z", loaded[0].CreatedTime)
	assert.Equal(t, "rec2", loaded[1].ID)
	assert.Empty(t, loaded[1].Fields)

	runs, err := ListSnapshots(ctx, db, "Klienti")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, 2, runs[0].Records)
	assert.Equal(t, "dedupe-companies", runs[0].Reason)
	assert.False(t, runs[0].CreatedAt.IsZero())
}

func TestLoadSnapshotMissing(t *testing.T) {
	_, err := LoadSnapshot(context.Background(), openTestDB(t), "nope")
	assert.ErrorContains(t, err, "not found")
}

func TestListAndPruneSnapshots(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := SaveSnapshot(ctx, db, "Klienti", "", []airtable.Record{{ID: "rec1", Fields: airtable.Fields{}}})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := SaveSnapshot(ctx, db, "Kontakty", "", nil)
	require.NoError(t, err)

	all, err := ListSnapshots(ctx, db, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	runs, err := ListSnapshots(ctx, db, "Klienti")
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID, "newest first")

	removed, err := PruneSnapshots(ctx, db, "Klienti", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	runs, err = ListSnapshots(ctx, db, "Klienti")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ids[2], runs[0].ID)

	var orphans int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM snapshot_records WHERE run_id IN (?, ?)`, ids[0], ids[1]).Scan(&orphans))
	assert.Zero(t, orphans, "records cascade with their run")
}
