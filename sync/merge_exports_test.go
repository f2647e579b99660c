package sync

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/harperreed/kontakty/airtable/airtabletest"
	"github.com/harperreed/kontakty/csvsource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
}

func exportConfig(dir string) csvsource.Config {
	return csvsource.Config{
		Dir: dir,
		Formats: []csvsource.Format{
			{
				Name:      "aca",
				File:      "aca.csv",
				HasHeader: true,
				Columns: []csvsource.Column{
					{Field: csvsource.FieldEmail, Locator: csvsource.Locator{Header: "Email"}},
					{Field: csvsource.FieldFirstName, Locator: csvsource.Locator{Header: "Jméno"}},
					{Field: csvsource.FieldCompany, Locator: csvsource.Locator{Header: "Firma"}},
				},
			},
			{
				Name:      "dlm",
				File:      "dlm.csv",
				HasHeader: true,
				Delimiter: ";",
				Columns: []csvsource.Column{
					{Field: csvsource.FieldEmail, Locator: csvsource.Locator{Header: "email"}},
					{Field: csvsource.FieldFirstName, Locator: csvsource.Locator{Header: "jmeno"}},
				},
			},
			{Name: "gone", File: "missing.csv", HasHeader: true},
		},
		Bounced: &csvsource.BouncedSource{
			File:         "bounced.csv",
			EmailHeader:  "Email",
			StatusHeader: "Status",
			Value:        "bounce",
		},
		Merge: csvsource.DefaultPolicy(),
	}
}

func TestMergeExports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "aca.csv", "Email,Jméno,Firma\njan@firma.cz,Jan Novák,Firma s.r.o.\neva@beta.cz,Eva,Beta\n")
	writeFile(t, dir, "dlm.csv", "email;jmeno\nJAN@firma.cz;Honza\npetr@x.cz;Petr\n")
	writeFile(t, dir, "bounced.csv", "Email,Status\neva@beta.cz,Hard bounce\npetr@x.cz,delivered\n")
	out := filepath.Join(dir, "out", "kontakty.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(out), 0700))

	summary, sheet, err := MergeExports(exportConfig(dir), nil, log.New(io.Discard), MergeOptions{Output: out})
	require.NoError(t, err)

	require.Len(t, summary.Formats, 3)
	assert.Equal(t, 2, summary.Formats[0].Rows)
	assert.Equal(t, 2, summary.Formats[0].New)
	assert.Equal(t, 1, summary.Formats[1].Merged)
	assert.True(t, summary.Formats[2].Missing)
	assert.Equal(t, 1, summary.Bounced)
	assert.Equal(t, 3, summary.Contacts)
	assert.Equal(t, "3 contacts from 4 rows in 2 files, 1 files missing, 1 bounced", summary.String())

	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "Jan", sheet.Rows[0][csvsource.FieldFirstName])
	assert.Equal(t, csvsource.BouncedStatus, sheet.Rows[1][csvsource.FieldStatus])

	written, err := csvsource.ReadUnified(out)
	require.NoError(t, err)
	assert.Len(t, written.Rows, 3)
}

func TestMergeExportsDryRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "aca.csv", "Email,Jméno,Firma\njan@firma.cz,Jan,Alfa\n")
	writeFile(t, dir, "bounced.csv", "Email,Status\n")
	cfg := exportConfig(dir)

	summary, sheet, err := MergeExports(cfg, nil, log.New(io.Discard), MergeOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Contacts)
	assert.Len(t, sheet.Rows, 1)

	_, _, err = MergeExports(cfg, nil, log.New(io.Discard), MergeOptions{})
	assert.Error(t, err, "an output path is required without dry run")
}

func TestMergedSheetUpsertsProgramsAsOptions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "aca.csv", "Email,Jméno,Firma\njan@firma.cz,Jan,Alfa\n")
	writeFile(t, dir, "dlm.csv", "email;jmeno\nJAN@firma.cz;Honza\n")
	writeFile(t, dir, "bounced.csv", "Email,Status\n")
	out := filepath.Join(dir, "kontakty.csv")

	_, _, err := MergeExports(exportConfig(dir), nil, log.New(io.Discard), MergeOptions{Output: out})
	require.NoError(t, err)

	sheet, err := csvsource.ReadUnified(out)
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 1)
	assert.Equal(t, "aca, dlm", sheet.Rows[0][csvsource.FieldPrograms])

	srv := airtabletest.New(t)
	srv.AddTable("Kontakty")
	r := newTestRunner(t, srv)
	summary, err := r.Upsert(context.Background(), sheet, UpsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)

	records := srv.Records("Kontakty")
	require.Len(t, records, 1)
	assert.Equal(t, []any{"aca", "dlm"}, records[0].Fields["Koupil / účastnil se"])
}
