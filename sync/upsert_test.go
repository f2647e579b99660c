package sync

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/harperreed/kontakty/airtable"
	"github.com/harperreed/kontakty/airtable/airtabletest"
	"github.com/harperreed/kontakty/csvsource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertRepeatedRowCreatesOnce(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Kontakty")
	r := newTestRunner(t, srv)

	sheet := &csvsource.Sheet{
		Header: []string{"Email", "Name"},
		Rows: []map[string]string{
			{"Email": "a@x.com", "Name": "Petr"},
			{"Email": "a@x.com", "Name": "Petr"},
		},
	}
	summary, err := r.Upsert(context.Background(), sheet, UpsertOptions{})
	require.NoError(t, err)

	assert.Equal(t, "1 created, 1 matched-skip", summary.String())
	assert.Equal(t, 1, srv.CountRequests(http.MethodPost))
	assert.Equal(t, 0, srv.CountRequests(http.MethodPatch))
	assert.False(t, summary.SchemaChecked)

	records := srv.Records("Kontakty")
	require.Len(t, records, 1)
	assert.Equal(t, "a@x.com", records[0].Fields["E-mail"])
	assert.Equal(t, "Petr", records[0].Fields["Name"])
}

func TestUpsertCreatesAndUpdates(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Kontakty", "E-mail", "Jméno", "Koupil / účastnil se")
	existing := srv.Seed("Kontakty", map[string]any{"E-mail": "Jan@Firma.cz", "Jméno": "Jan"})
	r := newTestRunner(t, srv)

	sheet := &csvsource.Sheet{
		Header: []string{"\ufeffEmail", "Jméno", "Účastnil se"},
		Rows: []map[string]string{
			{"\ufeffEmail": "jan@firma.cz", "Jméno": "Honza", "Účastnil se": "ACA 2024, DLM 5"},
			{"\ufeffEmail": "", "Jméno": "Nobody"},
			{"\ufeffEmail": "eva@x.cz", "Jméno": "Eva", "Účastnil se": ""},
			{"\ufeffEmail": "EVA@x.cz", "Jméno": "Evička", "Účastnil se": "ACA 2024"},
		},
	}
	summary, err := r.Upsert(context.Background(), sheet, UpsertOptions{EmailColumn: "\ufeffEmail"})
	require.NoError(t, err)

	assert.True(t, summary.SchemaChecked)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.MatchedSkip)
	assert.Equal(t, 1, summary.SkippedNoEmail)
	assert.Equal(t, "1 created, 1 updated, 1 matched-skip, 1 skipped-no-email", summary.String())

	records := srv.Records("Kontakty")
	require.Len(t, records, 2)

	jan := records[0]
	assert.Equal(t, existing[0].ID, jan.ID)
	assert.Equal(t, "Honza", jan.Fields["Jméno"])
	assert.Equal(t, []any{"ACA 2024", "DLM 5"}, jan.Fields["Koupil / účastnil se"])

	eva := records[1]
	assert.Equal(t, "Eva", eva.Fields["Jméno"], "first row for an email wins")
	assert.Equal(t, []any{"ACA 2024"}, eva.Fields["Koupil / účastnil se"], "options accumulate")
}

func TestUpsertUnknownFields(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Kontakty", "E-mail", "Jméno")
	r := newTestRunner(t, srv)

	sheet := &csvsource.Sheet{
		Header: []string{"Email", "Jméno", "Poznámka"},
		Rows:   []map[string]string{{"Email": "a@x.com", "Jméno": "Petr", "Poznámka": "VIP"}},
	}

	_, err := r.Upsert(context.Background(), sheet, UpsertOptions{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Poznámka"}, verr.Fields)
	assert.Equal(t, []string{"E-mail", "Jméno"}, verr.Available)
	assert.Contains(t, err.Error(), "--skip-unknown-fields")
	assert.Equal(t, 0, srv.CountRequests(http.MethodPost))

	summary, err := r.Upsert(context.Background(), sheet, UpsertOptions{SkipUnknownFields: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Poznámka"}, summary.SkippedFields)

	records := srv.Records("Kontakty")
	require.Len(t, records, 1)
	assert.NotContains(t, records[0].Fields, "Poznámka")
}

func TestUpsertMissingEmailField(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Kontakty", "Email", "Jméno")
	r := newTestRunner(t, srv)

	sheet := &csvsource.Sheet{Header: []string{"Email"}, Rows: []map[string]string{{"Email": "a@x.com"}}}
	_, err := r.Upsert(context.Background(), sheet, UpsertOptions{})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"E-mail"}, verr.Fields)
}

func TestUpsertUnknownFieldFromAPI(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Kontakty", "E-mail")
	srv.MetadataDown()
	r := newTestRunner(t, srv)

	sheet := &csvsource.Sheet{
		Header: []string{"Email", "Poznámka"},
		Rows:   []map[string]string{{"Email": "a@x.com", "Poznámka": "VIP"}},
	}
	_, err := r.Upsert(context.Background(), sheet, UpsertOptions{})
	require.Error(t, err)
	assert.True(t, airtable.IsUnknownField(err))
	assert.Contains(t, err.Error(), "--skip-unknown-fields")

	var apiErr *airtable.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestUpsertDryRunAndLimit(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Kontakty")
	r := newTestRunner(t, srv)

	sheet := &csvsource.Sheet{
		Header: []string{"Email"},
		Rows:   []map[string]string{{"Email": "a@x.com"}, {"Email": "b@x.com"}, {"Email": "c@x.com"}},
	}
	summary, err := r.Upsert(context.Background(), sheet, UpsertOptions{DryRun: true, Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Rows)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 0, srv.CountRequests(http.MethodPost))
	assert.Empty(t, srv.Records("Kontakty"))
}

func TestUpsertOverwriteEmpty(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Kontakty")
	srv.Seed("Kontakty", map[string]any{"E-mail": "a@x.com", "Telefon": "604123456"})
	r := newTestRunner(t, srv)

	sheet := &csvsource.Sheet{
		Header: []string{"Email", "Telefon"},
		Rows:   []map[string]string{{"Email": "a@x.com", "Telefon": ""}},
	}

	_, err := r.Upsert(context.Background(), sheet, UpsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, "604123456", srv.Records("Kontakty")[0].Fields["Telefon"], "blank cells leave data alone")

	_, err = r.Upsert(context.Background(), sheet, UpsertOptions{OverwriteEmpty: true})
	require.NoError(t, err)
	assert.Equal(t, "", srv.Records("Kontakty")[0].Fields["Telefon"])
}

func TestUpsertResolvesTableID(t *testing.T) {
	srv := airtabletest.New(t)
	id := srv.AddTable("Kontakty")
	r := newTestRunner(t, srv)

	sheet := &csvsource.Sheet{Header: []string{"Email"}, Rows: []map[string]string{{"Email": "a@x.com"}}}
	summary, err := r.Upsert(context.Background(), sheet, UpsertOptions{Table: id})
	require.NoError(t, err)
	assert.Equal(t, "Kontakty", summary.Table)
	assert.Len(t, srv.Records("Kontakty"), 1)
}
