package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/harperreed/kontakty/airtable"
	"github.com/harperreed/kontakty/airtable/airtabletest"
	"github.com/harperreed/kontakty/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillSalutations(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Kontakty")
	srv.Seed("Kontakty",
		map[string]any{"Jméno": "Ing. Petr Novák"},
		map[string]any{"Jméno": "Jana", "Oslovení": "Jano"},
		map[string]any{"Příjmení": "Bezejmenný"},
		map[string]any{"Jméno": "Dvořáček, Petr"},
		map[string]any{"Jméno": "Jan", "Oslovení": "Jan"},
	)
	r := newTestRunner(t, srv)
	ctx := context.Background()

	summary, err := r.FillSalutations(ctx, SalutationOptions{DryRun: true})
	require.NoError(t, err)
	require.Len(t, summary.Changes, 2)
	assert.Equal(t, "Petře", summary.Changes[0].New)
	assert.Equal(t, "Petře", summary.Changes[1].New)
	assert.Equal(t, 1, summary.NoName)
	assert.Equal(t, 2, summary.AlreadySet)
	assert.Equal(t, "2 to update, 0 unchanged, 2 already set, 1 without name (of 5)", summary.String())
	assert.Equal(t, 0, srv.CountRequests(http.MethodPatch))

	_, err = r.FillSalutations(ctx, SalutationOptions{})
	require.NoError(t, err)
	petr, ok := recordByField(srv.Records("Kontakty"), "Jméno", "Ing. Petr Novák")
	require.True(t, ok)
	assert.Equal(t, "Petře", petr.Fields["Oslovení"])

	summary, err = r.FillSalutations(ctx, SalutationOptions{Overwrite: true})
	require.NoError(t, err)
	require.Len(t, summary.Changes, 1, "only the wrong salutation is rewritten")
	assert.Equal(t, "Jan", summary.Changes[0].Old)
	assert.Equal(t, "Jane", summary.Changes[0].New)
	assert.Equal(t, 3, summary.Unchanged)
	assert.Equal(t, 0, summary.AlreadySet)
	assert.Equal(t, summary.Scanned, len(summary.Changes)+summary.Unchanged+summary.NoName)
}

func seedCompanies(srv *airtabletest.Server) []airtabletest.Record {
	srv.AddTable("Klienti")
	return srv.Seed("Klienti",
		map[string]any{"Firma": "Alfa s.r.o."},
		map[string]any{"Firma": "Beta Consulting a.s."},
	)
}

func TestLinkCompanies(t *testing.T) {
	srv := airtabletest.New(t)
	companies := seedCompanies(srv)
	srv.AddTable("Kontakty")
	contacts := srv.Seed("Kontakty",
		map[string]any{"Společnost / Firma": "ALFA, s.r.o."},
		map[string]any{"Společnost / Firma": "Beta"},
		map[string]any{"Společnost / Firma": "Gama"},
		map[string]any{"Společnost / Firma": "-"},
		map[string]any{"Společnost / Firma": "Alfa", "Klienti": []any{"recOther"}},
	)
	r := newTestRunner(t, srv)
	ctx := context.Background()
	spec := DefaultLinkSpecs(r.Schema)[0]

	summary, err := r.LinkCompanies(ctx, spec, LinkOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Linked)
	assert.Equal(t, 1, summary.Unmatched)
	assert.Equal(t, 1, summary.NoCompany)
	assert.Equal(t, 1, summary.AlreadyLinked)
	require.Len(t, summary.Suggestions, 1)

	s := summary.Suggestions[0]
	assert.Equal(t, contacts[1].ID, s.RecordID)
	assert.Equal(t, companies[1].ID, s.CompanyID)
	assert.Equal(t, "Beta Consulting a.s.", s.CompanyName)
	assert.Equal(t, models.SuggestionStatusPending, s.Status)

	linked, ok := recordByField(srv.Records("Kontakty"), "Společnost / Firma", "ALFA, s.r.o.")
	require.True(t, ok)
	assert.Equal(t, []any{companies[0].ID}, linked.Fields["Klienti"])

	beta, _ := recordByField(srv.Records("Kontakty"), "Společnost / Firma", "Beta")
	assert.NotContains(t, beta.Fields, "Klienti", "suggestions are not written")

	n, err := r.AcceptSuggestions(ctx, summary.Suggestions, false)
	require.NoError(t, err)
	assert.Zero(t, n, "pending suggestions are not written")

	n, err = r.AcceptSuggestions(ctx, AcceptAll(summary.Suggestions), false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	beta, _ = recordByField(srv.Records("Kontakty"), "Společnost / Firma", "Beta")
	assert.Equal(t, []any{companies[1].ID}, beta.Fields["Klienti"])
}

func TestLinkCompaniesExactOnly(t *testing.T) {
	srv := airtabletest.New(t)
	seedCompanies(srv)
	srv.AddTable("Deals")
	srv.Seed("Deals", map[string]any{"Firma": "Beta"})
	r := newTestRunner(t, srv)

	summary, err := r.LinkCompanies(context.Background(), DefaultLinkSpecs(r.Schema)[1], LinkOptions{ExactOnly: true})
	require.NoError(t, err)
	assert.Empty(t, summary.Suggestions)
	assert.Equal(t, 1, summary.Unmatched)
}

func TestEnsureCompanies(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Klienti")
	srv.Seed("Klienti", map[string]any{"Firma": "Alfa s.r.o."})
	srv.AddTable("Kontakty")
	srv.Seed("Kontakty",
		map[string]any{"Společnost / Firma": "Alfa"},
		map[string]any{"Společnost / Firma": "Nová Firma s.r.o."},
		map[string]any{"Společnost / Firma": "nová firma"},
		map[string]any{"Společnost / Firma": "n/a"},
		map[string]any{},
	)
	r := newTestRunner(t, srv)

	summary, err := r.EnsureCompanies(context.Background(), EnsureOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Nová Firma s.r.o."}, summary.Created)
	assert.Equal(t, 2, summary.Distinct)
	assert.Equal(t, 1, summary.Existing)
	assert.Equal(t, 1, summary.Placeholder)

	require.Len(t, srv.Records("Klienti"), 2)
	require.NotNil(t, summary.Link)
	assert.Equal(t, 3, summary.Link.Linked)
	assert.Equal(t, 2, summary.Link.NoCompany, "placeholder and blank company cells")
}

func TestDedupeCompanies(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Klienti")
	seeded := srv.Seed("Klienti",
		map[string]any{"Firma": "Alfa s.r.o.", "Kontakty": []any{"c1"}},
		map[string]any{"Firma": "ALFA a.s.", "Kontakty": []any{"c2", "c3"}, "Deals": []any{"d1"}},
		map[string]any{"Firma": "Alfa"},
		map[string]any{"Firma": "Beta"},
		map[string]any{"Firma": "AB"},
		map[string]any{"Firma": "ab s.r.o."},
	)
	r := newTestRunner(t, srv)
	ctx := context.Background()

	preview, err := r.DedupeCompanies(ctx, DedupeOptions{DryRun: true})
	require.NoError(t, err)
	require.Len(t, preview.Groups, 1, "keys shorter than three runes are ignored")
	assert.Equal(t, "alfa", preview.Groups[0].Key)
	assert.Equal(t, seeded[1].ID, preview.Groups[0].Keep.ID)
	assert.Equal(t, []string{"Kontakty"}, preview.Groups[0].Changed)
	assert.Equal(t, 0, srv.CountRequests(http.MethodDelete))

	var snapshotted []airtable.Record
	summary, err := r.DedupeCompanies(ctx, DedupeOptions{
		Snapshot: func(_ context.Context, table, reason string, records []airtable.Record) (string, error) {
			assert.Equal(t, "Klienti", table)
			assert.Equal(t, "dedupe-companies", reason)
			snapshotted = records
			return "run-1", nil
		},
	})
	require.NoError(t, err)
	assert.Len(t, snapshotted, 6)
	assert.Equal(t, "run-1", summary.SnapshotID)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 2, summary.Deleted)

	records := srv.Records("Klienti")
	require.Len(t, records, 4)
	keep, ok := recordByField(records, "Firma", "ALFA a.s.")
	require.True(t, ok)
	assert.Equal(t, []any{"c2", "c3", "c1"}, keep.Fields["Kontakty"])
	assert.Equal(t, []any{"d1"}, keep.Fields["Deals"])
	_, ok = recordByField(records, "Firma", "Alfa s.r.o.")
	assert.False(t, ok)
}

func TestFindDuplicates(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Kontakty")
	srv.Seed("Kontakty",
		map[string]any{"Jméno": "Jan", "Příjmení": "Novák", "E-mail": "jan@firma.cz", "Telefon": "+420 604 123 456", "Společnost / Firma": "Firma s.r.o."},
		map[string]any{"Jméno": "Honza", "E-mail": "JAN@firma.cz", "Telefon": "604123456", "Společnost / Firma": "Firma"},
		map[string]any{"Jméno": "Eva", "E-mail": "eva@firma.cz", "Společnost / Firma": "Jiná firma a.s."},
		map[string]any{"Jméno": "Petr", "E-mail": "petr@gmail.com", "Společnost / Firma": "Alfa"},
		map[string]any{"Jméno": "Pavel", "E-mail": "pavel@gmail.com", "Společnost / Firma": "Beta"},
	)
	r := newTestRunner(t, srv)

	report, err := r.FindDuplicates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Contacts)

	require.Len(t, report.Phones, 1)
	assert.Equal(t, "604123456", report.Phones[0].Key)
	assert.Len(t, report.Phones[0].Contacts, 2)
	assert.Equal(t, "Jan Novák", report.Phones[0].Contacts[0].Name)

	require.Len(t, report.Emails, 1)
	assert.Equal(t, "jan@firma.cz", report.Emails[0].Key)

	require.Len(t, report.Domains, 1, "consumer domains carry no company signal")
	assert.Equal(t, "firma.cz", report.Domains[0].Domain)
	assert.Equal(t, []string{"Firma s.r.o.", "Jiná firma a.s."}, report.Domains[0].Companies)
	assert.Len(t, report.Domains[0].Contacts, 3)

	path := filepath.Join(t.TempDir(), "duplicates.json")
	require.NoError(t, report.WriteJSON(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded DuplicateReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.Phones[0].Key, decoded.Phones[0].Key)
}

func TestAudit(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Kontakty")
	srv.Seed("Kontakty",
		map[string]any{"E-mail": "a@x.cz", "Oslovení": "Jane", "Stav": "Aktivní"},
		map[string]any{"E-mail": "A@x.cz", "Stav": "Aktivní"},
		map[string]any{"Klienti": []any{"rec1"}},
	)
	r := newTestRunner(t, srv)

	spec := DefaultAuditSpecs(r.Schema)[0]
	audits, err := r.Audit(context.Background(), []AuditSpec{spec})
	require.NoError(t, err)
	require.Len(t, audits, 1)

	a := audits[0]
	assert.Equal(t, 3, a.Records)
	assert.Equal(t, []Count{
		{Label: "E-mail", N: 1},
		{Label: "Oslovení", N: 2},
		{Label: "Společnost / Firma", N: 3},
		{Label: "Klienti", N: 2},
	}, a.Missing)
	assert.Equal(t, []Count{{Label: "a@x.cz", N: 2}}, a.Duplicates)
	require.Len(t, a.Distributions, 1)
	assert.Equal(t, []Count{{Label: "Aktivní", N: 2}, {Label: Unset, N: 1}}, a.Distributions[0].Counts)
}

func TestRemapValues(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Deals")
	srv.Seed("Deals",
		map[string]any{"Reakce / Výsledek": "v řešení"},
		map[string]any{"Reakce / Výsledek": "V řešení"},
		map[string]any{"Reakce / Výsledek": "Odmítli"},
		map[string]any{},
	)
	r := newTestRunner(t, srv)
	vm := ValueMap{
		Table:      "Deals",
		Field:      "Reakce / Výsledek",
		Values:     map[string]string{"v řešení": "V řešení"},
		IgnoreCase: true,
	}

	summary, err := r.RemapValues(context.Background(), vm, RemapOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Scanned)
	assert.Equal(t, 1, summary.Changed)
	assert.Equal(t, map[string]int{"v řešení -> V řešení": 1}, summary.Rewrites)
	assert.Equal(t, map[string]int{"Odmítli": 1}, summary.Unmapped)
	assert.Equal(t, 1, srv.CountRequests(http.MethodPatch))

	records := srv.Records("Deals")
	assert.Equal(t, "V řešení", records[0].Fields["Reakce / Výsledek"])
}

func TestRemapMultiSelect(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Deals")
	srv.Seed("Deals", map[string]any{"Co poptávali": []any{"školení", "Školení", "Workshop"}})
	r := newTestRunner(t, srv)

	vm := ValueMap{Table: "Deals", Field: "Co poptávali", Values: map[string]string{"školení": "Školení"}}
	summary, err := r.RemapValues(context.Background(), vm, RemapOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Changed)
	assert.Equal(t, []any{"Školení", "Workshop"}, srv.Records("Deals")[0].Fields["Co poptávali"])
}

func TestLoadValueMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reakce.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
table: Deals
field: Reakce / Výsledek
ignore_case: true
values:
  v řešení: V řešení
  nezájem: Odmítli
`), 0600))

	vm, err := LoadValueMap(path)
	require.NoError(t, err)
	assert.Equal(t, "Deals", vm.Table)
	to, ok := vm.Lookup("  NEZÁJEM ")
	assert.True(t, ok)
	assert.Equal(t, "Odmítli", to)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("field: x\n"), 0600))
	_, err = LoadValueMap(bad)
	assert.Error(t, err)
}
