package sync

import (
	"testing"

	"github.com/harperreed/kontakty/airtable"
	"github.com/harperreed/kontakty/normalize"
	"github.com/stretchr/testify/assert"
)

func TestContactMatcher(t *testing.T) {
	records := []airtable.Record{
		{ID: "rec1", Fields: airtable.Fields{"E-mail": "Alice@Example.com", "Telefon": "+420 604 123 456"}},
		{ID: "rec2", Fields: airtable.Fields{"E-mail": "alice@example.com"}},
		{ID: "rec3", Fields: airtable.Fields{"Telefon": "777 000 111; 00421 902 111 222"}},
	}
	m := NewContactMatcher(normalize.Default(), records, "E-mail", "Telefon")

	id, found := m.FindByEmail(" ALICE@example.com ")
	assert.True(t, found)
	assert.Equal(t, "rec1", id, "first record for a key wins")

	_, found = m.FindByEmail("charlie@example.com")
	assert.False(t, found)
	_, found = m.FindByEmail("")
	assert.False(t, found)

	id, found = m.FindByPhone("604123456")
	assert.True(t, found)
	assert.Equal(t, "rec1", id)

	id, found = m.FindByPhone("+421902111222")
	assert.True(t, found)
	assert.Equal(t, "rec3", id)

	_, found = m.FindByPhone("12345")
	assert.False(t, found, "too short to be a key")

	m.Add("rec4", "new@example.com", "")
	id, found = m.FindByEmail("NEW@example.com")
	assert.True(t, found)
	assert.Equal(t, "rec4", id)
}

func TestCompanyIndex(t *testing.T) {
	records := []airtable.Record{
		{ID: "recA", Fields: airtable.Fields{"Firma": "Alfa s.r.o."}},
		{ID: "recB", Fields: airtable.Fields{"Firma": "Beta Consulting a.s."}},
		{ID: "recC", Fields: airtable.Fields{"Firma": "ALFA a.s."}},
		{ID: "recD", Fields: airtable.Fields{"Firma": ""}},
	}
	idx := NewCompanyIndex(normalize.Default(), records, "Firma")
	assert.Equal(t, 2, idx.Len())

	id, ok := idx.Exact("alfa, s.r.o.")
	assert.True(t, ok)
	assert.Equal(t, "recA", id)

	_, ok = idx.Exact("Beta")
	assert.False(t, ok)

	id, ok = idx.Suggest("Beta")
	assert.True(t, ok)
	assert.Equal(t, "recB", id)
	assert.Equal(t, "Beta Consulting a.s.", idx.Name(id))

	id, ok = idx.Suggest("Alfa Beta Consulting")
	assert.True(t, ok)
	assert.Equal(t, "recA", id, "first overlapping company in table order")

	_, ok = idx.Suggest("Gama")
	assert.False(t, ok)
	_, ok = idx.Suggest("")
	assert.False(t, ok)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList(" a; b,c ;"))
	assert.Empty(t, splitList(""))
}
