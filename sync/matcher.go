// ABOUTME: Record matching on normalized keys: contacts by email or phone, companies by name
// ABOUTME: Company lookups fall back to the loose overlap test, reported as suggestions only
package sync

import (
	"strings"

	"github.com/harperreed/kontakty/airtable"
	"github.com/harperreed/kontakty/normalize"
)

// ContactMatcher finds existing contact records by normalized email, then phone.
type ContactMatcher struct {
	norm    *normalize.Normalizer
	byEmail map[string]string
	byPhone map[string]string
}

// NewContactMatcher indexes records; the first record seen for a key wins.
func NewContactMatcher(norm *normalize.Normalizer, records []airtable.Record, emailField, phoneField string) *ContactMatcher {
	m := &ContactMatcher{
		norm:    norm,
		byEmail: make(map[string]string),
		byPhone: make(map[string]string),
	}

	for _, rec := range records {
		m.add(rec.ID, rec.Fields.String(emailField), rec.Fields.String(phoneField))
	}

	return m
}

// FindByEmail returns the record id for an email address.
func (m *ContactMatcher) FindByEmail(email string) (string, bool) {
	key := m.norm.FirstEmail(email)
	if key == "" {
		return "", false
	}
	id, ok := m.byEmail[key]
	return id, ok
}

// FindByPhone returns the record id for any of the numbers in a phone cell.
func (m *ContactMatcher) FindByPhone(phones string) (string, bool) {
	for _, p := range splitList(phones) {
		if key := m.norm.Phone(p); key != "" {
			if id, ok := m.byPhone[key]; ok {
				return id, true
			}
		}
	}
	return "", false
}

// Add registers a record created during this run so later rows match it.
func (m *ContactMatcher) Add(id, email, phones string) {
	m.add(id, email, phones)
}

func (m *ContactMatcher) add(id, email, phones string) {
	if key := m.norm.FirstEmail(email); key != "" {
		if _, ok := m.byEmail[key]; !ok {
			m.byEmail[key] = id
		}
	}
	for _, p := range splitList(phones) {
		if key := m.norm.Phone(p); key != "" {
			if _, ok := m.byPhone[key]; !ok {
				m.byPhone[key] = id
			}
		}
	}
}

// CompanyIndex maps company keys to company records.
type CompanyIndex struct {
	norm  *normalize.Normalizer
	keys  []string
	byKey map[string]string
	names map[string]string
}

// NewCompanyIndex indexes company records by the key of nameField.
func NewCompanyIndex(norm *normalize.Normalizer, records []airtable.Record, nameField string) *CompanyIndex {
	idx := &CompanyIndex{
		norm:  norm,
		byKey: make(map[string]string),
		names: make(map[string]string),
	}
	for _, rec := range records {
		idx.Add(rec.ID, rec.Fields.String(nameField))
	}
	return idx
}

// Add registers a company; the first record for a key stays the match.
func (idx *CompanyIndex) Add(id, name string) {
	key := idx.norm.Company(name)
	if key == "" {
		return
	}
	idx.names[id] = strings.TrimSpace(name)
	if _, ok := idx.byKey[key]; ok {
		return
	}
	idx.byKey[key] = id
	idx.keys = append(idx.keys, key)
}

// Exact returns the company whose key equals the key of name.
func (idx *CompanyIndex) Exact(name string) (string, bool) {
	key := idx.norm.Company(name)
	if key == "" {
		return "", false
	}
	id, ok := idx.byKey[key]
	return id, ok
}

// Suggest returns the first company, in table order, whose key overlaps the key of name.
func (idx *CompanyIndex) Suggest(name string) (string, bool) {
	key := idx.norm.Company(name)
	if key == "" {
		return "", false
	}
	for _, k := range idx.keys {
		if idx.norm.CompanyOverlap(key, k) {
			return idx.byKey[k], true
		}
	}
	return "", false
}

// Name returns the display name of a company record.
func (idx *CompanyIndex) Name(id string) string {
	return idx.names[id]
}

// Len is the number of distinct company keys.
func (idx *CompanyIndex) Len() int {
	return len(idx.keys)
}

// splitList splits a cell holding several values separated by ";" or ",".
func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
