package normalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompany(t *testing.T) {
	n := Default()
	tests := []struct {
		input    string
		expected string
	}{
		{"Alfa s.r.o.", "alfa"},
		{"ALFA, s.r.o.", "alfa"},
		{"  Alfa   s. r. o. ", "alfa"},
		{"Beta a.s.", "beta"},
		{"Gama spol. s r.o.", "gama"},
		{"Siemens Czech Republic s.r.o.", "siemens"},
		{"Zentiva Group, a.s.", "zentiva"},
		{"Acme Holding GmbH", "acme"},
		{"Sanofi-Aventis", "sanofi aventis"},
		{"Procter & Gamble", "procter gamble"},
		{"Group", "group"},
		{"Holding Group", "holding"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, n.Company(tt.input))
		})
	}
}

func TestCompanyIdempotent(t *testing.T) {
	n := Default()
	inputs := []string{
		"Alfa s.r.o.", "Česká spořitelna, a.s.", "CZ s.r.o.", "Group Holding CZ",
		"Mölnlycke Health Care Czech s.r.o.", "...", "a.s.", "Foo (CZ) Ltd.",
	}
	for _, in := range inputs {
		once := n.Company(in)
		assert.Equal(t, once, n.Company(once), in)
	}
}

func TestCompanyOverlap(t *testing.T) {
	n := Default()
	assert.True(t, n.CompanyOverlap("komercni banka", "komercni"))
	assert.True(t, n.CompanyOverlap("ceska sporitelna", "sporitelna praha"))
	assert.False(t, n.CompanyOverlap("alfa beta", "gama delta"))
	// Two-letter words do not count as significant, but substrings always do.
	assert.False(t, n.CompanyOverlap("ab cd", "ab ef"))
	assert.True(t, n.CompanyOverlap("ab", "abc"))
	assert.False(t, n.CompanyOverlap("", "alfa"))
	assert.False(t, n.CompanyOverlap("alfa", ""))
}

func TestPhone(t *testing.T) {
	n := Default()
	same := []string{"420604123456", "604123456", "+420 604 123 456", "00420 604-123-456", "(604) 123 456"}
	for _, p := range same {
		assert.Equal(t, "604123456", n.Phone(p), p)
	}
	assert.Equal(t, "905123456", n.Phone("+421 905 123 456"))
	assert.Equal(t, "", n.Phone("12345678"))
	assert.Equal(t, "", n.Phone("+420 1234"))
	assert.Equal(t, "", n.Phone("n/a"))
	assert.Equal(t, "", n.Phone(""))
}

func TestEmail(t *testing.T) {
	n := Default()
	assert.Equal(t, "jan.novak@firma.cz", n.Email("  Jan.Novak@Firma.CZ "))
	assert.Equal(t, n.Email("A@B.cz"), n.Email(n.Email("A@B.cz")))

	assert.Equal(t, "jan@firma.cz", n.FirstEmail("Jan@Firma.cz; jan.novak@gmail.com"))
	assert.Equal(t, "x@y.cz", n.FirstEmail("tel 123, <x@y.cz>"))
	assert.Equal(t, "", n.FirstEmail("bez emailu"))
}

func TestDomains(t *testing.T) {
	n := Default()
	assert.Equal(t, "firma.cz", n.Domain("jan@Firma.cz"))
	assert.Equal(t, "", n.Domain("nope"))
	assert.Equal(t, "", n.Domain("trailing@"))
	assert.Equal(t, "firma.cz", n.CompanyDomain("jan@firma.cz"))
	assert.Equal(t, "", n.CompanyDomain("jan@gmail.com"))
	assert.Equal(t, "", n.CompanyDomain("jan@Seznam.cz"))
	assert.True(t, n.IsConsumerDomain("ICLOUD.com"))
}

func TestVocative(t *testing.T) {
	n := Default()
	tests := []struct {
		input    string
		expected string
	}{
		{"Jan", "Jane"},
		{"Petr", "Petře"},
		{"Jana", "Jano"},
		{"jan", "jane"},
		{"JAN", "JANE"},
		{"Jiri", "Jiří"},
		{"Zdenek", "Zdeňku"},
		{"Marie", "Marie"},
		{"X", "X"},
		{"", ""},
		// rule-based
		{"Bořivoj", "Bořivoji"},
		{"Hynek", "Hynku"},
		{"Zbyněk", "Zbyňku"},
		{"Dalibor", "Dalibore"},
		{"Kryštof", "Kryštofe"},
		{"Blažena", "Blaženo"},
		{"Olivia", "Olivia"},
		{"Vojtěch", "Vojtěchu"},
		{"Tobiáš", "Tobiáši"},
		{"Tony", "Tony"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, n.Vocative(tt.input))
		})
	}
}

func TestFirstName(t *testing.T) {
	n := Default()
	assert.Equal(t, "Jan", n.FirstName("Ing. Jan Novák"))
	assert.Equal(t, "Jana", n.FirstName("Nováková Jana"))
	assert.Equal(t, "Petr", n.FirstName("Dvořáček, Petr"))
	assert.Equal(t, "Eva", n.FirstName("Mgr. Eva Malá, Ph.D."))
	assert.Equal(t, "Eva", n.FirstName("Eva"))
	assert.Equal(t, "", n.FirstName("  "))

	first, last := n.SplitFullName("Ing. Jan van der Berg")
	assert.Equal(t, "Jan", first)
	assert.Equal(t, "van der Berg", last)
}

func TestLinkedInURL(t *testing.T) {
	n := Default()
	assert.Equal(t, "https://www.linkedin.com/in/jan-novak", n.LinkedInURL("https://cz.linkedin.com/in/jan-novak/?originalSubdomain=cz"))
	assert.Equal(t, "https://www.linkedin.com/in/jan-novak", n.LinkedInURL("linkedin.com/in/jan-novak"))
	assert.Equal(t, "", n.LinkedInURL("https://www.linkedin.com/company/acme"))
	assert.Equal(t, "", n.LinkedInURL("https://www.google.com/search?q=linkedin.com/in/x"))
	assert.Equal(t, "", n.LinkedInURL(""))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "prilis zlutoucky kun", Fold("Příliš žluťoučký kůň"))
}

func TestLoadRulesOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
consumer_domains: [example.org]
min_phone_digits: 6
vocatives:
  ognen: ognene
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	n := New(rules)

	assert.Equal(t, "", n.CompanyDomain("a@example.org"))
	assert.Equal(t, "gmail.com", n.CompanyDomain("a@gmail.com"))
	assert.Equal(t, "123456", n.Phone("123456"))
	assert.Equal(t, "Ognene", n.Vocative("Ognen"))
	assert.Equal(t, "Jane", n.Vocative("Jan"), "built-in table is kept")
}

func TestLoadRulesErrors(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vocatives: [oops"), 0600))
	_, err = LoadRules(path)
	assert.Error(t, err)

	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, 9, rules.MinPhoneDigits)
}

func TestNewCopiesRules(t *testing.T) {
	rules := DefaultRules()
	n := New(rules)
	rules.Vocatives["jan"] = "broken"
	assert.Equal(t, "Jane", n.Vocative("Jan"))
}

func TestIsPlaceholderCompany(t *testing.T) {
	n := Default()
	for _, s := range []string{"", "  ", "-", "N/A", "Soukromá osoba", "OSVČ", "...", "#ERROR!"} {
		assert.True(t, n.IsPlaceholderCompany(s), "%q", s)
	}
	for _, s := range []string{"Alfa s.r.o.", "ČEZ", "x-tech"} {
		assert.False(t, n.IsPlaceholderCompany(s), "%q", s)
	}
}
