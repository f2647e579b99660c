// ABOUTME: Company name keys and the loose overlap test used for link suggestions
// ABOUTME: Keys drop case, punctuation and trailing legal-form or boilerplate words
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Company returns the comparison key of a company name. Trailing suffixes are
// removed repeatedly but never the last remaining word. Company(Company(x)) == Company(x).
func (n *Normalizer) Company(name string) string {
	tokens := companyTokens(name)

	for stripped := true; stripped; {
		stripped = false
		for _, suffix := range n.companySuffixes {
			if len(tokens) > len(suffix) && hasTokenSuffix(tokens, suffix) {
				tokens = tokens[:len(tokens)-len(suffix)]
				stripped = true
				break
			}
		}
	}

	return strings.Join(tokens, " ")
}

// CompanyOverlap is the recall-first fallback for keys that did not match
// exactly: one key contains the other, or they share a significant word.
// A true result is a suggestion, not a match.
func (n *Normalizer) CompanyOverlap(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}

	words := make(map[string]bool)
	for _, w := range strings.Fields(a) {
		if utf8.RuneCountInString(w) >= n.rules.SignificantWordRunes {
			words[w] = true
		}
	}
	for _, w := range strings.Fields(b) {
		if words[w] {
			return true
		}
	}
	return false
}

// companyTokens lower-cases s, turns punctuation and symbols into spaces and splits on whitespace.
func companyTokens(s string) []string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Fields(mapped)
}

func hasTokenSuffix(tokens, suffix []string) bool {
	offset := len(tokens) - len(suffix)
	for i, s := range suffix {
		if tokens[offset+i] != s {
			return false
		}
	}
	return true
}

// IsPlaceholderCompany reports whether a company cell is blank or a stand-in
// such as "-" or "soukromá osoba" rather than a real company.
func (n *Normalizer) IsPlaceholderCompany(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	return name == "" || n.placeholders[name] || n.Company(name) == ""
}
