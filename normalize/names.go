// ABOUTME: Person name helpers: Czech vocative salutations, first-name extraction, LinkedIn URLs
// ABOUTME: Vocative uses a lookup table first, then ordered suffix rules, else the name unchanged
package normalize

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Vocative returns the Czech vocative of a first name. It never fails: unknown
// names with no matching rule come back unchanged. The first letter's case
// follows the input, and all-caps input gives all-caps output.
func (n *Normalizer) Vocative(firstName string) string {
	name := strings.TrimSpace(firstName)
	if name == "" {
		return ""
	}
	lower := strings.ToLower(name)

	if v, ok := n.vocatives[lower]; ok {
		return matchCase(name, v)
	}
	if v, ok := n.foldedVocatives[Fold(lower)]; ok {
		return matchCase(name, v)
	}

	if utf8.RuneCountInString(lower) < 2 {
		return name
	}

	for _, rule := range n.rules.VocativeRules {
		for _, suffix := range rule.Suffixes {
			if !strings.HasSuffix(lower, suffix) {
				continue
			}
			r := []rune(name)
			keep := max(len(r)-rule.Strip, 0)
			out := string(r[:keep]) + rule.Append
			if isAllUpper(name) {
				out = strings.ToUpper(out)
			}
			return out
		}
	}

	return name
}

// FirstName pulls the given name out of a full-name field. Titles and commas
// are dropped; when the first word looks like a surname the second is used.
func (n *Normalizer) FirstName(full string) string {
	parts := n.nameParts(full)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	if n.LooksLikeSurname(parts[0]) {
		return parts[1]
	}
	return parts[0]
}

// LooksLikeSurname reports whether word ends like a typical Czech surname.
func (n *Normalizer) LooksLikeSurname(word string) bool {
	lower := strings.ToLower(word)
	for _, ending := range n.rules.SurnameEndings {
		if strings.HasSuffix(lower, ending) && lower != ending {
			return true
		}
	}
	return false
}

// SplitFullName splits "Jan Novák" into first and last name.
func (n *Normalizer) SplitFullName(full string) (first, last string) {
	parts := n.nameParts(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func (n *Normalizer) nameParts(full string) []string {
	var parts []string
	for _, p := range strings.Fields(strings.ReplaceAll(full, ",", " ")) {
		if n.titles[strings.ToLower(p)] {
			continue
		}
		parts = append(parts, p)
	}
	return parts
}

// LinkedInURL returns the canonical profile URL for raw, or "" when raw is
// not a personal profile link (search results, company pages, redirects).
func (n *Normalizer) LinkedInURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return ""
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] != "in" || segments[1] == "" {
		return ""
	}
	return "https://www.linkedin.com/in/" + segments[1]
}

func matchCase(input, out string) string {
	if isAllUpper(input) {
		return strings.ToUpper(out)
	}
	first, _ := utf8.DecodeRuneInString(input)
	outFirst, outSize := utf8.DecodeRuneInString(out)
	if unicode.IsUpper(first) {
		return string(unicode.ToUpper(outFirst)) + out[outSize:]
	}
	return string(unicode.ToLower(outFirst)) + out[outSize:]
}

// isAllUpper is true for words of two or more letters with no lower-case letter.
func isAllUpper(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return letters > 1
}
