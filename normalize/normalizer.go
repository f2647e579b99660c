// ABOUTME: Normalizer turns noisy human-entered text into comparison keys
// ABOUTME: Built once from Rules; all methods are pure and safe for concurrent use
package normalize

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer applies a fixed set of Rules.
type Normalizer struct {
	rules Rules

	// companySuffixes are tokenized suffixes, longest first.
	companySuffixes [][]string
	consumer        map[string]bool
	placeholders    map[string]bool
	vocatives       map[string]string
	// foldedVocatives is keyed by accent-free names for a second lookup.
	foldedVocatives map[string]string
	titles          map[string]bool
}

// New builds a Normalizer from rules. The rules are copied.
func New(rules Rules) *Normalizer {
	rules = rules.Clone()
	n := &Normalizer{
		rules:           rules,
		consumer:        make(map[string]bool, len(rules.ConsumerDomains)),
		placeholders:    make(map[string]bool, len(rules.PlaceholderCompanies)),
		vocatives:       make(map[string]string, len(rules.Vocatives)),
		foldedVocatives: make(map[string]string, len(rules.Vocatives)),
		titles:          make(map[string]bool, len(rules.Titles)),
	}

	for _, s := range rules.CompanySuffixes {
		if tokens := companyTokens(s); len(tokens) > 0 {
			n.companySuffixes = append(n.companySuffixes, tokens)
		}
	}
	sort.SliceStable(n.companySuffixes, func(i, j int) bool {
		return len(n.companySuffixes[i]) > len(n.companySuffixes[j])
	})

	for _, d := range rules.ConsumerDomains {
		n.consumer[strings.ToLower(strings.TrimSpace(d))] = true
	}

	for _, p := range rules.PlaceholderCompanies {
		n.placeholders[strings.ToLower(strings.TrimSpace(p))] = true
	}

	// Sorted so that when two names fold to the same key the result is stable.
	keys := make([]string, 0, len(rules.Vocatives))
	for k := range rules.Vocatives {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lower := strings.ToLower(strings.TrimSpace(k))
		v := strings.ToLower(rules.Vocatives[k])
		n.vocatives[lower] = v
		if _, ok := n.foldedVocatives[Fold(lower)]; !ok {
			n.foldedVocatives[Fold(lower)] = v
		}
	}

	for _, t := range rules.Titles {
		n.titles[strings.ToLower(t)] = true
	}

	return n
}

// Default returns a Normalizer over DefaultRules.
func Default() *Normalizer {
	return New(DefaultRules())
}

// Rules returns a copy of the rules in use.
func (n *Normalizer) Rules() Rules {
	return n.rules.Clone()
}

// Fold lower-cases s and strips diacritics ("Jiří" -> "jiri").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
