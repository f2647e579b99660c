// ABOUTME: Normalization rule data: legal suffixes, consumer domains, phone prefixes, vocative tables
// ABOUTME: Rules are plain values loaded once and handed to a Normalizer, optionally overlaid from YAML
package normalize

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// SuffixRule rewrites the end of a lower-cased first name into vocative form.
type SuffixRule struct {
	// Suffixes are matched against the end of the name; the first rule with a match wins.
	Suffixes []string `yaml:"suffixes"`
	// Strip is the number of trailing runes removed before Append is added.
	Strip  int    `yaml:"strip"`
	Append string `yaml:"append"`
}

// Rules is everything the Normalizer consults.
type Rules struct {
	// CompanySuffixes are trailing word sequences removed from company keys,
	// written with punctuation ("s.r.o.") or spaces ("czech republic").
	CompanySuffixes []string `yaml:"company_suffixes"`
	// ConsumerDomains carry no company signal.
	ConsumerDomains []string `yaml:"consumer_domains"`
	// PhonePrefixes are national calling codes stripped from the front, first match wins.
	PhonePrefixes  []string `yaml:"phone_prefixes"`
	MinPhoneDigits int      `yaml:"min_phone_digits"`
	// SignificantWordRunes is the minimum length of a word that counts for company overlap.
	SignificantWordRunes int `yaml:"significant_word_runes"`
	// PlaceholderCompanies are company cell values that name no company ("-", "n/a", "OSVČ").
	PlaceholderCompanies []string `yaml:"placeholder_companies"`

	Vocatives      map[string]string `yaml:"vocatives"`
	VocativeRules  []SuffixRule      `yaml:"vocative_rules"`
	Titles         []string          `yaml:"titles"`
	SurnameEndings []string          `yaml:"surname_endings"`
}

// DefaultRules returns a fresh copy of the built-in rules.
func DefaultRules() Rules {
	return Rules{
		CompanySuffixes: []string{
			"s.r.o.", "spol. s r.o.", "a.s.", "spol.", "k.s.", "v.o.s.", "z.s.", "o.p.s.",
			"gmbh", "ltd", "inc", "n.v.", "ag", "se", "plc", "llc", "sa", "corp",
			"czech republic", "česká republika", "czech", "slovakia", "slovensko", "cz", "sk",
			"group", "holding", "pharma",
		},
		ConsumerDomains: []string{
			"gmail.com", "googlemail.com", "seznam.cz", "email.cz", "centrum.cz", "post.cz",
			"volny.cz", "atlas.cz", "tiscali.cz", "quick.cz", "outlook.com", "hotmail.com",
			"live.com", "msn.com", "yahoo.com", "icloud.com", "me.com", "protonmail.com",
			"proton.me", "azet.sk", "zoznam.sk",
		},
		PhonePrefixes:        []string{"00420", "420", "00421", "421"},
		MinPhoneDigits:       9,
		SignificantWordRunes: 3,
		PlaceholderCompanies: []string{
			"-", "--", "x", "?", "#error!", "tbd", "n/a", "na", "none", "nezaměstnaný", "nezaměstnaná",
			"osvč", "soukromá osoba", "soukromý", "vlastní podnikání", "student", "studentka",
		},
		Vocatives:            defaultVocatives(),
		VocativeRules: []SuffixRule{
			{Suffixes: []string{"ia", "ie", "e", "i", "y", "o", "u"}},
			{Suffixes: []string{"a"}, Strip: 1, Append: "o"},
			{Suffixes: []string{"ek"}, Strip: 2, Append: "ku"},
			{Suffixes: []string{"ec"}, Strip: 2, Append: "če"},
			{Suffixes: []string{"ch", "k", "g", "h"}, Append: "u"},
			{Suffixes: []string{"c", "č", "š", "ž", "ř", "j", "s", "x", "z"}, Append: "i"},
			{Suffixes: []string{"b", "d", "f", "l", "m", "n", "p", "r", "t", "v", "w"}, Append: "e"},
		},
		Titles: []string{
			"ing.", "ing", "mgr.", "mgr", "bc.", "bc", "phdr.", "mudr.", "judr.", "rndr.", "paeddr.",
			"doc.", "prof.", "dr.", "mba", "ph.d.", "phd.", "phd", "csc.", "dis.", "msc.", "msc",
		},
		SurnameEndings: []string{
			"ová", "ský", "ská", "cký", "cká", "ek", "ec", "ík", "ič", "ač", "ář", "eř", "íř", "ůř", "ej",
		},
	}
}

// LoadRules reads a YAML file and overlays it on DefaultRules. Lists in the
// file replace the defaults; vocative entries are added to the built-in table.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("failed to read rules file: %w", err)
	}

	var overlay Rules
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return rules, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	if len(overlay.CompanySuffixes) > 0 {
		rules.CompanySuffixes = overlay.CompanySuffixes
	}
	if len(overlay.ConsumerDomains) > 0 {
		rules.ConsumerDomains = overlay.ConsumerDomains
	}
	if len(overlay.PhonePrefixes) > 0 {
		rules.PhonePrefixes = overlay.PhonePrefixes
	}
	if overlay.MinPhoneDigits > 0 {
		rules.MinPhoneDigits = overlay.MinPhoneDigits
	}
	if overlay.SignificantWordRunes > 0 {
		rules.SignificantWordRunes = overlay.SignificantWordRunes
	}
	if len(overlay.PlaceholderCompanies) > 0 {
		rules.PlaceholderCompanies = overlay.PlaceholderCompanies
	}
	maps.Copy(rules.Vocatives, overlay.Vocatives)
	if len(overlay.VocativeRules) > 0 {
		rules.VocativeRules = overlay.VocativeRules
	}
	if len(overlay.Titles) > 0 {
		rules.Titles = overlay.Titles
	}
	if len(overlay.SurnameEndings) > 0 {
		rules.SurnameEndings = overlay.SurnameEndings
	}

	return rules, nil
}

// Clone returns a deep copy.
func (r Rules) Clone() Rules {
	out := r
	out.CompanySuffixes = slices.Clone(r.CompanySuffixes)
	out.ConsumerDomains = slices.Clone(r.ConsumerDomains)
	out.PhonePrefixes = slices.Clone(r.PhonePrefixes)
	out.PlaceholderCompanies = slices.Clone(r.PlaceholderCompanies)
	out.Vocatives = maps.Clone(r.Vocatives)
	out.VocativeRules = slices.Clone(r.VocativeRules)
	out.Titles = slices.Clone(r.Titles)
	out.SurnameEndings = slices.Clone(r.SurnameEndings)
	return out
}

// defaultVocatives maps lower-cased first names to their vocative.
// Names whose vocative the suffix rules already produce are listed anyway
// when they are common, so the table documents the expected output.
func defaultVocatives() map[string]string {
	return map[string]string{
		// male
		"jan": "jane", "pavel": "pavle", "karel": "karle", "josef": "josefe",
		"petr": "petře", "tomáš": "tomáši", "martin": "martine", "jakub": "jakube",
		"ondřej": "ondřeji", "david": "davide", "adam": "adame", "michal": "michale",
		"lukáš": "lukáši", "filip": "filipe", "marek": "marku", "jiří": "jiří",
		"vojtěch": "vojtěchu", "matěj": "matěji", "daniel": "danieli", "radek": "radku",
		"milan": "milane", "jaroslav": "jaroslave", "zdeněk": "zdeňku", "václav": "václave",
		"vladimír": "vladimíre", "stanislav": "stanislave", "roman": "romane",
		"aleš": "aleši", "libor": "libore", "oldřich": "oldřichu", "miroslav": "miroslave",
		"ladislav": "ladislave", "patrik": "patriku", "richard": "richarde",
		"robert": "roberte", "viktor": "viktore", "štěpán": "štěpáne",
		"dominik": "dominiku", "matyáš": "matyáši", "šimon": "šimone",
		"antonín": "antoníne", "františek": "františku", "bohumil": "bohumile",
		"igor": "igore", "boris": "borisi", "denis": "denisi", "michael": "michaeli",
		"radim": "radime", "miloš": "miloši", "leoš": "leoši", "otakar": "otakare",
		"svatopluk": "svatopluku", "bronislav": "bronislave", "vašek": "vašku",
		"honza": "honzo", "míra": "míro", "jirka": "jirko", "péťa": "péťo", "kuba": "kubo",
		"tonda": "tondo", "franta": "franto", "thomas": "thomasi", "darko": "darko",
		"szymon": "szymone", "bogdan": "bogdane", "arkadiusz": "arkadiuszi",
		"přemysl": "přemysle", "kamil": "kamile", "vít": "víte", "ivan": "ivane",
		"jindřich": "jindřichu", "zbyněk": "zbyňku", "hynek": "hynku", "luboš": "luboši", "dušan": "dušane", "rostislav": "rostislave",
		// female
		"jana": "jano", "marie": "marie", "eva": "evo", "anna": "anno",
		"hana": "hano", "lenka": "lenko", "kateřina": "kateřino", "lucie": "lucie",
		"petra": "petro", "martina": "martino", "tereza": "terezo", "michaela": "michaelo",
		"veronika": "veroniko", "barbora": "barboro", "markéta": "markéto",
		"alena": "aleno", "helena": "heleno", "ivana": "ivano", "monika": "moniko",
		"zuzana": "zuzano", "jitka": "jitko", "věra": "věro", "daniela": "danielo",
		"simona": "simono", "renata": "renato", "nicole": "nicole", "natálie": "natálie",
		"kristýna": "kristýno", "adéla": "adélo", "nikola": "nikolo",
		"karolína": "karolíno", "eliška": "eliško", "vendula": "vendulo",
		"klára": "kláro", "šárka": "šárko", "diana": "diano", "silvie": "silvie",
		"olga": "olgo", "vanda": "vando", "miriam": "miriam", "dagmar": "dagmar",
		"ingrid": "ingrid", "karin": "karin", "carmen": "carmen", "ester": "ester",
		"lea": "leo", "gabriela": "gabrielo", "pavla": "pavlo", "romana": "romano",
		"irena": "ireno", "ilona": "ilono", "blanka": "blanko", "dana": "dano",
	}
}
