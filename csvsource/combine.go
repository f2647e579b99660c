// ABOUTME: Combines rows from many exports into one contact per email address
// ABOUTME: Field conflicts are settled by the configured merge policy
package csvsource

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/harperreed/kontakty/merge"
	"github.com/harperreed/kontakty/normalize"
)

const (
	// BouncedStatus is written to Stav for addresses on the bounce list.
	BouncedStatus = "Bounced"
	// OptionSeparator joins multi-select options, the form the upsert splits.
	OptionSeparator = ", "
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)
	namePattern  = regexp.MustCompile(`([A-ZÁČĎÉĚÍŇÓŘŠŤÚŮÝŽ][a-záčďéěíňóřšťúůýž]+(?:\s+[A-ZÁČĎÉĚÍŇÓŘŠŤÚŮÝŽ][a-záčďéěíňóřšťúůýž]+)*)\s*[,:]?\s*$`)
)

// Combiner accumulates contacts keyed by normalized email.
type Combiner struct {
	norm       *normalize.Normalizer
	policy     merge.Policy
	aliases    map[string]string
	hrKeywords []string
	bounced    map[string]bool

	order   []string
	byEmail map[string]merge.Fields
}

// CombineStats counts what Add did with a batch of rows.
type CombineStats struct {
	New     int
	Merged  int
	NoEmail int
}

// NewCombiner builds an empty combiner.
func NewCombiner(n *normalize.Normalizer, cfg Config) *Combiner {
	aliases := make(map[string]string, len(cfg.ProgramAliases))
	for k, v := range cfg.ProgramAliases {
		aliases[strings.ToLower(strings.TrimSpace(k))] = v
	}
	policy, err := withDefaultPolicy(cfg.Merge)
	if err != nil {
		// LoadConfig reports bad strategies; hand-built configs fall back.
		policy = DefaultPolicy()
	}
	keywords := cfg.HRKeywords
	if len(keywords) == 0 {
		keywords = DefaultHRKeywords()
	}
	return &Combiner{
		norm:       n,
		policy:     policy,
		aliases:    aliases,
		hrKeywords: keywords,
		bounced:    map[string]bool{},
		byEmail:    map[string]merge.Fields{},
	}
}

// MarkBounced flags addresses whose mail bounced.
func (c *Combiner) MarkBounced(emails ...string) {
	for _, e := range emails {
		if key := c.norm.FirstEmail(e); key != "" {
			c.bounced[key] = true
		}
	}
}

// Program returns the program label for a format: its explicit Program, or
// one derived from the file name, passed through the alias table.
func (c *Combiner) Program(f Format) string {
	p := f.Program
	if p == "" {
		p = strings.TrimSuffix(filepath.Base(f.File), filepath.Ext(f.File))
		p = strings.TrimSpace(strings.TrimSuffix(strings.ToLower(p), " - list 1"))
	}
	if alias, ok := c.aliases[strings.ToLower(p)]; ok {
		return alias
	}
	return p
}

// Add merges rows read with format f.
func (c *Combiner) Add(f Format, rows []Row) CombineStats {
	var stats CombineStats
	program := c.Program(f)

	for _, row := range rows {
		email := c.norm.FirstEmail(row.Get(FieldEmail))
		if email == "" {
			stats.NoEmail++
			continue
		}

		incoming := merge.Fields{FieldEmail: email}
		first, last := row.Get(FieldFirstName), row.Get(FieldLastName)
		if last == "" && strings.Contains(first, " ") {
			first, last = c.norm.SplitFullName(first)
		}
		setText(incoming, FieldFirstName, first)
		setText(incoming, FieldLastName, last)
		for _, field := range []string{FieldSalutation, FieldPhone, FieldPosition, FieldCompany, FieldStatus} {
			setText(incoming, field, row.Get(field))
		}
		setText(incoming, FieldLinkedIn, c.linkedIn(row))
		setText(incoming, FieldPrograms, program)

		var hr []string
		for _, i := range f.NoteColumns {
			if i >= 0 && i < len(row.Cells) {
				hr = append(hr, c.hrContacts(row.Cells[i])...)
			}
		}
		setText(incoming, FieldHRContact, strings.Join(hr, "; "))

		existing, ok := c.byEmail[email]
		if !ok {
			c.order = append(c.order, email)
			existing = merge.Fields{}
			stats.New++
		} else {
			stats.Merged++
		}
		merged, _ := c.policy.Apply(existing, incoming)
		c.byEmail[email] = merged
	}

	return stats
}

// Len is the number of distinct contacts.
func (c *Combiner) Len() int {
	return len(c.order)
}

// Sheet returns the combined contacts in unified column order. Rows with a
// surname come first, sorted by surname and first name; the rest by email.
func (c *Combiner) Sheet() *Sheet {
	rows := make([]map[string]string, 0, len(c.order))
	for _, email := range c.order {
		fields := c.byEmail[email]
		row := make(map[string]string, len(UnifiedColumns))
		for _, col := range UnifiedColumns {
			sep := "; "
			if col == FieldPrograms {
				sep = OptionSeparator
			}
			row[col] = strings.Join(c.policy.Values(fields[col]), sep)
		}
		// Single-valued fields keep separators they came with.
		for _, col := range []string{FieldFirstName, FieldLastName, FieldEmail} {
			row[col] = fmt.Sprint(valueOr(fields[col], ""))
		}
		if c.bounced[email] {
			row[FieldStatus] = BouncedStatus
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		aNamed, bNamed := a[FieldLastName] != "", b[FieldLastName] != ""
		if aNamed != bNamed {
			return aNamed
		}
		if aNamed {
			ka := normalize.Fold(a[FieldLastName] + " " + a[FieldFirstName])
			kb := normalize.Fold(b[FieldLastName] + " " + b[FieldFirstName])
			if ka != kb {
				return ka < kb
			}
		}
		return a[FieldEmail] < b[FieldEmail]
	})

	return &Sheet{Header: append([]string(nil), UnifiedColumns...), Rows: rows}
}

// linkedIn takes the declared column, or failing that the first profile link
// found anywhere in the row.
func (c *Combiner) linkedIn(row Row) string {
	if u := c.norm.LinkedInURL(row.Get(FieldLinkedIn)); u != "" {
		return u
	}
	for _, cell := range row.Cells {
		if !strings.Contains(strings.ToLower(cell), "linkedin.com/in/") {
			continue
		}
		for _, token := range strings.Fields(cell) {
			if u := c.norm.LinkedInURL(strings.Trim(token, "<>()\"',;")); u != "" {
				return u
			}
		}
	}
	return ""
}

// hrContacts finds addresses in free text that sit near an HR keyword,
// returned as "Name (email)" when a capitalized name precedes the address.
func (c *Combiner) hrContacts(text string) []string {
	var found []string
	seen := map[string]bool{}
	for _, loc := range emailPattern.FindAllStringIndex(text, -1) {
		email := text[loc[0]:loc[1]]
		snippet := strings.ToLower(text[max(0, loc[0]-80):min(len(text), loc[1]+40)])
		if !c.mentionsHR(snippet) {
			continue
		}
		entry := email
		if m := namePattern.FindStringSubmatch(text[:loc[0]]); m != nil {
			entry = fmt.Sprintf("%s (%s)", strings.TrimSpace(m[1]), email)
		}
		if !seen[entry] {
			seen[entry] = true
			found = append(found, entry)
		}
	}
	return found
}

func (c *Combiner) mentionsHR(snippet string) bool {
	for _, kw := range c.hrKeywords {
		kw = strings.ToLower(kw)
		if len([]rune(kw)) <= 2 {
			// short keywords must stand alone ("HR", not "chrome")
			for _, w := range strings.FieldsFunc(snippet, func(r rune) bool {
				return !('a' <= r && r <= 'z')
			}) {
				if w == kw {
					return true
				}
			}
			continue
		}
		if strings.Contains(snippet, kw) {
			return true
		}
	}
	return false
}

func setText(f merge.Fields, field, v string) {
	if v = strings.TrimSpace(v); v != "" {
		f[field] = v
	}
}

func valueOr(v any, def any) any {
	if v == nil {
		return def
	}
	return v
}
