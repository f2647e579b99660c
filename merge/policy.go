// ABOUTME: Declared per-field merge policy for combining two versions of a record
// ABOUTME: Strategies decide which value survives when sources disagree
package merge

import (
	"fmt"
	"slices"
	"strings"
)

// Strategy names how one field is merged.
type Strategy string

const (
	// PreferExisting keeps the current value unless it is empty.
	PreferExisting Strategy = "prefer-existing"
	// PreferIncoming takes the new value unless it is empty.
	PreferIncoming Strategy = "prefer-incoming"
	// PreferLonger keeps whichever text is longer.
	PreferLonger Strategy = "prefer-longer"
	// Union keeps every distinct value, in first-seen order.
	Union Strategy = "union"
	// Overwrite always takes the new value, even an empty one.
	Overwrite Strategy = "overwrite"
	// Append keeps both texts joined by AppendSeparator, unless one already
	// contains the other.
	Append Strategy = "append"
)

// AppendSeparator sits between texts kept by Append.
const AppendSeparator = "\n---\n"

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.TrimSpace(strings.ToLower(s))); st {
	case PreferExisting, PreferIncoming, PreferLonger, Union, Overwrite, Append:
		return st, nil
	}
	return "", fmt.Errorf("unknown merge strategy %q", s)
}

// Fields is a record's field map, the same shape the remote table uses.
type Fields = map[string]any

// Policy maps field names to strategies.
type Policy struct {
	Default Strategy            `yaml:"default"`
	Fields  map[string]Strategy `yaml:"fields"`
	// Separator splits and joins text values of Union fields; "; " when empty.
	Separator string `yaml:"separator"`
}

// For returns the strategy for a field.
func (p Policy) For(field string) Strategy {
	if s, ok := p.Fields[field]; ok {
		return s
	}
	if p.Default == "" {
		return PreferExisting
	}
	return p.Default
}

func (p Policy) separator() string {
	if p.Separator == "" {
		return "; "
	}
	return p.Separator
}

// Apply merges incoming into existing and returns the merged fields plus the
// sorted names of fields whose value changed. existing is not modified.
func (p Policy) Apply(existing, incoming Fields) (Fields, []string) {
	out := make(Fields, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}

	var changed []string
	for name, in := range incoming {
		cur, had := existing[name]
		merged := p.mergeValue(p.For(name), cur, in)
		if merged == nil {
			continue
		}
		if !had || !equal(cur, merged) {
			out[name] = merged
			changed = append(changed, name)
		}
	}

	slices.Sort(changed)
	return out, changed
}

// mergeValue returns nil when the field should be left alone.
func (p Policy) mergeValue(s Strategy, cur, in any) any {
	switch s {
	case Overwrite:
		return in
	case PreferIncoming:
		if isEmpty(in) {
			return nil
		}
		return in
	case PreferLonger:
		if isEmpty(in) {
			return nil
		}
		if isEmpty(cur) || len([]rune(text(in))) > len([]rune(text(cur))) {
			return in
		}
		return nil
	case Union:
		if isEmpty(in) {
			return nil
		}
		return p.union(cur, in)
	case Append:
		if isEmpty(in) {
			return nil
		}
		if isEmpty(cur) {
			return in
		}
		c, i := strings.TrimSpace(text(cur)), strings.TrimSpace(text(in))
		switch {
		case strings.Contains(c, i):
			return nil
		case strings.Contains(i, c):
			return in
		}
		return c + AppendSeparator + i
	default:
		if !isEmpty(cur) || isEmpty(in) {
			return nil
		}
		return in
	}
}

// union keeps the shape of the current value: lists stay lists, text stays joined text.
func (p Policy) union(cur, in any) any {
	var items []string
	seen := map[string]bool{}
	add := func(v any) {
		for _, s := range p.values(v) {
			key := strings.ToLower(s)
			if !seen[key] {
				seen[key] = true
				items = append(items, s)
			}
		}
	}
	add(cur)
	add(in)

	_, curIsText := cur.(string)
	_, inIsText := in.(string)
	if (cur == nil || curIsText) && inIsText {
		return strings.Join(items, p.separator())
	}
	return items
}

// values splits a field value into trimmed non-empty strings.
func (p Policy) values(v any) []string {
	var raw []string
	switch x := v.(type) {
	case nil:
	case string:
		sep := strings.TrimSpace(p.separator())
		raw = strings.Split(x, sep)
	case []string:
		raw = x
	case []any:
		for _, item := range x {
			raw = append(raw, fmt.Sprint(item))
		}
	default:
		raw = []string{fmt.Sprint(x)}
	}

	out := raw[:0:0]
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Values returns the distinct non-empty values of a field as the policy sees them.
func (p Policy) Values(v any) []string {
	return p.values(v)
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []string:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

func text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func equal(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}
