// ABOUTME: Phone, email and domain keys for contact matching
// ABOUTME: Phone keys ignore national prefixes so local and international forms collide
package normalize

import (
	"strings"
	"unicode"
)

// Phone returns the digits of raw without a leading national prefix, or ""
// when fewer than the minimum local digits remain.
func (n *Normalizer) Phone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	for _, prefix := range n.rules.PhonePrefixes {
		if strings.HasPrefix(digits, prefix) {
			digits = digits[len(prefix):]
			break
		}
	}

	if len(digits) < n.rules.MinPhoneDigits {
		return ""
	}
	return digits
}

// Email trims and lower-cases an address.
func (n *Normalizer) Email(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// FirstEmail returns the first plausible address in a cell that may hold several.
func (n *Normalizer) FirstEmail(raw string) string {
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	}) {
		part = strings.Trim(part, "<>\"'()")
		if strings.Contains(part, "@") && strings.Contains(part, ".") {
			return n.Email(part)
		}
	}
	return ""
}

// Domain returns the part after the last "@", lower-cased.
func (n *Normalizer) Domain(email string) string {
	email = n.Email(email)
	i := strings.LastIndex(email, "@")
	if i < 0 || i == len(email)-1 {
		return ""
	}
	return email[i+1:]
}

// CompanyDomain returns the email's domain unless it belongs to a consumer mail provider.
func (n *Normalizer) CompanyDomain(email string) string {
	d := n.Domain(email)
	if d == "" || n.consumer[d] {
		return ""
	}
	return d
}

// IsConsumerDomain reports whether d is on the consumer provider list.
func (n *Normalizer) IsConsumerDomain(d string) bool {
	return n.consumer[strings.ToLower(strings.TrimSpace(d))]
}
