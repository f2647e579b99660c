// ABOUTME: Read-only duplicate report for contacts: shared phones, shared emails,
// ABOUTME: and company email domains whose contacts disagree on the company name
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/harperreed/kontakty/airtable"
)

// ContactRef identifies a contact in a report.
type ContactRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
}

// ContactGroup is a set of contacts sharing a key.
type ContactGroup struct {
	Key      string       `json:"key"`
	Contacts []ContactRef `json:"contacts"`
}

// DomainGroup is a company domain whose contacts name different companies.
type DomainGroup struct {
	Domain    string       `json:"domain"`
	Companies []string     `json:"companies"`
	Contacts  []ContactRef `json:"contacts"`
}

// DuplicateReport is the result of FindDuplicates.
type DuplicateReport struct {
	Contacts int            `json:"contacts"`
	Phones   []ContactGroup `json:"phones"`
	Emails   []ContactGroup `json:"emails"`
	Domains  []DomainGroup  `json:"domains"`
}

func (d DuplicateReport) String() string {
	return fmt.Sprintf("%d phone groups, %d email groups, %d domains with differing company names (of %d contacts)",
		len(d.Phones), len(d.Emails), len(d.Domains), d.Contacts)
}

// WriteJSON writes the report as indented JSON.
func (d DuplicateReport) WriteJSON(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// FindDuplicates groups contacts by normalized phone, by email, and by company domain.
func (r *Runner) FindDuplicates(ctx context.Context) (*DuplicateReport, error) {
	c := r.Schema.Contacts
	_, records, err := r.fetch(ctx, c.Table,
		airtable.WithFields(c.FirstName, c.LastName, c.Email, c.Phone, c.Company))
	if err != nil {
		return nil, err
	}

	report := &DuplicateReport{
		Contacts: len(records),
		Phones:   []ContactGroup{},
		Emails:   []ContactGroup{},
		Domains:  []DomainGroup{},
	}
	byPhone := make(map[string][]ContactRef)
	byEmail := make(map[string][]ContactRef)
	byDomain := make(map[string][]ContactRef)

	for _, rec := range records {
		ref := ContactRef{
			ID:      rec.ID,
			Name:    strings.TrimSpace(trimmed(rec.Fields, c.FirstName) + " " + trimmed(rec.Fields, c.LastName)),
			Email:   trimmed(rec.Fields, c.Email),
			Phone:   trimmed(rec.Fields, c.Phone),
			Company: trimmed(rec.Fields, c.Company),
		}

		phones := map[string]bool{}
		for _, p := range splitList(ref.Phone) {
			if key := r.Norm.Phone(p); key != "" && !phones[key] {
				phones[key] = true
				byPhone[key] = append(byPhone[key], ref)
			}
		}
		if email := r.Norm.FirstEmail(ref.Email); email != "" {
			byEmail[email] = append(byEmail[email], ref)
			if domain := r.Norm.CompanyDomain(email); domain != "" {
				byDomain[domain] = append(byDomain[domain], ref)
			}
		}
	}

	report.Phones = groupsOf(byPhone)
	report.Emails = groupsOf(byEmail)

	for _, domain := range sortedKeys(byDomain) {
		refs := byDomain[domain]
		if len(refs) < 2 {
			continue
		}
		var names []string
		keys := map[string]bool{}
		for _, ref := range refs {
			key := r.Norm.Company(ref.Company)
			if key == "" || keys[key] {
				continue
			}
			keys[key] = true
			names = append(names, ref.Company)
		}
		if len(names) > 1 {
			report.Domains = append(report.Domains, DomainGroup{Domain: domain, Companies: names, Contacts: refs})
		}
	}

	return report, nil
}

func groupsOf(m map[string][]ContactRef) []ContactGroup {
	groups := []ContactGroup{}
	for _, key := range sortedKeys(m) {
		if len(m[key]) > 1 {
			groups = append(groups, ContactGroup{Key: key, Contacts: m[key]})
		}
	}
	return groups
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
