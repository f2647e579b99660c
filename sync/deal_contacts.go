// ABOUTME: Connects deals and companies to contact records: deal contact links, HR links,
// ABOUTME: and new contacts for deal people the contacts table does not know yet
package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/kontakty/airtable"
	"github.com/harperreed/kontakty/merge"
	"github.com/harperreed/kontakty/models"
)

// DealContactOptions controls LinkDealContacts and CreateContactsFromDeals.
type DealContactOptions struct {
	DryRun bool
	Limit  int
}

// DealLinkSummary reports a LinkDealContacts run.
type DealLinkSummary struct {
	Table         string
	Scanned       int
	AlreadyLinked int
	NoContact     int
	ByEmail       int
	ByPhone       int
	Unmatched     int
	DryRun        bool
}

func (s DealLinkSummary) String() string {
	verb := "linked"
	if s.DryRun {
		verb = "to link"
	}
	return fmt.Sprintf("%s: %d %s by email, %d by phone, %d unmatched, %d already linked, %d without email or phone (of %d)",
		s.Table, s.ByEmail, verb, s.ByPhone, s.Unmatched, s.AlreadyLinked, s.NoContact, s.Scanned)
}

// loadContactMatcher indexes the contacts table by email and phone.
func (r *Runner) loadContactMatcher(ctx context.Context) (*ContactMatcher, error) {
	c := r.Schema.Contacts
	_, records, err := r.fetch(ctx, c.Table, airtable.WithFields(c.Email, c.Phone))
	if err != nil {
		return nil, fmt.Errorf("failed to load contacts: %w", err)
	}
	return NewContactMatcher(r.Norm, records, c.Email, c.Phone), nil
}

// LinkDealContacts fills the contact link of deals that have none, matching
// the deal email first and its phone second.
func (r *Runner) LinkDealContacts(ctx context.Context, opts DealContactOptions) (*DealLinkSummary, error) {
	matcher, err := r.loadContactMatcher(ctx)
	if err != nil {
		return nil, err
	}

	d := r.Schema.Deals
	table, deals, err := r.fetch(ctx, d.Table, airtable.WithFields(d.Email, d.Phone, d.ContactLink))
	if err != nil {
		return nil, err
	}
	deals = limitRecords(deals, opts.Limit)
	summary := &DealLinkSummary{Table: table, Scanned: len(deals), DryRun: opts.DryRun}

	var updates []airtable.Record
	for _, rec := range deals {
		if rec.Fields.Has(d.ContactLink) {
			summary.AlreadyLinked++
			continue
		}
		email, phone := trimmed(rec.Fields, d.Email), trimmed(rec.Fields, d.Phone)
		if email == "" && phone == "" {
			summary.NoContact++
			continue
		}

		id, ok := matcher.FindByEmail(email)
		if ok {
			summary.ByEmail++
		} else if id, ok = matcher.FindByPhone(phone); ok {
			summary.ByPhone++
		} else {
			summary.Unmatched++
			r.Logger.Debug("no contact for deal", "record", rec.ID, "email", email)
			continue
		}
		updates = append(updates, airtable.Record{ID: rec.ID, Fields: airtable.Fields{d.ContactLink: []string{id}}})
	}

	if opts.DryRun || len(updates) == 0 {
		return summary, nil
	}
	if _, err := r.Store.Update(ctx, table, updates); err != nil {
		return summary, fmt.Errorf("failed to link deal contacts: %w", err)
	}
	return summary, nil
}

// NewContact is a contact CreateContactsFromDeals creates.
type NewContact struct {
	DealID string
	Fields airtable.Fields
}

// CreateContactsSummary reports a CreateContactsFromDeals run.
type CreateContactsSummary struct {
	Table string
	// Scanned counts deals.
	Scanned    int
	Existing   int
	Incomplete int
	Created    []NewContact
	DryRun     bool
}

func (s CreateContactsSummary) String() string {
	verb := "created"
	if s.DryRun {
		verb = "to create"
	}
	return fmt.Sprintf("%s: %d contacts %s, %d already exist, %d deals without name or email (of %d deals)",
		s.Table, len(s.Created), verb, s.Existing, s.Incomplete, s.Scanned)
}

// CreateContactsFromDeals creates a contact for every deal person with an
// email that no contact has. New contacts are tagged as inquiries and get a
// salutation; one email yields one contact even when several deals carry it.
func (r *Runner) CreateContactsFromDeals(ctx context.Context, opts DealContactOptions) (*CreateContactsSummary, error) {
	matcher, err := r.loadContactMatcher(ctx)
	if err != nil {
		return nil, err
	}
	c, d := r.Schema.Contacts, r.Schema.Deals
	contacts, err := r.Store.ResolveTableName(ctx, c.Table)
	if err != nil {
		return nil, err
	}

	_, deals, err := r.fetch(ctx, d.Table, airtable.WithFields(d.Person, d.Email, d.Phone, d.Company))
	if err != nil {
		return nil, err
	}
	deals = limitRecords(deals, opts.Limit)
	summary := &CreateContactsSummary{Table: contacts, Scanned: len(deals), DryRun: opts.DryRun}

	for _, rec := range deals {
		email := r.Norm.FirstEmail(rec.Fields.String(d.Email))
		person := rec.Fields.String(d.Person)
		first, last := r.Norm.SplitFullName(person)
		// "Nováková Jana" is stored surname first.
		if given := r.Norm.FirstName(person); given != first {
			first, last = given, first
		}
		if email == "" || first == "" {
			summary.Incomplete++
			continue
		}
		if _, ok := matcher.FindByEmail(email); ok {
			summary.Existing++
			continue
		}
		phone := trimmed(rec.Fields, d.Phone)
		matcher.Add(rec.ID, email, phone)

		fields := airtable.Fields{
			c.FirstName: first,
			c.Email:     email,
			c.Origin:    []string{models.OriginInquiry},
		}
		if last != "" {
			fields[c.LastName] = last
		}
		if v := r.Norm.Vocative(first); v != "" {
			fields[c.Salutation] = v
		}
		if phone != "" {
			fields[c.Phone] = phone
		}
		if company := trimmed(rec.Fields, d.Company); company != "" && !r.Norm.IsPlaceholderCompany(company) {
			fields[c.Company] = company
		}
		summary.Created = append(summary.Created, NewContact{DealID: rec.ID, Fields: fields})
	}

	if opts.DryRun || len(summary.Created) == 0 {
		return summary, nil
	}
	batch := make([]airtable.Fields, len(summary.Created))
	for i, nc := range summary.Created {
		batch[i] = nc.Fields
	}
	created, err := r.Store.Create(ctx, contacts, batch)
	if err != nil {
		summary.Created = summary.Created[:len(created)]
		return summary, fmt.Errorf("failed to create contacts: %w", err)
	}
	r.Logger.Info("created contacts from deals", "table", contacts, "count", len(created))
	return summary, nil
}

// HRLinkSummary reports a LinkHRContacts run.
type HRLinkSummary struct {
	Table string
	// HRContacts counts HR contacts that are linked to a company.
	HRContacts int
	Companies  int
	Unchanged  int
	Missing    int
	Updated    int
	DryRun     bool
}

func (s HRLinkSummary) String() string {
	verb := "updated"
	if s.DryRun {
		verb = "to update"
	}
	return fmt.Sprintf("%s: %d companies %s, %d unchanged, %d unknown (%d HR contacts)",
		s.Table, s.Updated, verb, s.Unchanged, s.Missing, s.HRContacts)
}

// LinkHRContacts adds every contact whose department includes HR to the HR
// contact links of the companies that contact belongs to. Existing HR links stay.
func (r *Runner) LinkHRContacts(ctx context.Context, dryRun bool) (*HRLinkSummary, error) {
	c, k := r.Schema.Contacts, r.Schema.Companies
	_, contacts, err := r.fetch(ctx, c.Table, airtable.WithFields(c.Department, c.CompanyLink))
	if err != nil {
		return nil, fmt.Errorf("failed to load contacts: %w", err)
	}

	hrByCompany := map[string][]string{}
	var order []string
	hrCount := 0
	for _, rec := range contacts {
		if !isHR(rec.Fields.Strings(c.Department)) {
			continue
		}
		companies := rec.Fields.Strings(c.CompanyLink)
		if len(companies) == 0 {
			continue
		}
		hrCount++
		for _, id := range companies {
			if _, ok := hrByCompany[id]; !ok {
				order = append(order, id)
			}
			hrByCompany[id] = appendMissing(hrByCompany[id], rec.ID)
		}
	}

	table, companies, err := r.fetch(ctx, k.Table, airtable.WithFields(k.HRContacts))
	if err != nil {
		return nil, fmt.Errorf("failed to load companies: %w", err)
	}
	summary := &HRLinkSummary{Table: table, HRContacts: hrCount, Companies: len(order), DryRun: dryRun}
	byID := make(map[string]airtable.Record, len(companies))
	for _, rec := range companies {
		byID[rec.ID] = rec
	}

	policy := merge.Policy{Default: merge.Union}
	var updates []airtable.Record
	for _, id := range order {
		company, ok := byID[id]
		if !ok {
			summary.Missing++
			r.Logger.Warn("HR contact linked to unknown company", "company", id)
			continue
		}
		existing := merge.Fields{}
		if ids := company.Fields.Strings(k.HRContacts); len(ids) > 0 {
			existing[k.HRContacts] = ids
		}
		merged, changed := policy.Apply(existing, merge.Fields{k.HRContacts: hrByCompany[id]})
		if len(changed) == 0 {
			summary.Unchanged++
			continue
		}
		summary.Updated++
		updates = append(updates, airtable.Record{ID: id, Fields: airtable.Fields{k.HRContacts: merged[k.HRContacts]}})
	}

	if dryRun || len(updates) == 0 {
		return summary, nil
	}
	if _, err := r.Store.Update(ctx, table, updates); err != nil {
		return summary, fmt.Errorf("failed to link HR contacts: %w", err)
	}
	return summary, nil
}

func isHR(departments []string) bool {
	for _, dep := range departments {
		if strings.EqualFold(strings.TrimSpace(dep), models.HRDepartment) {
			return true
		}
	}
	return false
}
