// ABOUTME: Table and field names of the CRM base plus the CSV-to-table field mapping
// ABOUTME: Defaults match the production base; every name can be overridden from config
package models

// ContactsTable names the contacts table and its fields.
type ContactsTable struct {
	Table       string `json:"table"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Salutation  string `json:"salutation"`
	Company     string `json:"company"`
	Position    string `json:"position"`
	LinkedIn    string `json:"linkedin"`
	Programs    string `json:"programs"`
	HRContact   string `json:"hr_contact"`
	Status      string `json:"status"`
	CompanyLink string `json:"company_link"`
	DealLink    string `json:"deal_link"`
	// Department is a multi-select; contacts tagged HRDepartment are HR contacts.
	Department string `json:"department"`
	// Origin tags how a contact entered the base (program, deal, inquiry).
	Origin string `json:"origin"`
}

// CompaniesTable names the companies table and its fields.
type CompaniesTable struct {
	Table        string `json:"table"`
	Name         string `json:"name"`
	ContactLinks string `json:"contact_links"`
	DealLinks    string `json:"deal_links"`
	HRContacts   string `json:"hr_contacts"`
}

// DealsTable names the deals table and its fields.
type DealsTable struct {
	Table       string `json:"table"`
	Name        string `json:"name"`
	Person      string `json:"person"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Company     string `json:"company"`
	CompanyLink string `json:"company_link"`
	ContactLink string `json:"contact_link"`
	Interest    string `json:"interest"`
	Outcome     string `json:"outcome"`
	Notes       string `json:"notes"`
	Owner       string `json:"owner"`
}

// Schema is the whole base layout.
type Schema struct {
	Contacts  ContactsTable  `json:"contacts"`
	Companies CompaniesTable `json:"companies"`
	Deals     DealsTable     `json:"deals"`

	// FieldMapping renames unified CSV columns to contact table fields.
	FieldMapping map[string]string `json:"field_mapping,omitempty"`
	// MultiSelect lists contact fields whose CSV text is a comma-separated option list.
	MultiSelect []string `json:"multi_select,omitempty"`
}

// DefaultSchema returns the production base layout.
func DefaultSchema() Schema {
	return Schema{
		Contacts: ContactsTable{
			Table:       "Kontakty",
			FirstName:   "Jméno",
			LastName:    "Příjmení",
			Email:       "E-mail",
			Phone:       "Telefon",
			Salutation:  "Oslovení",
			Company:     "Společnost / Firma",
			Position:    "Pracovní pozice",
			LinkedIn:    "LinkedIn profil",
			Programs:    "Koupil / účastnil se",
			HRContact:   "HR Kontakt",
			Status:      "Stav",
			CompanyLink: "Klienti",
			DealLink:    "Deals",
			Department:  "Oddělení",
			Origin:      "Program / Deal / Poptávka",
		},
		Companies: CompaniesTable{
			Table:        "Klienti",
			Name:         "Firma",
			ContactLinks: "Kontakty",
			DealLinks:    "Deals",
			HRContacts:   "HR Kontakt",
		},
		Deals: DealsTable{
			Table:       "Deals",
			Name:        "Název dealu",
			Person:      "Jméno a příjmení",
			Email:       "Email",
			Phone:       "Telefon",
			Company:     "Firma",
			CompanyLink: "Klienti",
			ContactLink: "Kontakt",
			Interest:    "Co poptávali",
			Outcome:     "Reakce/výsledek",
			Notes:       "Poznámka / Detaily",
			Owner:       "Komu určeno / Nabídnut pro realizaci",
		},
		FieldMapping: map[string]string{
			"Email":       "E-mail",
			"Účastnil se": "Koupil / účastnil se",
			"HR kontakt":  "HR Kontakt",
		},
		MultiSelect: []string{"Koupil / účastnil se"},
	}
}

// WithDefaults fills empty names from DefaultSchema.
func (s Schema) WithDefaults() Schema {
	d := DefaultSchema()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}

	c, dc := &s.Contacts, d.Contacts
	fill(&c.Table, dc.Table)
	fill(&c.FirstName, dc.FirstName)
	fill(&c.LastName, dc.LastName)
	fill(&c.Email, dc.Email)
	fill(&c.Phone, dc.Phone)
	fill(&c.Salutation, dc.Salutation)
	fill(&c.Company, dc.Company)
	fill(&c.Position, dc.Position)
	fill(&c.LinkedIn, dc.LinkedIn)
	fill(&c.Programs, dc.Programs)
	fill(&c.HRContact, dc.HRContact)
	fill(&c.Status, dc.Status)
	fill(&c.CompanyLink, dc.CompanyLink)
	fill(&c.DealLink, dc.DealLink)
	fill(&c.Department, dc.Department)
	fill(&c.Origin, dc.Origin)

	k, dk := &s.Companies, d.Companies
	fill(&k.Table, dk.Table)
	fill(&k.Name, dk.Name)
	fill(&k.ContactLinks, dk.ContactLinks)
	fill(&k.DealLinks, dk.DealLinks)
	fill(&k.HRContacts, dk.HRContacts)

	de, dd := &s.Deals, d.Deals
	fill(&de.Table, dd.Table)
	fill(&de.Name, dd.Name)
	fill(&de.Person, dd.Person)
	fill(&de.Email, dd.Email)
	fill(&de.Phone, dd.Phone)
	fill(&de.Company, dd.Company)
	fill(&de.CompanyLink, dd.CompanyLink)
	fill(&de.ContactLink, dd.ContactLink)
	fill(&de.Interest, dd.Interest)
	fill(&de.Outcome, dd.Outcome)
	fill(&de.Notes, dd.Notes)
	fill(&de.Owner, dd.Owner)

	if s.FieldMapping == nil {
		s.FieldMapping = d.FieldMapping
	}
	if s.MultiSelect == nil {
		s.MultiSelect = d.MultiSelect
	}
	return s
}

// Suggestion status values, shared by the link review screen and jobs.
const (
	SuggestionStatusPending  = "pending"
	SuggestionStatusAccepted = "accepted"
	SuggestionStatusRejected = "rejected"
)

// Values the deal and contact jobs write or look for.
const (
	HRDepartment  = "HR"
	OriginInquiry = "Poptávka"
)
