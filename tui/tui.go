// ABOUTME: Terminal review screen for company link suggestions using bubbletea
// ABOUTME: Each suggestion is accepted or rejected before anything is written
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/kontakty/models"
	"github.com/harperreed/kontakty/sync"
)

// ViewMode represents the current screen
type ViewMode int

const (
	ViewReview ViewMode = iota
	ViewConfirm
)

// Filter limits the rows shown in the review table
type Filter int

const (
	FilterAll Filter = iota
	FilterPending
	FilterAccepted
	FilterRejected
)

var filterNames = []string{"All", "Pending", "Accepted", "Rejected"}

// Model is the main bubbletea model
type Model struct {
	suggestions []sync.Suggestion
	viewMode    ViewMode
	filter      Filter

	// selectedRow indexes the visible (filtered) rows
	selectedRow int

	// confirmed is set when the user chose to write the accepted links
	confirmed bool
	message   string

	width  int
	height int
}

// NewModel creates a review model over a copy of suggestions
func NewModel(suggestions []sync.Suggestion) Model {
	return Model{
		suggestions: append([]sync.Suggestion(nil), suggestions...),
		viewMode:    ViewReview,
		filter:      FilterAll,
		width:       100,
		height:      24,
	}
}

// Suggestions returns the suggestions with their current statuses
func (m Model) Suggestions() []sync.Suggestion {
	return append([]sync.Suggestion(nil), m.suggestions...)
}

// Confirmed reports whether the user asked to write the accepted links
func (m Model) Confirmed() bool {
	return m.confirmed
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	switch m.viewMode {
	case ViewReview:
		return m.renderReviewView()
	case ViewConfirm:
		return m.renderConfirmView()
	}
	return ""
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.confirmed = false
		return m, tea.Quit
	}

	switch m.viewMode {
	case ViewReview:
		return m.handleReviewKeys(msg)
	case ViewConfirm:
		return m.handleConfirmKeys(msg)
	}

	return m, nil
}

// visible returns indexes into m.suggestions matching the current filter
func (m Model) visible() []int {
	var out []int
	for i, s := range m.suggestions {
		switch m.filter {
		case FilterPending:
			if s.Status != models.SuggestionStatusPending {
				continue
			}
		case FilterAccepted:
			if s.Status != models.SuggestionStatusAccepted {
				continue
			}
		case FilterRejected:
			if s.Status != models.SuggestionStatusRejected {
				continue
			}
		}
		out = append(out, i)
	}
	return out
}

func (m Model) counts() (pending, accepted, rejected int) {
	for _, s := range m.suggestions {
		switch s.Status {
		case models.SuggestionStatusAccepted:
			accepted++
		case models.SuggestionStatusRejected:
			rejected++
		default:
			pending++
		}
	}
	return pending, accepted, rejected
}

// Run shows the review screen and returns the reviewed suggestions and
// whether the user confirmed writing them.
func Run(suggestions []sync.Suggestion) ([]sync.Suggestion, bool, error) {
	p := tea.NewProgram(NewModel(suggestions), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, false, err
	}
	m := final.(Model)
	return m.Suggestions(), m.Confirmed(), nil
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))
)
