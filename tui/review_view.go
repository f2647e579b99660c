package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/kontakty/models"
)

var statusMarks = map[string]string{
	models.SuggestionStatusPending:  "·",
	models.SuggestionStatusAccepted: "✓",
	models.SuggestionStatusRejected: "✗",
}

func (m Model) renderReviewView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("COMPANY LINK SUGGESTIONS"))
	s.WriteString("\n\n")

	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	s.WriteString(m.renderTable())
	s.WriteString("\n\n")

	pending, accepted, rejected := m.counts()
	s.WriteString(fmt.Sprintf("%d pending • %d accepted • %d rejected", pending, accepted, rejected))
	if m.message != "" {
		s.WriteString("\n")
		s.WriteString(messageStyle.Render(m.message))
	}
	s.WriteString("\n")

	s.WriteString(m.renderReviewHelp())

	return s.String()
}

func (m Model) renderTabs() string {
	var rendered []string
	for i, name := range filterNames {
		if Filter(i) == m.filter {
			rendered = append(rendered, tabActiveStyle.Render(name))
		} else {
			rendered = append(rendered, tabInactiveStyle.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderTable() string {
	columns := []table.Column{
		{Title: " ", Width: 2},
		{Title: "Table", Width: 10},
		{Title: "Company text", Width: 30},
		{Title: "Suggested company", Width: 30},
		{Title: "Record", Width: 18},
	}

	var rows []table.Row
	for _, i := range m.visible() {
		s := m.suggestions[i]
		rows = append(rows, table.Row{
			statusMarks[s.Status],
			s.Spec.Table,
			s.CompanyText,
			s.CompanyName,
			s.RecordID,
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(max(m.height-12, 3)),
	)

	if m.selectedRow < len(rows) {
		t.SetCursor(m.selectedRow)
	}

	return t.View()
}

func (m Model) renderReviewHelp() string {
	help := []string{
		"↑/↓: Navigate",
		"a: Accept",
		"r: Reject",
		"u: Undo",
		"A: Accept all pending",
		"Tab: Filter",
		"Enter: Write accepted",
		"q: Quit without writing",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleReviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.visible()
	m.message = ""

	switch msg.String() {
	case "up", "k":
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case "down", "j":
		if m.selectedRow < len(rows)-1 {
			m.selectedRow++
		}
	case "a", "y":
		m.setStatus(rows, models.SuggestionStatusAccepted)
	case "r", "n":
		m.setStatus(rows, models.SuggestionStatusRejected)
	case "u":
		m.setStatus(rows, models.SuggestionStatusPending)
	case "A":
		for i := range m.suggestions {
			if m.suggestions[i].Status == models.SuggestionStatusPending {
				m.suggestions[i].Status = models.SuggestionStatusAccepted
			}
		}
		m.message = "accepted every pending suggestion"
	case "tab":
		m.filter = (m.filter + 1) % Filter(len(filterNames))
		m.selectedRow = 0
	case "enter":
		m.viewMode = ViewConfirm
	}

	m.clampSelection()
	return m, nil
}

// setStatus changes the selected suggestion and moves to the next row.
func (m *Model) setStatus(rows []int, status string) {
	if m.selectedRow >= len(rows) {
		return
	}
	m.suggestions[rows[m.selectedRow]].Status = status
	if m.filter == FilterAll && m.selectedRow < len(rows)-1 {
		m.selectedRow++
	}
}

// clampSelection keeps the cursor inside the filtered rows, which shrink
// when a status change removes the selected row from the current filter.
func (m *Model) clampSelection() {
	n := len(m.visible())
	if m.selectedRow >= n {
		m.selectedRow = max(n-1, 0)
	}
}
