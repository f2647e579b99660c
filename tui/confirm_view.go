// ABOUTME: Confirmation dialog shown before accepted links are written
// ABOUTME: Writing happens only after an explicit yes; escape returns to the review table
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	confirmBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("170")).
			Padding(1, 2).
			Width(60).
			Align(lipgloss.Center)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	confirmButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("28")).
				Padding(0, 2).
				MarginRight(2)

	cancelButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("8")).
				Padding(0, 2)
)

func (m Model) renderConfirmView() string {
	pending, accepted, rejected := m.counts()

	title := titleStyle.Render("WRITE ACCEPTED LINKS")
	message := fmt.Sprintf("%d links will be written to the base.", accepted)
	details := fmt.Sprintf("\n%d rejected and %d pending suggestions are left alone.\n", rejected, pending)
	if accepted == 0 {
		details += warningStyle.Render("\nNothing is accepted yet.")
	}

	buttons := lipgloss.JoinHorizontal(
		lipgloss.Left,
		confirmButtonStyle.Render("Yes, Write (y)"),
		cancelButtonStyle.Render("Back (n/esc)"),
	)

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		title,
		message,
		details,
		"",
		buttons,
	)

	box := confirmBoxStyle.Render(content)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		box,
	)
}

func (m Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.confirmed = true
		return m, tea.Quit
	case "n", "N", "esc":
		m.viewMode = ViewReview
	}
	return m, nil
}
