package view

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ConfirmedMsg is sent when the user confirms the dialog.
type ConfirmedMsg struct{}

// CancelledMsg is sent when the user cancels the dialog.
type CancelledMsg struct{}

// Confirm is a yes/no dialog. Only y confirms; n and esc cancel.
type Confirm struct {
	Active bool
	Prompt string
	keys   confirmKeyMap
}

// NewConfirm creates an inactive dialog.
func NewConfirm() Confirm {
	return Confirm{keys: defaultConfirmKeys}
}

// Activate shows the dialog with prompt.
func (m *Confirm) Activate(prompt string) {
	m.Prompt = prompt
	m.Active = true
}

// Update handles key presses while the dialog is active.
func (m Confirm) Update(msg tea.Msg) (Confirm, tea.Cmd) {
	if !m.Active {
		return m, nil
	}
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Confirm):
			m.Active = false
			return m, func() tea.Msg { return ConfirmedMsg{} }
		case key.Matches(msg, m.keys.Cancel):
			m.Active = false
			return m, func() tea.Msg { return CancelledMsg{} }
		}
	}
	return m, nil
}

// View renders the dialog, or nothing when inactive.
func (m Confirm) View() string {
	if !m.Active {
		return ""
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("208")).
		Padding(0, 2).
		Render(m.Prompt)
	hint := lipgloss.NewStyle().Faint(true).Render("(y/n)")
	return lipgloss.JoinVertical(lipgloss.Left, box, hint)
}

type confirmKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

var defaultConfirmKeys = confirmKeyMap{
	Confirm: key.NewBinding(
		key.WithKeys("y", "Y"),
		key.WithHelp("y", "confirm"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("n", "N", "esc"),
		key.WithHelp("n/esc", "cancel"),
	),
}
