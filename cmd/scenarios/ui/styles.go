// Package ui implements the interactive artifact browser for the dashboard
// command.
package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles of the browser.
type Styles struct {
	Title    lipgloss.Style
	Crumb    lipgloss.Style
	Item     lipgloss.Style
	Selected lipgloss.Style
	Dir      lipgloss.Style
	Muted    lipgloss.Style
	Status   lipgloss.Style
	ErrText  lipgloss.Style
	Pane     lipgloss.Style
	Help     lipgloss.Style
}

// DefaultStyles returns the standard color scheme.
func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A")),
		Crumb:    lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3")),
		Item:     lipgloss.NewStyle(),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A")),
		Dir:      lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3")),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Status:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107")),
		ErrText:  lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")),
		Pane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		Help: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}
