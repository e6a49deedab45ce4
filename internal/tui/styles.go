package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds every lipgloss style the view uses.
type Styles struct {
	Title     lipgloss.Style
	Header    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Failure   lipgloss.Style
	Option    lipgloss.Style
	Selected  lipgloss.Style
	Muted     lipgloss.Style
	Status    lipgloss.Style
	Input     lipgloss.Style
}

// DefaultStyles returns the colored theme.
func DefaultStyles() Styles {
	accent := lipgloss.AdaptiveColor{Light: "#005F87", Dark: "#5FD7FF"}
	primary := lipgloss.AdaptiveColor{Light: "#5F00AF", Dark: "#AF87FF"}
	muted := lipgloss.AdaptiveColor{Light: "#6C6C6C", Dark: "#8A8A8A"}
	danger := lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}

	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(accent),
		Header:    lipgloss.NewStyle().Foreground(muted).PaddingBottom(1),
		User:      lipgloss.NewStyle().Bold(true).Foreground(primary).MarginTop(1),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(accent).MarginTop(1),
		Failure:   lipgloss.NewStyle().Foreground(danger),
		Option:    lipgloss.NewStyle().PaddingLeft(2),
		Selected:  lipgloss.NewStyle().PaddingLeft(2).Bold(true).Foreground(accent),
		Muted:     lipgloss.NewStyle().Foreground(muted),
		Status:    lipgloss.NewStyle().Foreground(muted).PaddingTop(1),
		Input:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1),
	}
}

// PlainStyles returns styles without colors, for NO_COLOR terminals.
func PlainStyles() Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true),
		Header:    lipgloss.NewStyle().PaddingBottom(1),
		User:      lipgloss.NewStyle().Bold(true).MarginTop(1),
		Assistant: lipgloss.NewStyle().Bold(true).MarginTop(1),
		Failure:   lipgloss.NewStyle(),
		Option:    lipgloss.NewStyle().PaddingLeft(2),
		Selected:  lipgloss.NewStyle().PaddingLeft(2).Bold(true),
		Muted:     lipgloss.NewStyle(),
		Status:    lipgloss.NewStyle().PaddingTop(1),
		Input:     lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1),
	}
}
