package app

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by the table and panels.
type Styles struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Header    lipgloss.Style
	Selected  lipgloss.Style
	Muted     lipgloss.Style
	ErrorText lipgloss.Style
	Panel     lipgloss.Style
	StatusBar lipgloss.Style
}

// DefaultStyles returns the default dark styles.
func DefaultStyles() Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89b4fa")),
		Subtitle:  lipgloss.NewStyle().Foreground(lipgloss.Color("#9399b2")),
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#cdd6f4")),
		Selected:  lipgloss.NewStyle().Background(lipgloss.Color("#313152")).Foreground(lipgloss.Color("#cdd6f4")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086")),
		ErrorText: lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8")),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(lipgloss.Color("#3b3b5c")),
		StatusBar: lipgloss.NewStyle().Foreground(lipgloss.Color("#9399b2")),
	}
}
