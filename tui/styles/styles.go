package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds all the styles for the application
type Styles struct {
	Theme Theme

	// Layout
	Header lipgloss.Style
	Box    lipgloss.Style

	// Text
	Title  lipgloss.Style
	Label  lipgloss.Style
	Value  lipgloss.Style
	Help   lipgloss.Style
	Prompt lipgloss.Style

	// Status
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	Dim     lipgloss.Style
}

// NewStyles creates a new styles instance with the given theme
func NewStyles(theme Theme) *Styles {
	s := &Styles{
		Theme: theme,
	}

	s.Header = lipgloss.NewStyle().
		Background(theme.Surface).
		Foreground(theme.Text).
		Padding(0, 2).
		Bold(true)

	s.Box = lipgloss.NewStyle().
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border)

	s.Title = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	s.Label = lipgloss.NewStyle().
		Foreground(theme.TextDim)

	s.Value = lipgloss.NewStyle().
		Foreground(theme.Text)

	s.Help = lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Italic(true)

	s.Prompt = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	s.Success = lipgloss.NewStyle().
		Foreground(theme.Success)

	s.Warning = lipgloss.NewStyle().
		Foreground(theme.Warning)

	s.Error = lipgloss.NewStyle().
		Foreground(theme.Error).
		Bold(true)

	s.Info = lipgloss.NewStyle().
		Foreground(theme.Info)

	s.Dim = lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Italic(true)

	return s
}

// RenderStatus returns a styled up/down marker
func (s *Styles) RenderStatus(status string) string {
	switch status {
	case "ok":
		return s.Success.Render("✓")
	case "warn":
		return s.Warning.Render("!")
	case "error":
		return s.Error.Render("✗")
	default:
		return s.Label.Render("◌")
	}
}
