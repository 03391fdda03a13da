package styles

import (
	"github.com/allbin/go-modemlink/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Background(colors.Surface0).
			Padding(0, 1)

	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(1, 2).
			Margin(1, 0)

	// CLI output
	InfoStyle    = lipgloss.NewStyle().Foreground(colors.Mauve).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(colors.Green).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(colors.Red).Bold(true)
	MutedStyle   = lipgloss.NewStyle().Foreground(colors.Overlay0)
)

type LinkState int

const (
	LinkOpening LinkState = iota
	LinkOpen
	LinkClosed
	LinkFailed
)

// Indicator returns the single-glyph status marker for s.
func Indicator(s LinkState) string {
	switch s {
	case LinkOpen:
		return lipgloss.NewStyle().Foreground(colors.Green).Render("●")
	case LinkOpening:
		return lipgloss.NewStyle().Foreground(colors.Yellow).Render("○")
	case LinkFailed:
		return lipgloss.NewStyle().Foreground(colors.Red).Render("✗")
	default:
		return lipgloss.NewStyle().Foreground(colors.Red).Render("○")
	}
}
