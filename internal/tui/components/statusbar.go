package components

import (
	"fmt"

	"github.com/allbin/go-modemlink"
	"github.com/allbin/go-modemlink/internal/tui/colors"
	"github.com/allbin/go-modemlink/internal/tui/styles"
	"github.com/allbin/go-modemlink/uart"
	"github.com/charmbracelet/lipgloss"
)

type StatusBar struct {
	device string
	state  styles.LinkState
	err    error
	width  int
	line   *uart.Config
	stats  modemlink.Stats
}

func NewStatusBar(device string) *StatusBar {
	return &StatusBar{
		device: device,
		state:  styles.LinkOpening,
	}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetLineConfig(cfg uart.Config) {
	sb.line = &cfg
}

func (sb *StatusBar) SetStats(stats modemlink.Stats) {
	sb.stats = stats
}

func (sb *StatusBar) SetOpen() {
	sb.state = styles.LinkOpen
	sb.err = nil
}

// SetClosed marks the link down. A non-nil err marks it failed.
func (sb *StatusBar) SetClosed(err error) {
	sb.err = err
	if err != nil {
		sb.state = styles.LinkFailed
	} else {
		sb.state = styles.LinkClosed
	}
}

func (sb *StatusBar) State() styles.LinkState { return sb.state }

func (sb *StatusBar) Err() error { return sb.err }

func (sb *StatusBar) lineInfo() string {
	if sb.line == nil {
		return "⚡ modem"
	}
	return "⚡ " + sb.line.String()
}

func (sb *StatusBar) statsInfo() string {
	s := sb.stats
	info := fmt.Sprintf("rx %d tx %d", s.BytesReceived, s.BytesSent)
	if s.Overflows > 0 {
		info += fmt.Sprintf(" ovf %d", s.Overflows)
	}
	if s.LineErrors > 0 {
		info += fmt.Sprintf(" err %d", s.LineErrors)
	}
	return info
}

// View renders the bottom bar: mode, device and link state on the left,
// line settings, counters and clock on the right.
func (sb *StatusBar) View(inputMode, sendingMode, viewMode, clock string) string {
	width := sb.width
	if width <= 0 {
		width = 80
	}

	modeStyle := lipgloss.NewStyle().
		Foreground(colors.Base).
		Background(colors.Blue).
		Bold(true).
		Padding(0, 1)
	if inputMode == "INSERT" {
		modeStyle = modeStyle.Background(colors.Green)
	}
	mode := modeStyle.Render(inputMode)

	device := styles.TitleStyle.Background(colors.Surface0).Render(sb.device)
	indicator := styles.Indicator(sb.state)

	divider := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1).
		Render("│")

	left := []string{mode, device, indicator}
	if inputMode == "INSERT" {
		left = append(left, lipgloss.NewStyle().
			Foreground(colors.Peach).
			Bold(true).
			Padding(0, 1).
			Render(fmt.Sprintf("[%s] Tab to toggle", sendingMode)))
	}
	if viewMode != "" {
		left = append(left, lipgloss.NewStyle().
			Foreground(colors.Subtext1).
			Padding(0, 1).
			Render(viewMode))
	}
	left = append(left, divider)
	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, left...)

	detail := lipgloss.NewStyle().Foreground(colors.Subtext0).Padding(0, 1)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left,
		detail.Render(sb.lineInfo()),
		divider,
		detail.Render(sb.statsInfo()),
		divider,
		lipgloss.NewStyle().Foreground(colors.Subtext1).Padding(0, 1).Render(clock),
	)

	spacerWidth := width - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	return lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(width).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}
