package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/allbin/go-modemlink/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

// TxStatus tracks a transmitted chunk through Transport.Send.
type TxStatus int

const (
	TxNone TxStatus = iota
	TxPending
	TxWritten
	TxTimeout
	TxError
)

// TrafficMsg is one chunk of link traffic. RX chunks are whatever a single
// receive callback pulled; TX chunks are one Send.
type TrafficMsg struct {
	ID        int
	Timestamp time.Time
	Data      []byte
	IsTX      bool
	Status    TxStatus
}

// NoticeMsg is a line of link commentary shown between traffic lines.
type NoticeMsg struct {
	Timestamp time.Time
	Text      string
}

type DisplayMode struct {
	ShowHex        bool
	ShowASCII      bool
	ShowTimestamps bool
}

type DataFormatter struct {
	mode DisplayMode
}

func NewDataFormatter(showHex, showASCII bool) *DataFormatter {
	return &DataFormatter{
		mode: DisplayMode{
			ShowHex:        showHex,
			ShowASCII:      showASCII,
			ShowTimestamps: true,
		},
	}
}

func (df *DataFormatter) SetDisplayMode(mode DisplayMode) {
	df.mode = mode
}

func (df *DataFormatter) GetDisplayMode() DisplayMode {
	return df.mode
}

func (df *DataFormatter) ToggleHex()        { df.mode.ShowHex = !df.mode.ShowHex }
func (df *DataFormatter) ToggleASCII()      { df.mode.ShowASCII = !df.mode.ShowASCII }
func (df *DataFormatter) ToggleTimestamps() { df.mode.ShowTimestamps = !df.mode.ShowTimestamps }

func txIndicator(status TxStatus) (lipgloss.Color, string) {
	switch status {
	case TxPending:
		return colors.Yellow, "TX ○"
	case TxWritten:
		return colors.Green, "TX ✓"
	case TxTimeout:
		return colors.Yellow, "TX ⏱"
	case TxError:
		return colors.Red, "TX ✗"
	default:
		return colors.TX, "TX"
	}
}

// EscapeASCII renders modem text on one line: CR and LF become \r and \n,
// other non-printables become dots.
func EscapeASCII(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		switch {
		case b == '\r':
			sb.WriteString(`\r`)
		case b == '\n':
			sb.WriteString(`\n`)
		case b >= 32 && b <= 126:
			sb.WriteByte(b)
		default:
			sb.WriteByte('.')
		}
	}
	return sb.String()
}

func (df *DataFormatter) timestamp(ts time.Time) string {
	if !df.mode.ShowTimestamps {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Render(fmt.Sprintf("[%s] ", ts.Format("15:04:05.000")))
}

func (df *DataFormatter) FormatMessage(msg TrafficMsg) string {
	var indicator string
	if msg.IsTX {
		color, text := txIndicator(msg.Status)
		indicator = lipgloss.NewStyle().Foreground(color).Bold(true).Render("↗ " + text)
	} else {
		indicator = lipgloss.NewStyle().Foreground(colors.RX).Bold(true).Render("↙ RX")
	}

	var parts []string
	if df.mode.ShowHex {
		parts = append(parts, fmt.Sprintf("HEX: % X", msg.Data))
	}
	if df.mode.ShowASCII {
		parts = append(parts, "ASCII: "+EscapeASCII(msg.Data))
	}
	if !df.mode.ShowHex && !df.mode.ShowASCII {
		parts = append(parts, fmt.Sprintf("BYTES: %d", len(msg.Data)))
	}

	return fmt.Sprintf("%s%s: %s", df.timestamp(msg.Timestamp), indicator, strings.Join(parts, "  "))
}

func (df *DataFormatter) FormatNotice(msg NoticeMsg) string {
	text := lipgloss.NewStyle().Foreground(colors.Event).Italic(true).Render("» " + msg.Text)
	return df.timestamp(msg.Timestamp) + text
}
