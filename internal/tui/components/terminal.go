package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// DefaultScrollback bounds the entries a Terminal keeps.
const DefaultScrollback = 5000

// entry is either a traffic chunk or a notice.
type entry struct {
	traffic *TrafficMsg
	notice  *NoticeMsg
}

// Terminal is a scrolling log of link traffic. It keeps the raw entries so
// display toggles re-render history.
type Terminal struct {
	viewport   viewport.Model
	formatter  *DataFormatter
	entries    []entry
	scrollback int
	follow     bool
}

func NewTerminal(width, height int) *Terminal {
	return &Terminal{
		viewport:   viewport.New(width, height),
		formatter:  NewDataFormatter(false, true),
		scrollback: DefaultScrollback,
		follow:     true,
	}
}

func (t *Terminal) SetSize(width, height int) {
	t.viewport.Width = width
	t.viewport.Height = height
}

func (t *Terminal) Width() int { return t.viewport.Width }

func (t *Terminal) Formatter() *DataFormatter { return t.formatter }

func (t *Terminal) Len() int { return len(t.entries) }

func (t *Terminal) append(e entry) {
	t.entries = append(t.entries, e)
	if over := len(t.entries) - t.scrollback; over > 0 {
		t.entries = append(t.entries[:0], t.entries[over:]...)
	}
	t.render()
}

func (t *Terminal) AddMessage(msg TrafficMsg) {
	t.append(entry{traffic: &msg})
}

func (t *Terminal) AddNotice(msg NoticeMsg) {
	t.append(entry{notice: &msg})
}

// UpdateStatus sets the status of the TX entry with id. It reports whether
// the entry is still in the scrollback.
func (t *Terminal) UpdateStatus(id int, status TxStatus) bool {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if tr := t.entries[i].traffic; tr != nil && tr.IsTX && tr.ID == id {
			tr.Status = status
			t.render()
			return true
		}
	}
	return false
}

func (t *Terminal) Lines() []string {
	lines := make([]string, len(t.entries))
	for i, e := range t.entries {
		if e.traffic != nil {
			lines[i] = t.formatter.FormatMessage(*e.traffic)
		} else {
			lines[i] = t.formatter.FormatNotice(*e.notice)
		}
	}
	return lines
}

func (t *Terminal) render() {
	t.viewport.SetContent(strings.Join(t.Lines(), "\n"))
	if t.follow {
		t.viewport.GotoBottom()
	}
}

func (t *Terminal) Clear() {
	t.entries = nil
	t.viewport.SetContent("")
}

func (t *Terminal) ToggleHex() {
	t.formatter.ToggleHex()
	t.render()
}

func (t *Terminal) ToggleASCII() {
	t.formatter.ToggleASCII()
	t.render()
}

func (t *Terminal) ToggleTimestamps() {
	t.formatter.ToggleTimestamps()
	t.render()
}

// ScrollUp leaves follow mode; GotoBottom returns to it.
func (t *Terminal) ScrollUp() {
	t.follow = false
	t.viewport.LineUp(1)
}

func (t *Terminal) ScrollDown() {
	t.viewport.LineDown(1)
	t.follow = t.viewport.AtBottom()
}

func (t *Terminal) GotoTop() {
	t.follow = false
	t.viewport.GotoTop()
}

func (t *Terminal) GotoBottom() {
	t.follow = true
	t.viewport.GotoBottom()
}

func (t *Terminal) Following() bool { return t.follow }

func (t *Terminal) Update(msg tea.Msg) (viewport.Model, tea.Cmd) {
	// Only resizes reach the viewport so it never eats our key bindings.
	switch msg.(type) {
	case tea.WindowSizeMsg:
		return t.viewport.Update(msg)
	default:
		return t.viewport, nil
	}
}

func (t *Terminal) View() string {
	return t.viewport.View()
}
