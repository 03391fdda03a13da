package components

import (
	"strings"
	"testing"
	"time"
)

func TestTerminalScrollback(t *testing.T) {
	term := NewTerminal(80, 10)
	term.scrollback = 3

	for i := 0; i < 5; i++ {
		term.AddMessage(TrafficMsg{Timestamp: time.Now(), Data: []byte{byte('a' + i)}})
	}

	if term.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", term.Len())
	}
	lines := term.Lines()
	if !strings.Contains(lines[0], "ASCII: c") || !strings.Contains(lines[2], "ASCII: e") {
		t.Errorf("scrollback kept the wrong entries: %q", lines)
	}
}

func TestTerminalUpdateStatus(t *testing.T) {
	term := NewTerminal(80, 10)
	term.AddMessage(TrafficMsg{ID: 7, Timestamp: time.Now(), Data: []byte("AT\r"), IsTX: true, Status: TxPending})
	term.AddNotice(NoticeMsg{Timestamp: time.Now(), Text: "between"})

	if !term.UpdateStatus(7, TxWritten) {
		t.Fatal("UpdateStatus(7) did not find the entry")
	}
	if !strings.Contains(term.Lines()[0], "TX ✓") {
		t.Errorf("status not re-rendered: %q", term.Lines()[0])
	}
	if term.UpdateStatus(8, TxWritten) {
		t.Error("UpdateStatus(8) found a missing entry")
	}
}

func TestTerminalFollow(t *testing.T) {
	term := NewTerminal(80, 2)
	for i := 0; i < 10; i++ {
		term.AddNotice(NoticeMsg{Timestamp: time.Now(), Text: "line"})
	}

	term.GotoTop()
	if term.Following() {
		t.Error("GotoTop should leave follow mode")
	}
	term.GotoBottom()
	if !term.Following() {
		t.Error("GotoBottom should resume follow mode")
	}

	term.Clear()
	if term.Len() != 0 {
		t.Errorf("Len() after Clear = %d", term.Len())
	}
}
