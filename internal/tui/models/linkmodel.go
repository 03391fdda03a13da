package models

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"github.com/allbin/go-modemlink"
	"github.com/allbin/go-modemlink/internal/tui/components"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"
)

// InputMode represents the current input mode (vim-like)
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	switch m {
	case InputModeInsert:
		return "INSERT"
	default:
		return "NORMAL"
	}
}

// LinkStatusMsg reports the outcome of opening or closing the transport.
type LinkStatusMsg struct {
	Open bool
	Err  error
}

// TxResultMsg reports the outcome of a Send started by SendCmd.
type TxResultMsg struct {
	ID  int
	N   int
	Err error
}

// Status maps the Send outcome to a display status.
func (r TxResultMsg) Status() components.TxStatus {
	switch {
	case r.Err == nil:
		return components.TxWritten
	case errors.Is(r.Err, modemlink.ErrTimeout):
		return components.TxTimeout
	default:
		return components.TxError
	}
}

// Sender delivers messages into a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// rxChunk is the most one Receive call pulls.
const rxChunk = 1024

// LinkModel binds a Transport to a bubbletea program. The transport's drain
// thread feeds received data in through OnReceive.
type LinkModel struct {
	transport   *modemlink.Transport
	device      string
	sendTimeout time.Duration

	mu        sync.RWMutex
	sender    Sender
	inputMode InputMode
	ready     bool
	nextID    int
}

func NewLinkModel(device string, t *modemlink.Transport, sendTimeout time.Duration) *LinkModel {
	return &LinkModel{
		transport:   t,
		device:      device,
		sendTimeout: sendTimeout,
	}
}

// SetSender must be called before OpenCmd runs.
func (m *LinkModel) SetSender(s Sender) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sender = s
}

func (m *LinkModel) Device() string {
	return m.device
}

func (m *LinkModel) Transport() *modemlink.Transport {
	return m.transport
}

func (m *LinkModel) forward(msg tea.Msg) {
	m.mu.RLock()
	s := m.sender
	m.mu.RUnlock()
	if s != nil {
		s.Send(msg)
	}
}

// OnReceive is the transport receive callback. It empties the driver's
// buffer and forwards each chunk as a TrafficMsg.
func (m *LinkModel) OnReceive(_ any, h modemlink.Handle) error {
	buf := make([]byte, rxChunk)
	for {
		n, err := h.Receive(buf, 0)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if glog.V(3) {
			glog.Infof("tui: rx %q", buf[:n])
		}
		m.forward(components.TrafficMsg{
			Timestamp: time.Now(),
			Data:      bytes.Clone(buf[:n]),
		})
		if n < len(buf) {
			return nil
		}
	}
}

// OpenCmd opens the transport in the background.
func (m *LinkModel) OpenCmd() tea.Cmd {
	return func() tea.Msg {
		if _, err := m.transport.Open(m.OnReceive, nil); err != nil {
			return LinkStatusMsg{Err: err}
		}
		return LinkStatusMsg{Open: true}
	}
}

// SendCmd records data as a pending TX entry and returns the command that
// transmits it.
func (m *LinkModel) SendCmd(data []byte) (components.TrafficMsg, tea.Cmd) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.mu.Unlock()

	entry := components.TrafficMsg{
		ID:        id,
		Timestamp: time.Now(),
		Data:      data,
		IsTX:      true,
		Status:    components.TxPending,
	}
	return entry, func() tea.Msg {
		n, err := m.transport.Send(data, m.sendTimeout)
		return TxResultMsg{ID: id, N: n, Err: err}
	}
}

func (m *LinkModel) IsOpen() bool {
	return m.transport.IsOpen()
}

func (m *LinkModel) Stats() modemlink.Stats {
	return m.transport.Stats()
}

func (m *LinkModel) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

func (m *LinkModel) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = ready
}

func (m *LinkModel) GetInputMode() InputMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inputMode
}

func (m *LinkModel) SetInputMode(mode InputMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputMode = mode
}

func (m *LinkModel) IsInInsertMode() bool {
	return m.GetInputMode() == InputModeInsert
}

// Close stops the transport. It is safe to call when the open never
// succeeded.
func (m *LinkModel) Close() error {
	m.SetSender(nil)
	wasOpen := m.transport.IsOpen()
	err := m.transport.Close()
	if !wasOpen && errors.Is(err, modemlink.ErrFailure) {
		return nil
	}
	return err
}
