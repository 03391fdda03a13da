package models

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/allbin/go-modemlink"
	"github.com/allbin/go-modemlink/internal/tui/components"
	"github.com/allbin/go-modemlink/platform"
	"github.com/allbin/go-modemlink/uart"
)

type recorder struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recorder) Send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) rx() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []byte
	for _, msg := range r.msgs {
		if tr, ok := msg.(components.TrafficMsg); ok && !tr.IsTX {
			out = append(out, tr.Data...)
		}
	}
	return out
}

func newSimModel(t *testing.T) (*LinkModel, *uart.SimLine) {
	t.Helper()

	host := platform.New()
	host.Init()
	line := uart.NewSimLine()
	tr, err := modemlink.New(uart.NewPort("sim", line.Opener()), modemlink.WithPlatform(host))
	require.NoError(t, err)

	m := NewLinkModel("sim", tr, time.Second)
	t.Cleanup(func() { m.Close() })
	return m, line
}

func TestLinkModelRoundTrip(t *testing.T) {
	m, line := newSimModel(t)
	line.SetResponder(func(written []byte) []byte {
		if bytes.Equal(written, []byte("AT\r")) {
			return []byte("\r\nOK\r\n")
		}
		return nil
	})

	rec := &recorder{}
	m.SetSender(rec)

	status := m.OpenCmd()()
	require.Equal(t, LinkStatusMsg{Open: true}, status)
	require.True(t, m.IsOpen())

	entry, send := m.SendCmd([]byte("AT\r"))
	require.True(t, entry.IsTX)
	require.Equal(t, components.TxPending, entry.Status)

	res, ok := send().(TxResultMsg)
	require.True(t, ok)
	require.NoError(t, res.Err)
	require.Equal(t, entry.ID, res.ID)
	require.Equal(t, 3, res.N)
	require.Equal(t, components.TxWritten, res.Status())

	require.Eventually(t, func() bool {
		return bytes.Contains(rec.rx(), []byte("OK\r\n"))
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, uint64(3), m.Stats().BytesSent)

	require.NoError(t, m.Close())
	require.False(t, m.IsOpen())
}

func TestLinkModelOpenFailure(t *testing.T) {
	m, line := newSimModel(t)
	line.SetOpenError(errors.New("no such device"))

	status, ok := m.OpenCmd()().(LinkStatusMsg)
	require.True(t, ok)
	require.False(t, status.Open)
	require.ErrorIs(t, status.Err, modemlink.ErrDriverError)

	require.NoError(t, m.Close())
}

func TestTxResultStatus(t *testing.T) {
	require.Equal(t, components.TxTimeout, TxResultMsg{Err: modemlink.ErrTimeout}.Status())
	require.Equal(t, components.TxError, TxResultMsg{Err: modemlink.ErrNoMemory}.Status())
}

func TestInputModeString(t *testing.T) {
	require.Equal(t, "NORMAL", InputModeNormal.String())
	require.Equal(t, "INSERT", InputModeInsert.String())
}
