package uart

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// newSimPort returns an installed, configured port on a SimLine.
func newSimPort(t *testing.T, rxSize int) (*Port, *SimLine, *EventQueue) {
	t.Helper()

	line := NewSimLine()
	p := NewPort("sim", line.Opener())
	q, err := p.Install(rxSize, 0, 32)
	require.NoError(t, err)
	require.NoError(t, p.Configure(DefaultConfig()))
	t.Cleanup(func() { p.Uninstall() })
	return p, line, q
}

// collect receives n events or fails after a second.
func collect(t *testing.T, q *EventQueue, n int) []Event {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got := make([]Event, 0, n)
	for len(got) < n {
		ev, err := q.Receive(ctx)
		if err != nil {
			t.Fatalf("after %v: %v", got, err)
		}
		got = append(got, ev)
	}
	return got
}

func TestInstallValidation(t *testing.T) {
	p := NewPort("sim", NewSimLine().Opener())

	_, err := p.Install(FIFOLen, 0, 8)
	require.ErrorIs(t, err, ErrInvalidArg)
	_, err = p.Install(2048, 64, 8)
	require.ErrorIs(t, err, ErrInvalidArg)
	_, err = p.Install(2048, 2048, 0)
	require.ErrorIs(t, err, ErrInvalidArg)

	q, err := p.Install(2048, 2048, 64)
	require.NoError(t, err)
	require.Equal(t, 64, q.Cap())

	_, err = p.Install(2048, 2048, 64)
	require.ErrorIs(t, err, ErrAlreadyInstalled)

	require.NoError(t, p.Uninstall())
	require.ErrorIs(t, p.Uninstall(), ErrNotInstalled)
}

func TestCallsBeforeInstall(t *testing.T) {
	p := NewPort("sim", NewSimLine().Opener())

	require.ErrorIs(t, p.Configure(DefaultConfig()), ErrNotInstalled)
	require.ErrorIs(t, p.SetPins(Pins{TX: 1, RX: 2, RTS: NoPin, CTS: NoPin}), ErrNotInstalled)
	require.ErrorIs(t, p.SetRxTimeout(9), ErrNotInstalled)
	require.ErrorIs(t, p.EnableRxInterrupt(), ErrNotInstalled)
	_, err := p.WriteBytes([]byte("AT"))
	require.ErrorIs(t, err, ErrNotInstalled)
	_, err = p.BufferedLen()
	require.ErrorIs(t, err, ErrNotInstalled)
}

func TestEnableRxRequiresConfigure(t *testing.T) {
	p := NewPort("sim", NewSimLine().Opener())
	_, err := p.Install(2048, 0, 8)
	require.NoError(t, err)
	defer p.Uninstall()

	require.ErrorIs(t, p.EnableRxInterrupt(), ErrNotConfigured)
	require.NoError(t, p.Configure(DefaultConfig()))
	require.NoError(t, p.EnableRxInterrupt())
	require.ErrorIs(t, p.EnableRxInterrupt(), ErrRxEnabled)
	require.ErrorIs(t, p.Configure(DefaultConfig()), ErrRxEnabled)
	require.NoError(t, p.DisableRxInterrupt())
}

func TestConfigureOpensLine(t *testing.T) {
	p, line, _ := newSimPort(t, 2048)

	cfg := DefaultConfig()
	cfg.FlowControl = FlowControlRTSCTS
	require.NoError(t, p.Configure(cfg))
	require.Equal(t, 2, line.Opens())
	require.Equal(t, cfg, line.Config())
	require.True(t, line.RTS())

	line.SetOpenError(errors.New("no such device"))
	require.Error(t, p.Configure(cfg))
}

func TestSetRxTimeoutRange(t *testing.T) {
	p, _, _ := newSimPort(t, 2048)
	require.NoError(t, p.SetRxTimeout(0))
	require.NoError(t, p.SetRxTimeout(MaxRxTimeout))
	require.ErrorIs(t, p.SetRxTimeout(MaxRxTimeout+1), ErrInvalidArg)
	require.ErrorIs(t, p.SetRxTimeout(-1), ErrInvalidArg)
}

func TestSetPullMode(t *testing.T) {
	p, line, _ := newSimPort(t, 2048)
	require.NoError(t, p.SetPullMode(27, Floating))

	mode, ok := line.PullMode(27)
	require.True(t, ok)
	require.Equal(t, Floating, mode)

	require.ErrorIs(t, p.SetPullMode(-1, Floating), ErrInvalidArg)
}

func TestThresholdAndIdleEvents(t *testing.T) {
	p, line, q := newSimPort(t, 2048)
	require.NoError(t, p.SetRxTimeout(9))

	payload := bytes.Repeat([]byte{'x'}, 250)
	line.Inject(payload)
	require.NoError(t, p.EnableRxInterrupt())

	want := []Event{
		{Type: EventData, Size: 120},
		{Type: EventData, Size: 120},
		{Type: EventData, Size: 10, Timeout: true},
	}
	if diff := cmp.Diff(want, collect(t, q, 3)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	n, err := p.BufferedLen()
	require.NoError(t, err)
	require.Equal(t, 250, n)

	buf := make([]byte, 300)
	n, err = p.ReadBytes(buf, 0)
	require.NoError(t, err)
	require.Equal(t, payload, buf[:n])
	require.Equal(t, uint64(250), p.Stats().Received)
}

func TestBufferFullEvent(t *testing.T) {
	p, line, q := newSimPort(t, FIFOLen+1)
	require.NoError(t, p.SetRxTimeout(9))

	line.Inject(bytes.Repeat([]byte{'y'}, 200))
	require.NoError(t, p.EnableRxInterrupt())

	want := []Event{
		{Type: EventData, Size: 120},
		{Type: EventBufferFull, Size: FIFOLen + 1},
		{Type: EventData, Size: 9, Timeout: true},
	}
	if diff := cmp.Diff(want, collect(t, q, 3)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, uint64(71), p.Stats().Dropped)
}

func TestLineErrorEvents(t *testing.T) {
	p, line, q := newSimPort(t, 2048)
	require.NoError(t, p.SetRxTimeout(9))

	line.InjectError(ErrOverrun)
	line.InjectError(ErrFrame)
	line.InjectError(ErrParity)
	line.InjectError(ErrBreak)
	line.Inject([]byte("OK"))
	require.NoError(t, p.EnableRxInterrupt())

	want := []Event{
		{Type: EventFIFOOverflow},
		{Type: EventFrameErr},
		{Type: EventParityErr},
		{Type: EventBreak},
		{Type: EventData, Size: 2, Timeout: true},
	}
	if diff := cmp.Diff(want, collect(t, q, len(want))); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestPatternDetect(t *testing.T) {
	p, line, q := newSimPort(t, 2048)
	require.NoError(t, p.EnablePatternDetect('+', 3))

	line.Inject([]byte("OK+++"))
	require.NoError(t, p.EnableRxInterrupt())

	want := []Event{
		{Type: EventData, Size: 5},
		{Type: EventPatternDet, Size: 5},
	}
	if diff := cmp.Diff(want, collect(t, q, 2)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestNoIdleEventWithoutRxTimeout(t *testing.T) {
	p, line, q := newSimPort(t, 2048)
	line.Inject([]byte("AT"))
	require.NoError(t, p.EnableRxInterrupt())

	time.Sleep(3 * rxPollInterval)
	require.Equal(t, 0, q.Len())

	n, err := p.BufferedLen()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestReadBytesWaits(t *testing.T) {
	p, line, _ := newSimPort(t, 2048)
	require.NoError(t, p.EnableRxInterrupt())

	go func() {
		time.Sleep(20 * time.Millisecond)
		line.Inject([]byte("OK\r\n"))
	}()

	buf := make([]byte, 4)
	n, err := p.ReadBytes(buf, time.Second)
	require.NoError(t, err)
	require.Equal(t, "OK\r\n", string(buf[:n]))

	start := time.Now()
	n, err = p.ReadBytes(buf, 30*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestWriteBytes(t *testing.T) {
	p, line, _ := newSimPort(t, 2048)

	n, err := p.WriteBytes([]byte("AT\r"))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []byte("AT\r"), line.Transmitted())

	line.SetShortWrite(2)
	n, err = p.WriteBytes([]byte("ATI\r"))
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestWaitTxDone(t *testing.T) {
	p, line, _ := newSimPort(t, 2048)

	require.NoError(t, p.WaitTxDone(time.Second))

	line.SetDrainDelay(500 * time.Millisecond)
	require.ErrorIs(t, p.WaitTxDone(10*time.Millisecond), ErrTimeout)
}

func TestWaitTxDoneZeroTimeout(t *testing.T) {
	p, line, _ := newSimPort(t, 2048)

	// Idle transmitter: done at once, every time.
	_, err := p.WriteBytes([]byte("AT\r"))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, p.WaitTxDone(0))
	}

	line.SetDrainDelay(time.Second)
	_, err = p.WriteBytes([]byte("ATI\r"))
	require.NoError(t, err)
	require.ErrorIs(t, p.WaitTxDone(0), ErrTimeout)
}

// drainOnlyLine hides SimLine's transmit queue, leaving Drain as the only
// way to observe the transmitter.
type drainOnlyLine struct{ *SimLine }

func (l drainOnlyLine) TxPending() {}

func TestWaitTxDoneZeroTimeoutWithoutTxQueue(t *testing.T) {
	sim := NewSimLine()
	p := NewPort("sim", func(cfg Config) (Line, error) {
		line, err := sim.Opener()(cfg)
		if err != nil {
			return nil, err
		}
		return drainOnlyLine{line.(*SimLine)}, nil
	})
	_, err := p.Install(2048, 0, 8)
	require.NoError(t, err)
	defer p.Uninstall()
	require.NoError(t, p.Configure(DefaultConfig()))

	require.NoError(t, p.WaitTxDone(0))

	sim.SetDrainDelay(time.Second)
	require.ErrorIs(t, p.WaitTxDone(0), ErrTimeout)
}

func TestFlushInput(t *testing.T) {
	p, line, q := newSimPort(t, 2048)
	require.NoError(t, p.SetRxTimeout(9))

	line.Inject([]byte("garbage"))
	require.NoError(t, p.EnableRxInterrupt())
	collect(t, q, 1)

	require.NoError(t, p.FlushInput())
	n, err := p.BufferedLen()
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestUninstallClosesLine(t *testing.T) {
	line := NewSimLine()
	p := NewPort("sim", line.Opener())
	_, err := p.Install(2048, 0, 8)
	require.NoError(t, err)
	require.NoError(t, p.Configure(DefaultConfig()))
	require.NoError(t, p.EnableRxInterrupt())

	require.NoError(t, p.Uninstall())
	require.True(t, line.Closed())
	require.False(t, p.Installed())
}
