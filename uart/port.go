package uart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// MaxRxTimeout is the longest receive idle timeout, in symbols.
const MaxRxTimeout = 126

// rxPollInterval bounds how long the receive goroutine blocks in the line
// while no idle timer is running, so it notices DisableRxInterrupt.
const rxPollInterval = 20 * time.Millisecond

// Port is a UART driver instance. It owns the Line opened by Configure, a
// software receive buffer filled by a receive goroutine, and the event queue
// that goroutine reports to.
type Port struct {
	name string
	open Opener

	mu        sync.RWMutex
	installed bool
	rx        *ring
	txSize    int
	queue     *EventQueue
	line      Line
	cfg       Config
	pins      Pins
	pulls     map[int]PullMode
	rxTimeout int
	pattern   byte
	patternN  int

	rxCancel context.CancelFunc
	rxDone   chan struct{}

	// txMu keeps writes whole when several goroutines send.
	txMu sync.Mutex

	dropped  atomic.Uint64
	received atomic.Uint64
}

// NewPort creates a driver for the line produced by open. name is used in
// log messages only.
func NewPort(name string, open Opener) *Port {
	return &Port{
		name:  name,
		open:  open,
		pins:  Pins{TX: NoPin, RX: NoPin, RTS: NoPin, CTS: NoPin},
		pulls: make(map[int]PullMode),
	}
}

// Name returns the name the port was created with.
func (p *Port) Name() string {
	return p.name
}

// Install allocates the receive buffer and event queue. rxSize must exceed
// the FIFO length; txSize is either 0, for writes that return only once the
// line took every byte, or larger than the FIFO.
func (p *Port) Install(rxSize, txSize, queueSize int) (*EventQueue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.installed {
		return nil, ErrAlreadyInstalled
	}
	if rxSize <= FIFOLen {
		return nil, fmt.Errorf("%w: rx buffer %d must exceed %d", ErrInvalidArg, rxSize, FIFOLen)
	}
	if txSize != 0 && txSize <= FIFOLen {
		return nil, fmt.Errorf("%w: tx buffer %d must be 0 or exceed %d", ErrInvalidArg, txSize, FIFOLen)
	}
	if queueSize <= 0 {
		return nil, fmt.Errorf("%w: event queue size %d", ErrInvalidArg, queueSize)
	}

	p.rx = newRing(rxSize)
	p.txSize = txSize
	p.queue = NewEventQueue(queueSize)
	p.installed = true
	p.dropped.Store(0)
	p.received.Store(0)
	return p.queue, nil
}

// Uninstall stops reception, closes the line and releases the buffers.
func (p *Port) Uninstall() error {
	p.stopRx()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.installed {
		return ErrNotInstalled
	}

	var err error
	if p.line != nil {
		if cerr := p.line.Close(); cerr != nil && !errors.Is(cerr, ErrLineClosed) {
			err = fmt.Errorf("close %s: %w", p.name, cerr)
		}
		p.line = nil
	}
	p.installed = false
	p.rx = nil
	p.queue = nil
	p.patternN = 0
	p.rxTimeout = 0
	clear(p.pulls)
	return err
}

// Installed reports whether Install succeeded and Uninstall has not been called.
func (p *Port) Installed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.installed
}

// Configure applies cfg, opening the line on first use and reopening it on
// later calls.
func (p *Port) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.installed {
		return ErrNotInstalled
	}
	if p.rxCancel != nil {
		return ErrRxEnabled
	}
	if p.line != nil {
		p.line.Close()
		p.line = nil
	}

	line, err := p.open(cfg)
	if err != nil {
		return err
	}
	p.line = line
	p.cfg = cfg

	if rs, ok := line.(RTSSetter); ok && cfg.FlowControl != FlowControlNone {
		if err := rs.SetRTS(true); err != nil {
			glog.V(2).Infof("uart %s: assert RTS: %v", p.name, err)
		}
	}
	return nil
}

// Config returns the applied line parameters.
func (p *Port) Config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// SetPins routes the UART signals. Routing is recorded for lines that have
// fixed wiring.
func (p *Port) SetPins(pins Pins) error {
	if err := pins.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.installed {
		return ErrNotInstalled
	}
	p.pins = pins
	return nil
}

// Pins returns the signal routing.
func (p *Port) Pins() Pins {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pins
}

// SetPullMode selects the pull resistor on pin.
func (p *Port) SetPullMode(pin int, mode PullMode) error {
	if pin < 0 || mode < PullUp || mode > Floating {
		return fmt.Errorf("%w: pull mode %s on pin %d", ErrInvalidArg, mode, pin)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.installed {
		return ErrNotInstalled
	}
	if ps, ok := p.line.(PullSetter); ok {
		if err := ps.SetPullMode(pin, mode); err != nil {
			return err
		}
	}
	p.pulls[pin] = mode
	return nil
}

// SetRxTimeout sets the idle gap, in symbols, after which pending received
// bytes are reported. Zero reports only on the fill threshold.
func (p *Port) SetRxTimeout(symbols int) error {
	if symbols < 0 || symbols > MaxRxTimeout {
		return fmt.Errorf("%w: rx timeout %d symbols", ErrInvalidArg, symbols)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.installed {
		return ErrNotInstalled
	}
	p.rxTimeout = symbols
	return nil
}

// EnablePatternDetect raises EventPatternDet when count consecutive ch bytes
// arrive. A count of 0 disables detection.
func (p *Port) EnablePatternDetect(ch byte, count int) error {
	if count < 0 || count > FIFOLen {
		return fmt.Errorf("%w: pattern count %d", ErrInvalidArg, count)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.installed {
		return ErrNotInstalled
	}
	p.pattern = ch
	p.patternN = count
	return nil
}

// EnableRxInterrupt starts the receive goroutine.
func (p *Port) EnableRxInterrupt() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.installed {
		return ErrNotInstalled
	}
	if p.line == nil {
		return ErrNotConfigured
	}
	if p.rxCancel != nil {
		return ErrRxEnabled
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.rxCancel = cancel
	p.rxDone = done

	go p.rxLoop(ctx, done)
	return nil
}

// DisableRxInterrupt stops the receive goroutine. Buffered bytes stay
// readable.
func (p *Port) DisableRxInterrupt() error {
	if !p.Installed() {
		return ErrNotInstalled
	}
	p.stopRx()
	return nil
}

func (p *Port) stopRx() {
	p.mu.Lock()
	cancel, done := p.rxCancel, p.rxDone
	p.rxCancel, p.rxDone = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// rxSettings is what the receive goroutine needs from the port, read once
// per iteration.
type rxSettings struct {
	line     Line
	rx       *ring
	queue    *EventQueue
	thresh   int
	idle     time.Duration
	pattern  byte
	patternN int
}

func (p *Port) rxSnapshot() rxSettings {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var idle time.Duration
	if p.rxTimeout > 0 {
		idle = time.Duration(p.rxTimeout) * p.cfg.SymbolTime()
	}
	return rxSettings{
		line:     p.line,
		rx:       p.rx,
		queue:    p.queue,
		thresh:   p.cfg.RxFlowCtrlThresh,
		idle:     idle,
		pattern:  p.pattern,
		patternN: p.patternN,
	}
}

// rxLoop plays the role of the receive interrupt: it moves bytes from the
// line into the ring and posts events. It never blocks on the queue.
func (p *Port) rxLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	buf := make([]byte, FIFOLen)
	pending := 0
	run := 0

	for ctx.Err() == nil {
		s := p.rxSnapshot()
		if s.line == nil {
			return
		}

		wait := rxPollInterval
		if pending > 0 && s.idle > 0 {
			wait = s.idle
		}

		n, err := s.line.Read(buf, wait)
		if n > 0 {
			p.received.Add(uint64(n))
			glog.V(3).Infof("uart %s: rx % x", p.name, buf[:n])

			stored := s.rx.write(buf[:n])
			if stored < n {
				p.dropped.Add(uint64(n - stored))
				glog.V(2).Infof("uart %s: rx buffer full, dropped %d bytes", p.name, n-stored)
				s.queue.Post(Event{Type: EventBufferFull, Size: s.rx.len()})
			}

			hit := false
			if s.patternN > 0 {
				for _, b := range buf[:stored] {
					if b != s.pattern {
						run = 0
						continue
					}
					run++
					if run == s.patternN {
						hit = true
						run = 0
					}
				}
			}

			pending += stored
			for pending >= s.thresh {
				s.queue.Post(Event{Type: EventData, Size: s.thresh})
				pending -= s.thresh
			}
			if hit {
				if pending > 0 {
					s.queue.Post(Event{Type: EventData, Size: pending})
					pending = 0
				}
				s.queue.Post(Event{Type: EventPatternDet, Size: s.rx.len()})
			}
		}

		if err != nil {
			var ev EventType
			switch {
			case errors.Is(err, ErrLineClosed):
				glog.V(2).Infof("uart %s: line closed, receive stopped", p.name)
				return
			case errors.Is(err, ErrOverrun):
				ev = EventFIFOOverflow
			case errors.Is(err, ErrFrame):
				ev = EventFrameErr
			case errors.Is(err, ErrParity):
				ev = EventParityErr
			case errors.Is(err, ErrBreak):
				ev = EventBreak
			default:
				glog.Errorf("uart %s: read: %v", p.name, err)
				select {
				case <-ctx.Done():
				case <-time.After(rxPollInterval):
				}
				continue
			}
			s.queue.Post(Event{Type: ev})
			continue
		}

		if n == 0 && pending > 0 && s.idle > 0 {
			s.queue.Post(Event{Type: EventData, Size: pending, Timeout: true})
			pending = 0
		}
	}
}

// BufferedLen returns the number of received bytes waiting to be read.
func (p *Port) BufferedLen() (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.installed {
		return 0, ErrNotInstalled
	}
	return p.rx.len(), nil
}

// ReadBytes waits up to timeout for len(buf) bytes and returns what it has
// at that point, which may be nothing.
func (p *Port) ReadBytes(buf []byte, timeout time.Duration) (int, error) {
	p.mu.RLock()
	rx, installed := p.rx, p.installed
	p.mu.RUnlock()

	if !installed {
		return 0, ErrNotInstalled
	}
	if len(buf) == 0 {
		return 0, nil
	}

	if rx.len() < len(buf) && timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
	wait:
		for rx.len() < len(buf) {
			select {
			case <-rx.avail:
			case <-timer.C:
				break wait
			}
		}
	}
	return rx.read(buf), nil
}

// WriteBytes hands data to the line and returns how many bytes it took.
func (p *Port) WriteBytes(data []byte) (int, error) {
	p.mu.RLock()
	line, installed := p.line, p.installed
	p.mu.RUnlock()

	if !installed {
		return 0, ErrNotInstalled
	}
	if line == nil {
		return 0, ErrNotConfigured
	}

	p.txMu.Lock()
	defer p.txMu.Unlock()

	glog.V(3).Infof("uart %s: tx % x", p.name, data)
	return line.Write(data)
}

// WaitTxDone blocks until written bytes have left the transmitter or timeout
// elapses, in which case it returns ErrTimeout.
func (p *Port) WaitTxDone(timeout time.Duration) error {
	p.mu.RLock()
	line, installed := p.line, p.installed
	p.mu.RUnlock()

	if !installed {
		return ErrNotInstalled
	}
	if line == nil {
		return ErrNotConfigured
	}

	if timeout <= 0 {
		return txIdle(line)
	}
	return drainWithin(line, timeout)
}

// txIdleGrace bounds a zero-timeout wait on lines that cannot report their
// transmit queue.
const txIdleGrace = 5 * time.Millisecond

// txIdle reports whether the transmitter is already idle, without waiting
// when the line can tell.
func txIdle(line Line) error {
	q, ok := line.(TxQueue)
	if !ok {
		return drainWithin(line, txIdleGrace)
	}
	n, err := q.TxPending()
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrTimeout
	}
	return nil
}

func drainWithin(line Line, timeout time.Duration) error {
	result := make(chan error, 1)
	go func() {
		result <- line.Drain()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-result:
		return err
	case <-timer.C:
		return ErrTimeout
	}
}

// FlushInput discards buffered received bytes, in the driver and the line.
func (p *Port) FlushInput() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.installed {
		return ErrNotInstalled
	}
	p.rx.reset()
	if p.line != nil {
		return p.line.ResetInput()
	}
	return nil
}

// PortStats counts received bytes.
type PortStats struct {
	Received uint64
	Dropped  uint64
}

// Stats returns receive counters since Install.
func (p *Port) Stats() PortStats {
	return PortStats{
		Received: p.received.Load(),
		Dropped:  p.dropped.Load(),
	}
}
