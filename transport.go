package modemlink

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/petermattis/goid"

	"github.com/allbin/go-modemlink/platform"
	"github.com/allbin/go-modemlink/uart"
)

// Driver is the UART driver a Transport sits on.
type Driver interface {
	Install(rxSize, txSize, queueSize int) (*uart.EventQueue, error)
	Uninstall() error
	Configure(cfg uart.Config) error
	SetPins(pins uart.Pins) error
	SetPullMode(pin int, mode uart.PullMode) error
	EnableRxInterrupt() error
	SetRxTimeout(symbols int) error
	EnablePatternDetect(ch byte, count int) error
	BufferedLen() (int, error)
	ReadBytes(buf []byte, timeout time.Duration) (int, error)
	WriteBytes(data []byte) (int, error)
	WaitTxDone(timeout time.Duration) error
	FlushInput() error
}

// Ensure the uart driver satisfies Driver at compile time
var _ Driver = (*uart.Port)(nil)

// Handle identifies an open transport to the protocol layer.
type Handle = *Transport

// ReceiveCallback is invoked on the drain thread when received data is
// pending. It normally pulls the data with h.Receive. A nil return means the
// data was consumed.
type ReceiveCallback func(userData any, h Handle) error

// Transport connects a protocol layer to a modem over one UART driver.
type Transport struct {
	driver   Driver
	config   Config
	platform platform.Platform

	// lifecycle serialises Open and Close.
	lifecycle sync.Mutex

	mu        sync.RWMutex
	open      bool
	installed bool
	cb        ReceiveCallback
	userData  any
	events    *uart.EventQueue
	drain     *drainThread

	stats counters
}

// New creates a closed Transport on driver.
func New(driver Driver, opts ...Option) (*Transport, error) {
	if driver == nil {
		return nil, badParameter("nil driver")
	}

	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return nil, err
		}
	}
	if config.Platform == nil {
		config.Platform = platform.Default()
	}

	return &Transport{
		driver:   driver,
		config:   config,
		platform: config.Platform,
	}, nil
}

// Config returns the transport configuration.
func (t *Transport) Config() Config {
	return t.config
}

// IsOpen reports whether Open succeeded and Close has not been called since.
func (t *Transport) IsOpen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.open
}

// Open installs and configures the driver, then starts the drain thread
// that invokes cb with userData when data arrives. cb may be nil.
//
// Open does not undo earlier steps when a later one fails; call Close to
// release whatever was set up.
func (t *Transport) Open(cb ReceiveCallback, userData any) (Handle, error) {
	if t == nil || t.driver == nil {
		return nil, badParameter("nil transport")
	}

	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	t.mu.Lock()
	if t.open {
		t.mu.Unlock()
		glog.Errorf("modemlink: open: transport already open")
		return nil, ErrFailure
	}
	t.cb = cb
	t.userData = userData
	t.mu.Unlock()

	cfg := t.config
	events, err := t.driver.Install(cfg.RxBufferSize, cfg.TxBufferSize, cfg.EventQueueSize)
	if err != nil {
		glog.Errorf("modemlink: failed to install driver: %v", err)
		return nil, driverError("install", err)
	}
	t.mu.Lock()
	t.installed = true
	t.events = events
	t.mu.Unlock()

	if err := t.driver.Configure(cfg.Line); err != nil {
		glog.Errorf("modemlink: failed to configure UART: %v", err)
		return nil, driverError("configure", err)
	}
	if err := t.driver.SetPins(cfg.Pins); err != nil {
		glog.Errorf("modemlink: failed to configure UART pins: %v", err)
		return nil, driverError("set pins", err)
	}
	// A pull-up on CTS can keep the modem from asserting it.
	if cfg.Pins.CTS != uart.NoPin {
		if err := t.driver.SetPullMode(cfg.Pins.CTS, uart.Floating); err != nil {
			glog.Errorf("modemlink: failed to float CTS: %v", err)
			return nil, driverError("set CTS pull mode", err)
		}
	}
	if cfg.PatternCount > 0 {
		if err := t.driver.EnablePatternDetect(cfg.PatternChar, cfg.PatternCount); err != nil {
			return nil, driverError("enable pattern detect", err)
		}
	}
	if err := t.driver.EnableRxInterrupt(); err != nil {
		return nil, driverError("enable rx interrupt", err)
	}
	if err := t.driver.SetRxTimeout(cfg.RxTimeout); err != nil {
		return nil, driverError("set rx timeout", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.drain != nil {
		glog.Errorf("modemlink: open: drain thread already running")
		return nil, ErrFailure
	}
	d := newDrainThread(events)
	if !t.platform.CreateDetachedThread(t.drainMain, d, cfg.DrainPriority, cfg.DrainStackWords) {
		glog.Errorf("modemlink: failed to start drain thread")
		return nil, ErrFailure
	}
	t.drain = d
	t.open = true

	glog.V(2).Infof("modemlink: open, %s", cfg.Line)
	return t, nil
}

// Send writes data and waits up to timeout for it to leave the transmitter.
// If the wait times out the data was still accepted and len(data) is
// returned with ErrTimeout.
func (t *Transport) Send(data []byte, timeout time.Duration) (int, error) {
	if t == nil {
		return 0, badParameter("nil handle")
	}
	if !t.IsOpen() {
		return 0, ErrNotOpen
	}

	n, err := t.driver.WriteBytes(data)
	if err != nil {
		glog.Errorf("modemlink: send failed: %v", err)
		return 0, driverError("write", err)
	}
	if n != len(data) {
		glog.Errorf("modemlink: send failed: buffer took %d of %d bytes", n, len(data))
		return 0, ErrNoMemory
	}
	t.stats.bytesSent.Add(uint64(n))

	if err := t.driver.WaitTxDone(timeout); err != nil {
		if errors.Is(err, uart.ErrTimeout) {
			glog.Errorf("modemlink: send: timeout after %v", timeout)
			return n, ErrTimeout
		}
		return n, driverError("wait tx done", err)
	}

	glog.V(2).Infof("modemlink: sent %d bytes", n)
	return n, nil
}

// Receive copies up to len(buf) of the bytes already buffered by the driver
// into buf, waiting at most timeout for them to be handed over.
func (t *Transport) Receive(buf []byte, timeout time.Duration) (int, error) {
	if t == nil {
		return 0, badParameter("nil handle")
	}
	if !t.IsOpen() {
		return 0, ErrNotOpen
	}

	avail, err := t.driver.BufferedLen()
	if err != nil {
		return 0, driverError("buffered length", err)
	}
	avail = min(avail, len(buf))
	if avail == 0 {
		return 0, nil
	}

	n, err := t.driver.ReadBytes(buf[:avail], timeout)
	if err != nil {
		glog.Errorf("modemlink: receive error: %v", err)
		return 0, driverError("read", err)
	}
	t.stats.bytesReceived.Add(uint64(n))

	glog.V(2).Infof("modemlink: received %d bytes", n)
	if glog.V(3) {
		glog.Infof("modemlink: rx %q", buf[:n])
	}
	return n, nil
}

// Close stops the drain thread and uninstalls the driver. Once Close returns
// the callback is not invoked again. It may be called from the callback.
func (t *Transport) Close() error {
	if t == nil {
		return badParameter("nil handle")
	}

	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	t.mu.Lock()
	if !t.open && !t.installed && t.drain == nil {
		t.mu.Unlock()
		return ErrFailure
	}
	d := t.drain
	installed := t.installed
	t.drain = nil
	t.open = false
	t.installed = false
	t.events = nil
	t.mu.Unlock()

	if d != nil {
		d.stop(t.config.CloseMode, t.config.CloseTimeout)
	}

	t.mu.Lock()
	t.cb = nil
	t.userData = nil
	t.mu.Unlock()

	if installed {
		if err := t.driver.Uninstall(); err != nil {
			glog.Errorf("modemlink: failed to uninstall UART driver: %v", err)
			return driverError("uninstall", err)
		}
	}

	glog.V(2).Infof("modemlink: closed")
	return nil
}

// drainThread is the state shared between the drain loop and Close.
type drainThread struct {
	events *uart.EventQueue
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	gid    atomic.Int64

	// gate orders callback starts against stop.
	gate     sync.Mutex
	stopped  bool
	inflight sync.WaitGroup
}

func newDrainThread(events *uart.EventQueue) *drainThread {
	ctx, cancel := context.WithCancel(context.Background())
	return &drainThread{
		events: events,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// begin reports whether a callback may start. A true result must be
// matched by end.
func (d *drainThread) begin() bool {
	d.gate.Lock()
	defer d.gate.Unlock()
	if d.stopped {
		return false
	}
	d.inflight.Add(1)
	return true
}

func (d *drainThread) end() {
	d.inflight.Done()
}

func (d *drainThread) stop(mode CloseMode, timeout time.Duration) {
	d.gate.Lock()
	d.stopped = true
	d.gate.Unlock()
	d.cancel()

	// Close from inside the callback: the loop exits once it returns. A gid
	// of 0 means the loop has not recorded itself yet.
	if gid := d.gid.Load(); gid != 0 && gid == goid.Get() {
		return
	}
	if mode == CloseForced {
		return
	}

	stopped := make(chan struct{})
	go func() {
		d.inflight.Wait()
		<-d.done
		close(stopped)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-stopped:
	case <-timer.C:
		glog.Warningf("modemlink: drain thread still busy after %v", timeout)
	}
}

func (t *Transport) drainMain(arg any) {
	d := arg.(*drainThread)
	d.gid.Store(goid.Get())
	defer close(d.done)

	for d.ctx.Err() == nil {
		ev, err := d.events.Receive(d.ctx)
		if err != nil {
			return
		}
		t.handleEvent(d, ev)
	}
}

func (t *Transport) handleEvent(d *drainThread, ev uart.Event) {
	t.stats.events.Add(1)

	switch ev.Type {
	case uart.EventData, uart.EventPatternDet:
		glog.V(2).Infof("modemlink: %s event: size %d", ev.Type, ev.Size)

		t.mu.RLock()
		cb, userData := t.cb, t.userData
		t.mu.RUnlock()

		if cb == nil {
			glog.Warningf("modemlink: %s event: no receive callback", ev.Type)
			t.stats.unhandled.Add(1)
			return
		}
		if !d.begin() {
			return
		}
		err := cb(userData, t)
		d.end()

		t.stats.callbacks.Add(1)
		if err != nil {
			t.stats.callbackErrors.Add(1)
			glog.V(2).Infof("modemlink: receive callback: %v", err)
			return
		}
		t.platform.Yield()

	case uart.EventFIFOOverflow, uart.EventBufferFull:
		glog.Errorf("modemlink: %s, flushing input", ev.Type)
		if err := t.driver.FlushInput(); err != nil {
			glog.Errorf("modemlink: flush input: %v", err)
		}
		d.events.Reset()
		t.stats.overflows.Add(1)

	case uart.EventBreak, uart.EventParityErr, uart.EventFrameErr:
		glog.Errorf("modemlink: UART %s", ev.Type)
		t.stats.lineErrors.Add(1)

	default:
		glog.Warningf("modemlink: unknown event type: %d", int(ev.Type))
		t.stats.unknown.Add(1)
	}
}
