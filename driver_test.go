package modemlink

import (
	"bytes"
	"sync"
	"time"

	"github.com/allbin/go-modemlink/uart"
)

// fakeDriver records calls and fails on demand. Received data is whatever
// the test put in rx.
type fakeDriver struct {
	mu      sync.Mutex
	fail    map[string]error
	calls   []string
	queue   *uart.EventQueue
	rx      bytes.Buffer
	tx      bytes.Buffer
	flushes int
}

var _ Driver = (*fakeDriver)(nil)

func newFakeDriver() *fakeDriver {
	return &fakeDriver{fail: make(map[string]error)}
}

func (d *fakeDriver) call(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, name)
	return d.fail[name]
}

func (d *fakeDriver) failOn(name string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[name] = err
}

func (d *fakeDriver) called(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (d *fakeDriver) events() *uart.EventQueue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue
}

func (d *fakeDriver) inject(p []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rx.Write(p)
}

func (d *fakeDriver) Install(rxSize, txSize, queueSize int) (*uart.EventQueue, error) {
	if err := d.call("Install"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = uart.NewEventQueue(queueSize)
	return d.queue, nil
}

func (d *fakeDriver) Uninstall() error { return d.call("Uninstall") }
func (d *fakeDriver) Configure(uart.Config) error { return d.call("Configure") }
func (d *fakeDriver) SetPins(uart.Pins) error { return d.call("SetPins") }
func (d *fakeDriver) SetPullMode(int, uart.PullMode) error { return d.call("SetPullMode") }
func (d *fakeDriver) EnableRxInterrupt() error { return d.call("EnableRxInterrupt") }
func (d *fakeDriver) SetRxTimeout(int) error { return d.call("SetRxTimeout") }
func (d *fakeDriver) EnablePatternDetect(byte, int) error { return d.call("EnablePatternDetect") }
func (d *fakeDriver) WaitTxDone(time.Duration) error { return d.call("WaitTxDone") }

func (d *fakeDriver) BufferedLen() (int, error) {
	if err := d.call("BufferedLen"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rx.Len(), nil
}

func (d *fakeDriver) ReadBytes(buf []byte, _ time.Duration) (int, error) {
	if err := d.call("ReadBytes"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n, _ := d.rx.Read(buf)
	return n, nil
}

func (d *fakeDriver) WriteBytes(data []byte) (int, error) {
	if err := d.call("WriteBytes"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tx.Write(data)
}

func (d *fakeDriver) FlushInput() error {
	if err := d.call("FlushInput"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rx.Reset()
	d.flushes++
	return nil
}
