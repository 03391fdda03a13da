package uart

import (
	"bytes"
	"sync"
	"time"
)

// SimLine is an in-memory Line standing in for a modem. Bytes and receive
// faults are fed with Inject and InjectError; everything written is kept for
// inspection. A SimLine can be reopened after Close.
type SimLine struct {
	mu    sync.Mutex
	rx    []simChunk
	avail chan struct{}
	done  chan struct{}

	tx         bytes.Buffer
	echo       bool
	respond    func([]byte) []byte
	shortWrite int
	writeErr   error
	openErr    error
	drainDelay time.Duration
	txPending  int
	txDoneAt   time.Time

	closed bool
	opens  int
	cfg    Config
	rts    bool
	pulls  map[int]PullMode
}

type simChunk struct {
	data []byte
	err  error
}

// Ensure SimLine implements the optional line interfaces at compile time
var (
	_ Line       = (*SimLine)(nil)
	_ RTSSetter  = (*SimLine)(nil)
	_ PullSetter = (*SimLine)(nil)
	_ TxQueue    = (*SimLine)(nil)
)

// NewSimLine returns a closed SimLine; open it through Opener.
func NewSimLine() *SimLine {
	return &SimLine{
		avail:  make(chan struct{}, 1),
		done:   make(chan struct{}),
		closed: true,
		pulls:  make(map[int]PullMode),
	}
}

// Opener returns an Opener that (re)opens s.
func (s *SimLine) Opener() Opener {
	return func(cfg Config) (Line, error) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.openErr != nil {
			return nil, s.openErr
		}
		if s.closed {
			s.done = make(chan struct{})
		}
		s.closed = false
		s.cfg = cfg
		s.opens++
		return s, nil
	}
}

func (s *SimLine) signal() {
	select {
	case s.avail <- struct{}{}:
	default:
	}
}

// Inject queues bytes as if the modem had sent them.
func (s *SimLine) Inject(data []byte) {
	if len(data) == 0 {
		return
	}
	s.mu.Lock()
	s.rx = append(s.rx, simChunk{data: bytes.Clone(data)})
	s.mu.Unlock()
	s.signal()
}

// InjectError queues a receive fault such as ErrParity. It is returned by
// Read once the bytes injected before it have been read.
func (s *SimLine) InjectError(err error) {
	s.mu.Lock()
	s.rx = append(s.rx, simChunk{err: err})
	s.mu.Unlock()
	s.signal()
}

// SetEcho makes every write loop back as received data.
func (s *SimLine) SetEcho(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.echo = on
}

// SetResponder installs fn to answer each write; a non-empty reply is
// queued as received data.
func (s *SimLine) SetResponder(fn func(written []byte) []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.respond = fn
}

// SetShortWrite caps each Write at n bytes. Zero removes the cap.
func (s *SimLine) SetShortWrite(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shortWrite = n
}

// SetWriteError makes Write fail with err. Nil clears it.
func (s *SimLine) SetWriteError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// SetOpenError makes the Opener fail with err. Nil clears it.
func (s *SimLine) SetOpenError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
}

// SetDrainDelay makes Drain take d, as if bytes were still on the wire.
func (s *SimLine) SetDrainDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drainDelay = d
}

// Transmitted returns a copy of everything written so far.
func (s *SimLine) Transmitted() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.tx.Bytes())
}

// TakeTransmitted returns everything written so far and forgets it.
func (s *SimLine) TakeTransmitted() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := bytes.Clone(s.tx.Bytes())
	s.tx.Reset()
	return b
}

// Config returns the parameters the line was last opened with.
func (s *SimLine) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Opens returns how many times the line has been opened.
func (s *SimLine) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// Closed reports whether the line is closed.
func (s *SimLine) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// RTS reports the last RTS level set.
func (s *SimLine) RTS() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rts
}

// PullMode returns the pull mode last set on pin.
func (s *SimLine) PullMode(pin int) (PullMode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.pulls[pin]
	return m, ok
}

func (s *SimLine) Read(p []byte, timeout time.Duration) (int, error) {
	var timer *time.Timer
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return 0, ErrLineClosed
		}
		if len(s.rx) > 0 {
			n, err := s.take(p)
			s.mu.Unlock()
			return n, err
		}
		done := s.done
		s.mu.Unlock()

		if timer == nil {
			if timeout <= 0 {
				return 0, nil
			}
			timer = time.NewTimer(timeout)
			defer timer.Stop()
		}

		select {
		case <-s.avail:
		case <-done:
		case <-timer.C:
			return 0, nil
		}
	}
}

// take must be called with mu held and rx non-empty.
func (s *SimLine) take(p []byte) (int, error) {
	c := &s.rx[0]
	if c.err != nil {
		err := c.err
		s.rx = s.rx[1:]
		return 0, err
	}
	n := copy(p, c.data)
	c.data = c.data[n:]
	if len(c.data) == 0 {
		s.rx = s.rx[1:]
	}
	if len(s.rx) > 0 {
		s.signal()
	}
	return n, nil
}

func (s *SimLine) Write(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrLineClosed
	}
	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return 0, err
	}

	n := len(p)
	if s.shortWrite > 0 && n > s.shortWrite {
		n = s.shortWrite
	}
	s.tx.Write(p[:n])
	if s.drainDelay > 0 {
		s.txPending = n
		s.txDoneAt = time.Now().Add(s.drainDelay)
	}

	var reply []byte
	if s.echo {
		reply = append(reply, p[:n]...)
	}
	if s.respond != nil {
		reply = append(reply, s.respond(bytes.Clone(p[:n]))...)
	}
	if len(reply) > 0 {
		s.rx = append(s.rx, simChunk{data: reply})
	}
	s.mu.Unlock()

	if len(reply) > 0 {
		s.signal()
	}
	return n, nil
}

func (s *SimLine) Drain() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrLineClosed
	}
	d, done := s.drainDelay, s.done
	s.mu.Unlock()

	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-done:
		return ErrLineClosed
	}
}

// TxPending reports the last write as pending until the drain delay set
// by SetDrainDelay has passed since it was written.
func (s *SimLine) TxPending() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrLineClosed
	}
	if time.Now().Before(s.txDoneAt) {
		return s.txPending, nil
	}
	return 0, nil
}

func (s *SimLine) ResetInput() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrLineClosed
	}
	s.rx = nil
	return nil
}

func (s *SimLine) SetRTS(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rts = on
	return nil
}

func (s *SimLine) SetPullMode(pin int, mode PullMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pulls[pin] = mode
	return nil
}

func (s *SimLine) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrLineClosed
	}
	s.closed = true
	close(s.done)
	return nil
}
