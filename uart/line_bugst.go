package uart

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// bugstLine is a Line on go.bug.st/serial, for hosts without termios.
type bugstLine struct {
	port serial.Port
	path string

	// rmu serialises Read so the port's read timeout matches the caller's.
	rmu     sync.Mutex
	timeout time.Duration
}

// Ensure bugstLine implements Line and RTSSetter at compile time
var (
	_ Line      = (*bugstLine)(nil)
	_ RTSSetter = (*bugstLine)(nil)
)

// BugstOpener returns an Opener for path using go.bug.st/serial. The library
// exposes no RTS/CTS handshake, so hardware flow control is rejected.
func BugstOpener(path string) Opener {
	return func(cfg Config) (Line, error) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if cfg.FlowControl != FlowControlNone {
			return nil, fmt.Errorf("%w: %s flow control on %s", ErrUnsupported, cfg.FlowControl, path)
		}

		mode := &serial.Mode{
			BaudRate: cfg.BaudRate,
			DataBits: cfg.DataBits,
			Parity:   convertParity(cfg.Parity),
			StopBits: convertStopBits(cfg.StopBits),
		}
		port, err := serial.Open(path, mode)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		return &bugstLine{port: port, path: path, timeout: -1}, nil
	}
}

// convertParity converts our Parity type to serial.Parity.
func convertParity(p Parity) serial.Parity {
	switch p {
	case ParityOdd:
		return serial.OddParity
	case ParityEven:
		return serial.EvenParity
	case ParityMark:
		return serial.MarkParity
	case ParitySpace:
		return serial.SpaceParity
	default:
		return serial.NoParity
	}
}

// convertStopBits converts a stop bit count to serial.StopBits.
func convertStopBits(n int) serial.StopBits {
	if n == 2 {
		return serial.TwoStopBits
	}
	return serial.OneStopBit
}

// mapError folds library errors into the Line error set.
func mapError(err error) error {
	var perr *serial.PortError
	if errors.As(err, &perr) && perr.Code() == serial.PortClosed {
		return ErrLineClosed
	}
	return err
}

func (l *bugstLine) Read(p []byte, timeout time.Duration) (int, error) {
	l.rmu.Lock()
	defer l.rmu.Unlock()

	if timeout <= 0 {
		timeout = time.Millisecond
	}
	if timeout != l.timeout {
		if err := l.port.SetReadTimeout(timeout); err != nil {
			return 0, mapError(err)
		}
		l.timeout = timeout
	}
	n, err := l.port.Read(p)
	if err != nil {
		return n, mapError(err)
	}
	return n, nil
}

func (l *bugstLine) Write(p []byte) (int, error) {
	n, err := l.port.Write(p)
	return n, mapError(err)
}

func (l *bugstLine) Drain() error {
	return mapError(l.port.Drain())
}

func (l *bugstLine) ResetInput() error {
	return mapError(l.port.ResetInputBuffer())
}

func (l *bugstLine) SetRTS(on bool) error {
	return mapError(l.port.SetRTS(on))
}

func (l *bugstLine) Close() error {
	return mapError(l.port.Close())
}
