package uart

import "time"

// Line is the byte transport under a Port: a real serial device or a
// simulation. Read waits up to timeout for at least one byte and returns
// (0, nil) if none arrived. Receive faults are reported as ErrOverrun,
// ErrFrame, ErrParity or ErrBreak; a closed line returns ErrLineClosed.
type Line interface {
	Read(p []byte, timeout time.Duration) (int, error)
	Write(p []byte) (int, error)
	// Drain blocks until all written bytes have left the transmitter.
	Drain() error
	// ResetInput discards bytes received but not yet read.
	ResetInput() error
	Close() error
}

// RTSSetter is implemented by lines that can drive the RTS signal.
type RTSSetter interface {
	SetRTS(on bool) error
}

// TxQueue is implemented by lines that can report how many written bytes
// have not left the transmitter yet.
type TxQueue interface {
	TxPending() (int, error)
}

// PullSetter is implemented by lines that control pin pull resistors.
type PullSetter interface {
	SetPullMode(pin int, mode PullMode) error
}

// Opener opens a Line with the given parameters.
type Opener func(cfg Config) (Line, error)
