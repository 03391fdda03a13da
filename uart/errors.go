package uart

import "errors"

// Driver errors
var (
	ErrNotInstalled     = errors.New("uart: driver not installed")
	ErrAlreadyInstalled = errors.New("uart: driver already installed")
	ErrInvalidArg       = errors.New("uart: invalid argument")
	ErrInvalidBaudRate  = errors.New("uart: invalid baud rate")
	ErrTimeout          = errors.New("uart: operation timed out")
	ErrRxEnabled        = errors.New("uart: receive already enabled")
	ErrNotConfigured    = errors.New("uart: line not configured")
	ErrUnsupported      = errors.New("uart: not supported by this line")
)

// Line errors. A Line reports receive-side faults by returning these from
// Read; the driver turns them into events.
var (
	ErrLineClosed = errors.New("uart: line closed")
	ErrOverrun    = errors.New("uart: hardware FIFO overrun")
	ErrFrame      = errors.New("uart: frame error")
	ErrParity     = errors.New("uart: parity error")
	ErrBreak      = errors.New("uart: break detected")
)
