package modemlink

import (
	"errors"
	"fmt"
)

// Transport status codes
var (
	ErrBadParameter = errors.New("modemlink: bad parameter")
	ErrFailure      = errors.New("modemlink: failure")
	ErrDriverError  = errors.New("modemlink: driver error")
	ErrTimeout      = errors.New("modemlink: timeout")
	ErrNoMemory     = errors.New("modemlink: no memory")
)

// ErrNotOpen is returned for I/O on a closed transport. It is an ErrFailure.
var ErrNotOpen = fmt.Errorf("%w: transport not open", ErrFailure)

// driverError wraps a driver failure during op.
func driverError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDriverError, op, err)
}
