package platform

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout         = errors.New("platform: wait timed out")
	ErrNotInitialized  = errors.New("platform: critical section used before Init")
	ErrOutOfMemory     = errors.New("platform: heap exhausted")
	ErrInvalidSize     = errors.New("platform: invalid allocation size")
	ErrMutexDestroyed  = errors.New("platform: mutex used after Destroy")
	ErrNotLocked       = errors.New("platform: unlock of unlocked mutex")
	ErrNotOwner        = errors.New("platform: recursive mutex released by non-owner")
	ErrGroupDeleted    = errors.New("platform: event group deleted")
	ErrInvalidWaitBits = errors.New("platform: invalid event bits to wait for")
)

// FatalError reports a condition the primitives cannot recover from.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("platform: fatal in %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// FatalHandler receives unrecoverable errors. It is expected not to return.
type FatalHandler func(*FatalError)

func panicHandler(fe *FatalError) {
	panic(fe)
}
