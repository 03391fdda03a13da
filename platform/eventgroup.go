package platform

import (
	"sync"
	"time"
)

// EventBits is a set of event flags. The top byte is reserved for control
// bits, leaving 24 usable flags.
type EventBits uint32

const (
	EventBitsMask    EventBits = 0x00ffffff
	eventControlBits EventBits = ^EventBitsMask
)

// isrQueueLen bounds the number of pending SetBitsFromISR requests.
const isrQueueLen = 8

// EventGroup is a set of independently settable, clearable and waitable flags.
type EventGroup struct {
	host *Host

	mu      sync.Mutex
	bits    EventBits
	changed chan struct{} // closed and replaced whenever bits change
	deleted bool

	isr  chan EventBits
	done chan struct{}
}

// NewEventGroup creates an event group with all bits cleared.
func (h *Host) NewEventGroup() (*EventGroup, error) {
	g := &EventGroup{
		host:    h,
		changed: make(chan struct{}),
		isr:     make(chan EventBits, isrQueueLen),
		done:    make(chan struct{}),
	}
	go g.daemon()
	return g, nil
}

// daemon applies bits posted from interrupt context.
func (g *EventGroup) daemon() {
	for {
		select {
		case bits := <-g.isr:
			g.SetBits(bits)
		case <-g.done:
			return
		}
	}
}

// notify must be called with mu held.
func (g *EventGroup) notify() {
	close(g.changed)
	g.changed = make(chan struct{})
}

// SetBits sets bits and wakes waiters. It returns the group's bits as of the
// return, which may already have been cleared by a waiter using clearOnExit.
func (g *EventGroup) SetBits(bits EventBits) EventBits {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.deleted {
		return 0
	}
	g.bits |= bits & EventBitsMask
	g.notify()
	return g.bits
}

// SetBitsFromISR defers setting bits to the group's daemon so the caller never
// blocks. It reports false if the deferral queue is full or the group was
// deleted.
func (g *EventGroup) SetBitsFromISR(bits EventBits) bool {
	select {
	case <-g.done:
		return false
	default:
	}

	select {
	case g.isr <- bits:
		return true
	default:
		return false
	}
}

// ClearBits clears bits and returns the value before clearing.
func (g *EventGroup) ClearBits(bits EventBits) EventBits {
	g.mu.Lock()
	defer g.mu.Unlock()

	prev := g.bits
	g.bits &^= bits
	return prev
}

// GetBits returns the current bits.
func (g *EventGroup) GetBits() EventBits {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bits
}

// WaitBits blocks until any (or, with waitForAll, every) bit in bits is set,
// or timeout elapses. With clearOnExit the awaited bits are cleared when the
// condition is met. A timeout of 0 polls; MaxDelay waits forever.
//
// The returned bits are the group's value when the condition was met, or at
// the timeout, in which case the error is ErrTimeout.
func (g *EventGroup) WaitBits(bits EventBits, clearOnExit, waitForAll bool, timeout time.Duration) (EventBits, error) {
	if bits == 0 || bits&eventControlBits != 0 {
		g.host.fatal("EventGroup.WaitBits", ErrInvalidWaitBits)
	}

	var timerC <-chan time.Time
	if timeout > 0 && timeout != MaxDelay {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	for {
		g.mu.Lock()
		if g.deleted {
			g.mu.Unlock()
			return 0, ErrGroupDeleted
		}
		if satisfied(g.bits, bits, waitForAll) {
			val := g.bits
			if clearOnExit {
				g.bits &^= bits
			}
			g.mu.Unlock()
			return val, nil
		}
		if timeout <= 0 {
			val := g.bits
			g.mu.Unlock()
			return val, ErrTimeout
		}
		changed := g.changed
		g.mu.Unlock()

		select {
		case <-changed:
		case <-timerC:
			return g.GetBits(), ErrTimeout
		}
	}
}

func satisfied(have, want EventBits, all bool) bool {
	if all {
		return have&want == want
	}
	return have&want != 0
}

// Delete releases the group and unblocks waiters with ErrGroupDeleted.
func (g *EventGroup) Delete() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.deleted {
		return
	}
	g.deleted = true
	close(g.done)
	g.notify()
}
