package uart

import (
	"context"
	"fmt"
	"sync"
)

// EventType identifies what the receive side of the driver observed.
type EventType int

const (
	EventData EventType = iota
	EventBreak
	EventBufferFull
	EventFIFOOverflow
	EventFrameErr
	EventParityErr
	EventPatternDet
	eventTypeMax
)

func (t EventType) String() string {
	switch t {
	case EventData:
		return "data"
	case EventBreak:
		return "break"
	case EventBufferFull:
		return "buffer-full"
	case EventFIFOOverflow:
		return "fifo-overflow"
	case EventFrameErr:
		return "frame-error"
	case EventParityErr:
		return "parity-error"
	case EventPatternDet:
		return "pattern"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Known reports whether t is one of the defined event types.
func (t EventType) Known() bool {
	return t >= EventData && t < eventTypeMax
}

// Event is one entry of the driver's event channel.
type Event struct {
	Type EventType
	// Size is the number of bytes the event accounts for, if any.
	Size int
	// Timeout is set on data events raised by the receive idle timer rather
	// than by the fill threshold.
	Timeout bool
}

func (e Event) String() string {
	if e.Type == EventData {
		return fmt.Sprintf("data(%d, timeout=%t)", e.Size, e.Timeout)
	}
	return e.Type.String()
}

// EventQueue is a bounded FIFO of driver events. Post never blocks, so it
// can be called from the receive goroutine. When the queue is full the event
// is dropped and an overflow mark is kept instead; the consumer receives the
// mark as a single EventBufferFull once the queued entries are drained.
type EventQueue struct {
	mu       sync.Mutex
	buf      []Event
	head     int
	n        int
	overflow bool
	notify   chan struct{}
}

// NewEventQueue creates a queue holding up to size events.
func NewEventQueue(size int) *EventQueue {
	if size < 1 {
		size = 1
	}
	return &EventQueue{
		buf:    make([]Event, size),
		notify: make(chan struct{}, 1),
	}
}

// Cap returns the queue capacity.
func (q *EventQueue) Cap() int {
	return len(q.buf)
}

// Len returns the number of pending events, counting an overflow mark.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.overflow {
		return q.n + 1
	}
	return q.n
}

// Post appends ev. It reports false when the queue was full and ev was
// replaced by the overflow mark.
func (q *EventQueue) Post(ev Event) bool {
	q.mu.Lock()
	ok := true
	if q.n == len(q.buf) {
		q.overflow = true
		ok = false
	} else {
		q.buf[(q.head+q.n)%len(q.buf)] = ev
		q.n++
	}
	q.mu.Unlock()

	q.wake()
	return ok
}

func (q *EventQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *EventQueue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.n > 0 {
		ev := q.buf[q.head]
		q.buf[q.head] = Event{}
		q.head = (q.head + 1) % len(q.buf)
		q.n--
		return ev, true
	}
	if q.overflow {
		q.overflow = false
		return Event{Type: EventBufferFull}, true
	}
	return Event{}, false
}

// TryReceive returns the next event without blocking.
func (q *EventQueue) TryReceive() (Event, bool) {
	return q.pop()
}

// Receive blocks until an event is available or ctx is done.
func (q *EventQueue) Receive(ctx context.Context) (Event, error) {
	for {
		if ev, ok := q.pop(); ok {
			if q.Len() > 0 {
				q.wake()
			}
			return ev, nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Reset discards all pending events and the overflow mark.
func (q *EventQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.buf)
	q.head = 0
	q.n = 0
	q.overflow = false
}
