package uart

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func drainQueue(q *EventQueue) []Event {
	var got []Event
	for {
		ev, ok := q.TryReceive()
		if !ok {
			return got
		}
		got = append(got, ev)
	}
}

func TestEventQueueOrder(t *testing.T) {
	q := NewEventQueue(4)
	want := []Event{
		{Type: EventData, Size: 3},
		{Type: EventParityErr},
		{Type: EventData, Size: 1, Timeout: true},
	}
	for _, ev := range want {
		require.True(t, q.Post(ev))
	}
	require.Equal(t, 3, q.Len())

	if diff := cmp.Diff(want, drainQueue(q)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestEventQueueOverflowMark(t *testing.T) {
	q := NewEventQueue(2)
	require.True(t, q.Post(Event{Type: EventData, Size: 1}))
	require.True(t, q.Post(Event{Type: EventData, Size: 2}))
	require.False(t, q.Post(Event{Type: EventData, Size: 3}))
	require.False(t, q.Post(Event{Type: EventBreak}))
	require.Equal(t, 3, q.Len())

	want := []Event{
		{Type: EventData, Size: 1},
		{Type: EventData, Size: 2},
		{Type: EventBufferFull},
	}
	if diff := cmp.Diff(want, drainQueue(q)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	// The mark is delivered once.
	_, ok := q.TryReceive()
	require.False(t, ok)
}

func TestEventQueueReset(t *testing.T) {
	q := NewEventQueue(1)
	q.Post(Event{Type: EventData, Size: 1})
	q.Post(Event{Type: EventData, Size: 2})
	q.Reset()

	require.Equal(t, 0, q.Len())
	_, ok := q.TryReceive()
	require.False(t, ok)

	require.True(t, q.Post(Event{Type: EventFrameErr}))
	ev, ok := q.TryReceive()
	require.True(t, ok)
	require.Equal(t, EventFrameErr, ev.Type)
}

func TestEventQueueReceiveBlocks(t *testing.T) {
	q := NewEventQueue(8)

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Post(Event{Type: EventBreak})
		q.Post(Event{Type: EventData, Size: 5})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ev, err := q.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, EventBreak, ev.Type)

	ev, err = q.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, Event{Type: EventData, Size: 5}, ev)
}

func TestEventQueueReceiveCancel(t *testing.T) {
	q := NewEventQueue(8)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := q.Receive(ctx)
		errc <- err
	}()

	cancel()
	select {
	case err := <-errc:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Receive did not return after cancel")
	}
}

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		typ      EventType
		expected string
		known    bool
	}{
		{EventData, "data", true},
		{EventBreak, "break", true},
		{EventBufferFull, "buffer-full", true},
		{EventFIFOOverflow, "fifo-overflow", true},
		{EventFrameErr, "frame-error", true},
		{EventParityErr, "parity-error", true},
		{EventPatternDet, "pattern", true},
		{EventType(42), "unknown(42)", false},
	}

	for _, test := range tests {
		if got := test.typ.String(); got != test.expected {
			t.Errorf("EventType(%d).String() = %s, expected %s", int(test.typ), got, test.expected)
		}
		if got := test.typ.Known(); got != test.known {
			t.Errorf("EventType(%d).Known() = %v, expected %v", int(test.typ), got, test.known)
		}
	}
}
