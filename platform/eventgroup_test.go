package platform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	bitA EventBits = 1 << iota
	bitB
	bitC
)

func TestEventGroupWaitAny(t *testing.T) {
	g, err := New().NewEventGroup()
	require.NoError(t, err)
	defer g.Delete()

	go func() {
		time.Sleep(20 * time.Millisecond)
		g.SetBits(bitB)
	}()

	bits, err := g.WaitBits(bitA|bitB, false, false, time.Second)
	require.NoError(t, err)
	require.Equal(t, bitB, bits&(bitA|bitB))
	require.Equal(t, bitB, g.GetBits(), "bits must persist without clearOnExit")
}

func TestEventGroupWaitAllClearOnExit(t *testing.T) {
	g, _ := New().NewEventGroup()
	defer g.Delete()

	g.SetBits(bitA | bitC)

	done := make(chan EventBits, 1)
	go func() {
		bits, err := g.WaitBits(bitA|bitB, true, true, time.Second)
		if err == nil {
			done <- bits
		}
	}()

	select {
	case <-done:
		t.Fatal("wait-for-all returned with bitB unset")
	case <-time.After(30 * time.Millisecond):
	}

	g.SetBits(bitB)
	select {
	case bits := <-done:
		require.Equal(t, bitA|bitB|bitC, bits)
	case <-time.After(time.Second):
		t.Fatal("wait-for-all never returned")
	}
	require.Equal(t, bitC, g.GetBits(), "only awaited bits are cleared")
}

func TestEventGroupTimeout(t *testing.T) {
	g, _ := New().NewEventGroup()
	defer g.Delete()
	g.SetBits(bitC)

	start := time.Now()
	bits, err := g.WaitBits(bitA, false, false, 40*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, bitC, bits)
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	// Zero timeout polls.
	_, err = g.WaitBits(bitA, false, false, 0)
	require.ErrorIs(t, err, ErrTimeout)
	bits, err = g.WaitBits(bitC, false, false, 0)
	require.NoError(t, err)
	require.Equal(t, bitC, bits)
}

func TestEventGroupSetFromISR(t *testing.T) {
	g, _ := New().NewEventGroup()
	defer g.Delete()

	require.True(t, g.SetBitsFromISR(bitA))
	bits, err := g.WaitBits(bitA, true, false, MaxDelay)
	require.NoError(t, err)
	require.Equal(t, bitA, bits)
	require.Zero(t, g.GetBits())
}

func TestEventGroupClearBits(t *testing.T) {
	g, _ := New().NewEventGroup()
	defer g.Delete()

	g.SetBits(bitA | bitB)
	require.Equal(t, bitA|bitB, g.ClearBits(bitA))
	require.Equal(t, bitB, g.GetBits())
}

func TestEventGroupDeleteUnblocksWaiters(t *testing.T) {
	g, _ := New().NewEventGroup()

	errc := make(chan error, 1)
	go func() {
		_, err := g.WaitBits(bitA, false, false, MaxDelay)
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	g.Delete()

	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrGroupDeleted)
	case <-time.After(time.Second):
		t.Fatal("waiter not released by Delete")
	}
	require.False(t, g.SetBitsFromISR(bitA))
}

func TestEventGroupInvalidWaitIsFatal(t *testing.T) {
	g, _ := New().NewEventGroup()
	defer g.Delete()

	expectFatal(t, ErrInvalidWaitBits, func() {
		g.WaitBits(0, false, false, 0)
	})
	expectFatal(t, ErrInvalidWaitBits, func() {
		g.WaitBits(0x01000000, false, false, 0)
	})
}
