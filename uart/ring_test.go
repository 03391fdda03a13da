package uart

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingWrapAround(t *testing.T) {
	r := newRing(8)

	require.Equal(t, 6, r.write([]byte("abcdef")))
	out := make([]byte, 4)
	require.Equal(t, 4, r.read(out))
	require.Equal(t, "abcd", string(out))

	// Tail wraps past the end of the backing array.
	require.Equal(t, 6, r.write([]byte("ghijkl")))
	require.Equal(t, 8, r.len())

	out = make([]byte, 16)
	n := r.read(out)
	require.Equal(t, "efghijkl", string(out[:n]))
	require.Equal(t, 0, r.len())
}

func TestRingDropsWhenFull(t *testing.T) {
	r := newRing(4)
	require.Equal(t, 4, r.write([]byte("abcdef")))
	require.Equal(t, 0, r.write([]byte("g")))

	out := make([]byte, 4)
	require.Equal(t, 4, r.read(out))
	require.Equal(t, "abcd", string(out))
}

func TestRingReset(t *testing.T) {
	r := newRing(4)
	r.write([]byte("abc"))
	r.reset()
	require.Equal(t, 0, r.len())
	require.Equal(t, 0, r.read(make([]byte, 4)))
}

func TestRingSignalsAvail(t *testing.T) {
	r := newRing(4)
	r.write([]byte("a"))
	select {
	case <-r.avail:
	default:
		t.Fatal("write did not signal")
	}
}
