package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunCapture(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var out, console bytes.Buffer
	written, err := runCapture(ctx, simSettings(), &out, &console, []string{"ATE0", "ATI"})
	require.NoError(t, err)

	require.Equal(t, int64(out.Len()), written)
	require.Contains(t, out.String(), "Revision: SIM01A01")
	require.Equal(t, out.String(), console.String())
}

func TestRunCaptureNoConsole(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	written, err := runCapture(ctx, simSettings(), &out, nil, nil)
	require.NoError(t, err)
	require.Zero(t, written)
}
