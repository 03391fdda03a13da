/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// statsInterval is how often capture logs transport counters at -v=1.
const statsInterval = 10 * time.Second

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture <output-file>",
	Short: "Capture modem output to a file",
	Long: `Capture everything the modem sends to a file for later parsing.

Data is written as it is drained from the transport, until interrupted
(Ctrl+C) or --duration elapses. The output file is opened in append mode,
allowing you to resume captures without overwriting existing data.

--init sends AT commands once the link is open, for example to enable
unsolicited result codes you want to record.

Example usage:
  modemlink capture urc.log
  modemlink capture urc.log --init "AT+CREG=2" --init "AT+CGREG=2"
  modemlink capture session.log --console --duration 5m`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputPath := args[0]

		showConsole, _ := cmd.Flags().GetBool("console")
		duration, _ := cmd.Flags().GetDuration("duration")
		inits, _ := cmd.Flags().GetStringArray("init")

		s, err := loadSettings()
		if err != nil {
			return err
		}

		file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open output file: %w", err)
		}
		defer file.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}

		var console io.Writer
		if showConsole {
			console = os.Stdout
			fmt.Fprintf(os.Stderr, "Console display enabled\n")
		}
		fmt.Fprintf(os.Stderr, "Capturing data from %s to %s\n", s.Device, outputPath)
		fmt.Fprintf(os.Stderr, "Press Ctrl+C to stop\n\n")

		startTime := time.Now()
		written, err := runCapture(ctx, s, file, console, inits)
		fmt.Fprintf(os.Stderr, "\nCapture complete: %d bytes written in %v\n", written, time.Since(startTime).Round(time.Millisecond))
		return err
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().BoolP("console", "c", false, "Display incoming data on console while capturing")
	captureCmd.Flags().Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	captureCmd.Flags().StringArray("init", nil, "AT command to send after opening; repeatable")
}

// runCapture copies received data to w, and to console when it is non-nil,
// until ctx ends. It returns the bytes written to w.
func runCapture(ctx context.Context, s settings, w io.Writer, console io.Writer, inits []string) (int64, error) {
	t, err := newTransport(s)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)

	chunks := make(chan []byte, 64)
	cb := drainInto(func(data []byte) {
		select {
		case chunks <- data:
		case <-gctx.Done():
			glog.Warningf("capture: dropped %d bytes received during shutdown", len(data))
		}
	})

	h, err := t.Open(cb, nil)
	if err != nil {
		return 0, errors.Join(err, t.Close())
	}

	var written int64
	write := func(data []byte) error {
		n, err := w.Write(data)
		written += int64(n)
		if err != nil {
			return fmt.Errorf("write error: %w", err)
		}
		if console != nil {
			console.Write(data)
		}
		return nil
	}

	g.Go(func() error {
		for {
			select {
			case data := <-chunks:
				if err := write(data); err != nil {
					return err
				}
			case <-gctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		for _, cmd := range inits {
			if _, err := h.Send([]byte(cmd+"\r"), s.SendTimeout); err != nil {
				return fmt.Errorf("sending %q: %w", cmd, err)
			}
		}

		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if glog.V(1) {
					st := t.Stats()
					glog.Infof("capture: %d bytes received, %d overflows, %d line errors", st.BytesReceived, st.Overflows, st.LineErrors)
				}
			case <-gctx.Done():
				return nil
			}
		}
	})

	err = g.Wait()
	closeErr := h.Close()

	// Close has stopped the drain thread; keep what it delivered.
	for {
		select {
		case data := <-chunks:
			if werr := write(data); werr != nil {
				return written, errors.Join(err, closeErr, werr)
			}
		default:
			return written, errors.Join(err, closeErr)
		}
	}
}
