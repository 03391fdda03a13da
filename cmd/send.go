/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/allbin/go-modemlink"
	"github.com/allbin/go-modemlink/internal/tui/components"
	"github.com/allbin/go-modemlink/internal/tui/styles"
	"github.com/allbin/go-modemlink/platform"
)

// replyBit is set in the send command's event group once a final result
// line has been received.
const replyBit platform.EventBits = 1 << 0

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [data]",
	Short: "Send data to the modem",
	Long: `Send data to the modem through the transport.

Data can be provided as:
- Command line argument: modemlink send "AT+CSQ"
- From stdin (pipe): echo "ATI" | modemlink send
- Interactive mode: modemlink send (prompts for input)

ASCII data is terminated with a carriage return unless --no-cr is given.
With --wait the command collects the reply until a final result code
(OK, ERROR, +CME ERROR, ...) arrives or the wait expires.

Example usage:
  modemlink send "AT+CSQ" --wait 2s
  modemlink send --backend sim "ATI" --wait 1s
  modemlink send --hex "41540D"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data string
		if len(args) == 1 {
			data = args[0]
		} else {
			stat, err := os.Stdin.Stat()
			if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
				data = promptForData()
			} else {
				stdinData, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("reading from stdin: %w", err)
				}
				data = strings.TrimRight(string(stdinData), "\r\n")
			}
		}

		noCR, _ := cmd.Flags().GetBool("no-cr")
		hexMode, _ := cmd.Flags().GetBool("hex")
		wait, _ := cmd.Flags().GetDuration("wait")
		showStats, _ := cmd.Flags().GetBool("stats")

		payload := []byte(data)
		if hexMode {
			var err error
			if payload, err = components.ParseHex(data); err != nil {
				return fmt.Errorf("invalid hex data: %w", err)
			}
		} else if !noCR {
			payload = append(payload, '\r')
		}

		s, err := loadSettings()
		if err != nil {
			return err
		}
		res, err := runSend(s, payload, wait)
		printSendResult(s.Device, payload, res)
		if showStats {
			printStats(os.Stdout, res.stats)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().Bool("no-cr", false, "Do not append a carriage return to ASCII data")
	sendCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '41540D' for 'AT\\r')")
	sendCmd.Flags().DurationP("wait", "w", 0, "Wait up to this long for a final result code")
	sendCmd.Flags().Bool("stats", false, "Print transport counters when done")
}

func promptForData() string {
	fmt.Print(styles.InfoStyle.Render("Enter data to send: "))

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

type sendResult struct {
	sent     int
	sendErr  error
	reply    []byte
	complete bool
	stats    modemlink.Stats
}

// runSend opens a transport for s, sends payload and, when wait is positive,
// collects the reply until a final result code or the wait expires.
func runSend(s settings, payload []byte, wait time.Duration) (sendResult, error) {
	var res sendResult

	t, err := newTransport(s)
	if err != nil {
		res.sendErr = err
		return res, err
	}

	replies, err := platform.Default().NewEventGroup()
	if err != nil {
		return res, err
	}
	defer replies.Delete()

	var (
		mu    sync.Mutex
		reply []byte
	)
	cb := drainInto(func(data []byte) {
		mu.Lock()
		reply = append(reply, data...)
		done := hasFinalResult(reply)
		mu.Unlock()
		if done {
			replies.SetBits(replyBit)
		}
	})

	h, err := t.Open(cb, nil)
	if err != nil {
		res.sendErr = err
		return res, errors.Join(err, t.Close())
	}

	res.sent, res.sendErr = h.Send(payload, s.SendTimeout)
	if res.sendErr == nil && wait > 0 {
		_, werr := replies.WaitBits(replyBit, true, false, wait)
		res.complete = werr == nil
		if !res.complete {
			glog.V(1).Infof("send: no final result within %v", wait)
		}
	}

	closeErr := h.Close()
	res.stats = t.Stats()

	mu.Lock()
	res.reply = reply
	mu.Unlock()

	return res, errors.Join(res.sendErr, closeErr)
}

func printSendResult(device string, payload []byte, res sendResult) {
	switch {
	case res.sendErr == nil:
		fmt.Printf("%s Sent %d bytes to %s: %s\n", styles.SuccessStyle.Render("✓"), res.sent, device, components.EscapeASCII(payload))
	case errors.Is(res.sendErr, modemlink.ErrTimeout):
		fmt.Printf("%s Queued %d bytes but the line did not drain in time\n", styles.ErrorStyle.Render("⏱"), res.sent)
	default:
		fmt.Printf("%s Send failed: %v\n", styles.ErrorStyle.Render("✗"), res.sendErr)
		if hint := portErrorHint(res.sendErr); hint != "" {
			fmt.Println(styles.MutedStyle.Render("  " + hint))
		}
	}

	if len(res.reply) > 0 {
		fmt.Println(styles.InfoStyle.Render("Reply:"))
		for _, line := range strings.Split(strings.TrimSpace(string(res.reply)), "\n") {
			if line = strings.TrimRight(line, "\r"); line != "" {
				fmt.Println("  " + line)
			}
		}
		if !res.complete {
			fmt.Println(styles.MutedStyle.Render("  (no final result code)"))
		}
	}
}
