/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bytes"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/allbin/go-modemlink"
	"github.com/allbin/go-modemlink/uart"
)

// settings is the effective CLI configuration after flags, environment and
// config file are merged.
type settings struct {
	Device       string        `yaml:"device" mapstructure:"device"`
	Backend      string        `yaml:"backend" mapstructure:"backend"`
	Baud         int           `yaml:"baud" mapstructure:"baud"`
	FlowControl  string        `yaml:"flow-control" mapstructure:"flow-control"`
	RxTimeout    int           `yaml:"rx-timeout" mapstructure:"rx-timeout"`
	CloseMode    string        `yaml:"close-mode" mapstructure:"close-mode"`
	CloseTimeout time.Duration `yaml:"close-timeout" mapstructure:"close-timeout"`
	SendTimeout  time.Duration `yaml:"send-timeout" mapstructure:"send-timeout"`
}

func loadSettings() (settings, error) {
	var s settings
	if err := viper.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("decoding settings: %w", err)
	}
	return s, nil
}

// options translates s into transport options.
func (s settings) options() ([]modemlink.Option, error) {
	fc, err := uart.ParseFlowControl(s.FlowControl)
	if err != nil {
		return nil, err
	}
	mode, err := modemlink.ParseCloseMode(s.CloseMode)
	if err != nil {
		return nil, err
	}
	return []modemlink.Option{
		modemlink.WithBaudRate(s.Baud),
		modemlink.WithFlowControl(fc),
		modemlink.WithRxTimeout(s.RxTimeout),
		modemlink.WithCloseMode(mode),
		modemlink.WithCloseTimeout(s.CloseTimeout),
	}, nil
}

// opener picks the line backend for s.
func (s settings) opener() (uart.Opener, error) {
	switch s.Backend {
	case "termios", "":
		return uart.TermiosOpener(s.Device), nil
	case "bugst":
		return uart.BugstOpener(s.Device), nil
	case "sim":
		line := uart.NewSimLine()
		line.SetResponder(simModem())
		return line.Opener(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want termios, bugst or sim)", s.Backend)
	}
}

// newTransport builds a closed transport for s. extra options are applied
// after the ones derived from s.
func newTransport(s settings, extra ...modemlink.Option) (*modemlink.Transport, error) {
	open, err := s.opener()
	if err != nil {
		return nil, err
	}
	opts, err := s.options()
	if err != nil {
		return nil, err
	}
	return modemlink.New(uart.NewPort(s.Device, open), append(opts, extra...)...)
}

// drainInto returns a receive callback that empties the driver buffer into
// sink. sink runs on the drain thread.
func drainInto(sink func(data []byte)) modemlink.ReceiveCallback {
	buf := make([]byte, 1024)
	return func(_ any, h modemlink.Handle) error {
		for {
			n, err := h.Receive(buf, 0)
			if err != nil {
				return err
			}
			if n == 0 {
				return nil
			}
			sink(bytes.Clone(buf[:n]))
		}
	}
}

// finalResults are the lines that end an AT command's response.
var finalResults = [][]byte{
	[]byte("OK"),
	[]byte("ERROR"),
	[]byte("NO CARRIER"),
	[]byte("+CME ERROR:"),
	[]byte("+CMS ERROR:"),
}

// hasFinalResult reports whether resp contains a complete final result
// line. A trailing line without its newline is still arriving.
func hasFinalResult(resp []byte) bool {
	lines := bytes.Split(resp, []byte("\n"))
	for _, line := range lines[:len(lines)-1] {
		line = bytes.TrimRight(line, "\r")
		for _, fr := range finalResults {
			if bytes.Equal(line, fr) || (fr[len(fr)-1] == ':' && bytes.HasPrefix(line, fr)) {
				return true
			}
		}
	}
	return false
}
