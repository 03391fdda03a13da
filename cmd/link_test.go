package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/allbin/go-modemlink"
	"github.com/allbin/go-modemlink/uart"
)

func simSettings() settings {
	return settings{
		Device:       "sim0",
		Backend:      "sim",
		Baud:         115200,
		FlowControl:  "rtscts",
		RxTimeout:    9,
		CloseMode:    "graceful",
		CloseTimeout: time.Second,
		SendTimeout:  time.Second,
	}
}

func TestSettingsOptions(t *testing.T) {
	s := simSettings()
	s.Baud = 921600
	s.FlowControl = "none"
	s.CloseMode = "forced"

	tr, err := newTransport(s)
	require.NoError(t, err)

	cfg := tr.Config()
	require.Equal(t, 921600, cfg.Line.BaudRate)
	require.Equal(t, uart.FlowControlNone, cfg.Line.FlowControl)
	require.Equal(t, modemlink.CloseForced, cfg.CloseMode)
	require.Equal(t, 9, cfg.RxTimeout)
}

func TestSettingsRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*settings)
	}{
		{"backend", func(s *settings) { s.Backend = "carrier-pigeon" }},
		{"flow control", func(s *settings) { s.FlowControl = "xonxoff" }},
		{"close mode", func(s *settings) { s.CloseMode = "eventually" }},
		{"baud", func(s *settings) { s.Baud = 0 }},
		{"rx timeout", func(s *settings) { s.RxTimeout = uart.MaxRxTimeout + 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := simSettings()
			tt.mutate(&s)
			_, err := newTransport(s)
			require.Error(t, err)
		})
	}
}

func TestLoadSettingsFromConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "modemlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device: /dev/ttyUSB6\nbaud: 460800\nclose-timeout: 250ms\n"), 0o644))

	viper.Reset()
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	s, err := loadSettings()
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB6", s.Device)
	require.Equal(t, 460800, s.Baud)
	require.Equal(t, 250*time.Millisecond, s.CloseTimeout)
}

func TestHasFinalResult(t *testing.T) {
	tests := []struct {
		resp string
		want bool
	}{
		{"AT\r\r\nOK\r\n", true},
		{"\r\n+CSQ: 23,99\r\n\r\nOK\r\n", true},
		{"\r\n+CME ERROR: 10\r\n", true},
		{"\r\nERROR\r\n", true},
		{"\r\n+CSQ: 23,99\r\n", false},
		{"\r\nOK", false},
		{"\r\nOKAY\r\n", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := hasFinalResult([]byte(tt.resp)); got != tt.want {
			t.Errorf("hasFinalResult(%q) = %v, want %v", tt.resp, got, tt.want)
		}
	}
}

func TestDrainIntoEmptiesBuffer(t *testing.T) {
	line := uart.NewSimLine()
	tr, err := modemlink.New(uart.NewPort("sim", line.Opener()))
	require.NoError(t, err)

	got := make(chan []byte, 16)
	_, err = tr.Open(drainInto(func(data []byte) { got <- data }), nil)
	require.NoError(t, err)
	defer tr.Close()

	payload := bytes.Repeat([]byte("x"), 1500)
	line.Inject(payload)

	var all []byte
	require.Eventually(t, func() bool {
		for {
			select {
			case data := <-got:
				all = append(all, data...)
			default:
				return len(all) == len(payload)
			}
		}
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, payload, all)
}
