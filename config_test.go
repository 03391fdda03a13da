package modemlink

import (
	"errors"
	"testing"
	"time"

	"github.com/allbin/go-modemlink/platform"
	"github.com/allbin/go-modemlink/uart"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()

	if c.Line.String() != "115200 8N1 rtscts" {
		t.Errorf("line = %s, expected 115200 8N1 rtscts", c.Line)
	}
	if c.Line.RxFlowCtrlThresh != 120 {
		t.Errorf("RxFlowCtrlThresh = %d, expected 120", c.Line.RxFlowCtrlThresh)
	}
	if c.RxBufferSize != 2048 || c.TxBufferSize != 2048 || c.EventQueueSize != 64 {
		t.Errorf("buffers = %d/%d/%d, expected 2048/2048/64", c.RxBufferSize, c.TxBufferSize, c.EventQueueSize)
	}
	if c.RxTimeout != 9 {
		t.Errorf("RxTimeout = %d, expected 9", c.RxTimeout)
	}
	if c.DrainPriority != platform.IdlePriority+5 || c.DrainStackWords != 2048 {
		t.Errorf("drain thread = %d/%d", c.DrainPriority, c.DrainStackWords)
	}
	if err := c.Line.Validate(); err != nil {
		t.Errorf("default line invalid: %v", err)
	}
	if err := c.Pins.Validate(); err != nil {
		t.Errorf("default pins invalid: %v", err)
	}
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name    string
		opt     Option
		wantErr bool
	}{
		{"baud", WithBaudRate(921600), false},
		{"baud zero", WithBaudRate(0), true},
		{"line", WithLineConfig(uart.DefaultConfig()), false},
		{"line invalid", WithLineConfig(uart.Config{BaudRate: 9600}), true},
		{"flow none", WithFlowControl(uart.FlowControlNone), false},
		{"flow invalid", WithFlowControl(uart.FlowControl(7)), true},
		{"pins", WithPins(uart.Pins{TX: 1, RX: 3, RTS: uart.NoPin, CTS: uart.NoPin}), false},
		{"pins duplicate", WithPins(uart.Pins{TX: 1, RX: 1, RTS: 2, CTS: 3}), true},
		{"buffers", WithBufferSizes(4096, 0), false},
		{"rx buffer too small", WithBufferSizes(128, 0), true},
		{"tx buffer too small", WithBufferSizes(4096, 100), true},
		{"queue", WithEventQueueSize(8), false},
		{"queue zero", WithEventQueueSize(0), true},
		{"rx timeout", WithRxTimeout(126), false},
		{"rx timeout too long", WithRxTimeout(127), true},
		{"pattern", WithPatternDetect('+', 3), false},
		{"pattern negative", WithPatternDetect('+', -1), true},
		{"drain thread", WithDrainThread(platform.MaxPriority, 512), false},
		{"drain priority", WithDrainThread(platform.MaxPriority+1, 512), true},
		{"drain stack", WithDrainThread(platform.IdlePriority, 0), true},
		{"close forced", WithCloseMode(CloseForced), false},
		{"close mode invalid", WithCloseMode(CloseMode(5)), true},
		{"close timeout", WithCloseTimeout(time.Second), false},
		{"close timeout zero", WithCloseTimeout(0), true},
		{"platform", WithPlatform(platform.New()), false},
		{"platform nil", WithPlatform(nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			err := tt.opt(&config)
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrBadParameter) {
				t.Errorf("error %v is not ErrBadParameter", err)
			}
		})
	}
}

func TestNewAppliesOptions(t *testing.T) {
	tr, err := New(newFakeDriver(), WithBaudRate(57600), WithCloseMode(CloseForced))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if tr.Config().Line.BaudRate != 57600 {
		t.Errorf("BaudRate = %d, expected 57600", tr.Config().Line.BaudRate)
	}
	if tr.Config().Platform != platform.Platform(platform.Default()) {
		t.Error("nil platform did not default to platform.Default()")
	}

	if _, err := New(newFakeDriver(), WithRxTimeout(-1)); !errors.Is(err, ErrBadParameter) {
		t.Errorf("New with bad option = %v, expected ErrBadParameter", err)
	}
}

func TestParseCloseMode(t *testing.T) {
	tests := []struct {
		in       string
		expected CloseMode
		wantErr  bool
	}{
		{"", CloseGraceful, false},
		{"graceful", CloseGraceful, false},
		{"forced", CloseForced, false},
		{"abort", CloseGraceful, true},
	}
	for _, tt := range tests {
		got, err := ParseCloseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.expected {
			t.Errorf("ParseCloseMode(%q) = %v, %v", tt.in, got, err)
		}
	}
}
