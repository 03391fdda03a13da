package modemlink

import (
	"fmt"
	"time"

	"github.com/allbin/go-modemlink/platform"
	"github.com/allbin/go-modemlink/uart"
)

// CloseMode selects how Close stops the drain thread
type CloseMode int

const (
	// CloseGraceful waits, up to CloseTimeout, for an in-flight callback to
	// return and the drain thread to exit.
	CloseGraceful CloseMode = iota
	// CloseForced returns as soon as the drain thread has been told to stop.
	// A callback already running is abandoned to finish on its own.
	CloseForced
)

func (m CloseMode) String() string {
	switch m {
	case CloseGraceful:
		return "graceful"
	case CloseForced:
		return "forced"
	default:
		return "unknown"
	}
}

// ParseCloseMode accepts the names produced by CloseMode.String.
func ParseCloseMode(s string) (CloseMode, error) {
	switch s {
	case "", "graceful":
		return CloseGraceful, nil
	case "forced":
		return CloseForced, nil
	default:
		return CloseGraceful, fmt.Errorf("%w: close mode %q", ErrBadParameter, s)
	}
}

// Config holds the configuration for a Transport
type Config struct {
	Line uart.Config
	Pins uart.Pins

	RxBufferSize   int
	TxBufferSize   int
	EventQueueSize int

	// RxTimeout is the receive idle gap, in symbol times, after which
	// pending bytes are reported to the callback.
	RxTimeout int

	// PatternChar repeated PatternCount times also triggers the callback.
	// Zero PatternCount disables it.
	PatternChar  byte
	PatternCount int

	DrainPriority   platform.Priority
	DrainStackWords int

	CloseMode    CloseMode
	CloseTimeout time.Duration

	// Platform runs the drain thread. Nil selects platform.Default().
	Platform platform.Platform
}

// Option is a functional option for configuring a Transport
type Option func(*Config) error

// Modem wiring on the reference board.
const (
	DefaultTXPin  = 19
	DefaultRXPin  = 22
	DefaultRTSPin = 26
	DefaultCTSPin = 27
)

// DefaultConfig returns the settings for the reference modem: 115200 8N1
// with RTS/CTS flow control and 2 KiB buffers.
func DefaultConfig() Config {
	line := uart.DefaultConfig()
	line.FlowControl = uart.FlowControlRTSCTS
	line.RxFlowCtrlThresh = 120

	return Config{
		Line: line,
		Pins: uart.Pins{
			TX:  DefaultTXPin,
			RX:  DefaultRXPin,
			RTS: DefaultRTSPin,
			CTS: DefaultCTSPin,
		},
		RxBufferSize:    2048,
		TxBufferSize:    2048,
		EventQueueSize:  64,
		RxTimeout:       9,
		DrainPriority:   platform.IdlePriority + 5,
		DrainStackWords: 2048,
		CloseMode:       CloseGraceful,
		CloseTimeout:    time.Second,
	}
}

func badParameter(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadParameter, fmt.Sprintf(format, args...))
}

// WithBaudRate sets the baud rate
func WithBaudRate(rate int) Option {
	return func(c *Config) error {
		if rate <= 0 {
			return badParameter("baud rate %d", rate)
		}
		c.Line.BaudRate = rate
		return nil
	}
}

// WithLineConfig replaces all line parameters
func WithLineConfig(line uart.Config) Option {
	return func(c *Config) error {
		if err := line.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrBadParameter, err)
		}
		c.Line = line
		return nil
	}
}

// WithFlowControl sets the flow control mode
func WithFlowControl(fc uart.FlowControl) Option {
	return func(c *Config) error {
		if fc < uart.FlowControlNone || fc > uart.FlowControlRTSCTS {
			return badParameter("flow control %d", fc)
		}
		c.Line.FlowControl = fc
		return nil
	}
}

// WithPins sets the UART pin routing
func WithPins(pins uart.Pins) Option {
	return func(c *Config) error {
		if err := pins.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrBadParameter, err)
		}
		c.Pins = pins
		return nil
	}
}

// WithBufferSizes sets the driver receive and transmit buffer sizes
func WithBufferSizes(rx, tx int) Option {
	return func(c *Config) error {
		if rx <= uart.FIFOLen {
			return badParameter("rx buffer %d must exceed %d", rx, uart.FIFOLen)
		}
		if tx != 0 && tx <= uart.FIFOLen {
			return badParameter("tx buffer %d must be 0 or exceed %d", tx, uart.FIFOLen)
		}
		c.RxBufferSize = rx
		c.TxBufferSize = tx
		return nil
	}
}

// WithEventQueueSize sets the driver event queue depth
func WithEventQueueSize(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return badParameter("event queue size %d", n)
		}
		c.EventQueueSize = n
		return nil
	}
}

// WithRxTimeout sets the receive idle gap in symbol times (0-126)
func WithRxTimeout(symbols int) Option {
	return func(c *Config) error {
		if symbols < 0 || symbols > uart.MaxRxTimeout {
			return badParameter("rx timeout %d symbols", symbols)
		}
		c.RxTimeout = symbols
		return nil
	}
}

// WithPatternDetect makes count consecutive ch bytes trigger the callback
func WithPatternDetect(ch byte, count int) Option {
	return func(c *Config) error {
		if count < 0 || count > uart.FIFOLen {
			return badParameter("pattern count %d", count)
		}
		c.PatternChar = ch
		c.PatternCount = count
		return nil
	}
}

// WithDrainThread sets the drain thread's priority and stack size in words
func WithDrainThread(priority platform.Priority, stackWords int) Option {
	return func(c *Config) error {
		if priority < platform.IdlePriority || priority > platform.MaxPriority {
			return badParameter("drain priority %d", priority)
		}
		if stackWords <= 0 {
			return badParameter("drain stack %d words", stackWords)
		}
		c.DrainPriority = priority
		c.DrainStackWords = stackWords
		return nil
	}
}

// WithCloseMode sets how Close stops the drain thread
func WithCloseMode(mode CloseMode) Option {
	return func(c *Config) error {
		if mode != CloseGraceful && mode != CloseForced {
			return badParameter("close mode %d", mode)
		}
		c.CloseMode = mode
		return nil
	}
}

// WithCloseTimeout bounds a graceful Close
func WithCloseTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return badParameter("close timeout %v", d)
		}
		c.CloseTimeout = d
		return nil
	}
}

// WithPlatform sets the platform the drain thread runs on
func WithPlatform(p platform.Platform) Option {
	return func(c *Config) error {
		if p == nil {
			return badParameter("nil platform")
		}
		c.Platform = p
		return nil
	}
}
