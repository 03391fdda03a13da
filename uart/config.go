package uart

import (
	"fmt"
	"time"
)

// FIFOLen is the depth of the hardware receive FIFO the driver emulates.
const FIFOLen = 128

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "N"
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	case ParityMark:
		return "M"
	case ParitySpace:
		return "S"
	default:
		return "?"
	}
}

// FlowControl represents the flow control mode
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlRTS
	FlowControlCTS
	FlowControlRTSCTS
)

func (fc FlowControl) String() string {
	switch fc {
	case FlowControlNone:
		return "none"
	case FlowControlRTS:
		return "rts"
	case FlowControlCTS:
		return "cts"
	case FlowControlRTSCTS:
		return "rtscts"
	default:
		return "unknown"
	}
}

// ParseFlowControl accepts the names produced by FlowControl.String.
func ParseFlowControl(s string) (FlowControl, error) {
	switch s {
	case "", "none":
		return FlowControlNone, nil
	case "rts":
		return FlowControlRTS, nil
	case "cts":
		return FlowControlCTS, nil
	case "rtscts", "rts/cts", "ctsrts":
		return FlowControlRTSCTS, nil
	default:
		return FlowControlNone, fmt.Errorf("%w: flow control %q", ErrInvalidArg, s)
	}
}

// Config holds the line parameters of a UART
type Config struct {
	BaudRate    int
	DataBits    int
	Parity      Parity
	StopBits    int
	FlowControl FlowControl

	// RxFlowCtrlThresh is the receive fill level, in bytes, at which RTS is
	// deasserted under hardware flow control. The driver also delivers a data
	// event whenever this many bytes are pending.
	RxFlowCtrlThresh int
}

// DefaultConfig returns 115200 8N1 without flow control
func DefaultConfig() Config {
	return Config{
		BaudRate:         115200,
		DataBits:         8,
		Parity:           ParityNone,
		StopBits:         1,
		FlowControl:      FlowControlNone,
		RxFlowCtrlThresh: 120,
	}
}

// Validate checks the parameters a driver can apply
func (c Config) Validate() error {
	if c.BaudRate <= 0 || c.BaudRate > 5000000 {
		return ErrInvalidBaudRate
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("%w: data bits %d", ErrInvalidArg, c.DataBits)
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return fmt.Errorf("%w: stop bits %d", ErrInvalidArg, c.StopBits)
	}
	if c.Parity < ParityNone || c.Parity > ParitySpace {
		return fmt.Errorf("%w: parity %d", ErrInvalidArg, c.Parity)
	}
	if c.FlowControl < FlowControlNone || c.FlowControl > FlowControlRTSCTS {
		return fmt.Errorf("%w: flow control %d", ErrInvalidArg, c.FlowControl)
	}
	if c.RxFlowCtrlThresh <= 0 || c.RxFlowCtrlThresh >= FIFOLen {
		return fmt.Errorf("%w: rx flow control threshold %d", ErrInvalidArg, c.RxFlowCtrlThresh)
	}
	return nil
}

// SymbolTime is the time one character occupies on the wire: start bit,
// data bits, optional parity bit and stop bits.
func (c Config) SymbolTime() time.Duration {
	bits := 1 + c.DataBits + c.StopBits
	if c.Parity != ParityNone {
		bits++
	}
	if c.BaudRate <= 0 {
		return 0
	}
	return time.Duration(bits) * time.Second / time.Duration(c.BaudRate)
}

// String formats the line as e.g. "115200 8N1 rtscts".
func (c Config) String() string {
	return fmt.Sprintf("%d %d%s%d %s", c.BaudRate, c.DataBits, c.Parity, c.StopBits, c.FlowControl)
}

// NoPin leaves a signal unassigned.
const NoPin = -1

// Pins binds the UART signals to physical pins.
type Pins struct {
	TX  int
	RX  int
	RTS int
	CTS int
}

// Validate rejects negative pin numbers other than NoPin and pins bound to
// more than one signal.
func (p Pins) Validate() error {
	seen := make(map[int]string, 4)
	for _, s := range []struct {
		name string
		pin  int
	}{{"TX", p.TX}, {"RX", p.RX}, {"RTS", p.RTS}, {"CTS", p.CTS}} {
		if s.pin == NoPin {
			continue
		}
		if s.pin < 0 {
			return fmt.Errorf("%w: %s pin %d", ErrInvalidArg, s.name, s.pin)
		}
		if other, ok := seen[s.pin]; ok {
			return fmt.Errorf("%w: pin %d bound to both %s and %s", ErrInvalidArg, s.pin, other, s.name)
		}
		seen[s.pin] = s.name
	}
	return nil
}

// PullMode selects the pull resistor on an input pin.
type PullMode int

const (
	PullUp PullMode = iota
	PullDown
	PullUpDown
	Floating
)

func (m PullMode) String() string {
	switch m {
	case PullUp:
		return "pull-up"
	case PullDown:
		return "pull-down"
	case PullUpDown:
		return "pull-up-down"
	case Floating:
		return "floating"
	default:
		return "unknown"
	}
}
