package modemlink

import (
	"math"
	"time"

	"github.com/allbin/go-modemlink/platform"
)

// WaitForever as a millisecond timeout blocks without limit.
const WaitForever = math.MaxUint32

// CommInterface is the transport as a table of functions, for protocol
// layers that take their serial link as a communication interface with
// out-parameters and millisecond timeouts.
type CommInterface struct {
	Open  func(cb ReceiveCallback, userData any, handle *Handle) error
	Send  func(h Handle, data []byte, timeoutMs uint32, sent *uint32) error
	Recv  func(h Handle, buf []byte, timeoutMs uint32, received *uint32) error
	Close func(h Handle) error
}

// CommInterface returns the function table bound to t. Send, Recv and
// Close act on the handle they are given, which is t after a successful
// Open.
func (t *Transport) CommInterface() *CommInterface {
	return &CommInterface{
		Open: func(cb ReceiveCallback, userData any, handle *Handle) error {
			if t.IsOpen() {
				return ErrFailure
			}
			if handle == nil {
				return badParameter("nil handle slot")
			}
			*handle = t
			_, err := t.Open(cb, userData)
			return err
		},
		Send: func(h Handle, data []byte, timeoutMs uint32, sent *uint32) error {
			if h == nil {
				return badParameter("nil handle")
			}
			n, err := h.Send(data, msTimeout(timeoutMs))
			if sent != nil && (err == nil || n > 0) {
				*sent = uint32(n)
			}
			return err
		},
		Recv: func(h Handle, buf []byte, timeoutMs uint32, received *uint32) error {
			if h == nil {
				return badParameter("nil handle")
			}
			n, err := h.Receive(buf, msTimeout(timeoutMs))
			if received != nil && err == nil {
				*received = uint32(n)
			}
			return err
		},
		Close: func(h Handle) error {
			if h == nil {
				return badParameter("nil handle")
			}
			return h.Close()
		},
	}
}

func msTimeout(ms uint32) time.Duration {
	if ms == WaitForever {
		return platform.MaxDelay
	}
	return time.Duration(ms) * time.Millisecond
}
