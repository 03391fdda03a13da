// Package modemlink is the serial transport between a cellular protocol
// layer and a modem attached to a UART.
//
// A Transport owns one uart driver. Open installs and configures it for the
// modem (115200 8N1 with RTS/CTS flow control by default) and starts a drain
// thread that consumes driver events. When received data is pending the
// registered callback is invoked; it pulls bytes with Receive:
//
//	line := uart.NewPort("/dev/ttyUSB2", uart.TermiosOpener("/dev/ttyUSB2"))
//	t, err := modemlink.New(line, modemlink.WithRxTimeout(9))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	h, err := t.Open(func(userData any, h modemlink.Handle) error {
//	    buf := make([]byte, 256)
//	    n, err := h.Receive(buf, 0)
//	    if err != nil {
//	        return err
//	    }
//	    parse(buf[:n])
//	    return nil
//	}, nil)
//
//	_, err = h.Send([]byte("AT+CSQ\r"), time.Second)
//	...
//	err = h.Close()
//
// Send blocks until the bytes have left the transmitter or the timeout
// elapses. Close stops the drain thread; once it returns the callback is
// never invoked again.
//
// # Function table
//
// CommInterface exposes the same operations with out-parameters and
// millisecond timeouts for protocol layers written against a C-style
// communication interface.
//
// # Errors
//
// Failures are reported as one of ErrBadParameter, ErrFailure,
// ErrDriverError, ErrTimeout or ErrNoMemory, possibly wrapping a driver
// error. Use errors.Is to classify them.
package modemlink
