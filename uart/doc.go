// Package uart is a UART driver with the contract of a microcontroller
// serial peripheral: install buffers and an event queue, configure the line,
// route pins, enable the receive interrupt, then read and write bytes.
//
// The "interrupt" is a goroutine that moves bytes from a Line into a
// software receive buffer and posts Events:
//
//	q, err := p.Install(2048, 2048, 64)
//	err = p.Configure(uart.DefaultConfig())
//	err = p.SetRxTimeout(9)
//	err = p.EnableRxInterrupt()
//
//	ev, err := q.Receive(ctx)
//	if ev.Type == uart.EventData {
//	    n, err := p.ReadBytes(buf[:ev.Size], 0)
//	}
//
// Data events are raised every RxFlowCtrlThresh bytes and, when an rx
// timeout is set, after that many idle symbol times with bytes pending.
//
// # Lines
//
// TermiosOpener drives a Linux tty directly, including RTS/CTS flow control.
// BugstOpener uses go.bug.st/serial on any platform without hardware flow
// control. SimLine is an in-memory modem for tests and demos.
package uart
