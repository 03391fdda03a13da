//go:build linux

package uart

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// termiosLine is a Line on a Linux tty device.
type termiosLine struct {
	mu     sync.RWMutex
	fd     int
	path   string
	closed bool

	closing atomic.Bool
	// wake is a self-pipe that interrupts a Read blocked in poll on Close.
	wakeR, wakeW int
}

// Ensure termiosLine implements Line and RTSSetter at compile time
var (
	_ Line      = (*termiosLine)(nil)
	_ RTSSetter = (*termiosLine)(nil)
)

// TermiosOpener returns an Opener for the tty at path.
func TermiosOpener(path string) Opener {
	return func(cfg Config) (Line, error) {
		return openTermios(path, cfg)
	}
}

func openTermios(path string, cfg Config) (*termiosLine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	if err := configureTermios(fd, cfg); err != nil {
		unix.Close(fd)
		return nil, err
	}

	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to create wake pipe: %w", err)
	}

	return &termiosLine{fd: fd, path: path, wakeR: p[0], wakeW: p[1]}, nil
}

// getBaudRate converts an integer baud rate to the unix constant
func getBaudRate(rate int) (uint32, error) {
	switch rate {
	case 1200:
		return unix.B1200, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	case 460800:
		return unix.B460800, nil
	case 921600:
		return unix.B921600, nil
	case 1000000:
		return unix.B1000000, nil
	case 1500000:
		return unix.B1500000, nil
	case 2000000:
		return unix.B2000000, nil
	case 3000000:
		return unix.B3000000, nil
	case 4000000:
		return unix.B4000000, nil
	default:
		return 0, ErrInvalidBaudRate
	}
}

// configureTermios puts fd in raw mode with the requested line settings.
func configureTermios(fd int, cfg Config) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %w", err)
	}

	baudRate, err := getBaudRate(cfg.BaudRate)
	if err != nil {
		return err
	}

	termios.Cflag = unix.CREAD | unix.CLOCAL | baudRate
	termios.Iflag = 0
	termios.Oflag = 0
	termios.Lflag = 0
	termios.Ispeed = baudRate
	termios.Ospeed = baudRate

	// Reads are bounded by poll, never by the tty.
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = 0

	switch cfg.DataBits {
	case 5:
		termios.Cflag |= unix.CS5
	case 6:
		termios.Cflag |= unix.CS6
	case 7:
		termios.Cflag |= unix.CS7
	default:
		termios.Cflag |= unix.CS8
	}

	if cfg.StopBits == 2 {
		termios.Cflag |= unix.CSTOPB
	}

	switch cfg.Parity {
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
		termios.Iflag |= unix.INPCK
	case ParityEven:
		termios.Cflag |= unix.PARENB
		termios.Iflag |= unix.INPCK
	case ParityMark:
		termios.Cflag |= unix.PARENB | unix.PARODD | unix.CMSPAR
	case ParitySpace:
		termios.Cflag |= unix.PARENB | unix.CMSPAR
	}

	if cfg.FlowControl == FlowControlRTSCTS {
		termios.Cflag |= unix.CRTSCTS
	}

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}

	// Signal readiness to the modem. Ptys and some adapters have no modem
	// lines, so failure here is ignored.
	if cfg.FlowControl == FlowControlRTSCTS || cfg.FlowControl == FlowControlRTS {
		_ = unix.IoctlSetPointerInt(fd, unix.TIOCMBIS, unix.TIOCM_RTS)
	}

	return nil
}

func (l *termiosLine) Read(p []byte, timeout time.Duration) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return 0, ErrLineClosed
	}

	ms := int(timeout / time.Millisecond)
	if timeout > 0 && ms == 0 {
		ms = 1
	}

	fds := []unix.PollFd{
		{Fd: int32(l.fd), Events: unix.POLLIN},
		{Fd: int32(l.wakeR), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("poll %s: %w", l.path, err)
		}
		break
	}

	if fds[1].Revents != 0 {
		return 0, ErrLineClosed
	}
	if fds[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 && fds[0].Revents&unix.POLLIN == 0 {
		return 0, ErrLineClosed
	}
	if fds[0].Revents&unix.POLLIN == 0 {
		return 0, nil
	}

	n, err := unix.Read(l.fd, p)
	switch {
	case err == unix.EAGAIN:
		return 0, nil
	case errors.Is(err, unix.EIO):
		return 0, ErrLineClosed
	case err != nil:
		return 0, fmt.Errorf("read %s: %w", l.path, err)
	}
	return n, nil
}

func (l *termiosLine) Write(p []byte) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return 0, ErrLineClosed
	}

	written := 0
	for written < len(p) {
		n, err := unix.Write(l.fd, p[written:])
		if n > 0 {
			written += n
		}
		switch {
		case err == unix.EAGAIN || err == unix.EINTR:
			fds := []unix.PollFd{
				{Fd: int32(l.fd), Events: unix.POLLOUT},
				{Fd: int32(l.wakeR), Events: unix.POLLIN},
			}
			if _, perr := unix.Poll(fds, -1); perr != nil && perr != unix.EINTR {
				return written, fmt.Errorf("poll %s: %w", l.path, perr)
			}
			if fds[1].Revents != 0 {
				return written, ErrLineClosed
			}
		case err != nil:
			return written, fmt.Errorf("write %s: %w", l.path, err)
		}
	}
	return written, nil
}

func (l *termiosLine) Drain() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return ErrLineClosed
	}
	return unix.IoctlSetInt(l.fd, unix.TCSBRK, 1)
}

// TxPending returns the bytes still in the kernel's output queue.
func (l *termiosLine) TxPending() (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return 0, ErrLineClosed
	}
	return unix.IoctlGetInt(l.fd, unix.TIOCOUTQ)
}

func (l *termiosLine) ResetInput() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return ErrLineClosed
	}
	return unix.IoctlSetInt(l.fd, unix.TCFLSH, unix.TCIFLUSH)
}

func (l *termiosLine) SetRTS(on bool) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return ErrLineClosed
	}
	if on {
		return unix.IoctlSetPointerInt(l.fd, unix.TIOCMBIS, unix.TIOCM_RTS)
	}
	return unix.IoctlSetPointerInt(l.fd, unix.TIOCMBIC, unix.TIOCM_RTS)
}

func (l *termiosLine) Close() error {
	if !l.closing.CompareAndSwap(false, true) {
		return ErrLineClosed
	}
	// Wake a blocked Read or Write before taking the lock they hold.
	unix.Write(l.wakeW, []byte{0})

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLineClosed
	}
	l.closed = true

	unix.Close(l.wakeR)
	unix.Close(l.wakeW)
	return unix.Close(l.fd)
}
