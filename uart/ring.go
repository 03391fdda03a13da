package uart

import "sync"

// ring is the driver's software receive buffer. Writers never block; bytes
// that do not fit are dropped and counted by the caller.
type ring struct {
	mu   sync.Mutex
	buf  []byte
	head int
	n    int

	// avail is signalled, coalesced, whenever bytes are added.
	avail chan struct{}
}

func newRing(size int) *ring {
	return &ring{
		buf:   make([]byte, size),
		avail: make(chan struct{}, 1),
	}
}

// write stores as much of p as fits and returns the number of bytes stored.
func (r *ring) write(p []byte) int {
	r.mu.Lock()
	free := len(r.buf) - r.n
	if len(p) > free {
		p = p[:free]
	}
	tail := (r.head + r.n) % len(r.buf)
	c := copy(r.buf[tail:], p)
	if c < len(p) {
		copy(r.buf, p[c:])
	}
	r.n += len(p)
	r.mu.Unlock()

	if len(p) > 0 {
		select {
		case r.avail <- struct{}{}:
		default:
		}
	}
	return len(p)
}

// read moves up to len(p) buffered bytes into p.
func (r *ring) read(p []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := min(len(p), r.n)
	c := copy(p[:n], r.buf[r.head:])
	if c < n {
		copy(p[c:n], r.buf)
	}
	r.head = (r.head + n) % len(r.buf)
	r.n -= n
	if r.n == 0 {
		r.head = 0
	}
	return n
}

func (r *ring) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

func (r *ring) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.n = 0
}
