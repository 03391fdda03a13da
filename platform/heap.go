package platform

// Malloc returns n zeroed bytes. A negative size or an exhausted heap budget
// is fatal; Malloc never returns nil for n > 0.
func (h *Host) Malloc(n int) []byte {
	if n < 0 {
		h.fatal("Malloc", ErrInvalidSize)
	}
	if !h.reserve(int64(n)) {
		h.fatal("Malloc", ErrOutOfMemory)
	}
	return make([]byte, n)
}

// Free returns b to the heap budget immediately. b must not be used after.
func (h *Host) Free(b []byte) {
	if b == nil {
		return
	}
	h.release(int64(cap(b)))
}

// HeapUsed reports the bytes currently allocated or reserved for stacks.
func (h *Host) HeapUsed() int64 {
	return h.heapUsed.Load()
}

func (h *Host) reserve(n int64) bool {
	for {
		used := h.heapUsed.Load()
		if h.heapLimit > 0 && used+n > h.heapLimit {
			return false
		}
		if h.heapUsed.CompareAndSwap(used, used+n) {
			return true
		}
	}
}

func (h *Host) release(n int64) {
	for {
		used := h.heapUsed.Load()
		next := used - n
		if next < 0 {
			next = 0
		}
		if h.heapUsed.CompareAndSwap(used, next) {
			return
		}
	}
}
