package platform

// threadRequest is the record handed to a new thread. It owns the stack
// reservation until the thread function returns.
type threadRequest struct {
	fn         ThreadFunc
	arg        any
	priority   Priority
	stackBytes int64
}

// CreateDetachedThread starts fn(arg) on its own thread and returns without
// waiting. No handle is produced; when fn returns the thread releases its
// record and stack reservation and removes itself.
//
// Priority is clamped to [IdlePriority, MaxPriority]. stackWords is a budget
// in machine words, not bytes. The call fails only when fn is nil, the stack
// budget is not positive, the heap cannot hold the stack, or the thread limit
// is reached.
func (h *Host) CreateDetachedThread(fn ThreadFunc, arg any, priority Priority, stackWords int) bool {
	if fn == nil || stackWords <= 0 {
		return false
	}

	if priority < IdlePriority {
		priority = IdlePriority
	}
	if priority > MaxPriority {
		priority = MaxPriority
	}

	tr := &threadRequest{
		fn:         fn,
		arg:        arg,
		priority:   priority,
		stackBytes: int64(stackWords) * WordSize,
	}

	if !h.reserve(tr.stackBytes) {
		return false
	}
	if n := h.threads.Add(1); h.maxThreads > 0 && n > h.maxThreads {
		h.threads.Add(-1)
		h.release(tr.stackBytes)
		return false
	}

	go h.runThread(tr)
	return true
}

func (h *Host) runThread(tr *threadRequest) {
	defer func() {
		h.release(tr.stackBytes)
		h.threads.Add(-1)
	}()
	tr.fn(tr.arg)
}
