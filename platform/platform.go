package platform

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Priority is a scheduling priority. Higher values are more urgent.
type Priority int32

const (
	IdlePriority Priority = 0
	MaxPriority  Priority = 24

	// DefaultThreadPriority was chosen arbitrarily, just above idle.
	DefaultThreadPriority = IdlePriority + 2
)

// WordSize is the size in bytes of one stack word on the target device.
const WordSize = 4

// DefaultThreadStackWords is an 8 KiB stack expressed in words.
const DefaultThreadStackWords = 8192 / WordSize

// StackWords converts a stack budget in bytes to words, rounding up.
func StackWords(bytes int) int {
	return (bytes + WordSize - 1) / WordSize
}

// MaxDelay makes a wait unbounded.
const MaxDelay = time.Duration(1<<63 - 1)

// ThreadFunc is the entry point of a detached thread.
type ThreadFunc func(arg any)

// Platform is the capability set the transport and protocol layer use.
type Platform interface {
	CreateDetachedThread(fn ThreadFunc, arg any, priority Priority, stackWords int) bool
	NewMutex(recursive bool) (*Mutex, error)
	NewEventGroup() (*EventGroup, error)
	Malloc(n int) []byte
	Free(b []byte)
	Delay(ms uint32)
	Yield()
	EnterCritical()
	ExitCritical()
}

// Ensure Host implements Platform at compile time
var _ Platform = (*Host)(nil)

// Host implements Platform on goroutines.
type Host struct {
	maxThreads int32
	heapLimit  int64
	onFatal    FatalHandler

	threads  atomic.Int32
	heapUsed atomic.Int64

	initOnce sync.Once
	crit     atomic.Pointer[Mutex]
}

// Option configures a Host.
type Option func(*Host)

// WithMaxThreads bounds the number of live detached threads. Zero means no limit.
func WithMaxThreads(n int) Option {
	return func(h *Host) {
		h.maxThreads = int32(n)
	}
}

// WithHeapLimit bounds the bytes handed out by Malloc and reserved for thread
// stacks. Zero means no limit.
func WithHeapLimit(bytes int64) Option {
	return func(h *Host) {
		h.heapLimit = bytes
	}
}

// WithFatalHandler replaces the default panicking fatal handler.
func WithFatalHandler(fn FatalHandler) Option {
	return func(h *Host) {
		if fn != nil {
			h.onFatal = fn
		}
	}
}

// New creates a Host. Init must be called before the critical section is used.
func New(opts ...Option) *Host {
	h := &Host{onFatal: panicHandler}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Init prepares the critical section. Calling it again has no effect.
func (h *Host) Init() {
	h.initOnce.Do(func() {
		h.crit.Store(h.newMutex(true))
	})
}

// fatal never returns.
func (h *Host) fatal(op string, err error) {
	fe := &FatalError{Op: op, Err: err}
	h.onFatal(fe)
	panic(fe)
}

// Delay blocks the calling thread for at least ms milliseconds.
func (h *Host) Delay(ms uint32) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// Yield hints the scheduler to run other threads.
func (h *Host) Yield() {
	runtime.Gosched()
}

// EnterCritical acquires the host-wide critical section. Nested entry from
// the same thread is allowed and must be matched by ExitCritical calls.
func (h *Host) EnterCritical() {
	m := h.crit.Load()
	if m == nil {
		h.fatal("EnterCritical", ErrNotInitialized)
	}
	m.Lock()
}

// ExitCritical releases one level of the critical section.
func (h *Host) ExitCritical() {
	m := h.crit.Load()
	if m == nil {
		h.fatal("ExitCritical", ErrNotInitialized)
	}
	m.Unlock()
}

// Threads returns the number of live detached threads.
func (h *Host) Threads() int {
	return int(h.threads.Load())
}

var defaultHost atomic.Pointer[Host]

func init() {
	defaultHost.Store(New())
}

// Default returns the process-wide Host.
func Default() *Host {
	return defaultHost.Load()
}

// SetDefault replaces the process-wide Host, for example to install a fatal
// handler at process start.
func SetDefault(h *Host) {
	if h != nil {
		defaultHost.Store(h)
	}
}

// Init initializes the process-wide Host.
func Init() { Default().Init() }

// CreateDetachedThread starts fn on the process-wide Host.
func CreateDetachedThread(fn ThreadFunc, arg any, priority Priority, stackWords int) bool {
	return Default().CreateDetachedThread(fn, arg, priority, stackWords)
}

// Malloc allocates from the process-wide Host.
func Malloc(n int) []byte { return Default().Malloc(n) }

// Free releases memory obtained from Malloc.
func Free(b []byte) { Default().Free(b) }

// Delay blocks for at least ms milliseconds.
func Delay(ms uint32) { Default().Delay(ms) }

// EnterCritical enters the process-wide critical section.
func EnterCritical() { Default().EnterCritical() }

// ExitCritical leaves the process-wide critical section.
func ExitCritical() { Default().ExitCritical() }
