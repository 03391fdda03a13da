package platform

import (
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"
)

// noCopy flags accidental copies under go vet's copylocks check.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Mutex is a binary or recursive mutual-exclusion handle. Whether it is
// recursive is fixed when it is created. A Mutex is only ever used through
// the pointer returned by NewMutex.
type Mutex struct {
	_ noCopy

	host      *Host
	recursive bool
	sem       chan struct{}
	destroyed atomic.Bool

	// owner and depth are only meaningful for recursive mutexes. depth is
	// touched by the owning goroutine alone.
	owner atomic.Int64
	depth int
}

// NewMutex creates a mutex owned by the caller, who must Destroy it.
func (h *Host) NewMutex(recursive bool) (*Mutex, error) {
	return h.newMutex(recursive), nil
}

func (h *Host) newMutex(recursive bool) *Mutex {
	return &Mutex{
		host:      h,
		recursive: recursive,
		sem:       make(chan struct{}, 1),
	}
}

// Recursive reports whether the holder may re-acquire m.
func (m *Mutex) Recursive() bool {
	return m.recursive
}

// Lock blocks until m is acquired. A non-recursive mutex locked twice by the
// same thread deadlocks.
func (m *Mutex) Lock() {
	m.lock(MaxDelay)
}

// LockTimeout is Lock bounded by d. It reports whether m was acquired.
func (m *Mutex) LockTimeout(d time.Duration) bool {
	return m.lock(d)
}

func (m *Mutex) lock(d time.Duration) bool {
	if m.destroyed.Load() {
		m.host.fatal("Mutex.Lock", ErrMutexDestroyed)
	}

	var id int64
	if m.recursive {
		id = goid.Get()
		if id != 0 && m.owner.Load() == id {
			m.depth++
			return true
		}
	}

	if !m.take(d) {
		return false
	}

	if m.recursive {
		m.owner.Store(id)
		m.depth = 1
	}
	return true
}

func (m *Mutex) take(d time.Duration) bool {
	select {
	case m.sem <- struct{}{}:
		return true
	default:
	}
	if d <= 0 {
		return false
	}
	if d == MaxDelay {
		m.sem <- struct{}{}
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case m.sem <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

// Unlock releases m. Releasing a mutex that is not held, or a recursive
// mutex held by another thread, is fatal.
func (m *Mutex) Unlock() {
	if m.destroyed.Load() {
		m.host.fatal("Mutex.Unlock", ErrMutexDestroyed)
	}

	if m.recursive {
		if m.owner.Load() != goid.Get() {
			m.host.fatal("Mutex.Unlock", ErrNotOwner)
		}
		m.depth--
		if m.depth > 0 {
			return
		}
		m.owner.Store(0)
	}

	select {
	case <-m.sem:
	default:
		m.host.fatal("Mutex.Unlock", ErrNotLocked)
	}
}

// Destroy releases m. Using m afterwards is fatal.
func (m *Mutex) Destroy() {
	if m == nil {
		return
	}
	m.destroyed.Store(true)
}
