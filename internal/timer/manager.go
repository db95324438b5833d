// Package timer implements a multi-timer scheduler: dense handle
// allocation, a min-heap of live timers keyed by absolute expiration, and a
// single service worker goroutine that sleeps precisely until the next
// expiration or an external wake, driven by tombstoned heap slots for O(1)
// lazy cancellation.
package timer

import (
	"container/heap"
	"context"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/aghoras/netprim/internal/errors"
	"github.com/aghoras/netprim/internal/hooks"
	"github.com/aghoras/netprim/internal/logger"
)

const (
	// DefaultCapacity matches MAX_TIMER_COUNT.
	DefaultCapacity = 100
)

// MaxInterval is half the representable range of time.Duration, matching
// MAX_TIMER_INTERVAL's purpose: prevent overflow when added to "now".
var MaxInterval = time.Duration(math.MaxInt64 / 2)

// Config overrides the timer manager's defaults.
type Config struct {
	Capacity    uint32
	MaxInterval time.Duration
	Log         *slog.Logger
	// HookManager, if set, receives timer_fired and timer_deleted events.
	// Optional: nil disables hook dispatch entirely.
	HookManager *hooks.Manager
}

func (c Config) withDefaults() Config {
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = MaxInterval
	}
	if c.Log == nil {
		c.Log = logger.Logger()
	}
	return c
}

// Snapshot is a point-in-time view of one active timer, returned by
// DumpActive for diagnostics (a data-returning generalization of the
// original's print-only DumpValidTimers/DumpTimersQueue).
type Snapshot struct {
	Handle     uint32
	Interval   time.Duration
	Expiration time.Time
	AutoReset  bool
}

// Manager is the Timer Manager: it owns the handle table, the tombstoned
// heap, and the single service worker goroutine. A single mutex guards
// both the handle table and the heap, precluding the two-mutex
// overlapping-acquisition hazard present in the original design.
type Manager struct {
	cfg     Config
	log     *slog.Logger
	mu      sync.Mutex
	handles *handleTable
	heap    timerHeap

	wakeCh     chan struct{}
	shutdownCh chan struct{}
	doneCh     chan struct{}
}

// NewManager constructs a Manager and starts its service worker. Worker
// start never fails in this Go translation (no OS thread creation can be
// refused the way pthread_create can be), so unlike the original there is
// no constructor failure mode to propagate.
func NewManager(cfg Config) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:        cfg,
		log:        cfg.Log,
		handles:    newHandleTable(cfg.Capacity),
		wakeCh:     make(chan struct{}, 1),
		shutdownCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	go m.serviceWorker()
	return m
}

func (m *Manager) signalLocked() {
	select {
	case m.wakeCh <- struct{}{}:
	default:
	}
}

// CreateTimer allocates a handle and, if initialState is StateActive,
// inserts the timer into the live heap and wakes the service worker.
// Returns InvalidHandle if interval exceeds the configured MaxInterval or
// the handle pool is exhausted.
func (m *Manager) CreateTimer(interval time.Duration, cb Callback, user any, initialState State, autoReset bool) uint32 {
	if interval > m.cfg.MaxInterval {
		return InvalidHandle
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry := &timerEntry{
		interval:  interval,
		state:     initialState,
		autoReset: autoReset,
		callback:  cb,
		user:      user,
	}
	h := m.handles.allocate(entry)
	if h == InvalidHandle {
		return InvalidHandle
	}
	entry.handle = h

	if initialState == StateActive {
		entry.expiration = time.Now().Add(interval)
		s := &slot{entry: entry}
		entry.slot = s
		heap.Push(&m.heap, s)
		m.signalLocked()
	}
	return h
}

// StopTimer transitions handle to Suspended and tombstones any live heap
// slot. If triggerService is true, the callback is invoked synchronously
// after the lock is released.
func (m *Manager) StopTimer(handle uint32, triggerService bool) error {
	m.mu.Lock()
	entry, ok := m.handles.get(handle)
	if !ok {
		m.mu.Unlock()
		return errors.NewArgumentError("timer.Stop", nil)
	}
	entry.state = StateSuspended
	if entry.slot != nil {
		entry.slot.entry = nil
		entry.slot = nil
	}
	cb, user := entry.callback, entry.user
	m.mu.Unlock()

	if triggerService && cb != nil {
		cb(handle, user)
	}
	return nil
}

// RestartTimer recomputes expiration from now, sets state Active, inserts
// a fresh heap slot (the old one, if any, is tombstoned first), and wakes
// the worker.
func (m *Manager) RestartTimer(handle uint32, triggerService bool) error {
	m.mu.Lock()
	entry, ok := m.handles.get(handle)
	if !ok {
		m.mu.Unlock()
		return errors.NewArgumentError("timer.Restart", nil)
	}
	if entry.slot != nil {
		entry.slot.entry = nil
	}
	entry.expiration = time.Now().Add(entry.interval)
	entry.state = StateActive
	s := &slot{entry: entry}
	entry.slot = s
	heap.Push(&m.heap, s)
	m.signalLocked()
	cb, user := entry.callback, entry.user
	m.mu.Unlock()

	if triggerService && cb != nil {
		cb(handle, user)
	}
	return nil
}

// DeleteTimer tombstones any live heap slot and returns the handle to the
// free list. The service worker discards the tombstoned slot on its next
// pop.
func (m *Manager) DeleteTimer(handle uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.handles.get(handle)
	if !ok {
		return errors.NewArgumentError("timer.Delete", nil)
	}
	if entry.slot != nil {
		entry.slot.entry = nil
		entry.slot = nil
	}
	m.handles.free(handle)
	if m.cfg.HookManager != nil {
		m.cfg.HookManager.TriggerEvent(context.Background(),
			*hooks.NewEvent(hooks.EventTimerDeleted).WithKey(strconv.FormatUint(uint64(handle), 10)))
	}
	return nil
}

// IsTimerActive reports handle's current state. An invalid handle reports
// false.
func (m *Manager) IsTimerActive(handle uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.handles.get(handle)
	if !ok {
		return false
	}
	return entry.state == StateActive
}

// DumpActive returns a snapshot of every currently Active timer.
func (m *Manager) DumpActive() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Snapshot
	for _, e := range m.handles.entries {
		if e.valid && e.entry.state == StateActive {
			out = append(out, Snapshot{
				Handle:     e.entry.handle,
				Interval:   e.entry.interval,
				Expiration: e.entry.expiration,
				AutoReset:  e.entry.autoReset,
			})
		}
	}
	return out
}

// Close signals shutdown and waits up to 300ms for the service worker to
// acknowledge, matching the original destructor's bounded wait before
// forcible cancellation. The Go runtime has no pthread_cancel analog, so a
// worker that does not exit in time is left to exit asynchronously and
// TimeoutError is returned to the caller.
func (m *Manager) Close() error {
	close(m.shutdownCh)
	select {
	case <-m.doneCh:
		return nil
	case <-time.After(300 * time.Millisecond):
		return errors.NewTimeoutError("timer.Close", 300*time.Millisecond, nil)
	}
}

// serviceWorker is the single worker goroutine that advances time and
// invokes callbacks. It holds mu except during its external wait and
// during callback invocation, matching the spec's "outside the heap
// mutex" callback contract so a callback may safely call back into the
// manager (e.g. restart-self) without deadlocking.
func (m *Manager) serviceWorker() {
	defer close(m.doneCh)
	for {
		m.mu.Lock()
		for m.heap.Len() == 0 {
			m.mu.Unlock()
			select {
			case <-m.wakeCh:
			case <-m.shutdownCh:
				return
			}
			m.mu.Lock()
		}

		top := m.heap[0]
		if top.entry == nil {
			heap.Pop(&m.heap)
			m.mu.Unlock()
			continue
		}

		entry := top.entry
		now := time.Now()
		if !entry.expiration.After(now) {
			heap.Pop(&m.heap)
			handle, user, cb := entry.handle, entry.user, entry.callback
			if entry.autoReset {
				entry.expiration = now.Add(entry.interval)
				s := &slot{entry: entry}
				entry.slot = s
				heap.Push(&m.heap, s)
			} else {
				entry.state = StateSuspended
				entry.slot = nil
			}
			m.mu.Unlock()

			if m.cfg.HookManager != nil {
				m.cfg.HookManager.TriggerEvent(context.Background(),
					*hooks.NewEvent(hooks.EventTimerFired).WithKey(strconv.FormatUint(uint64(handle), 10)))
			}
			if cb != nil {
				cb(handle, user)
			}
			continue
		}

		wait := entry.expiration.Sub(now)
		m.mu.Unlock()

		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-m.wakeCh:
			t.Stop()
		case <-m.shutdownCh:
			t.Stop()
			return
		}
	}
}
