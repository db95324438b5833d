package timer

import "time"

// State is a Timer Entry's lifecycle state.
type State int

const (
	// StateActive timers are live in the heap and will fire.
	StateActive State = iota
	// StateSuspended timers are not scheduled; stopped, one-shot-fired, or
	// freshly created with initial state Suspended.
	StateSuspended
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "suspended"
}

// Callback is invoked by the service worker outside the heap mutex when a
// timer expires.
type Callback func(handle uint32, user any)

// timerEntry is one scheduled timer. slot is the back-reference to this
// entry's live heap cell (nil when the entry is not currently in the
// heap), enabling O(1) lazy cancellation via tombstoning.
type timerEntry struct {
	handle     uint32
	interval   time.Duration
	expiration time.Time
	state      State
	autoReset  bool
	callback   Callback
	user       any
	slot       *slot
}

// slot is a heap cell holding an indirect reference to a Timer Entry. A
// nil entry marks the cell tombstoned: the worker discards it on pop
// without invoking any callback. At most one non-null slot points to a
// given Timer Entry at a time.
type slot struct {
	entry *timerEntry
	index int
}

// timerHeap is a min-heap of *slot ordered by expiration, implementing
// container/heap.Interface. Tombstoned slots (nil entry) sort first so
// the worker discards them as soon as they reach the top.
type timerHeap []*slot

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.entry == nil && b.entry == nil {
		return false
	}
	if a.entry == nil {
		return true
	}
	if b.entry == nil {
		return false
	}
	return a.entry.expiration.Before(b.entry.expiration)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	s := x.(*slot)
	s.index = len(*h)
	*h = append(*h, s)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return s
}
