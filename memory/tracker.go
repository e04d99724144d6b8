// Package memory provides a reference MemoryManager: a page pool backed by
// page-aligned byte slices, a pointer-array allocator, and a budget tracker
// that asks registered sorters to spill once consumption crosses a limit.
//
// The tracker/action split is grounded on the memory.Tracker /
// ActionOnExceed pair in TiDB's row container (util/chunk/row_container.go):
// consumption is tallied centrally, and crossing the limit invokes a
// pluggable action rather than failing the allocation outright.
package memory

import "sync"

// ActionOnExceed reacts to a Tracker crossing its byte limit. It is invoked
// synchronously from inside Reserve, but with the tracker's lock released,
// so it is free to call back into the tracker it was registered on (for
// example by freeing pages or arrays it owns).
type ActionOnExceed interface {
	// Action is asked to relinquish at least requested bytes on behalf of
	// trigger (nil means "make room for my own next allocation"). It
	// returns the number of bytes actually freed.
	Action(requested int64, trigger interface{}) (int64, error)
}

// Tracker tallies bytes consumed against a limit and fires a chain of
// registered actions, in registration order, until consumption plus the
// pending request fits the limit or every action has been tried once.
type Tracker struct {
	mu       sync.Mutex
	consumed int64
	limit    int64
	actions  []ActionOnExceed
}

// NewTracker builds a Tracker with the given byte limit. A non-positive
// limit means unlimited: Reserve never triggers an action.
func NewTracker(limit int64) *Tracker {
	return &Tracker{limit: limit}
}

// RegisterAction appends an action to the chain tried when the budget is
// exceeded. Actions are tried in the order registered.
func (t *Tracker) RegisterAction(a ActionOnExceed) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actions = append(t.actions, a)
}

// Reserve ensures that consuming an additional requested bytes would not
// exceed the limit, invoking registered actions to free memory if it
// would. It returns an error only if every action has been tried and the
// budget still cannot accommodate the request.
//
// Actions are invoked with the tracker's own lock released: an action
// frees memory by calling back into FreePage/FreeArray, which in turn
// call Release on this same tracker, so holding the lock across the
// call would deadlock. Bytes an action frees are reflected by those
// Release calls, not by Reserve itself — it only re-checks consumed
// after each action runs.
func (t *Tracker) Reserve(requested int64) error {
	t.mu.Lock()
	if t.limit <= 0 {
		t.mu.Unlock()
		return nil
	}
	actions := append([]ActionOnExceed(nil), t.actions...)
	t.mu.Unlock()

	for _, a := range actions {
		t.mu.Lock()
		fits := t.consumed+requested <= t.limit
		t.mu.Unlock()
		if fits {
			break
		}
		if _, err := a.Action(requested, nil); err != nil {
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.consumed+requested > t.limit {
		return errMemoryBudgetExceeded
	}
	return nil
}

// Consume records bytes as committed, without re-checking the limit.
// Callers call Reserve first to make room, then Consume once the
// allocation actually succeeds.
func (t *Tracker) Consume(bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consumed += bytes
}

// Release records bytes as given back.
func (t *Tracker) Release(bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consumed -= bytes
	if t.consumed < 0 {
		t.consumed = 0
	}
}

// BytesConsumed reports current consumption.
func (t *Tracker) BytesConsumed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consumed
}

// BytesLimit reports the configured limit (non-positive means unlimited).
func (t *Tracker) BytesLimit() int64 {
	return t.limit
}
