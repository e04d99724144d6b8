package extsorter

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ryogrid/extsorter/interfaces"
)

type spillState int

const (
	stateInMemory spillState = iota
	statePendingSwap
	stateFromSpill
)

// spillableIterator wraps the in-memory sorted iterator so it tolerates
// a spill happening in the middle of consumption. See the design notes
// on the cyclic ownership between a sorter and its spillable iterator —
// this type acquires its own monitor first and the sorter's monitor
// second, never the reverse.
type spillableIterator struct {
	mu sync.Mutex

	sorter *Sorter

	state    spillState
	upstream interfaces.RecordIterator
	next     interfaces.RecordIterator // pending swap-in reader

	remaining int64

	// loaded and loadedPage track whether the caller has begun reading a
	// record and which page it lives in, so a mid-iteration spill knows
	// which single page must stay pinned until the caller advances.
	loaded     bool
	loadedPage interfaces.Page
	pinnedPage interfaces.Page
}

func newSpillableIterator(s *Sorter, cursor interfaces.SortedIterator) *spillableIterator {
	it := &spillableIterator{
		sorter:    s,
		state:     stateInMemory,
		upstream:  cursor,
		remaining: cursor.NumRecords(),
	}
	s.activeIterator = it
	return it
}

func (it *spillableIterator) HasNext() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.remaining > 0
}

func (it *spillableIterator) LoadNext() error {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.state == statePendingSwap {
		it.sorter.mu.Lock()
		it.sorter.pages.releaseAll() // frees the pinned page, if any
		it.sorter.mu.Unlock()

		it.upstream = it.next
		it.next = nil
		it.pinnedPage = nil
		it.state = stateFromSpill
	}

	if err := it.upstream.LoadNext(); err != nil {
		return wrapIO(err)
	}
	it.remaining--
	if it.state == stateInMemory {
		it.loaded = true
		it.loadedPage = it.upstream.Base()
	}
	return nil
}

func (it *spillableIterator) Base() interfaces.Page { return it.upstream.Base() }
func (it *spillableIterator) Offset() int           { return it.upstream.Offset() }
func (it *spillableIterator) Length() int           { return it.upstream.Length() }
func (it *spillableIterator) Prefix() uint64        { return it.upstream.Prefix() }
func (it *spillableIterator) NumRecords() int64     { return it.remaining }

// spill drains every record this iterator has not yet returned into a
// new spill run, stashes its reader as the pending swap, then releases
// every sorter page except the one backing the most recently returned
// record (which the caller may still be reading) and frees the sorter's
// in-memory index. The pinned page itself is released by the next
// LoadNext, immediately before the swap takes effect.
func (it *spillableIterator) spill() (int64, error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.state != stateInMemory || it.remaining <= 0 {
		return 0, nil
	}

	sit, ok := it.upstream.(interfaces.SortedIterator)
	assertNoContractViolation(ok, "in-memory upstream must be a SortedIterator to be cloned for spill")
	clone, err := sit.Clone()
	if err != nil {
		return 0, wrapIO(err)
	}

	it.sorter.mu.Lock()
	defer it.sorter.mu.Unlock()

	w, err := it.sorter.newSpillWriter(it.remaining)
	if err != nil {
		return 0, wrapIO(err)
	}
	for clone.HasNext() {
		if err := clone.LoadNext(); err != nil {
			return 0, wrapIO(err)
		}
		if err := w.Write(clone.Base(), clone.Offset(), clone.Length(), clone.Prefix()); err != nil {
			return 0, wrapIO(err)
		}
	}
	if err := w.Close(); err != nil {
		return 0, wrapIO(err)
	}
	it.sorter.runs.append(w, it.remaining)
	reader, err := w.GetReader()
	if err != nil {
		return 0, wrapIO(err)
	}
	// This run was handed straight to us, not surfaced through the
	// registry's own readers() — mark it opened so nothing else can
	// claim it too.
	it.sorter.runs.runs[len(it.sorter.runs.runs)-1].opened = true

	pin := interfaces.Page(nil)
	if it.loaded {
		pin = it.loadedPage
	}

	// The pinned page (if any) stays allocated until the caller advances
	// past it, so it must not be counted as freed here; the index's
	// backing array, by contrast, really is released in full by Free().
	freed := it.sorter.pages.bytesExcept(pin)
	if it.sorter.index != nil {
		freed += it.sorter.index.MemoryUsage()
	}

	it.sorter.pages.releaseAllExcept(pin)
	it.pinnedPage = pin

	if it.sorter.index != nil {
		it.sorter.index.Free()
		it.sorter.index = nil
	}

	it.next = reader
	it.state = statePendingSwap

	it.sorter.log.Debug("spilled unread tail of active iterator",
		zap.Int64("remaining", it.remaining))

	return freed, nil
}
