package spillio

import (
	"container/heap"

	"github.com/pkg/errors"

	"github.com/ryogrid/extsorter/interfaces"
)

// Merger is a container/heap-based k-way merge, grounded on TiDB's
// multiWayMerge (executor/sort.go): every source's current front record is
// cached alongside the source itself, the heap orders sources by their
// cached front, and popping a source both yields its front and primes its
// next one before pushing it back.
type Merger struct {
	recordCmp interfaces.RecordComparator
	prefixCmp interfaces.PrefixComparator
	h         *mergeHeap
	total     int64
}

func NewMerger(recordCmp interfaces.RecordComparator, prefixCmp interfaces.PrefixComparator, capacityHint int) interfaces.Merger {
	return &Merger{
		recordCmp: recordCmp,
		prefixCmp: prefixCmp,
		h:         &mergeHeap{items: make([]*mergeSource, 0, capacityHint), recordCmp: recordCmp, prefixCmp: prefixCmp},
	}
}

func (m *Merger) AddIfNotEmpty(r interfaces.RecordIterator) {
	if r == nil || !r.HasNext() {
		return
	}
	m.total += r.NumRecords()
	// Errors priming the first record are not reported: a source that
	// fails here is simply dropped from the merge rather than failing
	// AddIfNotEmpty, whose interface carries no error return. The merge
	// then yields fewer records than NumRecords reports.
	if err := r.LoadNext(); err != nil {
		return
	}
	heap.Push(m.h, &mergeSource{
		it:     r,
		base:   r.Base(),
		offset: r.Offset(),
		length: r.Length(),
		prefix: r.Prefix(),
	})
}

func (m *Merger) SortedIterator() (interfaces.RecordIterator, error) {
	return &mergeIterator{h: m.h, total: m.total}, nil
}

// mergeSource caches one source iterator's current front record, since
// priming its next record (to let the heap reorder) would otherwise
// overwrite the very record the merge is about to yield.
type mergeSource struct {
	it     interfaces.RecordIterator
	base   interfaces.Page
	offset int
	length int
	prefix uint64
}

type mergeHeap struct {
	items     []*mergeSource
	recordCmp interfaces.RecordComparator
	prefixCmp interfaces.PrefixComparator
}

func (h *mergeHeap) Len() int { return len(h.items) }

func (h *mergeHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if c := h.prefixCmp(a.prefix, b.prefix); c != 0 {
		return c < 0
	}
	return h.recordCmp(a.base, a.offset, a.length, b.base, b.offset, b.length) < 0
}

func (h *mergeHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *mergeHeap) Push(x interface{}) { h.items = append(h.items, x.(*mergeSource)) }

func (h *mergeHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// mergeIterator is the sorted stream Merger.SortedIterator returns.
type mergeIterator struct {
	h     *mergeHeap
	total int64

	curBase   interfaces.Page
	curOffset int
	curLength int
	curPrefix uint64
}

func (it *mergeIterator) HasNext() bool { return it.h.Len() > 0 }

func (it *mergeIterator) LoadNext() error {
	if it.h.Len() == 0 {
		return errors.New("spillio: merge iterator exhausted")
	}
	top := heap.Pop(it.h).(*mergeSource)
	it.curBase, it.curOffset, it.curLength, it.curPrefix = top.base, top.offset, top.length, top.prefix

	if top.it.HasNext() {
		if err := top.it.LoadNext(); err != nil {
			return errors.Wrap(err, "spillio: advance merge source")
		}
		top.base, top.offset, top.length, top.prefix = top.it.Base(), top.it.Offset(), top.it.Length(), top.it.Prefix()
		heap.Push(it.h, top)
	}
	return nil
}

func (it *mergeIterator) Base() interfaces.Page { return it.curBase }
func (it *mergeIterator) Offset() int           { return it.curOffset }
func (it *mergeIterator) Length() int           { return it.curLength }
func (it *mergeIterator) Prefix() uint64        { return it.curPrefix }
func (it *mergeIterator) NumRecords() int64     { return it.total }
