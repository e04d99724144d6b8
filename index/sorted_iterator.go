package index

import (
	"github.com/pkg/errors"

	"github.com/ryogrid/extsorter/interfaces"
)

// sortedIterator walks a snapshot of (address, prefix) entries in the
// order computed at GetSortedIterator time. It resolves pages lazily
// through the same resolver the index uses, so it never holds a Page
// reference between records.
type sortedIterator struct {
	mm       interfaces.MemoryManager
	resolver interfaces.PageResolver

	entries []indexEntry
	order   []int
	pos     int
}

func (it *sortedIterator) HasNext() bool { return it.pos+1 < len(it.order) }

func (it *sortedIterator) LoadNext() error {
	if it.pos+1 >= len(it.order) {
		return errors.New("index: sorted iterator exhausted")
	}
	it.pos++
	return nil
}

func (it *sortedIterator) current() indexEntry { return it.entries[it.order[it.pos]] }

func (it *sortedIterator) Base() interfaces.Page {
	pageID, _ := it.mm.DecodeAddress(it.current().address)
	p, err := it.resolver.ResolvePage(pageID)
	if err != nil {
		return nil
	}
	return p
}

func (it *sortedIterator) Offset() int {
	_, off := it.mm.DecodeAddress(it.current().address)
	return off
}

func (it *sortedIterator) Length() int {
	return interfaces.RecordSpan(it.Base(), it.Offset())
}

func (it *sortedIterator) Prefix() uint64 { return it.current().prefix }

func (it *sortedIterator) NumRecords() int64 { return int64(len(it.order)) }

// Clone copies the order slice so the clone can be spilled independently
// (and at a different cursor position) from the original, as the
// mid-consumption spillable iterator requires.
func (it *sortedIterator) Clone() (interfaces.SortedIterator, error) {
	orderCopy := make([]int, len(it.order))
	copy(orderCopy, it.order)
	return &sortedIterator{
		mm:       it.mm,
		resolver: it.resolver,
		entries:  it.entries,
		order:    orderCopy,
		pos:      it.pos,
	}, nil
}
