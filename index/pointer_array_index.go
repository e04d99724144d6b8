// Package index provides a reference interfaces.Index: a flat pointer
// array of (address, prefix) pairs, sorted by prefix first and a full
// record comparator as tiebreak. The ordering and snapshot-on-iterate
// approach is grounded on TiDB's SortedRowContainer, which keeps a row
// pointer slice and sorts it with sort.Slice against a keyColumnsLess
// comparator (util/chunk/row_container.go).
package index

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/ryogrid/extsorter/interfaces"
)

// PointerArrayIndex is the reference Index implementation.
type PointerArrayIndex struct {
	mm        interfaces.MemoryManager
	resolver  interfaces.PageResolver
	recordCmp interfaces.RecordComparator
	prefixCmp interfaces.PrefixComparator

	arr        interfaces.LongArray // 2 uint64 words per record: address, prefix
	numRecords int64
}

// New builds an empty PointerArrayIndex with no backing array; the first
// insert requires the sorter to expand it via ExpandPointerArray.
func New(mm interfaces.MemoryManager, resolver interfaces.PageResolver, recordCmp interfaces.RecordComparator, prefixCmp interfaces.PrefixComparator) *PointerArrayIndex {
	return &PointerArrayIndex{mm: mm, resolver: resolver, recordCmp: recordCmp, prefixCmp: prefixCmp}
}

func (idx *PointerArrayIndex) capacity() int64 {
	if idx.arr == nil {
		return 0
	}
	return int64(idx.arr.Len()) / 2
}

func (idx *PointerArrayIndex) HasSpaceForAnotherRecord() bool {
	return idx.numRecords < idx.capacity()
}

// ExpandPointerArray copies live entries into newArray, installs it as the
// backing array, and frees the old one — the sorter allocates the
// replacement and hands it in, but the index owns releasing what it
// replaces.
func (idx *PointerArrayIndex) ExpandPointerArray(newArray interfaces.LongArray) error {
	newCap := int64(newArray.Len()) / 2
	if newCap < idx.numRecords {
		return errors.Errorf("index: new array capacity %d smaller than %d live records", newCap, idx.numRecords)
	}
	for i := int64(0); i < idx.numRecords; i++ {
		newArray.Set(int(i*2), idx.arr.Get(int(i*2)))
		newArray.Set(int(i*2+1), idx.arr.Get(int(i*2+1)))
	}
	old := idx.arr
	idx.arr = newArray
	if old != nil {
		idx.mm.FreeArray(old)
	}
	return nil
}

func (idx *PointerArrayIndex) InsertRecord(address uint64, prefix uint64) error {
	if !idx.HasSpaceForAnotherRecord() {
		return errors.New("index: no space for another record")
	}
	i := idx.numRecords
	idx.arr.Set(int(i*2), address)
	idx.arr.Set(int(i*2+1), prefix)
	idx.numRecords++
	return nil
}

type indexEntry struct {
	address uint64
	prefix  uint64
}

func (idx *PointerArrayIndex) lessEntries(a, b indexEntry) bool {
	if c := idx.prefixCmp(a.prefix, b.prefix); c != 0 {
		return c < 0
	}
	pageA, offA := idx.mm.DecodeAddress(a.address)
	pageB, offB := idx.mm.DecodeAddress(b.address)
	baseA, errA := idx.resolver.ResolvePage(pageA)
	baseB, errB := idx.resolver.ResolvePage(pageB)
	if errA != nil || errB != nil {
		// Both pages were live when the entries were inserted; a resolve
		// failure here means the caller iterated after the index was
		// reset or freed, which is a contract violation elsewhere.
		return false
	}
	lenA := interfaces.RecordSpan(baseA, offA)
	lenB := interfaces.RecordSpan(baseB, offB)
	return idx.recordCmp(baseA, offA, lenA, baseB, offB, lenB) < 0
}

// GetSortedIterator snapshots the live entries and their sort order so the
// returned iterator stays stable across a later Reset — it holds raw
// addresses, not Page references, so it carries nothing the index itself
// needs to keep alive.
func (idx *PointerArrayIndex) GetSortedIterator() (interfaces.SortedIterator, error) {
	n := int(idx.numRecords)
	entries := make([]indexEntry, n)
	for i := 0; i < n; i++ {
		entries[i] = indexEntry{
			address: idx.arr.Get(i * 2),
			prefix:  idx.arr.Get(i*2 + 1),
		}
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return idx.lessEntries(entries[order[a]], entries[order[b]])
	})
	return &sortedIterator{mm: idx.mm, resolver: idx.resolver, entries: entries, order: order, pos: -1}, nil
}

func (idx *PointerArrayIndex) Reset() {
	idx.numRecords = 0
}

func (idx *PointerArrayIndex) MemoryUsage() int64 {
	if idx.arr == nil {
		return 0
	}
	return int64(idx.arr.Len()) * 8
}

func (idx *PointerArrayIndex) NumRecords() int64 { return idx.numRecords }

func (idx *PointerArrayIndex) Free() {
	if idx.arr != nil {
		idx.mm.FreeArray(idx.arr)
		idx.arr = nil
	}
	idx.numRecords = 0
}
