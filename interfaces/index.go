package interfaces

// RecordComparator orders two records given as (page, offset, length)
// triples. Supplied by the caller of the sorter; used as the tiebreaker
// whenever two entries share a prefix.
type RecordComparator func(baseA Page, offA, lenA int, baseB Page, offB, lenB int) int

// PrefixComparator orders two 64-bit prefixes. Supplied by the caller
// alongside RecordComparator; used as the sorted index's fast first-cut
// key.
type PrefixComparator func(a, b uint64) int

// Index holds (address, prefix) entries, sorts them, and yields a sorted
// iterator over them. It is an external collaborator: the sorter owns the
// index's backing LongArray allocations (growth goes through the
// MemoryManager) but never reaches into its internal layout.
type Index interface {
	HasSpaceForAnotherRecord() bool
	// ExpandPointerArray adopts a new, larger backing array allocated by
	// the sorter, copies the live entries into it, and releases the old
	// one back to the MemoryManager.
	ExpandPointerArray(newArray LongArray) error
	InsertRecord(address uint64, prefix uint64) error
	// GetSortedIterator returns an iterator stable across Reset: once
	// obtained, later inserts or a Reset do not retroactively change the
	// sequence it was built from.
	GetSortedIterator() (SortedIterator, error)
	// Reset empties the index for reuse without releasing the instance
	// itself.
	Reset()
	MemoryUsage() int64
	NumRecords() int64
	// Free releases the index's own resources. The instance is not
	// usable afterward.
	Free()
}
