// Package extsorter implements the memory-and-spill coordination core of
// an external sorter for fixed- or variable-length binary records: an
// in-memory index of (record-pointer, prefix) pairs backed by raw pages,
// a spill protocol triggered by an external memory manager, and an output
// iterator that can itself be spilled mid-consumption.
//
// The in-memory sorter, the spill file format, and the task-level memory
// manager are external collaborators consumed through the interfaces
// package; this package only coordinates them.
package extsorter

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ryogrid/extsorter/interfaces"
)

// Sorter is a single instance's worth of state: a page queue, a spill-run
// registry, at most one in-memory index, and at most one active reading
// iterator. Insert/InsertKeyValue are meant to be driven by one goroutine
// at a time; mu instead serializes this sorter's state against calls that
// legitimately come from elsewhere — a foreign Spill trigger from another
// sorter sharing the same memory manager, Merge absorbing another
// sorter's runs, or CleanupResources firing from a task-completion hook.
type Sorter struct {
	mu sync.Mutex

	mm        interfaces.MemoryManager
	pages     *pagePool
	index     interfaces.Index
	newIndex  IndexFactory
	runs      runRegistry
	recordCmp interfaces.RecordComparator
	prefixCmp interfaces.PrefixComparator

	newSpillWriter SpillWriterFactory
	newMerger      MergerFactory

	initialArrayCapacity int64

	// activeIterator is the currently outstanding reading iterator, if
	// any, remembered so a foreign Spill trigger can delegate to it.
	activeIterator *spillableIterator

	consumedSorted         bool
	consumedInsertionOrder bool
	cleanedUp              bool

	peakMemory int64

	log *zap.Logger
}

// New constructs a Sorter with a freshly created, empty index.
func New(
	mm interfaces.MemoryManager,
	newIndex IndexFactory,
	newSpillWriter SpillWriterFactory,
	newMerger MergerFactory,
	recordCmp interfaces.RecordComparator,
	prefixCmp interfaces.PrefixComparator,
	opts ...Option,
) (*Sorter, error) {
	s := newSorterShell(mm, newIndex, newSpillWriter, newMerger, recordCmp, prefixCmp, opts...)
	idx := newIndex()
	s.index = idx
	return s, nil
}

// NewFromExistingIndex constructs a Sorter around an already-populated
// index. It immediately drains that index into the first spill run and
// then operates index-less until the first insert creates a fresh one —
// the caller's index instance is never touched again afterward.
func NewFromExistingIndex(
	mm interfaces.MemoryManager,
	existingIndex interfaces.Index,
	newIndex IndexFactory,
	newSpillWriter SpillWriterFactory,
	newMerger MergerFactory,
	recordCmp interfaces.RecordComparator,
	prefixCmp interfaces.PrefixComparator,
	opts ...Option,
) (*Sorter, error) {
	s := newSorterShell(mm, newIndex, newSpillWriter, newMerger, recordCmp, prefixCmp, opts...)
	s.index = existingIndex
	s.mu.Lock()
	_, err := s.drainIndexLocked()
	s.index = nil
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newSorterShell(
	mm interfaces.MemoryManager,
	newIndex IndexFactory,
	newSpillWriter SpillWriterFactory,
	newMerger MergerFactory,
	recordCmp interfaces.RecordComparator,
	prefixCmp interfaces.PrefixComparator,
	opts ...Option,
) *Sorter {
	s := &Sorter{
		mm:                   mm,
		pages:                newPagePool(mm),
		newIndex:             newIndex,
		recordCmp:            recordCmp,
		prefixCmp:            prefixCmp,
		newSpillWriter:       newSpillWriter,
		newMerger:            newMerger,
		initialArrayCapacity: defaultInitialArrayCapacity,
		log:                  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert is the plain-record path: base[offset:offset+length] is copied
// into a page owned by this sorter and indexed under prefix.
//
// Growing the index and acquiring a page both happen before this sorter's
// own lock is taken, since either may itself trigger a spill of this very
// sorter as a side effect of memory pressure — see ensureIndexCapacity.
func (s *Sorter) Insert(base []byte, offset, length int, prefix uint64) error {
	if err := s.ensureIndexCapacity(); err != nil {
		return err
	}
	pg, pgOff, err := s.pages.acquire(4 + length)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dst := pg.Bytes()
	putUint32LE(dst[pgOff:], uint32(length))
	copy(dst[pgOff+4:pgOff+4+length], base[offset:offset+length])

	addr := s.mm.EncodeAddress(pg, pgOff)
	if err := s.index.InsertRecord(addr, prefix); err != nil {
		return wrapIO(err)
	}
	s.updatePeakLocked()
	return nil
}

// InsertKeyValue copies a key and a value into a page, laid out as a
// total-inner-length, a key length, the key bytes, then the value bytes,
// and indexes the result under prefix. See Insert for why capacity growth
// and page acquisition happen ahead of this sorter's own lock.
func (s *Sorter) InsertKeyValue(keyBase []byte, keyOff, keyLen int, valueBase []byte, valueOff, valueLen int, prefix uint64) error {
	if err := s.ensureIndexCapacity(); err != nil {
		return err
	}

	totalInner := keyLen + valueLen + 4
	required := 4 + totalInner
	pg, pgOff, err := s.pages.acquire(required)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dst := pg.Bytes()
	putUint32LE(dst[pgOff:], uint32(totalInner))
	putUint32LE(dst[pgOff+4:], uint32(keyLen))
	copy(dst[pgOff+8:pgOff+8+keyLen], keyBase[keyOff:keyOff+keyLen])
	copy(dst[pgOff+8+keyLen:pgOff+8+keyLen+valueLen], valueBase[valueOff:valueOff+valueLen])

	addr := s.mm.EncodeAddress(pg, pgOff)
	if err := s.index.InsertRecord(addr, prefix); err != nil {
		return wrapIO(err)
	}
	s.updatePeakLocked()
	return nil
}

// ensureIndexCapacity grows the index before an insert if needed: if the
// index has no room for another entry, it doubles its backing array via
// the memory manager. That allocation may itself trigger a spill as a
// side effect of memory pressure — the manager is free to call this very
// sorter's own Spill synchronously from within AllocateArray, which needs
// this sorter's lock to run. So the lock is held only around the pure
// bookkeeping steps, never across the AllocateArray call itself;
// otherwise a self-triggered spill would try to reacquire a lock this
// same goroutine is already holding and block forever.
func (s *Sorter) ensureIndexCapacity() error {
	s.mu.Lock()
	if s.index == nil {
		s.index = s.newIndex()
	}
	if s.index.HasSpaceForAnotherRecord() {
		s.mu.Unlock()
		return nil
	}
	newCap := s.initialArrayCapacity
	if cur := s.index.NumRecords(); cur > 0 {
		newCap = cur * 2
	}
	s.mu.Unlock()

	// The pointer-array index packs two uint64 words (address, prefix)
	// per record, so the word count requested from the memory manager is
	// double the record capacity being grown to.
	arr, err := s.mm.AllocateArray(newCap * 2)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		// A concurrent spill may have made space while we were blocked
		// allocating; if so the OOM is swallowed and insertion proceeds
		// against the now-empty index instead of failing outright.
		if s.index.HasSpaceForAnotherRecord() {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index.HasSpaceForAnotherRecord() {
		// A concurrent spill emptied the index while we were allocating;
		// the new array is unused.
		s.mm.FreeArray(arr)
		return nil
	}
	if err := s.index.ExpandPointerArray(arr); err != nil {
		return wrapIO(err)
	}
	return nil
}

// Merge spills other's in-memory index, transfers every one of its spill
// runs into this sorter, and tears other down so it holds no resources
// afterward. other must not be used again once Merge returns.
func (s *Sorter) Merge(other *Sorter) error {
	other.mu.Lock()
	defer other.mu.Unlock()
	if _, err := other.drainIndexLocked(); err != nil {
		return err
	}

	s.mu.Lock()
	s.runs.runs = append(s.runs.runs, other.runs.runs...)
	s.mu.Unlock()

	other.runs.runs = nil
	other.pages.releaseAll()
	if other.index != nil {
		other.index.Free()
		other.index = nil
	}
	other.cleanedUp = true
	return nil
}

func putUint32LE(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}
