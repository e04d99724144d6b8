package extsorter

import "go.uber.org/zap"

// Spill is the memory-pressure callback a MemoryManager invokes to ask
// this sorter to relinquish memory. trigger identifies who is asking:
// nil or this very Sorter means "make room for my own next allocation",
// anything else means another consumer is asking this sorter to give up
// memory on their behalf.
//
// A foreign trigger with no active reading iterator returns 0 rather
// than erroring, per the open-question decision recorded in the design
// notes; the in-memory index is left as it is, even if it holds records.
func (s *Sorter) Spill(requestedBytes int64, trigger interface{}) (int64, error) {
	if trigger != nil && trigger != s {
		s.mu.Lock()
		it := s.activeIterator
		s.mu.Unlock()
		if it == nil {
			return 0, nil
		}
		return it.spill()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drainIndexLocked()
}

// drainIndexLocked is the drain procedure: walk the index's sorted
// iterator, copy every record into a new spill run, append the run to
// the registry, then reset the index and release every page. Must be
// called with s.mu held.
func (s *Sorter) drainIndexLocked() (int64, error) {
	if s.index == nil || s.index.NumRecords() == 0 {
		return 0, nil
	}

	s.updatePeakLocked()

	numRecords := s.index.NumRecords()
	sortedIt, err := s.index.GetSortedIterator()
	if err != nil {
		return 0, wrapIO(err)
	}

	w, err := s.newSpillWriter(numRecords)
	if err != nil {
		return 0, wrapIO(err)
	}
	for sortedIt.HasNext() {
		if err := sortedIt.LoadNext(); err != nil {
			return 0, wrapIO(err)
		}
		if err := w.Write(sortedIt.Base(), sortedIt.Offset(), sortedIt.Length(), sortedIt.Prefix()); err != nil {
			return 0, wrapIO(err)
		}
	}
	if err := w.Close(); err != nil {
		return 0, wrapIO(err)
	}
	s.runs.append(w, numRecords)

	s.index.Reset()

	// Reset only empties the index's entries; the backing pointer array
	// stays allocated for reuse by later inserts, so only the pages are
	// actually released back to the memory manager here. Reporting
	// anything more (e.g. the index's still-allocated MemoryUsage) would
	// claim bytes freed that FreePage never calls Release on.
	freed := int64(s.pages.numPages()) * int64(s.pages.pageSize)
	s.pages.releaseAll()

	s.log.Debug("drained in-memory index to spill run",
		zap.Int64("records", numRecords),
		zap.Int("run", s.runs.len()))

	return freed, nil
}

func (s *Sorter) currentMemoryLocked() int64 {
	cur := int64(s.pages.numPages()) * int64(s.pages.pageSize)
	if s.index != nil {
		cur += s.index.MemoryUsage()
	}
	return cur
}

func (s *Sorter) updatePeakLocked() {
	cur := s.currentMemoryLocked()
	if cur > s.peakMemory {
		s.peakMemory = cur
	}
}
