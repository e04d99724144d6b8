package extsorter

// CleanupResources deletes every spill file (errors logged, not
// returned), frees every page, frees the in-memory index if one remains,
// and is idempotent so it is safe to register directly as a
// task-completion hook and also call explicitly.
func (s *Sorter) CleanupResources() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cleanedUp {
		return
	}
	s.cleanedUp = true

	s.runs.deleteAll(s.log)
	s.pages.releaseAll()
	if s.index != nil {
		s.index.Free()
		s.index = nil
	}
	s.activeIterator = nil
}

// PeakMemoryUsedBytes returns the high-water mark of pages-plus-index
// memory this sorter has held, recomputed against current state before
// being read so it always reflects the true peak.
func (s *Sorter) PeakMemoryUsedBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatePeakLocked()
	return s.peakMemory
}

// NumberOfAllocatedPages is a diagnostic accessor over the page pool.
func (s *Sorter) NumberOfAllocatedPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages.numPages()
}
