package extsorter

import "github.com/ryogrid/extsorter/interfaces"

// SortedIterator is the sorted output path. If no spill ever happened,
// it is just the in-memory index's sorted iterator wrapped in a
// spillable iterator so a later Spill with a foreign trigger can still
// claw back memory from the unread tail. Otherwise every spill run plus
// (if the index still holds anything) the wrapped in-memory tail are
// merged into one globally sorted stream.
//
// At most one of SortedIterator or InsertionOrderIterator may be consumed
// per Sorter instance.
func (s *Sorter) SortedIterator() (interfaces.RecordIterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	assertNoContractViolation(!s.consumedSorted && !s.consumedInsertionOrder,
		"at most one output iterator may be consumed per sorter instance")
	s.consumedSorted = true

	if s.runs.empty() {
		if s.index == nil || s.index.NumRecords() == 0 {
			return emptyIterator{}, nil
		}
		sit, err := s.index.GetSortedIterator()
		if err != nil {
			return nil, wrapIO(err)
		}
		return newSpillableIterator(s, sit), nil
	}

	readers, err := s.runs.readers()
	if err != nil {
		return nil, err
	}

	merger := s.newMerger(s.recordCmp, s.prefixCmp, len(readers)+1)
	for _, r := range readers {
		merger.AddIfNotEmpty(r)
	}
	if s.index != nil && s.index.NumRecords() > 0 {
		sit, err := s.index.GetSortedIterator()
		if err != nil {
			return nil, wrapIO(err)
		}
		merger.AddIfNotEmpty(newSpillableIterator(s, sit))
	}
	return merger.SortedIterator()
}

// InsertionOrderIterator is the insertion-order output path: the spill
// readers in registry (creation) order, followed by the in-memory
// index's iterator if one remains. Each run and the in-memory tail yield
// their own records in sorted order, so insertion order holds between
// these segments but not within one. There is no spill-during-iteration
// support on this path — it never registers an active iterator.
func (s *Sorter) InsertionOrderIterator() (interfaces.RecordIterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	assertNoContractViolation(!s.consumedSorted && !s.consumedInsertionOrder,
		"at most one output iterator may be consumed per sorter instance")
	s.consumedInsertionOrder = true

	readers, err := s.runs.readers()
	if err != nil {
		return nil, err
	}
	sources := append([]interfaces.RecordIterator{}, readers...)
	if s.index != nil && s.index.NumRecords() > 0 {
		sit, err := s.index.GetSortedIterator()
		if err != nil {
			return nil, wrapIO(err)
		}
		sources = append(sources, sit)
	}
	if len(sources) == 0 {
		return emptyIterator{}, nil
	}
	return newChainIterator(sources), nil
}
