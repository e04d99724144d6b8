package extsorter

import "github.com/ryogrid/extsorter/interfaces"

// SpillWriterFactory produces a new SpillWriter sized for expectedRecords.
type SpillWriterFactory func(expectedRecords int64) (interfaces.SpillWriter, error)

// MergerFactory produces a new k-way Merger over the given comparators,
// hinted with the number of runs it will be asked to merge.
type MergerFactory func(recordCmp interfaces.RecordComparator, prefixCmp interfaces.PrefixComparator, capacityHint int) interfaces.Merger

// IndexFactory produces a fresh, empty Index. The sorter needs one at
// construction and again any time the index is destroyed mid-lifetime
// (after a spill that occurs during iteration) and a later insert needs
// somewhere to go.
type IndexFactory func() interfaces.Index
