package extsorter

import (
	"github.com/ryogrid/extsorter/interfaces"
)

// chainIterator is the insertion-order output path: it advances through
// a fixed list of sources in order, moving to the next only once the
// current one is exhausted. Each source's own order is preserved;
// sources are never interleaved.
type chainIterator struct {
	sources []interfaces.RecordIterator
	idx     int
	total   int64
}

func newChainIterator(sources []interfaces.RecordIterator) *chainIterator {
	var total int64
	for _, s := range sources {
		total += s.NumRecords()
	}
	return &chainIterator{sources: sources, total: total}
}

func (c *chainIterator) advancePastExhausted() {
	for c.idx < len(c.sources) && !c.sources[c.idx].HasNext() {
		c.idx++
	}
}

func (c *chainIterator) HasNext() bool {
	c.advancePastExhausted()
	return c.idx < len(c.sources)
}

func (c *chainIterator) LoadNext() error {
	c.advancePastExhausted()
	assertNoContractViolation(c.idx < len(c.sources), "LoadNext called with no records remaining")
	return c.sources[c.idx].LoadNext()
}

func (c *chainIterator) Base() interfaces.Page { return c.sources[c.idx].Base() }
func (c *chainIterator) Offset() int           { return c.sources[c.idx].Offset() }
func (c *chainIterator) Length() int           { return c.sources[c.idx].Length() }
func (c *chainIterator) Prefix() uint64        { return c.sources[c.idx].Prefix() }
func (c *chainIterator) NumRecords() int64     { return c.total }

// emptyIterator is the degenerate RecordIterator with nothing to yield.
type emptyIterator struct{}

func (emptyIterator) HasNext() bool             { return false }
func (emptyIterator) LoadNext() error           { return nil }
func (emptyIterator) Base() interfaces.Page     { return nil }
func (emptyIterator) Offset() int               { return 0 }
func (emptyIterator) Length() int               { return 0 }
func (emptyIterator) Prefix() uint64            { return 0 }
func (emptyIterator) NumRecords() int64         { return 0 }
