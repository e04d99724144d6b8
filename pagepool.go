package extsorter

import (
	"sync"

	"github.com/ryogrid/extsorter/interfaces"
)

// pagePool tracks every page the sorter currently owns and, separately,
// the single "current" page new writes land in along with its byte
// cursor. Pages are append-only while live — once bytes are written at a
// given offset they are never rewritten — so the pool never needs to
// reclaim intra-page fragmentation, only whole pages.
//
// The pool has its own mutex rather than relying on the sorter's: acquire
// must release it before calling into the memory manager, since a
// budget-tight AllocatePage can turn around and call back into this same
// pool's releaseAll (via a self-triggered Spill) before returning.
type pagePool struct {
	mu sync.Mutex

	mm       interfaces.MemoryManager
	pageSize int

	owned  []interfaces.Page
	cur    interfaces.Page
	cursor int
}

func newPagePool(mm interfaces.MemoryManager) *pagePool {
	return &pagePool{
		mm:       mm,
		pageSize: mm.PageSize(),
	}
}

// closeCurrentPage forces the cursor to the page end, so the very next
// acquire allocates a fresh page instead of reusing whatever space is
// left in the current one.
func (p *pagePool) closeCurrentPage() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur != nil {
		p.cursor = p.cur.Size()
	}
}

// acquire ensures there is room for `required` contiguous bytes in the
// current page, allocating a new one via the memory manager if not, and
// returns the page together with the byte offset the caller should write
// at. A single record must fit in one page; larger requests are a
// contract violation rather than a multi-page spanning write.
//
// The pool's own lock is held only to read or mutate its bookkeeping,
// never across the AllocatePage call itself.
func (p *pagePool) acquire(required int) (interfaces.Page, int, error) {
	assertNoContractViolation(required <= p.pageSize,
		"record of %d bytes exceeds page size %d", required, p.pageSize)

	p.mu.Lock()
	if p.cur != nil && p.cursor+required <= p.cur.Size() {
		off := p.cursor
		p.cursor += required
		cur := p.cur
		p.mu.Unlock()
		return cur, off, nil
	}
	p.mu.Unlock()

	pg, err := p.mm.AllocatePage(required)
	if err != nil {
		return nil, 0, wrapMemory(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.owned = append(p.owned, pg)
	p.cur = pg
	p.cursor = required
	return pg, 0, nil
}

// releaseAll frees every page currently owned, including the current
// write page, and resets the pool to empty.
func (p *pagePool) releaseAll() {
	p.mu.Lock()
	owned := p.owned
	p.owned = nil
	p.cur = nil
	p.cursor = 0
	p.mu.Unlock()

	for _, pg := range owned {
		p.mm.FreePage(pg)
	}
}

// releaseAllExcept frees every owned page other than keep (if keep is
// non-nil and currently owned), leaving it as the pool's sole remaining,
// pinned page. Used by the spillable iterator when it must hand memory
// back mid-iteration but the most recently returned record's page is
// still being read by the caller.
func (p *pagePool) releaseAllExcept(keep interfaces.Page) {
	p.mu.Lock()
	var kept, toFree []interfaces.Page
	for _, pg := range p.owned {
		if keep != nil && pg.ID() == keep.ID() {
			kept = append(kept, pg)
			continue
		}
		toFree = append(toFree, pg)
	}
	p.owned = kept
	if keep == nil {
		p.cur = nil
		p.cursor = 0
	}
	p.mu.Unlock()

	for _, pg := range toFree {
		p.mm.FreePage(pg)
	}
}

func (p *pagePool) numPages() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.owned)
}

// bytesExcept reports how many bytes releaseAllExcept(keep) would
// actually hand back to the memory manager, without releasing anything.
func (p *pagePool) bytesExcept(keep interfaces.Page) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total int64
	for _, pg := range p.owned {
		if keep != nil && pg.ID() == keep.ID() {
			continue
		}
		total += int64(pg.Size())
	}
	return total
}
