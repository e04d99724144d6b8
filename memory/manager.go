package memory

import (
	"sync"
	"sync/atomic"

	"github.com/ncw/directio"

	"github.com/ryogrid/extsorter/interfaces"
)

// Manager is the reference interfaces.MemoryManager. It hands out
// directio-aligned pages and flat uint64 arrays against a shared Tracker,
// and lets any number of sorters register themselves as spillers so the
// tracker can ask them to relinquish memory when the budget is tight.
//
// Address encoding packs a 32-bit page id and a 32-bit intra-page offset
// into one uint64, mirroring the (page, offset) pair the sorter already
// carries everywhere else.
type Manager struct {
	mu         sync.Mutex
	pageSize   int
	tracker    *Tracker
	nextPageID uint32
	byID       map[uint32]*page
}

// NewManager builds a Manager whose pages are pageSize bytes and whose
// total budget (pages plus arrays) is limitBytes. A non-positive
// limitBytes means unlimited.
func NewManager(pageSize int, limitBytes int64) *Manager {
	return &Manager{
		pageSize: pageSize,
		tracker:  NewTracker(limitBytes),
		byID:     make(map[uint32]*page),
	}
}

// Tracker exposes the underlying budget tracker so callers can register
// spillers via RegisterSpiller or inspect consumption directly.
func (m *Manager) Tracker() *Tracker { return m.tracker }

// spillerAdapter adapts a Sorter-shaped Spill method to ActionOnExceed.
type spillerAdapter struct {
	spill func(requestedBytes int64, trigger interface{}) (int64, error)
}

func (s spillerAdapter) Action(requested int64, trigger interface{}) (int64, error) {
	return s.spill(requested, trigger)
}

// RegisterSpiller registers a sorter's Spill method as an action tried, in
// registration order, whenever allocation would exceed the budget.
func (m *Manager) RegisterSpiller(spill func(requestedBytes int64, trigger interface{}) (int64, error)) {
	m.tracker.RegisterAction(spillerAdapter{spill: spill})
}

func (m *Manager) PageSize() int { return m.pageSize }

func (m *Manager) AllocatePage(minBytes int) (interfaces.Page, error) {
	size := m.pageSize
	if minBytes > size {
		size = minBytes
	}
	if err := m.tracker.Reserve(int64(size)); err != nil {
		return nil, err
	}
	p := &page{
		id:  atomic.AddUint32(&m.nextPageID, 1),
		buf: directio.AlignedBlock(size),
	}
	m.tracker.Consume(int64(size))

	m.mu.Lock()
	m.byID[p.id] = p
	m.mu.Unlock()

	return p, nil
}

func (m *Manager) FreePage(p interfaces.Page) {
	pg, ok := p.(*page)
	if !ok {
		return
	}
	m.mu.Lock()
	delete(m.byID, pg.id)
	m.mu.Unlock()
	m.tracker.Release(int64(pg.Size()))
}

// ResolvePage satisfies interfaces.PageResolver so a default Index can turn
// a decoded page id back into bytes.
func (m *Manager) ResolvePage(pageID uint32) (interfaces.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[pageID]
	if !ok {
		return nil, errPageNotLive(pageID)
	}
	return p, nil
}

func (m *Manager) AllocateArray(numEntries int64) (interfaces.LongArray, error) {
	size := numEntries * 8
	if err := m.tracker.Reserve(size); err != nil {
		return nil, err
	}
	m.tracker.Consume(size)
	return &longArray{data: make([]uint64, numEntries)}, nil
}

func (m *Manager) FreeArray(a interfaces.LongArray) {
	la, ok := a.(*longArray)
	if !ok {
		return
	}
	m.tracker.Release(int64(len(la.data)) * 8)
}

func (m *Manager) EncodeAddress(base interfaces.Page, offset int) uint64 {
	return uint64(base.ID())<<32 | uint64(uint32(offset))
}

func (m *Manager) DecodeAddress(addr uint64) (uint32, int) {
	return uint32(addr >> 32), int(uint32(addr))
}
