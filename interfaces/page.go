package interfaces

// Page is one off-heap-style byte range owned by a sorter for the
// lifetime between MemoryManager.AllocatePage and MemoryManager.FreePage.
// Pages are append-only while live; callers never overwrite already
// written bytes.
type Page interface {
	// ID identifies the page for the lifetime of the allocation. It is
	// only unique among pages currently live on the same MemoryManager.
	ID() uint32
	// Bytes exposes the page's full backing range. Writers track their
	// own cursor; the page itself has no notion of a write position.
	Bytes() []byte
	// Size returns len(Bytes()).
	Size() int
}

// LongArray is the backing store for an Index's pointer array. The sorter
// owns its allocation: Index never allocates or frees one itself, it only
// reads and writes through Get/Set once the sorter hands one in.
type LongArray interface {
	Len() int
	Get(i int) uint64
	Set(i int, v uint64)
}

// MemoryManager is the task-level allocator every sorter instance is
// registered against. It may invoke Sorter.Spill from any goroutine,
// between any two sorter operations, to ask for memory back.
type MemoryManager interface {
	AllocatePage(minBytes int) (Page, error)
	FreePage(p Page)

	// AllocateArray allocates a LongArray of numWords uint64 words (an
	// Index may pack more than one word per logical record into it). It
	// returns an error if, even after any spill triggered as a side
	// effect, there isn't room.
	AllocateArray(numWords int64) (LongArray, error)
	FreeArray(a LongArray)

	// EncodeAddress packs a page + intra-page byte offset into the
	// opaque 64-bit handle stored in an index entry.
	EncodeAddress(p Page, offset int) uint64
	// DecodeAddress is EncodeAddress's inverse.
	DecodeAddress(addr uint64) (pageID uint32, offset int)

	// PageSize is the fixed allocation granularity handed out by
	// AllocatePage; a single record must fit within it.
	PageSize() int
}
