package memory

// page is the reference interfaces.Page: a page-aligned byte slice
// allocated through directio.AlignedBlock so the same pool can back either
// buffered or O_DIRECT spill writers without a copy.
type page struct {
	id  uint32
	buf []byte
}

func (p *page) ID() uint32    { return p.id }
func (p *page) Bytes() []byte { return p.buf }
func (p *page) Size() int     { return len(p.buf) }

// longArray is the reference interfaces.LongArray: a flat []uint64.
type longArray struct {
	data []uint64
}

func (a *longArray) Len() int            { return len(a.data) }
func (a *longArray) Get(i int) uint64    { return a.data[i] }
func (a *longArray) Set(i int, v uint64) { a.data[i] = v }
