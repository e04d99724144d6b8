// Package spillio provides reference SpillWriter and Merger
// implementations: a file-backed writer (buffered or O_DIRECT via
// github.com/ncw/directio), an in-memory writer backed by
// github.com/dsnet/golib/memfile, and a container/heap-based k-way merger
// grounded on TiDB's multiWayMerge (executor/sort.go).
package spillio

// bytesPage adapts a decoded record's raw bytes to interfaces.Page so
// readers and the merger can hand callers something that satisfies the
// same Base()/Bytes() contract live pages do, without the record still
// living on a pool-managed page.
type bytesPage struct {
	data []byte
}

func (p *bytesPage) ID() uint32    { return 0 }
func (p *bytesPage) Bytes() []byte { return p.data }
func (p *bytesPage) Size() int     { return len(p.data) }
