package spillio

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/dsnet/golib/memfile"
	"github.com/pkg/errors"

	"github.com/ryogrid/extsorter/interfaces"
)

// MemWriter is an in-memory interfaces.SpillWriter backed by
// github.com/dsnet/golib/memfile, for callers that want spill semantics
// (bounded per-run working set, a run registry, replayable iterators)
// without touching the filesystem — tests and small runs mainly.
type MemWriter struct {
	mu sync.Mutex
	f  *memfile.File
	n  int64
}

func NewMemWriter(expectedRecords int64) (interfaces.SpillWriter, error) {
	return &MemWriter{f: memfile.New(nil)}, nil
}

func (w *MemWriter) Write(base interfaces.Page, offset, length int, prefix uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var hdr [recordHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(length))
	binary.LittleEndian.PutUint64(hdr[4:12], prefix)
	if _, err := w.f.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "spillio: write record header")
	}
	if _, err := w.f.Write(base.Bytes()[offset : offset+length]); err != nil {
		return errors.Wrap(err, "spillio: write record payload")
	}
	w.n++
	return nil
}

func (w *MemWriter) Close() error { return nil }

// RemoveFile is a no-op: an in-memory run has no filesystem footprint.
func (w *MemWriter) RemoveFile() error { return nil }

func (w *MemWriter) GetReader() (interfaces.RecordIterator, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "spillio: rewind memory run")
	}
	return newFileReader(io.NopCloser(w.f), w.n), nil
}
