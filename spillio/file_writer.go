package spillio

import (
	"bufio"
	"encoding/binary"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/ryogrid/extsorter/interfaces"
)

// FileWriter is a buffered, os.File-backed interfaces.SpillWriter. Records
// stream straight to disk as they arrive rather than staging a whole run
// in memory first, since the entire point of spilling is to relieve
// memory pressure.
type FileWriter struct {
	mu   sync.Mutex
	f    *os.File
	path string
	bw   *bufio.Writer
	n    int64
}

// NewFileWriter creates a temp file under dir to hold the run. dir may be
// "" for the default temp directory.
func NewFileWriter(dir string, expectedRecords int64) (interfaces.SpillWriter, error) {
	f, err := os.CreateTemp(dir, "extsorter-run-*.spill")
	if err != nil {
		return nil, errors.Wrap(err, "spillio: create run file")
	}
	return &FileWriter{f: f, path: f.Name(), bw: bufio.NewWriter(f)}, nil
}

func (w *FileWriter) Write(base interfaces.Page, offset, length int, prefix uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var hdr [recordHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(length))
	binary.LittleEndian.PutUint64(hdr[4:12], prefix)
	if _, err := w.bw.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "spillio: write record header")
	}
	if _, err := w.bw.Write(base.Bytes()[offset : offset+length]); err != nil {
		return errors.Wrap(err, "spillio: write record payload")
	}
	w.n++
	return nil
}

func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.bw.Flush(); err != nil {
		return errors.Wrap(err, "spillio: flush run file")
	}
	return w.f.Close()
}

func (w *FileWriter) RemoveFile() error {
	return os.Remove(w.path)
}

func (w *FileWriter) GetReader() (interfaces.RecordIterator, error) {
	f, err := os.Open(w.path)
	if err != nil {
		return nil, errors.Wrap(err, "spillio: open run file for read")
	}
	return newFileReader(f, w.n), nil
}
