package spillio

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/ryogrid/extsorter/interfaces"
)

// recordHeaderSize is the size of the on-disk framing a spill run uses for
// each record:
// a 4-byte length, then an 8-byte prefix, then that many payload bytes.
// This framing is distinct from the sorter's own on-page record layouts
// — it exists only so a spill run can be replayed without the page pool
// it was written from.
const recordHeaderSize = 4 + 8

type fileReader struct {
	rc    io.ReadCloser
	br    *bufio.Reader
	total int64
	read  int64

	curData   []byte
	curLen    int
	curPrefix uint64
}

func newFileReader(rc io.ReadCloser, total int64) *fileReader {
	return &fileReader{rc: rc, br: bufio.NewReader(rc), total: total}
}

func (r *fileReader) HasNext() bool { return r.read < r.total }

func (r *fileReader) LoadNext() error {
	if r.read >= r.total {
		return errors.New("spillio: run reader exhausted")
	}
	var hdr [recordHeaderSize]byte
	if _, err := io.ReadFull(r.br, hdr[:]); err != nil {
		return errors.Wrap(err, "spillio: read record header")
	}
	length := int(binary.LittleEndian.Uint32(hdr[0:4]))
	prefix := binary.LittleEndian.Uint64(hdr[4:12])

	buf := make([]byte, length)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return errors.Wrap(err, "spillio: read record payload")
	}
	r.curData = buf
	r.curLen = length
	r.curPrefix = prefix
	r.read++

	if r.read >= r.total {
		r.rc.Close()
	}
	return nil
}

func (r *fileReader) Base() interfaces.Page { return &bytesPage{data: r.curData} }
func (r *fileReader) Offset() int           { return 0 }
func (r *fileReader) Length() int           { return r.curLen }
func (r *fileReader) Prefix() uint64        { return r.curPrefix }
func (r *fileReader) NumRecords() int64     { return r.total }
