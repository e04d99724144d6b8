package index_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryogrid/extsorter/index"
	"github.com/ryogrid/extsorter/interfaces"
	"github.com/ryogrid/extsorter/memory"
)

func prefixCmp(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func byteCmp(baseA interfaces.Page, offA, lenA int, baseB interfaces.Page, offB, lenB int) int {
	a := baseA.Bytes()[offA+4 : offA+lenA]
	b := baseB.Bytes()[offB+4 : offB+lenB]
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

func writeRecord(t *testing.T, mm *memory.Manager, payload []byte) uint64 {
	t.Helper()
	p, err := mm.AllocatePage(4 + len(payload))
	require.NoError(t, err)
	b := p.Bytes()
	binary.LittleEndian.PutUint32(b[0:4], uint32(len(payload)))
	copy(b[4:4+len(payload)], payload)
	return mm.EncodeAddress(p, 0)
}

func TestPointerArrayIndex_InsertAndSortedIterator(t *testing.T) {
	mm := memory.NewManager(64, 0)
	idx := index.New(mm, mm, byteCmp, prefixCmp)

	arr, err := mm.AllocateArray(20)
	require.NoError(t, err)
	require.NoError(t, idx.ExpandPointerArray(arr))

	values := [][]byte{[]byte("banana"), []byte("apple"), []byte("cherry")}
	for i, v := range values {
		addr := writeRecord(t, mm, v)
		require.NoError(t, idx.InsertRecord(addr, uint64(i)))
	}
	assert.Equal(t, int64(3), idx.NumRecords())

	it, err := idx.GetSortedIterator()
	require.NoError(t, err)

	var got [][]byte
	for it.HasNext() {
		require.NoError(t, it.LoadNext())
		raw := it.Base().Bytes()[it.Offset()+4 : it.Offset()+it.Length()]
		got = append(got, append([]byte(nil), raw...))
	}
	// Prefixes 0, 1, 2 were assigned in insertion order and decide the
	// order before the byte comparator is consulted.
	require.Len(t, got, 3)
	assert.Equal(t, "banana", string(got[0]))
	assert.Equal(t, "apple", string(got[1]))
	assert.Equal(t, "cherry", string(got[2]))
}

func TestPointerArrayIndex_ExpandPreservesEntriesAndFreesOldArray(t *testing.T) {
	mm := memory.NewManager(64, 0)
	idx := index.New(mm, mm, byteCmp, prefixCmp)

	small, err := mm.AllocateArray(4) // room for 2 records
	require.NoError(t, err)
	require.NoError(t, idx.ExpandPointerArray(small))

	addr1 := writeRecord(t, mm, []byte("a"))
	addr2 := writeRecord(t, mm, []byte("b"))
	require.NoError(t, idx.InsertRecord(addr1, 1))
	require.NoError(t, idx.InsertRecord(addr2, 2))
	assert.False(t, idx.HasSpaceForAnotherRecord())

	bigger, err := mm.AllocateArray(8)
	require.NoError(t, err)
	require.NoError(t, idx.ExpandPointerArray(bigger))
	assert.True(t, idx.HasSpaceForAnotherRecord())
	assert.Equal(t, int64(2), idx.NumRecords())
	// Two 64-byte pages plus the 8-word array; the 4-word array is released.
	assert.Equal(t, int64(2*64+8*8), mm.Tracker().BytesConsumed())
}

func TestPointerArrayIndex_ResetKeepsCapacityButEmptiesEntries(t *testing.T) {
	mm := memory.NewManager(64, 0)
	idx := index.New(mm, mm, byteCmp, prefixCmp)
	arr, err := mm.AllocateArray(4)
	require.NoError(t, err)
	require.NoError(t, idx.ExpandPointerArray(arr))

	addr := writeRecord(t, mm, []byte("x"))
	require.NoError(t, idx.InsertRecord(addr, 1))
	idx.Reset()
	assert.Equal(t, int64(0), idx.NumRecords())
	assert.True(t, idx.HasSpaceForAnotherRecord())
}

func TestPointerArrayIndex_SortedIteratorSurvivesReset(t *testing.T) {
	mm := memory.NewManager(64, 0)
	idx := index.New(mm, mm, byteCmp, prefixCmp)
	arr, err := mm.AllocateArray(8)
	require.NoError(t, err)
	require.NoError(t, idx.ExpandPointerArray(arr))

	addr1 := writeRecord(t, mm, []byte("a"))
	addr2 := writeRecord(t, mm, []byte("b"))
	require.NoError(t, idx.InsertRecord(addr1, 1))
	require.NoError(t, idx.InsertRecord(addr2, 2))

	it, err := idx.GetSortedIterator()
	require.NoError(t, err)
	idx.Reset() // must not disturb the already-taken snapshot

	count := 0
	for it.HasNext() {
		require.NoError(t, it.LoadNext())
		count++
	}
	assert.Equal(t, 2, count)
}
