package extsorter_test

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryogrid/extsorter"
	"github.com/ryogrid/extsorter/index"
	"github.com/ryogrid/extsorter/interfaces"
	"github.com/ryogrid/extsorter/memory"
	"github.com/ryogrid/extsorter/spillio"
)

const testPageSize = 256

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

func recordPayload(base interfaces.Page, offset, length int) []byte {
	return base.Bytes()[offset+4 : offset+length]
}

func byteCmp(baseA interfaces.Page, offA, lenA int, baseB interfaces.Page, offB, lenB int) int {
	a, b := recordPayload(baseA, offA, lenA), recordPayload(baseB, offB, lenB)
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

func newTestSorter(t *testing.T, limitBytes int64, opts ...extsorter.Option) (*extsorter.Sorter, *memory.Manager) {
	t.Helper()
	mm := memory.NewManager(testPageSize, limitBytes)
	newIndex := func() interfaces.Index { return index.New(mm, mm, byteCmp, prefixCmp) }
	newWriter := func(n int64) (interfaces.SpillWriter, error) { return spillio.NewMemWriter(n) }
	newMerger := spillio.NewMerger

	s, err := extsorter.New(mm, newIndex, newWriter, newMerger, byteCmp, prefixCmp, opts...)
	require.NoError(t, err)
	mm.RegisterSpiller(s.Spill)
	return s, mm
}

func keyBytes(n int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(n))
	return b
}

func drainSorted(t *testing.T, it interfaces.RecordIterator) [][]byte {
	t.Helper()
	var out [][]byte
	for it.HasNext() {
		require.NoError(t, it.LoadNext())
		raw := recordPayload(it.Base(), it.Offset(), it.Length())
		cp := append([]byte(nil), raw...)
		out = append(out, cp)
	}
	return out
}

func TestInsertAndSortedIterator_AllInMemory(t *testing.T) {
	s, _ := newTestSorter(t, 0)
	defer s.CleanupResources()

	values := []int{5, 3, 9, 1, 7}
	for _, v := range values {
		b := keyBytes(v)
		require.NoError(t, s.Insert(b, 0, len(b), uint64(v)))
	}

	it, err := s.SortedIterator()
	require.NoError(t, err)
	got := drainSorted(t, it)

	require.Len(t, got, len(values))
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, string(got[i-1]), string(got[i]))
	}
}

func TestInsert_ForcesSpillsUnderTightBudget(t *testing.T) {
	// A tiny budget makes every growth of the index's pointer array hit the
	// memory manager's limit, so the index is repeatedly spilled.
	s, mm := newTestSorter(t, 2*testPageSize)
	defer s.CleanupResources()

	const n = 500
	for i := 0; i < n; i++ {
		b := keyBytes(rand.Intn(100000))
		require.NoError(t, s.Insert(b, 0, len(b), binary.BigEndian.Uint64(b)))
	}

	assert.Greater(t, s.PeakMemoryUsedBytes(), int64(0))
	assert.LessOrEqual(t, mm.Tracker().BytesConsumed(), mm.Tracker().BytesLimit()+int64(testPageSize))

	it, err := s.SortedIterator()
	require.NoError(t, err)
	got := drainSorted(t, it)
	require.Len(t, got, n)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, string(got[i-1]), string(got[i]))
	}
}

func TestInsertionOrderIterator_PreservesOrderPerRun(t *testing.T) {
	s, _ := newTestSorter(t, 2*testPageSize)
	defer s.CleanupResources()

	const n = 64
	var inserted [][]byte
	for i := 0; i < n; i++ {
		b := keyBytes(n - i) // descending, so sorted order would differ
		inserted = append(inserted, b)
		require.NoError(t, s.Insert(b, 0, len(b), binary.BigEndian.Uint64(b)))
	}

	it, err := s.InsertionOrderIterator()
	require.NoError(t, err)
	got := drainSorted(t, it)
	require.Len(t, got, n)

	// Under this budget the index drains every 8 records, so each run (and
	// the in-memory tail) holds one consecutive group of 8 inserted keys,
	// and the groups come back in the order they were inserted.
	const perRun = 8
	for start := 0; start < n; start += perRun {
		assert.ElementsMatch(t, inserted[start:start+perRun], got[start:start+perRun])
	}
}

func TestSortedIterator_CannotBeConsumedTwice(t *testing.T) {
	s, _ := newTestSorter(t, 0)
	defer s.CleanupResources()
	b := keyBytes(1)
	require.NoError(t, s.Insert(b, 0, len(b), 1))

	_, err := s.SortedIterator()
	require.NoError(t, err)

	assert.Panics(t, func() {
		_, _ = s.SortedIterator()
	})
}

func TestCleanupResources_IsIdempotentAndLeavesZeroFootprint(t *testing.T) {
	s, _ := newTestSorter(t, 2*testPageSize)

	for i := 0; i < 200; i++ {
		b := keyBytes(i)
		require.NoError(t, s.Insert(b, 0, len(b), uint64(i)))
	}

	s.CleanupResources()
	s.CleanupResources() // must not panic or double-free

	assert.Equal(t, 0, s.NumberOfAllocatedPages())
}

func TestMerge_TransfersRunsAndZeroesOtherSorter(t *testing.T) {
	a, mm := newTestSorter(t, 0)
	defer a.CleanupResources()

	mmB := mm
	newIndexB := func() interfaces.Index { return index.New(mmB, mmB, byteCmp, prefixCmp) }
	newWriterB := func(n int64) (interfaces.SpillWriter, error) { return spillio.NewMemWriter(n) }
	b, err := extsorter.New(mmB, newIndexB, newWriterB, spillio.NewMerger, byteCmp, prefixCmp)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		kb := keyBytes(i)
		require.NoError(t, a.Insert(kb, 0, len(kb), uint64(i)))
	}
	for i := 10; i < 20; i++ {
		kb := keyBytes(i)
		require.NoError(t, b.Insert(kb, 0, len(kb), uint64(i)))
	}

	require.NoError(t, a.Merge(b))
	assert.Equal(t, 0, b.NumberOfAllocatedPages())

	it, err := a.SortedIterator()
	require.NoError(t, err)
	got := drainSorted(t, it)
	assert.Len(t, got, 20)
}

func TestSpill_ForeignTriggerDelegatesToActiveIterator(t *testing.T) {
	s, _ := newTestSorter(t, 0)
	defer s.CleanupResources()

	const n = 20
	for i := 0; i < n; i++ {
		b := keyBytes(i)
		require.NoError(t, s.Insert(b, 0, len(b), uint64(i)))
	}

	it, err := s.SortedIterator()
	require.NoError(t, err)

	// Read a few records before another consumer asks this sorter to give
	// back memory on their behalf.
	var got [][]byte
	for i := 0; i < 3; i++ {
		require.True(t, it.HasNext())
		require.NoError(t, it.LoadNext())
		got = append(got, append([]byte(nil), recordPayload(it.Base(), it.Offset(), it.Length())...))
	}

	freed, err := s.Spill(1<<30, "some other consumer")
	require.NoError(t, err)
	assert.Greater(t, freed, int64(0))

	// The rest of the stream must still be fully readable, and still in
	// order, after the mid-iteration spill swapped in a spill-backed
	// reader underneath it.
	for it.HasNext() {
		require.NoError(t, it.LoadNext())
		got = append(got, append([]byte(nil), recordPayload(it.Base(), it.Offset(), it.Length())...))
	}

	require.Len(t, got, n)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, string(got[i-1]), string(got[i]))
	}
}

func TestSpill_ForeignTriggerWithNoActiveIteratorReturnsZero(t *testing.T) {
	s, _ := newTestSorter(t, 0)
	defer s.CleanupResources()

	b := keyBytes(1)
	require.NoError(t, s.Insert(b, 0, len(b), 1))

	freed, err := s.Spill(1<<30, "nobody is reading yet")
	require.NoError(t, err)
	assert.Equal(t, int64(0), freed)
}

func TestKeyValueInsert_RoundTrips(t *testing.T) {
	s, _ := newTestSorter(t, 0)
	defer s.CleanupResources()

	key := []byte("k")
	value := []byte(fmt.Sprintf("value-%d", 42))
	require.NoError(t, s.InsertKeyValue(key, 0, len(key), value, 0, len(value), 7))

	it, err := s.SortedIterator()
	require.NoError(t, err)
	require.True(t, it.HasNext())
	require.NoError(t, it.LoadNext())

	b := it.Base().Bytes()[it.Offset():]
	totalInner := binary.LittleEndian.Uint32(b[0:4])
	keyLen := binary.LittleEndian.Uint32(b[4:8])
	gotKey := b[8 : 8+keyLen]
	gotValue := b[8+keyLen : 4+totalInner]
	assert.Equal(t, key, gotKey)
	assert.Equal(t, value, gotValue)
}
