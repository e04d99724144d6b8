package spillio_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryogrid/extsorter/interfaces"
	"github.com/ryogrid/extsorter/spillio"
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

func buildRun(t *testing.T, values []int) interfaces.RecordIterator {
	t.Helper()
	w, err := spillio.NewMemWriter(int64(len(values)))
	require.NoError(t, err)
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	for _, v := range sorted {
		page, off, length := newPlainRecordPage([]byte{byte(v)})
		require.NoError(t, w.Write(page, off, length, uint64(v)))
	}
	require.NoError(t, w.Close())
	r, err := w.GetReader()
	require.NoError(t, err)
	return r
}

func TestMerger_KWayMergeProducesGlobalOrder(t *testing.T) {
	runs := [][]int{
		{9, 3, 1},
		{8, 4, 2},
		{7, 6, 5},
	}

	m := spillio.NewMerger(byteCmp, prefixCmp, len(runs))
	for _, r := range runs {
		m.AddIfNotEmpty(buildRun(t, r))
	}

	it, err := m.SortedIterator()
	require.NoError(t, err)

	var got []int
	for it.HasNext() {
		require.NoError(t, it.LoadNext())
		b := it.Base().Bytes()[it.Offset()+4 : it.Offset()+it.Length()]
		got = append(got, int(b[0]))
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestMerger_SkipsEmptySources(t *testing.T) {
	m := spillio.NewMerger(byteCmp, prefixCmp, 2)
	empty, err := spillio.NewMemWriter(0)
	require.NoError(t, err)
	require.NoError(t, empty.Close())
	emptyReader, err := empty.GetReader()
	require.NoError(t, err)

	m.AddIfNotEmpty(emptyReader)
	m.AddIfNotEmpty(buildRun(t, []int{1}))

	it, err := m.SortedIterator()
	require.NoError(t, err)
	require.True(t, it.HasNext())
	require.NoError(t, it.LoadNext())
	assert.False(t, it.HasNext())
}
