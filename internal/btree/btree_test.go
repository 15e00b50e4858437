package btree

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coredb/coredb/internal/page"
	"github.com/coredb/coredb/internal/pager"
)

func intKey(n int) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(n))
	return buf
}

func drain(t *testing.T, it *RangeIterator) []*page.Object {
	t.Helper()
	var out []*page.Object
	for {
		obj, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, obj)
	}
	return out
}

func TestBTree_AddAndRangeIteratorOrdersKeys(t *testing.T) {
	p := pager.NewMemPager(page.DefaultSize)
	bt := New(p)

	order := []int{50, 10, 90, 30, 70, 20, 60}
	for _, n := range order {
		require.NoError(t, bt.Add(&page.Object{Key: intKey(n), Value: []byte("v"), Tid: 1}))
	}

	got := drain(t, bt.NewRangeIterator(nil, nil))
	require.Len(t, got, len(order))
	for i := 1; i < len(got); i++ {
		assert.True(t, bytes.Compare(got[i-1].Key, got[i].Key) < 0)
	}
	assert.Equal(t, intKey(10), got[0].Key)
	assert.Equal(t, intKey(90), got[len(got)-1].Key)
}

func TestBTree_RangeIteratorRespectsBounds(t *testing.T) {
	p := pager.NewMemPager(page.DefaultSize)
	bt := New(p)
	for n := 0; n < 20; n++ {
		require.NoError(t, bt.Add(&page.Object{Key: intKey(n), Value: []byte("v"), Tid: 1}))
	}

	got := drain(t, bt.NewRangeIterator(intKey(5), intKey(10)))
	require.Len(t, got, 5)
	assert.Equal(t, intKey(5), got[0].Key)
	assert.Equal(t, intKey(9), got[len(got)-1].Key)
}

func TestBTree_AddThirdVersionFails(t *testing.T) {
	p := pager.NewMemPager(page.DefaultSize)
	bt := New(p)

	key := intKey(1)
	require.NoError(t, bt.Add(&page.Object{Key: key, Value: []byte("a"), Tid: 1}))
	require.NoError(t, bt.Add(&page.Object{Key: key, Value: []byte("b"), Tid: 2}))

	err := bt.Add(&page.Object{Key: key, Value: []byte("c"), Tid: 3})
	assert.ErrorIs(t, err, page.ErrSerializationFailure)
}

func TestBTree_ExpireStampsXid(t *testing.T) {
	p := pager.NewMemPager(page.DefaultSize)
	bt := New(p)

	key := intKey(1)
	require.NoError(t, bt.Add(&page.Object{Key: key, Value: []byte("a"), Tid: 1}))

	modified, err := bt.Expire(key, 1, 5)
	require.NoError(t, err)
	assert.True(t, modified)

	got := drain(t, bt.NewRangeIterator(nil, nil))
	require.Len(t, got, 1)
	assert.Equal(t, uint32(5), got[0].Xid)
}

func TestBTree_UpdateCollapsesTwoVersions(t *testing.T) {
	p := pager.NewMemPager(page.DefaultSize)
	bt := New(p)

	key := intKey(1)
	require.NoError(t, bt.Add(&page.Object{Key: key, Value: []byte("a"), Tid: 1}))

	// One live version -> Update expires it and adds the new one.
	require.NoError(t, bt.Update(&page.Object{Key: key, Value: []byte("b"), Tid: 2}, 2))

	got := drain(t, bt.NewRangeIterator(nil, nil))
	require.Len(t, got, 2)
	assert.Equal(t, []byte("a"), got[0].Value)
	assert.Equal(t, uint32(2), got[0].Xid)
	assert.Equal(t, []byte("b"), got[1].Value)
	assert.Equal(t, uint32(0), got[1].Xid)

	// Two versions, one of them created by tid 2: collapse it, replace with tid 2's own new value.
	require.NoError(t, bt.Update(&page.Object{Key: key, Value: []byte("c"), Tid: 2}, 2))

	got = drain(t, bt.NewRangeIterator(nil, nil))
	require.Len(t, got, 2)
	assert.Equal(t, []byte("a"), got[0].Value)
	assert.Equal(t, []byte("c"), got[1].Value)
}

func TestBTree_SplitsAcrossMultiplePages(t *testing.T) {
	pageSize := 256
	p := pager.NewMemPager(pageSize)
	bt := New(p)

	value := make([]byte, 20)
	for n := 0; n < 100; n++ {
		require.NoError(t, bt.Add(&page.Object{Key: intKey(n), Value: value, Tid: 1}))
	}

	assert.Greater(t, p.TotalPages(), 1)

	got := drain(t, bt.NewRangeIterator(nil, nil))
	require.Len(t, got, 100)
	for n := 0; n < 100; n++ {
		assert.Equal(t, intKey(n), got[n].Key)
	}
}

func TestBTree_RemoveEverythingCollapsesToOnePage(t *testing.T) {
	pageSize := 256
	p := pager.NewMemPager(pageSize)
	bt := New(p)

	value := make([]byte, 20)
	const n = 60
	for i := 0; i < n; i++ {
		require.NoError(t, bt.Add(&page.Object{Key: intKey(i), Value: value, Tid: 1}))
	}
	require.Greater(t, p.TotalPages(), 1, "fixture should have forced at least one split")

	for i := 0; i < n; i++ {
		found, err := bt.Remove(intKey(i), 1)
		require.NoError(t, err)
		assert.True(t, found, "key %d should have been found", i)
	}

	assert.Equal(t, 1, p.TotalPages())
	got := drain(t, bt.NewRangeIterator(nil, nil))
	assert.Len(t, got, 0)
}

func TestBTree_RemoveIsIdempotent(t *testing.T) {
	p := pager.NewMemPager(page.DefaultSize)
	bt := New(p)

	key := intKey(1)
	require.NoError(t, bt.Add(&page.Object{Key: key, Value: []byte("a"), Tid: 1}))

	found, err := bt.Remove(key, 1)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = bt.Remove(key, 1)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBTree_InsertAndRemoveInterleavedNoOrphanPages(t *testing.T) {
	pageSize := 256
	p := pager.NewMemPager(pageSize)
	bt := New(p)

	value := make([]byte, 15)
	const n = 80
	for i := 0; i < n; i++ {
		require.NoError(t, bt.Add(&page.Object{Key: intKey(i), Value: value, Tid: 1}))
	}
	for i := 0; i < n; i += 2 {
		found, err := bt.Remove(intKey(i), 1)
		require.NoError(t, err)
		require.True(t, found)
	}

	got := drain(t, bt.NewRangeIterator(nil, nil))
	require.Len(t, got, n/2)
	for i, obj := range got {
		assert.Equal(t, intKey(2*i+1), obj.Key, fmt.Sprintf("index %d", i))
	}
}

// tableRowKey and tablePrefixKey mirror internal/storage/keys.go's row
// key layout (1-byte discriminator, 4-byte big-endian table id, 8-byte
// big-endian row id) and its 5-byte table-prefix scan bound, without
// importing internal/storage: a table's bounded scan searches with a
// key shorter than, but sharing a leading prefix with, its own rows'
// full keys.
func tableRowKey(tableID uint32, rowID uint64) []byte {
	key := make([]byte, 13)
	key[0] = 0x01
	binary.BigEndian.PutUint32(key[1:5], tableID)
	binary.BigEndian.PutUint64(key[5:13], rowID)
	return key
}

func tablePrefixKey(tableID uint32) []byte {
	key := make([]byte, 5)
	key[0] = 0x01
	binary.BigEndian.PutUint32(key[1:5], tableID)
	return key
}

func TestBTree_RangeIteratorFindsTableStartingAFreshLeafAfterSplit(t *testing.T) {
	pageSize := 128
	p := pager.NewMemPager(pageSize)
	bt := New(p)

	const tables = 12
	const rowsPerTable = 3
	value := make([]byte, 8)

	for tableID := uint32(1); tableID <= tables; tableID++ {
		for row := uint64(0); row < rowsPerTable; row++ {
			require.NoError(t, bt.Add(&page.Object{Key: tableRowKey(tableID, row), Value: value, Tid: 1}))
		}
	}
	require.Greater(t, p.TotalPages(), 1, "fixture should have forced at least one split")

	// A table's own bounded scan [tablePrefix, tablePrefixEnd) must
	// find all of its rows regardless of where a split happened to
	// place the leaf that starts with this table's first row: a
	// non-leaf separator equal to that row's full key compares
	// greater than the table's short prefix (sharing its leading
	// bytes), so a floor-based descent alone can land one leaf short
	// of it.
	for tableID := uint32(1); tableID <= tables; tableID++ {
		got := drain(t, bt.NewRangeIterator(tablePrefixKey(tableID), tablePrefixKey(tableID+1)))
		require.Len(t, got, rowsPerTable, "table %d", tableID)
		for row := 0; row < rowsPerTable; row++ {
			assert.Equal(t, tableRowKey(tableID, uint64(row)), got[row].Key, "table %d row %d", tableID, row)
		}
	}
}

func TestBTree_RangeIteratorIsRestartable(t *testing.T) {
	p := pager.NewMemPager(page.DefaultSize)
	bt := New(p)
	for n := 0; n < 10; n++ {
		require.NoError(t, bt.Add(&page.Object{Key: intKey(n), Value: []byte("v"), Tid: 1}))
	}

	first := drain(t, bt.NewRangeIterator(nil, nil))
	second := drain(t, bt.NewRangeIterator(nil, nil))
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Key, second[i].Key)
	}
}
