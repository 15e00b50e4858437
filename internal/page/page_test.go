package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(n byte) []byte { return []byte{n} }

func TestObject_RoundTrip(t *testing.T) {
	o := &Object{Key: []byte("row-1"), Value: []byte("hello world"), Tid: 7, Xid: 0}

	data, err := o.Serialize()
	require.NoError(t, err)

	parsed, n, err := ParseObject(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, o.Key, parsed.Key)
	assert.Equal(t, o.Value, parsed.Value)
	assert.Equal(t, o.Tid, parsed.Tid)
	assert.Equal(t, o.Xid, parsed.Xid)
}

func TestPage_AddKeepsAscendingOrder(t *testing.T) {
	p := New(Leaf, DefaultSize)

	require.NoError(t, p.Add(&Object{Key: key(3), Value: []byte("c"), Tid: 1}))
	require.NoError(t, p.Add(&Object{Key: key(1), Value: []byte("a"), Tid: 1}))
	require.NoError(t, p.Add(&Object{Key: key(2), Value: []byte("b"), Tid: 1}))

	var keys []byte
	for _, o := range p.Objects() {
		keys = append(keys, o.Key[0])
	}
	assert.Equal(t, []byte{1, 2, 3}, keys)
}

func TestPage_AddThirdVersionFails(t *testing.T) {
	p := New(Leaf, DefaultSize)
	require.NoError(t, p.Add(&Object{Key: key(1), Value: []byte("a"), Tid: 1}))
	require.NoError(t, p.Add(&Object{Key: key(1), Value: []byte("b"), Tid: 2}))

	err := p.Add(&Object{Key: key(1), Value: []byte("c"), Tid: 3})
	assert.ErrorIs(t, err, ErrSerializationFailure)
}

func TestPage_DeleteIsIdempotent(t *testing.T) {
	p := New(Leaf, DefaultSize)
	require.NoError(t, p.Add(&Object{Key: key(1), Value: []byte("a"), Tid: 1}))

	assert.True(t, p.Delete(key(1), 1))
	assert.False(t, p.Delete(key(1), 1))
}

func TestPage_Expire(t *testing.T) {
	p := New(Leaf, DefaultSize)
	require.NoError(t, p.Add(&Object{Key: key(1), Value: []byte("a"), Tid: 1}))

	assert.True(t, p.Expire(key(1), 1, 5))
	assert.Equal(t, uint32(5), p.Objects()[0].Xid)
	assert.False(t, p.Expire(key(1), 99, 5))
}

func TestPage_UpdateVersionCounts(t *testing.T) {
	p := New(Leaf, DefaultSize)

	// zero existing versions
	require.NoError(t, p.Update(nil, &Object{Key: key(1), Value: []byte("v1"), Tid: 1}, 1))
	require.Equal(t, 1, p.Count())

	// one existing version: expire then add
	require.NoError(t, p.Update(nil, &Object{Key: key(1), Value: []byte("v2"), Tid: 2}, 2))
	require.Equal(t, 2, p.Count())
	assert.Equal(t, uint32(2), p.Objects()[0].Xid)

	// two existing versions, one matches tid: collapses to one then adds
	require.NoError(t, p.Update(nil, &Object{Key: key(1), Value: []byte("v3"), Tid: 2}, 2))
	require.Equal(t, 2, p.Count())

	// two existing versions, neither matches tid: conflict
	err := p.Update(nil, &Object{Key: key(1), Value: []byte("v4"), Tid: 99}, 99)
	assert.ErrorIs(t, err, ErrSerializationFailure)
}

func TestPage_BytesRoundTrip(t *testing.T) {
	p := New(Leaf, DefaultSize)
	require.NoError(t, p.Add(&Object{Key: key(1), Value: []byte("a"), Tid: 1}))
	require.NoError(t, p.Add(&Object{Key: key(2), Value: []byte("b"), Tid: 1}))

	data, err := p.Bytes()
	require.NoError(t, err)
	assert.Len(t, data, DefaultSize)

	parsed, err := FromBytes(DefaultSize, data)
	require.NoError(t, err)
	assert.Equal(t, p.Used(), parsed.Used())
	assert.Equal(t, p.Count(), parsed.Count())
	for i, o := range p.Objects() {
		assert.Equal(t, o.Key, parsed.Objects()[i].Key)
		assert.Equal(t, o.Value, parsed.Objects()[i].Value)
	}
}

func TestPage_NonLeafChildPointer(t *testing.T) {
	p := New(NonLeaf, DefaultSize)
	obj := NewChildPointer(key(1), 42)
	require.NoError(t, p.Add(obj))
	assert.Equal(t, 42, p.Objects()[0].ChildPage())
}
