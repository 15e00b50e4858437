package pager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coredb/coredb/internal/page"
)

func TestMemPager_AppendFetchStore(t *testing.T) {
	p := NewMemPager(page.DefaultSize)

	leaf := page.New(page.Leaf, page.DefaultSize)
	require.NoError(t, leaf.Add(&page.Object{Key: []byte{1}, Value: []byte("a"), Tid: 1}))

	n, err := p.AppendPage(leaf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, p.TotalPages())

	fetched, err := p.FetchPage(n)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.Count())

	require.NoError(t, p.SetRootPage(n))
	assert.Equal(t, n, p.RootPage())
}

func TestMemPager_TxIDAllocation(t *testing.T) {
	p := NewMemPager(page.DefaultSize)
	assert.Equal(t, uint32(1), p.PeekTxID())
	assert.Equal(t, uint32(1), p.AllocateTxID())
	assert.Equal(t, uint32(2), p.AllocateTxID())
	assert.Equal(t, uint32(3), p.PeekTxID())
}

func TestMemPager_TruncateLastPage(t *testing.T) {
	p := NewMemPager(page.DefaultSize)
	_, _ = p.AppendPage(page.New(page.Leaf, page.DefaultSize))
	_, _ = p.AppendPage(page.New(page.Leaf, page.DefaultSize))
	require.NoError(t, p.TruncateLastPage())
	assert.Equal(t, 1, p.TotalPages())
}

func TestFilePager_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	p, err := OpenFile(path, page.DefaultSize)
	require.NoError(t, err)

	leaf := page.New(page.Leaf, page.DefaultSize)
	require.NoError(t, leaf.Add(&page.Object{Key: []byte{1}, Value: []byte("hello"), Tid: 1}))
	n, err := p.AppendPage(leaf)
	require.NoError(t, err)
	require.NoError(t, p.SetRootPage(n))
	p.AllocateTxID()
	require.NoError(t, p.Flush())
	require.NoError(t, p.Close())

	reopened, err := OpenFile(path, 0)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, page.DefaultSize, reopened.PageSize())
	assert.Equal(t, 1, reopened.TotalPages())
	assert.Equal(t, n, reopened.RootPage())

	fetched, err := reopened.FetchPage(n)
	require.NoError(t, err)
	require.Equal(t, 1, fetched.Count())
	assert.Equal(t, []byte("hello"), fetched.Objects()[0].Value)
}

func TestFilePager_RejectsUnrecognizedSignature(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.db")

	require.NoError(t, writeGarbageFile(path))

	_, err := OpenFile(path, 0)
	assert.Error(t, err)
}

func writeGarbageFile(path string) error {
	return os.WriteFile(path, make([]byte, HeaderSize+page.DefaultSize), 0644)
}
