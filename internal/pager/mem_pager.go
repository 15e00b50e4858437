package pager

import (
	"fmt"

	"github.com/coredb/coredb/internal/page"
)

// memPager keeps a dense, ordered collection of pages indexed by
// 0-based page number in memory. Operations are O(1) and never fail
// except for out-of-range page numbers and truncating an empty pager.
type memPager struct {
	pageSize int
	header   Header
	pages    []*page.Page
}

// NewMemPager creates a Pager backed entirely by memory, used for
// ":memory:" databases. pageSize is configurable only for this pager.
func NewMemPager(pageSize int) Pager {
	if pageSize <= 0 {
		pageSize = page.DefaultSize
	}
	return &memPager{
		pageSize: pageSize,
		header:   NewHeader(pageSize),
	}
}

func (m *memPager) PageSize() int   { return m.pageSize }
func (m *memPager) TotalPages() int { return len(m.pages) }
func (m *memPager) RootPage() int   { return int(m.header.RootPage) }
func (m *memPager) Flush() error    { return nil }
func (m *memPager) Close() error    { return nil }

func (m *memPager) SetRootPage(n int) error {
	m.header.RootPage = uint32(n)
	return nil
}

func (m *memPager) AllocateTxID() uint32 {
	id := m.header.NextTxID
	m.header.NextTxID++
	return id
}

func (m *memPager) PeekTxID() uint32 { return m.header.NextTxID }

func (m *memPager) AllocateTableID() uint32 {
	id := m.header.NextTableID
	m.header.NextTableID++
	return id
}

func (m *memPager) FetchPage(n int) (*page.Page, error) {
	if n < 0 || n >= len(m.pages) {
		return nil, fmt.Errorf("pager: page %d out of bounds (have %d)", n, len(m.pages))
	}
	return m.pages[n].Clone(), nil
}

func (m *memPager) StorePage(n int, p *page.Page) error {
	if n < 0 || n >= len(m.pages) {
		return fmt.Errorf("pager: page %d out of bounds (have %d)", n, len(m.pages))
	}
	m.pages[n] = p
	return nil
}

func (m *memPager) AppendPage(p *page.Page) (int, error) {
	n := len(m.pages)
	m.pages = append(m.pages, p)
	return n, nil
}

func (m *memPager) TruncateLastPage() error {
	if len(m.pages) == 0 {
		return fmt.Errorf("pager: no pages to truncate")
	}
	m.pages = m.pages[:len(m.pages)-1]
	return nil
}

func (m *memPager) TruncateAll() error {
	m.pages = nil
	m.header = NewHeader(m.pageSize)
	return nil
}

var _ Pager = (*memPager)(nil)
