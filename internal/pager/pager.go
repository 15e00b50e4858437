package pager

import (
	"github.com/coredb/coredb/internal/page"
)

// Pager abstracts page-addressed I/O over either a backing file or an
// in-memory array of pages. Pages are fixed-size and numbered from
// zero; a reserved file Header precedes them.
type Pager interface {
	// PageSize returns the configured page size in bytes.
	PageSize() int

	// TotalPages returns the number of pages currently allocated.
	TotalPages() int

	// FetchPage reads and parses the page at the given number. The
	// returned page is a private copy; mutating it does not affect
	// the pager until StorePage is called.
	FetchPage(n int) (*page.Page, error)

	// StorePage writes p back as page number n.
	StorePage(n int, p *page.Page) error

	// AppendPage allocates a new page number, stores p there, and
	// returns the assigned page number.
	AppendPage(p *page.Page) (int, error)

	// TruncateLastPage discards the highest-numbered page, shrinking
	// TotalPages by one. Used when a page becomes empty and is
	// reclaimed by swapping it with the last page.
	TruncateLastPage() error

	// TruncateAll discards every page, returning the pager to its
	// freshly-created state.
	TruncateAll() error

	// RootPage returns the tree's current root page number.
	RootPage() int

	// SetRootPage records the tree's root page number.
	SetRootPage(n int) error

	// AllocateTxID returns the next transaction identifier and
	// increments the counter. The caller (the transaction
	// coordinator) is responsible for serializing calls under the
	// exclusive write lock.
	AllocateTxID() uint32

	// PeekTxID returns the next transaction identifier without
	// consuming it, used by autocommit readers to establish a
	// snapshot non-destructively.
	PeekTxID() uint32

	// AllocateTableID returns the next table identifier and
	// increments the counter.
	AllocateTableID() uint32

	// Flush persists any buffered writes. The file pager performs a
	// single buffered write per StorePage and has no durability
	// contract beyond that; Flush exists so callers have a single
	// place to hook in fsync/WAL without changing the interface.
	Flush() error

	// Close releases any resources (file handles) held by the pager.
	Close() error
}
