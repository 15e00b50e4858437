package pager

import (
	"fmt"
	"os"

	"github.com/coredb/coredb/internal/page"
)

// filePager is a Pager backed by a single on-disk file. Byte 0 begins
// the fixed Header; pages of PageSize bytes follow contiguously.
//
// Durability is buffered-write only: StorePage issues a single OS
// write per call with no fsync. A crash mid-commit may leave the file
// partially updated; see the engine's durability notes.
type filePager struct {
	file       *os.File
	header     Header
	totalPages int
}

// OpenFile opens (creating if necessary) the file at path as a Pager.
// pageSize is only honored when creating a brand new file; an
// existing file's page size comes from its header.
func OpenFile(path string, pageSize int) (Pager, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("pager: opening %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if info.Size() == 0 {
		if pageSize <= 0 {
			pageSize = page.DefaultSize
		}
		header := NewHeader(pageSize)
		if _, err := f.WriteAt(header.Bytes(), 0); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("pager: writing header: %w", err)
		}
		return &filePager{file: f, header: header, totalPages: 0}, nil
	}

	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("pager: reading header: %w", err)
	}
	header, err := ParseHeader(headerBytes)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	totalPages := int(info.Size()-HeaderSize) / int(header.PageSize)
	return &filePager{file: f, header: header, totalPages: totalPages}, nil
}

func (f *filePager) PageSize() int   { return int(f.header.PageSize) }
func (f *filePager) TotalPages() int { return f.totalPages }
func (f *filePager) RootPage() int   { return int(f.header.RootPage) }

func (f *filePager) SetRootPage(n int) error {
	f.header.RootPage = uint32(n)
	return f.writeHeader()
}

func (f *filePager) AllocateTxID() uint32 {
	id := f.header.NextTxID
	f.header.NextTxID++
	return id
}

func (f *filePager) PeekTxID() uint32 { return f.header.NextTxID }

func (f *filePager) AllocateTableID() uint32 {
	id := f.header.NextTableID
	f.header.NextTableID++
	return id
}

func (f *filePager) offset(n int) int64 {
	return int64(HeaderSize) + int64(n)*int64(f.header.PageSize)
}

func (f *filePager) FetchPage(n int) (*page.Page, error) {
	if n < 0 || n >= f.totalPages {
		return nil, fmt.Errorf("pager: page %d out of bounds (have %d)", n, f.totalPages)
	}

	data := make([]byte, f.header.PageSize)
	if _, err := f.file.ReadAt(data, f.offset(n)); err != nil {
		return nil, fmt.Errorf("pager: reading page %d: %w", n, err)
	}

	return page.FromBytes(int(f.header.PageSize), data)
}

func (f *filePager) StorePage(n int, p *page.Page) error {
	if n < 0 || n >= f.totalPages {
		return fmt.Errorf("pager: page %d out of bounds (have %d)", n, f.totalPages)
	}

	data, err := p.Bytes()
	if err != nil {
		return fmt.Errorf("pager: serializing page %d: %w", n, err)
	}

	if _, err := f.file.WriteAt(data, f.offset(n)); err != nil {
		return fmt.Errorf("pager: writing page %d: %w", n, err)
	}
	return nil
}

func (f *filePager) AppendPage(p *page.Page) (int, error) {
	n := f.totalPages
	data, err := p.Bytes()
	if err != nil {
		return 0, fmt.Errorf("pager: serializing page %d: %w", n, err)
	}

	if _, err := f.file.WriteAt(data, f.offset(n)); err != nil {
		return 0, fmt.Errorf("pager: appending page %d: %w", n, err)
	}
	f.totalPages++
	return n, nil
}

func (f *filePager) TruncateLastPage() error {
	if f.totalPages == 0 {
		return fmt.Errorf("pager: no pages to truncate")
	}
	f.totalPages--
	if err := f.file.Truncate(f.offset(f.totalPages)); err != nil {
		return fmt.Errorf("pager: truncating: %w", err)
	}
	return nil
}

func (f *filePager) TruncateAll() error {
	if err := f.file.Truncate(HeaderSize); err != nil {
		return fmt.Errorf("pager: truncating: %w", err)
	}
	f.totalPages = 0
	f.header.RootPage = 0
	return f.writeHeader()
}

// Flush rewrites the file header (root page number and the
// transaction/table id counters, which AllocateTxID and
// AllocateTableID advance in memory only). Page contents need no
// flushing: StorePage/AppendPage each issue their own write, and
// there is no WAL or fsync contract (see the engine's durability
// notes).
func (f *filePager) Flush() error {
	return f.writeHeader()
}

func (f *filePager) Close() error {
	return f.file.Close()
}

func (f *filePager) writeHeader() error {
	if _, err := f.file.WriteAt(f.header.Bytes(), 0); err != nil {
		return fmt.Errorf("pager: writing header: %w", err)
	}
	return nil
}

var _ Pager = (*filePager)(nil)
