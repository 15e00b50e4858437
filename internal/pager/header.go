package pager

import (
	"encoding/binary"
	"fmt"
)

// Signature identifies a coredb file. A database file is only
// openable by an engine that recognizes its signature and page size.
var Signature = [8]byte{'c', 'o', 'r', 'e', 'd', 'b', '0', '1'}

// HeaderSize is the fixed size, in bytes, of the file header occupying
// byte 0 of a coredb file.
const HeaderSize = 32

// Header is the fixed file header: recognition signature, page size,
// current root page number, next transaction identifier, and next
// table identifier.
type Header struct {
	PageSize    uint16
	RootPage    uint32
	NextTxID    uint32
	NextTableID uint32
}

// NewHeader returns the header for a freshly created database.
func NewHeader(pageSize int) Header {
	return Header{
		PageSize:    uint16(pageSize),
		RootPage:    0,
		NextTxID:    1,
		NextTableID: 1,
	}
}

// Bytes serializes the header into a HeaderSize-byte buffer.
func (h Header) Bytes() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], Signature[:])
	binary.BigEndian.PutUint16(buf[8:10], h.PageSize)
	binary.BigEndian.PutUint32(buf[10:14], h.RootPage)
	binary.BigEndian.PutUint32(buf[14:18], h.NextTxID)
	binary.BigEndian.PutUint32(buf[18:22], h.NextTableID)
	return buf
}

// ParseHeader parses a HeaderSize-byte buffer into a Header, verifying
// the recognition signature.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, fmt.Errorf("pager: expected %d header bytes, got %d", HeaderSize, len(buf))
	}
	for i, b := range Signature {
		if buf[i] != b {
			return Header{}, fmt.Errorf("pager: unrecognized file signature")
		}
	}

	return Header{
		PageSize:    binary.BigEndian.Uint16(buf[8:10]),
		RootPage:    binary.BigEndian.Uint32(buf[10:14]),
		NextTxID:    binary.BigEndian.Uint32(buf[14:18]),
		NextTableID: binary.BigEndian.Uint32(buf[18:22]),
	}, nil
}
