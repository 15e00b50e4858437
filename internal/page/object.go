// Package page implements the byte-layout and record-manipulation
// layer of the storage engine: fixed-size pages holding MVCC-stamped
// PageObject records in ascending key order.
package page

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ObjectHeaderLen is the fixed header preceding every serialized
// PageObject: 4 bytes total length, 4 bytes tid, 4 bytes xid, 2 bytes
// key length.
const ObjectHeaderLen = 14

// MaxKeyLen is the largest key a PageObject may carry (2-byte length prefix).
const MaxKeyLen = 1<<16 - 1

// Object is the unit stored in leaf and non-leaf pages.
//
// For a leaf page, Value is the row payload. For a non-leaf page,
// Value is the 4-byte big-endian page number of the child subtree
// whose smallest key equals Key.
type Object struct {
	Key   []byte
	Value []byte
	Tid   uint32 // creator transaction id
	Xid   uint32 // expirer transaction id; 0 means live
}

// Live reports whether the object has not been expired.
func (o *Object) Live() bool {
	return o.Xid == 0
}

// ChildPage decodes Value as a child page number (non-leaf objects only).
func (o *Object) ChildPage() int {
	return int(binary.BigEndian.Uint32(o.Value))
}

// NewChildPointer builds a non-leaf Object pointing at childPage, keyed
// by the head key of that child's subtree.
func NewChildPointer(key []byte, childPage int) *Object {
	value := make([]byte, 4)
	binary.BigEndian.PutUint32(value, uint32(childPage))
	return &Object{Key: key, Value: value}
}

// Len returns the total serialized length of the object, including
// the 4-byte length prefix.
func (o *Object) Len() int {
	return 4 + ObjectHeaderLen - 4 + len(o.Key) + len(o.Value)
}

// Serialize encodes the object as:
// [4 bytes total_length][4 bytes tid][4 bytes xid][2 bytes key_length][key][value]
// total_length is the length of everything following the length prefix.
func (o *Object) Serialize() ([]byte, error) {
	if len(o.Key) > MaxKeyLen {
		return nil, fmt.Errorf("page: key too long: %d bytes", len(o.Key))
	}

	body := (ObjectHeaderLen - 4) + len(o.Key) + len(o.Value)
	buf := make([]byte, 4+body)
	binary.BigEndian.PutUint32(buf[0:4], uint32(body))
	binary.BigEndian.PutUint32(buf[4:8], o.Tid)
	binary.BigEndian.PutUint32(buf[8:12], o.Xid)
	binary.BigEndian.PutUint16(buf[12:14], uint16(len(o.Key)))
	copy(buf[14:14+len(o.Key)], o.Key)
	copy(buf[14+len(o.Key):], o.Value)
	return buf, nil
}

// ParseObject parses a single serialized PageObject from the front of
// buf. It returns the object, the number of bytes consumed
// (4+total_length), and an error.
func ParseObject(buf []byte) (*Object, int, error) {
	if len(buf) < 4 {
		return nil, 0, errors.New("page: truncated object length")
	}

	total := int(binary.BigEndian.Uint32(buf[0:4]))
	n := 4 + total
	if len(buf) < n {
		return nil, 0, errors.New("page: truncated object body")
	}
	if total < ObjectHeaderLen-4 {
		return nil, 0, errors.New("page: corrupt object: body shorter than header")
	}

	body := buf[4:n]
	tid := binary.BigEndian.Uint32(body[0:4])
	xid := binary.BigEndian.Uint32(body[4:8])
	keyLen := int(binary.BigEndian.Uint16(body[8:10]))
	rest := body[10:]
	if keyLen > len(rest) {
		return nil, 0, errors.New("page: corrupt object: key length exceeds body")
	}

	key := make([]byte, keyLen)
	copy(key, rest[:keyLen])
	value := make([]byte, len(rest)-keyLen)
	copy(value, rest[keyLen:])

	return &Object{Key: key, Value: value, Tid: tid, Xid: xid}, n, nil
}
