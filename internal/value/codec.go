package value

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeRow serializes a row's values (in the table's column order)
// into the byte form stored as a PageObject's value. The row id is
// not included; it lives in the B-tree key.
//
// Layout, per column in order: [1 byte tag][payload]. Tag 0 is NULL
// (no payload). Tag 1 is numeric (8-byte big-endian float64 bit
// pattern). Tag 2 is a string (varint length, then raw bytes).
func EncodeRow(t *Table, row Row) ([]byte, error) {
	var buf bytes.Buffer
	for _, col := range t.Columns {
		v, ok := row.Get(col.Name)
		if !ok || v.IsNull() {
			buf.WriteByte(0)
			continue
		}
		switch col.Type {
		case Character, Varchar:
			buf.WriteByte(2)
			if err := writeVarint(&buf, uint64(len(v.str))); err != nil {
				return nil, err
			}
			buf.Write(v.str)
		default:
			buf.WriteByte(1)
			var numBuf [8]byte
			binary.BigEndian.PutUint64(numBuf[:], math.Float64bits(v.num))
			buf.Write(numBuf[:])
		}
	}
	return buf.Bytes(), nil
}

// DecodeRow parses the byte form written by EncodeRow back into a Row
// under the given table's schema and row id.
func DecodeRow(t *Table, id uint64, data []byte) (Row, error) {
	r := bytes.NewReader(data)
	values := make(map[string]Value, len(t.Columns))

	for _, col := range t.Columns {
		tag, err := r.ReadByte()
		if err != nil {
			return Row{}, fmt.Errorf("value: decoding column %s: %w", col.Name, err)
		}
		switch tag {
		case 0:
			values[FoldName(col.Name)] = NewNull(col.Type)
		case 1:
			var numBuf [8]byte
			if _, err := r.Read(numBuf[:]); err != nil {
				return Row{}, fmt.Errorf("value: decoding column %s: %w", col.Name, err)
			}
			values[FoldName(col.Name)] = Value{Type: col.Type, num: math.Float64frombits(binary.BigEndian.Uint64(numBuf[:]))}
		case 2:
			n, err := readVarint(r)
			if err != nil {
				return Row{}, fmt.Errorf("value: decoding column %s length: %w", col.Name, err)
			}
			str := make([]byte, n)
			if _, err := r.Read(str); err != nil {
				return Row{}, fmt.Errorf("value: decoding column %s: %w", col.Name, err)
			}
			values[FoldName(col.Name)] = Value{Type: col.Type, str: str}
		default:
			return Row{}, fmt.Errorf("value: unrecognized column tag %d for %s", tag, col.Name)
		}
	}

	return Row{ID: id, Values: values}, nil
}
