package value

import (
	"bytes"
	"io"
)

// readVarint reads a big-endian-ordered varint (continuation bit set
// on every byte but the last).
func readVarint(r io.ByteReader) (uint64, error) {
	var buf bytes.Buffer
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		buf.WriteByte(b)
		if b&0x80 == 0 {
			break
		}
	}

	raw := buf.Bytes()
	for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
		raw[i], raw[j] = raw[j], raw[i]
	}

	var x uint64
	var shift uint
	for _, b := range raw {
		x |= uint64(b&0x7f) << shift
		shift += 7
	}
	return x, nil
}

// writeVarint writes v as a big-endian-ordered varint.
func writeVarint(w io.ByteWriter, v uint64) error {
	var buf bytes.Buffer
	for {
		buf.WriteByte(byte(v & 0x7f))
		v >>= 7
		if v == 0 {
			break
		}
	}

	raw := buf.Bytes()
	for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
		raw[i], raw[j] = raw[j], raw[i]
	}

	for i, b := range raw {
		if i < len(raw)-1 {
			if err := w.WriteByte(b | 0x80); err != nil {
				return err
			}
		} else {
			if err := w.WriteByte(b & 0x7f); err != nil {
				return err
			}
		}
	}
	return nil
}
