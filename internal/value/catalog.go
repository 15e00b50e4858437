package value

import (
	"bytes"
	"fmt"
)

// EncodeTable serializes a Table schema descriptor for storage as the
// catalog's PageObject value: table id, name, primary key name, next
// row id, column count, then each column's name/type/length/nullable.
func EncodeTable(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeVarint(&buf, uint64(t.ID)); err != nil {
		return nil, err
	}
	if err := writeString(&buf, t.Name); err != nil {
		return nil, err
	}
	if err := writeString(&buf, t.PrimaryKey); err != nil {
		return nil, err
	}
	if err := writeVarint(&buf, t.NextRowID); err != nil {
		return nil, err
	}
	if err := writeVarint(&buf, uint64(len(t.Columns))); err != nil {
		return nil, err
	}
	for _, c := range t.Columns {
		if err := writeString(&buf, c.Name); err != nil {
			return nil, err
		}
		if err := writeVarint(&buf, uint64(c.Type)); err != nil {
			return nil, err
		}
		if err := writeVarint(&buf, uint64(c.Length)); err != nil {
			return nil, err
		}
		nullable := byte(0)
		if c.Nullable {
			nullable = 1
		}
		buf.WriteByte(nullable)
	}
	return buf.Bytes(), nil
}

// DecodeTable parses the byte form written by EncodeTable.
func DecodeTable(data []byte) (*Table, error) {
	r := bytes.NewReader(data)

	id, err := readVarint(r)
	if err != nil {
		return nil, fmt.Errorf("value: decoding table id: %w", err)
	}
	name, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("value: decoding table name: %w", err)
	}
	pk, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("value: decoding primary key: %w", err)
	}
	nextRowID, err := readVarint(r)
	if err != nil {
		return nil, fmt.Errorf("value: decoding next row id: %w", err)
	}
	colCount, err := readVarint(r)
	if err != nil {
		return nil, fmt.Errorf("value: decoding column count: %w", err)
	}

	columns := make([]Column, 0, colCount)
	for i := uint64(0); i < colCount; i++ {
		cname, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("value: decoding column %d name: %w", i, err)
		}
		ctype, err := readVarint(r)
		if err != nil {
			return nil, fmt.Errorf("value: decoding column %d type: %w", i, err)
		}
		clen, err := readVarint(r)
		if err != nil {
			return nil, fmt.Errorf("value: decoding column %d length: %w", i, err)
		}
		nullable, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("value: decoding column %d nullability: %w", i, err)
		}
		columns = append(columns, Column{
			Name:     cname,
			Type:     Type(ctype),
			Length:   int(clen),
			Nullable: nullable != 0,
		})
	}

	return &Table{ID: uint32(id), Name: name, Columns: columns, PrimaryKey: pk, NextRowID: nextRowID}, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if err := writeVarint(buf, uint64(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readVarint(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(b); err != nil {
			return "", err
		}
	}
	return string(b), nil
}
