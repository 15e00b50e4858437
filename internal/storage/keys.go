package storage

import "encoding/binary"

// Every key in the tree begins with a 1-byte discriminator: 0x00 for
// the schema catalog, 0x01 for table row data. A row key is then the
// table's 4-byte big-endian id followed by the row's 8-byte big-endian
// id, so all rows of a table sort contiguously and a table's rows sort
// by row id within that range.
const (
	catalogDiscriminator byte = 0x00
	rowDiscriminator     byte = 0x01
)

// catalogTableID is the fixed (non-allocated) table id the schema
// catalog itself is stored under.
const catalogTableID uint32 = 0

// catalogKey builds the key a table's schema record is stored under,
// keyed by its folded-uppercase name so lookups are case-insensitive.
func catalogKey(foldedName string) []byte {
	key := make([]byte, 5+len(foldedName))
	key[0] = catalogDiscriminator
	binary.BigEndian.PutUint32(key[1:5], catalogTableID)
	copy(key[5:], foldedName)
	return key
}

// tablePrefix returns the key prefix shared by every row of the given
// table, used as the lower bound of a full-table range scan.
func tablePrefix(tableID uint32) []byte {
	prefix := make([]byte, 5)
	prefix[0] = rowDiscriminator
	binary.BigEndian.PutUint32(prefix[1:5], tableID)
	return prefix
}

// tablePrefixEnd returns the exclusive upper bound of tableID's row
// range: the same prefix with the table id incremented by one, since
// row ids never overflow into the next table's discriminator byte.
func tablePrefixEnd(tableID uint32) []byte {
	prefix := make([]byte, 5)
	prefix[0] = rowDiscriminator
	binary.BigEndian.PutUint32(prefix[1:5], tableID+1)
	return prefix
}

// rowKey builds the key a single row is stored under.
func rowKey(tableID uint32, rowID uint64) []byte {
	key := make([]byte, 13)
	key[0] = rowDiscriminator
	binary.BigEndian.PutUint32(key[1:5], tableID)
	binary.BigEndian.PutUint64(key[5:13], rowID)
	return key
}

// decodeRowID extracts the row id from a key built by rowKey.
func decodeRowID(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[5:13])
}

// catalogScanStart and catalogScanEnd bound a full scan of the schema
// catalog, used to rebuild the in-memory table map when a Coordinator
// opens an existing file.
func catalogScanStart() []byte {
	return []byte{catalogDiscriminator, 0, 0, 0, 0}
}

func catalogScanEnd() []byte {
	return []byte{rowDiscriminator}
}
