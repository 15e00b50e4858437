package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/coredb/coredb/internal/page"
	"github.com/coredb/coredb/internal/sqlerr"
	"github.com/coredb/coredb/internal/value"
)

// Record pairs a decoded row with the transaction id that created it,
// the piece of bookkeeping DeleteRow and UpdateRow need to locate the
// exact live version a caller last read (spec.md's "row.tid").
type Record struct {
	Row value.Row
	TID uint32
}

// Table looks up a table's schema by name.
func (c *Coordinator) Table(name string) (*value.Table, bool) {
	t, ok := c.tables[value.FoldName(name)]
	return t, ok
}

// CreateTable registers a new table: fails with duplicate_table
// (42P07) if the folded name is already bound, otherwise allocates a
// table id, persists the schema record, and adds the table to this
// connection's in-memory catalog.
func (c *Coordinator) CreateTable(name string, columns []value.Column, primaryKey string) (*value.Table, error) {
	if err := c.tx.requireActive(); err != nil {
		return nil, err
	}
	folded := value.FoldName(name)
	if _, exists := c.tables[folded]; exists {
		return nil, c.guard(sqlerr.Newf(sqlerr.ErrDuplicateTable.Code, "table %q already exists", name))
	}

	table := &value.Table{
		Name:       name,
		Columns:    columns,
		PrimaryKey: primaryKey,
		NextRowID:  1,
	}

	var recordTID uint32
	err := c.writerTx(func(tid uint32) error {
		table.ID = c.pager.AllocateTableID()
		encoded, err := value.EncodeTable(table)
		if err != nil {
			return fmt.Errorf("storage: encoding table %q: %w", name, err)
		}
		if err := c.tree.Add(&page.Object{Key: catalogKey(folded), Value: encoded, Tid: tid}); err != nil {
			return err
		}
		recordTID = tid
		return nil
	})
	if err != nil {
		return nil, c.guard(err)
	}

	c.tables[folded] = table
	c.tableTIDs[folded] = recordTID
	c.log.WithFields(logrus.Fields{"table": name, "table_id": table.ID}).Info("table created")
	return table, nil
}

// DropTable removes a table's schema record. Per the acknowledged
// limitation named in spec.md §4.4, its data rows are not purged: an
// orphaned table id's rows simply become unreachable, since nothing
// scans a table id absent from the catalog.
func (c *Coordinator) DropTable(name string) error {
	if err := c.tx.requireActive(); err != nil {
		return err
	}
	folded := value.FoldName(name)
	_, exists := c.tables[folded]
	if !exists {
		return c.guard(sqlerr.Newf(sqlerr.ErrUndefinedTable.Code, "table %q does not exist", name))
	}
	recordTID := c.tableTIDs[folded]

	err := c.writerTx(func(tid uint32) error {
		_, err := c.tree.Expire(catalogKey(folded), recordTID, tid)
		return err
	})
	if err != nil {
		return c.guard(err)
	}

	delete(c.tables, folded)
	delete(c.tableTIDs, folded)
	c.log.WithField("table", name).Info("table dropped")
	return nil
}

// WriteRow inserts a new row, auto-assigning the primary key from the
// table's row counter when the caller did not supply one.
func (c *Coordinator) WriteRow(tableName string, values map[string]value.Value) (value.Row, error) {
	if err := c.tx.requireActive(); err != nil {
		return value.Row{}, err
	}
	table, exists := c.tables[value.FoldName(tableName)]
	if !exists {
		return value.Row{}, c.guard(sqlerr.Newf(sqlerr.ErrUndefinedTable.Code, "table %q does not exist", tableName))
	}

	rowID, err := assignRowID(table, values)
	if err != nil {
		return value.Row{}, c.guard(err)
	}
	row := value.NewRow(rowID, values)

	writeErr := c.writerTx(func(tid uint32) error {
		encoded, err := value.EncodeRow(table, row)
		if err != nil {
			return fmt.Errorf("storage: encoding row for %q: %w", tableName, err)
		}
		if err := c.tree.Add(&page.Object{
			Key:   rowKey(table.ID, rowID),
			Value: encoded,
			Tid:   tid,
		}); err != nil {
			return err
		}
		if rowID >= table.NextRowID {
			table.NextRowID = rowID + 1
			if err := c.persistCatalogLocked(table, tid); err != nil {
				return err
			}
			c.tableTIDs[value.FoldName(tableName)] = tid
		}
		return nil
	})
	if writeErr != nil {
		return value.Row{}, c.guard(writeErr)
	}
	return row, nil
}

// assignRowID returns the caller-supplied primary key value, or the
// table's next auto-assigned row id when the primary key column is
// absent from values.
func assignRowID(table *value.Table, values map[string]value.Value) (uint64, error) {
	if !table.HasPrimaryKey() {
		return table.NextRowID, nil
	}
	if v, ok := values[value.FoldName(table.PrimaryKey)]; ok && !v.IsNull() {
		return uint64(v.Float64()), nil
	}
	return table.NextRowID, nil
}

// persistCatalogLocked rewrites table's schema record in place, used
// to advance its NextRowID counter transactionally alongside the row
// insert that consumed it: a rolled-back insert rolls back the
// counter advance too, since both share the same tid.
func (c *Coordinator) persistCatalogLocked(table *value.Table, tid uint32) error {
	encoded, err := value.EncodeTable(table)
	if err != nil {
		return fmt.Errorf("storage: encoding table %q: %w", table.Name, err)
	}
	return c.tree.Update(&page.Object{
		Key:   catalogKey(value.FoldName(table.Name)),
		Value: encoded,
		Tid:   tid,
	}, tid)
}

// DeleteRow expires rec, the version of a row this connection most
// recently read, marking it invisible to readers from this point on.
func (c *Coordinator) DeleteRow(tableName string, rec Record) error {
	if err := c.tx.requireActive(); err != nil {
		return err
	}
	table, exists := c.tables[value.FoldName(tableName)]
	if !exists {
		return c.guard(sqlerr.Newf(sqlerr.ErrUndefinedTable.Code, "table %q does not exist", tableName))
	}
	key := rowKey(table.ID, rec.Row.ID)
	return c.guard(c.writerTx(func(tid uint32) error {
		found, err := c.tree.Expire(key, rec.TID, tid)
		if err != nil {
			return err
		}
		if !found {
			return sqlerr.Newf(sqlerr.ErrSerializationFailure.Code,
				"row %d in table %q was already modified", rec.Row.ID, tableName)
		}
		return nil
	}))
}

// UpdateRow replaces rec's values in place, keeping the same row id.
// The primary key column of newValues, if present, is ignored:
// updating a row's primary key is unsupported (spec.md's Open
// Question (c); see DESIGN.md).
func (c *Coordinator) UpdateRow(tableName string, rec Record, newValues map[string]value.Value) (value.Row, error) {
	if err := c.tx.requireActive(); err != nil {
		return value.Row{}, err
	}
	table, exists := c.tables[value.FoldName(tableName)]
	if !exists {
		return value.Row{}, c.guard(sqlerr.Newf(sqlerr.ErrUndefinedTable.Code, "table %q does not exist", tableName))
	}

	merged := make(map[string]value.Value, len(rec.Row.Values))
	for k, v := range rec.Row.Values {
		merged[k] = v
	}
	for k, v := range newValues {
		if table.HasPrimaryKey() && value.FoldName(k) == value.FoldName(table.PrimaryKey) {
			continue
		}
		merged[value.FoldName(k)] = v
	}
	newRow := value.NewRow(rec.Row.ID, merged)

	err := c.writerTx(func(tid uint32) error {
		encoded, err := value.EncodeRow(table, newRow)
		if err != nil {
			return fmt.Errorf("storage: encoding row for %q: %w", tableName, err)
		}
		return c.tree.Update(&page.Object{
			Key:   rowKey(table.ID, rec.Row.ID),
			Value: encoded,
			Tid:   tid,
		}, tid)
	})
	if err != nil {
		return value.Row{}, c.guard(err)
	}
	return newRow, nil
}

// Scan returns every row of table visible to this connection's
// current snapshot, held under the reader lock for the duration of
// the scan; inside an explicit transaction the writer lock Begin took
// already covers it.
func (c *Coordinator) Scan(tableName string) ([]Record, error) {
	if err := c.tx.requireActive(); err != nil {
		return nil, err
	}
	table, exists := c.tables[value.FoldName(tableName)]
	if !exists {
		return nil, c.guard(sqlerr.Newf(sqlerr.ErrUndefinedTable.Code, "table %q does not exist", tableName))
	}

	if c.tx.status != Active {
		if err := c.lock.RLock(); err != nil {
			return nil, c.guard(fmt.Errorf("storage: acquiring reader lock: %w", err))
		}
		defer c.lock.RUnlock()
	}

	snapshot := c.readerSnapshot()
	it := c.tree.NewRangeIterator(tablePrefix(table.ID), tablePrefixEnd(table.ID))

	var records []Record
	for {
		obj, ok, err := it.Next()
		if err != nil {
			return nil, c.guard(fmt.Errorf("storage: scanning table %q: %w", tableName, err))
		}
		if !ok {
			break
		}
		if !visible(obj, snapshot) {
			continue
		}
		row, err := value.DecodeRow(table, decodeRowID(obj.Key), obj.Value)
		if err != nil {
			return nil, c.guard(fmt.Errorf("storage: decoding row in table %q: %w", tableName, err))
		}
		records = append(records, Record{Row: row, TID: obj.Tid})
	}
	return records, nil
}
