package coredb

import (
	"fmt"

	"github.com/coredb/coredb/internal/sqlfront"
)

// VirtualTableProvider supplies a virtual table's rows on demand. Scan
// runs fresh for every SELECT against the table it backs.
type VirtualTableProvider interface {
	Scan() ([]map[string]Value, error)
}

// RegisterVirtualTable catalogs the table named in createSQL (a CREATE
// TABLE statement, parsed with the same grammar as any other DDL) as
// backed by provider rather than by the storage core. The columns
// named in createSQL are accepted but not enforced against provider's
// output: Scan's map keys are the authoritative column list, the same
// way a stored table's are authoritative for its own rows.
func (c *Connection) RegisterVirtualTable(createSQL string, provider VirtualTableProvider) error {
	stmt, err := sqlfront.Parse(createSQL)
	if err != nil {
		return err
	}
	ct, ok := stmt.(*sqlfront.CreateTableStatement)
	if !ok {
		return fmt.Errorf("coredb: RegisterVirtualTable: %q is not a CREATE TABLE statement", createSQL)
	}
	c.executor.RegisterVirtualTable(ct.TableName, provider)
	return nil
}
