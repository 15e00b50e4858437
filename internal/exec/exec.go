// Package exec walks a parsed sqlfront.Statement and carries it out
// against a storage.Coordinator: resolving expressions to value.Values,
// applying WHERE filters, and materializing a ResultSet. It holds no
// state of its own beyond the coordinator and the function/virtual
// table registries a host connection populates through RegisterFunction
// and RegisterVirtualTable.
package exec

import (
	"errors"
	"fmt"
	"sort"

	"github.com/coredb/coredb/internal/sqlerr"
	"github.com/coredb/coredb/internal/sqlfront"
	"github.com/coredb/coredb/internal/storage"
	"github.com/coredb/coredb/internal/value"
)

// hasCode reports whether err is a *sqlerr.Error carrying code,
// regardless of its specific message.
func hasCode(err error, code string) bool {
	var e *sqlerr.Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Function is a scalar function a host registers under a name, callable
// from expressions as a bare identifier (the grammar carries no
// parenthesized call syntax, so every registered function is niladic
// from the parser's point of view).
type Function func(args ...value.Value) (value.Value, error)

// ResultSet is the outcome of executing one statement: Columns and Rows
// are populated for a query (SELECT), RowsAffected for a write
// (INSERT/UPDATE/DELETE), and both are zero for DDL and transaction
// control statements.
type ResultSet struct {
	Columns      []string
	Rows         [][]value.Value
	RowsAffected int64
	// LastInsertID is the row id WriteRow assigned, populated only by
	// an INSERT (zero otherwise).
	LastInsertID uint64
}

// Executor runs statements against a single coordinator. It is not
// safe for concurrent use by multiple goroutines, matching the
// coordinator it wraps.
type Executor struct {
	coord         *storage.Coordinator
	functions     map[string]Function
	virtualTables map[string]VirtualTableProvider
}

// New returns an Executor bound to coord.
func New(coord *storage.Coordinator) *Executor {
	return &Executor{
		coord:         coord,
		functions:     make(map[string]Function),
		virtualTables: make(map[string]VirtualTableProvider),
	}
}

// RegisterFunction makes fn callable from expressions under name.
// Registering the same name twice replaces the earlier function.
func (e *Executor) RegisterFunction(name string, fn Function) {
	e.functions[value.FoldName(name)] = fn
}

// VirtualTableProvider supplies a virtual table's rows on demand. Scan
// is called fresh for every SELECT against the table; there is no
// caching of a provider's results across statements.
type VirtualTableProvider interface {
	Scan() ([]map[string]value.Value, error)
}

// RegisterVirtualTable catalogs name as a virtual table backed by
// provider. Selecting from a name never registered at all fails with
// undefined_table (42P01); selecting from a registered virtual table
// runs provider.Scan().
func (e *Executor) RegisterVirtualTable(name string, provider VirtualTableProvider) {
	e.virtualTables[value.FoldName(name)] = provider
}

// Execute parses nothing itself: stmt is the already-parsed statement
// from sqlfront.Parse. It dispatches to the statement-specific
// execution path and returns the resulting ResultSet.
func (e *Executor) Execute(stmt sqlfront.Statement) (*ResultSet, error) {
	switch s := stmt.(type) {
	case *sqlfront.CreateTableStatement:
		return e.execCreateTable(s)
	case *sqlfront.DropTableStatement:
		return e.execDropTable(s)
	case *sqlfront.InsertStatement:
		return e.execInsert(s)
	case *sqlfront.UpdateStatement:
		return e.execUpdate(s)
	case *sqlfront.DeleteStatement:
		return e.execDelete(s)
	case *sqlfront.SelectStatement:
		return e.execSelect(s)
	case *sqlfront.BeginStatement:
		return &ResultSet{}, e.coord.Begin()
	case *sqlfront.CommitStatement:
		return &ResultSet{}, e.coord.Commit()
	case *sqlfront.RollbackStatement:
		return &ResultSet{}, e.coord.Rollback()
	default:
		return nil, fmt.Errorf("exec: unrecognized statement %T", stmt)
	}
}

func (e *Executor) execCreateTable(s *sqlfront.CreateTableStatement) (*ResultSet, error) {
	columns := make([]value.Column, len(s.Columns))
	var primaryKey string
	for i, cd := range s.Columns {
		typ, length, err := value.ParseType(cd.Type)
		if err != nil {
			return nil, sqlerr.Wrap(sqlerr.ErrSyntax.Code, fmt.Sprintf("column %q", cd.Name), err)
		}
		// The grammar has no NULL/NOT NULL modifiers: the primary key
		// may be omitted (WriteRow auto-assigns it), and every other
		// column is NOT NULL.
		columns[i] = value.Column{
			Name:     cd.Name,
			Type:     typ,
			Length:   length,
			Nullable: cd.PrimaryKey,
		}
		if cd.PrimaryKey {
			primaryKey = cd.Name
		}
	}

	_, err := e.coord.CreateTable(s.TableName, columns, primaryKey)
	if err != nil {
		if s.IfNotExists && hasCode(err, sqlerr.ErrDuplicateTable.Code) {
			return &ResultSet{}, nil
		}
		return nil, err
	}
	return &ResultSet{}, nil
}

func (e *Executor) execDropTable(s *sqlfront.DropTableStatement) (*ResultSet, error) {
	err := e.coord.DropTable(s.TableName)
	if err != nil {
		if s.IfExists && hasCode(err, sqlerr.ErrUndefinedTable.Code) {
			return &ResultSet{}, nil
		}
		return nil, err
	}
	return &ResultSet{}, nil
}

func (e *Executor) execInsert(s *sqlfront.InsertStatement) (*ResultSet, error) {
	table, ok := e.coord.Table(s.Table)
	if !ok {
		return nil, sqlerr.Newf(sqlerr.ErrUndefinedTable.Code, "table %q does not exist", s.Table)
	}

	ctx := newEvalContext(e.functions, nil, value.Row{})
	values := make(map[string]value.Value, len(s.Values))
	for name, expr := range s.Values {
		v, err := evaluate(expr, ctx)
		if err != nil {
			return nil, err
		}
		values[value.FoldName(name)] = v
	}

	if err := checkNotNull(table, values); err != nil {
		return nil, err
	}

	row, err := e.coord.WriteRow(s.Table, values)
	if err != nil {
		return nil, err
	}
	return &ResultSet{RowsAffected: 1, LastInsertID: row.ID}, nil
}

// checkNotNull enforces each non-nullable column's constraint against
// values: missing (no INSERT/UPDATE clause named it) and explicit NULL
// both count as a violation.
func checkNotNull(table *value.Table, values map[string]value.Value) error {
	for _, col := range table.Columns {
		if col.Nullable {
			continue
		}
		v, ok := values[value.FoldName(col.Name)]
		if !ok || v.IsNull() {
			return sqlerr.Newf(sqlerr.ErrNotNullViolation.Code, "column %q may not be null", col.Name)
		}
	}
	return nil
}

func (e *Executor) execUpdate(s *sqlfront.UpdateStatement) (*ResultSet, error) {
	table, ok := e.coord.Table(s.Table)
	if !ok {
		return nil, sqlerr.Newf(sqlerr.ErrUndefinedTable.Code, "table %q does not exist", s.Table)
	}

	records, err := e.coord.Scan(s.Table)
	if err != nil {
		return nil, err
	}

	var affected int64
	for _, rec := range records {
		match, err := e.matches(s.Filter, table, rec.Row)
		if err != nil {
			return nil, err
		}
		if !match {
			continue
		}

		ctx := newEvalContext(e.functions, table, rec.Row)
		newValues := make(map[string]value.Value, len(s.Set))
		for name, expr := range s.Set {
			v, err := evaluate(expr, ctx)
			if err != nil {
				return nil, err
			}
			newValues[name] = v
		}

		merged := mergedValues(rec.Row, newValues)
		if err := checkNotNull(table, merged); err != nil {
			return nil, err
		}

		if _, err := e.coord.UpdateRow(s.Table, storage.Record{Row: rec.Row, TID: rec.TID}, newValues); err != nil {
			return nil, err
		}
		affected++
	}
	return &ResultSet{RowsAffected: affected}, nil
}

// mergedValues previews the row UpdateRow would store, so checkNotNull
// can run against the post-update shape rather than just the SET
// clause's own columns.
func mergedValues(row value.Row, newValues map[string]value.Value) map[string]value.Value {
	merged := make(map[string]value.Value, len(row.Values)+len(newValues))
	for k, v := range row.Values {
		merged[k] = v
	}
	for k, v := range newValues {
		merged[value.FoldName(k)] = v
	}
	return merged
}

func (e *Executor) execDelete(s *sqlfront.DeleteStatement) (*ResultSet, error) {
	table, ok := e.coord.Table(s.Table)
	if !ok {
		return nil, sqlerr.Newf(sqlerr.ErrUndefinedTable.Code, "table %q does not exist", s.Table)
	}

	records, err := e.coord.Scan(s.Table)
	if err != nil {
		return nil, err
	}

	var affected int64
	for _, rec := range records {
		match, err := e.matches(s.Filter, table, rec.Row)
		if err != nil {
			return nil, err
		}
		if !match {
			continue
		}
		if err := e.coord.DeleteRow(s.Table, storage.Record{Row: rec.Row, TID: rec.TID}); err != nil {
			return nil, err
		}
		affected++
	}
	return &ResultSet{RowsAffected: affected}, nil
}

func (e *Executor) execSelect(s *sqlfront.SelectStatement) (*ResultSet, error) {
	rows, table, schemaColumns, err := e.sourceRows(s.From)
	if err != nil {
		return nil, err
	}

	filtered := make([]value.Row, 0, len(rows))
	for _, row := range rows {
		match, err := e.matches(s.Filter, table, row)
		if err != nil {
			return nil, err
		}
		if match {
			filtered = append(filtered, row)
		}
	}

	if s.Offset != nil {
		if *s.Offset >= len(filtered) {
			filtered = nil
		} else {
			filtered = filtered[*s.Offset:]
		}
	}
	if s.Limit != nil && *s.Limit < len(filtered) {
		filtered = filtered[:*s.Limit]
	}

	columns := s.Columns
	if len(columns) == 1 && columns[0] == "*" {
		columns = schemaColumns
	}

	resultRows := make([][]value.Value, len(filtered))
	for i, row := range filtered {
		out := make([]value.Value, len(columns))
		for j, col := range columns {
			out[j] = columnValue(table, row, col)
		}
		resultRows[i] = out
	}

	return &ResultSet{Columns: columns, Rows: resultRows}, nil
}

// sourceRows materializes a SELECT's FROM clause: a stored table's
// currently-visible rows, or a VALUES derived table's literal rows.
// table is nil for a VALUES source, since those rows carry no schema
// for columnValue's primary-key fallback to consult.
func (e *Executor) sourceRows(src sqlfront.Source) ([]value.Row, *value.Table, []string, error) {
	switch s := src.(type) {
	case *sqlfront.TableSource:
		table, ok := e.coord.Table(s.Name)
		if !ok {
			provider, isVirtual := e.virtualTables[value.FoldName(s.Name)]
			if !isVirtual {
				return nil, nil, nil, sqlerr.Newf(sqlerr.ErrUndefinedTable.Code, "table %q does not exist", s.Name)
			}
			return e.virtualTableRows(s.Name, provider)
		}
		records, err := e.coord.Scan(s.Name)
		if err != nil {
			return nil, nil, nil, err
		}
		rows := make([]value.Row, len(records))
		for i, r := range records {
			rows[i] = r.Row
		}
		names := make([]string, len(table.Columns))
		for i, c := range table.Columns {
			names[i] = c.Name
		}
		return rows, table, names, nil
	case *sqlfront.ValuesSource:
		rows, names, err := e.valuesSourceRows(s)
		return rows, nil, names, err
	default:
		return nil, nil, nil, fmt.Errorf("exec: unrecognized select source %T", src)
	}
}

// virtualTableRows runs provider.Scan() and shapes its row maps the same
// way a stored table's Scan does: a deterministic column order (the
// first row's keys, sorted) and value.Rows a SELECT can filter and
// project uniformly regardless of where they came from. table is
// returned nil, same as a VALUES source: a virtual table's rows carry
// no primary key for columnValue's fallback to consult.
func (e *Executor) virtualTableRows(name string, provider VirtualTableProvider) ([]value.Row, *value.Table, []string, error) {
	raw, err := provider.Scan()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("exec: scanning virtual table %q: %w", name, err)
	}
	if len(raw) == 0 {
		return nil, nil, nil, nil
	}

	names := make([]string, 0, len(raw[0]))
	for k := range raw[0] {
		names = append(names, k)
	}
	sort.Strings(names)

	rows := make([]value.Row, len(raw))
	for i, m := range raw {
		rows[i] = value.NewRow(uint64(i+1), m)
	}
	return rows, nil, names, nil
}

func (e *Executor) valuesSourceRows(s *sqlfront.ValuesSource) ([]value.Row, []string, error) {
	names := s.Columns
	if len(names) == 0 && len(s.Rows) > 0 {
		names = make([]string, len(s.Rows[0]))
		for i := range names {
			names[i] = fmt.Sprintf("column%d", i+1)
		}
	}

	ctx := newEvalContext(e.functions, nil, value.Row{})
	rows := make([]value.Row, 0, len(s.Rows))
	for i, exprRow := range s.Rows {
		if len(exprRow) != len(names) {
			return nil, nil, sqlerr.Newf(sqlerr.ErrSyntax.Code,
				"VALUES row %d has %d columns, expected %d", i+1, len(exprRow), len(names))
		}
		rowValues := make(map[string]value.Value, len(exprRow))
		for j, expr := range exprRow {
			v, err := evaluate(expr, ctx)
			if err != nil {
				return nil, nil, err
			}
			rowValues[names[j]] = v
		}
		rows = append(rows, value.NewRow(uint64(i+1), rowValues))
	}
	return rows, names, nil
}

// matches evaluates filter (nil always matches) against row in the
// context of table, returning false rather than erroring on a NULL
// result, per SQL's three-valued WHERE semantics.
func (e *Executor) matches(filter sqlfront.Expression, table *value.Table, row value.Row) (bool, error) {
	if filter == nil {
		return true, nil
	}
	ctx := newEvalContext(e.functions, table, row)
	v, err := evaluate(filter, ctx)
	if err != nil {
		return false, err
	}
	if v.IsNull() {
		return false, nil
	}
	return v.Bool(), nil
}

// columnValue resolves a projected column's value out of row, falling
// back to the row's stable identifier when the column is table's
// primary key and WriteRow auto-assigned it (so its value was never
// recorded among row.Values and reads back as absent or NULL; see
// DESIGN.md's "Primary-key auto-assignment projection" entry).
func columnValue(table *value.Table, row value.Row, name string) value.Value {
	v, ok := row.Get(name)
	if ok && !v.IsNull() {
		return v
	}
	if table != nil && value.FoldName(table.PrimaryKey) == value.FoldName(name) {
		return value.NewInteger(int64(row.ID))
	}
	if ok {
		return v
	}
	return value.NewNull(value.Null)
}
