package coredb

import (
	"github.com/coredb/coredb/internal/exec"
	"github.com/coredb/coredb/internal/sqlerr"
	"github.com/coredb/coredb/internal/sqlfront"
)

// ResultSet is the outcome of a Query: Columns and Rows for a SELECT,
// empty for a statement with no row output.
type ResultSet = exec.ResultSet

// Result reports the effect of a statement executed with Exec.
type Result struct {
	// LastInsertID is the row id of the row an INSERT wrote: the
	// auto-assigned id, or the primary key value the INSERT supplied.
	// It is zero for any other statement.
	LastInsertID uint64
	// RowsAffected is the number of rows an INSERT, UPDATE, or DELETE
	// touched. It is zero for DDL and transaction-control statements.
	RowsAffected int64
}

// PreparedStatement is a parsed statement ready to run, optionally more
// than once. Preparing the same SQL text twice on a Connection sharing
// a QueryCache returns statements backed by the same parse.
type PreparedStatement struct {
	conn *Connection
	sql  string
	stmt sqlfront.Statement
}

// Prepare parses sql, consulting and populating the Connection's
// QueryCache when one was supplied to Open.
func (c *Connection) Prepare(sql string) (*PreparedStatement, error) {
	stmt, err := c.parse(sql)
	if err != nil {
		return nil, err
	}
	return &PreparedStatement{conn: c, sql: sql, stmt: stmt}, nil
}

// Query runs the prepared statement and returns its result set. The
// grammar carries no placeholder syntax (no `?` or `$1` binding), so
// params must be empty; passing any returns a syntax error (42601)
// rather than silently ignoring them.
func (p *PreparedStatement) Query(params ...Value) (*ResultSet, error) {
	if len(params) > 0 {
		return nil, sqlerr.Newf(sqlerr.ErrSyntax.Code, "prepared statement %q accepts no parameters: the grammar has no placeholder syntax", p.sql)
	}
	return p.conn.executor.Execute(p.stmt)
}

// Query parses and runs sql directly, consulting the Connection's
// QueryCache when one was supplied to Open.
func (c *Connection) Query(sql string) (*ResultSet, error) {
	stmt, err := c.parse(sql)
	if err != nil {
		return nil, err
	}
	return c.executor.Execute(stmt)
}

// Exec runs sql and reports its effect rather than a row set. It is
// the same execution path as Query; callers who expect rows should
// use Query instead.
func (c *Connection) Exec(sql string) (Result, error) {
	stmt, err := c.parse(sql)
	if err != nil {
		return Result{}, err
	}
	rs, err := c.executor.Execute(stmt)
	if err != nil {
		return Result{}, err
	}
	return Result{LastInsertID: rs.LastInsertID, RowsAffected: rs.RowsAffected}, nil
}

// parse consults c's QueryCache, if any, falling back to parsing sql
// directly when no cache was configured on Open.
func (c *Connection) parse(sql string) (sqlfront.Statement, error) {
	if c.cache != nil {
		return c.cache.lookup(sql)
	}
	return sqlfront.Parse(sql)
}
