package coredb_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coredb/coredb"
)

func open(t *testing.T) *coredb.Connection {
	t.Helper()
	conn, err := coredb.Open(":memory:", coredb.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestOpen_InMemory(t *testing.T) {
	conn := open(t)
	_, err := conn.Exec("CREATE TABLE widgets (id INTEGER PRIMARY KEY, name VARCHAR(32))")
	require.NoError(t, err)
}

func TestExec_InsertReturnsLastInsertID(t *testing.T) {
	conn := open(t)
	_, err := conn.Exec("CREATE TABLE widgets (id INTEGER PRIMARY KEY, name VARCHAR(32))")
	require.NoError(t, err)

	res, err := conn.Exec("INSERT INTO widgets (name) VALUES ('sprocket')")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.LastInsertID)
	assert.Equal(t, int64(1), res.RowsAffected)
}

func TestQuery_SelectReturnsRows(t *testing.T) {
	conn := open(t)
	_, err := conn.Exec("CREATE TABLE widgets (id INTEGER PRIMARY KEY, name VARCHAR(32))")
	require.NoError(t, err)
	_, err = conn.Exec("INSERT INTO widgets (id, name) VALUES (1, 'sprocket')")
	require.NoError(t, err)

	rs, err := conn.Query("SELECT id, name FROM widgets")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "sprocket", rs.Rows[0][1].String())
}

func TestQuery_UndefinedTableIsEngineError(t *testing.T) {
	conn := open(t)
	_, err := conn.Query("SELECT * FROM ghosts")
	require.Error(t, err)
	assert.True(t, errors.Is(err, coredb.ErrUndefinedTable))
}

func TestPrepare_QueryRunsCachedStatement(t *testing.T) {
	cache := coredb.NewQueryCache()
	conn, err := coredb.Open(":memory:", coredb.Options{QueryCache: cache})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.Exec("CREATE TABLE widgets (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	_, err = conn.Exec("INSERT INTO widgets (id) VALUES (1)")
	require.NoError(t, err)

	stmt, err := conn.Prepare("SELECT id FROM widgets")
	require.NoError(t, err)

	rs, err := stmt.Query()
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
}

func TestPreparedStatement_QueryRejectsParams(t *testing.T) {
	conn := open(t)
	_, err := conn.Exec("CREATE TABLE widgets (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	stmt, err := conn.Prepare("SELECT id FROM widgets")
	require.NoError(t, err)

	_, err = stmt.Query(coredb.NewInteger(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, coredb.ErrSyntax))
}

func TestRegisterFunction_UsableInQuery(t *testing.T) {
	conn := open(t)
	err := conn.RegisterFunction(coredb.FunctionPrototype{Name: "answer"}, func(args ...coredb.Value) (coredb.Value, error) {
		return coredb.NewInteger(42), nil
	})
	require.NoError(t, err)

	_, err = conn.Exec("CREATE TABLE facts (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	_, err = conn.Exec("INSERT INTO facts (id) VALUES (1)")
	require.NoError(t, err)

	rs, err := conn.Query("SELECT id FROM facts WHERE answer = answer")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
}

type widgetCounts struct{}

func (widgetCounts) Scan() ([]map[string]coredb.Value, error) {
	return []map[string]coredb.Value{
		{"NAME": coredb.NewString(coredb.Varchar, "widgets"), "TOTAL": coredb.NewInteger(2)},
	}, nil
}

func TestRegisterVirtualTable_ScannedOnSelect(t *testing.T) {
	conn := open(t)
	err := conn.RegisterVirtualTable("CREATE TABLE widget_counts (name VARCHAR(32), total INTEGER)", widgetCounts{})
	require.NoError(t, err)

	rs, err := conn.Query("SELECT name, total FROM widget_counts")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "widgets", rs.Rows[0][0].String())
	assert.Equal(t, "2", rs.Rows[0][1].String())
}

func TestRegisterVirtualTable_RejectsNonCreateTable(t *testing.T) {
	conn := open(t)
	err := conn.RegisterVirtualTable("SELECT 1", widgetCounts{})
	require.Error(t, err)
}

func TestTransaction_RollbackUndoesWrites(t *testing.T) {
	conn := open(t)
	_, err := conn.Exec("CREATE TABLE widgets (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	_, err = conn.Exec("BEGIN")
	require.NoError(t, err)
	_, err = conn.Exec("INSERT INTO widgets (id) VALUES (1)")
	require.NoError(t, err)
	_, err = conn.Exec("ROLLBACK")
	require.NoError(t, err)

	rs, err := conn.Query("SELECT * FROM widgets")
	require.NoError(t, err)
	assert.Empty(t, rs.Rows)
}
