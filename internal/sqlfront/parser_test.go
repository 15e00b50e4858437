package sqlfront

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_CreateTable(t *testing.T) {
	stmt, err := Parse("CREATE TABLE people (id INTEGER PRIMARY KEY, name VARCHAR)")
	require.NoError(t, err)
	ct, ok := stmt.(*CreateTableStatement)
	require.True(t, ok)
	assert.Equal(t, "people", ct.TableName)
	require.Len(t, ct.Columns, 2)
	assert.Equal(t, "id", ct.Columns[0].Name)
	assert.True(t, ct.Columns[0].PrimaryKey)
	assert.False(t, ct.Columns[1].PrimaryKey)
}

func TestParse_CreateTable_IfNotExists(t *testing.T) {
	stmt, err := Parse("CREATE TABLE IF NOT EXISTS people (id INTEGER)")
	require.NoError(t, err)
	ct := stmt.(*CreateTableStatement)
	assert.True(t, ct.IfNotExists)
}

func TestParse_DropTable(t *testing.T) {
	stmt, err := Parse("DROP TABLE people")
	require.NoError(t, err)
	dt, ok := stmt.(*DropTableStatement)
	require.True(t, ok)
	assert.Equal(t, "people", dt.TableName)
	assert.False(t, dt.IfExists)
}

func TestParse_DropTable_IfExists(t *testing.T) {
	stmt, err := Parse("DROP TABLE IF EXISTS people")
	require.NoError(t, err)
	dt := stmt.(*DropTableStatement)
	assert.True(t, dt.IfExists)
}

func TestParse_Insert(t *testing.T) {
	stmt, err := Parse("INSERT INTO people (id, name) VALUES (1, 'ada')")
	require.NoError(t, err)
	ins, ok := stmt.(*InsertStatement)
	require.True(t, ok)
	assert.Equal(t, "people", ins.Table)
	require.Contains(t, ins.Values, "id")
	require.Contains(t, ins.Values, "name")

	idLit := ins.Values["id"].(*BasicLiteral)
	assert.Equal(t, "1", idLit.Value)

	nameLit := ins.Values["name"].(*BasicLiteral)
	assert.Equal(t, "ada", nameLit.Value)
}

func TestParse_Insert_ColumnValueMismatchFails(t *testing.T) {
	_, err := Parse("INSERT INTO people (id, name) VALUES (1)")
	require.Error(t, err)
}

func TestParse_Update(t *testing.T) {
	stmt, err := Parse("UPDATE people SET name = 'grace' WHERE id = 1")
	require.NoError(t, err)
	upd, ok := stmt.(*UpdateStatement)
	require.True(t, ok)
	assert.Equal(t, "people", upd.Table)
	require.Contains(t, upd.Set, "name")
	require.NotNil(t, upd.Filter)

	op := upd.Filter.(*BinaryOperation)
	assert.Equal(t, "=", op.Operator)
}

func TestParse_Delete(t *testing.T) {
	stmt, err := Parse("DELETE FROM people WHERE id = 1")
	require.NoError(t, err)
	del, ok := stmt.(*DeleteStatement)
	require.True(t, ok)
	assert.Equal(t, "people", del.Table)
	require.NotNil(t, del.Filter)
}

func TestParse_Delete_NoFilter(t *testing.T) {
	stmt, err := Parse("DELETE FROM people")
	require.NoError(t, err)
	del := stmt.(*DeleteStatement)
	assert.Nil(t, del.Filter)
}

func TestParse_SelectStar(t *testing.T) {
	stmt, err := Parse("SELECT * FROM people")
	require.NoError(t, err)
	sel, ok := stmt.(*SelectStatement)
	require.True(t, ok)
	assert.Equal(t, []string{"*"}, sel.Columns)
	ts, ok := sel.From.(*TableSource)
	require.True(t, ok)
	assert.Equal(t, "people", ts.Name)
}

func TestParse_SelectColumnsWithAliasAndWhere(t *testing.T) {
	stmt, err := Parse("SELECT id, name FROM people p WHERE id = 1 AND name = 'ada'")
	require.NoError(t, err)
	sel := stmt.(*SelectStatement)
	assert.Equal(t, []string{"id", "name"}, sel.Columns)

	ts := sel.From.(*TableSource)
	assert.Equal(t, "people", ts.Name)
	assert.Equal(t, "p", ts.Alias)

	op := sel.Filter.(*BinaryOperation)
	assert.Equal(t, "AND", op.Operator)
}

func TestParse_SelectOffsetFetch(t *testing.T) {
	stmt, err := Parse("SELECT * FROM people OFFSET 5 FETCH FIRST 10 ROWS ONLY")
	require.NoError(t, err)
	sel := stmt.(*SelectStatement)
	require.NotNil(t, sel.Offset)
	require.NotNil(t, sel.Limit)
	assert.Equal(t, 5, *sel.Offset)
	assert.Equal(t, 10, *sel.Limit)
}

func TestParse_SelectValuesSource(t *testing.T) {
	stmt, err := Parse("SELECT * FROM (VALUES (1, 'a'), (2, 'b')) AS t (n, v)")
	require.NoError(t, err)
	sel := stmt.(*SelectStatement)
	vs, ok := sel.From.(*ValuesSource)
	require.True(t, ok)
	assert.Equal(t, "t", vs.Alias)
	assert.Equal(t, []string{"n", "v"}, vs.Columns)
	require.Len(t, vs.Rows, 2)
	assert.Len(t, vs.Rows[0], 2)
}

func TestParse_Transactions(t *testing.T) {
	beginStmt, err := Parse("BEGIN")
	require.NoError(t, err)
	assert.IsType(t, &BeginStatement{}, beginStmt)

	startStmt, err := Parse("START TRANSACTION")
	require.NoError(t, err)
	assert.IsType(t, &BeginStatement{}, startStmt)

	commitStmt, err := Parse("COMMIT")
	require.NoError(t, err)
	assert.IsType(t, &CommitStatement{}, commitStmt)

	rollbackStmt, err := Parse("ROLLBACK")
	require.NoError(t, err)
	assert.IsType(t, &RollbackStatement{}, rollbackStmt)
}

func TestParse_InvalidStatementFails(t *testing.T) {
	_, err := Parse("SELECT FROM WHERE")
	require.Error(t, err)
}

func TestParse_ParenthesizedExpression(t *testing.T) {
	stmt, err := Parse("SELECT * FROM people WHERE (id = 1 OR id = 2) AND name = 'ada'")
	require.NoError(t, err)
	sel := stmt.(*SelectStatement)
	op := sel.Filter.(*BinaryOperation)
	assert.Equal(t, "AND", op.Operator)
	left := op.Left.(*BinaryOperation)
	assert.Equal(t, "OR", left.Operator)
}
