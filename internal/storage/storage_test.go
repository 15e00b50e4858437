package storage

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coredb/coredb/internal/sqlerr"
	"github.com/coredb/coredb/internal/value"
)

func testLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func openMem(t *testing.T) *Coordinator {
	t.Helper()
	c, err := Open(":memory:", 4096, testLog())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func peopleColumns() []value.Column {
	return []value.Column{
		{Name: "ID", Type: value.Integer, Nullable: false},
		{Name: "NAME", Type: value.Varchar, Length: 32, Nullable: true},
	}
}

func TestCoordinator_CreateTable_DuplicateFails(t *testing.T) {
	c := openMem(t)
	_, err := c.CreateTable("people", peopleColumns(), "ID")
	require.NoError(t, err)

	_, err = c.CreateTable("PEOPLE", peopleColumns(), "ID")
	require.Error(t, err)
	assert.True(t, errCode(err, sqlerr.ErrDuplicateTable.Code))
}

func TestCoordinator_WriteAndScanRow_Autocommit(t *testing.T) {
	c := openMem(t)
	_, err := c.CreateTable("people", peopleColumns(), "ID")
	require.NoError(t, err)

	_, err = c.WriteRow("people", map[string]value.Value{
		"ID":   value.NewInteger(1),
		"NAME": value.NewString(value.Varchar, "ada"),
	})
	require.NoError(t, err)

	records, err := c.Scan("people")
	require.NoError(t, err)
	require.Len(t, records, 1)
	name, ok := records[0].Row.Get("NAME")
	require.True(t, ok)
	assert.Equal(t, "ada", name.String())
}

func TestCoordinator_WriteRow_AutoAssignsPrimaryKey(t *testing.T) {
	c := openMem(t)
	_, err := c.CreateTable("people", peopleColumns(), "ID")
	require.NoError(t, err)

	row1, err := c.WriteRow("people", map[string]value.Value{"NAME": value.NewString(value.Varchar, "a")})
	require.NoError(t, err)
	row2, err := c.WriteRow("people", map[string]value.Value{"NAME": value.NewString(value.Varchar, "b")})
	require.NoError(t, err)

	assert.NotEqual(t, row1.ID, row2.ID)
	assert.Equal(t, uint64(2), row2.ID)
}

func TestCoordinator_DeleteRow(t *testing.T) {
	c := openMem(t)
	_, err := c.CreateTable("people", peopleColumns(), "ID")
	require.NoError(t, err)
	_, err = c.WriteRow("people", map[string]value.Value{
		"ID": value.NewInteger(1), "NAME": value.NewString(value.Varchar, "ada"),
	})
	require.NoError(t, err)

	records, err := c.Scan("people")
	require.NoError(t, err)
	require.Len(t, records, 1)

	require.NoError(t, c.DeleteRow("people", records[0]))

	records, err = c.Scan("people")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCoordinator_UpdateRow(t *testing.T) {
	c := openMem(t)
	_, err := c.CreateTable("people", peopleColumns(), "ID")
	require.NoError(t, err)
	_, err = c.WriteRow("people", map[string]value.Value{
		"ID": value.NewInteger(1), "NAME": value.NewString(value.Varchar, "ada"),
	})
	require.NoError(t, err)

	records, err := c.Scan("people")
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = c.UpdateRow("people", records[0], map[string]value.Value{
		"NAME": value.NewString(value.Varchar, "grace"),
	})
	require.NoError(t, err)

	records, err = c.Scan("people")
	require.NoError(t, err)
	require.Len(t, records, 1)
	name, _ := records[0].Row.Get("NAME")
	assert.Equal(t, "grace", name.String())
}

func TestCoordinator_ExplicitTransaction_CommitPersists(t *testing.T) {
	c := openMem(t)
	_, err := c.CreateTable("people", peopleColumns(), "ID")
	require.NoError(t, err)

	require.NoError(t, c.Begin())
	_, err = c.WriteRow("people", map[string]value.Value{
		"ID": value.NewInteger(1), "NAME": value.NewString(value.Varchar, "ada"),
	})
	require.NoError(t, err)
	require.NoError(t, c.Commit())

	records, err := c.Scan("people")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCoordinator_ExplicitTransaction_RollbackUndoesInsert(t *testing.T) {
	c := openMem(t)
	_, err := c.CreateTable("people", peopleColumns(), "ID")
	require.NoError(t, err)

	require.NoError(t, c.Begin())
	_, err = c.WriteRow("people", map[string]value.Value{
		"ID": value.NewInteger(1), "NAME": value.NewString(value.Varchar, "ada"),
	})
	require.NoError(t, err)
	require.NoError(t, c.Rollback())

	records, err := c.Scan("people")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCoordinator_TransactionStateMachine(t *testing.T) {
	c := openMem(t)
	assert.Equal(t, NotActive, c.Status())

	err := c.Commit()
	require.Error(t, err)
	assert.True(t, errCode(err, sqlerr.ErrInvalidTransactionTermination.Code))

	require.NoError(t, c.Begin())
	assert.Equal(t, Active, c.Status())

	err = c.Begin()
	require.Error(t, err)
	assert.True(t, errCode(err, sqlerr.ErrActiveTransaction.Code))

	require.NoError(t, c.Rollback())
	assert.Equal(t, NotActive, c.Status())
}

func TestCoordinator_AbortedTransactionRejectsStatementsExceptRollback(t *testing.T) {
	c := openMem(t)
	_, err := c.CreateTable("people", peopleColumns(), "ID")
	require.NoError(t, err)

	require.NoError(t, c.Begin())
	_, err = c.WriteRow("missing_table", map[string]value.Value{"ID": value.NewInteger(1)})
	require.Error(t, err)
	assert.Equal(t, Aborted, c.Status())

	_, err = c.Scan("people")
	require.Error(t, err)
	assert.True(t, errCode(err, sqlerr.ErrInFailedTransaction.Code))

	require.NoError(t, c.Rollback())
	assert.Equal(t, NotActive, c.Status())
}

func TestCoordinator_DeleteRow_IsIdempotentAgainstSameReadRecord(t *testing.T) {
	c := openMem(t)
	_, err := c.CreateTable("people", peopleColumns(), "ID")
	require.NoError(t, err)
	_, err = c.WriteRow("people", map[string]value.Value{
		"ID": value.NewInteger(1), "NAME": value.NewString(value.Varchar, "ada"),
	})
	require.NoError(t, err)

	records, err := c.Scan("people")
	require.NoError(t, err)
	require.Len(t, records, 1)
	stale := records[0]

	require.NoError(t, c.Begin())
	require.NoError(t, c.DeleteRow("people", stale))
	// Page.Expire matches by (key, tid) regardless of current xid, so
	// within one transaction, before commit purges the expired version,
	// repeating a delete against the same already-read version is a
	// harmless no-op rather than an error.
	require.NoError(t, c.DeleteRow("people", stale))
	require.NoError(t, c.Commit())

	records, err = c.Scan("people")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCoordinator_DeleteRow_UnknownRowFails(t *testing.T) {
	c := openMem(t)
	_, err := c.CreateTable("people", peopleColumns(), "ID")
	require.NoError(t, err)

	err = c.DeleteRow("people", Record{Row: value.NewRow(99, nil), TID: 1})
	require.Error(t, err)
}

func TestCoordinator_DropTable_OrphansRows(t *testing.T) {
	c := openMem(t)
	_, err := c.CreateTable("people", peopleColumns(), "ID")
	require.NoError(t, err)
	_, err = c.WriteRow("people", map[string]value.Value{
		"ID": value.NewInteger(1), "NAME": value.NewString(value.Varchar, "ada"),
	})
	require.NoError(t, err)

	require.NoError(t, c.DropTable("people"))
	_, exists := c.Table("people")
	assert.False(t, exists)

	_, err = c.Scan("people")
	require.Error(t, err)
	assert.True(t, errCode(err, sqlerr.ErrUndefinedTable.Code))
}

func errCode(err error, code string) bool {
	se, ok := err.(*sqlerr.Error)
	if !ok {
		return false
	}
	return se.Code == code
}
