package sqlfront

import "fmt"

// Node is any piece of parsed syntax.
type Node interface {
	Kind() string
}

// Statement is a top-level SQL statement.
type Statement interface {
	Node
	iStatement()
}

// Expression evaluates to a value within the context of a row.
type Expression interface {
	Node
	iExpression()
}

// ColumnDefinition describes one column in a CREATE TABLE statement.
type ColumnDefinition struct {
	Name       string
	Type       string
	PrimaryKey bool
}

// CreateTableStatement represents CREATE TABLE [IF NOT EXISTS] name (...).
type CreateTableStatement struct {
	TableName   string
	IfNotExists bool
	Columns     []ColumnDefinition
}

// DropTableStatement represents DROP TABLE [IF EXISTS] name.
type DropTableStatement struct {
	TableName string
	IfExists  bool
}

// InsertStatement represents INSERT INTO name (cols) VALUES (exprs).
type InsertStatement struct {
	Table  string
	Values map[string]Expression
}

// UpdateStatement represents UPDATE name SET col = expr, ... [WHERE ...].
type UpdateStatement struct {
	Table  string
	Set    map[string]Expression
	Filter Expression
}

// DeleteStatement represents DELETE FROM name [WHERE ...].
type DeleteStatement struct {
	Table  string
	Filter Expression
}

// TableSource is a FROM clause naming a table, with an optional alias.
type TableSource struct {
	Name  string
	Alias string
}

// ValuesSource is a VALUES (...) row constructor used as a derived
// table: SELECT * FROM (VALUES (1,'a'), (2,'b')) AS t(id, name).
type ValuesSource struct {
	Rows    [][]Expression
	Alias   string
	Columns []string
}

func (*TableSource) isSource()  {}
func (*ValuesSource) isSource() {}

// Source is whatever a SELECT statement's FROM clause names.
type Source interface {
	isSource()
}

// SelectStatement represents SELECT cols FROM source [WHERE ...]
// [OFFSET n] [FETCH FIRST n ROWS ONLY].
type SelectStatement struct {
	Columns []string
	From    Source
	Filter  Expression
	Offset  *int
	Limit   *int
}

// BeginStatement represents BEGIN or START TRANSACTION.
type BeginStatement struct{}

// CommitStatement represents COMMIT.
type CommitStatement struct{}

// RollbackStatement represents ROLLBACK.
type RollbackStatement struct{}

func (*CreateTableStatement) Kind() string { return "create-table-statement" }
func (*DropTableStatement) Kind() string   { return "drop-table-statement" }
func (*InsertStatement) Kind() string      { return "insert-statement" }
func (*UpdateStatement) Kind() string      { return "update-statement" }
func (*DeleteStatement) Kind() string      { return "delete-statement" }
func (*SelectStatement) Kind() string      { return "select-statement" }
func (*BeginStatement) Kind() string       { return "begin-statement" }
func (*CommitStatement) Kind() string      { return "commit-statement" }
func (*RollbackStatement) Kind() string    { return "rollback-statement" }

func (*CreateTableStatement) iStatement() {}
func (*DropTableStatement) iStatement()   {}
func (*InsertStatement) iStatement()      {}
func (*UpdateStatement) iStatement()      {}
func (*DeleteStatement) iStatement()      {}
func (*SelectStatement) iStatement()      {}
func (*BeginStatement) iStatement()       {}
func (*CommitStatement) iStatement()      {}
func (*RollbackStatement) iStatement()    {}

// BinaryOperation is a two-operand expression: arithmetic (+ - * /),
// comparison (= < > <= >= !=), or logical (AND OR).
type BinaryOperation struct {
	Left     Expression
	Right    Expression
	Operator string
}

// Ident is a reference to a column name.
type Ident struct {
	Value string
}

// BasicLiteral is a string, number, boolean, or NULL literal.
type BasicLiteral struct {
	Value     string
	TokenType Token
}

// Exported aliases for the literal token kinds a BasicLiteral carries,
// so callers outside this package can branch on TokenType without
// reaching into the lexer's unexported token set.
const (
	TokenString  = tokString
	TokenNumber  = tokNumber
	TokenBoolean = tokBoolean
	TokenNull    = tokNull
)

func (*BinaryOperation) Kind() string { return "binary-operation" }
func (*Ident) Kind() string           { return "ident" }
func (*BasicLiteral) Kind() string    { return "basic-literal" }

func (*BinaryOperation) iExpression() {}
func (*Ident) iExpression()           {}
func (*BasicLiteral) iExpression()    {}

func (s *SelectStatement) String() string {
	return fmt.Sprintf("SELECT %v FROM %v WHERE %v", s.Columns, s.From, s.Filter)
}

func (o *BinaryOperation) String() string {
	return fmt.Sprintf("(%s %s %s)", o.Left, o.Operator, o.Right)
}
