package exec

import (
	"fmt"
	"math"
	"strconv"

	"github.com/coredb/coredb/internal/sqlerr"
	"github.com/coredb/coredb/internal/sqlfront"
	"github.com/coredb/coredb/internal/value"
)

// evalContext is the row and schema an expression is evaluated against.
// table is nil when evaluating over a VALUES derived table, whose rows
// carry no schema to consult.
type evalContext struct {
	table     *value.Table
	row       value.Row
	functions map[string]Function
}

func newEvalContext(functions map[string]Function, table *value.Table, row value.Row) *evalContext {
	return &evalContext{table: table, row: row, functions: functions}
}

// evaluate walks expr, resolving Idents against ctx's row and literals
// to their value.Value, mirroring the teacher's Evaluate/
// EvaluationContext split but folding the two into a single recursive
// function since every expression kind here can fail (division by
// zero, unknown column) and wants its error to propagate immediately.
func evaluate(expr sqlfront.Expression, ctx *evalContext) (value.Value, error) {
	switch e := expr.(type) {
	case *sqlfront.BinaryOperation:
		return evaluateBinary(e, ctx)
	case *sqlfront.BasicLiteral:
		return evaluateLiteral(e)
	case *sqlfront.Ident:
		return evaluateIdent(e, ctx)
	default:
		return value.Value{}, fmt.Errorf("exec: unrecognized expression %T", expr)
	}
}

func evaluateLiteral(l *sqlfront.BasicLiteral) (value.Value, error) {
	switch l.TokenType {
	case sqlfront.TokenString:
		return value.NewString(value.Varchar, l.Value), nil
	case sqlfront.TokenNumber:
		f, err := strconv.ParseFloat(l.Value, 64)
		if err != nil {
			return value.Value{}, sqlerr.Wrap(sqlerr.ErrSyntax.Code, fmt.Sprintf("invalid numeric literal %q", l.Value), err)
		}
		if f == math.Trunc(f) {
			return value.NewInteger(int64(f)), nil
		}
		return value.NewFloat(value.DoublePrecision, f), nil
	case sqlfront.TokenBoolean:
		b, _ := strconv.ParseBool(l.Value)
		return value.NewBoolean(b), nil
	case sqlfront.TokenNull:
		return value.NewNull(value.Null), nil
	default:
		return value.Value{}, fmt.Errorf("exec: unrecognized literal token type %v", l.TokenType)
	}
}

// evaluateIdent resolves a bare name first against the row's columns,
// falling back to the primary key (see columnValue) and then to a
// registered niladic function, so a connection that has registered,
// say, a "NOW" function can reference it from a WHERE clause or SET
// expression without any call-syntax in the grammar.
func evaluateIdent(i *sqlfront.Ident, ctx *evalContext) (value.Value, error) {
	v, ok := ctx.row.Get(i.Value)
	if ok && !v.IsNull() {
		return v, nil
	}
	if ctx.table != nil && value.FoldName(ctx.table.PrimaryKey) == value.FoldName(i.Value) {
		return value.NewInteger(int64(ctx.row.ID)), nil
	}
	if ok {
		return v, nil
	}
	if fn, ok := ctx.functions[value.FoldName(i.Value)]; ok {
		return fn()
	}
	return value.Value{}, sqlerr.Newf(sqlerr.ErrUndefinedFunction.Code, "column or function %q not found", i.Value)
}

func evaluateBinary(o *sqlfront.BinaryOperation, ctx *evalContext) (value.Value, error) {
	left, err := evaluate(o.Left, ctx)
	if err != nil {
		return value.Value{}, err
	}
	right, err := evaluate(o.Right, ctx)
	if err != nil {
		return value.Value{}, err
	}

	switch o.Operator {
	case "AND":
		return value.NewBoolean(truthy(left) && truthy(right)), nil
	case "OR":
		return value.NewBoolean(truthy(left) || truthy(right)), nil
	case "=":
		return value.NewBoolean(compareEqual(left, right)), nil
	case "!=":
		return value.NewBoolean(!compareEqual(left, right)), nil
	case "<", ">", "<=", ">=":
		return compareOrdered(o.Operator, left, right)
	case "+", "-", "*", "/":
		return arithmetic(o.Operator, left, right)
	default:
		return value.Value{}, sqlerr.Newf(sqlerr.ErrSyntax.Code, "unrecognized operator %q", o.Operator)
	}
}

func truthy(v value.Value) bool {
	if v.IsNull() {
		return false
	}
	return v.Bool()
}

func isText(t value.Type) bool {
	return t == value.Character || t == value.Varchar
}

func isNumeric(t value.Type) bool {
	switch t {
	case value.Boolean, value.SmallInt, value.Integer, value.BigInt, value.Real, value.DoublePrecision, value.Float:
		return true
	default:
		return false
	}
}

// compareEqual treats any comparison touching NULL as false rather than
// unknown, the same simplification the teacher's evaluateBinaryOperation
// makes by comparing Go interface values directly.
func compareEqual(a, b value.Value) bool {
	if a.IsNull() || b.IsNull() {
		return false
	}
	if isText(a.Type) || isText(b.Type) {
		return a.String() == b.String()
	}
	return a.Float64() == b.Float64()
}

func compareOrdered(op string, a, b value.Value) (value.Value, error) {
	if a.IsNull() || b.IsNull() {
		return value.NewBoolean(false), nil
	}

	var result bool
	if isText(a.Type) || isText(b.Type) {
		as, bs := a.String(), b.String()
		switch op {
		case "<":
			result = as < bs
		case ">":
			result = as > bs
		case "<=":
			result = as <= bs
		case ">=":
			result = as >= bs
		}
		return value.NewBoolean(result), nil
	}

	if !isNumeric(a.Type) || !isNumeric(b.Type) {
		return value.Value{}, sqlerr.Newf(sqlerr.ErrSyntax.Code, "cannot order-compare %s and %s", a.Type, b.Type)
	}
	af, bf := a.Float64(), b.Float64()
	switch op {
	case "<":
		result = af < bf
	case ">":
		result = af > bf
	case "<=":
		result = af <= bf
	case ">=":
		result = af >= bf
	}
	return value.NewBoolean(result), nil
}

func arithmetic(op string, a, b value.Value) (value.Value, error) {
	if a.IsNull() || b.IsNull() {
		return value.NewNull(value.Integer), nil
	}
	if !isNumeric(a.Type) || !isNumeric(b.Type) {
		return value.Value{}, sqlerr.Newf(sqlerr.ErrSyntax.Code, "arithmetic on non-numeric operand")
	}

	af, bf := a.Float64(), b.Float64()
	rt := arithmeticResultType(a.Type, b.Type)
	switch op {
	case "+":
		return value.NewFloat(rt, af+bf), nil
	case "-":
		return value.NewFloat(rt, af-bf), nil
	case "*":
		return value.NewFloat(rt, af*bf), nil
	case "/":
		if bf == 0 {
			return value.Value{}, sqlerr.New(sqlerr.ErrDivisionByZero.Code, "division by zero")
		}
		return value.NewFloat(rt, af/bf), nil
	default:
		return value.Value{}, sqlerr.Newf(sqlerr.ErrSyntax.Code, "unrecognized arithmetic operator %q", op)
	}
}

func arithmeticResultType(a, b value.Type) value.Type {
	if a == value.Integer && b == value.Integer {
		return value.Integer
	}
	return value.DoublePrecision
}
