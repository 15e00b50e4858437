package coredb

import "github.com/coredb/coredb/internal/value"

// Value is a tagged scalar, re-exported so callers can build parameter
// and result values without importing internal/value directly.
type Value = value.Value

// Type tags a Value's declared SQL type.
type Type = value.Type

// The declared SQL types a column or literal may carry.
const (
	Null            = value.Null
	Boolean         = value.Boolean
	SmallInt        = value.SmallInt
	Integer         = value.Integer
	BigInt          = value.BigInt
	Real            = value.Real
	DoublePrecision = value.DoublePrecision
	Float           = value.Float
	Character       = value.Character
	Varchar         = value.Varchar
)

// NewNull returns the NULL value under the given declared type.
func NewNull(t Type) Value { return value.NewNull(t) }

// NewBoolean returns a BOOLEAN value.
func NewBoolean(b bool) Value { return value.NewBoolean(b) }

// NewInteger returns an INTEGER value.
func NewInteger(n int64) Value { return value.NewInteger(n) }

// NewFloat returns a value of the given numeric type carrying n.
func NewFloat(t Type, n float64) Value { return value.NewFloat(t, n) }

// NewString returns a value of the given character type carrying s.
func NewString(t Type, s string) Value { return value.NewString(t, s) }
