package coredb

import "github.com/coredb/coredb/internal/exec"

// FunctionPrototype names a scalar function a connection registers.
// The grammar carries no parenthesized call syntax, so every
// registered function is invoked as a bare identifier in an
// expression; Prototype exists as a distinct type so a future grammar
// extension (argument types, arity) has somewhere to grow without
// breaking RegisterFunction's signature.
type FunctionPrototype struct {
	Name string
}

// Function computes a scalar value. args is always empty today; it is
// part of the signature so a future call-syntax extension to the
// grammar does not require changing registered functions' type.
type Function func(args ...Value) (Value, error)

// RegisterFunction makes impl callable from expressions under
// proto.Name for the lifetime of c.
func (c *Connection) RegisterFunction(proto FunctionPrototype, impl Function) error {
	c.executor.RegisterFunction(proto.Name, exec.Function(impl))
	return nil
}
