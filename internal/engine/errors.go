package engine

import "errors"

// Sentinel errors covering the remaining kinds of spec §7's taxonomy
// that no lower package already defines: lexer.SyntaxError,
// eval.TypeError, and constraints.ConstraintViolation are returned
// as-is (wrapped with %w where the call site adds context) rather than
// re-declared here.
var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("duplicate name")
	ErrCascadeCycle  = errors.New("cascade cycle")
	ErrIO            = errors.New("io error")
	ErrCorruption    = errors.New("corruption")
	ErrOutOfSpace    = errors.New("out of space")
)
