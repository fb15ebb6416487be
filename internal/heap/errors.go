// Package heap implements the paged row heap and its buffer pool (spec
// §3, §4.3): <db-root>/tables/<table>/rows.db, opened and mutated
// through a small pool of resident pages. Modeled on the teacher's
// internal/storage/ephemeral store (explicit New/Close lifecycle,
// sync.RWMutex guarding a single *os.File) and on
// original_source/src/db/io.c + page.c for the physical layout.
package heap

import "errors"

// Sentinel errors, following the teacher's internal/storage/sqlite
// convention of wrapping with fmt.Errorf("%s: %w", op, Err...) and
// classifying with errors.Is at the call site.
var (
	ErrIO         = errors.New("io error")
	ErrCorruption = errors.New("corruption")
	ErrOutOfSpace = errors.New("out of space")
	ErrNotFound   = errors.New("row not found")
)
