package heap

import (
	"github.com/jugadbase/jugadb/internal/page"
	"github.com/jugadbase/jugadb/internal/types"
)

// defaultEncodeRow is the production row encoder; Insert/Update go
// through the encodeRowFn indirection in heap.go so tests can swap in a
// fixture encoder without touching the page package.
func defaultEncodeRow(row *types.Row) ([]byte, error) {
	return page.EncodeRow(row)
}
