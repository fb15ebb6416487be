package heap

import (
	"fmt"

	"github.com/jugadbase/jugadb/internal/page"
	"github.com/jugadbase/jugadb/internal/types"
)

// rowAt locates a row with the given RowID inside p by linear scan of
// its record stream. Pages are small (8KiB by default) so a scan costs
// at most a few dozen decodes; there is no in-page slot directory.
func rowAt(p *page.Page, id types.RowID, schema *types.TableSchema) (row *types.Row, offset, length int, err error) {
	off := 0
	for off < len(p.Data) {
		decoded, n, derr := page.DecodeRow(p.Data[off:], schema)
		if derr != nil {
			return nil, 0, 0, fmt.Errorf("heap: scanning page %d at offset %d: %w: %v", p.ID, off, ErrCorruption, derr)
		}
		if decoded.ID == id {
			return decoded, off, n, nil
		}
		off += n
	}
	return nil, 0, 0, fmt.Errorf("heap: %w: %s", ErrNotFound, id)
}

// Get returns the row with the given RowID, or ErrNotFound if it is
// absent or tombstoned (spec §4.3 Get).
func (h *Heap) Get(id types.RowID) (*types.Row, error) {
	p, err := h.GetPage(id.PageID)
	if err != nil {
		return nil, err
	}
	defer h.Unpin(id.PageID)

	h.mu.Lock()
	row, _, _, err := rowAt(p, id, h.schema)
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if row.Tombstone {
		return nil, fmt.Errorf("heap: %w: %s", ErrNotFound, id)
	}
	return row, nil
}

// Delete tombstones the row in place; its bytes are never reclaimed
// (see the FreeSpace note on the Heap type).
func (h *Heap) Delete(id types.RowID) error {
	p, err := h.GetPage(id.PageID)
	if err != nil {
		return err
	}
	defer h.Unpin(id.PageID)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, offset, _, err := rowAt(p, id, h.schema)
	if err != nil {
		return err
	}
	if err := p.MarkTombstoneAt(offset); err != nil {
		return fmt.Errorf("heap: delete %s: %w: %v", id, ErrIO, err)
	}
	return nil
}

// Update rewrites the row with the given RowID. If the new encoding is
// no larger than the stored one it is overwritten in place: the record
// is zero-padded out to the original slot's physical length and its
// length field is rewritten to that physical length (not the shorter
// logical encoded size), so a later Scan/Get advances past the whole
// slot instead of stopping short and tripping over the padding as a
// corrupt zero-length record. Otherwise the old slot is tombstoned and
// the row is re-inserted under a fresh RowID, which Update returns so
// callers (the B-tree index, in particular) can repoint any
// references — this heap never compacts or relocates rows implicitly.
func (h *Heap) Update(id types.RowID, newValues *types.Row) (types.RowID, error) {
	p, err := h.GetPage(id.PageID)
	if err != nil {
		return types.RowID{}, err
	}

	h.mu.Lock()
	_, offset, oldLen, err := rowAt(p, id, h.schema)
	h.mu.Unlock()
	if err != nil {
		h.Unpin(id.PageID)
		return types.RowID{}, err
	}

	updated := newValues.Clone()
	updated.ID = id
	encoded, err := pageEncode(updated)
	if err != nil {
		h.Unpin(id.PageID)
		return types.RowID{}, err
	}

	if len(encoded) <= oldLen {
		padded := make([]byte, oldLen)
		copy(padded, encoded)
		if err := page.SetPhysicalLength(padded, oldLen); err != nil {
			h.Unpin(id.PageID)
			return types.RowID{}, fmt.Errorf("heap: update %s: %w: %v", id, ErrCorruption, err)
		}
		h.mu.Lock()
		err := p.OverwriteAt(offset, padded)
		h.mu.Unlock()
		h.Unpin(id.PageID)
		if err != nil {
			return types.RowID{}, fmt.Errorf("heap: update %s: %w: %v", id, ErrIO, err)
		}
		return id, nil
	}

	h.mu.Lock()
	terr := p.MarkTombstoneAt(offset)
	h.mu.Unlock()
	h.Unpin(id.PageID)
	if terr != nil {
		return types.RowID{}, fmt.Errorf("heap: update %s: %w: %v", id, ErrIO, terr)
	}
	return h.Insert(updated)
}

// RewriteSchema replaces the heap's schema, re-encoding every live row
// under it (spec §9's ALTER TABLE design note: ADD/DROP COLUMN changes
// a row's physical shape, so every row is decoded under the OLD schema
// first, rebuilt by migrate into the new column layout, and only then
// reinserted — never read back with a schema that doesn't match what
// is actually on disk). Because this heap has no indirection between a
// RowID and its physical (page, slot) location, every reinserted row is
// assigned a fresh RowID; RewriteSchema is only safe to call when the
// caller (internal/engine) is prepared to rebuild every index on the
// table from the post-rewrite heap afterward.
func (h *Heap) RewriteSchema(newSchema *types.TableSchema, migrate func(*types.Row) (*types.Row, error)) error {
	h.mu.Lock()
	total := h.fileSize
	oldSchema := h.schema
	h.mu.Unlock()

	var live []*types.Row
	for pid := int64(0); pid < total; pid++ {
		p, err := h.GetPage(uint32(pid))
		if err != nil {
			return err
		}
		h.mu.Lock()
		off := 0
		var pageRows []*types.Row
		for off < len(p.Data) {
			decoded, n, derr := page.DecodeRow(p.Data[off:], oldSchema)
			if derr != nil {
				h.mu.Unlock()
				h.Unpin(uint32(pid))
				return fmt.Errorf("heap: rewrite schema: scanning page %d at offset %d: %w: %v", pid, off, ErrCorruption, derr)
			}
			if !decoded.Tombstone {
				pageRows = append(pageRows, decoded)
			}
			off += n
		}
		h.mu.Unlock()
		h.Unpin(uint32(pid))
		live = append(live, pageRows...)
	}

	rebuilt := make([]*types.Row, 0, len(live))
	for _, old := range live {
		nr, err := migrate(old)
		if err != nil {
			return fmt.Errorf("heap: rewrite schema: migrating row %s: %w", old.ID, err)
		}
		rebuilt = append(rebuilt, nr)
	}

	if err := h.resetStorage(); err != nil {
		return err
	}
	h.mu.Lock()
	h.schema = newSchema
	h.mu.Unlock()

	for _, nr := range rebuilt {
		if _, err := h.Insert(nr); err != nil {
			return fmt.Errorf("heap: rewrite schema: reinserting row: %w", err)
		}
	}
	return nil
}

// resetStorage discards every resident page and truncates rows.db back
// to just its next-row-id header, used by RewriteSchema to rebuild a
// table's rows from scratch under a new schema. The next-row-id
// counter itself is left untouched so RowIDs stay monotonic across the
// rewrite.
func (h *Heap) resetStorage() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pool = nil
	h.pinned = make(map[uint32]int)
	h.lru = nil
	h.fileSize = 0
	if err := h.file.Truncate(headerSize); err != nil {
		return fmt.Errorf("heap: truncate %s: %w: %v", h.path, ErrIO, err)
	}
	return nil
}

// Scan invokes fn for every live (non-tombstoned) row in table order,
// stopping at the first error fn returns.
func (h *Heap) Scan(fn func(*types.Row) error) error {
	h.mu.Lock()
	total := h.fileSize
	h.mu.Unlock()

	for pid := int64(0); pid < total; pid++ {
		p, err := h.GetPage(uint32(pid))
		if err != nil {
			return err
		}

		h.mu.Lock()
		off := 0
		var rows []*types.Row
		for off < len(p.Data) {
			decoded, n, derr := page.DecodeRow(p.Data[off:], h.schema)
			if derr != nil {
				h.mu.Unlock()
				h.Unpin(uint32(pid))
				return fmt.Errorf("heap: scan page %d: %w: %v", pid, ErrCorruption, derr)
			}
			if !decoded.Tombstone {
				rows = append(rows, decoded)
			}
			off += n
		}
		h.mu.Unlock()
		h.Unpin(uint32(pid))

		for _, row := range rows {
			if err := fn(row); err != nil {
				return err
			}
		}
	}
	return nil
}
