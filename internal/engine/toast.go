package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/jugadbase/jugadb/internal/catalog"
	"github.com/jugadbase/jugadb/internal/types"
)

const toastSequenceName = "jb_toast_id_seq"

// toastEligible reports whether col's kind can ever be large enough to
// need TOAST indirection (spec §4.3: VARCHAR/TEXT/JSON/BLOB).
func toastEligible(col types.ColumnDefinition) bool {
	switch col.Kind {
	case types.KindVarchar, types.KindText, types.KindJSON, types.KindBlob:
		return true
	default:
		return false
	}
}

func valuePayloadLen(v types.ColumnValue) int {
	if v.Kind == types.KindBlob {
		return len(v.Blob)
	}
	return len(v.Str)
}

// ensureToastSequence finds (or creates) the sequence backing
// jb_toast.toast_id allocation, run once at Open.
func (db *Database) ensureToastSequence() error {
	schema, h, err := db.cat.GetTableByID(catalog.TableIDSequences)
	if err != nil {
		return err
	}
	nameCol := schema.ColumnIndex("name")
	idCol := schema.ColumnIndex("id")
	found := false
	err = h.Scan(func(row *types.Row) error {
		if !found && row.Values[nameCol].Str == toastSequenceName {
			db.toastSeqID = row.Values[idCol].Int
			found = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	id, err := db.cat.CreateSequence(toastSequenceName, 0, 1, 0, math.MaxInt64, false)
	if err != nil {
		return err
	}
	db.toastSeqID = id
	return nil
}

// toastIfNeeded replaces any oversized value of row with a TOAST
// reference, chunking its payload into jb_toast rows (spec §4.3: "the
// column stores a 32-bit TOAST id and sets the is_toast flag"). Called
// just before a row reaches the heap on INSERT/UPDATE.
func (db *Database) toastIfNeeded(row *types.Row, schema *types.TableSchema) error {
	for i, col := range schema.Columns {
		if row.Nulls[i] || !toastEligible(col) {
			continue
		}
		v := row.Values[i]
		if valuePayloadLen(v) <= db.cfg.ToastThreshold {
			continue
		}
		toastID, err := db.writeToastChunks(v)
		if err != nil {
			return fmt.Errorf("engine: toast column %q: %w", col.Name, err)
		}
		row.Set(i, types.ColumnValue{Kind: col.Kind, IsToast: true, ToastID: toastID})
	}
	return nil
}

// writeToastChunks splits v's payload into jb_toast rows sharing a
// fresh toast_id, returning that id.
func (db *Database) writeToastChunks(v types.ColumnValue) (uint32, error) {
	next, err := db.cat.NextVal(db.toastSeqID)
	if err != nil {
		return 0, err
	}
	toastID := uint32(next)

	var payload []byte
	if v.Kind == types.KindBlob {
		payload = v.Blob
	} else {
		payload = []byte(v.Str)
	}

	schema, h, err := db.cat.GetTableByID(catalog.TableIDToast)
	if err != nil {
		return 0, err
	}
	chunkSize := db.cfg.ToastChunkSize
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	idx := int64(0)
	for off := 0; off < len(payload); off += chunkSize {
		end := off + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		row := types.NewRow(schema)
		row.Set(schema.ColumnIndex("toast_id"), types.ColumnValue{Kind: types.KindUint, Uint: uint64(toastID)})
		row.Set(schema.ColumnIndex("chunk_index"), types.NewInt(idx))
		row.Set(schema.ColumnIndex("chunk_data"), types.ColumnValue{Kind: types.KindBlob, Blob: payload[off:end]})
		if _, err := h.Insert(row); err != nil {
			return 0, err
		}
		idx++
	}
	if len(payload) == 0 {
		row := types.NewRow(schema)
		row.Set(schema.ColumnIndex("toast_id"), types.ColumnValue{Kind: types.KindUint, Uint: uint64(toastID)})
		row.Set(schema.ColumnIndex("chunk_index"), types.NewInt(0))
		row.Set(schema.ColumnIndex("chunk_data"), types.ColumnValue{Kind: types.KindBlob, Blob: nil})
		if _, err := h.Insert(row); err != nil {
			return 0, err
		}
	}
	return toastID, nil
}

// detoastRow reassembles every TOAST-referenced value of row in place
// (spec §4.6: "literals are returned verbatim, TOAST references are
// transparently reassembled"). Called right after a row is read from
// the heap, before it reaches eval/constraints/projection.
func (db *Database) detoastRow(row *types.Row, schema *types.TableSchema) error {
	for i, col := range schema.Columns {
		if row.Nulls[i] || !row.Values[i].IsToast {
			continue
		}
		data, err := db.readToastChunks(row.Values[i].ToastID)
		if err != nil {
			return fmt.Errorf("engine: detoast column %q: %w", col.Name, err)
		}
		if col.Kind == types.KindBlob {
			row.Set(i, types.ColumnValue{Kind: col.Kind, Blob: data})
		} else {
			row.Set(i, types.ColumnValue{Kind: col.Kind, Str: string(data)})
		}
	}
	return nil
}

func (db *Database) readToastChunks(toastID uint32) ([]byte, error) {
	schema, h, err := db.cat.GetTableByID(catalog.TableIDToast)
	if err != nil {
		return nil, err
	}
	tidCol := schema.ColumnIndex("toast_id")
	idxCol := schema.ColumnIndex("chunk_index")
	dataCol := schema.ColumnIndex("chunk_data")

	type chunk struct {
		index int64
		data  []byte
	}
	var chunks []chunk
	err = h.Scan(func(row *types.Row) error {
		if row.Values[tidCol].Uint == uint64(toastID) {
			chunks = append(chunks, chunk{index: row.Values[idxCol].Int, data: row.Values[dataCol].Blob})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].index < chunks[j].index })

	var out []byte
	for _, c := range chunks {
		out = append(out, c.data...)
	}
	return out, nil
}

// removeToastChunks deletes every jb_toast row belonging to toastID,
// run when a row carrying a TOAST reference is deleted or overwritten.
func (db *Database) removeToastChunks(toastID uint32) error {
	schema, h, err := db.cat.GetTableByID(catalog.TableIDToast)
	if err != nil {
		return err
	}
	tidCol := schema.ColumnIndex("toast_id")
	var toDelete []types.RowID
	err = h.Scan(func(row *types.Row) error {
		if row.Values[tidCol].Uint == uint64(toastID) {
			toDelete = append(toDelete, row.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range toDelete {
		if err := h.Delete(id); err != nil {
			return err
		}
	}
	return nil
}

// releaseRowToasts removes every TOAST chunk group referenced by row's
// values, used when the row itself is being deleted or replaced.
func (db *Database) releaseRowToasts(row *types.Row, schema *types.TableSchema) error {
	for i, col := range schema.Columns {
		if row.Nulls[i] || !row.Values[i].IsToast {
			continue
		}
		if err := db.removeToastChunks(row.Values[i].ToastID); err != nil {
			return fmt.Errorf("engine: release toast column %q: %w", col.Name, err)
		}
	}
	return nil
}
