package engine

import (
	"github.com/jugadbase/jugadb/internal/parser"
	"github.com/jugadbase/jugadb/internal/wal"
)

// executeDelete implements DELETE FROM ... [WHERE] (spec §4.6, §5):
// matching rows are tombstoned in the heap, their B-tree entries
// removed, and — when the table's primary key is referenced elsewhere
// — the referencing tables' ON DELETE action is applied before the row
// itself is removed.
func (db *Database) executeDelete(cmd *parser.Command) (*Result, error) {
	schema := cmd.Schema
	_, h, err := db.cat.GetTableByID(schema.TableID)
	if err != nil {
		return nil, err
	}

	rows, err := db.collectTargets(schema, h, cmd.Where)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &Result{Message: "DELETE"}, nil
	}

	pk := schema.PrimaryKeyColumns()
	txID := db.wal.NextTxID()
	var deleted int64

	for _, row := range rows {
		if len(pk) == 1 {
			ci := pk[0]
			if !row.Nulls[ci] {
				if err := db.cascadeOnDelete(schema, schema.Columns[ci].Name, row.Values[ci], txID, db.reentrancy); err != nil {
					return nil, err
				}
			}
		}
		if err := db.removeIndexEntries(schema, row); err != nil {
			return nil, err
		}
		if err := db.releaseRowToasts(row, schema); err != nil {
			return nil, err
		}
		if err := h.Delete(row.ID); err != nil {
			return nil, err
		}
		if err := db.walAppend(txID, wal.ActionDelete, schema.TableID, row.ID, row, nil); err != nil {
			return nil, err
		}
		deleted++
	}

	return &Result{RowsAffected: deleted, Message: "DELETE"}, nil
}
