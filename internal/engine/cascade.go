package engine

import (
	"fmt"

	"github.com/jugadbase/jugadb/internal/constraints"
	"github.com/jugadbase/jugadb/internal/types"
	"github.com/jugadbase/jugadb/internal/wal"
)

// referencingColumn is one column, on one table, whose FOREIGN KEY
// points at (table, column).
type referencingColumn struct {
	Schema *types.TableSchema
	Col    types.ColumnDefinition
}

// referencingColumns finds every column across every table declaring a
// FOREIGN KEY into table.column (spec §4.7's referential actions act on
// these at DELETE/UPDATE time).
func (db *Database) referencingColumns(table, column string) ([]referencingColumn, error) {
	var out []referencingColumn
	for _, name := range db.cat.TableNames() {
		schema, _, err := db.cat.GetTable(name)
		if err != nil {
			return nil, err
		}
		for _, col := range schema.Columns {
			if col.IsForeignKey && col.RefTable == table && col.RefColumn == column {
				out = append(out, referencingColumn{Schema: schema, Col: col})
			}
		}
	}
	return out, nil
}

// cascadeOnDelete applies every referencing table's ON DELETE action
// for a row of schema keyed by key being removed (spec §4.7, §5).
// depth bounds recursive cascades against cycles, mirroring the
// execInternal re-entrancy guard (spec §9).
func (db *Database) cascadeOnDelete(schema *types.TableSchema, pkColumn string, key types.ColumnValue, txID uint64, depth int) error {
	if depth > db.cfg.CascadeDepthLimit {
		return fmt.Errorf("engine: %w: delete cascade depth exceeded %d", ErrCascadeCycle, db.cfg.CascadeDepthLimit)
	}
	refs, err := db.referencingColumns(schema.Name, pkColumn)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		_, h, err := db.cat.GetTableByID(ref.Schema.TableID)
		if err != nil {
			return err
		}
		ci := ref.Schema.ColumnIndex(ref.Col.Name)
		matches, err := scanMatching(h, ci, key)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			continue
		}
		switch ref.Col.OnDelete {
		case types.FKCascade:
			for _, row := range matches {
				if err := db.deleteRowCascading(ref.Schema, h, row, txID, depth+1); err != nil {
					return err
				}
			}
		case types.FKSetNull:
			for _, row := range matches {
				updated := row.Clone()
				updated.Set(ci, types.Null(ref.Col.Kind))
				if err := db.applyUpdate(ref.Schema, h, row, updated, txID); err != nil {
					return err
				}
			}
		default: // RESTRICT / NO ACTION
			return &constraints.ConstraintViolation{
				Kind: "foreign_key", Name: ref.Col.Name,
				Message: fmt.Sprintf("row referenced by %s.%s", ref.Schema.Name, ref.Col.Name),
			}
		}
	}
	return nil
}

// cascadeOnUpdate applies every referencing table's ON UPDATE action
// when a row's oldKey changes to newKey (spec §4.7).
func (db *Database) cascadeOnUpdate(schema *types.TableSchema, pkColumn string, oldKey, newKey types.ColumnValue, txID uint64, depth int) error {
	if depth > db.cfg.CascadeDepthLimit {
		return fmt.Errorf("engine: %w: update cascade depth exceeded %d", ErrCascadeCycle, db.cfg.CascadeDepthLimit)
	}
	refs, err := db.referencingColumns(schema.Name, pkColumn)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		_, h, err := db.cat.GetTableByID(ref.Schema.TableID)
		if err != nil {
			return err
		}
		ci := ref.Schema.ColumnIndex(ref.Col.Name)
		matches, err := scanMatching(h, ci, oldKey)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			continue
		}
		switch ref.Col.OnUpdate {
		case types.FKCascade:
			for _, row := range matches {
				updated := row.Clone()
				updated.Set(ci, newKey)
				if err := db.applyUpdate(ref.Schema, h, row, updated, txID); err != nil {
					return err
				}
			}
		case types.FKSetNull:
			for _, row := range matches {
				updated := row.Clone()
				updated.Set(ci, types.Null(ref.Col.Kind))
				if err := db.applyUpdate(ref.Schema, h, row, updated, txID); err != nil {
					return err
				}
			}
		default: // RESTRICT / NO ACTION
			return &constraints.ConstraintViolation{
				Kind: "foreign_key", Name: ref.Col.Name,
				Message: fmt.Sprintf("row referenced by %s.%s", ref.Schema.Name, ref.Col.Name),
			}
		}
	}
	return nil
}

func scanMatching(h interface {
	Scan(func(*types.Row) error) error
}, col int, key types.ColumnValue) ([]*types.Row, error) {
	var out []*types.Row
	err := h.Scan(func(row *types.Row) error {
		if !row.Nulls[col] && row.Values[col].Equal(key) {
			out = append(out, row)
		}
		return nil
	})
	return out, err
}

// deleteRowCascading removes one row and recurses ON DELETE CASCADE
// into anything that in turn references it.
func (db *Database) deleteRowCascading(schema *types.TableSchema, h interface {
	Delete(types.RowID) error
}, row *types.Row, txID uint64, depth int) error {
	for _, col := range schema.Columns {
		if col.IsPrimaryKey || col.IsUnique {
			if err := db.cascadeOnDelete(schema, col.Name, row.Values[schema.ColumnIndex(col.Name)], txID, depth); err != nil {
				return err
			}
		}
	}
	if err := db.removeIndexEntries(schema, row); err != nil {
		return err
	}
	if err := db.releaseRowToasts(row, schema); err != nil {
		return err
	}
	if err := h.Delete(row.ID); err != nil {
		return err
	}
	return db.walAppend(txID, wal.ActionDelete, schema.TableID, row.ID, row, nil)
}

// applyUpdate rewrites one row (index maintenance + WAL) without
// re-running constraint validation, used internally by cascade
// actions that have already resolved what the new value must be.
func (db *Database) applyUpdate(schema *types.TableSchema, h interface {
	Update(types.RowID, *types.Row) (types.RowID, error)
}, oldRow, newRow *types.Row, txID uint64) error {
	if err := db.removeIndexEntries(schema, oldRow); err != nil {
		return err
	}
	newID, err := h.Update(oldRow.ID, newRow)
	if err != nil {
		return err
	}
	newRow.ID = newID
	if err := db.insertIndexEntries(schema, newRow, newID); err != nil {
		return err
	}
	return db.walAppend(txID, wal.ActionUpdate, schema.TableID, newID, oldRow, newRow)
}
