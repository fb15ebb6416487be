package engine

import (
	"github.com/jugadbase/jugadb/internal/constraints"
	"github.com/jugadbase/jugadb/internal/eval"
	"github.com/jugadbase/jugadb/internal/parser"
	"github.com/jugadbase/jugadb/internal/types"
	"github.com/jugadbase/jugadb/internal/wal"
)

// executeUpdate implements UPDATE ... SET ... [WHERE] (spec §4.6, §5):
// target rows come from the same WHERE-matching path as SELECT/DELETE,
// each row's SET expressions are evaluated against its own pre-update
// values, the result is cast and validated (excluding the row's own
// prior identity from uniqueness checks), indexes are repointed across
// the heap's possibly-relocating update, and a primary-key column
// changing cascades ON UPDATE actions into any referencing table.
func (db *Database) executeUpdate(cmd *parser.Command) (*Result, error) {
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
		return &Result{Message: "UPDATE"}, nil
	}

	var checker *constraints.Checker
	if !cmd.Unsafe && !schema.NoConstraintCheck {
		checker, err = db.buildChecker(schema)
		if err != nil {
			return nil, err
		}
	}

	pk := schema.PrimaryKeyColumns()
	txID := db.wal.NextTxID()
	var updated int64
	var returning [][]types.ColumnValue

	for _, oldRow := range rows {
		newRow := oldRow.Clone()
		for i, ci := range cmd.SetColumns {
			v, err := eval.Eval(cmd.SetExprs[i], db.evalCtx(oldRow))
			if err != nil {
				return nil, err
			}
			newRow.Set(ci, v)
		}
		if err := castRow(newRow, schema); err != nil {
			return nil, err
		}
		if checker != nil {
			if err := checker.Validate(newRow, oldRow.ID); err != nil {
				return nil, err
			}
		}
		if err := db.releaseRowToasts(oldRow, schema); err != nil {
			return nil, err
		}
		storageRow := newRow.Clone()
		if err := db.toastIfNeeded(storageRow, schema); err != nil {
			return nil, err
		}

		if err := db.removeIndexEntries(schema, oldRow); err != nil {
			return nil, err
		}
		newID, err := h.Update(oldRow.ID, storageRow)
		if err != nil {
			return nil, err
		}
		newRow.ID = newID
		if err := db.insertIndexEntries(schema, newRow, newID); err != nil {
			return nil, err
		}
		if err := db.walAppend(txID, wal.ActionUpdate, schema.TableID, newID, oldRow, storageRow); err != nil {
			return nil, err
		}

		if len(pk) == 1 {
			ci := pk[0]
			if !oldRow.Nulls[ci] && !newRow.Nulls[ci] && !oldRow.Values[ci].Equal(newRow.Values[ci]) {
				if err := db.cascadeOnUpdate(schema, schema.Columns[ci].Name, oldRow.Values[ci], newRow.Values[ci], txID, db.reentrancy); err != nil {
					return nil, err
				}
			}
		}

		updated++
		if cmd.Returning != nil {
			returning = append(returning, projectRow(schema, cmd.Returning, newRow))
		}
	}

	res := &Result{RowsAffected: updated, Message: "UPDATE"}
	if cmd.Returning != nil {
		res.Rows = returning
		res.Aliases = projectionAliases(schema, cmd.Returning)
	}
	return res, nil
}
