package engine

import (
	"fmt"

	"github.com/jugadbase/jugadb/internal/constraints"
	"github.com/jugadbase/jugadb/internal/dblog"
	"github.com/jugadbase/jugadb/internal/eval"
	"github.com/jugadbase/jugadb/internal/parser"
	"github.com/jugadbase/jugadb/internal/types"
	"github.com/jugadbase/jugadb/internal/wal"
)

// executeInsert implements INSERT INTO ... VALUES ... [RETURNING ...]
// (spec §4.6, §6). Each row is built from the explicit column list (or
// schema order when omitted), unset columns fall back to DEFAULT/SERIAL,
// every value is coerced with inferAndCast, and — unless the statement
// is _unsafecon or the table was created NO_CONSTRAINTS — validated
// against the table's declared constraints before it is durably
// inserted. A failure partway through a multi-row VALUES list unwinds
// every row already applied by this statement (spec §5).
func (db *Database) executeInsert(cmd *parser.Command) (*Result, error) {
	schema := cmd.Schema
	_, h, err := db.cat.GetTableByID(schema.TableID)
	if err != nil {
		return nil, err
	}

	var checker *constraints.Checker
	if !cmd.Unsafe && !schema.NoConstraintCheck {
		checker, err = db.buildChecker(schema)
		if err != nil {
			return nil, err
		}
	}

	var undo undoList
	var returning [][]types.ColumnValue
	txID := db.wal.NextTxID()

	for _, exprRow := range cmd.InsertRows {
		row := types.NewRow(schema)
		if err := db.bindExplicitValues(row, schema, cmd.InsertColumns, exprRow); err != nil {
			undo.rollback(db.logUndoErr)
			return nil, err
		}
		if err := db.fillImplicitValues(row, schema); err != nil {
			undo.rollback(db.logUndoErr)
			return nil, err
		}
		if err := castRow(row, schema); err != nil {
			undo.rollback(db.logUndoErr)
			return nil, err
		}
		if checker != nil {
			if err := checker.Validate(row, types.RowID{}); err != nil {
				undo.rollback(db.logUndoErr)
				return nil, err
			}
		}
		indexKeys := row.Clone()
		if err := db.toastIfNeeded(row, schema); err != nil {
			undo.rollback(db.logUndoErr)
			return nil, err
		}

		id, err := h.Insert(row)
		if err != nil {
			undo.rollback(db.logUndoErr)
			return nil, err
		}
		row.ID = id
		undoSchema, undoH := schema, h
		undo.add(func() error {
			if err := db.removeIndexEntries(undoSchema, indexKeys); err != nil {
				return err
			}
			if err := db.releaseRowToasts(row, undoSchema); err != nil {
				return err
			}
			return undoH.Delete(id)
		})

		if err := db.insertIndexEntries(schema, indexKeys, id); err != nil {
			undo.rollback(db.logUndoErr)
			return nil, err
		}
		if err := db.walAppend(txID, wal.ActionInsert, schema.TableID, id, nil, row); err != nil {
			undo.rollback(db.logUndoErr)
			return nil, err
		}

		if cmd.Returning != nil {
			indexKeys.ID = id
			returning = append(returning, projectRow(schema, cmd.Returning, indexKeys))
		}
	}

	res := &Result{RowsAffected: int64(len(cmd.InsertRows)), Message: "INSERT"}
	if cmd.Returning != nil {
		res.Rows = returning
		res.Aliases = projectionAliases(schema, cmd.Returning)
	}
	return res, nil
}

func (db *Database) logUndoErr(err error) {
	db.log.Error(dblog.CategoryExec, "undo failed: %v", err)
}

// bindExplicitValues evaluates each VALUES expression and stores it at
// its target column ordinal (cmd.InsertColumns[i], or i verbatim when no
// column list was given).
func (db *Database) bindExplicitValues(row *types.Row, schema *types.TableSchema, cols []int, exprs []parser.Expr) error {
	if cols == nil && len(exprs) != len(schema.Columns) {
		return fmt.Errorf("engine: %d values supplied for %d columns", len(exprs), len(schema.Columns))
	}
	for i, e := range exprs {
		colIdx := i
		if cols != nil {
			colIdx = cols[i]
		}
		v, err := eval.Eval(e, db.evalCtx(nil))
		if err != nil {
			return err
		}
		row.Set(colIdx, v)
	}
	return nil
}

// fillImplicitValues assigns a SERIAL's next sequence value, or a
// column's stored DEFAULT expression, to every column the statement's
// VALUES list left untouched (spec §4.6: defaults are re-parsed text,
// evaluated against the row being built so far).
func (db *Database) fillImplicitValues(row *types.Row, schema *types.TableSchema) error {
	for i, col := range schema.Columns {
		if !row.Nulls[i] {
			continue
		}
		switch {
		case col.HasSequence:
			next, err := db.cat.NextVal(col.SequenceID)
			if err != nil {
				return err
			}
			row.Set(i, types.ColumnValue{Kind: col.Kind, Int: next})
		case col.HasDefault:
			p := parser.New(col.DefaultExpr, nil)
			p.BindSchema(schema)
			expr, err := p.ParseExpr()
			if err != nil {
				return fmt.Errorf("engine: re-parsing default for %q: %w", col.Name, err)
			}
			v, err := eval.Eval(expr, db.evalCtx(row))
			if err != nil {
				return err
			}
			row.Set(i, v)
		}
	}
	return nil
}

// projectRow evaluates projs against row, expanding `*` to every column.
func projectRow(schema *types.TableSchema, projs []parser.Projection, row *types.Row) []types.ColumnValue {
	out := make([]types.ColumnValue, 0, len(schema.Columns))
	for _, p := range projs {
		if p.Star {
			out = append(out, row.Values...)
			continue
		}
		v, err := eval.Eval(p.Expr, &eval.Context{Row: row})
		if err != nil {
			out = append(out, types.Null(types.KindInt))
			continue
		}
		out = append(out, v)
	}
	return out
}

// projectionAliases resolves the output column names for projs,
// expanding `*` to the schema's own column names.
func projectionAliases(schema *types.TableSchema, projs []parser.Projection) []string {
	var out []string
	for _, p := range projs {
		if p.Star {
			for _, c := range schema.Columns {
				out = append(out, c.Name)
			}
			continue
		}
		out = append(out, p.Alias)
	}
	return out
}
