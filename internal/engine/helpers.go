package engine

import (
	"fmt"

	"github.com/jugadbase/jugadb/internal/btree"
	"github.com/jugadbase/jugadb/internal/catalog"
	"github.com/jugadbase/jugadb/internal/constraints"
	"github.com/jugadbase/jugadb/internal/eval"
	"github.com/jugadbase/jugadb/internal/page"
	"github.com/jugadbase/jugadb/internal/parser"
	"github.com/jugadbase/jugadb/internal/types"
	"github.com/jugadbase/jugadb/internal/wal"
)

// loadCheckDefs scans jb_constraints for schema's table-level CHECK
// clauses (spec §4.7: "stored in jb_constraints, keyed by table_id").
func (db *Database) loadCheckDefs(tableID int64) ([]constraints.CheckDef, error) {
	schema, h, err := db.cat.GetTableByID(catalog.TableIDConstraints)
	if err != nil {
		return nil, err
	}
	tidCol := schema.ColumnIndex("table_id")
	kindCol := schema.ColumnIndex("kind")
	nameCol := schema.ColumnIndex("name")
	exprCol := schema.ColumnIndex("check_expr")

	var out []constraints.CheckDef
	err = h.Scan(func(row *types.Row) error {
		if row.Values[tidCol].Int != tableID || row.Values[kindCol].Str != "check" {
			return nil
		}
		out = append(out, constraints.CheckDef{Name: row.Values[nameCol].Str, ExprText: row.Values[exprCol].Str})
		return nil
	})
	return out, err
}

// buildChecker assembles a constraints.Checker for schema, wiring
// resident B-tree indexes as the fast unique-lookup path and a full
// table scan (scanUnique/resolveFK below) as the fallback spec §4.7
// explicitly allows for composite keys and foreign-key lookups.
func (db *Database) buildChecker(schema *types.TableSchema) (*constraints.Checker, error) {
	checks, err := db.loadCheckDefs(schema.TableID)
	if err != nil {
		return nil, err
	}
	mgr := db.indexManagerFor(schema.Name)
	indexes := make(map[string]constraints.UniqueIndex)
	for _, col := range schema.Columns {
		if !indexedColumn(col) {
			continue
		}
		if tree, err := mgr.Get(col.Name); err == nil {
			indexes[col.Name] = tree
		}
	}
	return &constraints.Checker{
		Schema:     schema,
		Checks:     checks,
		Indexes:    indexes,
		ScanUnique: db.scanUniqueFor(schema),
		ResolveFK:  db.resolveFK,
	}, nil
}

// scanUniqueFor returns a constraints.ScanUnique collaborator that
// performs a full table scan, the degraded-but-correct path spec §4.7
// allows for multi-column keys.
func (db *Database) scanUniqueFor(schema *types.TableSchema) func([]string, []types.ColumnValue, types.RowID) (bool, error) {
	return func(columns []string, values []types.ColumnValue, exclude types.RowID) (bool, error) {
		_, h, err := db.cat.GetTableByID(schema.TableID)
		if err != nil {
			return false, err
		}
		idxs := make([]int, len(columns))
		for i, c := range columns {
			idxs[i] = schema.ColumnIndex(c)
		}
		found := false
		err = h.Scan(func(row *types.Row) error {
			if found || row.ID == exclude {
				return nil
			}
			for i, ci := range idxs {
				if row.Nulls[ci] || !row.Values[ci].Equal(values[i]) {
					return nil
				}
			}
			found = true
			return nil
		})
		return found, err
	}
}

// resolveFK implements constraints.ForeignKeyResolver by consulting
// refTable's B-tree for refColumn, falling back to a linear scan when
// no index covers it.
func (db *Database) resolveFK(refTable, refColumn string, key types.ColumnValue) (bool, error) {
	mgr := db.indexManagerFor(refTable)
	if tree, err := mgr.Get(refColumn); err == nil {
		if _, ok := tree.Search(key); ok {
			return true, nil
		}
		return false, nil
	}
	schema, h, err := db.cat.GetTable(refTable)
	if err != nil {
		return false, err
	}
	ci := schema.ColumnIndex(refColumn)
	if ci < 0 {
		return false, fmt.Errorf("engine: unknown column %q on referenced table %q", refColumn, refTable)
	}
	found := false
	err = h.Scan(func(row *types.Row) error {
		if !found && !row.Nulls[ci] && row.Values[ci].Equal(key) {
			found = true
		}
		return nil
	})
	return found, err
}

// castRow runs inferAndCast over every value of row against schema,
// mutating it in place.
func castRow(row *types.Row, schema *types.TableSchema) error {
	for i, col := range schema.Columns {
		cast, err := inferAndCast(row.Values[i], col)
		if err != nil {
			return err
		}
		row.Set(i, cast)
	}
	return nil
}

// indexColumns returns the ordinals of every indexed column of schema.
func indexColumns(schema *types.TableSchema) []int {
	var out []int
	for i, c := range schema.Columns {
		if indexedColumn(c) {
			out = append(out, i)
		}
	}
	return out
}

// insertIndexEntries adds id to every indexed column's B-tree.
func (db *Database) insertIndexEntries(schema *types.TableSchema, row *types.Row, id types.RowID) error {
	mgr := db.indexManagerFor(schema.Name)
	for _, ci := range indexColumns(schema) {
		col := schema.Columns[ci]
		tree, err := mgr.Get(col.Name)
		if err != nil {
			tree = mgr.Create(col.Name, col.Kind, uint32(schema.TableID))
		}
		if row.Nulls[ci] {
			continue
		}
		if err := tree.Insert(row.Values[ci], id); err != nil && err != btree.ErrDuplicateKey {
			return fmt.Errorf("engine: index %s.%s: %w", schema.Name, col.Name, err)
		}
		mgr.MarkDirty(col.Name)
	}
	return nil
}

// removeIndexEntries deletes row's entries from every indexed column's
// B-tree (DELETE, and UPDATE's old-image cleanup).
func (db *Database) removeIndexEntries(schema *types.TableSchema, row *types.Row) error {
	mgr := db.indexManagerFor(schema.Name)
	for _, ci := range indexColumns(schema) {
		col := schema.Columns[ci]
		if row.Nulls[ci] {
			continue
		}
		tree, err := mgr.Get(col.Name)
		if err != nil {
			continue
		}
		if err := tree.Delete(row.Values[ci]); err != nil && err != btree.ErrNotFound {
			return err
		}
		mgr.MarkDirty(col.Name)
	}
	return nil
}

// walAppend logs one data-changing row operation (spec §4.9); before
// and/or after may be nil depending on action.
func (db *Database) walAppend(txID uint64, action wal.Action, tableID int64, rowID types.RowID, before, after *types.Row) error {
	var beforeBuf, afterBuf []byte
	var err error
	if before != nil {
		if beforeBuf, err = page.EncodeRow(before); err != nil {
			return err
		}
	}
	if after != nil {
		if afterBuf, err = page.EncodeRow(after); err != nil {
			return err
		}
	}
	_, err = db.wal.Append(txID, action, tableID, rowID, beforeBuf, afterBuf, db.clock())
	return err
}

// collectTargets gathers every live row of schema matching where
// (spec §4.6 "WHERE filters with eval"), preferring a primary-key
// equality fast path through the B-tree over a full scan when the
// predicate is a direct `pk = literal` comparison.
func (db *Database) collectTargets(schema *types.TableSchema, h interface {
	Get(types.RowID) (*types.Row, error)
	Scan(func(*types.Row) error) error
}, where parser.Expr) ([]*types.Row, error) {
	if rowID, ok := db.pkEqualityFastPath(schema, where); ok {
		row, err := h.Get(rowID)
		if err != nil {
			return nil, nil
		}
		if err := db.detoastRow(row, schema); err != nil {
			return nil, err
		}
		return []*types.Row{row}, nil
	}

	var out []*types.Row
	err := h.Scan(func(row *types.Row) error {
		if err := db.detoastRow(row, schema); err != nil {
			return err
		}
		if where == nil {
			out = append(out, row)
			return nil
		}
		v, err := eval.Eval(where, db.evalCtx(row))
		if err != nil {
			return err
		}
		if !v.IsNull && v.Kind == types.KindBool && v.Bool {
			out = append(out, row)
		}
		return nil
	})
	return out, err
}

// pkEqualityFastPath recognises `<single-pk-column> = <literal>` and
// resolves it directly through the primary-key B-tree (spec §4.4: "an
// equality predicate on the primary key routes through the index
// rather than a scan").
func (db *Database) pkEqualityFastPath(schema *types.TableSchema, where parser.Expr) (types.RowID, bool) {
	bin, ok := where.(*parser.Binary)
	if !ok || bin.Op != "=" {
		return types.RowID{}, false
	}
	pk := schema.PrimaryKeyColumns()
	if len(pk) != 1 {
		return types.RowID{}, false
	}
	col := schema.Columns[pk[0]]

	ref, lit := asColumnLiteral(bin.Left, bin.Right)
	if ref == nil || ref.Index != pk[0] {
		ref, lit = asColumnLiteral(bin.Right, bin.Left)
		if ref == nil || ref.Index != pk[0] {
			return types.RowID{}, false
		}
	}
	if lit == nil {
		return types.RowID{}, false
	}
	key, err := inferAndCast(lit.Value, col)
	if err != nil {
		return types.RowID{}, false
	}
	mgr := db.indexManagerFor(schema.Name)
	tree, err := mgr.Get(col.Name)
	if err != nil {
		return types.RowID{}, false
	}
	id, ok := tree.Search(key)
	return id, ok
}

func asColumnLiteral(a, b parser.Expr) (*parser.ColumnRef, *parser.Literal) {
	ref, ok1 := a.(*parser.ColumnRef)
	lit, ok2 := b.(*parser.Literal)
	if ok1 && ok2 {
		return ref, lit
	}
	return nil, nil
}
