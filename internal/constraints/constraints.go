// Package constraints implements the constraint engine of spec §4.7:
// for each INSERT/UPDATE, after type coercion, it evaluates NOT
// NULL, UNIQUE, PRIMARY KEY, CHECK, and FOREIGN KEY against the
// prospective row and reports the first violation. Grounded on the
// teacher's internal/query package's validation-before-mutation shape,
// generalised from the teacher's single ad hoc NOT NULL check to the
// full constraint set.
package constraints

import (
	"fmt"

	"github.com/jugadbase/jugadb/internal/eval"
	"github.com/jugadbase/jugadb/internal/parser"
	"github.com/jugadbase/jugadb/internal/types"
)

// ConstraintViolation is spec §7's ConstraintViolation error kind: the
// offending constraint name plus a human-readable message. The
// surrounding statement aborts and its undo list rolls back.
type ConstraintViolation struct {
	Kind    string // "not_null" | "unique" | "primary_key" | "check" | "foreign_key"
	Name    string
	Column  string
	Message string
}

func (e *ConstraintViolation) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("constraint violation (%s %q): %s", e.Kind, e.Name, e.Message)
	}
	return fmt.Sprintf("constraint violation (%s): %s", e.Kind, e.Message)
}

// UniqueIndex is the read side of a single-column unique or primary-key
// B-tree index (satisfied by *btree.Tree without this package importing
// btree directly, keeping the dependency order leaves-first).
type UniqueIndex interface {
	Search(key types.ColumnValue) (types.RowID, bool)
}

// ForeignKeyResolver reports whether key exists among the live rows of
// refTable.refColumn — normally a primary-key B-tree lookup performed
// by the engine, which owns every table's open index.
type ForeignKeyResolver func(refTable, refColumn string, key types.ColumnValue) (bool, error)

// CheckDef is a table-level (or desugared column-level) CHECK clause,
// carried as source text per spec §4.7 ("parse the stored expression
// text, evaluate it... require a boolean true").
type CheckDef struct {
	Name     string
	ExprText string
}

// Checker validates prospective rows for one table. Indexes holds a
// UniqueIndex per uniquely-constrained (or primary-key) column; a
// missing entry falls back to ScanUnique, per spec §4.7's "for
// multi-column, a scan is acceptable".
type Checker struct {
	Schema  *types.TableSchema
	Checks  []CheckDef
	Indexes map[string]UniqueIndex

	// ScanUnique reports whether a live row other than exclude already
	// carries the given values for columns (length 1 for a
	// single-column check without a built index, >1 for a composite
	// primary/unique key).
	ScanUnique func(columns []string, values []types.ColumnValue, exclude types.RowID) (bool, error)
	ResolveFK  ForeignKeyResolver
}

// Validate runs every declared constraint against row. exclude is the
// row's own prior RowID on UPDATE (so a row doesn't collide with
// itself under uniqueness checks) and the zero RowID on INSERT.
func (c *Checker) Validate(row *types.Row, exclude types.RowID) error {
	if err := c.checkNotNull(row); err != nil {
		return err
	}
	if err := c.checkPrimaryKey(row, exclude); err != nil {
		return err
	}
	if err := c.checkUnique(row, exclude); err != nil {
		return err
	}
	if err := c.checkChecks(row); err != nil {
		return err
	}
	if err := c.checkForeignKeys(row); err != nil {
		return err
	}
	return nil
}

func (c *Checker) checkNotNull(row *types.Row) error {
	for i, col := range c.Schema.Columns {
		if col.IsPrimaryKey {
			continue // reported as a primary_key violation by checkPrimaryKey instead
		}
		if !col.Nullable && row.Nulls[i] {
			return &ConstraintViolation{
				Kind:    "not_null",
				Name:    col.Name,
				Column:  col.Name,
				Message: fmt.Sprintf("column %q must not be null", col.Name),
			}
		}
	}
	return nil
}

func (c *Checker) checkPrimaryKey(row *types.Row, exclude types.RowID) error {
	pk := c.Schema.PrimaryKeyColumns()
	if len(pk) == 0 {
		return nil
	}
	for _, i := range pk {
		if row.Nulls[i] {
			return &ConstraintViolation{
				Kind:    "primary_key",
				Name:    c.Schema.Columns[i].Name,
				Column:  c.Schema.Columns[i].Name,
				Message: "primary key column must not be null",
			}
		}
	}
	if len(pk) == 1 {
		return c.checkUniqueColumn(c.Schema.Columns[pk[0]].Name, row.Values[pk[0]], exclude, "primary_key")
	}
	return c.scanMultiColumnUnique(pk, row, exclude, "primary_key")
}

func (c *Checker) checkUnique(row *types.Row, exclude types.RowID) error {
	for i, col := range c.Schema.Columns {
		if !col.IsUnique || col.IsPrimaryKey {
			continue
		}
		if row.Nulls[i] {
			continue // NULL is never unique-conflicting, standard SQL semantics
		}
		if err := c.checkUniqueColumn(col.Name, row.Values[i], exclude, "unique"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) checkUniqueColumn(column string, key types.ColumnValue, exclude types.RowID, kind string) error {
	if idx, ok := c.Indexes[column]; ok && idx != nil {
		if id, found := idx.Search(key); found && id != exclude {
			return &ConstraintViolation{Kind: kind, Name: column, Column: column,
				Message: fmt.Sprintf("duplicate value for %q", column)}
		}
		return nil
	}
	if c.ScanUnique == nil {
		return nil
	}
	dup, err := c.ScanUnique([]string{column}, []types.ColumnValue{key}, exclude)
	if err != nil {
		return err
	}
	if dup {
		return &ConstraintViolation{Kind: kind, Name: column, Column: column,
			Message: fmt.Sprintf("duplicate value for %q", column)}
	}
	return nil
}

// scanMultiColumnUnique handles composite primary keys / unique
// groups, for which spec §4.7 says "a scan is acceptable".
func (c *Checker) scanMultiColumnUnique(cols []int, row *types.Row, exclude types.RowID, kind string) error {
	if c.ScanUnique == nil {
		return nil
	}
	names := make([]string, len(cols))
	values := make([]types.ColumnValue, len(cols))
	for i, ci := range cols {
		names[i] = c.Schema.Columns[ci].Name
		values[i] = row.Values[ci]
	}
	dup, err := c.ScanUnique(names, values, exclude)
	if err != nil {
		return err
	}
	if dup {
		return &ConstraintViolation{Kind: kind, Name: compositeName(names),
			Message: "duplicate value for composite key " + compositeName(names)}
	}
	return nil
}

func compositeName(names []string) string {
	out := names[0]
	for _, n := range names[1:] {
		out += "," + n
	}
	return out
}

func (c *Checker) checkChecks(row *types.Row) error {
	for _, chk := range c.Checks {
		p := parser.New(chk.ExprText, nil)
		p.BindSchema(c.Schema)
		expr, err := p.ParseExpr()
		if err != nil {
			return &ConstraintViolation{Kind: "check", Name: chk.Name,
				Message: fmt.Sprintf("stored CHECK expression failed to re-parse: %v", err)}
		}
		v, err := eval.Eval(expr, &eval.Context{Row: row})
		if err != nil {
			return &ConstraintViolation{Kind: "check", Name: chk.Name, Message: err.Error()}
		}
		if v.IsNull || v.Kind != types.KindBool || !v.Bool {
			return &ConstraintViolation{Kind: "check", Name: chk.Name,
				Message: fmt.Sprintf("CHECK (%s) evaluated to false", chk.ExprText)}
		}
	}
	return nil
}

func (c *Checker) checkForeignKeys(row *types.Row) error {
	if c.ResolveFK == nil {
		return nil
	}
	for i, col := range c.Schema.Columns {
		if !col.IsForeignKey {
			continue
		}
		if row.Nulls[i] {
			continue // a null FK column has nothing to reference
		}
		ok, err := c.ResolveFK(col.RefTable, col.RefColumn, row.Values[i])
		if err != nil {
			return err
		}
		if !ok {
			return &ConstraintViolation{
				Kind:    "foreign_key",
				Name:    col.Name,
				Column:  col.Name,
				Message: fmt.Sprintf("no row in %s.%s matches foreign key %s", col.RefTable, col.RefColumn, col.Name),
			}
		}
	}
	return nil
}
