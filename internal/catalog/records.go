package catalog

import (
	"github.com/jugadbase/jugadb/internal/types"
)

// TableDir exposes a table's on-disk directory so callers outside this
// package (the executor's index manager, in particular) can root
// per-table B-tree storage without duplicating the naming convention.
func (c *Catalog) TableDir(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tableDir(name)
}

// RecordTableDescription writes s's jb_tables/jb_attribute rows, the
// same self-description every bootstrap meta-table carries, so a user
// table created through CREATE TABLE can be queried the same way a
// meta-table can (spec §4.5, §4.6).
func (c *Catalog) RecordTableDescription(s *types.TableSchema) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seedSelfDescription(s)
}

// RecordConstraint appends one row to jb_constraints describing a
// declared NOT NULL/UNIQUE/PRIMARY KEY/CHECK/FOREIGN KEY constraint
// (spec §4.7: "stored in jb_constraints, keyed by table_id").
func (c *Catalog) RecordConstraint(tableID int64, kind, name, column, checkExpr, refTable, refColumn string, onDelete, onUpdate types.FKAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.heaps[TableIDConstraints]
	schema := c.schemas[TableIDConstraints]
	row := types.NewRow(schema)
	row.Set(schema.ColumnIndex("table_id"), types.NewInt(tableID))
	row.Set(schema.ColumnIndex("kind"), types.NewString(types.KindText, kind))
	if name != "" {
		row.Set(schema.ColumnIndex("name"), types.NewString(types.KindText, name))
	}
	row.Set(schema.ColumnIndex("column_name"), types.NewString(types.KindText, column))
	if checkExpr != "" {
		row.Set(schema.ColumnIndex("check_expr"), types.NewString(types.KindText, checkExpr))
	}
	if refTable != "" {
		row.Set(schema.ColumnIndex("ref_table"), types.NewString(types.KindText, refTable))
		row.Set(schema.ColumnIndex("ref_column"), types.NewString(types.KindText, refColumn))
		row.Set(schema.ColumnIndex("on_delete"), types.NewString(types.KindText, onDelete.String()))
		row.Set(schema.ColumnIndex("on_update"), types.NewString(types.KindText, onUpdate.String()))
	}
	_, err := h.Insert(row)
	return err
}

// RecordDefault appends one row to jb_attrdef storing a column's
// DEFAULT expression as re-parseable text (spec §4.5, §4.6).
func (c *Catalog) RecordDefault(tableID int64, columnName, defaultExpr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.heaps[TableIDAttrDef]
	schema := c.schemas[TableIDAttrDef]
	row := types.NewRow(schema)
	row.Set(schema.ColumnIndex("table_id"), types.NewInt(tableID))
	row.Set(schema.ColumnIndex("column_name"), types.NewString(types.KindText, columnName))
	row.Set(schema.ColumnIndex("default_expr"), types.NewString(types.KindText, defaultExpr))
	_, err := h.Insert(row)
	return err
}

// DropTable removes a table from the catalog's in-memory maps and
// on-disk schema file, closing its heap.Heap. The caller is
// responsible for removing any B-tree index files rooted at the
// table's directory, since the catalog does not track index managers.
func (c *Catalog) DropTable(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.names[name]
	if !ok {
		return ErrTableNotFound
	}
	h := c.heaps[id]
	if err := h.Close(); err != nil {
		return err
	}
	delete(c.schemas, id)
	delete(c.heaps, id)
	delete(c.names, name)
	c.slots[slotFor(name)] = -1
	return c.save()
}
