package catalog

import (
	"fmt"

	"github.com/jugadbase/jugadb/internal/types"
)

// bootstrap creates the six meta-tables at their fixed ids (0-5),
// mirroring original_source/src/db/kernel/schema.c's
// bootstrap_core_tables, then seeds jb_tables/jb_attribute with rows
// describing each meta-table so that later catalog lookups can go
// through the same jb_tables/jb_attribute rows as user tables.
func (c *Catalog) bootstrap() error {
	schemas := bootstrapSchemas()
	c.nextID = int64(len(schemas))

	for _, s := range schemas {
		if err := c.createTableLocked(s); err != nil {
			return fmt.Errorf("catalog: bootstrap %s: %w", s.Name, err)
		}
	}
	for _, s := range schemas {
		if err := c.seedSelfDescription(s); err != nil {
			return fmt.Errorf("catalog: seed self-description for %s: %w", s.Name, err)
		}
	}
	return nil
}

// seedSelfDescription writes the jb_tables/jb_attribute rows that
// describe a bootstrap table, using the heap primitives directly
// rather than the (not-yet-available) executor's SQL path - see
// DESIGN.md's note on the catalog/engine layering split.
func (c *Catalog) seedSelfDescription(s *types.TableSchema) error {
	if err := c.insertTableRow(s); err != nil {
		return err
	}
	for _, col := range s.Columns {
		if err := c.insertAttributeRow(s.TableID, col); err != nil {
			return err
		}
	}
	return nil
}

// insertTableRow appends one row to jb_tables describing schema.
func (c *Catalog) insertTableRow(s *types.TableSchema) error {
	h := c.heaps[TableIDTables]
	schema := c.schemas[TableIDTables]
	row := types.NewRow(schema)
	row.Set(schema.ColumnIndex("id"), types.NewInt(s.TableID))
	row.Set(schema.ColumnIndex("name"), types.NewString(types.KindText, s.Name))
	row.Set(schema.ColumnIndex("database_name"), types.NewString(types.KindText, "default"))
	row.Set(schema.ColumnIndex("owner"), types.NewString(types.KindText, "sudo"))
	_, err := h.Insert(row)
	return err
}

// insertAttributeRow appends one row to jb_attribute describing one
// column of tableID.
func (c *Catalog) insertAttributeRow(tableID int64, col types.ColumnDefinition) error {
	h := c.heaps[TableIDAttribute]
	schema := c.schemas[TableIDAttribute]
	row := types.NewRow(schema)
	row.Set(schema.ColumnIndex("table_id"), types.NewInt(tableID))
	row.Set(schema.ColumnIndex("column_name"), types.NewString(types.KindText, col.Name))
	row.Set(schema.ColumnIndex("data_type"), types.NewInt(int64(col.Kind)))
	row.Set(schema.ColumnIndex("ordinal_position"), types.NewInt(int64(col.Ordinal)))
	row.Set(schema.ColumnIndex("is_nullable"), types.NewBool(col.Nullable))
	row.Set(schema.ColumnIndex("has_default"), types.NewBool(col.HasDefault))
	row.Set(schema.ColumnIndex("has_constraints"), types.NewBool(col.IsPrimaryKey || col.IsUnique || col.IsForeignKey || !col.Nullable))
	_, err := h.Insert(row)
	return err
}
