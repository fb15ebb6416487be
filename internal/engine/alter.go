package engine

import (
	"fmt"

	"github.com/jugadbase/jugadb/internal/catalog"
	"github.com/jugadbase/jugadb/internal/parser"
	"github.com/jugadbase/jugadb/internal/types"
)

// executeAlter implements ALTER TABLE's clause set (spec §4.6, §6):
// every action in the statement is applied to a cloned schema and
// persisted as one atomic catalog.AlterTable write, so a statement with
// several comma-separated actions either takes full effect or none of
// it reaches the schema file.
func (db *Database) executeAlter(cmd *parser.Command) (*Result, error) {
	at := cmd.Alter
	oldSchema := cmd.Schema
	schema := oldSchema.Clone()

	physicalChange := false
	for _, action := range at.Actions {
		if action.Kind == parser.AlterAddColumn || action.Kind == parser.AlterDropColumn {
			physicalChange = true
		}
		if err := db.applyAlterAction(schema, action); err != nil {
			return nil, err
		}
	}
	schema.Recompute()

	newName := schema.Name
	if newName != at.Name {
		if err := db.cat.RenameTable(at.Name, newName); err != nil {
			return nil, err
		}
	}
	if err := db.cat.AlterTable(newName, schema); err != nil {
		return nil, err
	}
	if physicalChange {
		if err := db.rewriteTablePhysicalLayout(newName, oldSchema, schema); err != nil {
			return nil, err
		}
	}
	return &Result{Message: fmt.Sprintf("table %q altered", newName)}, nil
}

// rewriteTablePhysicalLayout re-encodes every existing row of table
// under schema's new column layout after ADD/DROP COLUMN (spec §9's
// ALTER TABLE design note: the on-disk row shape changes, so this
// copies every row through rather than leaving old and new rows to be
// read with a mismatched schema). Columns present in both schemas keep
// their value; a genuinely new column is filled the same way INSERT
// fills an omitted column (SERIAL/DEFAULT, else NULL). Because the
// heap assigns every rewritten row a fresh RowID, every index on the
// table is rebuilt from the post-rewrite heap afterward.
func (db *Database) rewriteTablePhysicalLayout(table string, oldSchema, newSchema *types.TableSchema) error {
	_, h, err := db.cat.GetTableByID(newSchema.TableID)
	if err != nil {
		return err
	}

	err = h.RewriteSchema(newSchema, func(old *types.Row) (*types.Row, error) {
		migrated := types.NewRow(newSchema)
		for newIdx, col := range newSchema.Columns {
			oldIdx := oldSchema.ColumnIndex(col.Name)
			if oldIdx < 0 {
				continue
			}
			migrated.Set(newIdx, old.Values[oldIdx].Clone())
		}
		if err := db.fillImplicitValues(migrated, newSchema); err != nil {
			return nil, err
		}
		if err := castRow(migrated, newSchema); err != nil {
			return nil, err
		}
		return migrated, nil
	})
	if err != nil {
		return err
	}

	mgr := db.indexManagerFor(table)
	for _, col := range newSchema.Columns {
		if !indexedColumn(col) {
			continue
		}
		mgr.Create(col.Name, col.Kind, uint32(newSchema.TableID))
	}
	return h.Scan(func(row *types.Row) error {
		return db.insertIndexEntries(newSchema, row, row.ID)
	})
}

func (db *Database) applyAlterAction(schema *types.TableSchema, action parser.AlterAction) error {
	switch action.Kind {
	case parser.AlterAddColumn:
		schema.Columns = append(schema.Columns, action.Column)
		if action.Column.HasDefault {
			if err := db.cat.RecordDefault(schema.TableID, action.Column.Name, action.Column.DefaultExpr); err != nil {
				return err
			}
		}
		return db.recordColumnConstraints(schema.TableID, action.Column)

	case parser.AlterDropColumn:
		idx := schema.ColumnIndex(action.ColumnName)
		if idx < 0 {
			return fmt.Errorf("engine: %w: column %q", ErrNotFound, action.ColumnName)
		}
		schema.Columns = append(schema.Columns[:idx], schema.Columns[idx+1:]...)
		return nil

	case parser.AlterRenameColumn:
		idx := schema.ColumnIndex(action.ColumnName)
		if idx < 0 {
			return fmt.Errorf("engine: %w: column %q", ErrNotFound, action.ColumnName)
		}
		schema.Columns[idx].Name = action.NewName
		return nil

	case parser.AlterSetDefault:
		idx := schema.ColumnIndex(action.ColumnName)
		if idx < 0 {
			return fmt.Errorf("engine: %w: column %q", ErrNotFound, action.ColumnName)
		}
		schema.Columns[idx].HasDefault = true
		schema.Columns[idx].DefaultExpr = action.DefaultText
		return db.cat.RecordDefault(schema.TableID, action.ColumnName, action.DefaultText)

	case parser.AlterDropDefault:
		idx := schema.ColumnIndex(action.ColumnName)
		if idx < 0 {
			return fmt.Errorf("engine: %w: column %q", ErrNotFound, action.ColumnName)
		}
		schema.Columns[idx].HasDefault = false
		schema.Columns[idx].DefaultExpr = ""
		return nil

	case parser.AlterSetNotNull:
		idx := schema.ColumnIndex(action.ColumnName)
		if idx < 0 {
			return fmt.Errorf("engine: %w: column %q", ErrNotFound, action.ColumnName)
		}
		schema.Columns[idx].Nullable = false
		return db.cat.RecordConstraint(schema.TableID, "not_null", "", action.ColumnName, "", "", "", types.FKNoAction, types.FKNoAction)

	case parser.AlterDropNotNull:
		idx := schema.ColumnIndex(action.ColumnName)
		if idx < 0 {
			return fmt.Errorf("engine: %w: column %q", ErrNotFound, action.ColumnName)
		}
		schema.Columns[idx].Nullable = true
		return db.dropConstraintRows(schema.TableID, "not_null", action.ColumnName)

	case parser.AlterAddConstraint:
		return db.cat.RecordConstraint(schema.TableID, "check", action.Check.Name, "", action.Check.ExprText, "", "", types.FKNoAction, types.FKNoAction)

	case parser.AlterDropConstraint:
		return db.dropConstraintByName(schema.TableID, action.ConstraintName)

	case parser.AlterRenameConstraint:
		return db.renameConstraint(schema.TableID, action.ConstraintName, action.NewName)

	case parser.AlterRenameTable:
		schema.Name = action.NewName
		return nil

	case parser.AlterSetOwner, parser.AlterSetTablespace:
		// Storage placement metadata, not modeled by the single
		// on-disk heap layout (spec §4.6 lists these for parity with
		// the wire dialect); accepted as a no-op.
		return nil

	default:
		return fmt.Errorf("engine: unsupported ALTER TABLE action")
	}
}

// dropConstraintRows removes every jb_constraints row of kind for
// column under tableID.
func (db *Database) dropConstraintRows(tableID int64, kind, column string) error {
	schema, h, err := db.cat.GetTableByID(catalog.TableIDConstraints)
	if err != nil {
		return err
	}
	tidCol := schema.ColumnIndex("table_id")
	kindCol := schema.ColumnIndex("kind")
	colCol := schema.ColumnIndex("column_name")

	var toDelete []types.RowID
	err = h.Scan(func(row *types.Row) error {
		if row.Values[tidCol].Int == tableID && row.Values[kindCol].Str == kind && row.Values[colCol].Str == column {
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

// dropConstraintByName removes a named jb_constraints row (CHECK or
// FOREIGN KEY constraints carry an explicit name; spec §4.7).
func (db *Database) dropConstraintByName(tableID int64, name string) error {
	schema, h, err := db.cat.GetTableByID(catalog.TableIDConstraints)
	if err != nil {
		return err
	}
	tidCol := schema.ColumnIndex("table_id")
	nameCol := schema.ColumnIndex("name")

	var found *types.RowID
	err = h.Scan(func(row *types.Row) error {
		if found != nil {
			return nil
		}
		if row.Values[tidCol].Int == tableID && !row.Nulls[nameCol] && row.Values[nameCol].Str == name {
			id := row.ID
			found = &id
		}
		return nil
	})
	if err != nil {
		return err
	}
	if found == nil {
		return fmt.Errorf("engine: %w: constraint %q", ErrNotFound, name)
	}
	return h.Delete(*found)
}

// renameConstraint rewrites a named jb_constraints row's name in place.
func (db *Database) renameConstraint(tableID int64, oldName, newName string) error {
	schema, h, err := db.cat.GetTableByID(catalog.TableIDConstraints)
	if err != nil {
		return err
	}
	tidCol := schema.ColumnIndex("table_id")
	nameCol := schema.ColumnIndex("name")

	var target *types.Row
	err = h.Scan(func(row *types.Row) error {
		if target != nil {
			return nil
		}
		if row.Values[tidCol].Int == tableID && !row.Nulls[nameCol] && row.Values[nameCol].Str == oldName {
			target = row
		}
		return nil
	})
	if err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("engine: %w: constraint %q", ErrNotFound, oldName)
	}
	updated := target.Clone()
	updated.Set(nameCol, types.NewString(types.KindText, newName))
	_, err = h.Update(target.ID, updated)
	return err
}
