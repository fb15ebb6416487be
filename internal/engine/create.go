package engine

import (
	"fmt"
	"math"

	"github.com/jugadbase/jugadb/internal/parser"
	"github.com/jugadbase/jugadb/internal/types"
)

// executeCreate implements CREATE [NO_CONSTRAINTS] TABLE (spec §6): it
// registers the schema with the catalog, backs every SERIAL column with
// a jb_sequences row, records the table's self-description and
// declared constraints in the jb_* meta-tables, and builds a B-tree for
// every PRIMARY KEY/UNIQUE/INDEX column.
func (db *Database) executeCreate(cmd *parser.Command) (*Result, error) {
	ct := cmd.Create
	schema := cmd.Schema
	schema.NoConstraintCheck = ct.NoConstraints

	if _, _, err := db.cat.GetTable(ct.Name); err == nil {
		if ct.IfNotExists {
			return &Result{Message: fmt.Sprintf("table %q already exists, skipped", ct.Name)}, nil
		}
		return nil, fmt.Errorf("engine: %w: table %q", ErrDuplicateName, ct.Name)
	}

	if err := db.cat.CreateTable(schema); err != nil {
		return nil, fmt.Errorf("engine: create table %q: %w", ct.Name, err)
	}
	if err := db.cat.RecordTableDescription(schema); err != nil {
		return nil, err
	}

	for i := range schema.Columns {
		col := &schema.Columns[i]
		if col.HasSequence {
			seqName := fmt.Sprintf("%s_%s_seq", schema.Name, col.Name)
			id, err := db.cat.CreateSequence(seqName, 0, 1, 0, math.MaxInt64, false)
			if err != nil {
				return nil, err
			}
			col.SequenceID = id
		}
		if col.HasDefault {
			if err := db.cat.RecordDefault(schema.TableID, col.Name, col.DefaultExpr); err != nil {
				return nil, err
			}
		}
		if err := db.recordColumnConstraints(schema.TableID, *col); err != nil {
			return nil, err
		}
	}
	for _, chk := range ct.Checks {
		if err := db.cat.RecordConstraint(schema.TableID, "check", chk.Name, "", chk.ExprText, "", "", types.FKNoAction, types.FKNoAction); err != nil {
			return nil, err
		}
	}

	// Persist SequenceID assignments made above.
	if err := db.cat.AlterTable(schema.Name, schema); err != nil {
		return nil, err
	}

	mgr := db.indexManagerFor(schema.Name)
	for _, col := range schema.Columns {
		if indexedColumn(col) {
			mgr.Create(col.Name, col.Kind, uint32(schema.TableID))
			mgr.MarkDirty(col.Name)
		}
	}

	return &Result{Message: fmt.Sprintf("table %q created", schema.Name)}, nil
}

// recordColumnConstraints writes jb_constraints rows for every
// constraint a single column declares (spec §4.7).
func (db *Database) recordColumnConstraints(tableID int64, col types.ColumnDefinition) error {
	if col.IsPrimaryKey {
		if err := db.cat.RecordConstraint(tableID, "primary_key", "", col.Name, "", "", "", types.FKNoAction, types.FKNoAction); err != nil {
			return err
		}
	}
	if col.IsUnique {
		if err := db.cat.RecordConstraint(tableID, "unique", "", col.Name, "", "", "", types.FKNoAction, types.FKNoAction); err != nil {
			return err
		}
	}
	if !col.Nullable {
		if err := db.cat.RecordConstraint(tableID, "not_null", "", col.Name, "", "", "", types.FKNoAction, types.FKNoAction); err != nil {
			return err
		}
	}
	if col.IsForeignKey {
		if err := db.cat.RecordConstraint(tableID, "foreign_key", "", col.Name, "", col.RefTable, col.RefColumn, col.OnDelete, col.OnUpdate); err != nil {
			return err
		}
	}
	return nil
}
