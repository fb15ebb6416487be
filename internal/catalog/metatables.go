package catalog

import "github.com/jugadbase/jugadb/internal/types"

// Bootstrap table ids are fixed, matching
// original_source/src/db/kernel/schema.c's find_table hardcoding
// jb_tables to 0 and jb_attribute to 2 rather than looking them up
// (the catalog can't look up its own location).
const (
	TableIDTables      = 0
	TableIDSequences   = 1
	TableIDAttribute   = 2
	TableIDAttrDef     = 3
	TableIDConstraints = 4
	TableIDToast       = 5
)

func col(name string, kind types.Kind, ordinal int, nullable bool) types.ColumnDefinition {
	return types.ColumnDefinition{Name: name, Kind: kind, Ordinal: ordinal, Nullable: nullable}
}

// jbTablesSchema is `jb_tables`: one row per user (and meta) table
// (spec §4.5).
func jbTablesSchema() *types.TableSchema {
	s := &types.TableSchema{
		Name:    "jb_tables",
		TableID: TableIDTables,
		Columns: []types.ColumnDefinition{
			{Name: "id", Kind: types.KindSerial, Ordinal: 0, Nullable: false, IsPrimaryKey: true, HasSequence: true},
			{Name: "name", Kind: types.KindText, Ordinal: 1, Nullable: false},
			{Name: "database_name", Kind: types.KindText, Ordinal: 2, Nullable: true},
			{Name: "owner", Kind: types.KindText, Ordinal: 3, Nullable: true, HasDefault: true, DefaultExpr: "'sudo'"},
			{Name: "created_at", Kind: types.KindTimestamp, Ordinal: 4, Nullable: true},
		},
	}
	s.Recompute()
	return s
}

// jbSequencesSchema is `jb_sequences`: one row per SERIAL column's
// backing counter (spec §4.5).
func jbSequencesSchema() *types.TableSchema {
	s := &types.TableSchema{
		Name:    "jb_sequences",
		TableID: TableIDSequences,
		Columns: []types.ColumnDefinition{
			{Name: "id", Kind: types.KindSerial, Ordinal: 0, Nullable: false, IsPrimaryKey: true, HasSequence: true},
			col("name", types.KindText, 1, true),
			col("current_value", types.KindInt, 2, false),
			col("increment_by", types.KindInt, 3, false),
			col("min_value", types.KindInt, 4, true),
			col("max_value", types.KindInt, 5, true),
			col("cycle", types.KindBool, 6, false),
		},
	}
	s.Recompute()
	return s
}

// jbAttributeSchema is `jb_attribute`: one row per column of every
// user table (spec §4.5).
func jbAttributeSchema() *types.TableSchema {
	s := &types.TableSchema{
		Name:    "jb_attribute",
		TableID: TableIDAttribute,
		Columns: []types.ColumnDefinition{
			{Name: "id", Kind: types.KindSerial, Ordinal: 0, Nullable: false, IsPrimaryKey: true, HasSequence: true},
			col("table_id", types.KindInt, 1, false),
			col("column_name", types.KindText, 2, false),
			col("data_type", types.KindInt, 3, false),
			col("ordinal_position", types.KindInt, 4, false),
			col("is_nullable", types.KindBool, 5, false),
			col("has_default", types.KindBool, 6, false),
			col("has_constraints", types.KindBool, 7, false),
			col("created_at", types.KindTimestamp, 8, true),
		},
	}
	s.Recompute()
	return s
}

// jbAttrDefSchema is `jb_attrdef`: default expressions stored as
// re-parseable text (spec §4.5, §4.6).
func jbAttrDefSchema() *types.TableSchema {
	s := &types.TableSchema{
		Name:    "jb_attrdef",
		TableID: TableIDAttrDef,
		Columns: []types.ColumnDefinition{
			{Name: "id", Kind: types.KindSerial, Ordinal: 0, Nullable: false, IsPrimaryKey: true, HasSequence: true},
			col("table_id", types.KindInt, 1, false),
			col("column_name", types.KindText, 2, false),
			col("default_expr", types.KindText, 3, false),
			col("created_at", types.KindTimestamp, 4, true),
		},
	}
	s.Recompute()
	return s
}

// jbConstraintsSchema is `jb_constraints`: one row per declared
// NOT NULL/UNIQUE/PRIMARY KEY/CHECK/FOREIGN KEY constraint, keyed by
// table_id (spec §4.7). Not tabulated among spec §4.5's four
// meta-tables but required by §4.7's "stored in jb_constraints, keyed
// by table_id" - bootstrapped alongside the other four.
func jbConstraintsSchema() *types.TableSchema {
	s := &types.TableSchema{
		Name:    "jb_constraints",
		TableID: TableIDConstraints,
		Columns: []types.ColumnDefinition{
			{Name: "id", Kind: types.KindSerial, Ordinal: 0, Nullable: false, IsPrimaryKey: true, HasSequence: true},
			col("table_id", types.KindInt, 1, false),
			col("kind", types.KindText, 2, false),
			col("name", types.KindText, 3, true),
			col("column_name", types.KindText, 4, false),
			col("check_expr", types.KindText, 5, true),
			col("ref_table", types.KindText, 6, true),
			col("ref_column", types.KindText, 7, true),
			col("on_delete", types.KindText, 8, true),
			col("on_update", types.KindText, 9, true),
		},
	}
	s.Recompute()
	return s
}

// jbToastSchema is `jb_toast`: chunked storage for oversized
// VARCHAR/TEXT/JSON/BLOB values redirected out of their owning page
// (spec §3, §4.3: "the actual chunks live as rows in the bootstrap
// jb_toast table"). Chunks of one oversized value share a toast_id and
// are ordered by chunk_index so internal/engine can reassemble them.
func jbToastSchema() *types.TableSchema {
	s := &types.TableSchema{
		Name:    "jb_toast",
		TableID: TableIDToast,
		Columns: []types.ColumnDefinition{
			{Name: "id", Kind: types.KindSerial, Ordinal: 0, Nullable: false, IsPrimaryKey: true, HasSequence: true},
			col("toast_id", types.KindUint, 1, false),
			col("chunk_index", types.KindInt, 2, false),
			col("chunk_data", types.KindBlob, 3, false),
		},
	}
	s.Recompute()
	return s
}

// bootstrapSchemas returns the six meta-tables in fixed id order,
// mirroring original_source/src/db/kernel/schema.c's
// bootstrap_core_tables (jb_constraints and jb_toast are bootstrapped
// alongside the four meta-tables spec §4.5 tabulates — see
// DESIGN.md).
func bootstrapSchemas() []*types.TableSchema {
	return []*types.TableSchema{
		jbTablesSchema(),
		jbSequencesSchema(),
		jbAttributeSchema(),
		jbAttrDefSchema(),
		jbConstraintsSchema(),
		jbToastSchema(),
	}
}
