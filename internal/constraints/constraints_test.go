package constraints

import (
	"testing"

	"github.com/jugadbase/jugadb/internal/types"
	"github.com/stretchr/testify/require"
)

func testSchema() *types.TableSchema {
	s := &types.TableSchema{
		Name: "widgets",
		Columns: []types.ColumnDefinition{
			{Name: "id", Kind: types.KindInt, IsPrimaryKey: true},
			{Name: "sku", Kind: types.KindText, IsUnique: true, Nullable: true},
			{Name: "name", Kind: types.KindText, Nullable: false},
			{Name: "price", Kind: types.KindInt, Nullable: true},
		},
	}
	s.Recompute()
	return s
}

func rowOf(schema *types.TableSchema, id int64, sku, name string, price int64) *types.Row {
	row := types.NewRow(schema)
	row.Set(0, types.NewInt(id))
	if sku != "" {
		row.Set(1, types.NewString(types.KindText, sku))
	}
	row.Set(2, types.NewString(types.KindText, name))
	row.Set(3, types.NewInt(price))
	return row
}

func TestNotNullViolation(t *testing.T) {
	schema := testSchema()
	c := &Checker{Schema: schema}
	row := rowOf(schema, 1, "a1", "", 100)
	row.Nulls[2] = true // clear required "name"

	err := c.Validate(row, types.ZeroRowID)
	require.Error(t, err)
	var cv *ConstraintViolation
	require.ErrorAs(t, err, &cv)
	require.Equal(t, "not_null", cv.Kind)
}

func TestPrimaryKeyNullRejected(t *testing.T) {
	schema := testSchema()
	c := &Checker{Schema: schema}
	row := rowOf(schema, 0, "a1", "Widget", 100)
	row.Nulls[0] = true

	err := c.Validate(row, types.ZeroRowID)
	var cv *ConstraintViolation
	require.ErrorAs(t, err, &cv)
	require.Equal(t, "primary_key", cv.Kind)
}

type fakeIndex struct {
	entries map[int64]types.RowID
}

func (f *fakeIndex) Search(key types.ColumnValue) (types.RowID, bool) {
	id, ok := f.entries[key.Int]
	return id, ok
}

func TestPrimaryKeyDuplicateViaIndex(t *testing.T) {
	schema := testSchema()
	idx := &fakeIndex{entries: map[int64]types.RowID{1: {PageID: 1, Slot: 1}}}
	c := &Checker{Schema: schema, Indexes: map[string]UniqueIndex{"id": idx}}

	row := rowOf(schema, 1, "a2", "Widget", 100)
	err := c.Validate(row, types.ZeroRowID)
	var cv *ConstraintViolation
	require.ErrorAs(t, err, &cv)
	require.Equal(t, "primary_key", cv.Kind)
}

func TestPrimaryKeyAllowsSelfOnUpdate(t *testing.T) {
	schema := testSchema()
	existing := types.RowID{PageID: 1, Slot: 1}
	idx := &fakeIndex{entries: map[int64]types.RowID{1: existing}}
	c := &Checker{Schema: schema, Indexes: map[string]UniqueIndex{"id": idx}}

	row := rowOf(schema, 1, "a2", "Widget", 100)
	require.NoError(t, c.Validate(row, existing))
}

func TestUniqueColumnViaScan(t *testing.T) {
	schema := testSchema()
	c := &Checker{
		Schema: schema,
		ScanUnique: func(columns []string, values []types.ColumnValue, exclude types.RowID) (bool, error) {
			return columns[0] == "sku" && values[0].Str == "dup", nil
		},
	}
	row := rowOf(schema, 1, "dup", "Widget", 100)
	err := c.Validate(row, types.ZeroRowID)
	var cv *ConstraintViolation
	require.ErrorAs(t, err, &cv)
	require.Equal(t, "unique", cv.Kind)
}

func TestCheckConstraintEvaluated(t *testing.T) {
	schema := testSchema()
	c := &Checker{
		Schema: schema,
		Checks: []CheckDef{{Name: "price_positive", ExprText: "price > 0"}},
	}
	bad := rowOf(schema, 1, "a1", "Widget", -5)
	err := c.Validate(bad, types.ZeroRowID)
	var cv *ConstraintViolation
	require.ErrorAs(t, err, &cv)
	require.Equal(t, "check", cv.Kind)

	good := rowOf(schema, 1, "a1", "Widget", 5)
	require.NoError(t, c.Validate(good, types.ZeroRowID))
}

func TestForeignKeyResolved(t *testing.T) {
	schema := testSchema()
	schema.Columns = append(schema.Columns, types.ColumnDefinition{
		Name: "category_id", Kind: types.KindInt, Nullable: true,
		IsForeignKey: true, RefTable: "categories", RefColumn: "id",
	})
	schema.Recompute()

	calls := 0
	c := &Checker{
		Schema: schema,
		ResolveFK: func(refTable, refColumn string, key types.ColumnValue) (bool, error) {
			calls++
			return key.Int == 7, nil
		},
	}

	row := types.NewRow(schema)
	row.Set(0, types.NewInt(1))
	row.Set(2, types.NewString(types.KindText, "Widget"))
	row.Set(4, types.NewInt(7))
	require.NoError(t, c.Validate(row, types.ZeroRowID))
	require.Equal(t, 1, calls)

	row.Set(4, types.NewInt(99))
	err := c.Validate(row, types.ZeroRowID)
	var cv *ConstraintViolation
	require.ErrorAs(t, err, &cv)
	require.Equal(t, "foreign_key", cv.Kind)
}

func TestForeignKeyNullSkipped(t *testing.T) {
	schema := testSchema()
	schema.Columns = append(schema.Columns, types.ColumnDefinition{
		Name: "category_id", Kind: types.KindInt, Nullable: true,
		IsForeignKey: true, RefTable: "categories", RefColumn: "id",
	})
	schema.Recompute()

	c := &Checker{
		Schema: schema,
		ResolveFK: func(refTable, refColumn string, key types.ColumnValue) (bool, error) {
			t.Fatal("ResolveFK should not be called for a null FK column")
			return false, nil
		},
	}
	row := types.NewRow(schema)
	row.Set(0, types.NewInt(1))
	row.Set(2, types.NewString(types.KindText, "Widget"))
	require.NoError(t, c.Validate(row, types.ZeroRowID))
}
