package heap

import (
	"testing"

	"github.com/jugadbase/jugadb/internal/types"
	"github.com/stretchr/testify/require"
)

func schemaFor(cols ...types.ColumnDefinition) *types.TableSchema {
	s := &types.TableSchema{Name: "t", Columns: cols}
	s.Recompute()
	return s
}

func openHeap(t *testing.T, schema *types.TableSchema) *Heap {
	t.Helper()
	dir := t.TempDir()
	h, err := Open(dir, schema, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, h.Close()) })
	return h
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	schema := schemaFor(
		types.ColumnDefinition{Name: "id", Kind: types.KindSerial, IsPrimaryKey: true},
		types.ColumnDefinition{Name: "name", Kind: types.KindVarchar, VarcharLen: 20},
	)
	h := openHeap(t, schema)

	row := types.NewRow(schema)
	row.Set(0, types.NewInt(1))
	row.Set(1, types.NewString(types.KindVarchar, "alice"))

	id, err := h.Insert(row)
	require.NoError(t, err)
	require.False(t, id.IsZero())

	got, err := h.Get(id)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.Values[0].Int)
	require.Equal(t, "alice", got.Values[1].Str)
}

func TestDeleteTombstonesRow(t *testing.T) {
	schema := schemaFor(types.ColumnDefinition{Name: "id", Kind: types.KindInt})
	h := openHeap(t, schema)

	row := types.NewRow(schema)
	row.Set(0, types.NewInt(7))
	id, err := h.Insert(row)
	require.NoError(t, err)

	require.NoError(t, h.Delete(id))
	_, err = h.Get(id)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateInPlaceWhenSameSize(t *testing.T) {
	schema := schemaFor(types.ColumnDefinition{Name: "n", Kind: types.KindInt})
	h := openHeap(t, schema)

	row := types.NewRow(schema)
	row.Set(0, types.NewInt(1))
	id, err := h.Insert(row)
	require.NoError(t, err)

	updated := types.NewRow(schema)
	updated.Set(0, types.NewInt(2))
	newID, err := h.Update(id, updated)
	require.NoError(t, err)
	require.Equal(t, id, newID)

	got, err := h.Get(id)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Values[0].Int)
}

func TestUpdateInPlaceShrinkLeavesLaterRowsScannable(t *testing.T) {
	schema := schemaFor(
		types.ColumnDefinition{Name: "id", Kind: types.KindInt},
		types.ColumnDefinition{Name: "s", Kind: types.KindVarchar, VarcharLen: 64},
	)
	h := openHeap(t, schema)

	first := types.NewRow(schema)
	first.Set(0, types.NewInt(1))
	first.Set(1, types.NewString(types.KindVarchar, "a much longer original string"))
	firstID, err := h.Insert(first)
	require.NoError(t, err)

	second := types.NewRow(schema)
	second.Set(0, types.NewInt(2))
	second.Set(1, types.NewString(types.KindVarchar, "second row"))
	secondID, err := h.Insert(second)
	require.NoError(t, err)

	shrunk := types.NewRow(schema)
	shrunk.Set(0, types.NewInt(1))
	shrunk.Set(1, types.NewString(types.KindVarchar, "short"))
	newFirstID, err := h.Update(firstID, shrunk)
	require.NoError(t, err)
	require.Equal(t, firstID, newFirstID)

	got, err := h.Get(firstID)
	require.NoError(t, err)
	require.Equal(t, "short", got.Values[1].Str)

	gotSecond, err := h.Get(secondID)
	require.NoError(t, err)
	require.Equal(t, int64(2), gotSecond.Values[0].Int)
	require.Equal(t, "second row", gotSecond.Values[1].Str)

	var seen []int64
	err = h.Scan(func(r *types.Row) error {
		seen = append(seen, r.Values[0].Int)
		return nil
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 2}, seen)
}

func TestUpdateRelocatesWhenLarger(t *testing.T) {
	schema := schemaFor(types.ColumnDefinition{Name: "s", Kind: types.KindVarchar, VarcharLen: 64})
	h := openHeap(t, schema)

	row := types.NewRow(schema)
	row.Set(0, types.NewString(types.KindVarchar, "a"))
	id, err := h.Insert(row)
	require.NoError(t, err)

	updated := types.NewRow(schema)
	updated.Set(0, types.NewString(types.KindVarchar, "a much longer replacement string value"))
	newID, err := h.Update(id, updated)
	require.NoError(t, err)
	require.NotEqual(t, id, newID)

	_, err = h.Get(id)
	require.ErrorIs(t, err, ErrNotFound)

	got, err := h.Get(newID)
	require.NoError(t, err)
	require.Equal(t, "a much longer replacement string value", got.Values[0].Str)
}

func TestScanSkipsTombstones(t *testing.T) {
	schema := schemaFor(types.ColumnDefinition{Name: "id", Kind: types.KindInt})
	h := openHeap(t, schema)

	var ids []types.RowID
	for i := 0; i < 5; i++ {
		row := types.NewRow(schema)
		row.Set(0, types.NewInt(int64(i)))
		id, err := h.Insert(row)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, h.Delete(ids[2]))

	var seen []int64
	err := h.Scan(func(r *types.Row) error {
		seen = append(seen, r.Values[0].Int)
		return nil
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{0, 1, 3, 4}, seen)
}

func TestMakeRoomForAllocatesNewPageWhenFull(t *testing.T) {
	schema := schemaFor(types.ColumnDefinition{Name: "s", Kind: types.KindVarchar, VarcharLen: 4000})
	h := openHeap(t, schema)

	big := make([]byte, 3000)
	for i := range big {
		big[i] = 'x'
	}
	var lastPage uint32
	for i := 0; i < 4; i++ {
		row := types.NewRow(schema)
		row.Set(0, types.NewString(types.KindVarchar, string(big)))
		id, err := h.Insert(row)
		require.NoError(t, err)
		lastPage = id.PageID
	}
	require.Greater(t, lastPage, uint32(0))
}

func TestReopenPersistsNextRowIDCounter(t *testing.T) {
	schema := schemaFor(types.ColumnDefinition{Name: "id", Kind: types.KindInt})
	dir := t.TempDir()

	h1, err := Open(dir, schema, Options{})
	require.NoError(t, err)
	row := types.NewRow(schema)
	row.Set(0, types.NewInt(1))
	id1, err := h1.Insert(row)
	require.NoError(t, err)
	require.NoError(t, h1.Close())

	h2, err := Open(dir, schema, Options{})
	require.NoError(t, err)
	defer h2.Close()
	row2 := types.NewRow(schema)
	row2.Set(0, types.NewInt(2))
	id2, err := h2.Insert(row2)
	require.NoError(t, err)
	require.NotEqual(t, id1.Slot, id2.Slot)
}
