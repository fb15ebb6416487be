package page

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

func TestRowRoundTrip(t *testing.T) {
	schema := schemaFor(
		types.ColumnDefinition{Name: "id", Kind: types.KindSerial, IsPrimaryKey: true},
		types.ColumnDefinition{Name: "name", Kind: types.KindVarchar, VarcharLen: 20},
		types.ColumnDefinition{Name: "balance", Kind: types.KindDouble, Nullable: true},
	)

	row := types.NewRow(schema)
	row.ID = types.RowID{PageID: 1, Slot: 3}
	row.Set(0, types.NewInt(42))
	row.Set(1, types.NewString(types.KindVarchar, "alice"))
	// balance left null

	encoded, err := EncodeRow(row)
	require.NoError(t, err)

	decoded, n, err := DecodeRow(encoded, schema)
	require.NoError(t, err)
	require.Equal(t, len(encoded), n)
	require.Equal(t, row.ID, decoded.ID)
	require.False(t, decoded.Tombstone)
	require.Equal(t, int64(42), decoded.Values[0].Int)
	require.Equal(t, "alice", decoded.Values[1].Str)
	require.True(t, decoded.Nulls[2])
}

func TestRowRoundTripArray(t *testing.T) {
	schema := schemaFor(
		types.ColumnDefinition{Name: "tags", Kind: types.KindVarchar, IsArray: true},
	)
	row := types.NewRow(schema)
	row.Set(0, types.ColumnValue{
		Kind: types.KindVarchar, IsArray: true, ElementKind: types.KindVarchar,
		Elements: []types.ColumnValue{
			types.NewString(types.KindVarchar, "a"),
			types.NewString(types.KindVarchar, "b"),
		},
	})

	encoded, err := EncodeRow(row)
	require.NoError(t, err)
	decoded, _, err := DecodeRow(encoded, schema)
	require.NoError(t, err)
	require.Len(t, decoded.Values[0].Elements, 2)
	require.Equal(t, "a", decoded.Values[0].Elements[0].Str)
	require.Equal(t, "b", decoded.Values[0].Elements[1].Str)
}

func TestPageAppendAndSerializeRoundTrip(t *testing.T) {
	schema := schemaFor(types.ColumnDefinition{Name: "id", Kind: types.KindInt, IsPrimaryKey: true})
	p := New(7, DefaultSize)

	row := types.NewRow(schema)
	row.ID = types.RowID{PageID: 7, Slot: 0}
	row.Set(0, types.NewInt(1))
	encoded, err := EncodeRow(row)
	require.NoError(t, err)

	offset, err := p.Append(encoded)
	require.NoError(t, err)
	require.Equal(t, 0, offset)
	require.EqualValues(t, 1, p.RowCount)

	buf := p.Serialize()
	require.Len(t, buf, DefaultSize)

	reloaded, err := Deserialize(buf)
	require.NoError(t, err)
	require.Equal(t, p.RowCount, reloaded.RowCount)
	require.Equal(t, p.FreeSpace, reloaded.FreeSpace)

	decoded, _, err := DecodeRow(reloaded.Data[offset:], schema)
	require.NoError(t, err)
	require.Equal(t, int64(1), decoded.Values[0].Int)
}

func TestTombstoneMarkedInPlace(t *testing.T) {
	schema := schemaFor(types.ColumnDefinition{Name: "id", Kind: types.KindInt})
	p := New(1, DefaultSize)
	row := types.NewRow(schema)
	row.Set(0, types.NewInt(9))
	encoded, err := EncodeRow(row)
	require.NoError(t, err)
	offset, err := p.Append(encoded)
	require.NoError(t, err)

	require.NoError(t, p.MarkTombstoneAt(offset))
	decoded, _, err := DecodeRow(p.Data[offset:], schema)
	require.NoError(t, err)
	require.True(t, decoded.Tombstone)
}

func TestDeserializeRejectsCorruptFreeSpace(t *testing.T) {
	buf := make([]byte, DefaultSize)
	buf[6] = 0xFF
	buf[7] = 0xFF // free_space larger than capacity
	_, err := Deserialize(buf)
	require.Error(t, err)
}
