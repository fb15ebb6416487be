package catalog

import (
	"testing"

	"github.com/jugadbase/jugadb/internal/types"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(t.TempDir(), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestBootstrapRegistersMetaTables(t *testing.T) {
	c := newTestCatalog(t)
	for _, name := range []string{"jb_tables", "jb_sequences", "jb_attribute", "jb_attrdef", "jb_constraints", "jb_toast"} {
		schema, h, err := c.GetTable(name)
		require.NoError(t, err)
		require.NotNil(t, schema)
		require.NotNil(t, h)
	}

	schema, h, err := c.GetTable("jb_tables")
	require.NoError(t, err)
	var names []string
	require.NoError(t, h.Scan(func(row *types.Row) error {
		names = append(names, row.Values[schema.ColumnIndex("name")].Str)
		return nil
	}))
	require.ElementsMatch(t, []string{"jb_tables", "jb_sequences", "jb_attribute", "jb_attrdef", "jb_constraints", "jb_toast"}, names)
}

func TestCreateTableAssignsIncreasingIDs(t *testing.T) {
	c := newTestCatalog(t)
	s1 := &types.TableSchema{Name: "widgets", Columns: []types.ColumnDefinition{{Name: "id", Kind: types.KindInt, IsPrimaryKey: true}}}
	s1.Recompute()
	require.NoError(t, c.CreateTable(s1))
	require.Equal(t, int64(6), s1.TableID)

	s2 := &types.TableSchema{Name: "gadgets", Columns: []types.ColumnDefinition{{Name: "id", Kind: types.KindInt, IsPrimaryKey: true}}}
	s2.Recompute()
	require.NoError(t, c.CreateTable(s2))
	require.Equal(t, int64(7), s2.TableID)
}

func TestCreateTableDuplicateNameRejected(t *testing.T) {
	c := newTestCatalog(t)
	s := &types.TableSchema{Name: "widgets", Columns: []types.ColumnDefinition{{Name: "id", Kind: types.KindInt}}}
	require.NoError(t, c.CreateTable(s))
	require.ErrorIs(t, c.CreateTable(&types.TableSchema{Name: "widgets"}), ErrDuplicateTable)
}

func TestCreateTableHashCollisionRejected(t *testing.T) {
	c := newTestCatalog(t)
	a := &types.TableSchema{Name: "alpha"}
	require.NoError(t, c.CreateTable(a))

	for i := 0; i < MaxTables+1; i++ {
		b := &types.TableSchema{Name: collidingName(t, "alpha", i)}
		if b.Name == "" {
			continue
		}
		err := c.CreateTable(b)
		if err != nil {
			require.ErrorIs(t, err, ErrDuplicateTable)
			return
		}
	}
}

// collidingName finds a candidate name hashing to the same slot as
// base, or "" if none is found within a small search budget - the
// fixed 256-slot table makes collisions easy to find by brute force.
func collidingName(t *testing.T, base string, salt int) string {
	t.Helper()
	target := slotFor(base)
	for i := 0; i < 5000; i++ {
		candidate := base + string(rune('a'+(i+salt)%26)) + string(rune('0'+(i/26)%10))
		if candidate != base && slotFor(candidate) == target {
			return candidate
		}
	}
	return ""
}

func TestSequenceNextValIncrementsAndCycles(t *testing.T) {
	c := newTestCatalog(t)
	id, err := c.CreateSequence("widgets_id_seq", 0, 1, 0, 2, true)
	require.NoError(t, err)

	v, err := c.NextVal(id)
	require.NoError(t, err)
	require.Equal(t, int64(1), v)

	v, err = c.NextVal(id)
	require.NoError(t, err)
	require.Equal(t, int64(2), v)

	v, err = c.NextVal(id)
	require.NoError(t, err)
	require.Equal(t, int64(0), v, "should cycle back to min_value")
}

func TestSequenceExhaustedWithoutCycle(t *testing.T) {
	c := newTestCatalog(t)
	id, err := c.CreateSequence("no_cycle_seq", 0, 1, 0, 1, false)
	require.NoError(t, err)

	_, err = c.NextVal(id)
	require.NoError(t, err)
	_, err = c.NextVal(id)
	require.ErrorIs(t, err, ErrSequenceExhausted)
}

func TestReopenReloadsSchemaFile(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, Options{})
	require.NoError(t, err)

	s := &types.TableSchema{Name: "widgets", Columns: []types.ColumnDefinition{{Name: "id", Kind: types.KindInt, IsPrimaryKey: true}}}
	require.NoError(t, c.CreateTable(s))
	require.NoError(t, c.Close())

	reopened, err := Open(dir, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	schema, _, err := reopened.GetTable("widgets")
	require.NoError(t, err)
	require.Equal(t, "widgets", schema.Name)
	require.Len(t, schema.Columns, 1)
}
