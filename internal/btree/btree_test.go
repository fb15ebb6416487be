package btree

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/jugadbase/jugadb/internal/types"
	"github.com/stretchr/testify/require"
)

func TestInsertAndSearch(t *testing.T) {
	tree := NewTree(types.KindInt, 4)
	for i := int64(0); i < 50; i++ {
		err := tree.Insert(types.NewInt(i), types.RowID{PageID: uint32(i), Slot: 1})
		require.NoError(t, err)
	}
	for i := int64(0); i < 50; i++ {
		id, ok := tree.Search(types.NewInt(i))
		require.True(t, ok)
		require.Equal(t, uint32(i), id.PageID)
	}
	_, ok := tree.Search(types.NewInt(999))
	require.False(t, ok)
}

func TestInsertDuplicateRejected(t *testing.T) {
	tree := NewTree(types.KindInt, 4)
	require.NoError(t, tree.Insert(types.NewInt(1), types.RowID{PageID: 1}))
	require.ErrorIs(t, tree.Insert(types.NewInt(1), types.RowID{PageID: 2}), ErrDuplicateKey)
}

func TestDeleteRebalances(t *testing.T) {
	tree := NewTree(types.KindInt, 4)
	n := 100
	for i := 0; i < n; i++ {
		require.NoError(t, tree.Insert(types.NewInt(int64(i)), types.RowID{PageID: uint32(i)}))
	}

	r := rand.New(rand.NewSource(1))
	order := r.Perm(n)
	for _, i := range order {
		require.NoError(t, tree.Delete(types.NewInt(int64(i))))
		_, ok := tree.Search(types.NewInt(int64(i)))
		require.False(t, ok)
	}
	require.Nil(t, tree.Root)
}

func TestDeleteNotFound(t *testing.T) {
	tree := NewTree(types.KindInt, 4)
	require.ErrorIs(t, tree.Delete(types.NewInt(5)), ErrNotFound)
}

func TestInOrderTraversal(t *testing.T) {
	tree := NewTree(types.KindInt, 4)
	vals := []int64{5, 3, 8, 1, 4, 7, 9, 2, 6}
	for _, v := range vals {
		require.NoError(t, tree.Insert(types.NewInt(v), types.RowID{PageID: uint32(v)}))
	}
	var got []int64
	tree.InOrder(func(k types.ColumnValue, id types.RowID) bool {
		got = append(got, k.Int)
		return true
	})
	require.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tree := NewTree(types.KindVarchar, 4)
	for _, s := range []string{"apple", "banana", "cherry", "date", "fig"} {
		require.NoError(t, tree.Insert(types.NewString(types.KindVarchar, s), types.RowID{PageID: 1}))
	}

	var buf bytes.Buffer
	require.NoError(t, tree.Save(&buf, 42))

	loaded, id, err := Load(&buf)
	require.NoError(t, err)
	require.Equal(t, uint32(42), id)
	require.Equal(t, tree.Order, loaded.Order)

	_, ok := loaded.Search(types.NewString(types.KindVarchar, "cherry"))
	require.True(t, ok)
	_, ok = loaded.Search(types.NewString(types.KindVarchar, "missing"))
	require.False(t, ok)
}

func TestCompareKeysTypeDirected(t *testing.T) {
	require.Equal(t, -1, compareKeys(types.NewInt(1), types.NewInt(2)))
	require.Equal(t, 0, compareKeys(types.NewBool(true), types.NewBool(true)))
	require.Equal(t, 1, compareKeys(types.NewString(types.KindText, "b"), types.NewString(types.KindText, "a")))
}
