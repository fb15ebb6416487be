// Package btree implements the primary-key B-tree index described in
// spec §4.4: one tree per indexed column, keyed by a types.ColumnValue
// and pointing at the heap's types.RowID. Modeled on
// original_source/src/db/btree.c's node shape and split/merge
// algorithms, expressed as Go structs and methods the way the
// teacher's internal/query package structures typed nodes with small
// single-purpose methods, and persisted/cached the way
// internal/storage/ephemeral/store.go manages its own file-backed
// state under an explicit lifecycle.
package btree

import (
	"fmt"

	"github.com/jugadbase/jugadb/internal/types"
)

// Node is one B-tree node. Keys[i] pairs with RowIDs[i]; for internal
// nodes, Children[i] holds keys less than Keys[i] and Children[i+1]
// holds keys greater, mirroring original_source/src/db/btree.c's
// BTreeNode.
type Node struct {
	Leaf     bool
	Keys     []types.ColumnValue
	RowIDs   []types.RowID
	Children []*Node
}

// Tree is a single-column B-tree index, order computed once at
// creation from the configured max keys per node (spec §4.4:
// "order derived from the OS block size, clamped to [4, MaxKeysPerNode]").
type Tree struct {
	Order   int
	KeyKind types.Kind
	Root    *Node
}

// NewTree creates an empty tree over keyKind with the given order.
func NewTree(keyKind types.Kind, order int) *Tree {
	if order < 4 {
		order = 4
	}
	return &Tree{Order: order, KeyKind: keyKind}
}

func newNode(leaf bool) *Node {
	return &Node{Leaf: leaf}
}

// ErrDuplicateKey is returned by Insert when the key already exists;
// callers enforcing UNIQUE/PRIMARY KEY treat this as a constraint
// violation (spec §4.4, §4.7).
var ErrDuplicateKey = fmt.Errorf("btree: duplicate key")

// ErrNotFound is returned by Delete when the key is absent.
var ErrNotFound = fmt.Errorf("btree: key not found")
