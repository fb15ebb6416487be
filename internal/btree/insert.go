package btree

import "github.com/jugadbase/jugadb/internal/types"

// Insert adds key -> id, splitting the root first when it is full
// (spec §4.4: "split-root-first insert"), mirroring
// original_source/src/db/btree.c's btree_insert/btree_insert_nonfull.
// Returns ErrDuplicateKey if key is already present, matching the
// constraint engine's expectation that UNIQUE/PRIMARY KEY lookups are
// answered by this tree (spec §4.7).
func (t *Tree) Insert(key types.ColumnValue, id types.RowID) error {
	if _, found := t.Search(key); found {
		return ErrDuplicateKey
	}

	if t.Root == nil {
		t.Root = newNode(true)
	}

	maxKeys := t.Order - 1
	if len(t.Root.Keys) == maxKeys {
		newRoot := newNode(false)
		newRoot.Children = []*Node{t.Root}
		t.splitChild(newRoot, 0)
		t.Root = newRoot
	}
	t.insertNonFull(t.Root, key, id)
	return nil
}

// splitChild splits parent.Children[index] (a full node) around its
// median key, promoting that key into parent.
func (t *Tree) splitChild(parent *Node, index int) {
	child := parent.Children[index]
	mid := (t.Order - 1) / 2

	sibling := newNode(child.Leaf)
	sibling.Keys = append(sibling.Keys, child.Keys[mid+1:]...)
	sibling.RowIDs = append(sibling.RowIDs, child.RowIDs[mid+1:]...)
	if !child.Leaf {
		sibling.Children = append(sibling.Children, child.Children[mid+1:]...)
	}

	promotedKey := child.Keys[mid]
	promotedID := child.RowIDs[mid]

	child.Keys = child.Keys[:mid]
	child.RowIDs = child.RowIDs[:mid]
	if !child.Leaf {
		child.Children = child.Children[:mid+1]
	}

	parent.Children = append(parent.Children, nil)
	copy(parent.Children[index+2:], parent.Children[index+1:])
	parent.Children[index+1] = sibling

	parent.Keys = append(parent.Keys, types.ColumnValue{})
	copy(parent.Keys[index+1:], parent.Keys[index:])
	parent.Keys[index] = promotedKey

	parent.RowIDs = append(parent.RowIDs, types.RowID{})
	copy(parent.RowIDs[index+1:], parent.RowIDs[index:])
	parent.RowIDs[index] = promotedID
}

// insertNonFull inserts into a node known not to be full, splitting
// any full child before descending into it (spec §4.4).
func (t *Tree) insertNonFull(node *Node, key types.ColumnValue, id types.RowID) {
	if node.Leaf {
		i := len(node.Keys) - 1
		node.Keys = append(node.Keys, types.ColumnValue{})
		node.RowIDs = append(node.RowIDs, types.RowID{})
		for i >= 0 && compareKeys(key, node.Keys[i]) < 0 {
			node.Keys[i+1] = node.Keys[i]
			node.RowIDs[i+1] = node.RowIDs[i]
			i--
		}
		node.Keys[i+1] = key
		node.RowIDs[i+1] = id
		return
	}

	i := len(node.Keys) - 1
	for i >= 0 && compareKeys(key, node.Keys[i]) < 0 {
		i--
	}
	i++

	maxKeys := t.Order - 1
	if len(node.Children[i].Keys) == maxKeys {
		t.splitChild(node, i)
		if compareKeys(key, node.Keys[i]) > 0 {
			i++
		}
	}
	t.insertNonFull(node.Children[i], key, id)
}
