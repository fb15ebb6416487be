package btree

import "github.com/jugadbase/jugadb/internal/types"

// Search walks the tree for key, returning the pointer stored beside
// it. Mirrors original_source/src/db/btree.c's btree_search.
func (t *Tree) Search(key types.ColumnValue) (types.RowID, bool) {
	node := t.Root
	for node != nil {
		i := 0
		for i < len(node.Keys) && compareKeys(key, node.Keys[i]) > 0 {
			i++
		}
		if i < len(node.Keys) && compareKeys(key, node.Keys[i]) == 0 {
			return node.RowIDs[i], true
		}
		if node.Leaf {
			break
		}
		node = node.Children[i]
	}
	return types.ZeroRowID, false
}

// InOrder calls visit with every (key, rowID) pair in ascending key
// order, stopping early once visit returns false.
func (t *Tree) InOrder(visit func(key types.ColumnValue, id types.RowID) bool) {
	if t.Root == nil {
		return
	}
	inOrderNode(t.Root, visit)
}

func inOrderNode(n *Node, visit func(types.ColumnValue, types.RowID) bool) bool {
	for i := 0; i < len(n.Keys); i++ {
		if !n.Leaf {
			if !inOrderNode(n.Children[i], visit) {
				return false
			}
		}
		if !visit(n.Keys[i], n.RowIDs[i]) {
			return false
		}
	}
	if !n.Leaf {
		if !inOrderNode(n.Children[len(n.Keys)], visit) {
			return false
		}
	}
	return true
}
