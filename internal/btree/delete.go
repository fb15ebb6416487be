package btree

import "github.com/jugadbase/jugadb/internal/types"

// minKeys is the pre-emptive-rebalancing threshold: a non-root node
// must never be allowed to drop below this many keys while we
// descend, so borrow/merge happens on the way down rather than after
// the fact (spec §4.4), matching
// original_source/src/db/btree.c's `(order + 1) / 2` threshold.
func (t *Tree) minKeys() int {
	return (t.Order + 1) / 2
}

// Delete removes key, returning ErrNotFound if it is absent.
func (t *Tree) Delete(key types.ColumnValue) error {
	if t.Root == nil {
		return ErrNotFound
	}
	found := t.deleteFrom(t.Root, key)
	if !found {
		return ErrNotFound
	}
	if len(t.Root.Keys) == 0 {
		if !t.Root.Leaf {
			t.Root = t.Root.Children[0]
		} else {
			t.Root = nil
		}
	}
	return nil
}

func (t *Tree) deleteFrom(node *Node, key types.ColumnValue) bool {
	idx := 0
	for idx < len(node.Keys) && compareKeys(key, node.Keys[idx]) > 0 {
		idx++
	}

	if idx < len(node.Keys) && compareKeys(key, node.Keys[idx]) == 0 {
		if node.Leaf {
			removeAt(node, idx)
			return true
		}
		return t.deleteInternal(node, idx)
	}

	if node.Leaf {
		return false
	}

	lastChild := idx == len(node.Keys)
	if len(node.Children[idx].Keys) < t.minKeys() {
		t.rebalance(node, idx)
		if lastChild && idx > len(node.Keys) {
			idx--
		}
	}
	return t.deleteFrom(node.Children[idx], key)
}

// deleteInternal handles deletion of a key stored in an internal
// node: replace it with its predecessor or successor (borrowed from
// whichever child subtree has enough keys to spare), or merge the two
// children when neither does.
func (t *Tree) deleteInternal(node *Node, idx int) bool {
	pred := node.Children[idx]
	if len(pred.Keys) >= t.minKeys() {
		predKey, predID := predecessor(pred)
		node.Keys[idx] = predKey
		node.RowIDs[idx] = predID
		return t.deleteFrom(pred, predKey)
	}

	succ := node.Children[idx+1]
	if len(succ.Keys) >= t.minKeys() {
		succKey, succID := successor(succ)
		node.Keys[idx] = succKey
		node.RowIDs[idx] = succID
		return t.deleteFrom(succ, succKey)
	}

	mergedKey := node.Keys[idx]
	mergeChildren(node, idx)
	return t.deleteFrom(pred, mergedKey)
}

func predecessor(n *Node) (types.ColumnValue, types.RowID) {
	for !n.Leaf {
		n = n.Children[len(n.Children)-1]
	}
	return n.Keys[len(n.Keys)-1], n.RowIDs[len(n.RowIDs)-1]
}

func successor(n *Node) (types.ColumnValue, types.RowID) {
	for !n.Leaf {
		n = n.Children[0]
	}
	return n.Keys[0], n.RowIDs[0]
}

func removeAt(node *Node, idx int) {
	node.Keys = append(node.Keys[:idx], node.Keys[idx+1:]...)
	node.RowIDs = append(node.RowIDs[:idx], node.RowIDs[idx+1:]...)
}

// mergeChildren folds parent.Children[idx], the separator key at
// parent.Keys[idx], and parent.Children[idx+1] into a single node.
func mergeChildren(parent *Node, idx int) {
	left := parent.Children[idx]
	right := parent.Children[idx+1]

	left.Keys = append(left.Keys, parent.Keys[idx])
	left.RowIDs = append(left.RowIDs, parent.RowIDs[idx])
	left.Keys = append(left.Keys, right.Keys...)
	left.RowIDs = append(left.RowIDs, right.RowIDs...)
	if !left.Leaf {
		left.Children = append(left.Children, right.Children...)
	}

	parent.Keys = append(parent.Keys[:idx], parent.Keys[idx+1:]...)
	parent.RowIDs = append(parent.RowIDs[:idx], parent.RowIDs[idx+1:]...)
	parent.Children = append(parent.Children[:idx+1], parent.Children[idx+2:]...)
}

// rebalance ensures parent.Children[idx] has at least minKeys before
// a descent into it, by borrowing a key from an adjacent sibling that
// can spare one, or merging with one when neither can (spec §4.4).
func (t *Tree) rebalance(parent *Node, idx int) {
	child := parent.Children[idx]

	if idx > 0 && len(parent.Children[idx-1].Keys) >= t.minKeys() {
		left := parent.Children[idx-1]

		child.Keys = append([]types.ColumnValue{parent.Keys[idx-1]}, child.Keys...)
		child.RowIDs = append([]types.RowID{parent.RowIDs[idx-1]}, child.RowIDs...)
		if !child.Leaf {
			lastChild := left.Children[len(left.Children)-1]
			child.Children = append([]*Node{lastChild}, child.Children...)
			left.Children = left.Children[:len(left.Children)-1]
		}

		parent.Keys[idx-1] = left.Keys[len(left.Keys)-1]
		parent.RowIDs[idx-1] = left.RowIDs[len(left.RowIDs)-1]
		left.Keys = left.Keys[:len(left.Keys)-1]
		left.RowIDs = left.RowIDs[:len(left.RowIDs)-1]
		return
	}

	if idx < len(parent.Keys) && len(parent.Children[idx+1].Keys) >= t.minKeys() {
		right := parent.Children[idx+1]

		child.Keys = append(child.Keys, parent.Keys[idx])
		child.RowIDs = append(child.RowIDs, parent.RowIDs[idx])
		if !child.Leaf {
			child.Children = append(child.Children, right.Children[0])
			right.Children = right.Children[1:]
		}

		parent.Keys[idx] = right.Keys[0]
		parent.RowIDs[idx] = right.RowIDs[0]
		right.Keys = right.Keys[1:]
		right.RowIDs = right.RowIDs[1:]
		return
	}

	if idx < len(parent.Keys) {
		mergeChildren(parent, idx)
	} else {
		mergeChildren(parent, idx-1)
	}
}

