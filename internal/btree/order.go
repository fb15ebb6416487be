package btree

import "golang.org/x/sys/unix"

// perKeyOverhead approximates the C struct's { key_size + RowID +
// child pointer } per-slot cost from
// original_source/src/db/btree.c's calculate_btree_order; Go nodes
// hold variable-length keys, so this is a fixed budget rather than a
// sizeof(), tuned to keep orders in the same rough range as the
// original's int-key case.
const perKeyOverhead = 24

// CalculateOrder derives the B-tree order from the filesystem block
// size backing dir, clamped to [4, maxKeysPerNode] (spec §4.4). Falls
// back to a 4096-byte assumption if statfs fails, matching the
// original's fallback.
func CalculateOrder(dir string, maxKeysPerNode int) int {
	blockSize := int64(4096)
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err == nil && st.Bsize > 0 {
		blockSize = int64(st.Bsize)
	}

	order := int(blockSize / perKeyOverhead)
	if order > maxKeysPerNode {
		order = maxKeysPerNode
	}
	if order < 4 {
		order = 4
	}
	return order
}
