package btree

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jugadbase/jugadb/internal/page"
	"github.com/jugadbase/jugadb/internal/types"
)

// Persistence format mirrors original_source/src/db/btree.c's
// save_btree/load_btree: a fixed header (tree id, order, key type)
// followed by a preorder node dump. Node values are encoded with
// internal/page's value codec rather than the original's fixed
// key_size_for_type buffers, since ColumnValue already owns a
// variable-length wire encoding shared with row storage.
type header struct {
	ID      uint32
	Order   int64
	KeyKind uint8
}

// Save writes the tree's id, order, key type and a preorder node dump.
func (t *Tree) Save(w io.Writer, id uint32) error {
	bw := bufio.NewWriter(w)
	h := header{ID: id, Order: int64(t.Order), KeyKind: uint8(t.KeyKind)}
	if err := binary.Write(bw, binary.LittleEndian, h.ID); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, h.Order); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, h.KeyKind); err != nil {
		return err
	}
	if err := saveNode(bw, t.Root, t.KeyKind); err != nil {
		return err
	}
	return bw.Flush()
}

func saveNode(w *bufio.Writer, n *Node, keyKind types.Kind) error {
	present := n != nil
	if err := binary.Write(w, binary.LittleEndian, present); err != nil {
		return err
	}
	if !present {
		return nil
	}
	if err := binary.Write(w, binary.LittleEndian, n.Leaf); err != nil {
		return err
	}
	numKeys := uint32(len(n.Keys))
	if err := binary.Write(w, binary.LittleEndian, numKeys); err != nil {
		return err
	}
	var buf bytes.Buffer
	for i := 0; i < len(n.Keys); i++ {
		buf.Reset()
		if err := page.EncodeValue(&buf, n.Keys[i]); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(buf.Len())); err != nil {
			return err
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, n.RowIDs[i].PageID); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, n.RowIDs[i].Slot); err != nil {
			return err
		}
	}
	if !n.Leaf {
		for _, c := range n.Children {
			if err := saveNode(w, c, keyKind); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads a tree previously written by Save, returning its stored
// id alongside the reconstructed tree.
func Load(r io.Reader) (*Tree, uint32, error) {
	br := bufio.NewReader(r)
	var h header
	if err := binary.Read(br, binary.LittleEndian, &h.ID); err != nil {
		return nil, 0, err
	}
	if err := binary.Read(br, binary.LittleEndian, &h.Order); err != nil {
		return nil, 0, err
	}
	if err := binary.Read(br, binary.LittleEndian, &h.KeyKind); err != nil {
		return nil, 0, err
	}
	keyKind := types.Kind(h.KeyKind)
	root, err := loadNode(br, keyKind)
	if err != nil {
		return nil, 0, err
	}
	return &Tree{Order: int(h.Order), KeyKind: keyKind, Root: root}, h.ID, nil
}

func loadNode(r *bufio.Reader, keyKind types.Kind) (*Node, error) {
	var present bool
	if err := binary.Read(r, binary.LittleEndian, &present); err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	n := &Node{}
	if err := binary.Read(r, binary.LittleEndian, &n.Leaf); err != nil {
		return nil, err
	}
	var numKeys uint32
	if err := binary.Read(r, binary.LittleEndian, &numKeys); err != nil {
		return nil, err
	}
	n.Keys = make([]types.ColumnValue, numKeys)
	n.RowIDs = make([]types.RowID, numKeys)
	for i := uint32(0); i < numKeys; i++ {
		var vlen uint32
		if err := binary.Read(r, binary.LittleEndian, &vlen); err != nil {
			return nil, err
		}
		raw := make([]byte, vlen)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, err
		}
		v, err := page.DecodeValue(bytes.NewReader(raw), keyKind, false, false)
		if err != nil {
			return nil, fmt.Errorf("btree: decode key %d: %w", i, err)
		}
		n.Keys[i] = v
		if err := binary.Read(r, binary.LittleEndian, &n.RowIDs[i].PageID); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &n.RowIDs[i].Slot); err != nil {
			return nil, err
		}
	}
	if !n.Leaf {
		n.Children = make([]*Node, numKeys+1)
		for i := range n.Children {
			c, err := loadNode(r, keyKind)
			if err != nil {
				return nil, err
			}
			n.Children[i] = c
		}
	}
	return n, nil
}
