package page

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jugadbase/jugadb/internal/types"
)

// EncodeRow serialises a row as: RowID (6 bytes: page_id u32, slot
// u16), total length (2 bytes, high bit is the tombstone flag), null
// bitmap (ceil(cols/8) bytes), a TOAST bitmap of the same width (one
// bit per column, set when that column's value was redirected to
// jb_toast rather than stored inline), then each non-null value in
// column order (spec §4.3, §4.3's TOAST indirection).
func EncodeRow(row *types.Row) ([]byte, error) {
	var body bytes.Buffer
	nullBytes := (len(row.Nulls) + 7) / 8
	bitmap := make([]byte, nullBytes)
	toastmap := make([]byte, nullBytes)
	for i, isNull := range row.Nulls {
		if isNull {
			bitmap[i/8] |= 1 << uint(i%8)
		} else if row.Values[i].IsToast {
			toastmap[i/8] |= 1 << uint(i%8)
		}
	}
	body.Write(bitmap)
	body.Write(toastmap)

	for i, v := range row.Values {
		if row.Nulls[i] {
			continue
		}
		if err := EncodeValue(&body, v); err != nil {
			return nil, fmt.Errorf("page: encode column %d: %w", i, err)
		}
	}

	total := 6 + 2 + body.Len()
	if total > 0x7FFF {
		return nil, fmt.Errorf("page: row too large to encode (%d bytes)", total)
	}

	out := make([]byte, 0, total)
	var head bytes.Buffer
	binary.Write(&head, binary.BigEndian, row.ID.PageID)
	binary.Write(&head, binary.BigEndian, row.ID.Slot)
	length := uint16(6 + 2 + body.Len())
	if row.Tombstone {
		length |= tombstoneBit
	}
	binary.Write(&head, binary.BigEndian, length)
	out = append(out, head.Bytes()...)
	out = append(out, body.Bytes()...)
	return out, nil
}

// SetPhysicalLength rewrites record's length field to physicalLen,
// preserving whatever tombstone bit the record already carries.
// record must be a complete record previously produced by EncodeRow
// (or a slice embedding one at offset 0); physicalLen is the number of
// bytes the record actually occupies in the page, which may exceed the
// record's logical encoded size when a caller has zero-padded it to
// reuse a larger slot (see heap.Heap.Update's in-place overwrite path).
// Since DecodeRow trusts this field — not the number of bytes its
// value decoding actually consumes — to tell callers how far to
// advance past the record, leaving it at the short logical length
// after padding would strand the padding bytes as an undecodable
// "record" the next time the page is scanned.
func SetPhysicalLength(record []byte, physicalLen int) error {
	if len(record) < 8 {
		return fmt.Errorf("page: record shorter than header (%d bytes)", len(record))
	}
	if physicalLen < 8 || physicalLen > 0x7FFF {
		return fmt.Errorf("page: invalid physical length %d", physicalLen)
	}
	lengthField := binary.BigEndian.Uint16(record[6:8])
	tombstone := lengthField & tombstoneBit
	binary.BigEndian.PutUint16(record[6:8], uint16(physicalLen)|tombstone)
	return nil
}

// DecodeRow parses a row previously written by EncodeRow, given the
// schema that describes its column kinds and array-ness. A value whose
// TOAST bit is set decodes to a bare ToastID; reassembling the actual
// chunked value from jb_toast is the engine layer's job (spec §4.3),
// since the row codec has no catalog access.
func DecodeRow(data []byte, schema *types.TableSchema) (*types.Row, int, error) {
	if len(data) < 8 {
		return nil, 0, fmt.Errorf("page: row header truncated")
	}
	var pageID uint32
	var slot uint16
	var lengthField uint16
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.BigEndian, &pageID); err != nil {
		return nil, 0, err
	}
	if err := binary.Read(r, binary.BigEndian, &slot); err != nil {
		return nil, 0, err
	}
	if err := binary.Read(r, binary.BigEndian, &lengthField); err != nil {
		return nil, 0, err
	}
	tombstone := lengthField&tombstoneBit != 0
	length := int(lengthField &^ tombstoneBit)
	if length < 8 || length > len(data) {
		return nil, 0, fmt.Errorf("page: corrupt row length %d", length)
	}

	row := &types.Row{ID: types.RowID{PageID: pageID, Slot: slot}, Tombstone: tombstone}
	n := len(schema.Columns)
	row.Nulls = make([]bool, n)
	row.Values = make([]types.ColumnValue, n)

	nullBytes := (n + 7) / 8
	bitmap := make([]byte, nullBytes)
	if _, err := r.Read(bitmap); err != nil && nullBytes > 0 {
		return nil, 0, fmt.Errorf("page: read null bitmap: %w", err)
	}
	toastmap := make([]byte, nullBytes)
	if _, err := r.Read(toastmap); err != nil && nullBytes > 0 {
		return nil, 0, fmt.Errorf("page: read toast bitmap: %w", err)
	}
	for i := range row.Nulls {
		row.Nulls[i] = bitmap[i/8]&(1<<uint(i%8)) != 0
	}

	for i, col := range schema.Columns {
		if row.Nulls[i] {
			row.Values[i] = types.Null(col.Kind)
			continue
		}
		isToast := toastmap[i/8]&(1<<uint(i%8)) != 0
		v, err := DecodeValue(r, col.Kind, col.IsArray, isToast)
		if err != nil {
			return nil, 0, fmt.Errorf("page: decode column %q: %w", col.Name, err)
		}
		row.Values[i] = v
	}
	row.CachedLen = length
	return row, length, nil
}
