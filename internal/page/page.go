package page

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the on-disk page header: page_id (u32), row_count
// (u16), free_space (u16) — spec §3/§6.
const HeaderSize = 4 + 2 + 2

// Page is one fixed-size unit of buffered row storage (spec §3). Dirty
// and Full are in-memory bookkeeping only, not part of the on-disk
// header.
type Page struct {
	ID        uint32
	Size      int
	RowCount  uint16
	FreeSpace uint16
	Dirty     bool
	Full      bool

	// Data holds every row record back-to-back, in insertion order,
	// starting at offset 0 (the header is stored separately, not
	// inline in Data, simplifying in-place growth).
	Data []byte
}

// New allocates an empty page of the given id/size with all space free.
func New(id uint32, size int) *Page {
	return &Page{
		ID:        id,
		Size:      size,
		FreeSpace: uint16(size - HeaderSize),
		Data:      make([]byte, 0, size-HeaderSize),
	}
}

// Used returns the number of bytes currently occupied by row records.
func (p *Page) Used() int { return len(p.Data) }

// CanFit reports whether a record of the given length fits in the
// page's remaining free space.
func (p *Page) CanFit(recordLen int) bool {
	return int(p.FreeSpace) >= recordLen
}

// Append appends a pre-encoded row record (see EncodeRow) to the page
// and returns its byte offset within Data.
func (p *Page) Append(record []byte) (offset int, err error) {
	if !p.CanFit(len(record)) {
		return 0, fmt.Errorf("page: record of %d bytes does not fit (free=%d)", len(record), p.FreeSpace)
	}
	offset = len(p.Data)
	p.Data = append(p.Data, record...)
	p.RowCount++
	p.FreeSpace -= uint16(len(record))
	p.Dirty = true
	if p.FreeSpace < 16 {
		p.Full = true
	}
	return offset, nil
}

// OverwriteAt replaces the record at offset in place; the caller must
// guarantee len(record) equals the existing record's length (used by
// in-place UPDATE; DELETE uses MarkTombstoneAt).
func (p *Page) OverwriteAt(offset int, record []byte) error {
	if offset < 0 || offset+len(record) > len(p.Data) {
		return fmt.Errorf("page: overwrite out of bounds (offset=%d len=%d pagelen=%d)", offset, len(record), len(p.Data))
	}
	copy(p.Data[offset:offset+len(record)], record)
	p.Dirty = true
	return nil
}

// RecordLengthAt reads the 2-byte length field of the record starting
// at offset, stripping the tombstone bit.
func (p *Page) RecordLengthAt(offset int) (int, error) {
	if offset+8 > len(p.Data) {
		return 0, fmt.Errorf("page: offset %d out of bounds", offset)
	}
	lengthField := binary.BigEndian.Uint16(p.Data[offset+6 : offset+8])
	return int(lengthField &^ tombstoneBit), nil
}

// MarkTombstoneAt sets the tombstone bit of the record at offset
// in-place, without touching the rest of the record.
func (p *Page) MarkTombstoneAt(offset int) error {
	if offset+8 > len(p.Data) {
		return fmt.Errorf("page: offset %d out of bounds", offset)
	}
	lengthField := binary.BigEndian.Uint16(p.Data[offset+6 : offset+8])
	lengthField |= tombstoneBit
	binary.BigEndian.PutUint16(p.Data[offset+6:offset+8], lengthField)
	p.Dirty = true
	return nil
}

// Serialize writes the full page (header + data) to a fixed-size
// buffer of p.Size bytes, zero-padded.
func (p *Page) Serialize() []byte {
	buf := make([]byte, p.Size)
	binary.BigEndian.PutUint32(buf[0:4], p.ID)
	binary.BigEndian.PutUint16(buf[4:6], p.RowCount)
	binary.BigEndian.PutUint16(buf[6:8], p.FreeSpace)
	copy(buf[HeaderSize:], p.Data)
	return buf
}

// Deserialize parses a fixed-size page buffer previously produced by
// Serialize. Returns Corruption-shaped errors when the buffer is
// shorter than the header or the header's free_space exceeds the
// page's data capacity (spec §4.3 failure modes, §7 Corruption).
func Deserialize(buf []byte) (*Page, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("page: buffer shorter than header (%d bytes)", len(buf))
	}
	p := &Page{Size: len(buf)}
	p.ID = binary.BigEndian.Uint32(buf[0:4])
	p.RowCount = binary.BigEndian.Uint16(buf[4:6])
	p.FreeSpace = binary.BigEndian.Uint16(buf[6:8])
	maxData := len(buf) - HeaderSize
	used := maxData - int(p.FreeSpace)
	if used < 0 || used > maxData {
		return nil, fmt.Errorf("page: corrupt free_space %d for page %d", p.FreeSpace, p.ID)
	}
	p.Data = append([]byte(nil), buf[HeaderSize:HeaderSize+used]...)
	if int(p.FreeSpace) < 16 {
		p.Full = true
	}
	return p, nil
}
