package heap

import (
	"fmt"
	"os"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/jugadbase/jugadb/internal/dblog"
	"github.com/jugadbase/jugadb/internal/page"
	"github.com/jugadbase/jugadb/internal/types"
)

// headerSize is the 8-byte next-row-id counter at the start of rows.db
// (spec §4.3/§6).
const headerSize = 8

// Heap is the on-disk paged row store for one table: rows.db plus the
// resident buffer pool described in spec §3/§4.3's BufferPool contract.
//
// Note on spec invariant 4: the spec states free_space equals capacity
// minus the size of non-tombstoned rows. Taken literally that would let
// a deleted row's bytes be reused by a later insert, i.e. compaction —
// which spec.md's Lifecycle section explicitly rules out ("pages are
// never shrunk... vacuum is out of scope"). This implementation
// resolves that tension (documented in DESIGN.md) by tracking
// FreeSpace as physical remaining page capacity: it only ever
// decreases, and tombstoned row bytes are never reclaimed until a
// vacuum (not implemented) runs.
type Heap struct {
	dir       string
	path      string
	file      *os.File
	pageSize  int
	poolSize  int
	schema    *types.TableSchema
	sink      dblog.Sink

	mu        sync.Mutex
	nextRowID uint64
	pool      []*page.Page // resident pages, pool[i] pinned iff pinned[pool[i].ID] > 0
	pinned    map[uint32]int
	lru       []uint32 // most-recently-used last
	fileSize  int64    // number of pages currently in rows.db
}

// Options configures a Heap at Open time.
type Options struct {
	PageSize int
	PoolSize int
	Sink     dblog.Sink
}

// Open opens (creating if necessary) <dir>/rows.db for schema.
func Open(dir string, schema *types.TableSchema, opts Options) (*Heap, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = page.DefaultSize
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 32
	}
	if opts.Sink == nil {
		opts.Sink = dblog.Discard
	}

	path := dir + "/rows.db"
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("heap: open %s: %w: %v", path, ErrIO, err)
	}

	h := &Heap{
		dir: dir, path: path, file: f,
		pageSize: opts.PageSize, poolSize: opts.PoolSize,
		schema: schema, sink: opts.Sink,
		pinned: make(map[uint32]int),
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("heap: stat %s: %w: %v", path, ErrIO, err)
	}
	if info.Size() == 0 {
		if err := h.writeHeader(0); err != nil {
			f.Close()
			return nil, err
		}
		h.fileSize = 0
	} else {
		hdr := make([]byte, headerSize)
		if _, err := f.ReadAt(hdr, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("heap: read header %s: %w: %v", path, ErrIO, err)
		}
		h.nextRowID = beUint64(hdr)
		h.fileSize = (info.Size() - headerSize) / int64(h.pageSize)
	}

	return h, nil
}

func beUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func putUint64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func (h *Heap) writeHeader(next uint64) error {
	_, err := h.file.WriteAt(putUint64(next), 0)
	if err != nil {
		return fmt.Errorf("heap: write header %s: %w: %v", h.path, ErrIO, err)
	}
	return nil
}

// Close flushes every dirty resident page and closes the underlying
// file (spec §4.3: "flush on engine shutdown").
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.flushAllLocked(); err != nil {
		return err
	}
	return h.file.Close()
}

// Checkpoint flushes every dirty resident page without closing the
// heap (spec §4.3: "flush on ... explicit checkpoint").
func (h *Heap) Checkpoint() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.flushAllLocked()
}

func (h *Heap) flushAllLocked() error {
	for _, p := range h.pool {
		if p != nil && p.Dirty {
			if err := h.flushPageLocked(p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Heap) flushPageLocked(p *page.Page) error {
	op := func() error {
		offset := headerSize + int64(p.ID)*int64(h.pageSize)
		buf := p.Serialize()
		_, err := h.file.WriteAt(buf, offset)
		return err
	}
	if err := backoff.Retry(op, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)); err != nil {
		return fmt.Errorf("heap: flush page %d: %w: %v", p.ID, ErrIO, err)
	}
	p.Dirty = false
	h.sink.Debug(dblog.CategoryStorage, "flushed page %d (%d bytes)", p.ID, h.pageSize)
	return nil
}

func (h *Heap) readPageFromDisk(id uint32) (*page.Page, error) {
	offset := headerSize + int64(id)*int64(h.pageSize)
	buf := make([]byte, h.pageSize)
	var n int
	op := func() error {
		var err error
		n, err = h.file.ReadAt(buf, offset)
		return err
	}
	_ = backoff.Retry(op, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3))
	if n != h.pageSize {
		return nil, fmt.Errorf("heap: short read for page %d: %w", id, ErrIO)
	}
	p, err := page.Deserialize(buf)
	if err != nil {
		return nil, fmt.Errorf("heap: page %d: %w: %v", id, ErrCorruption, err)
	}
	return p, nil
}

// touchLRU moves id to the most-recently-used end.
func (h *Heap) touchLRU(id uint32) {
	for i, v := range h.lru {
		if v == id {
			h.lru = append(h.lru[:i], h.lru[i+1:]...)
			break
		}
	}
	h.lru = append(h.lru, id)
}

func (h *Heap) findResidentLocked(id uint32) *page.Page {
	for _, p := range h.pool {
		if p != nil && p.ID == id {
			return p
		}
	}
	return nil
}

// GetPage returns a pinned reference to the given page, loading it from
// disk if not resident, evicting the least-recently-pinned unpinned
// page if the pool is full (spec §4.3 buffer pool contract).
func (h *Heap) GetPage(id uint32) (*page.Page, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.getPageLocked(id)
}

func (h *Heap) getPageLocked(id uint32) (*page.Page, error) {
	if p := h.findResidentLocked(id); p != nil {
		h.touchLRU(id)
		h.pinned[id]++
		return p, nil
	}
	if int64(id) >= h.fileSize {
		return nil, fmt.Errorf("heap: page %d: %w", id, ErrNotFound)
	}
	p, err := h.readPageFromDisk(id)
	if err != nil {
		return nil, err
	}
	if err := h.admitLocked(p); err != nil {
		return nil, err
	}
	h.pinned[id]++
	return p, nil
}

// Unpin releases a pin acquired by GetPage/MakeRoomFor.
func (h *Heap) Unpin(id uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pinned[id] > 0 {
		h.pinned[id]--
	}
}

// admitLocked inserts p into the pool, evicting the least-recently-used
// unpinned page first if the pool is at capacity.
func (h *Heap) admitLocked(p *page.Page) error {
	if len(h.pool) < h.poolSize {
		h.pool = append(h.pool, p)
		h.touchLRU(p.ID)
		return nil
	}
	for _, victimID := range h.lru {
		if h.pinned[victimID] > 0 {
			continue
		}
		for i, resident := range h.pool {
			if resident != nil && resident.ID == victimID {
				if resident.Dirty {
					if err := h.flushPageLocked(resident); err != nil {
						return err
					}
				}
				h.pool[i] = p
				h.removeFromLRU(victimID)
				h.touchLRU(p.ID)
				return nil
			}
		}
	}
	return fmt.Errorf("heap: buffer pool exhausted, every resident page is pinned")
}

func (h *Heap) removeFromLRU(id uint32) {
	for i, v := range h.lru {
		if v == id {
			h.lru = append(h.lru[:i], h.lru[i+1:]...)
			return
		}
	}
}

// MakeRoomFor returns a page with at least rowSize bytes of free space,
// allocating and appending a fresh page to the file if no resident or
// on-disk page has room (spec §4.3: make_room_for).
func (h *Heap) MakeRoomFor(rowSize int) (*page.Page, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, p := range h.pool {
		if p != nil && !p.Full && p.CanFit(rowSize) {
			h.touchLRU(p.ID)
			h.pinned[p.ID]++
			return p, nil
		}
	}
	for pid := int64(0); pid < h.fileSize; pid++ {
		if h.findResidentLocked(uint32(pid)) != nil {
			continue
		}
		p, err := h.readPageFromDisk(uint32(pid))
		if err != nil {
			return nil, err
		}
		if p.CanFit(rowSize) {
			if err := h.admitLocked(p); err != nil {
				return nil, err
			}
			h.pinned[p.ID]++
			return p, nil
		}
	}

	newID := uint32(h.fileSize)
	if int64(newID)*int64(h.pageSize) > (1<<40) {
		return nil, fmt.Errorf("heap: %w", ErrOutOfSpace)
	}
	p := page.New(newID, h.pageSize)
	if !p.CanFit(rowSize) {
		return nil, fmt.Errorf("heap: row of %d bytes exceeds page capacity: %w", rowSize, ErrOutOfSpace)
	}
	h.fileSize++
	if err := h.admitLocked(p); err != nil {
		return nil, err
	}
	h.pinned[p.ID]++
	h.sink.Info(dblog.CategoryStorage, "allocated page %d for %s (file now %s)",
		newID, h.path, humanize.IBytes(uint64(h.fileSize)*uint64(h.pageSize)+headerSize))
	return p, nil
}

// nextRowSlot assigns the next row-slot number from the file-header
// counter (spec §4.3: "allocate a RowId from the file header counter"),
// truncated into the 16-bit Slot field. See DESIGN.md's note on
// RowID.Slot for why slots, not row_count, carry row identity.
func (h *Heap) nextRowSlot() uint16 {
	h.nextRowID++
	return uint16(h.nextRowID)
}

// Insert serialises row, places it in a page with enough room, and
// returns the row's freshly assigned RowID (spec §4.3 Insert).
func (h *Heap) Insert(row *types.Row) (types.RowID, error) {
	h.mu.Lock()
	slot := h.nextRowSlot()
	if err := h.writeHeader(h.nextRowID); err != nil {
		h.mu.Unlock()
		return types.RowID{}, err
	}
	h.mu.Unlock()

	// RowID.PageID is only known once MakeRoomFor picks a page, so the
	// row is encoded twice: once to measure its length, once with the
	// final RowID baked in.
	probe := row.Clone()
	probe.ID = types.RowID{PageID: 0, Slot: slot}
	encoded, err := pageEncode(probe)
	if err != nil {
		return types.RowID{}, err
	}

	p, err := h.MakeRoomFor(len(encoded))
	if err != nil {
		return types.RowID{}, err
	}
	defer h.Unpin(p.ID)

	row.ID = types.RowID{PageID: p.ID, Slot: slot}
	final, err := pageEncode(row)
	if err != nil {
		return types.RowID{}, err
	}

	h.mu.Lock()
	_, err = p.Append(final)
	h.mu.Unlock()
	if err != nil {
		return types.RowID{}, fmt.Errorf("heap: insert: %w: %v", ErrOutOfSpace, err)
	}
	return row.ID, nil
}

func pageEncode(row *types.Row) ([]byte, error) {
	return encodeRowFn(row)
}

// encodeRowFn is a package-level indirection over page.EncodeRow so
// tests can substitute it; production code always uses the real codec
// (defaultEncodeRow in codec.go).
var encodeRowFn = defaultEncodeRow
