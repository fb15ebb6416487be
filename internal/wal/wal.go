// Package wal implements the outline write-ahead log described in spec
// §4.9: internal/engine appends one record to db.wal for each row an
// INSERT/UPDATE/DELETE changes, right after that change has been
// applied to the table's buffer pool; the record is not written ahead
// of the in-memory change. Grounded on
// original_source/src/db/kernel/wal.c for the record shape and on the
// teacher's internal/storage package for the retried-file-IO idiom
// (here via github.com/cenkalti/backoff/v4, the same library
// internal/heap uses for page flush/read retries).
//
// Recovery is best-effort, as spec §1/§9 allow: Replay walks the log in
// LSN order and hands each well-formed record to a caller-supplied
// apply function, stopping (without error) at the first short or
// checksum-mismatched record, since a torn trailing write is the
// expected shape of an unclean shutdown rather than corruption to
// reject the whole log over. internal/engine does not call Replay when
// a database is opened.
package wal

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jugadbase/jugadb/internal/dblog"
	"github.com/jugadbase/jugadb/internal/types"
)

// Action identifies the kind of mutation a Record describes.
type Action uint8

const (
	ActionInsert Action = iota
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "INSERT"
	case ActionUpdate:
		return "UPDATE"
	case ActionDelete:
		return "DELETE"
	default:
		return fmt.Sprintf("ACTION(%d)", uint8(a))
	}
}

// Record is one WAL entry (spec §4.9: "{ lsn, txid, timestamp, action,
// table_id, payload_size, payload }"). Before holds the pre-image
// (needed to undo UPDATE/DELETE); After holds the post-image (needed to
// redo INSERT/UPDATE). Either may be nil depending on Action.
type Record struct {
	LSN       uint64
	TxID      uint64
	Timestamp int64 // unix micros
	Action    Action
	TableID   int64
	RowID     types.RowID
	Before    []byte
	After     []byte
}

// WAL is an append-only log file rooted at one path (spec §6: db.wal at
// the database root).
type WAL struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	sink    dblog.Sink
	nextLSN uint64
	txID    uint64
}

// Open opens (creating if absent) the log file at path. It does not
// replay; callers that want crash recovery call Replay explicitly
// before issuing new statements.
func Open(path string, sink dblog.Sink) (*WAL, error) {
	if sink == nil {
		sink = dblog.Discard
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	w := &WAL{path: path, file: f, sink: sink, nextLSN: 1, txID: 0}
	if lsn, txid, err := scanForHighWaterMark(f); err == nil {
		w.nextLSN = lsn
		w.txID = txid
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// scanForHighWaterMark reads every well-formed record once to recover
// the next LSN/txid to hand out after a reopen, without applying
// anything.
func scanForHighWaterMark(f *os.File) (nextLSN, txID uint64, err error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 1, 0, err
	}
	r := bufio.NewReader(f)
	nextLSN, txID = 1, 0
	for {
		rec, ok, err := readRecord(r)
		if err != nil || !ok {
			break
		}
		if rec.LSN >= nextLSN {
			nextLSN = rec.LSN + 1
		}
		if rec.TxID > txID {
			txID = rec.TxID
		}
	}
	return nextLSN, txID, nil
}

// NextTxID advances and returns the WAL's monotonic transaction-id
// counter (spec §5: "a monotonic transaction-id counter advances with
// each WAL write"). Called once per top-level statement, not per
// internal re-entrant call.
func (w *WAL) NextTxID() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.txID++
	return w.txID
}

// Append writes one record and fsyncs it before returning, retrying
// transient IoErrors with bounded backoff the way internal/heap retries
// page flush/read.
func (w *WAL) Append(txID uint64, action Action, tableID int64, rowID types.RowID, before, after []byte, now time.Time) (Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec := Record{
		LSN:       w.nextLSN,
		TxID:      txID,
		Timestamp: now.UnixMicro(),
		Action:    action,
		TableID:   tableID,
		RowID:     rowID,
		Before:    before,
		After:     after,
	}
	buf := encodeRecord(rec)

	op := func() error {
		if _, err := w.file.Write(buf); err != nil {
			return err
		}
		return w.file.Sync()
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(op, bo); err != nil {
		w.sink.Error(dblog.CategoryWAL, "append lsn=%d failed after retries: %v", rec.LSN, err)
		return Record{}, fmt.Errorf("wal: append: %w", err)
	}
	w.nextLSN++
	return rec, nil
}

// Replay walks every well-formed record from the start of the log in
// LSN order, calling apply for each. It stops silently (returning nil)
// at the first short read or checksum mismatch, treating a torn
// trailing write as the normal residue of an unclean shutdown rather
// than a fatal Corruption (spec §4.9, §9: "implementers must make
// replay idempotent").
func (w *WAL) Replay(apply func(Record) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wal: seek for replay: %w", err)
	}
	defer w.file.Seek(0, io.SeekEnd)

	r := bufio.NewReader(w.file)
	count := 0
	for {
		rec, ok, err := readRecord(r)
		if err != nil {
			w.sink.Warn(dblog.CategoryWAL, "replay stopped at a torn record after %d applied: %v", count, err)
			return nil
		}
		if !ok {
			break
		}
		if err := apply(rec); err != nil {
			return fmt.Errorf("wal: apply lsn=%d: %w", rec.LSN, err)
		}
		count++
	}
	w.sink.Info(dblog.CategoryWAL, "replay applied %d record(s)", count)
	return nil
}

// Checkpoint truncates the log to empty. Callers must have already
// durably flushed every table's buffer pool (spec §4.3's explicit
// checkpoint) before calling this, since the log no longer holds a redo
// path for anything written before the truncation.
func (w *WAL) Checkpoint() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("wal: checkpoint truncate: %w", err)
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	w.nextLSN = 1
	return nil
}

// Close flushes and closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// encodeRecord serialises rec as: total length (u32, covers everything
// that follows including the checksum), lsn, txid, timestamp, action,
// table_id, row_id (page_id+slot), before (u32-length-prefixed), after
// (u32-length-prefixed), crc32 over the body. The leading length lets
// Replay detect a torn write at EOF without scanning byte-by-byte.
func encodeRecord(rec Record) []byte {
	var body bytes.Buffer
	binary.Write(&body, binary.BigEndian, rec.LSN)
	binary.Write(&body, binary.BigEndian, rec.TxID)
	binary.Write(&body, binary.BigEndian, rec.Timestamp)
	body.WriteByte(byte(rec.Action))
	binary.Write(&body, binary.BigEndian, rec.TableID)
	binary.Write(&body, binary.BigEndian, rec.RowID.PageID)
	binary.Write(&body, binary.BigEndian, rec.RowID.Slot)
	binary.Write(&body, binary.BigEndian, uint32(len(rec.Before)))
	body.Write(rec.Before)
	binary.Write(&body, binary.BigEndian, uint32(len(rec.After)))
	body.Write(rec.After)

	sum := crc32.ChecksumIEEE(body.Bytes())

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(body.Len()+4))
	out.Write(body.Bytes())
	binary.Write(&out, binary.BigEndian, sum)
	return out.Bytes()
}

// readRecord reads one record framed by encodeRecord. ok is false only
// on a clean EOF at a record boundary; a non-nil err (including a short
// read mid-record) signals a torn tail.
func readRecord(r *bufio.Reader) (Record, bool, error) {
	var total uint32
	if err := binary.Read(r, binary.BigEndian, &total); err != nil {
		if err == io.EOF {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	if total < 4 {
		return Record{}, false, fmt.Errorf("wal: implausible record length %d", total)
	}
	buf := make([]byte, total)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Record{}, false, fmt.Errorf("wal: short record body: %w", err)
	}

	body := buf[:len(buf)-4]
	wantSum := binary.BigEndian.Uint32(buf[len(buf)-4:])
	if crc32.ChecksumIEEE(body) != wantSum {
		return Record{}, false, fmt.Errorf("wal: checksum mismatch")
	}

	br := bytes.NewReader(body)
	var rec Record
	if err := binary.Read(br, binary.BigEndian, &rec.LSN); err != nil {
		return Record{}, false, err
	}
	if err := binary.Read(br, binary.BigEndian, &rec.TxID); err != nil {
		return Record{}, false, err
	}
	if err := binary.Read(br, binary.BigEndian, &rec.Timestamp); err != nil {
		return Record{}, false, err
	}
	actionByte, err := br.ReadByte()
	if err != nil {
		return Record{}, false, err
	}
	rec.Action = Action(actionByte)
	if err := binary.Read(br, binary.BigEndian, &rec.TableID); err != nil {
		return Record{}, false, err
	}
	if err := binary.Read(br, binary.BigEndian, &rec.RowID.PageID); err != nil {
		return Record{}, false, err
	}
	if err := binary.Read(br, binary.BigEndian, &rec.RowID.Slot); err != nil {
		return Record{}, false, err
	}
	var beforeLen uint32
	if err := binary.Read(br, binary.BigEndian, &beforeLen); err != nil {
		return Record{}, false, err
	}
	rec.Before = make([]byte, beforeLen)
	if _, err := io.ReadFull(br, rec.Before); err != nil {
		return Record{}, false, err
	}
	var afterLen uint32
	if err := binary.Read(br, binary.BigEndian, &afterLen); err != nil {
		return Record{}, false, err
	}
	rec.After = make([]byte, afterLen)
	if _, err := io.ReadFull(br, rec.After); err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}
