package wal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jugadbase/jugadb/internal/types"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*WAL, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.wal")
	w, err := Open(path, nil)
	require.NoError(t, err)
	return w, path
}

func TestAppendAssignsIncreasingLSN(t *testing.T) {
	w, _ := openTemp(t)
	defer w.Close()

	tx := w.NextTxID()
	r1, err := w.Append(tx, ActionInsert, 10, types.RowID{PageID: 0, Slot: 1}, nil, []byte("after1"), time.Unix(0, 0))
	require.NoError(t, err)
	r2, err := w.Append(tx, ActionUpdate, 10, types.RowID{PageID: 0, Slot: 1}, []byte("before2"), []byte("after2"), time.Unix(0, 0))
	require.NoError(t, err)

	require.Equal(t, uint64(1), r1.LSN)
	require.Equal(t, uint64(2), r2.LSN)
	require.Equal(t, tx, r1.TxID)
	require.Equal(t, tx, r2.TxID)
}

func TestReplayAppliesInLSNOrder(t *testing.T) {
	w, _ := openTemp(t)
	defer w.Close()

	tx := w.NextTxID()
	_, err := w.Append(tx, ActionInsert, 1, types.RowID{PageID: 0, Slot: 1}, nil, []byte("a"), time.Unix(0, 0))
	require.NoError(t, err)
	_, err = w.Append(tx, ActionInsert, 1, types.RowID{PageID: 0, Slot: 2}, nil, []byte("b"), time.Unix(0, 0))
	require.NoError(t, err)
	_, err = w.Append(tx, ActionDelete, 1, types.RowID{PageID: 0, Slot: 1}, []byte("a"), nil, time.Unix(0, 0))
	require.NoError(t, err)

	var seen []uint64
	err = w.Replay(func(rec Record) error {
		seen = append(seen, rec.LSN)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3}, seen)
}

func TestReopenContinuesLSNSequence(t *testing.T) {
	w, path := openTemp(t)
	tx := w.NextTxID()
	_, err := w.Append(tx, ActionInsert, 1, types.RowID{PageID: 0, Slot: 1}, nil, []byte("a"), time.Unix(0, 0))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w2, err := Open(path, nil)
	require.NoError(t, err)
	defer w2.Close()

	tx2 := w2.NextTxID()
	require.Equal(t, uint64(2), tx2) // reopen recovers the high-water mark from the log, not a reset counter
	r, err := w2.Append(tx2, ActionInsert, 1, types.RowID{PageID: 0, Slot: 2}, nil, []byte("b"), time.Unix(0, 0))
	require.NoError(t, err)
	require.Equal(t, uint64(2), r.LSN)
}

func TestCheckpointTruncatesLog(t *testing.T) {
	w, path := openTemp(t)
	defer w.Close()

	tx := w.NextTxID()
	_, err := w.Append(tx, ActionInsert, 1, types.RowID{PageID: 0, Slot: 1}, nil, []byte("a"), time.Unix(0, 0))
	require.NoError(t, err)

	require.NoError(t, w.Checkpoint())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Zero(t, info.Size())

	var seen int
	require.NoError(t, w.Replay(func(Record) error { seen++; return nil }))
	require.Zero(t, seen)

	r, err := w.Append(tx, ActionInsert, 1, types.RowID{PageID: 0, Slot: 2}, nil, []byte("c"), time.Unix(0, 0))
	require.NoError(t, err)
	require.Equal(t, uint64(1), r.LSN)
}

func TestReplayToleratesTornTrailingRecord(t *testing.T) {
	w, path := openTemp(t)
	tx := w.NextTxID()
	_, err := w.Append(tx, ActionInsert, 1, types.RowID{PageID: 0, Slot: 1}, nil, []byte("a"), time.Unix(0, 0))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0, 0, 0, 100, 1, 2, 3}) // claims 100 more bytes, supplies 3
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w2, err := Open(path, nil)
	require.NoError(t, err)
	defer w2.Close()

	var seen []uint64
	err = w2.Replay(func(rec Record) error {
		seen = append(seen, rec.LSN)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, seen)
}
