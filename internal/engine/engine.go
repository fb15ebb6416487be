// Package engine implements the executor described in spec §4.6: it
// owns one Database (catalog, buffer pools, B-tree indexes, WAL),
// dispatches a parsed parser.Command to the CREATE/ALTER/INSERT/
// SELECT/UPDATE/DELETE handler for its Kind, and carries a
// depth-bounded re-entrant `execInternal` entry point (no executor
// path calls it: default-expression parsing, CHECK evaluation and
// meta-table access go through the parser and catalog directly). Grounded on the teacher's internal/decision
// package's `Storage` interface shape (a narrow collaborator interface
// rather than a god object) and cmd/bd/main.go's command-dispatch
// idiom, generalised from a CLI's subcommand switch to a SQL command
// switch.
package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jugadbase/jugadb/internal/btree"
	"github.com/jugadbase/jugadb/internal/catalog"
	"github.com/jugadbase/jugadb/internal/dblog"
	"github.com/jugadbase/jugadb/internal/dbconfig"
	"github.com/jugadbase/jugadb/internal/eval"
	"github.com/jugadbase/jugadb/internal/heap"
	"github.com/jugadbase/jugadb/internal/parser"
	"github.com/jugadbase/jugadb/internal/types"
	"github.com/jugadbase/jugadb/internal/wal"
)

// Result is spec §6's ExecutionResult: a row count, an optional
// message, the projected rows, and the column aliases shared by every
// row in the set.
type Result struct {
	Code         int
	Message      string
	RowsAffected int64
	Rows         [][]types.ColumnValue
	Aliases      []string
}

// Options configures Open. Clock and Rand are injected so NOW()/RAND()
// are reproducible in tests (spec §4.6 evaluation rules); both default
// to the real wall clock / math/rand.
type Options struct {
	Sink  dblog.Sink
	Clock func() time.Time
	Rand  func() float64
}

// Database is the opened handle spec §3 describes: a root directory,
// the self-hosted catalog, one btree.Manager per table, the WAL, and
// the re-entrancy bookkeeping spec §5/§9 require.
type Database struct {
	dir  string
	cfg  dbconfig.StorageConfig
	log  dblog.Sink
	cat  *catalog.Catalog
	wal  *wal.WAL
	clock func() time.Time
	rand  func() float64

	mu      sync.Mutex
	trees   map[string]*btree.Manager // table name -> its index manager
	readOnly bool // set once a Corruption error is observed (spec §7)

	reentrancy int // depth of nested execInternal calls (spec §9)

	toastSeqID int64 // jb_sequences id backing jb_toast.toast_id allocation
}

// Open opens (bootstrapping if necessary) the database rooted at dir,
// creating the on-disk layout spec §6 describes.
func Open(dir string, opts Options) (*Database, error) {
	if opts.Sink == nil {
		opts.Sink = dblog.NewSlogSink(dbconfig.ParseLevel(dbconfig.DefaultLoggingConfig().Level))
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}

	for _, sub := range []string{"tables", "logs", "backups", "config"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("engine: create %s: %w", sub, err)
		}
	}

	cfg, err := dbconfig.LoadStorageConfig(dir)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Open(filepath.Join(dir, "tables"), catalog.Options{
		PageSize: cfg.PageSize,
		PoolSize: cfg.PoolSize,
		Sink:     opts.Sink,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: open catalog: %w", err)
	}

	w, err := wal.Open(filepath.Join(dir, "db.wal"), opts.Sink)
	if err != nil {
		cat.Close()
		return nil, fmt.Errorf("engine: open wal: %w", err)
	}

	db := &Database{
		dir:   dir,
		cfg:   cfg,
		log:   opts.Sink,
		cat:   cat,
		wal:   w,
		clock: opts.Clock,
		rand:  opts.Rand,
		trees: make(map[string]*btree.Manager),
	}

	if err := db.rebuildIndexes(); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.ensureToastSequence(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// rebuildIndexes ensures every PRIMARY KEY/UNIQUE/INDEX column of every
// already-registered table has a resident (or lazily loadable)
// btree.Manager entry, and that a from-scratch table whose index file
// doesn't exist yet gets one created from a full heap scan (covers a
// database that crashed between CREATE TABLE's schema write and its
// first insert).
func (db *Database) rebuildIndexes() error {
	for _, name := range db.cat.TableNames() {
		schema, h, err := db.cat.GetTable(name)
		if err != nil {
			return err
		}
		mgr := db.indexManagerFor(name)
		created := false
		for _, col := range schema.Columns {
			if !indexedColumn(col) {
				continue
			}
			if _, err := mgr.Get(col.Name); err != nil {
				mgr.Create(col.Name, col.Kind, uint32(schema.TableID))
				created = true
			}
		}
		if !created {
			continue
		}
		if err := h.Scan(func(row *types.Row) error {
			return db.insertIndexEntries(schema, row, row.ID)
		}); err != nil {
			return err
		}
	}
	return nil
}

func indexedColumn(col types.ColumnDefinition) bool {
	return (col.IsPrimaryKey || col.IsUnique || col.IsIndex) && !col.IsArray
}

// indexManagerFor returns (creating if necessary) the btree.Manager
// rooted at table's directory.
func (db *Database) indexManagerFor(table string) *btree.Manager {
	db.mu.Lock()
	defer db.mu.Unlock()
	if m, ok := db.trees[table]; ok {
		return m
	}
	m := btree.NewManager(db.cat.TableDir(table), db.cfg.BTreeLifetimeThreshold, db.log)
	db.trees[table] = m
	return m
}

// Close flushes and closes every open resource.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	var firstErr error
	for _, m := range db.trees {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := db.wal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := db.cat.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Checkpoint flushes every table's buffer pool and truncates the WAL
// (spec §4.3/§4.9 explicit checkpoint).
func (db *Database) Checkpoint() error {
	for _, name := range db.cat.TableNames() {
		_, h, err := db.cat.GetTable(name)
		if err != nil {
			return err
		}
		if err := h.Checkpoint(); err != nil {
			return err
		}
	}
	return db.wal.Checkpoint()
}

// schemaLookup adapts the catalog to parser.SchemaLookup.
func (db *Database) schemaLookup(name string) (*types.TableSchema, bool) {
	schema, _, err := db.cat.GetTable(name)
	if err != nil {
		return nil, false
	}
	return schema, true
}

// Exec is the top-level, externally callable entry point (spec §1's
// "the core consumes strings and returns result sets"). It refuses to
// run anything once the database has gone read-only after a
// Corruption error (spec §7).
func (db *Database) Exec(sql string) (*Result, error) {
	if db.readOnly {
		return nil, fmt.Errorf("engine: %w: database is read-only after a prior corruption error", ErrCorruption)
	}
	res, err := db.run(sql)
	if err != nil && (errors.Is(err, ErrCorruption) || errors.Is(err, heap.ErrCorruption)) {
		return nil, db.markReadOnly(err)
	}
	return res, err
}

// execInternal is the re-entrant API spec §9 names explicitly
// (engine.exec_internal(sql)): it compiles a SQL string and runs it
// through the same dispatcher a top-level statement uses, failing once
// nesting exceeds CascadeDepthLimit. No executor path calls it; the
// executor reads its meta-tables through catalog primitives and
// re-parses stored DEFAULT/CHECK text with parser.New directly.
func (db *Database) execInternal(sql string) (*Result, error) {
	db.reentrancy++
	defer func() { db.reentrancy-- }()
	if db.reentrancy > db.cfg.CascadeDepthLimit {
		return nil, fmt.Errorf("engine: %w: re-entrant execInternal depth exceeded %d", ErrCascadeCycle, db.cfg.CascadeDepthLimit)
	}
	return db.run(sql)
}

func (db *Database) run(sql string) (*Result, error) {
	p := parser.New(sql, db.schemaLookup)
	cmd, err := p.ParseStatement()
	if err != nil {
		return nil, err
	}
	return db.dispatch(cmd)
}

func (db *Database) dispatch(cmd *parser.Command) (*Result, error) {
	switch cmd.Kind {
	case parser.CmdCreate:
		return db.executeCreate(cmd)
	case parser.CmdAlter:
		return db.executeAlter(cmd)
	case parser.CmdInsert:
		return db.executeInsert(cmd)
	case parser.CmdSelect:
		return db.executeSelect(cmd)
	case parser.CmdUpdate:
		return db.executeUpdate(cmd)
	case parser.CmdDelete:
		return db.executeDelete(cmd)
	default:
		return nil, fmt.Errorf("engine: unhandled command kind %v", cmd.Kind)
	}
}

// evalCtx builds an eval.Context over row using the engine's injected
// clock/PRNG.
func (db *Database) evalCtx(row *types.Row) *eval.Context {
	return &eval.Context{
		Row: row,
		Now: func() types.Timestamp { return types.Timestamp(db.clock().UnixMicro()) },
		Rand: db.rand,
	}
}

func (db *Database) markReadOnly(err error) error {
	db.log.Error(dblog.CategoryExec, "marking database read-only: %v", err)
	db.readOnly = true
	return err
}
