// Package catalog implements the self-hosted system catalog: the six
// jb_* meta-tables that describe every table (including themselves),
// the on-disk schema file at the catalog root, and the
// per-table heap.Heap lifecycle. Grounded on
// original_source/src/db/kernel/schema.c.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jugadbase/jugadb/internal/dblog"
	"github.com/jugadbase/jugadb/internal/heap"
	"github.com/jugadbase/jugadb/internal/types"
)

// ErrDuplicateTable is returned when CreateTable names a table that
// already exists, or whose name hashes into a slot already occupied by
// a different table (spec §3: "hash collisions are not resolved").
var ErrDuplicateTable = fmt.Errorf("catalog: duplicate table")

// ErrTableNotFound is returned by GetTable/DropTable for an unknown
// name.
var ErrTableNotFound = fmt.Errorf("catalog: table not found")

// Options configures heap.Heap instances opened for user and
// meta-tables alike.
type Options struct {
	PageSize int
	PoolSize int
	Sink     dblog.Sink
}

// Catalog owns every table's schema and its open heap.Heap, plus the
// on-disk schema file recording the table-name -> id mapping.
type Catalog struct {
	mu      sync.Mutex
	dir     string
	opts    Options
	nextID  int64
	slots   [MaxTables]int64 // slot -> table id, -1 if empty
	schemas map[int64]*types.TableSchema
	heaps   map[int64]*heap.Heap
	names   map[string]int64

	nextSequenceID int64
	sequenceRows   map[int64]types.RowID
}

// Open loads (bootstrapping if necessary) the catalog rooted at dir.
func Open(dir string, opts Options) (*Catalog, error) {
	if opts.Sink == nil {
		opts.Sink = dblog.Discard
	}
	c := &Catalog{
		dir:          dir,
		opts:         opts,
		schemas:      make(map[int64]*types.TableSchema),
		heaps:        make(map[int64]*heap.Heap),
		names:        make(map[string]int64),
		sequenceRows: make(map[int64]types.RowID),
	}
	for i := range c.slots {
		c.slots[i] = -1
	}

	sf := filepath.Join(dir, schemaFileName)
	if _, err := os.Stat(sf); os.IsNotExist(err) {
		if err := c.bootstrap(); err != nil {
			return nil, err
		}
		return c, nil
	} else if err != nil {
		return nil, err
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateTable registers a brand-new table, allocating its heap
// directory, opening its heap.Heap, and recording it in the schema
// file. The table's hash slot must be free (spec §3).
func (c *Catalog) CreateTable(schema *types.TableSchema) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createTableLocked(schema)
}

func (c *Catalog) createTableLocked(schema *types.TableSchema) error {
	if _, exists := c.names[schema.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTable, schema.Name)
	}
	slot := slotFor(schema.Name)
	if c.slots[slot] != -1 {
		return fmt.Errorf("%w: %s collides with an existing table at slot %d", ErrDuplicateTable, schema.Name, slot)
	}

	if schema.TableID == 0 && schema.Name != "jb_tables" {
		schema.TableID = c.nextID
	}
	if schema.TableID >= c.nextID {
		c.nextID = schema.TableID + 1
	}

	tableDir := c.tableDir(schema.Name)
	if err := os.MkdirAll(tableDir, 0o755); err != nil {
		return fmt.Errorf("catalog: create table dir %s: %w", tableDir, err)
	}
	h, err := heap.Open(tableDir, schema, heap.Options{PageSize: c.opts.PageSize, PoolSize: c.opts.PoolSize, Sink: c.opts.Sink})
	if err != nil {
		return err
	}

	c.slots[slot] = schema.TableID
	c.schemas[schema.TableID] = schema
	c.heaps[schema.TableID] = h
	c.names[schema.Name] = schema.TableID

	return c.save()
}

func (c *Catalog) tableDir(name string) string {
	return filepath.Join(c.dir, name)
}

// GetTable returns the schema and heap for a table by name.
func (c *Catalog) GetTable(name string) (*types.TableSchema, *heap.Heap, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.names[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return c.schemas[id], c.heaps[id], nil
}

// GetTableByID returns the schema and heap for a table by its
// catalog-assigned id.
func (c *Catalog) GetTableByID(id int64) (*types.TableSchema, *heap.Heap, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.schemas[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: id %d", ErrTableNotFound, id)
	}
	return s, c.heaps[id], nil
}

// AlterTable replaces the stored schema for a table (used by ALTER
// TABLE ADD/DROP/RENAME COLUMN) and persists the updated schema file.
func (c *Catalog) AlterTable(name string, updated *types.TableSchema) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.names[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	updated.TableID = id
	c.schemas[id] = updated
	return c.save()
}

// RenameTable repoints a table's name-to-id mapping and hash slot to
// newName, used by ALTER TABLE ... RENAME TO (spec §4.6), and sets the
// stored schema's Name field to newName. The table's jb_tables
// self-description row is not updated here.
func (c *Catalog) RenameTable(oldName, newName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.names[oldName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, oldName)
	}
	if _, exists := c.names[newName]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTable, newName)
	}
	newSlot := slotFor(newName)
	if c.slots[newSlot] != -1 {
		return fmt.Errorf("%w: %s collides with an existing table at slot %d", ErrDuplicateTable, newName, newSlot)
	}
	c.slots[slotFor(oldName)] = -1
	c.slots[newSlot] = id
	delete(c.names, oldName)
	c.names[newName] = id
	c.schemas[id].Name = newName
	return c.save()
}

// TableNames returns every registered table name.
func (c *Catalog) TableNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.names))
	for n := range c.names {
		out = append(out, n)
	}
	return out
}

// Close flushes and closes every open heap.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, h := range c.heaps {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
