package catalog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jugadbase/jugadb/internal/heap"
	"github.com/jugadbase/jugadb/internal/types"
)

// schemaMagic identifies a catalog schema file (spec §3), grounded on
// original_source/src/db/kernel/schema.c's SCHEMA_FILE_MAGIC.
const schemaMagic uint32 = 0x4A554741 // "JUGA"

const schemaFileName = "schema.jdb"

func (c *Catalog) schemaPath() string {
	return filepath.Join(c.dir, schemaFileName)
}

// save rewrites the schema file in full: a 4-byte magic, 4-byte
// table_count, a 256-entry u32 offset table (spec §6: "4-byte magic
// 0x4A554741, 4-byte u32 table_count, 256x4-byte offsets"; here a
// slot holds the occupying table's id rather than a byte offset,
// since Go encodes schema records with length-prefixed fields instead
// of the original's fixed-size C structs), then one record per table.
// Called with c.mu held.
func (c *Catalog) save() error {
	tmp := c.schemaPath() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("catalog: create schema file: %w", err)
	}
	w := bufio.NewWriter(f)

	if err := binary.Write(w, binary.BigEndian, schemaMagic); err != nil {
		f.Close()
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(c.schemas))); err != nil {
		f.Close()
		return err
	}
	for _, slot := range c.slots {
		var v uint32
		if slot >= 0 {
			v = uint32(slot) + 1 // +1 so slot 0 (table id 0) isn't mistaken for "unused"
		}
		if err := binary.Write(w, binary.BigEndian, v); err != nil {
			f.Close()
			return err
		}
	}
	for _, s := range c.schemas {
		if err := writeSchemaRecord(w, s); err != nil {
			f.Close()
			return err
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, c.schemaPath())
}

// load reads the schema file and opens every table's heap.
func (c *Catalog) load() error {
	f, err := os.Open(c.schemaPath())
	if err != nil {
		return fmt.Errorf("catalog: open schema file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return fmt.Errorf("catalog: read schema file header: %w", err)
	}
	if magic != schemaMagic {
		return fmt.Errorf("catalog: bad schema file magic %x", magic)
	}
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return err
	}
	for i := range c.slots {
		var v uint32
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return err
		}
		if v == 0 {
			c.slots[i] = -1
		} else {
			c.slots[i] = int64(v) - 1
		}
	}

	for i := uint32(0); i < count; i++ {
		s, err := readSchemaRecord(r)
		if err != nil {
			return fmt.Errorf("catalog: read schema record %d: %w", i, err)
		}
		s.Recompute()
		c.schemas[s.TableID] = s
		c.names[s.Name] = s.TableID
		if s.TableID >= c.nextID {
			c.nextID = s.TableID + 1
		}

		tableDir := c.tableDir(s.Name)
		h, err := heap.Open(tableDir, s, heap.Options{PageSize: c.opts.PageSize, PoolSize: c.opts.PoolSize, Sink: c.opts.Sink})
		if err != nil {
			return err
		}
		c.heaps[s.TableID] = h
	}
	return c.rebuildSequenceIndex()
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n int32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeBool(w io.Writer, b bool) error {
	var v byte
	if b {
		v = 1
	}
	return binary.Write(w, binary.BigEndian, v)
}

func readBool(r io.Reader) (bool, error) {
	var v byte
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return false, err
	}
	return v != 0, nil
}

func writeSchemaRecord(w io.Writer, s *types.TableSchema) error {
	if err := binary.Write(w, binary.BigEndian, s.TableID); err != nil {
		return err
	}
	if err := writeString(w, s.Name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, int32(len(s.Columns))); err != nil {
		return err
	}
	for _, col := range s.Columns {
		if err := writeColumn(w, col); err != nil {
			return err
		}
	}
	return nil
}

func writeColumn(w io.Writer, col types.ColumnDefinition) error {
	fns := []func() error{
		func() error { return writeString(w, col.Name) },
		func() error { return binary.Write(w, binary.BigEndian, uint8(col.Kind)) },
		func() error { return binary.Write(w, binary.BigEndian, int32(col.Ordinal)) },
		func() error { return binary.Write(w, binary.BigEndian, int32(col.VarcharLen)) },
		func() error { return binary.Write(w, binary.BigEndian, int32(col.DecimalPrecision)) },
		func() error { return binary.Write(w, binary.BigEndian, int32(col.DecimalScale)) },
		func() error { return writeBool(w, col.Nullable) },
		func() error { return writeBool(w, col.HasDefault) },
		func() error { return writeString(w, col.DefaultExpr) },
		func() error { return writeBool(w, col.IsPrimaryKey) },
		func() error { return writeBool(w, col.IsUnique) },
		func() error { return writeBool(w, col.IsIndex) },
		func() error { return writeBool(w, col.IsArray) },
		func() error { return writeBool(w, col.HasSequence) },
		func() error { return binary.Write(w, binary.BigEndian, col.SequenceID) },
		func() error { return writeBool(w, col.IsForeignKey) },
		func() error { return writeString(w, col.RefTable) },
		func() error { return writeString(w, col.RefColumn) },
		func() error { return binary.Write(w, binary.BigEndian, uint8(col.OnDelete)) },
		func() error { return binary.Write(w, binary.BigEndian, uint8(col.OnUpdate)) },
	}
	for _, fn := range fns {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

func readSchemaRecord(r io.Reader) (*types.TableSchema, error) {
	s := &types.TableSchema{}
	if err := binary.Read(r, binary.BigEndian, &s.TableID); err != nil {
		return nil, err
	}
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	s.Name = name

	var n int32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	s.Columns = make([]types.ColumnDefinition, n)
	for i := range s.Columns {
		col, err := readColumn(r)
		if err != nil {
			return nil, err
		}
		s.Columns[i] = col
	}
	return s, nil
}

func readColumn(r io.Reader) (types.ColumnDefinition, error) {
	var col types.ColumnDefinition
	var kind, onDelete, onUpdate uint8
	var ordinal, varcharLen, decPrec, decScale int32

	name, err := readString(r)
	if err != nil {
		return col, err
	}
	col.Name = name
	if err := binary.Read(r, binary.BigEndian, &kind); err != nil {
		return col, err
	}
	col.Kind = types.Kind(kind)
	if err := binary.Read(r, binary.BigEndian, &ordinal); err != nil {
		return col, err
	}
	col.Ordinal = int(ordinal)
	if err := binary.Read(r, binary.BigEndian, &varcharLen); err != nil {
		return col, err
	}
	col.VarcharLen = int(varcharLen)
	if err := binary.Read(r, binary.BigEndian, &decPrec); err != nil {
		return col, err
	}
	col.DecimalPrecision = int(decPrec)
	if err := binary.Read(r, binary.BigEndian, &decScale); err != nil {
		return col, err
	}
	col.DecimalScale = int(decScale)
	if col.Nullable, err = readBool(r); err != nil {
		return col, err
	}
	if col.HasDefault, err = readBool(r); err != nil {
		return col, err
	}
	if col.DefaultExpr, err = readString(r); err != nil {
		return col, err
	}
	if col.IsPrimaryKey, err = readBool(r); err != nil {
		return col, err
	}
	if col.IsUnique, err = readBool(r); err != nil {
		return col, err
	}
	if col.IsIndex, err = readBool(r); err != nil {
		return col, err
	}
	if col.IsArray, err = readBool(r); err != nil {
		return col, err
	}
	if col.HasSequence, err = readBool(r); err != nil {
		return col, err
	}
	if err := binary.Read(r, binary.BigEndian, &col.SequenceID); err != nil {
		return col, err
	}
	if col.IsForeignKey, err = readBool(r); err != nil {
		return col, err
	}
	if col.RefTable, err = readString(r); err != nil {
		return col, err
	}
	if col.RefColumn, err = readString(r); err != nil {
		return col, err
	}
	if err := binary.Read(r, binary.BigEndian, &onDelete); err != nil {
		return col, err
	}
	col.OnDelete = types.FKAction(onDelete)
	if err := binary.Read(r, binary.BigEndian, &onUpdate); err != nil {
		return col, err
	}
	col.OnUpdate = types.FKAction(onUpdate)
	return col, nil
}
