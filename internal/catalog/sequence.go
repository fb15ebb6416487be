package catalog

import (
	"fmt"

	"github.com/jugadbase/jugadb/internal/types"
)

// ErrSequenceExhausted is returned when a sequence's next value would
// exceed its declared max_value and cycle is false (spec §4.5).
var ErrSequenceExhausted = fmt.Errorf("catalog: sequence exhausted")

// rebuildSequenceIndex repopulates sequenceRows and nextSequenceID from
// the on-disk jb_sequences heap after a reload (heap.Heap does not
// persist a name/RowID index itself, so the catalog keeps its own).
func (c *Catalog) rebuildSequenceIndex() error {
	schema := c.schemas[TableIDSequences]
	h := c.heaps[TableIDSequences]
	idCol := schema.ColumnIndex("id")

	return h.Scan(func(row *types.Row) error {
		id := row.Values[idCol].Int
		c.sequenceRows[id] = row.ID
		if id >= c.nextSequenceID {
			c.nextSequenceID = id + 1
		}
		return nil
	})
}

// CreateSequence registers a new sequence backing a SERIAL column,
// returning its jb_sequences.id.
func (c *Catalog) CreateSequence(name string, start, incrementBy, minValue, maxValue int64, cycle bool) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	schema := c.schemas[TableIDSequences]
	h := c.heaps[TableIDSequences]

	id := c.nextSequenceID
	c.nextSequenceID++

	row := types.NewRow(schema)
	row.Set(schema.ColumnIndex("id"), types.NewInt(id))
	row.Set(schema.ColumnIndex("name"), types.NewString(types.KindText, name))
	row.Set(schema.ColumnIndex("current_value"), types.NewInt(start))
	row.Set(schema.ColumnIndex("increment_by"), types.NewInt(incrementBy))
	row.Set(schema.ColumnIndex("min_value"), types.NewInt(minValue))
	row.Set(schema.ColumnIndex("max_value"), types.NewInt(maxValue))
	row.Set(schema.ColumnIndex("cycle"), types.NewBool(cycle))

	rowID, err := h.Insert(row)
	if err != nil {
		return 0, err
	}
	c.sequenceRows[id] = rowID
	return id, nil
}

// NextVal advances and returns a sequence's value, cycling back to
// min_value (or erroring) once max_value is exceeded.
func (c *Catalog) NextVal(sequenceID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	schema := c.schemas[TableIDSequences]
	h := c.heaps[TableIDSequences]
	rowID, ok := c.sequenceRows[sequenceID]
	if !ok {
		return 0, fmt.Errorf("catalog: unknown sequence %d", sequenceID)
	}

	row, err := h.Get(rowID)
	if err != nil {
		return 0, err
	}

	cur := row.Values[schema.ColumnIndex("current_value")].Int
	inc := row.Values[schema.ColumnIndex("increment_by")].Int
	minV := row.Values[schema.ColumnIndex("min_value")].Int
	maxV := row.Values[schema.ColumnIndex("max_value")].Int
	cycle := row.Values[schema.ColumnIndex("cycle")].Bool

	next := cur + inc
	if next > maxV {
		if !cycle {
			return 0, ErrSequenceExhausted
		}
		next = minV
	}

	row.Set(schema.ColumnIndex("current_value"), types.NewInt(next))
	if _, err := h.Update(rowID, row); err != nil {
		return 0, err
	}
	return next, nil
}
