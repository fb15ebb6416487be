package engine

import (
	"sort"
	"strings"

	"github.com/jugadbase/jugadb/internal/eval"
	"github.com/jugadbase/jugadb/internal/parser"
	"github.com/jugadbase/jugadb/internal/types"
)

// executeSelect implements SELECT ... FROM ... [WHERE] [ORDER BY]
// [LIM] [OFF] (spec §4.6, §6): WHERE filters with eval, an equality
// predicate on the primary key routes through the B-tree rather than a
// scan, ORDER BY sorts the filtered set, and the five whole-result-set
// reducers (COUNT/SUM/AVG/MIN/MAX) collapse it to one row when any
// projection names one.
func (db *Database) executeSelect(cmd *parser.Command) (*Result, error) {
	schema := cmd.Schema
	_, h, err := db.cat.GetTableByID(schema.TableID)
	if err != nil {
		return nil, err
	}

	rows, err := db.collectTargets(schema, h, cmd.Where)
	if err != nil {
		return nil, err
	}

	if hasAggregate(cmd.Projections) {
		row, err := evalAggregateRow(cmd.Projections, rows)
		if err != nil {
			return nil, err
		}
		return &Result{RowsAffected: 1, Rows: [][]types.ColumnValue{row}, Aliases: projectionAliases(schema, cmd.Projections)}, nil
	}

	if len(cmd.OrderBy) > 0 {
		if err := db.sortRows(rows, cmd.OrderBy); err != nil {
			return nil, err
		}
	}

	rows = applyOffsetLimit(rows, cmd.Offset, cmd.Limit)

	out := make([][]types.ColumnValue, len(rows))
	for i, r := range rows {
		out[i] = projectRow(schema, cmd.Projections, r)
	}
	return &Result{RowsAffected: int64(len(out)), Rows: out, Aliases: projectionAliases(schema, cmd.Projections)}, nil
}

func hasAggregate(projs []parser.Projection) bool {
	for _, p := range projs {
		if fc, ok := p.Expr.(*parser.FuncCall); ok && fc.IsAggregate {
			return true
		}
	}
	return false
}

// evalAggregateRow computes each projection's aggregate independently
// over rows; a non-aggregate projection alongside an aggregate one is
// evaluated against the first row only, matching the common single-row
// convenience use (e.g. `SELECT name, COUNT(*) ...` without GROUP BY).
func evalAggregateRow(projs []parser.Projection, rows []*types.Row) ([]types.ColumnValue, error) {
	out := make([]types.ColumnValue, len(projs))
	for i, p := range projs {
		fc, ok := p.Expr.(*parser.FuncCall)
		if !ok || !fc.IsAggregate {
			if len(rows) == 0 {
				out[i] = types.Null(types.KindInt)
				continue
			}
			v, err := eval.Eval(p.Expr, &eval.Context{Row: rows[0]})
			if err != nil {
				return nil, err
			}
			out[i] = v
			continue
		}
		v, err := evalAggregate(fc, rows)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func evalAggregate(fc *parser.FuncCall, rows []*types.Row) (types.ColumnValue, error) {
	name := strings.ToUpper(fc.Name)
	if name == "COUNT" {
		if len(fc.Args) == 1 {
			if _, ok := fc.Args[0].(*parser.Star); ok {
				return types.NewInt(int64(len(rows))), nil
			}
		}
		n := int64(0)
		for _, r := range rows {
			v, err := eval.Eval(fc.Args[0], &eval.Context{Row: r})
			if err != nil {
				return types.ColumnValue{}, err
			}
			if !v.IsNull {
				n++
			}
		}
		return types.NewInt(n), nil
	}

	var sum float64
	var count int64
	var min, max types.ColumnValue
	haveMinMax := false
	for _, r := range rows {
		v, err := eval.Eval(fc.Args[0], &eval.Context{Row: r})
		if err != nil {
			return types.ColumnValue{}, err
		}
		if v.IsNull {
			continue
		}
		if name == "MIN" || name == "MAX" {
			if !haveMinMax {
				min, max, haveMinMax = v, v, true
				continue
			}
			cmp, err := eval.Compare(v, min)
			if err == nil && cmp < 0 {
				min = v
			}
			cmp, err = eval.Compare(v, max)
			if err == nil && cmp > 0 {
				max = v
			}
			continue
		}
		f, ok := v.AsFloat()
		if !ok {
			return types.ColumnValue{}, &eval.TypeError{Message: name + " requires a numeric argument"}
		}
		sum += f
		count++
	}

	switch name {
	case "SUM":
		return types.NewFloat(sum), nil
	case "AVG":
		if count == 0 {
			return types.Null(types.KindDouble), nil
		}
		return types.NewFloat(sum / float64(count)), nil
	case "MIN":
		if !haveMinMax {
			return types.Null(types.KindDouble), nil
		}
		return min, nil
	case "MAX":
		if !haveMinMax {
			return types.Null(types.KindDouble), nil
		}
		return max, nil
	default:
		return types.ColumnValue{}, &eval.TypeError{Message: "unknown aggregate " + name}
	}
}

// sortRows sorts rows in place by cmd.OrderBy's keys, evaluated per row.
func (db *Database) sortRows(rows []*types.Row, keys []parser.OrderKey) error {
	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			vi, err := eval.Eval(k.Expr, &eval.Context{Row: rows[i]})
			if err != nil {
				sortErr = err
				return false
			}
			vj, err := eval.Eval(k.Expr, &eval.Context{Row: rows[j]})
			if err != nil {
				sortErr = err
				return false
			}
			cmp, err := eval.Compare(vi, vj)
			if err != nil {
				sortErr = err
				return false
			}
			if cmp == 0 {
				continue
			}
			if k.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return sortErr
}

func applyOffsetLimit(rows []*types.Row, offset, limit *int64) []*types.Row {
	if offset != nil {
		o := int(*offset)
		if o >= len(rows) {
			return nil
		}
		if o > 0 {
			rows = rows[o:]
		}
	}
	if limit != nil {
		l := int(*limit)
		if l < len(rows) {
			rows = rows[:l]
		}
	}
	return rows
}
