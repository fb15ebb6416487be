package eval

import (
	"bytes"
	"fmt"

	"github.com/jugadbase/jugadb/internal/jdate"
	"github.com/jugadbase/jugadb/internal/parser"
	"github.com/jugadbase/jugadb/internal/types"
)

func evalBinary(n *parser.Binary, ctx *Context) (types.ColumnValue, error) {
	switch n.Op {
	case "AND":
		return evalLogical(n, ctx, true)
	case "OR":
		return evalLogical(n, ctx, false)
	}

	left, err := Eval(n.Left, ctx)
	if err != nil {
		return types.ColumnValue{}, err
	}
	right, err := Eval(n.Right, ctx)
	if err != nil {
		return types.ColumnValue{}, err
	}
	if left.IsNull || right.IsNull {
		if isComparisonOp(n.Op) {
			return types.Null(types.KindBool), nil
		}
		return types.Null(left.Kind), nil
	}

	switch n.Op {
	case "+", "-", "*", "/", "%":
		return evalArith(n.Op, left, right)
	default:
		return evalCompare(n.Op, left, right)
	}
}

func isComparisonOp(op string) bool {
	switch op {
	case "=", "!=", "<", "<=", ">", ">=":
		return true
	default:
		return false
	}
}

func evalLogical(n *parser.Binary, ctx *Context, isAnd bool) (types.ColumnValue, error) {
	left, err := Eval(n.Left, ctx)
	if err != nil {
		return types.ColumnValue{}, err
	}
	lb, ok := asBool(left)
	if !ok {
		if left.IsNull {
			lb = false
		} else {
			return types.ColumnValue{}, &TypeError{Message: fmt.Sprintf("%s requires boolean operands", n.Op)}
		}
	}
	if isAnd && !lb {
		return types.NewBool(false), nil
	}
	if !isAnd && lb {
		return types.NewBool(true), nil
	}
	right, err := Eval(n.Right, ctx)
	if err != nil {
		return types.ColumnValue{}, err
	}
	rb, ok := asBool(right)
	if !ok {
		if right.IsNull {
			rb = false
		} else {
			return types.ColumnValue{}, &TypeError{Message: fmt.Sprintf("%s requires boolean operands", n.Op)}
		}
	}
	return types.NewBool(rb), nil
}

// evalArith implements spec §4.6's date/time arithmetic rules plus
// ordinary numeric arithmetic coerced to a common type.
func evalArith(op string, left, right types.ColumnValue) (types.ColumnValue, error) {
	if isDateTimeKind(left.Kind) || isDateTimeKind(right.Kind) {
		return evalDateTimeArith(op, left, right)
	}
	if !left.Kind.IsNumeric() || !right.Kind.IsNumeric() {
		if left.Kind == types.KindVarchar || left.Kind == types.KindText || left.Kind == types.KindChar {
			if op == "+" && (right.Kind == types.KindVarchar || right.Kind == types.KindText || right.Kind == types.KindChar) {
				return types.NewString(types.KindText, left.Str+right.Str), nil
			}
		}
		return types.ColumnValue{}, &TypeError{Message: fmt.Sprintf("arithmetic operator %q requires numeric operands", op)}
	}

	if isIntegerKind(left.Kind) && isIntegerKind(right.Kind) {
		a, b := intOf(left), intOf(right)
		switch op {
		case "+":
			return types.NewInt(a + b), nil
		case "-":
			return types.NewInt(a - b), nil
		case "*":
			return types.NewInt(a * b), nil
		case "/":
			if b == 0 {
				return types.ColumnValue{}, fmt.Errorf("eval: division by zero")
			}
			return types.NewInt(a / b), nil
		case "%":
			if b == 0 {
				return types.ColumnValue{}, fmt.Errorf("eval: modulo by zero")
			}
			return types.NewInt(a % b), nil
		}
	}

	af, _ := left.AsFloat()
	bf, _ := right.AsFloat()
	switch op {
	case "+":
		return types.NewFloat(af + bf), nil
	case "-":
		return types.NewFloat(af - bf), nil
	case "*":
		return types.NewFloat(af * bf), nil
	case "/":
		if bf == 0 {
			return types.ColumnValue{}, fmt.Errorf("eval: division by zero")
		}
		return types.NewFloat(af / bf), nil
	case "%":
		if bf == 0 {
			return types.ColumnValue{}, fmt.Errorf("eval: modulo by zero")
		}
		return types.NewFloat(float64(int64(af) % int64(bf))), nil
	default:
		return types.ColumnValue{}, fmt.Errorf("eval: unknown arithmetic operator %q", op)
	}
}

func isIntegerKind(k types.Kind) bool {
	return k == types.KindInt || k == types.KindUint || k == types.KindSerial
}

func intOf(v types.ColumnValue) int64 {
	if v.Kind == types.KindUint {
		return int64(v.Uint)
	}
	return v.Int
}

func isDateTimeKind(k types.Kind) bool {
	switch k {
	case types.KindDate, types.KindTime, types.KindTimeTZ, types.KindDateTime,
		types.KindDateTimeTZ, types.KindTimestamp, types.KindTimestampTZ, types.KindInterval:
		return true
	default:
		return false
	}
}

// evalDateTimeArith implements: datetime +/- interval -> datetime;
// datetime - datetime -> interval; timestamp +/- interval ->
// timestamp; timezone-aware variants normalise to UTC for the
// computation, then re-attach the left operand's offset on the result
// (spec §4.6).
func evalDateTimeArith(op string, left, right types.ColumnValue) (types.ColumnValue, error) {
	negate := op == "-"
	if op != "+" && op != "-" {
		return types.ColumnValue{}, &TypeError{Message: fmt.Sprintf("operator %q is not defined for date/time values", op)}
	}

	switch {
	case left.Kind == types.KindDateTime && right.Kind == types.KindInterval:
		return types.ColumnValue{Kind: types.KindDateTime, DateTime: jdate.AddInterval(left.DateTime, right.Interval, negate)}, nil
	case left.Kind == types.KindDateTime && right.Kind == types.KindDateTime && negate:
		return types.ColumnValue{Kind: types.KindInterval, Interval: jdate.DiffToInterval(left.DateTime, right.DateTime)}, nil
	case left.Kind == types.KindTimestamp && right.Kind == types.KindInterval:
		dt := jdate.DecodeTimestamp(left.Timestamp)
		dt = jdate.AddInterval(dt, right.Interval, negate)
		ts, err := jdate.EncodeTimestamp(dt)
		if err != nil {
			return types.ColumnValue{}, err
		}
		return types.ColumnValue{Kind: types.KindTimestamp, Timestamp: ts}, nil
	case left.Kind == types.KindTimestamp && right.Kind == types.KindTimestamp && negate:
		da := jdate.DecodeTimestamp(left.Timestamp)
		db := jdate.DecodeTimestamp(right.Timestamp)
		return types.ColumnValue{Kind: types.KindInterval, Interval: jdate.DiffToInterval(da, db)}, nil
	case left.Kind == types.KindDateTimeTZ && right.Kind == types.KindInterval:
		utc := jdate.AddInterval(left.DateTimeTZ.DateTime, right.Interval, negate)
		return types.ColumnValue{Kind: types.KindDateTimeTZ, DateTimeTZ: types.DateTimeTZ{DateTime: utc, OffsetMinutes: left.DateTimeTZ.OffsetMinutes}}, nil
	case left.Kind == types.KindTimestampTZ && right.Kind == types.KindInterval:
		dt := jdate.DecodeTimestamp(left.TimestampTZ.Timestamp)
		dt = jdate.AddInterval(dt, right.Interval, negate)
		ts, err := jdate.EncodeTimestamp(dt)
		if err != nil {
			return types.ColumnValue{}, err
		}
		return types.ColumnValue{Kind: types.KindTimestampTZ, TimestampTZ: types.TimestampTZ{Timestamp: ts, OffsetMinutes: left.TimestampTZ.OffsetMinutes}}, nil
	case left.Kind == types.KindDate && right.Kind == types.KindInterval:
		dt := types.DateTime{Year: 0}
		y, m, d := jdate.DecodeDate(left.Date)
		dt.Year, dt.Month, dt.Day = y, m, d
		dt = jdate.AddInterval(dt, right.Interval, negate)
		nd, err := jdate.EncodeDate(dt.Year, dt.Month, dt.Day)
		if err != nil {
			return types.ColumnValue{}, err
		}
		return types.ColumnValue{Kind: types.KindDate, Date: nd}, nil
	default:
		return types.ColumnValue{}, &TypeError{Message: fmt.Sprintf("no arithmetic rule for %s %s %s", left.Kind, op, right.Kind)}
	}
}

// evalCompare implements spec §4.3's type-directed comparisons for
// evalBinary's comparison operators.
func evalCompare(op string, left, right types.ColumnValue) (types.ColumnValue, error) {
	cmp, err := Compare(left, right)
	if err != nil {
		return types.ColumnValue{}, err
	}
	var result bool
	switch op {
	case "=":
		result = cmp == 0
	case "!=":
		result = cmp != 0
	case "<":
		result = cmp < 0
	case "<=":
		result = cmp <= 0
	case ">":
		result = cmp > 0
	case ">=":
		result = cmp >= 0
	default:
		return types.ColumnValue{}, fmt.Errorf("eval: unknown comparison operator %q", op)
	}
	return types.NewBool(result), nil
}

// Compare returns -1/0/1 for left relative to right, following the
// type-directed rules of spec §4.4's key comparison (shared by the
// comparison operators, BETWEEN, IN, GREATEST/LEAST and the engine's
// ORDER BY and MIN/MAX; internal/btree orders keys with its own
// compareKeys).
func Compare(left, right types.ColumnValue) (int, error) {
	if left.Kind.IsNumeric() && right.Kind.IsNumeric() {
		af, _ := left.AsFloat()
		bf, _ := right.AsFloat()
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if left.Kind != right.Kind {
		return 0, &TypeError{Message: fmt.Sprintf("cannot compare %s with %s", left.Kind, right.Kind)}
	}
	switch left.Kind {
	case types.KindBool:
		return boolCmp(left.Bool, right.Bool), nil
	case types.KindVarchar, types.KindText, types.KindChar, types.KindJSON:
		return bytes.Compare([]byte(left.Str), []byte(right.Str)), nil
	case types.KindBlob:
		return bytes.Compare(left.Blob, right.Blob), nil
	case types.KindUUID:
		return bytes.Compare(left.UUID[:], right.UUID[:]), nil
	case types.KindDate:
		return int64Cmp(int64(left.Date), int64(right.Date)), nil
	case types.KindTime:
		return int64Cmp(int64(left.Time), int64(right.Time)), nil
	case types.KindTimestamp:
		return int64Cmp(int64(left.Timestamp), int64(right.Timestamp)), nil
	case types.KindTimeTZ:
		return int64Cmp(int64(left.TimeTZ.Time), int64(right.TimeTZ.Time)), nil
	case types.KindTimestampTZ:
		lu := utcTimestamp(left.TimestampTZ)
		ru := utcTimestamp(right.TimestampTZ)
		return int64Cmp(int64(lu), int64(ru)), nil
	case types.KindDateTime:
		return jdate.Compare(left.DateTime, right.DateTime), nil
	case types.KindDateTimeTZ:
		return jdate.Compare(left.DateTimeTZ.DateTime, right.DateTimeTZ.DateTime), nil
	case types.KindInterval:
		lm := int64(left.Interval.Months)*2629746000000 + int64(left.Interval.Days)*86400000000 + left.Interval.Micros
		rm := int64(right.Interval.Months)*2629746000000 + int64(right.Interval.Days)*86400000000 + right.Interval.Micros
		return int64Cmp(lm, rm), nil
	default:
		return 0, &TypeError{Message: fmt.Sprintf("type %s is not comparable", left.Kind)}
	}
}

// utcTimestamp normalises a TIMESTAMPTZ to UTC by subtracting its
// offset (spec §4.6: "normalise to UTC for comparison").
func utcTimestamp(tz types.TimestampTZ) types.Timestamp {
	return types.Timestamp(int64(tz.Timestamp) - int64(tz.OffsetMinutes)*60_000_000)
}

func boolCmp(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

func int64Cmp(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
