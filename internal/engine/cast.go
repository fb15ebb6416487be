package engine

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jugadbase/jugadb/internal/eval"
	"github.com/jugadbase/jugadb/internal/jdate"
	"github.com/jugadbase/jugadb/internal/types"
)

// inferAndCast coerces v, as produced by evaluating an INSERT/UPDATE
// expression, to col's declared type (spec §4.6: "coerce with
// infer_and_cast to the column's declared type"). A value already of
// the right Kind passes through unchanged (cloned); anything else is
// either a straightforward numeric widening or a string literal parsed
// into the target's on-disk representation. Failure is reported as
// eval.TypeError, spec §7's TypeError kind.
func inferAndCast(v types.ColumnValue, col types.ColumnDefinition) (types.ColumnValue, error) {
	if col.IsArray {
		return castArray(v, col)
	}
	if v.IsNull {
		return types.Null(col.Kind), nil
	}
	if v.Kind == col.Kind {
		return checkVarcharLen(v.Clone(), col)
	}

	switch col.Kind {
	case types.KindInt, types.KindSerial:
		f, ok := v.AsFloat()
		if !ok {
			return types.ColumnValue{}, typeErr(v, col, "integer")
		}
		return types.ColumnValue{Kind: col.Kind, Int: int64(f)}, nil
	case types.KindUint:
		f, ok := v.AsFloat()
		if !ok {
			return types.ColumnValue{}, typeErr(v, col, "unsigned integer")
		}
		return types.ColumnValue{Kind: col.Kind, Uint: uint64(f)}, nil
	case types.KindFloat:
		f, ok := v.AsFloat()
		if !ok {
			return types.ColumnValue{}, typeErr(v, col, "float")
		}
		return types.ColumnValue{Kind: col.Kind, Float32: float32(f)}, nil
	case types.KindDouble:
		f, ok := v.AsFloat()
		if !ok {
			return types.ColumnValue{}, typeErr(v, col, "double")
		}
		return types.ColumnValue{Kind: col.Kind, Float64: f}, nil
	case types.KindDecimal:
		f, ok := v.AsFloat()
		if !ok {
			return types.ColumnValue{}, typeErr(v, col, "decimal")
		}
		scale := 1.0
		for i := 0; i < col.DecimalScale; i++ {
			scale *= 10
		}
		return types.ColumnValue{Kind: types.KindDecimal, Decimal: types.Decimal{
			Precision: col.DecimalPrecision, Scale: col.DecimalScale, Digits: int64(f * scale),
		}}, nil
	case types.KindBool:
		if b, ok := asBoolValue(v); ok {
			return types.NewBool(b), nil
		}
		return types.ColumnValue{}, typeErr(v, col, "bool")
	case types.KindChar, types.KindVarchar, types.KindText, types.KindJSON:
		return checkVarcharLen(types.NewString(col.Kind, stringOfValue(v)), col)
	case types.KindBlob:
		if v.Kind == types.KindVarchar || v.Kind == types.KindText || v.Kind == types.KindChar {
			return types.ColumnValue{Kind: types.KindBlob, Blob: []byte(v.Str)}, nil
		}
		return types.ColumnValue{}, typeErr(v, col, "blob")
	case types.KindUUID:
		s, ok := asStringValue(v)
		if !ok {
			return types.ColumnValue{}, typeErr(v, col, "uuid")
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return types.ColumnValue{}, &eval.TypeError{Message: fmt.Sprintf("invalid uuid %q: %v", s, err)}
		}
		return types.ColumnValue{Kind: types.KindUUID, UUID: id}, nil
	case types.KindDate:
		return castStringToDate(v, col)
	case types.KindTime:
		return castStringToTime(v, col)
	case types.KindTimeTZ:
		return castStringToTimeTZ(v, col)
	case types.KindDateTime:
		return castStringToDateTime(v, col)
	case types.KindDateTimeTZ:
		return castStringToDateTimeTZ(v, col)
	case types.KindTimestamp:
		return castStringToTimestamp(v, col)
	case types.KindTimestampTZ:
		return castStringToTimestampTZ(v, col)
	default:
		return types.ColumnValue{}, typeErr(v, col, col.Kind.String())
	}
}

func typeErr(v types.ColumnValue, col types.ColumnDefinition, want string) error {
	return &eval.TypeError{Message: fmt.Sprintf("column %q expects %s, got %s", col.Name, want, v.Kind)}
}

func checkVarcharLen(v types.ColumnValue, col types.ColumnDefinition) (types.ColumnValue, error) {
	if col.Kind == types.KindVarchar && col.VarcharLen > 0 && len(v.Str) > col.VarcharLen {
		return types.ColumnValue{}, &eval.TypeError{
			Message: fmt.Sprintf("value of length %d exceeds VARCHAR(%d) for column %q", len(v.Str), col.VarcharLen, col.Name),
		}
	}
	return v, nil
}

func asBoolValue(v types.ColumnValue) (bool, bool) {
	if v.Kind == types.KindBool {
		return v.Bool, true
	}
	if f, ok := v.AsFloat(); ok {
		return f != 0, true
	}
	return false, false
}

func stringOfValue(v types.ColumnValue) string {
	if s, ok := asStringValue(v); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func asStringValue(v types.ColumnValue) (string, bool) {
	switch v.Kind {
	case types.KindVarchar, types.KindText, types.KindChar, types.KindJSON:
		return v.Str, true
	default:
		return "", false
	}
}

func castStringToDate(v types.ColumnValue, col types.ColumnDefinition) (types.ColumnValue, error) {
	s, ok := asStringValue(v)
	if !ok {
		return types.ColumnValue{}, typeErr(v, col, "date string")
	}
	dt, _, err := jdate.Parse(s)
	if err != nil {
		return types.ColumnValue{}, &eval.TypeError{Message: err.Error()}
	}
	d, err := jdate.EncodeDate(dt.Year, dt.Month, dt.Day)
	if err != nil {
		return types.ColumnValue{}, &eval.TypeError{Message: err.Error()}
	}
	return types.ColumnValue{Kind: types.KindDate, Date: d}, nil
}

// withDummyDate lets a bare `HH:MM:SS[.ffffff]` literal reuse
// jdate.Parse, which always expects a date component (spec §4.8's
// grammar is date-first).
func withDummyDate(s string) string { return "2000-01-01 " + s }

func castStringToTime(v types.ColumnValue, col types.ColumnDefinition) (types.ColumnValue, error) {
	s, ok := asStringValue(v)
	if !ok {
		return types.ColumnValue{}, typeErr(v, col, "time string")
	}
	dt, _, err := jdate.Parse(withDummyDate(s))
	if err != nil {
		return types.ColumnValue{}, &eval.TypeError{Message: err.Error()}
	}
	t, err := jdate.EncodeTime(dt.Hour, dt.Minute, dt.Second, dt.Micro)
	if err != nil {
		return types.ColumnValue{}, &eval.TypeError{Message: err.Error()}
	}
	return types.ColumnValue{Kind: types.KindTime, Time: t}, nil
}

func castStringToTimeTZ(v types.ColumnValue, col types.ColumnDefinition) (types.ColumnValue, error) {
	s, ok := asStringValue(v)
	if !ok {
		return types.ColumnValue{}, typeErr(v, col, "time-with-timezone string")
	}
	dt, tz, err := jdate.Parse(withDummyDate(s))
	if err != nil {
		return types.ColumnValue{}, &eval.TypeError{Message: err.Error()}
	}
	t, err := jdate.EncodeTime(dt.Hour, dt.Minute, dt.Second, dt.Micro)
	if err != nil {
		return types.ColumnValue{}, &eval.TypeError{Message: err.Error()}
	}
	offset := int32(0)
	if tz != nil {
		offset = *tz
	}
	return types.ColumnValue{Kind: types.KindTimeTZ, TimeTZ: types.TimeTZ{Time: t, OffsetMinutes: offset}}, nil
}

func castStringToDateTime(v types.ColumnValue, col types.ColumnDefinition) (types.ColumnValue, error) {
	s, ok := asStringValue(v)
	if !ok {
		return types.ColumnValue{}, typeErr(v, col, "datetime string")
	}
	dt, _, err := jdate.Parse(s)
	if err != nil {
		return types.ColumnValue{}, &eval.TypeError{Message: err.Error()}
	}
	return types.ColumnValue{Kind: types.KindDateTime, DateTime: dt}, nil
}

func castStringToDateTimeTZ(v types.ColumnValue, col types.ColumnDefinition) (types.ColumnValue, error) {
	s, ok := asStringValue(v)
	if !ok {
		return types.ColumnValue{}, typeErr(v, col, "datetime-with-timezone string")
	}
	dt, tz, err := jdate.Parse(s)
	if err != nil {
		return types.ColumnValue{}, &eval.TypeError{Message: err.Error()}
	}
	offset := int32(0)
	if tz != nil {
		offset = *tz
	}
	return types.ColumnValue{Kind: types.KindDateTimeTZ, DateTimeTZ: types.DateTimeTZ{DateTime: dt, OffsetMinutes: offset}}, nil
}

func castStringToTimestamp(v types.ColumnValue, col types.ColumnDefinition) (types.ColumnValue, error) {
	s, ok := asStringValue(v)
	if !ok {
		return types.ColumnValue{}, typeErr(v, col, "timestamp string")
	}
	dt, _, err := jdate.Parse(s)
	if err != nil {
		return types.ColumnValue{}, &eval.TypeError{Message: err.Error()}
	}
	ts, err := jdate.EncodeTimestamp(dt)
	if err != nil {
		return types.ColumnValue{}, &eval.TypeError{Message: err.Error()}
	}
	return types.ColumnValue{Kind: types.KindTimestamp, Timestamp: ts}, nil
}

func castStringToTimestampTZ(v types.ColumnValue, col types.ColumnDefinition) (types.ColumnValue, error) {
	s, ok := asStringValue(v)
	if !ok {
		return types.ColumnValue{}, typeErr(v, col, "timestamp-with-timezone string")
	}
	dt, tz, err := jdate.Parse(s)
	if err != nil {
		return types.ColumnValue{}, &eval.TypeError{Message: err.Error()}
	}
	ts, err := jdate.EncodeTimestamp(dt)
	if err != nil {
		return types.ColumnValue{}, &eval.TypeError{Message: err.Error()}
	}
	offset := int32(0)
	if tz != nil {
		offset = *tz
	}
	return types.ColumnValue{Kind: types.KindTimestampTZ, TimestampTZ: types.TimestampTZ{Timestamp: ts, OffsetMinutes: offset}}, nil
}

// castArray casts every element of an array literal against the
// column's (non-array) element kind; spec §4.1 array literals carry no
// declared element type of their own, so the column definition is the
// only source of truth.
func castArray(v types.ColumnValue, col types.ColumnDefinition) (types.ColumnValue, error) {
	if v.IsNull {
		return types.Null(col.Kind), nil
	}
	if !v.IsArray {
		return types.ColumnValue{}, typeErr(v, col, "array")
	}
	elemCol := col
	elemCol.IsArray = false
	out := types.ColumnValue{Kind: col.Kind, IsArray: true, ElementKind: col.Kind}
	out.Elements = make([]types.ColumnValue, len(v.Elements))
	for i, e := range v.Elements {
		cast, err := inferAndCast(e, elemCol)
		if err != nil {
			return types.ColumnValue{}, err
		}
		out.Elements[i] = cast
	}
	return out, nil
}
