// Package types defines the core on-disk/in-memory data model shared by
// every layer of the engine: typed column values, row identifiers,
// column/table schemas and rows.
package types

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is the type code carried by a ColumnValue and a ColumnDefinition.
type Kind uint8

const (
	KindInt Kind = iota
	KindUint
	KindSerial
	KindFloat
	KindDouble
	KindDecimal
	KindBool
	KindChar
	KindVarchar
	KindText
	KindJSON
	KindBlob
	KindUUID
	KindDate
	KindTime
	KindTimeTZ
	KindDateTime
	KindDateTimeTZ
	KindTimestamp
	KindTimestampTZ
	KindInterval
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "INT"
	case KindUint:
		return "UINT"
	case KindSerial:
		return "SERIAL"
	case KindFloat:
		return "FLOAT"
	case KindDouble:
		return "DOUBLE"
	case KindDecimal:
		return "DECIMAL"
	case KindBool:
		return "BOOL"
	case KindChar:
		return "CHAR"
	case KindVarchar:
		return "VARCHAR"
	case KindText:
		return "TEXT"
	case KindJSON:
		return "JSON"
	case KindBlob:
		return "BLOB"
	case KindUUID:
		return "UUID"
	case KindDate:
		return "DATE"
	case KindTime:
		return "TIME"
	case KindTimeTZ:
		return "TIMETZ"
	case KindDateTime:
		return "DATETIME"
	case KindDateTimeTZ:
		return "DATETIMETZ"
	case KindTimestamp:
		return "TIMESTAMP"
	case KindTimestampTZ:
		return "TIMESTAMPTZ"
	case KindInterval:
		return "INTERVAL"
	default:
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
}

// IsNumeric reports whether two values of this kind may be compared and
// combined arithmetically without an explicit cast.
func (k Kind) IsNumeric() bool {
	switch k {
	case KindInt, KindUint, KindSerial, KindFloat, KindDouble, KindDecimal:
		return true
	default:
		return false
	}
}

// Decimal is a fixed-point value: digits scaled by 10^-scale.
type Decimal struct {
	Precision int
	Scale     int
	Digits    int64
}

// Date is the number of days since the engine epoch (2000-01-01),
// offset by jdate.DateEpochOffset so the wire value matches an absolute-day
// scheme. See internal/jdate for the encode/decode rules.
type Date int32

// TimeOfDay is microseconds since midnight.
type TimeOfDay int64

// DateTime is a broken-out timestamp used whenever arithmetic needs
// field access (month/day-of-month carries, etc).
type DateTime struct {
	Year, Month, Day          int
	Hour, Minute, Second      int
	Micro                     int
}

// DateTimeTZ is a DateTime plus an offset in minutes from UTC, range
// [-720, 840].
type DateTimeTZ struct {
	DateTime
	OffsetMinutes int32
}

// TimeTZ is a TimeOfDay plus a UTC offset in minutes.
type TimeTZ struct {
	Time          TimeOfDay
	OffsetMinutes int32
}

// Timestamp is microseconds since the engine epoch.
type Timestamp int64

// TimestampTZ is a Timestamp plus a UTC offset in minutes.
type TimestampTZ struct {
	Timestamp     Timestamp
	OffsetMinutes int32
}

// Interval is (months, days, micros); never normalised across the month
// boundary because months are calendar-dependent.
type Interval struct {
	Months int32
	Days   int32
	Micros int64
}

// ColumnValue is a tagged union over every supported SQL type plus array
// and TOAST indirection. The zero value is a non-null, non-array,
// non-toast INT of 0; callers must always set Kind explicitly.
type ColumnValue struct {
	Kind    Kind
	IsNull  bool
	IsArray bool
	IsToast bool

	Int     int64
	Uint    uint64
	Float32 float32
	Float64 float64
	Bool    bool
	Str     string // VARCHAR/TEXT/CHAR/JSON
	Blob    []byte
	UUID    uuid.UUID
	Decimal Decimal

	Date        Date
	Time        TimeOfDay
	TimeTZ      TimeTZ
	DateTime    DateTime
	DateTimeTZ  DateTimeTZ
	Timestamp   Timestamp
	TimestampTZ TimestampTZ
	Interval    Interval

	// ToastID is populated instead of Str/Blob when IsToast is set; the
	// real payload lives as chunked rows in the jb_toast bootstrap table.
	ToastID uint32

	Elements     []ColumnValue
	ElementKind  Kind
}

// Clone returns a deep copy; a ColumnValue owns its payload, so moving
// a value between rows must never alias slices/strings mutably.
func (v ColumnValue) Clone() ColumnValue {
	out := v
	if v.Blob != nil {
		out.Blob = append([]byte(nil), v.Blob...)
	}
	if v.Elements != nil {
		out.Elements = make([]ColumnValue, len(v.Elements))
		for i, e := range v.Elements {
			out.Elements[i] = e.Clone()
		}
	}
	return out
}

// Null constructs a null value of the given kind.
func Null(k Kind) ColumnValue { return ColumnValue{Kind: k, IsNull: true} }

// NewInt, NewBool, NewString are convenience constructors used widely by
// the parser/evaluator/tests.
func NewInt(v int64) ColumnValue    { return ColumnValue{Kind: KindInt, Int: v} }
func NewUint(v uint64) ColumnValue  { return ColumnValue{Kind: KindUint, Uint: v} }
func NewBool(v bool) ColumnValue    { return ColumnValue{Kind: KindBool, Bool: v} }
func NewFloat(v float64) ColumnValue {
	return ColumnValue{Kind: KindDouble, Float64: v}
}
func NewString(k Kind, v string) ColumnValue { return ColumnValue{Kind: k, Str: v} }

// Equal reports value equality (same Kind family, same payload). Null
// values are never equal to anything, including other nulls, matching
// SQL NULL semantics used by the constraint/unique checks.
func (v ColumnValue) Equal(other ColumnValue) bool {
	if v.IsNull || other.IsNull {
		return false
	}
	if v.Kind.IsNumeric() && other.Kind.IsNumeric() {
		af, aok := v.AsFloat()
		bf, bok := other.AsFloat()
		return aok && bok && af == bf
	}
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == other.Bool
	case KindVarchar, KindText, KindChar, KindJSON:
		return v.Str == other.Str
	case KindBlob:
		return string(v.Blob) == string(other.Blob)
	case KindUUID:
		return v.UUID == other.UUID
	case KindDate:
		return v.Date == other.Date
	case KindTime:
		return v.Time == other.Time
	case KindTimestamp:
		return v.Timestamp == other.Timestamp
	case KindTimeTZ:
		return v.TimeTZ == other.TimeTZ
	case KindDateTime:
		return v.DateTime == other.DateTime
	case KindDateTimeTZ:
		return v.DateTimeTZ == other.DateTimeTZ
	case KindTimestampTZ:
		return v.TimestampTZ == other.TimestampTZ
	case KindInterval:
		return v.Interval == other.Interval
	default:
		return false
	}
}

// AsFloat coerces any numeric kind to float64 for cross-type arithmetic.
func (v ColumnValue) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindInt, KindSerial:
		return float64(v.Int), true
	case KindUint:
		return float64(v.Uint), true
	case KindFloat:
		return float64(v.Float32), true
	case KindDouble:
		return v.Float64, true
	case KindDecimal:
		scale := 1.0
		for i := 0; i < v.Decimal.Scale; i++ {
			scale *= 10
		}
		return float64(v.Decimal.Digits) / scale, true
	default:
		return 0, false
	}
}
