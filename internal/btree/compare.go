package btree

import (
	"bytes"

	"github.com/jugadbase/jugadb/internal/jdate"
	"github.com/jugadbase/jugadb/internal/types"
)

// compareKeys is the type-directed key ordering of
// original_source/src/db/btree.c's key_compare, generalised to
// types.ColumnValue and every SQL kind the engine supports rather than
// the original's fixed-size byte buffers. Returns -1/0/1.
//
// The original decodes TIMESTAMPTZ into an uninitialised `__dt*`
// pointer before comparing fields (src/db/btree.c, TOK_T_TIMESTAMP_TZ
// case) - undefined behaviour masked only by C's lack of bounds
// checking. DecodeTimestamp here always returns a value type, so that
// bug has no Go equivalent.
func compareKeys(a, b types.ColumnValue) int {
	if a.Kind.IsNumeric() && b.Kind.IsNumeric() {
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		return cmpFloat(af, bf)
	}
	switch a.Kind {
	case types.KindBool:
		return cmpBool(a.Bool, b.Bool)
	case types.KindVarchar, types.KindChar, types.KindText, types.KindJSON:
		return bytes.Compare([]byte(a.Str), []byte(b.Str))
	case types.KindBlob:
		return bytes.Compare(a.Blob, b.Blob)
	case types.KindUUID:
		return bytes.Compare(a.UUID[:], b.UUID[:])
	case types.KindDate:
		return cmpInt64(int64(a.Date), int64(b.Date))
	case types.KindTime:
		return cmpInt64(int64(a.Time), int64(b.Time))
	case types.KindTimeTZ:
		return cmpInt64(int64(a.TimeTZ.Time), int64(b.TimeTZ.Time))
	case types.KindTimestamp:
		return cmpInt64(int64(a.Timestamp), int64(b.Timestamp))
	case types.KindTimestampTZ:
		au := int64(a.TimestampTZ.Timestamp) - int64(a.TimestampTZ.OffsetMinutes)*60_000_000
		bu := int64(b.TimestampTZ.Timestamp) - int64(b.TimestampTZ.OffsetMinutes)*60_000_000
		return cmpInt64(au, bu)
	case types.KindDateTime:
		return jdate.Compare(a.DateTime, b.DateTime)
	case types.KindDateTimeTZ:
		return jdate.Compare(a.DateTimeTZ.DateTime, b.DateTimeTZ.DateTime)
	default:
		return 0
	}
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
