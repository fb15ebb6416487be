// Package page implements the fixed-size page format and row codec
// described in spec §3/§4.3/§6: a page header followed by a sequence of
// rows, each row a RowID, a length, a null bitmap, and length-prefixed
// (or fixed-width) column values.
package page

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/jugadbase/jugadb/internal/types"
)

// DefaultSize is PAGE_SIZE from spec §6 (8192 bytes); actual size comes
// from dbconfig.StorageConfig.PageSize at Open time.
const DefaultSize = 8192

// tombstoneBit marks a row's length field, since the spec's row header
// has no separate flag byte for it: lengths never approach 2^15 inside
// an 8KiB-class page, so the high bit of the 16-bit length is free.
const tombstoneBit = uint16(0x8000)

var errOverflow = fmt.Errorf("page: value too large to encode")

// EncodeValue writes a single ColumnValue in the type-directed format
// from spec §4.3: fixed-width types write their native size; strings /
// JSON / blobs are 16-bit length prefixed; arrays are a 32-bit count
// plus element type tag followed by recursively encoded elements.
func EncodeValue(w *bytes.Buffer, v types.ColumnValue) error {
	if v.IsToast {
		return binary.Write(w, binary.BigEndian, v.ToastID)
	}
	if v.IsArray {
		if err := binary.Write(w, binary.BigEndian, uint32(len(v.Elements))); err != nil {
			return err
		}
		if err := w.WriteByte(byte(v.ElementKind)); err != nil {
			return err
		}
		for _, e := range v.Elements {
			if err := EncodeValue(w, e); err != nil {
				return err
			}
		}
		return nil
	}

	switch v.Kind {
	case types.KindInt, types.KindSerial:
		return binary.Write(w, binary.BigEndian, v.Int)
	case types.KindUint:
		return binary.Write(w, binary.BigEndian, v.Uint)
	case types.KindFloat:
		return binary.Write(w, binary.BigEndian, v.Float32)
	case types.KindDouble:
		return binary.Write(w, binary.BigEndian, v.Float64)
	case types.KindDecimal:
		if err := w.WriteByte(byte(v.Decimal.Precision)); err != nil {
			return err
		}
		if err := w.WriteByte(byte(v.Decimal.Scale)); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, v.Decimal.Digits)
	case types.KindBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		return w.WriteByte(b)
	case types.KindChar, types.KindVarchar, types.KindText, types.KindJSON:
		data := []byte(v.Str)
		if len(data) > 0xFFFF {
			return errOverflow
		}
		if err := binary.Write(w, binary.BigEndian, uint16(len(data))); err != nil {
			return err
		}
		_, err := w.Write(data)
		return err
	case types.KindBlob:
		if len(v.Blob) > 0xFFFF {
			return errOverflow
		}
		if err := binary.Write(w, binary.BigEndian, uint16(len(v.Blob))); err != nil {
			return err
		}
		_, err := w.Write(v.Blob)
		return err
	case types.KindUUID:
		_, err := w.Write(v.UUID[:])
		return err
	case types.KindDate:
		return binary.Write(w, binary.BigEndian, int32(v.Date))
	case types.KindTime:
		return binary.Write(w, binary.BigEndian, int64(v.Time))
	case types.KindTimeTZ:
		if err := binary.Write(w, binary.BigEndian, int64(v.TimeTZ.Time)); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, v.TimeTZ.OffsetMinutes)
	case types.KindDateTime:
		return encodeDateTime(w, v.DateTime)
	case types.KindDateTimeTZ:
		if err := encodeDateTime(w, v.DateTimeTZ.DateTime); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, v.DateTimeTZ.OffsetMinutes)
	case types.KindTimestamp:
		return binary.Write(w, binary.BigEndian, int64(v.Timestamp))
	case types.KindTimestampTZ:
		if err := binary.Write(w, binary.BigEndian, int64(v.TimestampTZ.Timestamp)); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, v.TimestampTZ.OffsetMinutes)
	case types.KindInterval:
		if err := binary.Write(w, binary.BigEndian, v.Interval.Months); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, v.Interval.Days); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, v.Interval.Micros)
	default:
		return fmt.Errorf("page: unknown kind %v", v.Kind)
	}
}

func encodeDateTime(w *bytes.Buffer, dt types.DateTime) error {
	fields := []int32{int32(dt.Year), int32(dt.Month), int32(dt.Day), int32(dt.Hour), int32(dt.Minute), int32(dt.Second), int32(dt.Micro)}
	for _, f := range fields {
		if err := binary.Write(w, binary.BigEndian, f); err != nil {
			return err
		}
	}
	return nil
}

func decodeDateTime(r *bytes.Reader) (types.DateTime, error) {
	var fields [7]int32
	for i := range fields {
		if err := binary.Read(r, binary.BigEndian, &fields[i]); err != nil {
			return types.DateTime{}, err
		}
	}
	return types.DateTime{
		Year: int(fields[0]), Month: int(fields[1]), Day: int(fields[2]),
		Hour: int(fields[3]), Minute: int(fields[4]), Second: int(fields[5]),
		Micro: int(fields[6]),
	}, nil
}

// DecodeValue reads a single value of the given kind/array-ness/toast
// state, the inverse of EncodeValue.
func DecodeValue(r *bytes.Reader, kind types.Kind, isArray, isToast bool) (types.ColumnValue, error) {
	v := types.ColumnValue{Kind: kind, IsArray: isArray, IsToast: isToast}
	if isToast {
		if err := binary.Read(r, binary.BigEndian, &v.ToastID); err != nil {
			return v, err
		}
		return v, nil
	}
	if isArray {
		var count uint32
		if err := binary.Read(r, binary.BigEndian, &count); err != nil {
			return v, err
		}
		elemTag, err := r.ReadByte()
		if err != nil {
			return v, err
		}
		v.ElementKind = types.Kind(elemTag)
		v.Elements = make([]types.ColumnValue, 0, count)
		for i := uint32(0); i < count; i++ {
			e, err := DecodeValue(r, v.ElementKind, false, false)
			if err != nil {
				return v, err
			}
			v.Elements = append(v.Elements, e)
		}
		return v, nil
	}

	switch kind {
	case types.KindInt, types.KindSerial:
		return v, binary.Read(r, binary.BigEndian, &v.Int)
	case types.KindUint:
		return v, binary.Read(r, binary.BigEndian, &v.Uint)
	case types.KindFloat:
		return v, binary.Read(r, binary.BigEndian, &v.Float32)
	case types.KindDouble:
		return v, binary.Read(r, binary.BigEndian, &v.Float64)
	case types.KindDecimal:
		p, err := r.ReadByte()
		if err != nil {
			return v, err
		}
		s, err := r.ReadByte()
		if err != nil {
			return v, err
		}
		v.Decimal.Precision = int(p)
		v.Decimal.Scale = int(s)
		return v, binary.Read(r, binary.BigEndian, &v.Decimal.Digits)
	case types.KindBool:
		b, err := r.ReadByte()
		v.Bool = b != 0
		return v, err
	case types.KindChar, types.KindVarchar, types.KindText, types.KindJSON:
		var n uint16
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return v, err
		}
		buf := make([]byte, n)
		if _, err := readFull(r, buf); err != nil {
			return v, err
		}
		v.Str = string(buf)
		return v, nil
	case types.KindBlob:
		var n uint16
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return v, err
		}
		buf := make([]byte, n)
		if _, err := readFull(r, buf); err != nil {
			return v, err
		}
		v.Blob = buf
		return v, nil
	case types.KindUUID:
		var buf [16]byte
		if _, err := readFull(r, buf[:]); err != nil {
			return v, err
		}
		id, err := uuid.FromBytes(buf[:])
		if err != nil {
			return v, err
		}
		v.UUID = id
		return v, nil
	case types.KindDate:
		var d int32
		if err := binary.Read(r, binary.BigEndian, &d); err != nil {
			return v, err
		}
		v.Date = types.Date(d)
		return v, nil
	case types.KindTime:
		var t int64
		if err := binary.Read(r, binary.BigEndian, &t); err != nil {
			return v, err
		}
		v.Time = types.TimeOfDay(t)
		return v, nil
	case types.KindTimeTZ:
		var t int64
		if err := binary.Read(r, binary.BigEndian, &t); err != nil {
			return v, err
		}
		var off int32
		if err := binary.Read(r, binary.BigEndian, &off); err != nil {
			return v, err
		}
		v.TimeTZ = types.TimeTZ{Time: types.TimeOfDay(t), OffsetMinutes: off}
		return v, nil
	case types.KindDateTime:
		dt, err := decodeDateTime(r)
		v.DateTime = dt
		return v, err
	case types.KindDateTimeTZ:
		dt, err := decodeDateTime(r)
		if err != nil {
			return v, err
		}
		var off int32
		if err := binary.Read(r, binary.BigEndian, &off); err != nil {
			return v, err
		}
		v.DateTimeTZ = types.DateTimeTZ{DateTime: dt, OffsetMinutes: off}
		return v, nil
	case types.KindTimestamp:
		var t int64
		if err := binary.Read(r, binary.BigEndian, &t); err != nil {
			return v, err
		}
		v.Timestamp = types.Timestamp(t)
		return v, nil
	case types.KindTimestampTZ:
		var t int64
		if err := binary.Read(r, binary.BigEndian, &t); err != nil {
			return v, err
		}
		var off int32
		if err := binary.Read(r, binary.BigEndian, &off); err != nil {
			return v, err
		}
		v.TimestampTZ = types.TimestampTZ{Timestamp: types.Timestamp(t), OffsetMinutes: off}
		return v, nil
	case types.KindInterval:
		var months, days int32
		var micros int64
		if err := binary.Read(r, binary.BigEndian, &months); err != nil {
			return v, err
		}
		if err := binary.Read(r, binary.BigEndian, &days); err != nil {
			return v, err
		}
		if err := binary.Read(r, binary.BigEndian, &micros); err != nil {
			return v, err
		}
		v.Interval = types.Interval{Months: months, Days: days, Micros: micros}
		return v, nil
	default:
		return v, fmt.Errorf("page: unknown kind %v", kind)
	}
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n, err := r.Read(buf)
	if n == len(buf) {
		return n, nil
	}
	if err == nil {
		err = fmt.Errorf("page: short read")
	}
	return n, err
}
