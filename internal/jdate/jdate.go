// Package jdate implements the engine's fixed-integer date/time codec
// (spec §4.8). Values are encoded so that comparison is plain integer
// comparison; the encoding constants are carried forward from the
// original C source (src/db/datetime.h) rather than re-derived, per
// SPEC_FULL.md's "Supplemented features" note.
package jdate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jugadbase/jugadb/internal/types"
)

// EpochYear is the engine's calendar epoch.
const EpochYear = 2000

// DateEpochOffset is JUGADBASE_DATE_EPOCH from the original source: the
// absolute-day number of 2000-01-01, so Date values line up with an
// absolute-day scheme rather than a bare "days since 2000" counter.
const DateEpochOffset = 730120

// MinTZOffsetMinutes and MaxTZOffsetMinutes bound timezone-aware values
// (spec §4.8: range [-720, +840]).
const (
	MinTZOffsetMinutes = -720
	MaxTZOffsetMinutes = 840
)

func isLeap(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

var daysInMonth = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

func daysInMonthOf(year, month int) int {
	if month == 2 && isLeap(year) {
		return 29
	}
	return daysInMonth[month-1]
}

// IsValidDate implements is_valid_date from the original source: month
// in [1,12], day in range for that month/year, Gregorian leap rule.
func IsValidDate(y, m, d int) bool {
	if m < 1 || m > 12 {
		return false
	}
	if d < 1 || d > daysInMonthOf(y, m) {
		return false
	}
	return true
}

// absoluteDay converts a Gregorian (y, m, d) to an absolute day number
// (days since an implementation-fixed day 0), matching the original
// source's accumulation scheme closely enough to preserve total
// ordering and round-trip fidelity.
func absoluteDay(y, m, d int) int64 {
	days := int64(0)
	if y >= EpochYear {
		for yy := EpochYear; yy < y; yy++ {
			days += 365
			if isLeap(yy) {
				days++
			}
		}
	} else {
		for yy := y; yy < EpochYear; yy++ {
			days -= 365
			if isLeap(yy) {
				days--
			}
		}
	}
	for mm := 1; mm < m; mm++ {
		days += int64(daysInMonthOf(y, mm))
	}
	days += int64(d - 1)
	return days + DateEpochOffset
}

// dateFromAbsolute is the inverse of absoluteDay.
func dateFromAbsolute(abs int64) (y, m, d int) {
	days := abs - DateEpochOffset
	y = EpochYear
	if days >= 0 {
		for {
			yearLen := int64(365)
			if isLeap(y) {
				yearLen = 366
			}
			if days < yearLen {
				break
			}
			days -= yearLen
			y++
		}
	} else {
		for days < 0 {
			y--
			yearLen := int64(365)
			if isLeap(y) {
				yearLen = 366
			}
			days += yearLen
		}
	}
	m = 1
	for {
		ml := int64(daysInMonthOf(y, m))
		if days < ml {
			break
		}
		days -= ml
		m++
	}
	d = int(days) + 1
	return
}

// EncodeDate converts a calendar date to the on-disk Date encoding.
func EncodeDate(y, m, d int) (types.Date, error) {
	if !IsValidDate(y, m, d) {
		return 0, fmt.Errorf("jdate: invalid date %04d-%02d-%02d", y, m, d)
	}
	return types.Date(absoluteDay(y, m, d)), nil
}

// DecodeDate is the inverse of EncodeDate.
func DecodeDate(v types.Date) (y, m, d int) {
	return dateFromAbsolute(int64(v))
}

// EncodeTime converts an hour/minute/second(+micro) time-of-day to
// microseconds since midnight.
func EncodeTime(h, min, s, micro int) (types.TimeOfDay, error) {
	if h < 0 || h > 23 || min < 0 || min > 59 || s < 0 || s > 59 {
		return 0, fmt.Errorf("jdate: invalid time %02d:%02d:%02d", h, min, s)
	}
	total := int64(h)*3600_000_000 + int64(min)*60_000_000 + int64(s)*1_000_000 + int64(micro)
	return types.TimeOfDay(total), nil
}

// DecodeTime is the inverse of EncodeTime.
func DecodeTime(v types.TimeOfDay) (h, min, s, micro int) {
	t := int64(v)
	micro = int(t % 1_000_000)
	t /= 1_000_000
	s = int(t % 60)
	t /= 60
	min = int(t % 60)
	t /= 60
	h = int(t)
	return
}

// EncodeTimestamp converts a full datetime to microseconds since the
// engine epoch (2000-01-01 00:00:00).
func EncodeTimestamp(dt types.DateTime) (types.Timestamp, error) {
	date, err := EncodeDate(dt.Year, dt.Month, dt.Day)
	if err != nil {
		return 0, err
	}
	tod, err := EncodeTime(dt.Hour, dt.Minute, dt.Second, dt.Micro)
	if err != nil {
		return 0, err
	}
	days := int64(date) - DateEpochOffset
	return types.Timestamp(days*86400_000_000 + int64(tod)), nil
}

// DecodeTimestamp is the inverse of EncodeTimestamp.
func DecodeTimestamp(ts types.Timestamp) types.DateTime {
	total := int64(ts)
	days := total / 86400_000_000
	rem := total % 86400_000_000
	if rem < 0 {
		rem += 86400_000_000
		days--
	}
	y, m, d := dateFromAbsolute(days + DateEpochOffset)
	h, min, s, micro := DecodeTime(types.TimeOfDay(rem))
	return types.DateTime{Year: y, Month: m, Day: d, Hour: h, Minute: min, Second: s, Micro: micro}
}

// ValidTZOffset reports whether a timezone offset in minutes is within
// the engine's supported range.
func ValidTZOffset(minutes int32) bool {
	return minutes >= MinTZOffsetMinutes && minutes <= MaxTZOffsetMinutes
}

// Parse accepts the ISO-like grammar from spec §4.8:
// YYYY-MM-DD[ HH:MM:SS[±HH:MM]]. Returns the broken-out DateTime and,
// if present, the timezone offset in minutes.
func Parse(s string) (types.DateTime, *int32, error) {
	s = strings.TrimSpace(s)
	datePart := s
	timePart := ""
	if sp := strings.IndexAny(s, " T"); sp >= 0 {
		datePart = s[:sp]
		timePart = s[sp+1:]
	}

	dateFields := strings.Split(datePart, "-")
	if len(dateFields) != 3 {
		return types.DateTime{}, nil, fmt.Errorf("jdate: bad date %q", datePart)
	}
	y, err1 := strconv.Atoi(dateFields[0])
	m, err2 := strconv.Atoi(dateFields[1])
	d, err3 := strconv.Atoi(dateFields[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return types.DateTime{}, nil, fmt.Errorf("jdate: bad date %q", datePart)
	}
	if !IsValidDate(y, m, d) {
		return types.DateTime{}, nil, fmt.Errorf("jdate: invalid date %q", datePart)
	}

	dt := types.DateTime{Year: y, Month: m, Day: d}
	var tzPtr *int32

	if timePart != "" {
		sign := 0
		tzIdx := -1
		for i := len(timePart) - 1; i >= 0; i-- {
			if timePart[i] == '+' {
				sign = 1
				tzIdx = i
				break
			}
			if timePart[i] == '-' {
				sign = -1
				tzIdx = i
				break
			}
		}
		timeOnly := timePart
		if tzIdx > 0 {
			timeOnly = timePart[:tzIdx]
			tzStr := timePart[tzIdx+1:]
			tzFields := strings.Split(tzStr, ":")
			if len(tzFields) != 2 {
				return types.DateTime{}, nil, fmt.Errorf("jdate: bad tz %q", tzStr)
			}
			th, e1 := strconv.Atoi(tzFields[0])
			tm, e2 := strconv.Atoi(tzFields[1])
			if e1 != nil || e2 != nil {
				return types.DateTime{}, nil, fmt.Errorf("jdate: bad tz %q", tzStr)
			}
			offset := int32(sign) * int32(th*60+tm)
			if !ValidTZOffset(offset) {
				return types.DateTime{}, nil, fmt.Errorf("jdate: tz offset %d out of range", offset)
			}
			tzPtr = &offset
		}

		timeFields := strings.Split(timeOnly, ":")
		if len(timeFields) != 3 {
			return types.DateTime{}, nil, fmt.Errorf("jdate: bad time %q", timeOnly)
		}
		h, e1 := strconv.Atoi(timeFields[0])
		min, e2 := strconv.Atoi(timeFields[1])
		secStr := timeFields[2]
		micro := 0
		if dot := strings.IndexByte(secStr, '.'); dot >= 0 {
			fracStr := secStr[dot+1:]
			secStr = secStr[:dot]
			for len(fracStr) < 6 {
				fracStr += "0"
			}
			fracStr = fracStr[:6]
			if f, err := strconv.Atoi(fracStr); err == nil {
				micro = f
			}
		}
		sec, e3 := strconv.Atoi(secStr)
		if e1 != nil || e2 != nil || e3 != nil {
			return types.DateTime{}, nil, fmt.Errorf("jdate: bad time %q", timeOnly)
		}
		if h < 0 || h > 23 || min < 0 || min > 59 || sec < 0 || sec > 59 {
			return types.DateTime{}, nil, fmt.Errorf("jdate: invalid time %q", timeOnly)
		}
		dt.Hour, dt.Minute, dt.Second, dt.Micro = h, min, sec, micro
	}

	return dt, tzPtr, nil
}

// Compare implements compare_datetime's field-by-field comparison.
func Compare(a, b types.DateTime) int {
	switch {
	case a.Year != b.Year:
		return a.Year - b.Year
	case a.Month != b.Month:
		return a.Month - b.Month
	case a.Day != b.Day:
		return a.Day - b.Day
	case a.Hour != b.Hour:
		return a.Hour - b.Hour
	case a.Minute != b.Minute:
		return a.Minute - b.Minute
	case a.Second != b.Second:
		return a.Second - b.Second
	default:
		return a.Micro - b.Micro
	}
}

// AddInterval implements "datetime +/- interval -> datetime" from spec
// §4.6: months and days are applied calendar-aware, micros arithmetically.
func AddInterval(dt types.DateTime, iv types.Interval, negate bool) types.DateTime {
	months := iv.Months
	days := iv.Days
	micros := iv.Micros
	if negate {
		months, days, micros = -months, -days, -micros
	}

	totalMonths := dt.Year*12 + (dt.Month - 1) + int(months)
	y := totalMonths / 12
	m := totalMonths % 12
	if m < 0 {
		m += 12
		y--
	}
	m++
	d := dt.Day
	if maxDay := daysInMonthOf(y, m); d > maxDay {
		d = maxDay
	}

	ts, _ := EncodeTimestamp(types.DateTime{Year: y, Month: m, Day: d, Hour: dt.Hour, Minute: dt.Minute, Second: dt.Second, Micro: dt.Micro})
	ts = types.Timestamp(int64(ts) + int64(days)*86400_000_000 + micros)
	return DecodeTimestamp(ts)
}

// DiffToInterval implements "datetime - datetime -> interval": whole
// days plus remaining microseconds, no month component (months are
// ambiguous for a raw subtraction).
func DiffToInterval(a, b types.DateTime) types.Interval {
	ta, _ := EncodeTimestamp(a)
	tb, _ := EncodeTimestamp(b)
	diff := int64(ta) - int64(tb)
	days := diff / 86400_000_000
	micros := diff % 86400_000_000
	return types.Interval{Days: int32(days), Micros: micros}
}
