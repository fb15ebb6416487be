package jdate

import (
	"testing"

	"github.com/jugadbase/jugadb/internal/types"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeDateRoundTrip(t *testing.T) {
	cases := []struct{ y, m, d int }{
		{2000, 1, 1},
		{1999, 12, 31},
		{2024, 2, 29}, // leap day
		{1900, 3, 1},  // not a leap year (divisible by 100, not 400)
		{2000, 2, 29}, // leap year (divisible by 400)
		{2100, 5, 17},
	}
	for _, c := range cases {
		enc, err := EncodeDate(c.y, c.m, c.d)
		require.NoError(t, err)
		y, m, d := DecodeDate(enc)
		require.Equal(t, c.y, y)
		require.Equal(t, c.m, m)
		require.Equal(t, c.d, d)
	}
}

func TestEncodeDateEpoch(t *testing.T) {
	enc, err := EncodeDate(2000, 1, 1)
	require.NoError(t, err)
	require.Equal(t, types.Date(DateEpochOffset), enc)
}

func TestInvalidDateRejected(t *testing.T) {
	_, err := EncodeDate(2023, 2, 29) // not a leap year
	require.Error(t, err)
	_, err = EncodeDate(2023, 13, 1)
	require.Error(t, err)
}

func TestTimeRoundTrip(t *testing.T) {
	enc, err := EncodeTime(13, 45, 30, 123456)
	require.NoError(t, err)
	h, m, s, micro := DecodeTime(enc)
	require.Equal(t, 13, h)
	require.Equal(t, 45, m)
	require.Equal(t, 30, s)
	require.Equal(t, 123456, micro)
}

func TestTimestampRoundTrip(t *testing.T) {
	dt := types.DateTime{Year: 2026, Month: 7, Day: 31, Hour: 8, Minute: 30, Second: 15}
	ts, err := EncodeTimestamp(dt)
	require.NoError(t, err)
	got := DecodeTimestamp(ts)
	require.Equal(t, dt, got)
}

func TestParseDateTimeWithOffset(t *testing.T) {
	dt, tz, err := Parse("2026-07-31 08:30:15+05:30")
	require.NoError(t, err)
	require.Equal(t, 2026, dt.Year)
	require.Equal(t, 8, dt.Hour)
	require.NotNil(t, tz)
	require.Equal(t, int32(5*60+30), *tz)
}

func TestParseDateOnly(t *testing.T) {
	dt, tz, err := Parse("2026-07-31")
	require.NoError(t, err)
	require.Nil(t, tz)
	require.Equal(t, 31, dt.Day)
}

func TestCompare(t *testing.T) {
	a := types.DateTime{Year: 2026, Month: 1, Day: 1}
	b := types.DateTime{Year: 2026, Month: 1, Day: 2}
	require.True(t, Compare(a, b) < 0)
	require.True(t, Compare(b, a) > 0)
	require.Equal(t, 0, Compare(a, a))
}

func TestAddIntervalClampsShortMonth(t *testing.T) {
	dt := types.DateTime{Year: 2026, Month: 1, Day: 31}
	got := AddInterval(dt, types.Interval{Months: 1}, false)
	require.Equal(t, 2, got.Month)
	require.Equal(t, 28, got.Day) // Feb 2026 has 28 days
}

func TestDiffToInterval(t *testing.T) {
	a := types.DateTime{Year: 2026, Month: 1, Day: 3}
	b := types.DateTime{Year: 2026, Month: 1, Day: 1}
	iv := DiffToInterval(a, b)
	require.Equal(t, int32(2), iv.Days)
	require.Equal(t, int64(0), iv.Micros)
}
