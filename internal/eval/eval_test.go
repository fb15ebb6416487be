package eval

import (
	"testing"

	"github.com/jugadbase/jugadb/internal/jdate"
	"github.com/jugadbase/jugadb/internal/parser"
	"github.com/jugadbase/jugadb/internal/types"
	"github.com/stretchr/testify/require"
)

func parseExpr(t *testing.T, src string) parser.Expr {
	t.Helper()
	p := parser.New(src, nil)
	e, err := p.ParseExpr()
	require.NoError(t, err)
	return e
}

func evalStr(t *testing.T, src string) types.ColumnValue {
	t.Helper()
	v, err := Eval(parseExpr(t, src), nil)
	require.NoError(t, err)
	return v
}

func TestArithmeticCoercion(t *testing.T) {
	v := evalStr(t, "1 + 2")
	require.Equal(t, int64(3), v.Int)

	v = evalStr(t, "1 + 2.5")
	f, ok := v.AsFloat()
	require.True(t, ok)
	require.Equal(t, 3.5, f)

	v = evalStr(t, "10 / 4")
	require.Equal(t, int64(2), v.Int)

	v = evalStr(t, "7 % 2")
	require.Equal(t, int64(1), v.Int)
}

func TestComparisonAndLogic(t *testing.T) {
	v := evalStr(t, "1 < 2 AND 3 > 2")
	require.True(t, v.Bool)

	v = evalStr(t, "1 = 2 OR 3 = 3")
	require.True(t, v.Bool)

	v = evalStr(t, "NOT (1 = 1)")
	require.False(t, v.Bool)
}

func TestLikePatterns(t *testing.T) {
	require.True(t, evalStr(t, "'hello' LIKE 'h%'").Bool)
	require.True(t, evalStr(t, "'hello' LIKE 'h_llo'").Bool)
	require.False(t, evalStr(t, "'hello' LIKE 'x%'").Bool)
	require.True(t, evalStr(t, "'abc' LIKE '[a-c]bc'").Bool)
	require.True(t, evalStr(t, "'hello' NOT LIKE 'x%'").Bool)
}

func TestBetweenInclusive(t *testing.T) {
	require.True(t, evalStr(t, "5 BETWEEN 1 AND 5").Bool)
	require.True(t, evalStr(t, "1 BETWEEN 1 AND 5").Bool)
	require.False(t, evalStr(t, "6 BETWEEN 1 AND 5").Bool)
}

func TestInLinear(t *testing.T) {
	require.True(t, evalStr(t, "2 IN (1, 2, 3)").Bool)
	require.False(t, evalStr(t, "4 IN (1, 2, 3)").Bool)
	require.True(t, evalStr(t, "4 NOT IN (1, 2, 3)").Bool)
}

func TestScalarFunctions(t *testing.T) {
	v := evalStr(t, "ABS(-3)")
	f, _ := v.AsFloat()
	require.Equal(t, 3.0, f)

	require.Equal(t, "HELLO", evalStr(t, "UPPER('hello')").Str)
	require.Equal(t, "ab", evalStr(t, "CONCAT('a', 'b')").Str)
	require.Equal(t, int64(5), evalStr(t, "LENGTH('hello')").Int)
	require.Equal(t, "ell", evalStr(t, "SUBSTRING('hello', 2, 3)").Str)

	v = evalStr(t, "COALESCE(NULL, NULL, 7)")
	require.Equal(t, int64(7), v.Int)

	v = evalStr(t, "GREATEST(1, 9, 3)")
	f, _ = v.AsFloat()
	require.Equal(t, 9.0, f)

	v = evalStr(t, "LEAST(1, 9, 3)")
	f, _ = v.AsFloat()
	require.Equal(t, 1.0, f)
}

func TestCastAndExtract(t *testing.T) {
	v := evalStr(t, "CAST('42' AS INT)")
	require.Equal(t, types.KindInt, v.Kind)
	require.Equal(t, int64(42), v.Int)

	v = evalStr(t, "CAST(3.7 AS INT)")
	require.Equal(t, int64(3), v.Int)

	v = evalStr(t, "EXTRACT(YEAR FROM CAST('2020-05-17' AS DATE))")
	require.Equal(t, int64(2020), v.Int)
}

func TestDateArithmetic(t *testing.T) {
	dt, _, err := jdate.Parse("2020-01-31T00:00:00")
	require.NoError(t, err)

	left := types.ColumnValue{Kind: types.KindDateTime, DateTime: dt}
	right := types.ColumnValue{Kind: types.KindInterval, Interval: types.Interval{Months: 1}}

	result, err := evalDateTimeArith("+", left, right)
	require.NoError(t, err)
	require.Equal(t, 2020, result.DateTime.Year)
	require.Equal(t, 2, result.DateTime.Month)

	diff, err := evalDateTimeArith("-", left, left)
	require.NoError(t, err)
	require.Equal(t, types.KindInterval, diff.Kind)
	require.Equal(t, int32(0), diff.Interval.Months)
	require.Equal(t, int32(0), diff.Interval.Days)
}

func TestColumnRefRequiresRowContext(t *testing.T) {
	_, err := Eval(&parser.ColumnRef{Name: "x", Index: 0}, nil)
	require.Error(t, err)
}
