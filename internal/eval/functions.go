package eval

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jugadbase/jugadb/internal/jdate"
	"github.com/jugadbase/jugadb/internal/parser"
	"github.com/jugadbase/jugadb/internal/types"
)

// evalFunc dispatches the fixed scalar function catalogue of spec
// §4.6. CAST and EXTRACT were given special argument encodings by
// parser.parseCastCall/parseExtractCall: CAST's second Arg is a Literal
// string naming the target type, and EXTRACT's first Arg is a Literal
// string naming the date field.
func evalFunc(n *parser.FuncCall, ctx *Context) (types.ColumnValue, error) {
	name := strings.ToUpper(n.Name)

	switch name {
	case "NOW":
		return types.ColumnValue{Kind: types.KindTimestamp, Timestamp: ctx.now()}, nil
	case "RAND":
		return types.NewFloat(ctx.rnd()), nil
	case "PI":
		return types.NewFloat(math.Pi), nil
	case "CAST":
		return evalCast(n, ctx)
	case "EXTRACT":
		return evalExtract(n, ctx)
	}

	args := make([]types.ColumnValue, len(n.Args))
	for i, a := range n.Args {
		v, err := Eval(a, ctx)
		if err != nil {
			return types.ColumnValue{}, err
		}
		args[i] = v
	}

	switch name {
	case "ABS":
		if err := arity(name, args, 1); err != nil {
			return types.ColumnValue{}, err
		}
		if args[0].IsNull {
			return args[0], nil
		}
		f, ok := args[0].AsFloat()
		if !ok {
			return types.ColumnValue{}, &TypeError{Message: "ABS requires a numeric argument"}
		}
		return types.NewFloat(math.Abs(f)), nil

	case "ROUND":
		if len(args) < 1 || len(args) > 2 {
			return types.ColumnValue{}, &TypeError{Message: "ROUND takes 1 or 2 arguments"}
		}
		if args[0].IsNull {
			return args[0], nil
		}
		f, ok := args[0].AsFloat()
		if !ok {
			return types.ColumnValue{}, &TypeError{Message: "ROUND requires a numeric argument"}
		}
		prec := 0
		if len(args) == 2 {
			pf, ok := args[1].AsFloat()
			if !ok {
				return types.ColumnValue{}, &TypeError{Message: "ROUND precision must be numeric"}
			}
			prec = int(pf)
		}
		mult := math.Pow(10, float64(prec))
		return types.NewFloat(math.Round(f*mult) / mult), nil

	case "FLOOR":
		return mathUnary(name, args, math.Floor)
	case "CEIL":
		return mathUnary(name, args, math.Ceil)
	case "SIN":
		return mathUnary(name, args, math.Sin)
	case "COS":
		return mathUnary(name, args, math.Cos)
	case "TAN":
		return mathUnary(name, args, math.Tan)
	case "DEGREES":
		return mathUnary(name, args, func(r float64) float64 { return r * 180 / math.Pi })
	case "RADIANS":
		return mathUnary(name, args, func(d float64) float64 { return d * math.Pi / 180 })

	case "LOG":
		if err := arity(name, args, 2); err != nil {
			return types.ColumnValue{}, err
		}
		base, ok1 := args[0].AsFloat()
		x, ok2 := args[1].AsFloat()
		if !ok1 || !ok2 {
			return types.ColumnValue{}, &TypeError{Message: "LOG requires numeric arguments"}
		}
		return types.NewFloat(math.Log(x) / math.Log(base)), nil

	case "POW":
		if err := arity(name, args, 2); err != nil {
			return types.ColumnValue{}, err
		}
		base, ok1 := args[0].AsFloat()
		exp, ok2 := args[1].AsFloat()
		if !ok1 || !ok2 {
			return types.ColumnValue{}, &TypeError{Message: "POW requires numeric arguments"}
		}
		return types.NewFloat(math.Pow(base, exp)), nil

	case "CONCAT":
		var sb strings.Builder
		for _, a := range args {
			if a.IsNull {
				continue
			}
			sb.WriteString(stringOf(a))
		}
		return types.NewString(types.KindText, sb.String()), nil

	case "SUBSTRING":
		if len(args) < 2 || len(args) > 3 {
			return types.ColumnValue{}, &TypeError{Message: "SUBSTRING takes 2 or 3 arguments"}
		}
		if args[0].IsNull {
			return args[0], nil
		}
		s := []rune(stringOf(args[0]))
		startF, _ := args[1].AsFloat()
		start := int(startF) - 1
		if start < 0 {
			start = 0
		}
		if start > len(s) {
			start = len(s)
		}
		end := len(s)
		if len(args) == 3 {
			lenF, _ := args[2].AsFloat()
			end = start + int(lenF)
			if end > len(s) {
				end = len(s)
			}
			if end < start {
				end = start
			}
		}
		return types.NewString(types.KindText, string(s[start:end])), nil

	case "LENGTH":
		if err := arity(name, args, 1); err != nil {
			return types.ColumnValue{}, err
		}
		if args[0].IsNull {
			return args[0], nil
		}
		return types.NewInt(int64(len([]rune(stringOf(args[0]))))), nil

	case "LOWER":
		if err := arity(name, args, 1); err != nil {
			return types.ColumnValue{}, err
		}
		if args[0].IsNull {
			return args[0], nil
		}
		return types.NewString(types.KindText, strings.ToLower(stringOf(args[0]))), nil

	case "UPPER":
		if err := arity(name, args, 1); err != nil {
			return types.ColumnValue{}, err
		}
		if args[0].IsNull {
			return args[0], nil
		}
		return types.NewString(types.KindText, strings.ToUpper(stringOf(args[0]))), nil

	case "TRIM":
		if err := arity(name, args, 1); err != nil {
			return types.ColumnValue{}, err
		}
		if args[0].IsNull {
			return args[0], nil
		}
		return types.NewString(types.KindText, strings.TrimSpace(stringOf(args[0]))), nil

	case "REPLACE":
		if err := arity(name, args, 3); err != nil {
			return types.ColumnValue{}, err
		}
		if args[0].IsNull {
			return args[0], nil
		}
		return types.NewString(types.KindText, strings.ReplaceAll(stringOf(args[0]), stringOf(args[1]), stringOf(args[2]))), nil

	case "COALESCE":
		for _, a := range args {
			if !a.IsNull {
				return a, nil
			}
		}
		if len(args) == 0 {
			return types.Null(types.KindInt), nil
		}
		return args[len(args)-1], nil

	case "IFNULL":
		if err := arity(name, args, 2); err != nil {
			return types.ColumnValue{}, err
		}
		if !args[0].IsNull {
			return args[0], nil
		}
		return args[1], nil

	case "GREATEST":
		return extremum(name, args, false)
	case "LEAST":
		return extremum(name, args, true)

	case "DATE":
		if err := arity(name, args, 1); err != nil {
			return types.ColumnValue{}, err
		}
		return castToDate(args[0])

	case "TIME":
		if err := arity(name, args, 1); err != nil {
			return types.ColumnValue{}, err
		}
		return castToTime(args[0])

	default:
		return types.ColumnValue{}, fmt.Errorf("eval: unknown function %s", n.Name)
	}
}

func arity(name string, args []types.ColumnValue, n int) error {
	if len(args) != n {
		return &TypeError{Message: fmt.Sprintf("%s takes %d argument(s)", name, n)}
	}
	return nil
}

func mathUnary(name string, args []types.ColumnValue, fn func(float64) float64) (types.ColumnValue, error) {
	if err := arity(name, args, 1); err != nil {
		return types.ColumnValue{}, err
	}
	if args[0].IsNull {
		return args[0], nil
	}
	f, ok := args[0].AsFloat()
	if !ok {
		return types.ColumnValue{}, &TypeError{Message: fmt.Sprintf("%s requires a numeric argument", name)}
	}
	return types.NewFloat(fn(f)), nil
}

func extremum(name string, args []types.ColumnValue, least bool) (types.ColumnValue, error) {
	if len(args) == 0 {
		return types.ColumnValue{}, &TypeError{Message: fmt.Sprintf("%s requires at least one argument", name)}
	}
	best := types.ColumnValue{}
	haveBest := false
	for _, a := range args {
		if a.IsNull {
			continue
		}
		if !haveBest {
			best = a
			haveBest = true
			continue
		}
		cmp, err := Compare(a, best)
		if err != nil {
			return types.ColumnValue{}, err
		}
		if (least && cmp < 0) || (!least && cmp > 0) {
			best = a
		}
	}
	if !haveBest {
		return types.Null(types.KindInt), nil
	}
	return best, nil
}

// numericOf coerces v to float64, additionally parsing string values
// so CAST(text AS numeric-type) works.
func numericOf(v types.ColumnValue) (float64, bool) {
	if f, ok := v.AsFloat(); ok {
		return f, true
	}
	switch v.Kind {
	case types.KindVarchar, types.KindText, types.KindChar, types.KindJSON:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func stringOf(v types.ColumnValue) string {
	switch v.Kind {
	case types.KindVarchar, types.KindText, types.KindChar, types.KindJSON:
		return v.Str
	default:
		if f, ok := v.AsFloat(); ok {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
		return fmt.Sprintf("%v", v)
	}
}

// evalCast implements CAST(expr AS type); parseCastCall encodes the
// target type name as a Literal string in Args[1] (spec §4.2, §4.6).
func evalCast(n *parser.FuncCall, ctx *Context) (types.ColumnValue, error) {
	if len(n.Args) != 2 {
		return types.ColumnValue{}, &TypeError{Message: "CAST requires an expression and a target type"}
	}
	v, err := Eval(n.Args[0], ctx)
	if err != nil {
		return types.ColumnValue{}, err
	}
	lit, ok := n.Args[1].(*parser.Literal)
	if !ok || lit.Value.Kind != types.KindText {
		return types.ColumnValue{}, &TypeError{Message: "CAST target type must be a type name"}
	}
	target := strings.ToUpper(lit.Value.Str)
	if v.IsNull {
		return v, nil
	}
	switch target {
	case "INT", "INTEGER":
		f, ok := numericOf(v)
		if !ok {
			return types.ColumnValue{}, &TypeError{Message: "cannot cast to INT"}
		}
		return types.NewInt(int64(f)), nil
	case "UINT":
		f, ok := numericOf(v)
		if !ok {
			return types.ColumnValue{}, &TypeError{Message: "cannot cast to UINT"}
		}
		return types.NewUint(uint64(f)), nil
	case "FLOAT":
		f, ok := numericOf(v)
		if !ok {
			return types.ColumnValue{}, &TypeError{Message: "cannot cast to FLOAT"}
		}
		return types.ColumnValue{Kind: types.KindFloat, Float32: float32(f)}, nil
	case "DOUBLE":
		f, ok := numericOf(v)
		if !ok {
			return types.ColumnValue{}, &TypeError{Message: "cannot cast to DOUBLE"}
		}
		return types.NewFloat(f), nil
	case "VARCHAR", "TEXT", "CHAR":
		k := types.KindText
		if target == "VARCHAR" {
			k = types.KindVarchar
		} else if target == "CHAR" {
			k = types.KindChar
		}
		return types.NewString(k, stringOf(v)), nil
	case "BOOL", "BOOLEAN":
		b, ok := asBool(v)
		if !ok {
			f, ok := v.AsFloat()
			if !ok {
				return types.ColumnValue{}, &TypeError{Message: "cannot cast to BOOL"}
			}
			b = f != 0
		}
		return types.NewBool(b), nil
	case "DATE":
		return castToDate(v)
	case "TIME":
		return castToTime(v)
	default:
		return types.ColumnValue{}, &TypeError{Message: fmt.Sprintf("unsupported CAST target type %q", target)}
	}
}

func castToDate(v types.ColumnValue) (types.ColumnValue, error) {
	switch v.Kind {
	case types.KindDate:
		return v, nil
	case types.KindDateTime:
		d, err := jdate.EncodeDate(v.DateTime.Year, v.DateTime.Month, v.DateTime.Day)
		if err != nil {
			return types.ColumnValue{}, err
		}
		return types.ColumnValue{Kind: types.KindDate, Date: d}, nil
	case types.KindTimestamp:
		dt := jdate.DecodeTimestamp(v.Timestamp)
		d, err := jdate.EncodeDate(dt.Year, dt.Month, dt.Day)
		if err != nil {
			return types.ColumnValue{}, err
		}
		return types.ColumnValue{Kind: types.KindDate, Date: d}, nil
	case types.KindVarchar, types.KindText, types.KindChar:
		dt, _, err := jdate.Parse(v.Str)
		if err != nil {
			return types.ColumnValue{}, err
		}
		d, err := jdate.EncodeDate(dt.Year, dt.Month, dt.Day)
		if err != nil {
			return types.ColumnValue{}, err
		}
		return types.ColumnValue{Kind: types.KindDate, Date: d}, nil
	default:
		return types.ColumnValue{}, &TypeError{Message: fmt.Sprintf("cannot cast %s to DATE", v.Kind)}
	}
}

func castToTime(v types.ColumnValue) (types.ColumnValue, error) {
	switch v.Kind {
	case types.KindTime:
		return v, nil
	case types.KindDateTime:
		t, err := jdate.EncodeTime(v.DateTime.Hour, v.DateTime.Minute, v.DateTime.Second, v.DateTime.Micro)
		if err != nil {
			return types.ColumnValue{}, err
		}
		return types.ColumnValue{Kind: types.KindTime, Time: t}, nil
	case types.KindVarchar, types.KindText, types.KindChar:
		dt, _, err := jdate.Parse(v.Str)
		if err != nil {
			return types.ColumnValue{}, err
		}
		t, err := jdate.EncodeTime(dt.Hour, dt.Minute, dt.Second, dt.Micro)
		if err != nil {
			return types.ColumnValue{}, err
		}
		return types.ColumnValue{Kind: types.KindTime, Time: t}, nil
	default:
		return types.ColumnValue{}, &TypeError{Message: fmt.Sprintf("cannot cast %s to TIME", v.Kind)}
	}
}

// evalExtract implements EXTRACT(field FROM expr); parseExtractCall
// encodes the field name as a Literal string in Args[0].
func evalExtract(n *parser.FuncCall, ctx *Context) (types.ColumnValue, error) {
	if len(n.Args) != 2 {
		return types.ColumnValue{}, &TypeError{Message: "EXTRACT requires a field and an expression"}
	}
	lit, ok := n.Args[0].(*parser.Literal)
	if !ok || lit.Value.Kind != types.KindText {
		return types.ColumnValue{}, &TypeError{Message: "EXTRACT field must be an identifier"}
	}
	field := strings.ToUpper(lit.Value.Str)
	v, err := Eval(n.Args[1], ctx)
	if err != nil {
		return types.ColumnValue{}, err
	}
	if v.IsNull {
		return types.Null(types.KindInt), nil
	}

	var dt types.DateTime
	switch v.Kind {
	case types.KindDateTime:
		dt = v.DateTime
	case types.KindDateTimeTZ:
		dt = v.DateTimeTZ.DateTime
	case types.KindTimestamp:
		dt = jdate.DecodeTimestamp(v.Timestamp)
	case types.KindTimestampTZ:
		dt = jdate.DecodeTimestamp(v.TimestampTZ.Timestamp)
	case types.KindDate:
		y, m, d := jdate.DecodeDate(v.Date)
		dt = types.DateTime{Year: y, Month: m, Day: d}
	case types.KindTime:
		h, min, s, micro := jdate.DecodeTime(v.Time)
		dt = types.DateTime{Hour: h, Minute: min, Second: s, Micro: micro}
	default:
		return types.ColumnValue{}, &TypeError{Message: fmt.Sprintf("EXTRACT is not defined for %s", v.Kind)}
	}

	switch field {
	case "YEAR":
		return types.NewInt(int64(dt.Year)), nil
	case "MONTH":
		return types.NewInt(int64(dt.Month)), nil
	case "DAY":
		return types.NewInt(int64(dt.Day)), nil
	case "HOUR":
		return types.NewInt(int64(dt.Hour)), nil
	case "MINUTE":
		return types.NewInt(int64(dt.Minute)), nil
	case "SECOND":
		return types.NewInt(int64(dt.Second)), nil
	default:
		return types.ColumnValue{}, &TypeError{Message: fmt.Sprintf("unknown EXTRACT field %q", field)}
	}
}
