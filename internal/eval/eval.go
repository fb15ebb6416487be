// Package eval implements the bottom-up expression evaluator described
// in spec §4.6: it walks a parser.Expr tree for one row and produces a
// types.ColumnValue, handling arithmetic coercion, LIKE/BETWEEN/IN, and
// date/time arithmetic. Modeled on the teacher's
// internal/query.Evaluator (an AST-walking evaluator that produces
// predicate/derived values from the same parser's Node tree),
// generalised from a boolean-predicate-only evaluator to one that also
// projects arbitrary scalar expressions.
package eval

import (
	"fmt"

	"github.com/jugadbase/jugadb/internal/parser"
	"github.com/jugadbase/jugadb/internal/types"
)

// TypeError is raised when coercion fails (spec §7: "Coercion fails
// (infer_and_cast returns false)").
type TypeError struct {
	Message string
}

func (e *TypeError) Error() string { return "type error: " + e.Message }

// Context is everything an expression evaluation needs beyond the
// expression tree itself: the current row (nil while evaluating an
// INSERT's VALUES expressions, which have no row to read from) and the engine's
// injected clock/PRNG so NOW()/RAND() are reproducible in tests.
type Context struct {
	Row *types.Row
	Now func() types.Timestamp
	Rand func() float64
}

func (c *Context) now() types.Timestamp {
	if c == nil || c.Now == nil {
		return 0
	}
	return c.Now()
}

func (c *Context) rnd() float64 {
	if c == nil || c.Rand == nil {
		return 0
	}
	return c.Rand()
}

// Eval evaluates e against ctx (spec §4.6: "proceeds bottom-up").
func Eval(e parser.Expr, ctx *Context) (types.ColumnValue, error) {
	switch n := e.(type) {
	case *parser.Literal:
		return n.Value.Clone(), nil
	case *parser.ArrayLiteral:
		return evalArrayLiteral(n, ctx)
	case *parser.ColumnRef:
		if ctx == nil || ctx.Row == nil {
			return types.ColumnValue{}, fmt.Errorf("eval: column %q referenced with no row context", n.Name)
		}
		if n.Index < 0 || n.Index >= len(ctx.Row.Values) {
			return types.ColumnValue{}, fmt.Errorf("eval: column index %d out of range", n.Index)
		}
		return ctx.Row.Values[n.Index].Clone(), nil
	case *parser.ArrayIndex:
		return evalArrayIndex(n, ctx)
	case *parser.Unary:
		return evalUnary(n, ctx)
	case *parser.Binary:
		return evalBinary(n, ctx)
	case *parser.Like:
		return evalLike(n, ctx)
	case *parser.Between:
		return evalBetween(n, ctx)
	case *parser.In:
		return evalIn(n, ctx)
	case *parser.FuncCall:
		if n.IsAggregate {
			return types.ColumnValue{}, fmt.Errorf("eval: aggregate function %s must be evaluated over a result set, not a single row", n.Name)
		}
		return evalFunc(n, ctx)
	case *parser.Star:
		return types.ColumnValue{}, fmt.Errorf("eval: '*' is not a scalar expression")
	default:
		return types.ColumnValue{}, fmt.Errorf("eval: unhandled expression node %T", e)
	}
}

func evalArrayLiteral(n *parser.ArrayLiteral, ctx *Context) (types.ColumnValue, error) {
	elems := make([]types.ColumnValue, 0, len(n.Elements))
	elemKind := types.KindInt
	for i, e := range n.Elements {
		v, err := Eval(e, ctx)
		if err != nil {
			return types.ColumnValue{}, err
		}
		if i == 0 {
			elemKind = v.Kind
		}
		elems = append(elems, v)
	}
	return types.ColumnValue{Kind: elemKind, IsArray: true, ElementKind: elemKind, Elements: elems}, nil
}

func evalArrayIndex(n *parser.ArrayIndex, ctx *Context) (types.ColumnValue, error) {
	arr, err := Eval(n.Array, ctx)
	if err != nil {
		return types.ColumnValue{}, err
	}
	if !arr.IsArray {
		return types.ColumnValue{}, &TypeError{Message: "index operator applied to a non-array value"}
	}
	idxVal, err := Eval(n.Index, ctx)
	if err != nil {
		return types.ColumnValue{}, err
	}
	idxF, ok := idxVal.AsFloat()
	if !ok {
		return types.ColumnValue{}, &TypeError{Message: "array index must be numeric"}
	}
	idx := int(idxF)
	if idx < 0 || idx >= len(arr.Elements) {
		return types.Null(arr.ElementKind), nil
	}
	return arr.Elements[idx].Clone(), nil
}

func evalUnary(n *parser.Unary, ctx *Context) (types.ColumnValue, error) {
	v, err := Eval(n.Operand, ctx)
	if err != nil {
		return types.ColumnValue{}, err
	}
	switch n.Op {
	case "NOT":
		b, ok := asBool(v)
		if !ok {
			return types.ColumnValue{}, &TypeError{Message: "NOT requires a boolean operand"}
		}
		return types.NewBool(!b), nil
	case "-":
		return negate(v)
	case "+":
		return v, nil
	default:
		return types.ColumnValue{}, fmt.Errorf("eval: unknown unary operator %q", n.Op)
	}
}

func negate(v types.ColumnValue) (types.ColumnValue, error) {
	switch v.Kind {
	case types.KindInt, types.KindSerial:
		return types.NewInt(-v.Int), nil
	case types.KindFloat:
		return types.ColumnValue{Kind: types.KindFloat, Float32: -v.Float32}, nil
	case types.KindDouble:
		return types.NewFloat(-v.Float64), nil
	case types.KindDecimal:
		out := v
		out.Decimal.Digits = -out.Decimal.Digits
		return out, nil
	default:
		return types.ColumnValue{}, &TypeError{Message: "unary '-' requires a numeric operand"}
	}
}

func asBool(v types.ColumnValue) (bool, bool) {
	if v.Kind != types.KindBool || v.IsNull {
		return false, false
	}
	return v.Bool, true
}
