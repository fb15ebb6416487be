package eval

import (
	"github.com/jugadbase/jugadb/internal/parser"
	"github.com/jugadbase/jugadb/internal/types"
)

// evalLike implements SQL LIKE with % (zero or more characters), _
// (exactly one character) and [...] bracket character classes (spec
// §4.6).
func evalLike(n *parser.Like, ctx *Context) (types.ColumnValue, error) {
	v, err := Eval(n.Value, ctx)
	if err != nil {
		return types.ColumnValue{}, err
	}
	pat, err := Eval(n.Pattern, ctx)
	if err != nil {
		return types.ColumnValue{}, err
	}
	if v.IsNull || pat.IsNull {
		return types.Null(types.KindBool), nil
	}
	if v.Kind != types.KindVarchar && v.Kind != types.KindText && v.Kind != types.KindChar {
		return types.ColumnValue{}, &TypeError{Message: "LIKE requires a string operand"}
	}
	matched := likeMatch(v.Str, pat.Str)
	if n.Negate {
		matched = !matched
	}
	return types.NewBool(matched), nil
}

// likeMatch is a small backtracking matcher over runes: '%' matches
// any run (including empty), '_' matches exactly one rune, and
// '[...]' matches one rune from (or, with a leading '^', outside) the
// enclosed set.
func likeMatch(s, pattern string) bool {
	sr := []rune(s)
	pr := []rune(pattern)
	return likeMatchRunes(sr, pr)
}

func likeMatchRunes(s, p []rune) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	switch p[0] {
	case '%':
		if likeMatchRunes(s, p[1:]) {
			return true
		}
		for i := 0; i < len(s); i++ {
			if likeMatchRunes(s[i+1:], p[1:]) {
				return true
			}
		}
		return false
	case '_':
		if len(s) == 0 {
			return false
		}
		return likeMatchRunes(s[1:], p[1:])
	case '[':
		end := indexRune(p, ']')
		if end < 0 {
			if len(s) == 0 || s[0] != '[' {
				return false
			}
			return likeMatchRunes(s[1:], p[1:])
		}
		if len(s) == 0 {
			return false
		}
		class := p[1:end]
		negate := false
		if len(class) > 0 && class[0] == '^' {
			negate = true
			class = class[1:]
		}
		if matchClass(s[0], class) != negate {
			return likeMatchRunes(s[1:], p[end+1:])
		}
		return false
	default:
		if len(s) == 0 || s[0] != p[0] {
			return false
		}
		return likeMatchRunes(s[1:], p[1:])
	}
}

func indexRune(rs []rune, target rune) int {
	for i, r := range rs {
		if r == target {
			return i
		}
	}
	return -1
}

func matchClass(r rune, class []rune) bool {
	for i := 0; i < len(class); i++ {
		if i+2 < len(class) && class[i+1] == '-' {
			if r >= class[i] && r <= class[i+2] {
				return true
			}
			i += 2
			continue
		}
		if class[i] == r {
			return true
		}
	}
	return false
}

// evalBetween implements inclusive BETWEEN (spec §4.6).
func evalBetween(n *parser.Between, ctx *Context) (types.ColumnValue, error) {
	v, err := Eval(n.Value, ctx)
	if err != nil {
		return types.ColumnValue{}, err
	}
	lo, err := Eval(n.Low, ctx)
	if err != nil {
		return types.ColumnValue{}, err
	}
	hi, err := Eval(n.High, ctx)
	if err != nil {
		return types.ColumnValue{}, err
	}
	if v.IsNull || lo.IsNull || hi.IsNull {
		return types.Null(types.KindBool), nil
	}
	cmpLo, err := Compare(v, lo)
	if err != nil {
		return types.ColumnValue{}, err
	}
	cmpHi, err := Compare(v, hi)
	if err != nil {
		return types.ColumnValue{}, err
	}
	result := cmpLo >= 0 && cmpHi <= 0
	if n.Negate {
		result = !result
	}
	return types.NewBool(result), nil
}

// evalIn does a linear scan of the candidate list (spec §4.6: "IN is
// linear").
func evalIn(n *parser.In, ctx *Context) (types.ColumnValue, error) {
	v, err := Eval(n.Value, ctx)
	if err != nil {
		return types.ColumnValue{}, err
	}
	if v.IsNull {
		return types.Null(types.KindBool), nil
	}
	found := false
	for _, cand := range n.List {
		cv, err := Eval(cand, ctx)
		if err != nil {
			return types.ColumnValue{}, err
		}
		if cv.IsNull {
			continue
		}
		cmp, err := Compare(v, cv)
		if err == nil && cmp == 0 {
			found = true
			break
		}
	}
	if n.Negate {
		found = !found
	}
	return types.NewBool(found), nil
}
