package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jugadbase/jugadb/internal/lexer"
	"github.com/jugadbase/jugadb/internal/types"
)

// SchemaLookup resolves a table name to its catalog schema; the
// executor supplies the real implementation backed by the catalog,
// tests supply an in-memory map (spec §4.2: "Command carries a
// TableSchema pointer bound from the catalog").
type SchemaLookup func(name string) (*types.TableSchema, bool)

// Parser is a recursive-descent, one-token-lookahead parser over a
// lexer.Lexer (spec §4.2). bound holds the schema that column
// identifiers in the current statement resolve against; while parsing
// CREATE TABLE's column list it is the schema being built, so a CHECK
// or DEFAULT can name columns declared before it.
type Parser struct {
	lex     *lexer.Lexer
	cur     lexer.Token
	started bool
	lookup  SchemaLookup
	bound   *types.TableSchema
}

// New builds a Parser over input. lookup may be nil if the caller only
// ever parses CREATE TABLE / expressions with no column references
// (e.g. re-parsing a DEFAULT expression against an already-bound
// schema supplied via BindSchema).
func New(input string, lookup SchemaLookup) *Parser {
	p := &Parser{lex: lexer.New(input), lookup: lookup}
	return p
}

// ensureStarted primes p.cur with the first token on first use, so
// both ParseStatement and the ParseExpr entry point used to re-parse a
// stored DEFAULT/CHECK expression (which never calls ParseStatement)
// see a real leading token instead of the zero Token.
func (p *Parser) ensureStarted() error {
	if p.started {
		return nil
	}
	p.started = true
	return p.advance()
}

// BindSchema sets the schema used to resolve bare column identifiers,
// used by the executor when re-parsing a stored DEFAULT/CHECK
// expression against the owning table (spec §4.6, §4.7).
func (p *Parser) BindSchema(schema *types.TableSchema) { p.bound = schema }

// State is parser+lexer position, saveable/restorable so the executor
// can re-enter the parser for nested statements without disturbing the
// outer parse (spec §4.2, §5, §9).
type State struct {
	mark lexer.Mark
	cur  lexer.Token
}

// Save captures the current parser position.
func (p *Parser) Save() State { return State{mark: p.lex.Save(), cur: p.cur} }

// Restore rewinds the parser to a previously captured State.
func (p *Parser) Restore(s State) {
	p.lex.Restore(s.mark)
	p.cur = s.cur
}

func (p *Parser) advance() error {
	tok, err := p.lex.NextToken()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *Parser) syntaxErrorf(format string, args ...any) error {
	return &lexer.SyntaxError{Message: fmt.Sprintf(format, args...), Line: p.cur.Line, Col: p.cur.Col}
}

func (p *Parser) atKeyword(word string) bool {
	return p.cur.Kind == lexer.Keyword && p.cur.Value == word
}

func (p *Parser) consumeKeyword(word string) bool {
	if p.atKeyword(word) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expectKeyword(word string) error {
	if !p.atKeyword(word) {
		return p.syntaxErrorf("expected %s, got %q", word, p.cur.Value)
	}
	return p.advance()
}

// expectNull consumes the NULL keyword of a NOT NULL / SET NOT NULL /
// DROP NOT NULL clause. NULL lexes as its own lexer.Null kind (spec
// §4.1: "the NULL keyword yields a distinct NULL token"), not as
// lexer.Keyword, so it cannot be matched with atKeyword/expectKeyword.
func (p *Parser) expectNull() error {
	if p.cur.Kind != lexer.Null {
		return p.syntaxErrorf("expected NULL, got %q", p.cur.Value)
	}
	return p.advance()
}

func (p *Parser) expectKind(k lexer.Kind) (lexer.Token, error) {
	if p.cur.Kind != k {
		return lexer.Token{}, p.syntaxErrorf("expected %v, got %v %q", k, p.cur.Kind, p.cur.Value)
	}
	tok := p.cur
	return tok, p.advance()
}

func (p *Parser) expectIdent() (string, error) {
	if p.cur.Kind != lexer.Ident && p.cur.Kind != lexer.Keyword {
		return "", p.syntaxErrorf("expected identifier, got %q", p.cur.Value)
	}
	name := p.cur.Value
	return name, p.advance()
}

// ParseStatement parses exactly one statement from the input,
// dispatching on the leading keyword (spec §4.2).
func (p *Parser) ParseStatement() (*Command, error) {
	if err := p.ensureStarted(); err != nil {
		return nil, err
	}
	unsafe := p.consumeKeyword("_unsafecon")

	var cmd *Command
	var err error
	switch {
	case p.atKeyword("CREATE"):
		cmd, err = p.parseCreateTable()
	case p.atKeyword("ALTER"):
		cmd, err = p.parseAlterTable()
	case p.atKeyword("INSERT"):
		cmd, err = p.parseInsert(unsafe)
	case p.atKeyword("SELECT"):
		cmd, err = p.parseSelect()
	case p.atKeyword("UPDATE"):
		cmd, err = p.parseUpdate(unsafe)
	case p.atKeyword("DELETE"):
		cmd, err = p.parseDelete()
	default:
		return nil, p.syntaxErrorf("unexpected token %q, expected a statement keyword", p.cur.Value)
	}
	if err != nil {
		return nil, err
	}
	cmd.Unsafe = unsafe
	if p.cur.Kind == lexer.Semicolon {
		p.advance()
	}
	if p.cur.Kind != lexer.EOF {
		return nil, p.syntaxErrorf("unexpected trailing token %q", p.cur.Value)
	}
	return cmd, nil
}

func (p *Parser) resolveTable(name string) (*types.TableSchema, error) {
	if p.lookup == nil {
		return nil, p.syntaxErrorf("no schema available to resolve table %q", name)
	}
	schema, ok := p.lookup(name)
	if !ok {
		return nil, fmt.Errorf("parser: table %q does not exist", name)
	}
	return schema, nil
}

func (p *Parser) resolveColumn(name string) (*ColumnRef, error) {
	if p.bound == nil {
		return nil, p.syntaxErrorf("column %q referenced with no bound table", name)
	}
	idx := p.bound.ColumnIndex(name)
	if idx < 0 {
		return nil, p.syntaxErrorf("unknown column %q in table %q", name, p.bound.Name)
	}
	return &ColumnRef{Name: name, Index: idx}, nil
}

// -------------------- expression grammar --------------------
//
// primary -> unary(+/-) -> mul/div/mod -> add/sub -> LIKE/BETWEEN/IN/
// comparisons -> NOT -> AND -> OR (spec §4.2, lowest to highest bound
// above means OR is parsed outermost / loosest-binding).

// ParseExpr is the public entry point used both by statement clauses
// and by the executor when re-parsing a stored DEFAULT/CHECK
// expression string.
func (p *Parser) ParseExpr() (Expr, error) {
	if err := p.ensureStarted(); err != nil {
		return nil, err
	}
	return p.parseOr()
}

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("AND") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expr, error) {
	if p.atKeyword("NOT") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "NOT", Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	negate := false
	if p.atKeyword("NOT") {
		// lookahead: NOT LIKE / NOT BETWEEN / NOT IN
		save := p.Save()
		p.advance()
		if p.atKeyword("LIKE") || p.atKeyword("BETWEEN") || p.atKeyword("IN") {
			negate = true
		} else {
			p.Restore(save)
		}
	}

	switch {
	case p.atKeyword("LIKE"):
		p.advance()
		pattern, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &Like{Value: left, Pattern: pattern, Negate: negate}, nil
	case p.atKeyword("BETWEEN"):
		p.advance()
		low, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		high, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &Between{Value: left, Low: low, High: high, Negate: negate}, nil
	case p.atKeyword("IN"):
		p.advance()
		if _, err := p.expectKind(lexer.LParen); err != nil {
			return nil, err
		}
		var list []Expr
		for p.cur.Kind != lexer.RParen {
			e, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			list = append(list, e)
			if p.cur.Kind == lexer.Comma {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expectKind(lexer.RParen); err != nil {
			return nil, err
		}
		return &In{Value: left, List: list, Negate: negate}, nil
	}

	op := ""
	switch p.cur.Kind {
	case lexer.Eq:
		op = "="
	case lexer.NotEq:
		op = "!="
	case lexer.Lt:
		op = "<"
	case lexer.LtEq:
		op = "<="
	case lexer.Gt:
		op = ">"
	case lexer.GtEq:
		op = ">="
	default:
		return left, nil
	}
	p.advance()
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &Binary{Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.Plus || p.cur.Kind == lexer.Minus {
		op := "+"
		if p.cur.Kind == lexer.Minus {
			op = "-"
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.Star || p.cur.Kind == lexer.Slash || p.cur.Kind == lexer.Percent {
		op := map[lexer.Kind]string{lexer.Star: "*", lexer.Slash: "/", lexer.Percent: "%"}[p.cur.Kind]
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.cur.Kind == lexer.Plus || p.cur.Kind == lexer.Minus {
		op := "+"
		if p.cur.Kind == lexer.Minus {
			op = "-"
		}
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op, Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.LBracket {
		p.advance()
		idx, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKind(lexer.RBracket); err != nil {
			return nil, err
		}
		e = &ArrayIndex{Array: e, Index: idx}
	}
	return e, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	switch p.cur.Kind {
	case lexer.LParen:
		p.advance()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKind(lexer.RParen); err != nil {
			return nil, err
		}
		return e, nil
	case lexer.LBrace:
		return p.parseArrayLiteral()
	case lexer.Null:
		p.advance()
		return &Literal{Value: types.Null(types.KindInt)}, nil
	case lexer.Bool:
		v := p.cur.Value == "TRUE"
		p.advance()
		return &Literal{Value: types.NewBool(v)}, nil
	case lexer.Int:
		n, err := strconv.ParseInt(p.cur.Value, 10, 64)
		if err != nil {
			return nil, p.syntaxErrorf("invalid integer literal %q", p.cur.Value)
		}
		p.advance()
		return &Literal{Value: types.NewInt(n)}, nil
	case lexer.Uint:
		n, err := strconv.ParseUint(p.cur.Value, 10, 64)
		if err != nil {
			return nil, p.syntaxErrorf("invalid unsigned literal %q", p.cur.Value)
		}
		p.advance()
		return &Literal{Value: types.NewUint(n)}, nil
	case lexer.Float:
		n, err := strconv.ParseFloat(p.cur.Value, 32)
		if err != nil {
			return nil, p.syntaxErrorf("invalid float literal %q", p.cur.Value)
		}
		p.advance()
		return &Literal{Value: types.ColumnValue{Kind: types.KindFloat, Float32: float32(n)}}, nil
	case lexer.Double:
		n, err := strconv.ParseFloat(p.cur.Value, 64)
		if err != nil {
			return nil, p.syntaxErrorf("invalid double literal %q", p.cur.Value)
		}
		p.advance()
		return &Literal{Value: types.NewFloat(n)}, nil
	case lexer.String:
		s := p.cur.Value
		p.advance()
		return &Literal{Value: types.NewString(types.KindText, s)}, nil
	case lexer.Char:
		s := p.cur.Value
		p.advance()
		return &Literal{Value: types.NewString(types.KindChar, s)}, nil
	case lexer.Ident:
		return p.parseIdentPrimary()
	case lexer.Keyword:
		// Bare type keywords (DATE, TIME) double as function names
		// when followed by '(' (spec §4.2 function catalogue); handle
		// them like identifiers in that position.
		if isKnownFunction(p.cur.Value) {
			return p.parseIdentPrimary()
		}
		return nil, p.syntaxErrorf("unexpected keyword %q in expression", p.cur.Value)
	default:
		return nil, p.syntaxErrorf("unexpected token %q in expression", p.cur.Value)
	}
}

func (p *Parser) parseArrayLiteral() (Expr, error) {
	if _, err := p.expectKind(lexer.LBrace); err != nil {
		return nil, err
	}
	var elems []Expr
	for p.cur.Kind != lexer.RBrace {
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.cur.Kind == lexer.Comma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectKind(lexer.RBrace); err != nil {
		return nil, err
	}
	return &ArrayLiteral{Elements: elems}, nil
}

func (p *Parser) parseIdentPrimary() (Expr, error) {
	name := p.cur.Value
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Kind == lexer.LParen {
		return p.parseFuncCall(name)
	}
	return p.resolveColumn(name)
}

func (p *Parser) parseFuncCall(name string) (Expr, error) {
	upper := strings.ToUpper(name)
	if !isKnownFunction(upper) {
		return nil, p.syntaxErrorf("unknown function %q", name)
	}
	if upper == "CAST" {
		return p.parseCastCall()
	}
	if upper == "EXTRACT" {
		return p.parseExtractCall()
	}
	if _, err := p.expectKind(lexer.LParen); err != nil {
		return nil, err
	}
	var args []Expr
	if upper == "COUNT" && p.cur.Kind == lexer.Star {
		p.advance()
		args = append(args, &Star{})
	} else {
		for p.cur.Kind != lexer.RParen {
			e, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, e)
			if p.cur.Kind == lexer.Comma {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expectKind(lexer.RParen); err != nil {
		return nil, err
	}
	return &FuncCall{Name: upper, Args: args, IsAggregate: aggregateFuncs[upper]}, nil
}

// parseCastCall parses `CAST(expr AS type)` (spec §4.2 function
// catalogue); the target type name (and any VARCHAR(n)/DECIMAL(p,s)
// parameters, which CAST ignores beyond the base type) is captured as
// a string literal argument for the evaluator.
func (p *Parser) parseCastCall() (Expr, error) {
	if _, err := p.expectKind(lexer.LParen); err != nil {
		return nil, err
	}
	src, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	typeName, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == lexer.LParen {
		depth := 0
		for {
			if p.cur.Kind == lexer.LParen {
				depth++
			} else if p.cur.Kind == lexer.RParen {
				depth--
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			if depth == 0 {
				break
			}
		}
	}
	if _, err := p.expectKind(lexer.RParen); err != nil {
		return nil, err
	}
	return &FuncCall{Name: "CAST", Args: []Expr{src, &Literal{Value: types.NewString(types.KindText, strings.ToUpper(typeName))}}}, nil
}

// parseExtractCall parses `EXTRACT(field FROM expr)` (spec §4.2).
func (p *Parser) parseExtractCall() (Expr, error) {
	if _, err := p.expectKind(lexer.LParen); err != nil {
		return nil, err
	}
	field, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	src, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(lexer.RParen); err != nil {
		return nil, err
	}
	return &FuncCall{Name: "EXTRACT", Args: []Expr{&Literal{Value: types.NewString(types.KindText, strings.ToUpper(field))}, src}}, nil
}
