// Package parser implements the recursive-descent, one-token-lookahead
// SQL parser described in spec §4.2: it turns a lexer.Token stream into
// a typed Command tree bound to a catalog TableSchema, resolving column
// references to positional indices as it goes. Modeled on the
// teacher's internal/query.Parser (same current/peek token shape,
// precedence-climbing expression parser) generalised from a single
// field-filter grammar to the full statement surface of spec §6.
package parser

import (
	"fmt"
	"strings"

	"github.com/jugadbase/jugadb/internal/types"
)

// Expr is any node of the expression grammar (spec §4.2).
type Expr interface {
	exprNode()
	String() string
}

// Literal is a constant value (spec §4.2 primary).
type Literal struct {
	Value types.ColumnValue
}

func (*Literal) exprNode() {}

// String renders the literal as SQL text that the same grammar can
// re-parse; this is what gets persisted verbatim into jb_attrdef /
// jb_constraints so DEFAULT and CHECK expressions survive a
// close/reopen cycle (spec §4.5, §4.7).
func (l *Literal) String() string {
	v := l.Value
	if v.IsNull {
		return "NULL"
	}
	switch v.Kind {
	case types.KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case types.KindVarchar, types.KindText, types.KindJSON:
		return "'" + strings.ReplaceAll(v.Str, "'", "\\'") + "'"
	case types.KindChar:
		return "'" + strings.ReplaceAll(v.Str, "'", "\\'") + "'"
	case types.KindUint:
		return fmt.Sprintf("%du", v.Uint)
	case types.KindFloat:
		return fmt.Sprintf("%gf", v.Float32)
	case types.KindDouble:
		return fmt.Sprintf("%g", v.Float64)
	default:
		if f, ok := v.AsFloat(); ok {
			return fmt.Sprintf("%v", f)
		}
		return fmt.Sprintf("%v", v)
	}
}

// ArrayLiteral is a brace-delimited array literal, `{ ... }` (spec §4.1).
type ArrayLiteral struct {
	Elements []Expr
}

func (*ArrayLiteral) exprNode() {}
func (a *ArrayLiteral) String() string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		parts[i] = e.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ColumnRef is an identifier resolved to a positional index into the
// bound schema at parse time (spec §4.2: "an unknown column is a parse
// error").
type ColumnRef struct {
	Name  string
	Index int
}

func (*ColumnRef) exprNode() {}
func (c *ColumnRef) String() string { return c.Name }

// ArrayIndex is `expr[index]` (spec §4.2 primary).
type ArrayIndex struct {
	Array Expr
	Index Expr
}

func (*ArrayIndex) exprNode() {}
func (a *ArrayIndex) String() string { return fmt.Sprintf("%s[%s]", a.Array, a.Index) }

// Unary is a prefix `+`/`-`/`NOT` expression.
type Unary struct {
	Op      string
	Operand Expr
}

func (*Unary) exprNode() {}
func (u *Unary) String() string { return fmt.Sprintf("(%s%s)", u.Op, u.Operand) }

// Binary is an infix arithmetic, comparison, AND, or OR expression.
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

func (*Binary) exprNode() {}
func (b *Binary) String() string { return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right) }

// Like is `value LIKE pattern` (optionally negated).
type Like struct {
	Value   Expr
	Pattern Expr
	Negate  bool
}

func (*Like) exprNode() {}
func (l *Like) String() string {
	if l.Negate {
		return fmt.Sprintf("(%s NOT LIKE %s)", l.Value, l.Pattern)
	}
	return fmt.Sprintf("(%s LIKE %s)", l.Value, l.Pattern)
}

// Between is `value BETWEEN low AND high` (optionally negated).
type Between struct {
	Value  Expr
	Low    Expr
	High   Expr
	Negate bool
}

func (*Between) exprNode() {}
func (b *Between) String() string {
	if b.Negate {
		return fmt.Sprintf("(%s NOT BETWEEN %s AND %s)", b.Value, b.Low, b.High)
	}
	return fmt.Sprintf("(%s BETWEEN %s AND %s)", b.Value, b.Low, b.High)
}

// In is `value IN (list...)` (optionally negated); the spec requires a
// linear search, i.e. no special-casing beyond list membership.
type In struct {
	Value  Expr
	List   []Expr
	Negate bool
}

func (*In) exprNode() {}
func (i *In) String() string {
	parts := make([]string, len(i.List))
	for idx, e := range i.List {
		parts[idx] = e.String()
	}
	not := ""
	if i.Negate {
		not = "NOT "
	}
	return fmt.Sprintf("(%s %sIN (%s))", i.Value, not, strings.Join(parts, ", "))
}

// FuncCall is `IDENT(args...)`; IsAggregate flags the five
// whole-result-set reducers so the executor treats them specially
// (spec §4.2).
type FuncCall struct {
	Name        string
	Args        []Expr
	IsAggregate bool
}

func (*FuncCall) exprNode() {}
func (f *FuncCall) String() string {
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(parts, ", "))
}

// Star represents `SELECT *`.
type Star struct{}

func (*Star) exprNode() {}
func (*Star) String() string { return "*" }

// aggregateFuncs is the fixed catalogue of whole-result-set reducers
// (spec §4.2).
var aggregateFuncs = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
}

// scalarFuncs is the fixed catalogue of scalar functions recognised by
// the grammar (spec §4.2); used to reject unknown function names at
// parse time.
var scalarFuncs = map[string]bool{
	"ABS": true, "ROUND": true, "NOW": true, "CONCAT": true,
	"SUBSTRING": true, "LENGTH": true, "LOWER": true, "UPPER": true,
	"TRIM": true, "REPLACE": true, "COALESCE": true, "CAST": true,
	"DATE": true, "TIME": true, "EXTRACT": true, "IFNULL": true,
	"GREATEST": true, "LEAST": true, "RAND": true, "FLOOR": true,
	"CEIL": true, "PI": true, "DEGREES": true, "RADIANS": true,
	"LOG": true, "POW": true, "SIN": true, "COS": true, "TAN": true,
}

func isKnownFunction(name string) bool {
	u := strings.ToUpper(name)
	return aggregateFuncs[u] || scalarFuncs[u]
}

// CommandKind discriminates the six statement shapes of spec §4.2.
type CommandKind int

const (
	CmdCreate CommandKind = iota
	CmdAlter
	CmdInsert
	CmdSelect
	CmdUpdate
	CmdDelete
)

// OrderKey is one ORDER BY term: an expression plus its asc/desc flag.
type OrderKey struct {
	Expr Expr
	Desc bool
}

// Projection is one SELECT output column: an expression, its resolved
// alias, and whether it stands for `*` (spec §4.6 "Attach aliases").
type Projection struct {
	Expr  Expr
	Alias string
	Star  bool
}

// CheckConstraint is a table-level CHECK clause; ExprText is preserved
// verbatim because the constraint engine re-parses and evaluates CHECK
// expressions textually against each prospective row (spec §4.7).
type CheckConstraint struct {
	Name     string
	Expr     Expr
	ExprText string
}

// CreateTable is the CREATE TABLE command body (spec §6).
type CreateTable struct {
	Name          string
	IfNotExists   bool
	NoConstraints bool
	Columns       []types.ColumnDefinition
	Checks        []CheckConstraint
}

// AlterActionKind discriminates the ALTER TABLE sub-operations of
// spec §4.6/§6.
type AlterActionKind int

const (
	AlterAddColumn AlterActionKind = iota
	AlterDropColumn
	AlterRenameColumn
	AlterSetDefault
	AlterDropDefault
	AlterSetNotNull
	AlterDropNotNull
	AlterAddConstraint
	AlterDropConstraint
	AlterRenameConstraint
	AlterRenameTable
	AlterSetOwner
	AlterSetTablespace
)

// AlterAction is one clause of a (possibly multi-clause) ALTER TABLE
// statement.
type AlterAction struct {
	Kind AlterActionKind

	Column types.ColumnDefinition // AlterAddColumn

	ColumnName string // target column for Drop/Rename/SetDefault/SetNotNull
	NewName    string // rename target (column, constraint, or table)

	DefaultExpr Expr
	DefaultText string

	ConstraintName string
	Check          CheckConstraint

	Owner      string
	Tablespace string
}

// AlterTable is the ALTER TABLE command body: a table name plus an
// ordered list of actions, all applied atomically (spec §4.6).
type AlterTable struct {
	Name    string
	Actions []AlterAction
}

// Command is the typed result of parsing one statement (spec §4.2):
// discriminated by Kind, carrying the bound schema and clause-specific
// fields. Only the fields relevant to Kind are populated.
type Command struct {
	Kind   CommandKind
	Schema *types.TableSchema
	Unsafe bool // _unsafecon: skip constraint validation (spec §4.1)

	Create *CreateTable
	Alter  *AlterTable

	// INSERT
	InsertColumns []int // ordinals into Schema.Columns; nil means "all columns in order"
	InsertRows    [][]Expr
	Returning     []Projection

	// SELECT
	Projections []Projection

	// UPDATE
	SetColumns []int
	SetExprs   []Expr

	// shared WHERE/ORDER BY/LIMIT/OFFSET
	Where   Expr
	OrderBy []OrderKey
	Limit   *int64
	Offset  *int64
}
