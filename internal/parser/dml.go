package parser

import (
	"strings"

	"github.com/jugadbase/jugadb/internal/lexer"
)

// parseInsert parses `INSERT [_unsafecon] INTO <name> [(cols...)]
// VALUES (...), (...) [RETURNING cols...];` (spec §6).
func (p *Parser) parseInsert(unsafe bool) (*Command, error) {
	if err := p.expectKeyword("INSERT"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	schema, err := p.resolveTable(name)
	if err != nil {
		return nil, err
	}
	p.bound = schema

	var columns []int
	if p.cur.Kind == lexer.LParen {
		p.advance()
		for {
			cname, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			idx := schema.ColumnIndex(cname)
			if idx < 0 {
				return nil, p.syntaxErrorf("unknown column %q in table %q", cname, name)
			}
			columns = append(columns, idx)
			if p.cur.Kind == lexer.Comma {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expectKind(lexer.RParen); err != nil {
			return nil, err
		}
	}

	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	var rows [][]Expr
	for {
		if _, err := p.expectKind(lexer.LParen); err != nil {
			return nil, err
		}
		var row []Expr
		for {
			e, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			row = append(row, e)
			if p.cur.Kind == lexer.Comma {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expectKind(lexer.RParen); err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if p.cur.Kind == lexer.Comma {
			p.advance()
			continue
		}
		break
	}

	cmd := &Command{Kind: CmdInsert, Schema: schema, InsertColumns: columns, InsertRows: rows}

	if p.atKeyword("RETURNING") {
		p.advance()
		proj, err := p.parseProjectionList()
		if err != nil {
			return nil, err
		}
		cmd.Returning = proj
	}
	return cmd, nil
}

// parseSelect parses `SELECT <expr list | *> FROM <name> [WHERE expr]
// [ORDER BY col [ASC|DESC], ...] [LIM n] [OFF n];` (spec §6).
func (p *Parser) parseSelect() (*Command, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}

	// Projections reference columns of the FROM table, but FROM comes
	// after the projection list; a second parse pass binds them once
	// the table is known, matching the spec's "Command carries a
	// TableSchema pointer (bound from the catalog)" shape while still
	// letting SELECT list identifiers resolve against it.
	saveAfterSelect := p.Save()

	if err := p.skipProjectionList(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	schema, err := p.resolveTable(name)
	if err != nil {
		return nil, err
	}
	p.bound = schema

	afterFrom := p.Save()
	p.Restore(saveAfterSelect)
	proj, err := p.parseProjectionList()
	if err != nil {
		return nil, err
	}
	p.Restore(afterFrom)

	cmd := &Command{Kind: CmdSelect, Schema: schema, Projections: proj}

	if p.atKeyword("WHERE") {
		p.advance()
		where, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		cmd.Where = where
	}
	if p.atKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			desc := false
			if p.consumeKeyword("DESC") {
				desc = true
			} else {
				p.consumeKeyword("ASC")
			}
			cmd.OrderBy = append(cmd.OrderBy, OrderKey{Expr: e, Desc: desc})
			if p.cur.Kind == lexer.Comma {
				p.advance()
				continue
			}
			break
		}
	}
	if p.atKeyword("LIM") {
		p.advance()
		n, err := p.expectIntLiteral()
		if err != nil {
			return nil, err
		}
		v := int64(n)
		cmd.Limit = &v
	}
	if p.atKeyword("OFF") {
		p.advance()
		n, err := p.expectIntLiteral()
		if err != nil {
			return nil, err
		}
		v := int64(n)
		cmd.Offset = &v
	}
	return cmd, nil
}

// skipProjectionList scans past (without resolving) the SELECT
// projection list, used only to find where FROM starts during the
// two-pass SELECT parse above.
func (p *Parser) skipProjectionList() error {
	if p.cur.Kind == lexer.Star {
		return p.advance()
	}
	depth := 0
	for {
		switch p.cur.Kind {
		case lexer.LParen:
			depth++
		case lexer.RParen:
			if depth == 0 {
				return p.syntaxErrorf("unbalanced parentheses in projection list")
			}
			depth--
		case lexer.EOF:
			return p.syntaxErrorf("unexpected end of input before FROM")
		}
		if depth == 0 && p.atKeyword("FROM") {
			return nil
		}
		if err := p.advance(); err != nil {
			return err
		}
	}
}

// parseProjectionList parses `<expr list | *>`, binding each
// expression against p.bound and attaching aliases per spec §4.6:
// explicit AS name, else the column name, else fn_name(...), else
// name[index].
func (p *Parser) parseProjectionList() ([]Projection, error) {
	if p.cur.Kind == lexer.Star {
		p.advance()
		return []Projection{{Star: true}}, nil
	}
	var out []Projection
	for {
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		alias := defaultAlias(e)
		if p.consumeKeyword("AS") {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			alias = name
		}
		out = append(out, Projection{Expr: e, Alias: alias})
		if p.cur.Kind == lexer.Comma {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

// defaultAlias computes a projection's implicit alias when no AS
// clause is given (spec §4.6: "else the column name, else
// fn_name(...), else name[index]").
func defaultAlias(e Expr) string {
	switch n := e.(type) {
	case *ColumnRef:
		return n.Name
	case *ArrayIndex:
		return n.String()
	case *FuncCall:
		return strings.ToLower(n.Name) + "(" + joinAliasArgs(n.Args) + ")"
	default:
		return e.String()
	}
}

func joinAliasArgs(args []Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// parseUpdate parses `UPDATE <name> SET col = expr, ... [WHERE
// expr];` (spec §6).
func (p *Parser) parseUpdate(unsafe bool) (*Command, error) {
	if err := p.expectKeyword("UPDATE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	schema, err := p.resolveTable(name)
	if err != nil {
		return nil, err
	}
	p.bound = schema

	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	cmd := &Command{Kind: CmdUpdate, Schema: schema}
	for {
		cname, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		idx := schema.ColumnIndex(cname)
		if idx < 0 {
			return nil, p.syntaxErrorf("unknown column %q in table %q", cname, name)
		}
		if _, err := p.expectKind(lexer.Eq); err != nil {
			return nil, err
		}
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		cmd.SetColumns = append(cmd.SetColumns, idx)
		cmd.SetExprs = append(cmd.SetExprs, e)
		if p.cur.Kind == lexer.Comma {
			p.advance()
			continue
		}
		break
	}
	if p.atKeyword("WHERE") {
		p.advance()
		where, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		cmd.Where = where
	}
	return cmd, nil
}

// parseDelete parses `DELETE FROM <name> [WHERE expr];` (spec §6).
func (p *Parser) parseDelete() (*Command, error) {
	if err := p.expectKeyword("DELETE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	schema, err := p.resolveTable(name)
	if err != nil {
		return nil, err
	}
	p.bound = schema

	cmd := &Command{Kind: CmdDelete, Schema: schema}
	if p.atKeyword("WHERE") {
		p.advance()
		where, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		cmd.Where = where
	}
	return cmd, nil
}
