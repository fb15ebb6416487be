package parser

import (
	"strconv"
	"strings"

	"github.com/jugadbase/jugadb/internal/lexer"
	"github.com/jugadbase/jugadb/internal/types"
)

// parseCreateTable parses `CREATE [NO_CONSTRAINTS] TABLE [IF NOT
// EXISTS] <name> (<col_def>, ...);` (spec §6). Columns are bound into
// p.bound incrementally as they are parsed so a later column's CHECK
// or DEFAULT expression may reference an earlier one.
func (p *Parser) parseCreateTable() (*Command, error) {
	if err := p.expectKeyword("CREATE"); err != nil {
		return nil, err
	}
	ct := &CreateTable{}
	if p.consumeKeyword("NO_CONSTRAINTS") {
		ct.NoConstraints = true
	}
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	if p.consumeKeyword("IF") {
		if err := p.expectKeyword("NOT"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("EXISTS"); err != nil {
			return nil, err
		}
		ct.IfNotExists = true
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	ct.Name = name

	schema := &types.TableSchema{Name: name}
	p.bound = schema

	if _, err := p.expectKind(lexer.LParen); err != nil {
		return nil, err
	}
	for {
		col, check, err := p.parseColumnDef(len(schema.Columns))
		if err != nil {
			return nil, err
		}
		schema.Columns = append(schema.Columns, col)
		if check != nil {
			ct.Checks = append(ct.Checks, *check)
		}
		if p.cur.Kind == lexer.Comma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectKind(lexer.RParen); err != nil {
		return nil, err
	}
	schema.Recompute()
	ct.Columns = schema.Columns

	return &Command{Kind: CmdCreate, Create: ct, Schema: schema}, nil
}

var typeKindByName = map[string]types.Kind{
	"INT": types.KindInt, "UINT": types.KindUint, "SERIAL": types.KindSerial,
	"FLOAT": types.KindFloat, "DOUBLE": types.KindDouble, "DECIMAL": types.KindDecimal,
	"BOOL": types.KindBool, "CHAR": types.KindChar, "VARCHAR": types.KindVarchar,
	"TEXT": types.KindText, "JSON": types.KindJSON, "BLOB": types.KindBlob,
	"UUID": types.KindUUID, "DATE": types.KindDate, "TIME": types.KindTime,
	"TIMETZ": types.KindTimeTZ, "DATETIME": types.KindDateTime,
	"DATETIMETZ": types.KindDateTimeTZ, "TIMESTAMP": types.KindTimestamp,
	"TIMESTAMPTZ": types.KindTimestampTZ, "INTERVAL": types.KindInterval,
}

// parseColumnDef parses one `<name> <type> [constraints...]` entry
// (spec §6). Constraint keywords may appear in any order and repeat
// until the next comma/closing paren.
func (p *Parser) parseColumnDef(ordinal int) (types.ColumnDefinition, *CheckConstraint, error) {
	name, err := p.expectIdent()
	if err != nil {
		return types.ColumnDefinition{}, nil, err
	}
	typeName, err := p.expectIdent()
	if err != nil {
		return types.ColumnDefinition{}, nil, err
	}
	kind, ok := typeKindByName[strings.ToUpper(typeName)]
	if !ok {
		return types.ColumnDefinition{}, nil, p.syntaxErrorf("unknown type %q", typeName)
	}

	col := types.ColumnDefinition{Name: name, Kind: kind, Ordinal: ordinal, Nullable: true}

	switch kind {
	case types.KindVarchar:
		if p.cur.Kind == lexer.LParen {
			p.advance()
			n, err := p.expectIntLiteral()
			if err != nil {
				return col, nil, err
			}
			if n > 255 {
				return col, nil, p.syntaxErrorf("VARCHAR length %d exceeds 255", n)
			}
			col.VarcharLen = n
			if _, err := p.expectKind(lexer.RParen); err != nil {
				return col, nil, err
			}
		}
	case types.KindDecimal:
		if _, err := p.expectKind(lexer.LParen); err != nil {
			return col, nil, err
		}
		prec, err := p.expectIntLiteral()
		if err != nil {
			return col, nil, err
		}
		if _, err := p.expectKind(lexer.Comma); err != nil {
			return col, nil, err
		}
		scale, err := p.expectIntLiteral()
		if err != nil {
			return col, nil, err
		}
		col.DecimalPrecision, col.DecimalScale = prec, scale
		if _, err := p.expectKind(lexer.RParen); err != nil {
			return col, nil, err
		}
	case types.KindSerial:
		col.HasSequence = true
	}

	// Array suffix: T[]
	if p.cur.Kind == lexer.LBracket {
		p.advance()
		if _, err := p.expectKind(lexer.RBracket); err != nil {
			return col, nil, err
		}
		col.IsArray = true
	}

	var check *CheckConstraint
	for {
		switch {
		case p.atKeyword("PRIMKEY"):
			p.advance()
			col.IsPrimaryKey = true
			col.Nullable = false
		case p.atKeyword("UNIQUE"):
			p.advance()
			col.IsUnique = true
		case p.atKeyword("NOT"):
			p.advance()
			if err := p.expectNull(); err != nil {
				return col, nil, err
			}
			col.Nullable = false
		case p.atKeyword("INDEX"):
			p.advance()
			col.IsIndex = true
		case p.atKeyword("DEFAULT"):
			p.advance()
			expr, err := p.parseOr()
			if err != nil {
				return col, nil, err
			}
			col.HasDefault = true
			col.DefaultExpr = expr.String()
		case p.atKeyword("CHECK"):
			p.advance()
			if _, err := p.expectKind(lexer.LParen); err != nil {
				return col, nil, err
			}
			expr, err := p.parseOr()
			if err != nil {
				return col, nil, err
			}
			if _, err := p.expectKind(lexer.RParen); err != nil {
				return col, nil, err
			}
			check = &CheckConstraint{Name: name + "_check", Expr: expr, ExprText: expr.String()}
		case p.atKeyword("FOREIGN"):
			p.advance()
			if err := p.expectKeyword("KEY"); err != nil {
				return col, nil, err
			}
			if err := p.expectKeyword("REFERENCES"); err != nil {
				return col, nil, err
			}
			refTable, err := p.expectIdent()
			if err != nil {
				return col, nil, err
			}
			if _, err := p.expectKind(lexer.LParen); err != nil {
				return col, nil, err
			}
			refCol, err := p.expectIdent()
			if err != nil {
				return col, nil, err
			}
			if _, err := p.expectKind(lexer.RParen); err != nil {
				return col, nil, err
			}
			col.IsForeignKey = true
			col.RefTable = refTable
			col.RefColumn = refCol
			col.OnDelete = types.FKNoAction
			col.OnUpdate = types.FKNoAction
			for p.atKeyword("ON") {
				p.advance()
				switch {
				case p.consumeKeyword("DELETE"):
					act, err := p.parseFKAction()
					if err != nil {
						return col, nil, err
					}
					col.OnDelete = act
				case p.consumeKeyword("UPDATE"):
					act, err := p.parseFKAction()
					if err != nil {
						return col, nil, err
					}
					col.OnUpdate = act
				default:
					return col, nil, p.syntaxErrorf("expected DELETE or UPDATE after ON")
				}
			}
		default:
			return col, check, nil
		}
	}
}

func (p *Parser) expectIntLiteral() (int, error) {
	if p.cur.Kind != lexer.Int {
		return 0, p.syntaxErrorf("expected integer literal, got %q", p.cur.Value)
	}
	n, err := strconv.Atoi(p.cur.Value)
	if err != nil {
		return 0, p.syntaxErrorf("invalid integer literal %q", p.cur.Value)
	}
	return n, p.advance()
}

func (p *Parser) parseFKAction() (types.FKAction, error) {
	switch {
	case p.consumeKeyword("NO"):
		if err := p.expectKeyword("ACTION"); err != nil {
			return 0, err
		}
		return types.FKNoAction, nil
	case p.consumeKeyword("CASCADE"):
		return types.FKCascade, nil
	case p.consumeKeyword("RESTRICT"):
		return types.FKRestrict, nil
	case p.consumeKeyword("SET"):
		if _, err := p.expectKind(lexer.Null); err != nil {
			return 0, err
		}
		return types.FKSetNull, nil
	default:
		return 0, p.syntaxErrorf("expected a referential action, got %q", p.cur.Value)
	}
}

// parseAlterTable parses `ALTER TABLE <name> <action>[, <action>...];`
// (spec §4.6, §6).
func (p *Parser) parseAlterTable() (*Command, error) {
	if err := p.expectKeyword("ALTER"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("TABLE"); err != nil {
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

	at := &AlterTable{Name: name}
	for {
		action, err := p.parseAlterAction()
		if err != nil {
			return nil, err
		}
		at.Actions = append(at.Actions, action)
		if p.cur.Kind == lexer.Comma {
			p.advance()
			continue
		}
		break
	}
	return &Command{Kind: CmdAlter, Alter: at, Schema: schema}, nil
}

func (p *Parser) parseAlterAction() (AlterAction, error) {
	switch {
	case p.consumeKeyword("ADD"):
		switch {
		case p.consumeKeyword("COLUMN"):
			col, _, err := p.parseColumnDef(len(p.bound.Columns))
			if err != nil {
				return AlterAction{}, err
			}
			return AlterAction{Kind: AlterAddColumn, Column: col}, nil
		case p.consumeKeyword("CONSTRAINT"):
			cname, err := p.expectIdent()
			if err != nil {
				return AlterAction{}, err
			}
			if err := p.expectKeyword("CHECK"); err != nil {
				return AlterAction{}, err
			}
			if _, err := p.expectKind(lexer.LParen); err != nil {
				return AlterAction{}, err
			}
			expr, err := p.parseOr()
			if err != nil {
				return AlterAction{}, err
			}
			if _, err := p.expectKind(lexer.RParen); err != nil {
				return AlterAction{}, err
			}
			return AlterAction{Kind: AlterAddConstraint, Check: CheckConstraint{Name: cname, Expr: expr, ExprText: expr.String()}}, nil
		default:
			return AlterAction{}, p.syntaxErrorf("expected COLUMN or CONSTRAINT after ADD")
		}
	case p.consumeKeyword("DROP"):
		switch {
		case p.consumeKeyword("COLUMN"):
			cname, err := p.expectIdent()
			if err != nil {
				return AlterAction{}, err
			}
			return AlterAction{Kind: AlterDropColumn, ColumnName: cname}, nil
		case p.consumeKeyword("CONSTRAINT"):
			cname, err := p.expectIdent()
			if err != nil {
				return AlterAction{}, err
			}
			return AlterAction{Kind: AlterDropConstraint, ConstraintName: cname}, nil
		case p.consumeKeyword("DEFAULT"):
			return AlterAction{}, p.syntaxErrorf("use ALTER COLUMN ... DROP DEFAULT")
		default:
			return AlterAction{}, p.syntaxErrorf("expected COLUMN or CONSTRAINT after DROP")
		}
	case p.consumeKeyword("RENAME"):
		switch {
		case p.consumeKeyword("COLUMN"):
			cname, err := p.expectIdent()
			if err != nil {
				return AlterAction{}, err
			}
			if err := p.expectKeyword("TO"); err != nil {
				return AlterAction{}, err
			}
			newName, err := p.expectIdent()
			if err != nil {
				return AlterAction{}, err
			}
			return AlterAction{Kind: AlterRenameColumn, ColumnName: cname, NewName: newName}, nil
		case p.consumeKeyword("CONSTRAINT"):
			cname, err := p.expectIdent()
			if err != nil {
				return AlterAction{}, err
			}
			if err := p.expectKeyword("TO"); err != nil {
				return AlterAction{}, err
			}
			newName, err := p.expectIdent()
			if err != nil {
				return AlterAction{}, err
			}
			return AlterAction{Kind: AlterRenameConstraint, ConstraintName: cname, NewName: newName}, nil
		case p.consumeKeyword("TO"):
			newName, err := p.expectIdent()
			if err != nil {
				return AlterAction{}, err
			}
			return AlterAction{Kind: AlterRenameTable, NewName: newName}, nil
		default:
			return AlterAction{}, p.syntaxErrorf("expected COLUMN, CONSTRAINT, or TO after RENAME")
		}
	case p.consumeKeyword("SET"):
		switch {
		case p.consumeKeyword("OWNER"):
			if err := p.expectKeyword("TO"); err != nil {
				return AlterAction{}, err
			}
			owner, err := p.expectIdent()
			if err != nil {
				return AlterAction{}, err
			}
			return AlterAction{Kind: AlterSetOwner, Owner: owner}, nil
		case p.consumeKeyword("TABLESPACE"):
			ts, err := p.expectIdent()
			if err != nil {
				return AlterAction{}, err
			}
			return AlterAction{Kind: AlterSetTablespace, Tablespace: ts}, nil
		default:
			return AlterAction{}, p.syntaxErrorf("expected OWNER or TABLESPACE after SET")
		}
	default:
		// ALTER COLUMN <name> SET/DROP DEFAULT/NOT NULL
		if err := p.expectKeyword("ALTER"); err != nil {
			return AlterAction{}, p.syntaxErrorf("unexpected token %q in ALTER TABLE", p.cur.Value)
		}
		p.consumeKeyword("COLUMN")
		cname, err := p.expectIdent()
		if err != nil {
			return AlterAction{}, err
		}
		switch {
		case p.consumeKeyword("SET"):
			switch {
			case p.consumeKeyword("DEFAULT"):
				expr, err := p.parseOr()
				if err != nil {
					return AlterAction{}, err
				}
				return AlterAction{Kind: AlterSetDefault, ColumnName: cname, DefaultExpr: expr, DefaultText: expr.String()}, nil
			case p.consumeKeyword("NOT"):
				if err := p.expectNull(); err != nil {
					return AlterAction{}, err
				}
				return AlterAction{Kind: AlterSetNotNull, ColumnName: cname}, nil
			default:
				return AlterAction{}, p.syntaxErrorf("expected DEFAULT or NOT NULL after SET")
			}
		case p.consumeKeyword("DROP"):
			switch {
			case p.consumeKeyword("DEFAULT"):
				return AlterAction{Kind: AlterDropDefault, ColumnName: cname}, nil
			case p.consumeKeyword("NOT"):
				if err := p.expectNull(); err != nil {
					return AlterAction{}, err
				}
				return AlterAction{Kind: AlterDropNotNull, ColumnName: cname}, nil
			default:
				return AlterAction{}, p.syntaxErrorf("expected DEFAULT or NOT NULL after DROP")
			}
		default:
			return AlterAction{}, p.syntaxErrorf("expected SET or DROP after ALTER COLUMN %s", cname)
		}
	}
}
