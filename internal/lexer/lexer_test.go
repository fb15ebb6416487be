package lexer

import "testing"

func TestTokenizeBasicStatement(t *testing.T) {
	l := New("SELECT id, name FROM t WHERE id = 1;")
	toks, err := l.Tokenize()
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	var kinds []Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	want := []Kind{Keyword, Ident, Comma, Ident, Keyword, Ident, Keyword, Ident, Eq, Int, Semicolon, EOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(kinds), len(want), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("token %d: got %v want %v", i, kinds[i], want[i])
		}
	}
}

func TestStringLiteralWithEscapes(t *testing.T) {
	l := New(`'it\'s here'`)
	tok, err := l.NextToken()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if tok.Kind != String || tok.Value != "it's here" {
		t.Fatalf("got %+v", tok)
	}
}

func TestUnsafeconKeyword(t *testing.T) {
	l := New("INSERT _unsafecon INTO jb_tables VALUES (1);")
	toks, err := l.Tokenize()
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if toks[1].Kind != Keyword || toks[1].Value != "_unsafecon" {
		t.Fatalf("expected _unsafecon keyword, got %+v", toks[1])
	}
}

func TestSaveRestore(t *testing.T) {
	l := New("A B C")
	first, _ := l.NextToken()
	mark := l.Save()
	second, _ := l.NextToken()
	l.Restore(mark)
	replay, _ := l.NextToken()
	if first.Value != "A" || second.Value != "B" || replay.Value != second.Value {
		t.Fatalf("save/restore mismatch: %+v %+v %+v", first, second, replay)
	}
}

func TestNumberSuffixes(t *testing.T) {
	cases := map[string]Kind{
		"1":    Int,
		"1u":   Uint,
		"1.5":  Double,
		"1.5f": Float,
	}
	for input, want := range cases {
		tok, err := New(input).NextToken()
		if err != nil {
			t.Fatalf("%s: %v", input, err)
		}
		if tok.Kind != want {
			t.Fatalf("%s: got %v want %v", input, tok.Kind, want)
		}
	}
}

func TestSyntaxErrorHasLineCol(t *testing.T) {
	l := New("SELECT 1\n  FROM t WHERE @")
	var err error
	for {
		var tok Token
		tok, err = l.NextToken()
		if err != nil || tok.Kind == EOF {
			break
		}
	}
	if err == nil {
		t.Fatal("expected syntax error")
	}
	se, ok := err.(*SyntaxError)
	if !ok {
		t.Fatalf("expected *SyntaxError, got %T", err)
	}
	if se.Line != 2 {
		t.Fatalf("expected line 2, got %d", se.Line)
	}
}
