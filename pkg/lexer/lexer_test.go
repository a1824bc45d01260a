package lexer

import (
	"testing"
)

func TestNextToken(t *testing.T) {
	input := `class C {
  get #a() { return this.#a_; }
  set #a(v) { this.#a_ = v; }
  static #count = 0x1F;
}
#a in obj;
let s = 'it\'s' + "x\n";
a !== b === c && d || e ?? f;
x += 1.5e3; y--;
(v) => v;
`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
		expectedLine    int
	}{
		{CLASS, "class", 1},
		{IDENT, "C", 1},
		{LBRACE, "{", 1},
		{GET, "get", 2},
		{PRIVATE_IDENT, "#a", 2},
		{LPAREN, "(", 2},
		{RPAREN, ")", 2},
		{LBRACE, "{", 2},
		{RETURN, "return", 2},
		{THIS, "this", 2},
		{DOT, ".", 2},
		{PRIVATE_IDENT, "#a_", 2},
		{SEMICOLON, ";", 2},
		{RBRACE, "}", 2},
		{SET, "set", 3},
		{PRIVATE_IDENT, "#a", 3},
		{LPAREN, "(", 3},
		{IDENT, "v", 3},
		{RPAREN, ")", 3},
		{LBRACE, "{", 3},
		{THIS, "this", 3},
		{DOT, ".", 3},
		{PRIVATE_IDENT, "#a_", 3},
		{ASSIGN, "=", 3},
		{IDENT, "v", 3},
		{SEMICOLON, ";", 3},
		{RBRACE, "}", 3},
		{STATIC, "static", 4},
		{PRIVATE_IDENT, "#count", 4},
		{ASSIGN, "=", 4},
		{NUMBER, "0x1F", 4},
		{SEMICOLON, ";", 4},
		{RBRACE, "}", 5},
		{PRIVATE_IDENT, "#a", 6},
		{IN, "in", 6},
		{IDENT, "obj", 6},
		{SEMICOLON, ";", 6},
		{LET, "let", 7},
		{IDENT, "s", 7},
		{ASSIGN, "=", 7},
		{STRING, "it's", 7},
		{PLUS, "+", 7},
		{STRING, "x\n", 7},
		{SEMICOLON, ";", 7},
		{IDENT, "a", 8},
		{STRICT_NOT_EQ, "!==", 8},
		{IDENT, "b", 8},
		{STRICT_EQ, "===", 8},
		{IDENT, "c", 8},
		{LOGICAL_AND, "&&", 8},
		{IDENT, "d", 8},
		{LOGICAL_OR, "||", 8},
		{IDENT, "e", 8},
		{COALESCE, "??", 8},
		{IDENT, "f", 8},
		{SEMICOLON, ";", 8},
		{IDENT, "x", 9},
		{PLUS_ASSIGN, "+=", 9},
		{NUMBER, "1.5e3", 9},
		{SEMICOLON, ";", 9},
		{IDENT, "y", 9},
		{DEC, "--", 9},
		{SEMICOLON, ";", 9},
		{LPAREN, "(", 10},
		{IDENT, "v", 10},
		{RPAREN, ")", 10},
		{ARROW, "=>", 10},
		{IDENT, "v", 10},
		{SEMICOLON, ";", 10},
		{EOF, "", 11},
	}

	l := NewLexer(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q (literal %q)",
				i, tt.expectedType, tok.Type, tok.Literal)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
		if tok.Line != tt.expectedLine {
			t.Errorf("tests[%d] (%q) - line wrong. expected=%d, got=%d",
				i, tok.Literal, tt.expectedLine, tok.Line)
		}
	}
}

func TestPrivateIdentPosition(t *testing.T) {
	l := NewLexer("  o.#secret")
	want := []struct {
		typ      TokenType
		col      int
		startPos int
		endPos   int
	}{
		{IDENT, 3, 2, 3},
		{DOT, 4, 3, 4},
		{PRIVATE_IDENT, 5, 4, 11},
	}
	for i, w := range want {
		tok := l.NextToken()
		if tok.Type != w.typ || tok.Column != w.col || tok.StartPos != w.startPos || tok.EndPos != w.endPos {
			t.Errorf("token %d = %+v, want type %s col %d span [%d,%d)", i, tok, w.typ, w.col, w.startPos, w.endPos)
		}
	}
}

func TestLoneHashIsIllegal(t *testing.T) {
	l := NewLexer("# a")
	if tok := l.NextToken(); tok.Type != ILLEGAL {
		t.Fatalf("expected ILLEGAL for lone '#', got %s", tok.Type)
	}
}

func TestNewlineBefore(t *testing.T) {
	l := NewLexer("a /* x\n */ b\nc // tail\n  d e")
	want := []bool{false, true, true, true, false}
	for i, w := range want {
		tok := l.NextToken()
		if tok.NewlineBefore != w {
			t.Errorf("token %d (%q): NewlineBefore = %v, want %v", i, tok.Literal, tok.NewlineBefore, w)
		}
	}
}

func TestColumnsCountRunes(t *testing.T) {
	l := NewLexer("'héllo' x")
	l.NextToken()
	tok := l.NextToken()
	if tok.Column != 9 {
		t.Errorf("column after multibyte string = %d, want 9", tok.Column)
	}
}
