package lexer

import (
	"strings"

	"sigil/pkg/source"
)

// TokenType represents the type of a token.
type TokenType string

// Token represents a lexical token.
type Token struct {
	Type     TokenType
	Literal  string // The actual text of the token (lexeme); unescaped contents for strings
	Line     int    // 1-based line number where the token starts
	Column   int    // 1-based column number (rune index) where the token starts
	StartPos int    // 0-based byte offset where the token starts
	EndPos   int    // 0-based byte offset after the token ends
	// NewlineBefore is set when at least one line terminator separates this
	// token from the previous one. The parser uses it for ASI decisions.
	NewlineBefore bool
}

// --- Token Types ---
const (
	// Special
	ILLEGAL TokenType = "ILLEGAL"
	EOF     TokenType = "EOF"

	// Identifiers + Literals
	IDENT         TokenType = "IDENT"
	PRIVATE_IDENT TokenType = "PRIVATE_IDENT" // #name
	NUMBER        TokenType = "NUMBER"
	STRING        TokenType = "STRING"

	// Operators
	ASSIGN        TokenType = "="
	PLUS          TokenType = "+"
	MINUS         TokenType = "-"
	BANG          TokenType = "!"
	ASTERISK      TokenType = "*"
	SLASH         TokenType = "/"
	REMAINDER     TokenType = "%"
	LT            TokenType = "<"
	GT            TokenType = ">"
	LE            TokenType = "<="
	GE            TokenType = ">="
	EQ            TokenType = "=="
	NOT_EQ        TokenType = "!="
	STRICT_EQ     TokenType = "==="
	STRICT_NOT_EQ TokenType = "!=="
	DOT           TokenType = "."
	QUESTION      TokenType = "?"

	PLUS_ASSIGN     TokenType = "+="
	MINUS_ASSIGN    TokenType = "-="
	ASTERISK_ASSIGN TokenType = "*="
	SLASH_ASSIGN    TokenType = "/="

	INC TokenType = "++"
	DEC TokenType = "--"

	LOGICAL_AND TokenType = "&&"
	LOGICAL_OR  TokenType = "||"
	COALESCE    TokenType = "??"

	// Delimiters
	COMMA     TokenType = ","
	SEMICOLON TokenType = ";"
	COLON     TokenType = ":"
	LPAREN    TokenType = "("
	RPAREN    TokenType = ")"
	LBRACE    TokenType = "{"
	RBRACE    TokenType = "}"
	LBRACKET  TokenType = "["
	RBRACKET  TokenType = "]"
	ARROW     TokenType = "=>"

	// Keywords
	FUNCTION   TokenType = "FUNCTION"
	LET        TokenType = "LET"
	CONST      TokenType = "CONST"
	VAR        TokenType = "VAR"
	TRUE       TokenType = "TRUE"
	FALSE      TokenType = "FALSE"
	NULL       TokenType = "NULL"
	UNDEFINED  TokenType = "UNDEFINED"
	IF         TokenType = "IF"
	ELSE       TokenType = "ELSE"
	RETURN     TokenType = "RETURN"
	WHILE      TokenType = "WHILE"
	CLASS      TokenType = "CLASS"
	EXTENDS    TokenType = "EXTENDS"
	SUPER      TokenType = "SUPER"
	NEW        TokenType = "NEW"
	THIS       TokenType = "THIS"
	TYPEOF     TokenType = "TYPEOF"
	INSTANCEOF TokenType = "INSTANCEOF"
	IN         TokenType = "IN"
	THROW      TokenType = "THROW"
	TRY        TokenType = "TRY"
	CATCH      TokenType = "CATCH"
	FINALLY    TokenType = "FINALLY"

	// Contextual keywords; valid as identifiers everywhere.
	GET    TokenType = "GET"
	SET    TokenType = "SET"
	STATIC TokenType = "STATIC"
)

var keywords = map[string]TokenType{
	"function":   FUNCTION,
	"let":        LET,
	"const":      CONST,
	"var":        VAR,
	"true":       TRUE,
	"false":      FALSE,
	"null":       NULL,
	"undefined":  UNDEFINED,
	"if":         IF,
	"else":       ELSE,
	"return":     RETURN,
	"while":      WHILE,
	"class":      CLASS,
	"extends":    EXTENDS,
	"super":      SUPER,
	"new":        NEW,
	"this":       THIS,
	"typeof":     TYPEOF,
	"instanceof": INSTANCEOF,
	"in":         IN,
	"throw":      THROW,
	"try":        TRY,
	"catch":      CATCH,
	"finally":    FINALLY,
	"get":        GET,
	"set":        SET,
	"static":     STATIC,
}

// LookupIdent checks the keywords table for an identifier.
func LookupIdent(ident string) TokenType {
	if tokType, ok := keywords[ident]; ok {
		return tokType
	}
	return IDENT
}

// IsContextualKeyword reports whether t is a keyword that may also be used
// as a plain identifier.
func IsContextualKeyword(t TokenType) bool {
	return t == GET || t == SET || t == STATIC
}

// Lexer holds the state of the scanner.
type Lexer struct {
	input        string
	source       *source.SourceFile
	position     int  // current position in input (points to current char's byte offset)
	readPosition int  // current reading position in input (byte offset after current char)
	ch           byte // current char under examination
	line         int  // current 1-based line number
	column       int  // current 1-based column number
	sawNewline   bool // a line terminator was skipped since the last token
}

// NewLexer creates a new Lexer over an anonymous eval source.
func NewLexer(input string) *Lexer {
	return NewLexerWithSource(source.NewEvalSource(input))
}

// NewLexerWithSource creates a new Lexer reading sf.Content.
func NewLexerWithSource(sf *source.SourceFile) *Lexer {
	l := &Lexer{input: sf.Content, source: sf, line: 1, column: 0}
	l.readChar()
	return l
}

// GetSource returns the source file being scanned.
func (l *Lexer) GetSource() *source.SourceFile {
	return l.source
}

// LexerState is a snapshot of the scanner used for bounded lookahead.
type LexerState struct {
	position     int
	readPosition int
	ch           byte
	line         int
	column       int
	sawNewline   bool
}

// SaveState captures the current scanner position.
func (l *Lexer) SaveState() LexerState {
	return LexerState{l.position, l.readPosition, l.ch, l.line, l.column, l.sawNewline}
}

// RestoreState rewinds the scanner to a state returned by SaveState.
func (l *Lexer) RestoreState(s LexerState) {
	l.position, l.readPosition, l.ch = s.position, s.readPosition, s.ch
	l.line, l.column, l.sawNewline = s.line, s.column, s.sawNewline
}

// readChar advances one byte and keeps line/column in sync. UTF-8
// continuation bytes do not advance the column.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}

	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	if l.ch&0xC0 != 0x80 {
		l.column++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) peekCharN(n int) byte {
	pos := l.position + n
	if pos >= len(l.input) {
		return 0
	}
	return l.input[pos]
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		if l.ch == '\n' {
			l.sawNewline = true
		}
		l.readChar()
	}
}

// NextToken scans the input and returns the next token.
func (l *Lexer) NextToken() Token {
	for {
		l.skipWhitespace()
		if l.ch == '/' && l.peekChar() == '/' {
			l.skipComment()
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			startLine, startCol, startPos := l.line, l.column, l.position
			if !l.skipMultilineComment() {
				return Token{Type: ILLEGAL, Literal: "unterminated multiline comment", Line: startLine, Column: startCol, StartPos: startPos, EndPos: l.position}
			}
			continue
		}
		break
	}

	newline := l.sawNewline
	l.sawNewline = false
	tok := l.scan()
	tok.NewlineBefore = newline
	return tok
}

func (l *Lexer) scan() Token {
	startLine := l.line
	startCol := l.column
	startPos := l.position

	// emit consumes n bytes and builds a token spanning them.
	emit := func(t TokenType, n int) Token {
		for i := 0; i < n; i++ {
			l.readChar()
		}
		return Token{Type: t, Literal: l.input[startPos:l.position], Line: startLine, Column: startCol, StartPos: startPos, EndPos: l.position}
	}

	switch l.ch {
	case '=':
		switch {
		case l.peekChar() == '=' && l.peekCharN(2) == '=':
			return emit(STRICT_EQ, 3)
		case l.peekChar() == '=':
			return emit(EQ, 2)
		case l.peekChar() == '>':
			return emit(ARROW, 2)
		}
		return emit(ASSIGN, 1)
	case '!':
		switch {
		case l.peekChar() == '=' && l.peekCharN(2) == '=':
			return emit(STRICT_NOT_EQ, 3)
		case l.peekChar() == '=':
			return emit(NOT_EQ, 2)
		}
		return emit(BANG, 1)
	case '+':
		switch l.peekChar() {
		case '=':
			return emit(PLUS_ASSIGN, 2)
		case '+':
			return emit(INC, 2)
		}
		return emit(PLUS, 1)
	case '-':
		switch l.peekChar() {
		case '=':
			return emit(MINUS_ASSIGN, 2)
		case '-':
			return emit(DEC, 2)
		}
		return emit(MINUS, 1)
	case '*':
		if l.peekChar() == '=' {
			return emit(ASTERISK_ASSIGN, 2)
		}
		return emit(ASTERISK, 1)
	case '/':
		if l.peekChar() == '=' {
			return emit(SLASH_ASSIGN, 2)
		}
		return emit(SLASH, 1)
	case '%':
		return emit(REMAINDER, 1)
	case '<':
		if l.peekChar() == '=' {
			return emit(LE, 2)
		}
		return emit(LT, 1)
	case '>':
		if l.peekChar() == '=' {
			return emit(GE, 2)
		}
		return emit(GT, 1)
	case '&':
		if l.peekChar() == '&' {
			return emit(LOGICAL_AND, 2)
		}
		return emit(ILLEGAL, 1)
	case '|':
		if l.peekChar() == '|' {
			return emit(LOGICAL_OR, 2)
		}
		return emit(ILLEGAL, 1)
	case '?':
		if l.peekChar() == '?' {
			return emit(COALESCE, 2)
		}
		return emit(QUESTION, 1)
	case '.':
		if isDigit(l.peekChar()) {
			literal := l.readNumber()
			return Token{Type: NUMBER, Literal: literal, Line: startLine, Column: startCol, StartPos: startPos, EndPos: l.position}
		}
		return emit(DOT, 1)
	case ',':
		return emit(COMMA, 1)
	case ';':
		return emit(SEMICOLON, 1)
	case ':':
		return emit(COLON, 1)
	case '(':
		return emit(LPAREN, 1)
	case ')':
		return emit(RPAREN, 1)
	case '{':
		return emit(LBRACE, 1)
	case '}':
		return emit(RBRACE, 1)
	case '[':
		return emit(LBRACKET, 1)
	case ']':
		return emit(RBRACKET, 1)
	case '#':
		// A private name is '#' immediately followed by an identifier.
		if !isLetter(l.peekChar()) {
			return emit(ILLEGAL, 1)
		}
		l.readChar() // consume '#'
		l.readIdentifier()
		return Token{Type: PRIVATE_IDENT, Literal: l.input[startPos:l.position], Line: startLine, Column: startCol, StartPos: startPos, EndPos: l.position}
	case '"', '\'':
		literal, ok := l.readString(l.ch)
		if !ok {
			return Token{Type: ILLEGAL, Literal: "invalid string literal", Line: startLine, Column: startCol, StartPos: startPos, EndPos: l.position}
		}
		return Token{Type: STRING, Literal: literal, Line: startLine, Column: startCol, StartPos: startPos, EndPos: l.position}
	case 0:
		return Token{Type: EOF, Literal: "", Line: startLine, Column: startCol, StartPos: startPos, EndPos: startPos}
	}

	if isLetter(l.ch) {
		literal := l.readIdentifier()
		return Token{Type: LookupIdent(literal), Literal: literal, Line: startLine, Column: startCol, StartPos: startPos, EndPos: l.position}
	}
	if isDigit(l.ch) {
		literal := l.readNumber()
		return Token{Type: NUMBER, Literal: literal, Line: startLine, Column: startCol, StartPos: startPos, EndPos: l.position}
	}
	return emit(ILLEGAL, 1)
}

// readIdentifier reads an identifier and returns its text.
func (l *Lexer) readIdentifier() string {
	startPos := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[startPos:l.position]
}

// readNumber reads a decimal (with optional fraction and exponent) or a
// 0x/0o/0b literal and returns the raw text. Numeric separators are not
// supported.
func (l *Lexer) readNumber() string {
	startPos := l.position

	if l.ch == '0' {
		base := 0
		switch l.peekChar() {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			l.readChar()
			l.readChar()
			for isDigitForBase(l.ch, base) {
				l.readChar()
			}
			return l.input[startPos:l.position]
		}
	}

	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) || l.ch == '.' && l.position == startPos {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.peekCharN(2))) {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return l.input[startPos:l.position]
}

// readString reads a string literal enclosed in quote and returns its
// unescaped contents. It fails on unterminated strings, raw newlines, and
// unknown escapes.
func (l *Lexer) readString(quote byte) (string, bool) {
	var builder strings.Builder
	l.readChar() // opening quote

	for {
		switch l.ch {
		case quote:
			l.readChar()
			return builder.String(), true
		case 0, '\n', '\r':
			return "", false
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				builder.WriteByte('\n')
			case 't':
				builder.WriteByte('\t')
			case 'r':
				builder.WriteByte('\r')
			case '0':
				builder.WriteByte(0)
			case '\\', '\'', '"':
				builder.WriteByte(l.ch)
			default:
				return "", false
			}
		default:
			builder.WriteByte(l.ch)
		}
		l.readChar()
	}
}

// skipComment reads until the end of the line.
func (l *Lexer) skipComment() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

// skipMultilineComment consumes '/*' ... '*/'. It returns false when EOF is
// reached first.
func (l *Lexer) skipMultilineComment() bool {
	l.readChar() // '/'
	l.readChar() // '*'
	for {
		if l.ch == 0 {
			return false
		}
		if l.ch == '\n' {
			l.sawNewline = true
		}
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			return true
		}
		l.readChar()
	}
}

// isLetter accepts ASCII letters, '_', '$', and any non-ASCII byte so UTF-8
// identifiers pass through intact.
func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_' || ch == '$' || ch >= 0x80
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isDigitForBase(ch byte, base int) bool {
	switch base {
	case 16:
		return isDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
	case 8:
		return '0' <= ch && ch <= '7'
	case 2:
		return ch == '0' || ch == '1'
	default:
		return isDigit(ch)
	}
}
