package parser

import (
	"fmt"
	"strconv"

	"sigil/pkg/errors"
	"sigil/pkg/lexer"
	"sigil/pkg/source"
)

// --- Debug Flag ---
const debugParser = false

func debugPrint(format string, args ...interface{}) {
	if debugParser {
		fmt.Printf("[Parser Debug] "+format+"\n", args...)
	}
}

// --- End Debug Flag ---

// Parser takes a lexer and builds an AST.
type Parser struct {
	l      *lexer.Lexer
	source *source.SourceFile // cached from lexer
	errors []errors.SigilError

	curToken  lexer.Token
	peekToken lexer.Token

	prefixParseFns map[lexer.TokenType]prefixParseFn
	infixParseFns  map[lexer.TokenType]infixParseFn
}

// Parsing functions types for Pratt parser
type (
	prefixParseFn func() Expression
	infixParseFn  func(Expression) Expression // Arg is the left side expression
)

// Precedence levels for operators
const (
	_ int = iota
	LOWEST
	ASSIGNMENT  // =, +=, -=, *=, /=
	TERNARY     // ?:
	COALESCE    // ??
	LOGICAL_OR  // ||
	LOGICAL_AND // &&
	EQUALS      // ==, !=, ===, !==
	LESSGREATER // >, <, >=, <=, in, instanceof
	SUM         // + or -
	PRODUCT     // * or / or %
	PREFIX      // -X or !X or ++X or --X
	POSTFIX     // X++ or X--
	CALL        // myFunction(X)
	MEMBER      // object.property, array[index]
)

var precedences = map[lexer.TokenType]int{
	lexer.ASSIGN:          ASSIGNMENT,
	lexer.PLUS_ASSIGN:     ASSIGNMENT,
	lexer.MINUS_ASSIGN:    ASSIGNMENT,
	lexer.ASTERISK_ASSIGN: ASSIGNMENT,
	lexer.SLASH_ASSIGN:    ASSIGNMENT,

	lexer.QUESTION:    TERNARY,
	lexer.COALESCE:    COALESCE,
	lexer.LOGICAL_OR:  LOGICAL_OR,
	lexer.LOGICAL_AND: LOGICAL_AND,

	lexer.EQ:            EQUALS,
	lexer.NOT_EQ:        EQUALS,
	lexer.STRICT_EQ:     EQUALS,
	lexer.STRICT_NOT_EQ: EQUALS,

	lexer.LT:         LESSGREATER,
	lexer.GT:         LESSGREATER,
	lexer.LE:         LESSGREATER,
	lexer.GE:         LESSGREATER,
	lexer.IN:         LESSGREATER,
	lexer.INSTANCEOF: LESSGREATER,

	lexer.PLUS:      SUM,
	lexer.MINUS:     SUM,
	lexer.SLASH:     PRODUCT,
	lexer.ASTERISK:  PRODUCT,
	lexer.REMAINDER: PRODUCT,

	lexer.INC: POSTFIX,
	lexer.DEC: POSTFIX,

	lexer.LPAREN:   CALL,
	lexer.LBRACKET: MEMBER,
	lexer.DOT:      MEMBER,
}

// NewParser creates a new Parser.
func NewParser(l *lexer.Lexer) *Parser {
	p := &Parser{
		l:      l,
		source: l.GetSource(),
		errors: []errors.SigilError{},
	}

	p.prefixParseFns = make(map[lexer.TokenType]prefixParseFn)
	p.registerPrefix(lexer.IDENT, p.parseIdentifier)
	p.registerPrefix(lexer.GET, p.parseIdentifier)
	p.registerPrefix(lexer.SET, p.parseIdentifier)
	p.registerPrefix(lexer.STATIC, p.parseIdentifier)
	p.registerPrefix(lexer.PRIVATE_IDENT, p.parsePrivateInExpression)
	p.registerPrefix(lexer.NUMBER, p.parseNumberLiteral)
	p.registerPrefix(lexer.STRING, p.parseStringLiteral)
	p.registerPrefix(lexer.TRUE, p.parseBooleanLiteral)
	p.registerPrefix(lexer.FALSE, p.parseBooleanLiteral)
	p.registerPrefix(lexer.NULL, p.parseNullLiteral)
	p.registerPrefix(lexer.UNDEFINED, p.parseUndefinedLiteral)
	p.registerPrefix(lexer.THIS, p.parseThisExpression)
	p.registerPrefix(lexer.BANG, p.parsePrefixExpression)
	p.registerPrefix(lexer.MINUS, p.parsePrefixExpression)
	p.registerPrefix(lexer.PLUS, p.parsePrefixExpression)
	p.registerPrefix(lexer.TYPEOF, p.parsePrefixExpression)
	p.registerPrefix(lexer.INC, p.parsePrefixUpdateExpression)
	p.registerPrefix(lexer.DEC, p.parsePrefixUpdateExpression)
	p.registerPrefix(lexer.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(lexer.LBRACE, p.parseObjectLiteral)
	p.registerPrefix(lexer.FUNCTION, p.parseFunctionLiteral)
	p.registerPrefix(lexer.CLASS, p.parseClassExpression)
	p.registerPrefix(lexer.NEW, p.parseNewExpression)
	p.registerPrefix(lexer.SUPER, p.parseSuperCallExpression)

	p.infixParseFns = make(map[lexer.TokenType]infixParseFn)
	for _, t := range []lexer.TokenType{
		lexer.PLUS, lexer.MINUS, lexer.ASTERISK, lexer.SLASH, lexer.REMAINDER,
		lexer.EQ, lexer.NOT_EQ, lexer.STRICT_EQ, lexer.STRICT_NOT_EQ,
		lexer.LT, lexer.GT, lexer.LE, lexer.GE, lexer.IN, lexer.INSTANCEOF,
		lexer.LOGICAL_AND, lexer.LOGICAL_OR, lexer.COALESCE,
	} {
		p.registerInfix(t, p.parseInfixExpression)
	}
	for _, t := range []lexer.TokenType{
		lexer.ASSIGN, lexer.PLUS_ASSIGN, lexer.MINUS_ASSIGN, lexer.ASTERISK_ASSIGN, lexer.SLASH_ASSIGN,
	} {
		p.registerInfix(t, p.parseAssignmentExpression)
	}
	p.registerInfix(lexer.QUESTION, p.parseTernaryExpression)
	p.registerInfix(lexer.INC, p.parsePostfixUpdateExpression)
	p.registerInfix(lexer.DEC, p.parsePostfixUpdateExpression)
	p.registerInfix(lexer.LPAREN, p.parseCallExpression)
	p.registerInfix(lexer.LBRACKET, p.parseIndexExpression)
	p.registerInfix(lexer.DOT, p.parseMemberExpression)

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

// Errors returns the errors collected so far.
func (p *Parser) Errors() []errors.SigilError {
	return p.errors
}

// GetSource returns the source file the parser reads from.
func (p *Parser) GetSource() *source.SourceFile {
	return p.source
}

// nextToken advances the current and peek tokens.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
	debugPrint("nextToken(): cur='%s' (%s), peek='%s' (%s)", p.curToken.Literal, p.curToken.Type, p.peekToken.Literal, p.peekToken.Type)
}

// ParseProgram parses the entire input and returns the root Program node and any errors.
func (p *Parser) ParseProgram() (*Program, []errors.SigilError) {
	program := &Program{Source: p.source}

	for p.curToken.Type != lexer.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}

	return program, p.errors
}

// --- Statement Parsing ---

func (p *Parser) parseStatement() Statement {
	debugPrint("parseStatement: cur='%s' (%s), peek='%s' (%s)", p.curToken.Literal, p.curToken.Type, p.peekToken.Literal, p.peekToken.Type)
	switch p.curToken.Type {
	case lexer.LET, lexer.CONST, lexer.VAR:
		return p.parseLetStatement()
	case lexer.FUNCTION:
		return p.parseFunctionDeclaration()
	case lexer.CLASS:
		return p.parseClassDeclaration()
	case lexer.RETURN:
		return p.parseReturnStatement()
	case lexer.IF:
		return p.parseIfStatement()
	case lexer.WHILE:
		return p.parseWhileStatement()
	case lexer.THROW:
		return p.parseThrowStatement()
	case lexer.TRY:
		return p.parseTryStatement()
	case lexer.LBRACE:
		return p.parseBlockStatement()
	case lexer.SEMICOLON:
		return &EmptyStatement{Token: p.curToken}
	case lexer.ILLEGAL:
		p.addError(p.curToken, fmt.Sprintf("illegal token %q", p.curToken.Literal))
		return nil
	default:
		return p.parseExpressionStatement()
	}
}

// consumeSemicolon applies the statement terminator rules: an explicit ';',
// or a '}' / EOF / line break before the next token.
func (p *Parser) consumeSemicolon() bool {
	if p.peekTokenIs(lexer.SEMICOLON) {
		p.nextToken()
		return true
	}
	if p.peekTokenIs(lexer.RBRACE) || p.peekTokenIs(lexer.EOF) || p.peekToken.NewlineBefore {
		return true
	}
	p.addError(p.peekToken, fmt.Sprintf("unexpected token %q, expected ';'", p.peekToken.Literal))
	return false
}

func (p *Parser) parseLetStatement() Statement {
	stmt := &LetStatement{Token: p.curToken}

	if !p.expectPeekBindingIdentifier() {
		return nil
	}
	stmt.Name = &Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if p.peekTokenIs(lexer.ASSIGN) {
		p.nextToken() // '='
		p.nextToken()
		stmt.Value = p.parseExpression(LOWEST)
		if stmt.Value == nil {
			return nil
		}
	} else if stmt.IsConst() {
		p.addError(stmt.Name.Token, fmt.Sprintf("missing initializer in const declaration '%s'", stmt.Name.Value))
		return nil
	}

	if !p.consumeSemicolon() {
		return nil
	}
	return stmt
}

func (p *Parser) parseFunctionDeclaration() Statement {
	tok := p.curToken
	if !p.peekIsBindingIdentifier() {
		p.addError(p.peekToken, "function declarations require a name")
		return nil
	}
	fn, ok := p.parseFunctionLiteral().(*FunctionLiteral)
	if !ok || fn == nil {
		return nil
	}
	return &FunctionDeclaration{Token: tok, Function: fn}
}

func (p *Parser) parseClassDeclaration() Statement {
	tok := p.curToken
	if !p.peekIsBindingIdentifier() {
		p.addError(p.peekToken, "class declarations require a name")
		return nil
	}
	class, ok := p.parseClassExpression().(*ClassExpression)
	if !ok || class == nil {
		return nil
	}
	return &ClassDeclaration{Token: tok, Class: class}
}

func (p *Parser) parseReturnStatement() *ReturnStatement {
	stmt := &ReturnStatement{Token: p.curToken}

	// A line break after 'return' ends the statement.
	if p.peekTokenIs(lexer.SEMICOLON) || p.peekTokenIs(lexer.RBRACE) || p.peekTokenIs(lexer.EOF) || p.peekToken.NewlineBefore {
		if p.peekTokenIs(lexer.SEMICOLON) {
			p.nextToken()
		}
		return stmt
	}

	p.nextToken()
	stmt.ReturnValue = p.parseExpression(LOWEST)
	if stmt.ReturnValue == nil {
		return nil
	}
	if !p.consumeSemicolon() {
		return nil
	}
	return stmt
}

func (p *Parser) parseIfStatement() *IfStatement {
	stmt := &IfStatement{Token: p.curToken}

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if stmt.Condition == nil || !p.expectPeek(lexer.RPAREN) {
		return nil
	}

	p.nextToken()
	stmt.Consequence = p.parseStatement()
	if stmt.Consequence == nil {
		return nil
	}

	if p.peekTokenIs(lexer.ELSE) {
		p.nextToken() // 'else'
		p.nextToken()
		stmt.Alternative = p.parseStatement()
		if stmt.Alternative == nil {
			return nil
		}
	}
	return stmt
}

func (p *Parser) parseWhileStatement() *WhileStatement {
	stmt := &WhileStatement{Token: p.curToken}

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if stmt.Condition == nil || !p.expectPeek(lexer.RPAREN) {
		return nil
	}

	p.nextToken()
	stmt.Body = p.parseStatement()
	if stmt.Body == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseThrowStatement() *ThrowStatement {
	stmt := &ThrowStatement{Token: p.curToken}

	if p.peekToken.NewlineBefore {
		p.addError(p.peekToken, "illegal newline after throw")
		return nil
	}
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil || !p.consumeSemicolon() {
		return nil
	}
	return stmt
}

func (p *Parser) parseTryStatement() *TryStatement {
	stmt := &TryStatement{Token: p.curToken}

	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	stmt.Block = p.parseBlockStatement()

	if p.peekTokenIs(lexer.FINALLY) {
		p.addError(p.peekToken, "'finally' blocks are not supported")
		return nil
	}
	if !p.expectPeek(lexer.CATCH) {
		return nil
	}

	if p.peekTokenIs(lexer.LPAREN) {
		p.nextToken() // '('
		if !p.expectPeekBindingIdentifier() {
			return nil
		}
		stmt.CatchParam = &Identifier{Token: p.curToken, Value: p.curToken.Literal}
		if !p.expectPeek(lexer.RPAREN) {
			return nil
		}
	}

	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	stmt.CatchBody = p.parseBlockStatement()

	if p.peekTokenIs(lexer.FINALLY) {
		p.addError(p.peekToken, "'finally' blocks are not supported")
		return nil
	}
	return stmt
}

// parseBlockStatement expects curToken to be '{' and leaves it on '}'.
func (p *Parser) parseBlockStatement() *BlockStatement {
	block := &BlockStatement{Token: p.curToken}
	p.nextToken()

	for !p.curTokenIs(lexer.RBRACE) && !p.curTokenIs(lexer.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}

	if !p.curTokenIs(lexer.RBRACE) {
		p.addError(p.curToken, "expected '}' to close block")
	}
	return block
}

func (p *Parser) parseExpressionStatement() *ExpressionStatement {
	stmt := &ExpressionStatement{Token: p.curToken}

	stmt.Expression = p.parseExpression(LOWEST)
	if stmt.Expression == nil {
		return nil
	}
	if !p.consumeSemicolon() {
		return nil
	}
	return stmt
}

// --- Expression Parsing ---

func (p *Parser) parseExpression(precedence int) Expression {
	debugPrint("parseExpression(prec=%d): cur='%s' (%s)", precedence, p.curToken.Literal, p.curToken.Type)
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken)
		return nil
	}
	leftExp := prefix()
	if leftExp == nil {
		return nil
	}

	for !p.peekTokenIs(lexer.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
		if leftExp == nil {
			return nil
		}
	}

	return leftExp
}

// -- Prefix Parse Functions --

func (p *Parser) parseIdentifier() Expression {
	ident := &Identifier{Token: p.curToken, Value: p.curToken.Literal}

	// Shorthand arrow function `ident => body`
	if p.peekTokenIs(lexer.ARROW) && !p.peekToken.NewlineBefore {
		p.nextToken() // '=>'
		return p.parseArrowFunctionBody(ident.Token, []*Identifier{ident})
	}
	return ident
}

// parsePrivateInExpression handles the only expression position where a
// bare private name may appear: the left operand of `in`.
func (p *Parser) parsePrivateInExpression() Expression {
	name := &PrivateIdentifier{Token: p.curToken, Name: p.curToken.Literal}
	if !p.peekTokenIs(lexer.IN) {
		p.addError(p.curToken, fmt.Sprintf("unexpected private name %s", name.Name))
		return nil
	}
	p.nextToken() // 'in'
	expr := &PrivateInExpression{Token: p.curToken, Name: name}
	p.nextToken()
	expr.Right = p.parseExpression(LESSGREATER)
	if expr.Right == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseNumberLiteral() Expression {
	lit := &NumberLiteral{Token: p.curToken}
	value, err := parseNumber(p.curToken.Literal)
	if err != nil {
		p.addError(p.curToken, fmt.Sprintf("could not parse %q as number", p.curToken.Literal))
		return nil
	}
	lit.Value = value
	return lit
}

func parseNumber(literal string) (float64, error) {
	if len(literal) > 2 && literal[0] == '0' {
		base := 0
		switch literal[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(literal[2:], base, 64)
			return float64(n), err
		}
	}
	return strconv.ParseFloat(literal, 64)
}

func (p *Parser) parseStringLiteral() Expression {
	return &StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseBooleanLiteral() Expression {
	return &BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(lexer.TRUE)}
}

func (p *Parser) parseNullLiteral() Expression {
	return &NullLiteral{Token: p.curToken}
}

func (p *Parser) parseUndefinedLiteral() Expression {
	return &UndefinedLiteral{Token: p.curToken}
}

func (p *Parser) parseThisExpression() Expression {
	return &ThisExpression{Token: p.curToken}
}

// parsePrefixExpression handles expressions like !expr, -expr and typeof expr
func (p *Parser) parsePrefixExpression() Expression {
	expr := &PrefixExpression{Token: p.curToken, Operator: p.curToken.Literal}
	p.nextToken()
	expr.Right = p.parseExpression(PREFIX)
	if expr.Right == nil {
		return nil
	}
	return expr
}

func (p *Parser) parsePrefixUpdateExpression() Expression {
	expr := &UpdateExpression{Token: p.curToken, Operator: p.curToken.Literal, Prefix: true}
	p.nextToken()
	expr.Argument = p.parseExpression(PREFIX)
	if expr.Argument == nil {
		return nil
	}
	if !isValidLValue(expr.Argument) {
		p.addError(expr.Token, fmt.Sprintf("invalid left-hand side expression in prefix operation: %s", expr.Argument.String()))
		return nil
	}
	return expr
}

func (p *Parser) parsePostfixUpdateExpression(left Expression) Expression {
	expr := &UpdateExpression{Token: p.curToken, Operator: p.curToken.Literal, Argument: left}
	if !isValidLValue(left) {
		p.addError(expr.Token, fmt.Sprintf("invalid left-hand side expression in postfix operation: %s", left.String()))
		return nil
	}
	return expr
}

// parseGroupedExpression handles both `(expr)` and arrow parameter lists.
func (p *Parser) parseGroupedExpression() Expression {
	if p.isArrowParametersAhead() {
		tok := p.curToken
		params, ok := p.parseParameterList()
		if !ok || !p.expectPeek(lexer.ARROW) {
			return nil
		}
		return p.parseArrowFunctionBody(tok, params)
	}

	p.nextToken()
	exp := p.parseExpression(LOWEST)
	if exp == nil || !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return exp
}

// isArrowParametersAhead reports whether the parenthesised list starting at
// curToken is followed by '=>'. Parser and lexer state are restored.
func (p *Parser) isArrowParametersAhead() bool {
	saved := p.l.SaveState()
	cur, peek := p.curToken, p.peekToken
	defer func() {
		p.l.RestoreState(saved)
		p.curToken, p.peekToken = cur, peek
	}()

	depth := 1
	for depth > 0 {
		p.nextToken()
		switch p.curToken.Type {
		case lexer.LPAREN:
			depth++
		case lexer.RPAREN:
			depth--
		case lexer.EOF:
			return false
		}
	}
	return p.peekTokenIs(lexer.ARROW) && !p.peekToken.NewlineBefore
}

// parseArrowFunctionBody expects curToken to be '=>'.
func (p *Parser) parseArrowFunctionBody(tok lexer.Token, params []*Identifier) Expression {
	fn := &FunctionLiteral{Token: tok, Parameters: params, IsArrow: true}

	if p.peekTokenIs(lexer.LBRACE) {
		p.nextToken()
		fn.Body = p.parseBlockStatement()
		return fn
	}

	p.nextToken()
	bodyTok := p.curToken
	value := p.parseExpression(ASSIGNMENT - 1)
	if value == nil {
		return nil
	}
	fn.Body = &BlockStatement{
		Token:      bodyTok,
		Statements: []Statement{&ReturnStatement{Token: bodyTok, ReturnValue: value}},
	}
	return fn
}

// parseFunctionLiteral handles `function [name](params) { body }`.
func (p *Parser) parseFunctionLiteral() Expression {
	fn := &FunctionLiteral{Token: p.curToken}

	if p.peekIsBindingIdentifier() {
		p.nextToken()
		fn.Name = &Identifier{Token: p.curToken, Value: p.curToken.Literal}
	}

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	params, ok := p.parseParameterList()
	if !ok {
		return nil
	}
	fn.Parameters = params

	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	fn.Body = p.parseBlockStatement()
	return fn
}

// parseParameterList expects curToken to be '(' and leaves it on ')'.
func (p *Parser) parseParameterList() ([]*Identifier, bool) {
	params := []*Identifier{}

	if p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
		return params, true
	}

	for {
		if !p.expectPeekBindingIdentifier() {
			return nil, false
		}
		params = append(params, &Identifier{Token: p.curToken, Value: p.curToken.Literal})
		if !p.peekTokenIs(lexer.COMMA) {
			break
		}
		p.nextToken() // ','
	}

	if !p.expectPeek(lexer.RPAREN) {
		return nil, false
	}
	return params, true
}

func (p *Parser) parseNewExpression() Expression {
	expr := &NewExpression{Token: p.curToken}

	p.nextToken()
	expr.Constructor = p.parseExpression(CALL)
	if expr.Constructor == nil {
		return nil
	}

	if p.peekTokenIs(lexer.LPAREN) {
		p.nextToken()
		args, ok := p.parseExpressionList(lexer.RPAREN)
		if !ok {
			return nil
		}
		expr.Arguments = args
	}
	return expr
}

func (p *Parser) parseSuperCallExpression() Expression {
	expr := &SuperCallExpression{Token: p.curToken}
	if !p.peekTokenIs(lexer.LPAREN) {
		p.addError(p.curToken, "'super' keyword unexpected here")
		return nil
	}
	p.nextToken()
	args, ok := p.parseExpressionList(lexer.RPAREN)
	if !ok {
		return nil
	}
	expr.Arguments = args
	return expr
}

// parseObjectLiteral handles `{ key: value, shorthand, method() {} }`.
func (p *Parser) parseObjectLiteral() Expression {
	obj := &ObjectLiteral{Token: p.curToken}

	for !p.peekTokenIs(lexer.RBRACE) {
		p.nextToken()
		keyTok := p.curToken
		var key string
		switch {
		case isNameToken(keyTok), keyTok.Type == lexer.STRING:
			key = keyTok.Literal
		case keyTok.Type == lexer.NUMBER:
			n, err := parseNumber(keyTok.Literal)
			if err != nil {
				p.addError(keyTok, fmt.Sprintf("could not parse %q as number", keyTok.Literal))
				return nil
			}
			key = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			p.addError(keyTok, fmt.Sprintf("unexpected token %q in object literal", keyTok.Literal))
			return nil
		}

		prop := &ObjectProperty{Key: key}
		switch {
		case p.peekTokenIs(lexer.COLON):
			p.nextToken() // ':'
			p.nextToken()
			prop.Value = p.parseExpression(LOWEST)
		case p.peekTokenIs(lexer.LPAREN):
			prop.Value = p.parseMethodFunction(keyTok)
		case keyTok.Type == lexer.IDENT:
			prop.Value = &Identifier{Token: keyTok, Value: keyTok.Literal}
		default:
			p.addError(p.peekToken, fmt.Sprintf("expected ':' after property name %q", key))
			return nil
		}
		if prop.Value == nil {
			return nil
		}
		obj.Properties = append(obj.Properties, prop)

		if !p.peekTokenIs(lexer.RBRACE) && !p.expectPeek(lexer.COMMA) {
			return nil
		}
	}

	p.nextToken() // '}'
	return obj
}

// parseMethodFunction expects curToken to be the member name and peekToken
// '('. It leaves curToken on the closing '}' of the body.
func (p *Parser) parseMethodFunction(nameTok lexer.Token) *FunctionLiteral {
	fn := &FunctionLiteral{Token: nameTok}
	if nameTok.Type != lexer.PRIVATE_IDENT {
		fn.Name = &Identifier{Token: nameTok, Value: nameTok.Literal}
	}
	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	params, ok := p.parseParameterList()
	if !ok {
		return nil
	}
	fn.Parameters = params
	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	fn.Body = p.parseBlockStatement()
	return fn
}

// -- Infix Parse Functions --

func (p *Parser) parseInfixExpression(left Expression) Expression {
	expr := &InfixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
		Left:     left,
	}
	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	if expr.Right == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseTernaryExpression(condition Expression) Expression {
	expr := &TernaryExpression{Token: p.curToken, Condition: condition}

	p.nextToken()
	expr.Consequence = p.parseExpression(LOWEST)
	if expr.Consequence == nil || !p.expectPeek(lexer.COLON) {
		return nil
	}

	p.nextToken()
	expr.Alternative = p.parseExpression(LOWEST)
	if expr.Alternative == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseAssignmentExpression(left Expression) Expression {
	expr := &AssignmentExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
		Left:     left,
	}

	if !isValidLValue(left) {
		p.addError(expr.Token, fmt.Sprintf("invalid left-hand side in assignment: %s", left.String()))
		return nil
	}

	p.nextToken()
	// Assignment is right-associative: a = b = c parses as a = (b = c)
	expr.Value = p.parseExpression(ASSIGNMENT - 1)
	if expr.Value == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseCallExpression(function Expression) Expression {
	expr := &CallExpression{Token: p.curToken, Function: function}
	args, ok := p.parseExpressionList(lexer.RPAREN)
	if !ok {
		return nil
	}
	expr.Arguments = args
	return expr
}

// parseExpressionList expects curToken to be the opening delimiter and leaves
// it on end.
func (p *Parser) parseExpressionList(end lexer.TokenType) ([]Expression, bool) {
	list := []Expression{}

	if p.peekTokenIs(end) {
		p.nextToken()
		return list, true
	}

	p.nextToken()
	item := p.parseExpression(LOWEST)
	if item == nil {
		return nil, false
	}
	list = append(list, item)

	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken() // ','
		if p.peekTokenIs(end) { // trailing comma
			break
		}
		p.nextToken()
		item := p.parseExpression(LOWEST)
		if item == nil {
			return nil, false
		}
		list = append(list, item)
	}

	if !p.expectPeek(end) {
		return nil, false
	}
	return list, true
}

func (p *Parser) parseIndexExpression(left Expression) Expression {
	exp := &IndexExpression{Token: p.curToken, Left: left}

	p.nextToken()
	exp.Index = p.parseExpression(LOWEST)
	if exp.Index == nil || !p.expectPeek(lexer.RBRACKET) {
		return nil
	}
	return exp
}

// parseMemberExpression handles `obj.name` and `obj.#name`.
func (p *Parser) parseMemberExpression(left Expression) Expression {
	dot := p.curToken
	p.nextToken()

	if p.curTokenIs(lexer.PRIVATE_IDENT) {
		return &PrivateMemberExpression{
			Token:    dot,
			Object:   left,
			Property: &PrivateIdentifier{Token: p.curToken, Name: p.curToken.Literal},
		}
	}

	if !isNameToken(p.curToken) {
		p.addError(p.curToken, fmt.Sprintf("expected identifier after '.', got %s", p.curToken.Type))
		return nil
	}
	return &MemberExpression{
		Token:    dot,
		Object:   left,
		Property: &Identifier{Token: p.curToken, Value: p.curToken.Literal},
	}
}

// --- Helpers ---

func isValidLValue(expr Expression) bool {
	switch expr.(type) {
	case *Identifier, *MemberExpression, *PrivateMemberExpression, *IndexExpression:
		return true
	}
	return false
}

// isNameToken reports whether t can be used as a property name: an
// identifier or any keyword.
func isNameToken(t lexer.Token) bool {
	return t.Type == lexer.IDENT || (t.Literal != "" && lexer.LookupIdent(t.Literal) == t.Type)
}

func isBindingIdentifier(t lexer.TokenType) bool {
	return t == lexer.IDENT || lexer.IsContextualKeyword(t)
}

func (p *Parser) peekIsBindingIdentifier() bool {
	return isBindingIdentifier(p.peekToken.Type)
}

func (p *Parser) expectPeekBindingIdentifier() bool {
	if p.peekIsBindingIdentifier() {
		p.nextToken()
		return true
	}
	p.addError(p.peekToken, fmt.Sprintf("expected identifier, got %s", p.peekToken.Type))
	return false
}

func (p *Parser) registerPrefix(tokenType lexer.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType lexer.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

// expectPeek checks the type of the next token and advances if it matches.
// If it doesn't match, it adds an error.
func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

// --- Error Handling ---

func (p *Parser) peekError(t lexer.TokenType) {
	msg := fmt.Sprintf("expected next token to be %s, got %s instead", t, p.peekToken.Type)
	p.addError(p.peekToken, msg)
}

func (p *Parser) noPrefixParseFnError(tok lexer.Token) {
	var msg string
	switch tok.Type {
	case lexer.EOF:
		msg = "unexpected end of input"
	case lexer.ILLEGAL:
		msg = fmt.Sprintf("illegal token %q", tok.Literal)
	default:
		msg = fmt.Sprintf("unexpected token %q", tok.Literal)
	}
	p.addError(tok, msg)
}

// addError creates a SyntaxError and appends it to the parser's error list.
func (p *Parser) addError(tok lexer.Token, msg string) {
	const maxErrors = 100
	if len(p.errors) > maxErrors {
		return
	}
	if len(p.errors) == maxErrors {
		msg = fmt.Sprintf("too many parse errors (limit: %d), stopping parser", maxErrors)
	}
	p.errors = append(p.errors, &errors.SyntaxError{
		Position: errors.Position{
			Line:     tok.Line,
			Column:   tok.Column,
			StartPos: tok.StartPos,
			EndPos:   tok.EndPos,
			Source:   p.source,
		},
		Msg: msg,
	})
}

// --- Precedence Helper ---

func (p *Parser) peekPrecedence() int {
	// No line terminator is allowed between an operand and postfix ++/--.
	if (p.peekTokenIs(lexer.INC) || p.peekTokenIs(lexer.DEC)) && p.peekToken.NewlineBefore {
		return LOWEST
	}
	if p, ok := precedences[p.peekToken.Type]; ok {
		return p
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if p, ok := precedences[p.curToken.Type]; ok {
		return p
	}
	return LOWEST
}
