package parser

import (
	"fmt"

	"sigil/pkg/lexer"
)

// parseClassExpression parses a class declaration or expression.
// Syntax: class [ClassName] [extends LeftHandSideExpression] { classBody }
// It leaves curToken on the closing '}'.
func (p *Parser) parseClassExpression() Expression {
	class := &ClassExpression{Token: p.curToken}

	if p.peekIsBindingIdentifier() {
		p.nextToken()
		class.Name = &Identifier{Token: p.curToken, Value: p.curToken.Literal}
	}

	if p.peekTokenIs(lexer.EXTENDS) {
		p.nextToken() // 'extends'
		p.nextToken()
		// The heritage is a left-hand-side expression; stop before '{'.
		class.SuperClass = p.parseExpression(CALL - 1)
		if class.SuperClass == nil {
			return nil
		}
	}

	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}

	body := p.parseClassBody()
	if body == nil {
		return nil
	}
	class.Body = body
	return class
}

// parseClassBody expects curToken to be '{' and returns the members in
// source order. Private-name conflicts are not checked here; the body is
// handed over whole so the collector can see every declaration.
func (p *Parser) parseClassBody() *ClassBody {
	body := &ClassBody{Token: p.curToken}
	p.nextToken() // move past '{'

	for !p.curTokenIs(lexer.RBRACE) && !p.curTokenIs(lexer.EOF) {
		if p.curTokenIs(lexer.SEMICOLON) {
			p.nextToken()
			continue
		}

		member := p.parseClassMember()
		if member == nil {
			return nil
		}
		body.Members = append(body.Members, member)
		p.nextToken()
	}

	if !p.curTokenIs(lexer.RBRACE) {
		p.addError(p.curToken, "expected '}' to close class body")
		return nil
	}
	return body
}

// parseClassMember parses one class element and leaves curToken on its last
// token.
func (p *Parser) parseClassMember() *ClassMember {
	member := &ClassMember{Token: p.curToken, Kind: MemberMethod}

	if p.curTokenIs(lexer.STATIC) && !isMemberNameEnd(p.peekToken) {
		if p.peekTokenIs(lexer.LBRACE) {
			p.nextToken()
			member.Kind = MemberStaticBlock
			member.Static = true
			member.Body = p.parseBlockStatement()
			return member
		}
		member.Static = true
		p.nextToken()
	}

	if (p.curTokenIs(lexer.GET) || p.curTokenIs(lexer.SET)) && !isMemberNameEnd(p.peekToken) {
		if p.curTokenIs(lexer.GET) {
			member.Kind = MemberGetter
		} else {
			member.Kind = MemberSetter
		}
		p.nextToken()
	}

	nameTok := p.curToken
	member.Key = p.parseClassElementName()
	if member.Key == nil {
		return nil
	}
	isConstructorName := !member.IsPrivate() && member.KeyName() == "constructor"

	if p.peekTokenIs(lexer.LPAREN) {
		if isConstructorName && !member.Static {
			if member.Kind != MemberMethod {
				p.addError(nameTok, "class constructor may not be an accessor")
				return nil
			}
			member.Kind = MemberConstructor
		}
		member.Value = p.parseMethodFunction(nameTok)
		if member.Value == nil {
			return nil
		}
		switch {
		case member.Kind == MemberGetter && len(member.Value.Parameters) != 0:
			p.addError(nameTok, fmt.Sprintf("getter '%s' must not have parameters", member.KeyName()))
			return nil
		case member.Kind == MemberSetter && len(member.Value.Parameters) != 1:
			p.addError(nameTok, fmt.Sprintf("setter '%s' must have exactly one parameter", member.KeyName()))
			return nil
		}
		return member
	}

	if member.Kind != MemberMethod {
		p.peekError(lexer.LPAREN)
		return nil
	}
	if isConstructorName {
		p.addError(nameTok, "classes may not have a field named 'constructor'")
		return nil
	}

	member.Kind = MemberField
	if p.peekTokenIs(lexer.ASSIGN) {
		p.nextToken() // '='
		p.nextToken()
		member.Initializer = p.parseExpression(LOWEST)
		if member.Initializer == nil {
			return nil
		}
	}
	if !p.consumeSemicolon() {
		return nil
	}
	return member
}

// parseClassElementName converts curToken into a member key.
func (p *Parser) parseClassElementName() Expression {
	tok := p.curToken
	switch {
	case tok.Type == lexer.PRIVATE_IDENT:
		return &PrivateIdentifier{Token: tok, Name: tok.Literal}
	case tok.Type == lexer.STRING:
		return &StringLiteral{Token: tok, Value: tok.Literal}
	case tok.Type == lexer.NUMBER:
		return p.parseNumberLiteral()
	case isNameToken(tok):
		return &Identifier{Token: tok, Value: tok.Literal}
	}
	p.addError(tok, fmt.Sprintf("unexpected token %q in class body", tok.Literal))
	return nil
}

// isMemberNameEnd reports whether t ends a member name, meaning a preceding
// `get`, `set` or `static` is itself the name.
func isMemberNameEnd(t lexer.Token) bool {
	switch t.Type {
	case lexer.LPAREN, lexer.ASSIGN, lexer.SEMICOLON, lexer.RBRACE, lexer.EOF:
		return true
	}
	return false
}
