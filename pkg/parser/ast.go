package parser

import (
	"bytes"
	"strconv"
	"strings"

	"sigil/pkg/lexer"
	"sigil/pkg/source"
)

// --- Interfaces ---

// Node is the base interface for all AST nodes.
type Node interface {
	TokenLiteral() string // Returns the literal value of the token associated with the node
	String() string       // Returns a string representation of the node (for debugging)
}

// Statement represents a statement node in the AST.
type Statement interface {
	Node
	statementNode()
}

// Expression represents an expression node in the AST.
type Expression interface {
	Node
	expressionNode()
}

// --- Program Node ---

// Program is the root node of the AST.
type Program struct {
	Statements []Statement
	Source     *source.SourceFile
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

func (p *Program) String() string {
	var out bytes.Buffer
	for _, s := range p.Statements {
		out.WriteString(s.String())
	}
	return out.String()
}

// --- Statement Nodes ---

// LetStatement represents a `let`, `const` or `var` declaration with a
// single declarator. Token tells which one it is.
// let <Name> = <Value>;
type LetStatement struct {
	Token lexer.Token // The lexer.LET, lexer.CONST or lexer.VAR token
	Name  *Identifier
	Value Expression // nil when there is no initialiser
}

func (ls *LetStatement) statementNode()       {}
func (ls *LetStatement) TokenLiteral() string { return ls.Token.Literal }
func (ls *LetStatement) IsConst() bool        { return ls.Token.Type == lexer.CONST }
func (ls *LetStatement) IsVar() bool          { return ls.Token.Type == lexer.VAR }
func (ls *LetStatement) String() string {
	var out bytes.Buffer
	out.WriteString(ls.TokenLiteral() + " ")
	out.WriteString(ls.Name.String())
	if ls.Value != nil {
		out.WriteString(" = ")
		out.WriteString(ls.Value.String())
	}
	out.WriteString(";")
	return out.String()
}

// ExpressionStatement wraps an expression used as a statement.
type ExpressionStatement struct {
	Token      lexer.Token // The first token of the expression
	Expression Expression
}

func (es *ExpressionStatement) statementNode()       {}
func (es *ExpressionStatement) TokenLiteral() string { return es.Token.Literal }
func (es *ExpressionStatement) String() string {
	if es.Expression != nil {
		return es.Expression.String() + ";"
	}
	return ";"
}

// EmptyStatement is a lone `;`.
type EmptyStatement struct {
	Token lexer.Token
}

func (es *EmptyStatement) statementNode()       {}
func (es *EmptyStatement) TokenLiteral() string { return es.Token.Literal }
func (es *EmptyStatement) String() string       { return ";" }

// BlockStatement represents a sequence of statements enclosed in braces.
type BlockStatement struct {
	Token      lexer.Token // The '{' token
	Statements []Statement
}

func (bs *BlockStatement) statementNode()       {}
func (bs *BlockStatement) TokenLiteral() string { return bs.Token.Literal }
func (bs *BlockStatement) String() string {
	var out bytes.Buffer
	out.WriteString("{ ")
	for _, s := range bs.Statements {
		out.WriteString(s.String())
		out.WriteString(" ")
	}
	out.WriteString("}")
	return out.String()
}

// ReturnStatement represents `return <ReturnValue>;`.
type ReturnStatement struct {
	Token       lexer.Token
	ReturnValue Expression // nil for a bare return
}

func (rs *ReturnStatement) statementNode()       {}
func (rs *ReturnStatement) TokenLiteral() string { return rs.Token.Literal }
func (rs *ReturnStatement) String() string {
	if rs.ReturnValue != nil {
		return "return " + rs.ReturnValue.String() + ";"
	}
	return "return;"
}

// IfStatement represents `if (<Condition>) <Consequence> else <Alternative>`.
type IfStatement struct {
	Token       lexer.Token
	Condition   Expression
	Consequence Statement
	Alternative Statement // nil without an else branch
}

func (is *IfStatement) statementNode()       {}
func (is *IfStatement) TokenLiteral() string { return is.Token.Literal }
func (is *IfStatement) String() string {
	var out bytes.Buffer
	out.WriteString("if (")
	out.WriteString(is.Condition.String())
	out.WriteString(") ")
	out.WriteString(is.Consequence.String())
	if is.Alternative != nil {
		out.WriteString(" else ")
		out.WriteString(is.Alternative.String())
	}
	return out.String()
}

// WhileStatement represents `while (<Condition>) <Body>`.
type WhileStatement struct {
	Token     lexer.Token
	Condition Expression
	Body      Statement
}

func (ws *WhileStatement) statementNode()       {}
func (ws *WhileStatement) TokenLiteral() string { return ws.Token.Literal }
func (ws *WhileStatement) String() string {
	return "while (" + ws.Condition.String() + ") " + ws.Body.String()
}

// ThrowStatement represents `throw <Value>;`.
type ThrowStatement struct {
	Token lexer.Token
	Value Expression
}

func (ts *ThrowStatement) statementNode()       {}
func (ts *ThrowStatement) TokenLiteral() string { return ts.Token.Literal }
func (ts *ThrowStatement) String() string       { return "throw " + ts.Value.String() + ";" }

// TryStatement represents `try { } catch (<Param>) { }`.
type TryStatement struct {
	Token      lexer.Token
	Block      *BlockStatement
	CatchParam *Identifier // nil for `catch { }`
	CatchBody  *BlockStatement
}

func (ts *TryStatement) statementNode()       {}
func (ts *TryStatement) TokenLiteral() string { return ts.Token.Literal }
func (ts *TryStatement) String() string {
	var out bytes.Buffer
	out.WriteString("try ")
	out.WriteString(ts.Block.String())
	out.WriteString(" catch ")
	if ts.CatchParam != nil {
		out.WriteString("(" + ts.CatchParam.String() + ") ")
	}
	out.WriteString(ts.CatchBody.String())
	return out.String()
}

// FunctionDeclaration is a named function statement; it is hoisted to the
// top of its enclosing block.
type FunctionDeclaration struct {
	Token    lexer.Token
	Function *FunctionLiteral
}

func (fd *FunctionDeclaration) statementNode()       {}
func (fd *FunctionDeclaration) TokenLiteral() string { return fd.Token.Literal }
func (fd *FunctionDeclaration) String() string       { return fd.Function.String() }

// ClassDeclaration is a named class statement. It binds like `let`.
type ClassDeclaration struct {
	Token lexer.Token
	Class *ClassExpression
}

func (cd *ClassDeclaration) statementNode()       {}
func (cd *ClassDeclaration) TokenLiteral() string { return cd.Token.Literal }
func (cd *ClassDeclaration) String() string       { return cd.Class.String() }

// --- Expression Nodes ---

// Identifier represents a binding or a public property name.
type Identifier struct {
	Token lexer.Token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) String() string       { return i.Value }

// PrivateIdentifier is a `#name` token at a declaration or reference site.
// Name keeps the leading '#'.
type PrivateIdentifier struct {
	Token lexer.Token
	Name  string
}

func (pi *PrivateIdentifier) expressionNode()      {}
func (pi *PrivateIdentifier) TokenLiteral() string { return pi.Token.Literal }
func (pi *PrivateIdentifier) String() string       { return pi.Name }

// NumberLiteral represents a numeric literal.
type NumberLiteral struct {
	Token lexer.Token
	Value float64
}

func (nl *NumberLiteral) expressionNode()      {}
func (nl *NumberLiteral) TokenLiteral() string { return nl.Token.Literal }
func (nl *NumberLiteral) String() string       { return nl.Token.Literal }

// StringLiteral represents a string literal with escapes already resolved.
type StringLiteral struct {
	Token lexer.Token
	Value string
}

func (sl *StringLiteral) expressionNode()      {}
func (sl *StringLiteral) TokenLiteral() string { return sl.Token.Literal }
func (sl *StringLiteral) String() string       { return strconv.Quote(sl.Value) }

// BooleanLiteral represents `true` or `false`.
type BooleanLiteral struct {
	Token lexer.Token
	Value bool
}

func (bl *BooleanLiteral) expressionNode()      {}
func (bl *BooleanLiteral) TokenLiteral() string { return bl.Token.Literal }
func (bl *BooleanLiteral) String() string       { return bl.Token.Literal }

// NullLiteral represents `null`.
type NullLiteral struct {
	Token lexer.Token
}

func (nl *NullLiteral) expressionNode()      {}
func (nl *NullLiteral) TokenLiteral() string { return nl.Token.Literal }
func (nl *NullLiteral) String() string       { return "null" }

// UndefinedLiteral represents `undefined`.
type UndefinedLiteral struct {
	Token lexer.Token
}

func (ul *UndefinedLiteral) expressionNode()      {}
func (ul *UndefinedLiteral) TokenLiteral() string { return ul.Token.Literal }
func (ul *UndefinedLiteral) String() string       { return "undefined" }

// ThisExpression represents `this`.
type ThisExpression struct {
	Token lexer.Token
}

func (te *ThisExpression) expressionNode()      {}
func (te *ThisExpression) TokenLiteral() string { return te.Token.Literal }
func (te *ThisExpression) String() string       { return "this" }

// FunctionLiteral represents function expressions, declarations, arrows,
// methods and accessors. Arrow functions with an expression body are
// desugared into a block holding a single return.
type FunctionLiteral struct {
	Token      lexer.Token // 'function', '(' / identifier for arrows, or the method name
	Name       *Identifier // nil for anonymous functions
	Parameters []*Identifier
	Body       *BlockStatement
	IsArrow    bool
}

func (fl *FunctionLiteral) expressionNode()      {}
func (fl *FunctionLiteral) TokenLiteral() string { return fl.Token.Literal }
func (fl *FunctionLiteral) String() string {
	params := make([]string, len(fl.Parameters))
	for i, p := range fl.Parameters {
		params[i] = p.String()
	}
	if fl.IsArrow {
		return "(" + strings.Join(params, ", ") + ") => " + fl.Body.String()
	}
	var out bytes.Buffer
	out.WriteString("function")
	if fl.Name != nil {
		out.WriteString(" " + fl.Name.Value)
	}
	out.WriteString("(" + strings.Join(params, ", ") + ") ")
	out.WriteString(fl.Body.String())
	return out.String()
}

// MemberKind distinguishes the elements of a class body.
type MemberKind int

const (
	MemberMethod MemberKind = iota
	MemberGetter
	MemberSetter
	MemberField
	MemberConstructor
	MemberStaticBlock
)

func (k MemberKind) String() string {
	switch k {
	case MemberMethod:
		return "method"
	case MemberGetter:
		return "get"
	case MemberSetter:
		return "set"
	case MemberField:
		return "field"
	case MemberConstructor:
		return "constructor"
	case MemberStaticBlock:
		return "static block"
	}
	return "unknown"
}

// ClassMember is one element of a class body, in source order.
type ClassMember struct {
	Token       lexer.Token // First token of the member (modifier or name)
	Kind        MemberKind
	Static      bool
	Key         Expression       // *Identifier, *PrivateIdentifier, *StringLiteral or *NumberLiteral; nil for static blocks
	Value       *FunctionLiteral // methods, accessors, constructor
	Initializer Expression       // fields; nil when absent
	Body        *BlockStatement  // static blocks
}

// IsPrivate reports whether the member is named with a #private identifier.
func (m *ClassMember) IsPrivate() bool {
	_, ok := m.Key.(*PrivateIdentifier)
	return ok
}

// KeyName returns the member's property key as a string. Private names keep
// their '#'.
func (m *ClassMember) KeyName() string {
	switch k := m.Key.(type) {
	case *Identifier:
		return k.Value
	case *PrivateIdentifier:
		return k.Name
	case *StringLiteral:
		return k.Value
	case *NumberLiteral:
		return strconv.FormatFloat(k.Value, 'f', -1, 64)
	}
	return ""
}

func (m *ClassMember) String() string {
	var out bytes.Buffer
	if m.Static {
		out.WriteString("static ")
	}
	switch m.Kind {
	case MemberStaticBlock:
		out.WriteString(m.Body.String())
		return out.String()
	case MemberGetter:
		out.WriteString("get ")
	case MemberSetter:
		out.WriteString("set ")
	}
	out.WriteString(m.KeyName())
	if m.Kind == MemberField {
		if m.Initializer != nil {
			out.WriteString(" = " + m.Initializer.String())
		}
		out.WriteString(";")
		return out.String()
	}
	params := make([]string, len(m.Value.Parameters))
	for i, p := range m.Value.Parameters {
		params[i] = p.String()
	}
	out.WriteString("(" + strings.Join(params, ", ") + ") ")
	out.WriteString(m.Value.Body.String())
	return out.String()
}

// ClassBody holds a class's members in declaration order.
type ClassBody struct {
	Token   lexer.Token // '{'
	Members []*ClassMember
}

// Constructor returns the class's explicit constructor, if any.
func (cb *ClassBody) Constructor() *ClassMember {
	for _, m := range cb.Members {
		if m.Kind == MemberConstructor {
			return m
		}
	}
	return nil
}

// ClassExpression is a class literal. Declarations wrap one; Name is
// optional only for expressions.
type ClassExpression struct {
	Token      lexer.Token // 'class'
	Name       *Identifier
	SuperClass Expression // nil without `extends`
	Body       *ClassBody
}

func (ce *ClassExpression) expressionNode()      {}
func (ce *ClassExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *ClassExpression) String() string {
	var out bytes.Buffer
	out.WriteString("class")
	if ce.Name != nil {
		out.WriteString(" " + ce.Name.Value)
	}
	if ce.SuperClass != nil {
		out.WriteString(" extends " + ce.SuperClass.String())
	}
	out.WriteString(" { ")
	for _, m := range ce.Body.Members {
		out.WriteString(m.String())
		out.WriteString(" ")
	}
	out.WriteString("}")
	return out.String()
}

// ObjectProperty is one `key: value` entry (shorthand and method forms are
// desugared to it).
type ObjectProperty struct {
	Key   string
	Value Expression
}

// ObjectLiteral represents `{ a: 1, b, m() {} }`.
type ObjectLiteral struct {
	Token      lexer.Token // '{'
	Properties []*ObjectProperty
}

func (ol *ObjectLiteral) expressionNode()      {}
func (ol *ObjectLiteral) TokenLiteral() string { return ol.Token.Literal }
func (ol *ObjectLiteral) String() string {
	parts := make([]string, len(ol.Properties))
	for i, p := range ol.Properties {
		parts[i] = p.Key + ": " + p.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// PrefixExpression represents `!x`, `-x`, `+x` and `typeof x`.
type PrefixExpression struct {
	Token    lexer.Token
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()      {}
func (pe *PrefixExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PrefixExpression) String() string {
	if pe.Operator == "typeof" {
		return "(typeof " + pe.Right.String() + ")"
	}
	return "(" + pe.Operator + pe.Right.String() + ")"
}

// InfixExpression represents binary operators, including the short-circuit
// ones (`&&`, `||`, `??`).
type InfixExpression struct {
	Token    lexer.Token // The operator token
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode()      {}
func (ie *InfixExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *InfixExpression) String() string {
	return "(" + ie.Left.String() + " " + ie.Operator + " " + ie.Right.String() + ")"
}

// PrivateInExpression is the brand check `#name in <Right>`.
type PrivateInExpression struct {
	Token lexer.Token // the 'in' token
	Name  *PrivateIdentifier
	Right Expression
}

func (pe *PrivateInExpression) expressionNode()      {}
func (pe *PrivateInExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PrivateInExpression) String() string {
	return "(" + pe.Name.Name + " in " + pe.Right.String() + ")"
}

// TernaryExpression represents `cond ? a : b`.
type TernaryExpression struct {
	Token       lexer.Token // '?'
	Condition   Expression
	Consequence Expression
	Alternative Expression
}

func (te *TernaryExpression) expressionNode()      {}
func (te *TernaryExpression) TokenLiteral() string { return te.Token.Literal }
func (te *TernaryExpression) String() string {
	return "(" + te.Condition.String() + " ? " + te.Consequence.String() + " : " + te.Alternative.String() + ")"
}

// AssignmentExpression represents `=` and the compound assignments.
type AssignmentExpression struct {
	Token    lexer.Token
	Operator string
	Left     Expression // *Identifier, *MemberExpression, *PrivateMemberExpression or *IndexExpression
	Value    Expression
}

func (ae *AssignmentExpression) expressionNode()      {}
func (ae *AssignmentExpression) TokenLiteral() string { return ae.Token.Literal }
func (ae *AssignmentExpression) String() string {
	return "(" + ae.Left.String() + " " + ae.Operator + " " + ae.Value.String() + ")"
}

// UpdateExpression represents `++x`, `x++`, `--x` and `x--`.
type UpdateExpression struct {
	Token    lexer.Token
	Operator string
	Prefix   bool
	Argument Expression
}

func (ue *UpdateExpression) expressionNode()      {}
func (ue *UpdateExpression) TokenLiteral() string { return ue.Token.Literal }
func (ue *UpdateExpression) String() string {
	if ue.Prefix {
		return "(" + ue.Operator + ue.Argument.String() + ")"
	}
	return "(" + ue.Argument.String() + ue.Operator + ")"
}

// CallExpression represents `fn(args)`.
type CallExpression struct {
	Token     lexer.Token // '('
	Function  Expression
	Arguments []Expression
}

func (ce *CallExpression) expressionNode()      {}
func (ce *CallExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *CallExpression) String() string {
	return ce.Function.String() + "(" + joinExpressions(ce.Arguments) + ")"
}

// NewExpression represents `new C(args)` and `new C`.
type NewExpression struct {
	Token       lexer.Token // 'new'
	Constructor Expression
	Arguments   []Expression
}

func (ne *NewExpression) expressionNode()      {}
func (ne *NewExpression) TokenLiteral() string { return ne.Token.Literal }
func (ne *NewExpression) String() string {
	return "new " + ne.Constructor.String() + "(" + joinExpressions(ne.Arguments) + ")"
}

// SuperCallExpression represents `super(args)` in a derived constructor.
type SuperCallExpression struct {
	Token     lexer.Token // 'super'
	Arguments []Expression
}

func (sc *SuperCallExpression) expressionNode()      {}
func (sc *SuperCallExpression) TokenLiteral() string { return sc.Token.Literal }
func (sc *SuperCallExpression) String() string {
	return "super(" + joinExpressions(sc.Arguments) + ")"
}

// MemberExpression represents `object.property` for public names.
type MemberExpression struct {
	Token    lexer.Token // '.'
	Object   Expression
	Property *Identifier
}

func (me *MemberExpression) expressionNode()      {}
func (me *MemberExpression) TokenLiteral() string { return me.Token.Literal }
func (me *MemberExpression) String() string {
	return me.Object.String() + "." + me.Property.Value
}

// PrivateMemberExpression represents `object.#name`.
type PrivateMemberExpression struct {
	Token    lexer.Token // '.'
	Object   Expression
	Property *PrivateIdentifier
}

func (pm *PrivateMemberExpression) expressionNode()      {}
func (pm *PrivateMemberExpression) TokenLiteral() string { return pm.Token.Literal }
func (pm *PrivateMemberExpression) String() string {
	return pm.Object.String() + "." + pm.Property.Name
}

// IndexExpression represents `left[index]`.
type IndexExpression struct {
	Token lexer.Token // '['
	Left  Expression
	Index Expression
}

func (ie *IndexExpression) expressionNode()      {}
func (ie *IndexExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *IndexExpression) String() string {
	return "(" + ie.Left.String() + "[" + ie.Index.String() + "])"
}

func joinExpressions(exprs []Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
