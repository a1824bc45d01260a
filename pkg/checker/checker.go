package checker

import (
	"fmt"

	"sigil/pkg/errors"
	"sigil/pkg/lexer"
	"sigil/pkg/parser"
	"sigil/pkg/privatename"
	"sigil/pkg/source"
)

const checkerDebug = false

func debugPrintf(format string, args ...interface{}) {
	if checkerDebug {
		fmt.Printf(format, args...)
	}
}

// DefaultMaxClassNesting bounds how deeply class bodies may nest.
const DefaultMaxClassNesting = 64

// Options configure a Checker.
type Options struct {
	// MaxClassNesting limits nested class bodies; 0 means
	// DefaultMaxClassNesting.
	MaxClassNesting int
	// IDs allocates class IDs; nil means the process-wide allocator.
	IDs *privatename.IDAllocator
}

// Analysis is what code generation needs from the check: the private-name
// table and ID of every class, and the declaration each private reference
// binds to.
type Analysis struct {
	Tables   map[*parser.ClassExpression]*privatename.Table
	ClassIDs map[*parser.ClassExpression]privatename.ClassID
	Refs     map[*parser.PrivateIdentifier]*privatename.Descriptor
}

func newAnalysis() *Analysis {
	return &Analysis{
		Tables:   make(map[*parser.ClassExpression]*privatename.Table),
		ClassIDs: make(map[*parser.ClassExpression]privatename.ClassID),
		Refs:     make(map[*parser.PrivateIdentifier]*privatename.Descriptor),
	}
}

// functionKind tracks what kind of function body the walk is in, for the
// checks on `return` and `super(...)`.
type functionKind int

const (
	fnNone functionKind = iota // script top level
	fnPlain
	fnMethod
	fnBaseConstructor
	fnDerivedConstructor
	fnStaticBlock
)

// Checker performs the early-error pass over one compilation unit: it
// collects the private names of every class, resolves every private
// reference against the enclosing classes, and reports the errors that must
// stop compilation before any code runs.
type Checker struct {
	opts     Options
	source   *source.SourceFile
	stack    *privatename.ScopeStack
	analysis *Analysis
	errors   []errors.SigilError

	classDepth int
	fn         functionKind
}

// NewChecker creates a Checker. A Checker is single-use and not safe for
// concurrent use; give every compilation its own.
func NewChecker(opts Options) *Checker {
	if opts.MaxClassNesting <= 0 {
		opts.MaxClassNesting = DefaultMaxClassNesting
	}
	return &Checker{
		opts:     opts,
		stack:    privatename.NewScopeStack(),
		analysis: newAnalysis(),
	}
}

// Check walks program depth-first. The Analysis is complete only when no
// errors are returned.
func (c *Checker) Check(program *parser.Program) (*Analysis, []errors.SigilError) {
	c.source = program.Source
	for _, stmt := range program.Statements {
		c.visitStatement(stmt)
	}
	if c.stack.Depth() != 0 {
		panic(fmt.Sprintf("checker: scope stack not empty after walk (depth %d)", c.stack.Depth()))
	}
	return c.analysis, c.errors
}

func (c *Checker) nextClassID() privatename.ClassID {
	if c.opts.IDs != nil {
		return c.opts.IDs.Next()
	}
	return privatename.NextClassID()
}

// --- Statements ---

func (c *Checker) visitStatement(stmt parser.Statement) {
	switch s := stmt.(type) {
	case *parser.LetStatement:
		c.visitExpression(s.Value)
	case *parser.ExpressionStatement:
		c.visitExpression(s.Expression)
	case *parser.EmptyStatement:
	case *parser.BlockStatement:
		c.visitBlock(s)
	case *parser.ReturnStatement:
		if c.fn == fnNone || c.fn == fnStaticBlock {
			c.addSyntaxError(s.Token, "Illegal return statement")
		}
		c.visitExpression(s.ReturnValue)
	case *parser.IfStatement:
		c.visitExpression(s.Condition)
		c.visitStatement(s.Consequence)
		if s.Alternative != nil {
			c.visitStatement(s.Alternative)
		}
	case *parser.WhileStatement:
		c.visitExpression(s.Condition)
		c.visitStatement(s.Body)
	case *parser.ThrowStatement:
		c.visitExpression(s.Value)
	case *parser.TryStatement:
		c.visitBlock(s.Block)
		c.visitBlock(s.CatchBody)
	case *parser.FunctionDeclaration:
		c.visitFunction(s.Function, fnPlain)
	case *parser.ClassDeclaration:
		c.visitClass(s.Class)
	default:
		panic(fmt.Sprintf("checker: unhandled statement %T", stmt))
	}
}

func (c *Checker) visitBlock(block *parser.BlockStatement) {
	if block == nil {
		return
	}
	for _, stmt := range block.Statements {
		c.visitStatement(stmt)
	}
}

// --- Expressions ---

func (c *Checker) visitExpression(expr parser.Expression) {
	switch e := expr.(type) {
	case nil:
	case *parser.Identifier, *parser.NumberLiteral, *parser.StringLiteral, *parser.BooleanLiteral,
		*parser.NullLiteral, *parser.UndefinedLiteral, *parser.ThisExpression:
	case *parser.PrivateMemberExpression:
		c.visitExpression(e.Object)
		c.resolve(e.Property)
	case *parser.PrivateInExpression:
		c.resolve(e.Name)
		c.visitExpression(e.Right)
	case *parser.MemberExpression:
		c.visitExpression(e.Object)
	case *parser.IndexExpression:
		c.visitExpression(e.Left)
		c.visitExpression(e.Index)
	case *parser.CallExpression:
		c.visitExpression(e.Function)
		c.visitExpressions(e.Arguments)
	case *parser.NewExpression:
		c.visitExpression(e.Constructor)
		c.visitExpressions(e.Arguments)
	case *parser.SuperCallExpression:
		if c.fn != fnDerivedConstructor {
			c.addSyntaxError(e.Token, "'super' keyword unexpected here")
		}
		c.visitExpressions(e.Arguments)
	case *parser.PrefixExpression:
		c.visitExpression(e.Right)
	case *parser.InfixExpression:
		c.visitExpression(e.Left)
		c.visitExpression(e.Right)
	case *parser.TernaryExpression:
		c.visitExpression(e.Condition)
		c.visitExpression(e.Consequence)
		c.visitExpression(e.Alternative)
	case *parser.AssignmentExpression:
		c.visitExpression(e.Left)
		c.visitExpression(e.Value)
	case *parser.UpdateExpression:
		c.visitExpression(e.Argument)
	case *parser.ObjectLiteral:
		for _, prop := range e.Properties {
			if fn, ok := prop.Value.(*parser.FunctionLiteral); ok && !fn.IsArrow {
				c.visitFunction(fn, fnMethod)
				continue
			}
			c.visitExpression(prop.Value)
		}
	case *parser.FunctionLiteral:
		c.visitFunction(e, fnPlain)
	case *parser.ClassExpression:
		c.visitClass(e)
	default:
		panic(fmt.Sprintf("checker: unhandled expression %T", expr))
	}
}

func (c *Checker) visitExpressions(exprs []parser.Expression) {
	for _, e := range exprs {
		c.visitExpression(e)
	}
}

// visitFunction walks a function body. Arrow functions keep the enclosing
// kind so `super(...)` inside an arrow in a derived constructor is allowed.
func (c *Checker) visitFunction(fn *parser.FunctionLiteral, kind functionKind) {
	saved := c.fn
	if !fn.IsArrow {
		c.fn = kind
	} else if c.fn == fnNone || c.fn == fnStaticBlock {
		c.fn = fnPlain
	}
	defer func() { c.fn = saved }()
	c.visitBlock(fn.Body)
}

// resolve binds a private reference to the innermost declaration.
func (c *Checker) resolve(ref *parser.PrivateIdentifier) {
	d, err := c.stack.Resolve(ref.Name, c.position(ref.Token))
	if err != nil {
		debugPrintf("// [Checker] unresolved %s at %d:%d\n", ref.Name, ref.Token.Line, ref.Token.Column)
		c.errors = append(c.errors, err)
		return
	}
	debugPrintf("// [Checker] %s -> %s\n", ref.Name, d)
	c.analysis.Refs[ref] = d
}

// --- Errors ---

func (c *Checker) position(tok lexer.Token) errors.Position {
	return errors.Position{
		Line:     tok.Line,
		Column:   tok.Column,
		StartPos: tok.StartPos,
		EndPos:   tok.EndPos,
		Source:   c.source,
	}
}

func (c *Checker) addSyntaxError(tok lexer.Token, msg string) {
	c.errors = append(c.errors, &errors.SyntaxError{Position: c.position(tok), Msg: msg})
}

func (c *Checker) addCompileError(tok lexer.Token, msg string) {
	c.errors = append(c.errors, &errors.CompileError{Position: c.position(tok), Msg: msg})
}
