package compiler

import (
	"sigil/pkg/lexer"
	"sigil/pkg/parser"
	"sigil/pkg/vm"
)

// --- Declarations ---

// hoistVars declares every `var` of a function body (or the script) at the
// function's root scope, looking through nested blocks but not into nested
// functions or classes.
func (c *Compiler) hoistVars(stmts []parser.Statement) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *parser.LetStatement:
			if s.IsVar() {
				c.declareVar(s.Name)
			}
		case *parser.BlockStatement:
			c.hoistVars(s.Statements)
		case *parser.IfStatement:
			c.hoistVars([]parser.Statement{s.Consequence})
			if s.Alternative != nil {
				c.hoistVars([]parser.Statement{s.Alternative})
			}
		case *parser.WhileStatement:
			c.hoistVars([]parser.Statement{s.Body})
		case *parser.TryStatement:
			c.hoistVars(s.Block.Statements)
			c.hoistVars(s.CatchBody.Statements)
		}
	}
}

func (c *Compiler) declareVar(name *parser.Identifier) {
	root := c.currentSymbolTable
	for root.Outer != nil {
		root = root.Outer
	}
	if sym, exists := root.Lookup(name.Value); exists {
		if sym.Kind != BindVar && sym.Kind != BindParam && sym.Kind != BindFunction {
			c.addSyntaxError(name.Token, "Identifier '"+name.Value+"' has already been declared")
		}
		return
	}
	if c.isScript && root == c.currentSymbolTable {
		idx := c.globalIndex(name.Value)
		root.DefineGlobal(name.Value, BindVar, idx)
		tmp := c.regAlloc.Alloc()
		c.emitLoadUndefined(tmp, name.Token.Line)
		c.emitSetGlobal(idx, tmp, name.Token.Line)
		c.regAlloc.Free(tmp)
		return
	}
	reg := c.regAlloc.AllocLocal()
	root.Define(name.Value, BindVar, reg, false)
}

// hoistLexical declares the let, const, class and function bindings of one
// block and initialises its function declarations, which are visible from
// the start of the block.
func (c *Compiler) hoistLexical(stmts []parser.Statement) {
	var functions []*parser.FunctionDeclaration
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *parser.LetStatement:
			if s.IsConst() {
				c.declareLexical(s.Name, BindConst)
			} else if !s.IsVar() {
				c.declareLexical(s.Name, BindLet)
			}
		case *parser.ClassDeclaration:
			c.declareLexical(s.Class.Name, BindClass)
		case *parser.FunctionDeclaration:
			c.declareLexical(s.Function.Name, BindFunction)
			functions = append(functions, s)
		}
	}
	for _, decl := range functions {
		name := decl.Function.Name.Value
		tmp := c.regAlloc.Alloc()
		c.compileFunction(decl.Function, vm.FuncNormal, name, false, tmp)
		c.storeBinding(c.resolve(name), tmp, decl.Token.Line)
		c.regAlloc.Free(tmp)
	}
}

func (c *Compiler) declareLexical(name *parser.Identifier, kind BindingKind) {
	line := name.Token.Line
	if _, exists := c.currentSymbolTable.Lookup(name.Value); exists {
		c.addSyntaxError(name.Token, "Identifier '"+name.Value+"' has already been declared")
		return
	}
	tdz := kind != BindFunction
	if c.atScriptRoot() {
		idx := c.globalIndex(name.Value)
		c.currentSymbolTable.DefineGlobal(name.Value, kind, idx)
		if tdz {
			tmp := c.regAlloc.Alloc()
			c.emitLoadUninitialized(tmp, line)
			c.emitSetGlobal(idx, tmp, line)
			c.regAlloc.Free(tmp)
		}
		return
	}
	reg := c.regAlloc.AllocLocal()
	c.currentSymbolTable.Define(name.Value, kind, reg, tdz)
	if tdz {
		c.emitLoadUninitialized(reg, line)
	}
}

// --- Statements ---

func (c *Compiler) compileStatements(stmts []parser.Statement) {
	for _, stmt := range stmts {
		c.compileStatement(stmt)
	}
}

func (c *Compiler) compileBlock(block *parser.BlockStatement) {
	c.enterScope()
	c.hoistLexical(block.Statements)
	c.compileStatements(block.Statements)
	c.exitScope(block.Token.Line)
}

// compileNested compiles the body of an if or while. A lone declaration
// there still gets a scope of its own.
func (c *Compiler) compileNested(stmt parser.Statement) {
	if block, ok := stmt.(*parser.BlockStatement); ok {
		c.compileBlock(block)
		return
	}
	c.compileBlock(&parser.BlockStatement{Token: tokenOf(stmt), Statements: []parser.Statement{stmt}})
}

func (c *Compiler) compileStatement(stmt parser.Statement) {
	tok := tokenOf(stmt)
	c.line = tok.Line
	line := tok.Line

	switch s := stmt.(type) {
	case *parser.LetStatement:
		c.compileLetStatement(s)

	case *parser.ExpressionStatement:
		if c.isScript {
			c.compileExpression(s.Expression, c.completionReg)
			return
		}
		tmp := c.regAlloc.Alloc()
		c.compileExpression(s.Expression, tmp)
		c.regAlloc.Free(tmp)

	case *parser.EmptyStatement, *parser.FunctionDeclaration:
		// Function declarations were hoisted with their block.

	case *parser.BlockStatement:
		c.compileBlock(s)

	case *parser.ReturnStatement:
		if s.ReturnValue == nil {
			c.emitOpCode(vm.OpReturnUndefined, line)
			return
		}
		tmp := c.regAlloc.Alloc()
		c.compileExpression(s.ReturnValue, tmp)
		c.emitReturn(tmp, line)
		c.regAlloc.Free(tmp)

	case *parser.IfStatement:
		cond := c.regAlloc.Alloc()
		c.compileExpression(s.Condition, cond)
		elseJump := c.emitPlaceholderJump(vm.OpJumpIfFalse, cond, line)
		c.regAlloc.Free(cond)
		c.compileNested(s.Consequence)
		if s.Alternative == nil {
			c.patchJump(elseJump)
			return
		}
		endJump := c.emitPlaceholderJump(vm.OpJump, NoHint, line)
		c.patchJump(elseJump)
		c.compileNested(s.Alternative)
		c.patchJump(endJump)

	case *parser.WhileStatement:
		loopStart := len(c.chunk.Code)
		cond := c.regAlloc.Alloc()
		c.compileExpression(s.Condition, cond)
		exitJump := c.emitPlaceholderJump(vm.OpJumpIfFalse, cond, line)
		c.regAlloc.Free(cond)
		c.compileNested(s.Body)
		c.emitLoop(loopStart, line)
		c.patchJump(exitJump)

	case *parser.ThrowStatement:
		tmp := c.regAlloc.Alloc()
		c.compileExpression(s.Value, tmp)
		c.emitOpCode(vm.OpThrow, line)
		c.emitByte(byte(tmp))
		c.regAlloc.Free(tmp)

	case *parser.TryStatement:
		c.compileTryStatement(s)

	case *parser.ClassDeclaration:
		tmp := c.regAlloc.Alloc()
		c.compileClass(s.Class, tmp, s.Class.Name.Value)
		c.storeBinding(c.resolve(s.Class.Name.Value), tmp, line)
		c.regAlloc.Free(tmp)

	default:
		c.addError(tok, "unsupported statement")
	}
}

func (c *Compiler) compileLetStatement(s *parser.LetStatement) {
	line := s.Token.Line
	b := c.resolve(s.Name.Value)
	if s.Value == nil {
		if s.IsVar() {
			return
		}
		tmp := c.regAlloc.Alloc()
		c.emitLoadUndefined(tmp, line)
		c.storeBinding(b, tmp, line)
		c.regAlloc.Free(tmp)
		return
	}
	tmp := c.regAlloc.Alloc()
	c.compileNamedExpression(s.Value, s.Name.Value, tmp)
	c.storeBinding(b, tmp, line)
	c.regAlloc.Free(tmp)
}

// compileTryStatement records a handler covering the try block. Handlers of
// try statements nested inside are appended first, so the VM's first-match
// scan finds the innermost one.
func (c *Compiler) compileTryStatement(s *parser.TryStatement) {
	line := s.Token.Line
	closeFrom := c.regAlloc.Peek()
	tryStart := len(c.chunk.Code)
	c.compileBlock(s.Block)
	tryEnd := len(c.chunk.Code)
	skipHandler := c.emitPlaceholderJump(vm.OpJump, NoHint, line)

	handlerPC := len(c.chunk.Code)
	c.enterScope()
	catchReg := c.regAlloc.AllocLocal()
	if s.CatchParam != nil {
		c.currentSymbolTable.Define(s.CatchParam.Value, BindLet, catchReg, false)
	}
	c.hoistLexical(s.CatchBody.Statements)
	c.compileStatements(s.CatchBody.Statements)
	c.exitScope(s.CatchBody.Token.Line)
	c.patchJump(skipHandler)

	c.chunk.ExceptionTable = append(c.chunk.ExceptionTable, vm.ExceptionHandler{
		TryStart:  tryStart,
		TryEnd:    tryEnd,
		HandlerPC: handlerPC,
		CatchReg:  int(catchReg),
		CloseFrom: int(closeFrom),
	})
}

// tokenOf returns the token a node starts at, for line information.
func tokenOf(node parser.Node) lexer.Token {
	switch n := node.(type) {
	case *parser.LetStatement:
		return n.Token
	case *parser.ExpressionStatement:
		return n.Token
	case *parser.EmptyStatement:
		return n.Token
	case *parser.BlockStatement:
		return n.Token
	case *parser.ReturnStatement:
		return n.Token
	case *parser.IfStatement:
		return n.Token
	case *parser.WhileStatement:
		return n.Token
	case *parser.ThrowStatement:
		return n.Token
	case *parser.TryStatement:
		return n.Token
	case *parser.FunctionDeclaration:
		return n.Token
	case *parser.ClassDeclaration:
		return n.Token
	case *parser.Identifier:
		return n.Token
	case *parser.PrivateIdentifier:
		return n.Token
	case *parser.NumberLiteral:
		return n.Token
	case *parser.StringLiteral:
		return n.Token
	case *parser.BooleanLiteral:
		return n.Token
	case *parser.NullLiteral:
		return n.Token
	case *parser.UndefinedLiteral:
		return n.Token
	case *parser.ThisExpression:
		return n.Token
	case *parser.FunctionLiteral:
		return n.Token
	case *parser.ClassExpression:
		return n.Token
	case *parser.ObjectLiteral:
		return n.Token
	case *parser.PrefixExpression:
		return n.Token
	case *parser.InfixExpression:
		return n.Token
	case *parser.PrivateInExpression:
		return n.Token
	case *parser.TernaryExpression:
		return n.Token
	case *parser.AssignmentExpression:
		return n.Token
	case *parser.UpdateExpression:
		return n.Token
	case *parser.CallExpression:
		return n.Token
	case *parser.NewExpression:
		return n.Token
	case *parser.SuperCallExpression:
		return n.Token
	case *parser.MemberExpression:
		return n.Token
	case *parser.PrivateMemberExpression:
		return n.Token
	case *parser.IndexExpression:
		return n.Token
	}
	return lexer.Token{}
}
