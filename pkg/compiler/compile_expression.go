package compiler

import (
	"sigil/pkg/parser"
	"sigil/pkg/vm"
)

var binaryOps = map[string]vm.OpCode{
	"+":          vm.OpAdd,
	"-":          vm.OpSubtract,
	"*":          vm.OpMultiply,
	"/":          vm.OpDivide,
	"%":          vm.OpRemainder,
	"==":         vm.OpEqual,
	"!=":         vm.OpNotEqual,
	"===":        vm.OpStrictEqual,
	"!==":        vm.OpStrictNotEqual,
	"<":          vm.OpLess,
	">":          vm.OpGreater,
	"<=":         vm.OpLessEqual,
	">=":         vm.OpGreaterEqual,
	"in":         vm.OpIn,
	"instanceof": vm.OpInstanceof,
}

var compoundOps = map[string]vm.OpCode{
	"+=": vm.OpAdd,
	"-=": vm.OpSubtract,
	"*=": vm.OpMultiply,
	"/=": vm.OpDivide,
}

// compileExpression compiles node so that its value ends up in dest.
func (c *Compiler) compileExpression(node parser.Expression, dest Register) {
	tok := tokenOf(node)
	line := tok.Line
	c.line = line

	switch n := node.(type) {
	case *parser.NumberLiteral:
		c.emitLoadNewConstant(dest, vm.Number(n.Value), line)
	case *parser.StringLiteral:
		c.emitLoadNewConstant(dest, vm.String(n.Value), line)
	case *parser.BooleanLiteral:
		c.emitLoadBool(dest, n.Value, line)
	case *parser.NullLiteral:
		c.emitLoadNull(dest, line)
	case *parser.UndefinedLiteral:
		c.emitLoadUndefined(dest, line)

	case *parser.Identifier:
		c.loadBinding(c.resolve(n.Value), dest, true, line)

	case *parser.ThisExpression:
		c.loadBinding(c.resolve(thisName), dest, true, line)

	case *parser.FunctionLiteral:
		c.compileFunctionLiteral(n, "", dest)

	case *parser.ClassExpression:
		c.compileClass(n, dest, "")

	case *parser.ObjectLiteral:
		c.compileObjectLiteral(n, dest)

	case *parser.PrefixExpression:
		c.compilePrefixExpression(n, dest)

	case *parser.InfixExpression:
		c.compileInfixExpression(n, dest)

	case *parser.PrivateInExpression:
		obj := c.regAlloc.Alloc()
		c.compileExpression(n.Right, obj)
		env := c.loadPrivateEnv(n.Name, line)
		c.emitPrivate(vm.OpHasPrivate, dest, obj, env, n.Name.Name, line)
		c.regAlloc.Free(env)
		c.regAlloc.Free(obj)

	case *parser.TernaryExpression:
		cond := c.regAlloc.Alloc()
		c.compileExpression(n.Condition, cond)
		elseJump := c.emitPlaceholderJump(vm.OpJumpIfFalse, cond, line)
		c.regAlloc.Free(cond)
		c.compileExpression(n.Consequence, dest)
		endJump := c.emitPlaceholderJump(vm.OpJump, NoHint, line)
		c.patchJump(elseJump)
		c.compileExpression(n.Alternative, dest)
		c.patchJump(endJump)

	case *parser.AssignmentExpression:
		c.compileAssignment(n, dest)

	case *parser.UpdateExpression:
		c.compileUpdateExpression(n, dest)

	case *parser.CallExpression:
		c.compileCallExpression(n, dest)

	case *parser.NewExpression:
		argc := len(n.Arguments)
		base := c.regAlloc.AllocContiguous(argc + 1)
		c.compileExpression(n.Constructor, base)
		c.compileArguments(n.Arguments, base+1)
		c.emitCall(vm.OpNew, dest, base, argc, line)
		c.regAlloc.FreeContiguous(base, argc+1)

	case *parser.SuperCallExpression:
		c.compileSuperCall(n.Arguments, false, dest, line)

	case *parser.MemberExpression:
		obj := c.regAlloc.Alloc()
		c.compileExpression(n.Object, obj)
		c.emitGetProp(dest, obj, n.Property.Value, line)
		c.regAlloc.Free(obj)

	case *parser.PrivateMemberExpression:
		obj := c.regAlloc.Alloc()
		c.compileExpression(n.Object, obj)
		env := c.loadPrivateEnv(n.Property, line)
		c.emitPrivate(vm.OpGetPrivate, dest, obj, env, n.Property.Name, line)
		c.regAlloc.Free(env)
		c.regAlloc.Free(obj)

	case *parser.IndexExpression:
		obj := c.regAlloc.Alloc()
		key := c.regAlloc.Alloc()
		c.compileExpression(n.Left, obj)
		c.compileExpression(n.Index, key)
		c.emitBinary(vm.OpGetIndex, dest, obj, key, line)
		c.regAlloc.Free(key)
		c.regAlloc.Free(obj)

	default:
		c.addError(tok, "unsupported expression")
	}
}

// compileNamedExpression compiles the right-hand side of a binding. An
// anonymous function or class takes the binding's name.
func (c *Compiler) compileNamedExpression(node parser.Expression, name string, dest Register) {
	switch n := node.(type) {
	case *parser.FunctionLiteral:
		if n.Name == nil {
			c.compileFunctionLiteral(n, name, dest)
			return
		}
	case *parser.ClassExpression:
		if n.Name == nil {
			c.compileClass(n, dest, name)
			return
		}
	}
	c.compileExpression(node, dest)
}

func (c *Compiler) compileFunctionLiteral(n *parser.FunctionLiteral, inferred string, dest Register) {
	name := inferred
	if n.Name != nil {
		name = n.Name.Value
	}
	kind := vm.FuncNormal
	if n.IsArrow {
		kind = vm.FuncArrow
	}
	c.compileFunction(n, kind, name, kind == vm.FuncNormal, dest)
}

func (c *Compiler) compileObjectLiteral(n *parser.ObjectLiteral, dest Register) {
	line := n.Token.Line
	obj := c.regAlloc.Alloc()
	c.emitMakeEmptyObject(obj, line)
	val := c.regAlloc.Alloc()
	for _, prop := range n.Properties {
		// Method shorthand is parsed as a plain function property; it must
		// not be a constructor.
		if fn, ok := prop.Value.(*parser.FunctionLiteral); ok && !fn.IsArrow && fn.Token.Literal != "function" {
			c.compileFunction(fn, vm.FuncMethod, prop.Key, false, val)
		} else {
			c.compileNamedExpression(prop.Value, prop.Key, val)
		}
		c.emitDefineField(obj, val, prop.Key, line)
	}
	c.regAlloc.Free(val)
	c.emitMove(dest, obj, line)
	c.regAlloc.Free(obj)
}

func (c *Compiler) compilePrefixExpression(n *parser.PrefixExpression, dest Register) {
	line := n.Token.Line
	src := c.regAlloc.Alloc()
	c.compileExpression(n.Right, src)
	switch n.Operator {
	case "!":
		c.emitUnary(vm.OpNot, dest, src, line)
	case "-":
		c.emitUnary(vm.OpNegate, dest, src, line)
	case "+":
		c.emitUnary(vm.OpToNumber, dest, src, line)
	case "typeof":
		c.emitUnary(vm.OpTypeof, dest, src, line)
	default:
		c.addError(n.Token, "unknown prefix operator "+n.Operator)
	}
	c.regAlloc.Free(src)
}

func (c *Compiler) compileInfixExpression(n *parser.InfixExpression, dest Register) {
	line := n.Token.Line
	switch n.Operator {
	case "&&", "||", "??":
		c.compileExpression(n.Left, dest)
		op := vm.OpJumpIfFalse
		if n.Operator == "||" {
			op = vm.OpJumpIfTrue
		} else if n.Operator == "??" {
			op = vm.OpJumpIfNotNullish
		}
		end := c.emitPlaceholderJump(op, dest, line)
		c.compileExpression(n.Right, dest)
		c.patchJump(end)
		return
	}

	op, ok := binaryOps[n.Operator]
	if !ok {
		c.addError(n.Token, "unknown operator "+n.Operator)
		return
	}
	left := c.regAlloc.Alloc()
	right := c.regAlloc.Alloc()
	c.compileExpression(n.Left, left)
	c.compileExpression(n.Right, right)
	c.emitBinary(op, dest, left, right, line)
	c.regAlloc.Free(right)
	c.regAlloc.Free(left)
}

// --- Assignment ---

func (c *Compiler) compileAssignment(n *parser.AssignmentExpression, dest Register) {
	line := n.Token.Line
	compound, isCompound := compoundOps[n.Operator]

	// value computes the new value into dest given a register holding the
	// current one (only read for compound assignments).
	value := func(name string, current func()) {
		if !isCompound {
			c.compileNamedExpression(n.Value, name, dest)
			return
		}
		current()
		rhs := c.regAlloc.Alloc()
		c.compileExpression(n.Value, rhs)
		c.emitBinary(compound, dest, dest, rhs, line)
		c.regAlloc.Free(rhs)
	}

	switch left := n.Left.(type) {
	case *parser.Identifier:
		b := c.resolve(left.Value)
		value(left.Value, func() { c.loadBinding(b, dest, true, line) })
		c.checkAssignable(b, line)
		if b.symbol.IsConst() {
			c.emitThrowError(vm.ErrorKindTypeError, "Assignment to constant variable.", line)
			return
		}
		c.storeBinding(b, dest, line)

	case *parser.MemberExpression:
		obj := c.regAlloc.Alloc()
		c.compileExpression(left.Object, obj)
		value("", func() { c.emitGetProp(dest, obj, left.Property.Value, line) })
		c.emitSetProp(obj, dest, left.Property.Value, line)
		c.regAlloc.Free(obj)

	case *parser.PrivateMemberExpression:
		obj := c.regAlloc.Alloc()
		c.compileExpression(left.Object, obj)
		env := c.loadPrivateEnv(left.Property, line)
		name := left.Property.Name
		value("", func() { c.emitPrivate(vm.OpGetPrivate, dest, obj, env, name, line) })
		c.emitPrivate(vm.OpSetPrivate, obj, env, dest, name, line)
		c.regAlloc.Free(env)
		c.regAlloc.Free(obj)

	case *parser.IndexExpression:
		obj := c.regAlloc.Alloc()
		key := c.regAlloc.Alloc()
		c.compileExpression(left.Left, obj)
		c.compileExpression(left.Index, key)
		value("", func() { c.emitBinary(vm.OpGetIndex, dest, obj, key, line) })
		c.emitBinary(vm.OpSetIndex, obj, key, dest, line)
		c.regAlloc.Free(key)
		c.regAlloc.Free(obj)

	default:
		c.addSyntaxError(n.Token, "Invalid left-hand side in assignment")
	}
}

// compileUpdateExpression handles ++ and --. The old value is converted to
// a number first; a postfix expression yields that number.
func (c *Compiler) compileUpdateExpression(n *parser.UpdateExpression, dest Register) {
	line := n.Token.Line
	op := vm.OpAdd
	if n.Operator == "--" {
		op = vm.OpSubtract
	}
	old := c.regAlloc.Alloc()
	updated := c.regAlloc.Alloc()
	bump := func() {
		c.emitUnary(vm.OpToNumber, old, old, line)
		one := c.regAlloc.Alloc()
		c.emitLoadNewConstant(one, vm.Number(1), line)
		c.emitBinary(op, updated, old, one, line)
		c.regAlloc.Free(one)
	}

	switch arg := n.Argument.(type) {
	case *parser.Identifier:
		b := c.resolve(arg.Value)
		c.loadBinding(b, old, true, line)
		bump()
		c.checkAssignable(b, line)
		if b.symbol.IsConst() {
			c.emitThrowError(vm.ErrorKindTypeError, "Assignment to constant variable.", line)
		} else {
			c.storeBinding(b, updated, line)
		}

	case *parser.MemberExpression:
		obj := c.regAlloc.Alloc()
		c.compileExpression(arg.Object, obj)
		c.emitGetProp(old, obj, arg.Property.Value, line)
		bump()
		c.emitSetProp(obj, updated, arg.Property.Value, line)
		c.regAlloc.Free(obj)

	case *parser.PrivateMemberExpression:
		obj := c.regAlloc.Alloc()
		c.compileExpression(arg.Object, obj)
		env := c.loadPrivateEnv(arg.Property, line)
		c.emitPrivate(vm.OpGetPrivate, old, obj, env, arg.Property.Name, line)
		bump()
		c.emitPrivate(vm.OpSetPrivate, obj, env, updated, arg.Property.Name, line)
		c.regAlloc.Free(env)
		c.regAlloc.Free(obj)

	case *parser.IndexExpression:
		obj := c.regAlloc.Alloc()
		key := c.regAlloc.Alloc()
		c.compileExpression(arg.Left, obj)
		c.compileExpression(arg.Index, key)
		c.emitBinary(vm.OpGetIndex, old, obj, key, line)
		bump()
		c.emitBinary(vm.OpSetIndex, obj, key, updated, line)
		c.regAlloc.Free(key)
		c.regAlloc.Free(obj)

	default:
		form := "postfix"
		if n.Prefix {
			form = "prefix"
		}
		c.addSyntaxError(n.Token, "Invalid left-hand side expression in "+form+" operation")
	}

	if n.Prefix {
		c.emitMove(dest, updated, line)
	} else {
		c.emitMove(dest, old, line)
	}
	c.regAlloc.Free(updated)
	c.regAlloc.Free(old)
}

// --- Calls ---

// compileArguments compiles args into consecutive registers from first.
func (c *Compiler) compileArguments(args []parser.Expression, first Register) {
	for i, arg := range args {
		c.compileExpression(arg, first+Register(i))
	}
}

// compileCallExpression lays a call out as [callee, this?, args...]. Calls
// through a member expression pass the object as this.
func (c *Compiler) compileCallExpression(n *parser.CallExpression, dest Register) {
	line := n.Token.Line
	argc := len(n.Arguments)
	if argc > 254 {
		c.addError(n.Token, "too many arguments in function call")
		return
	}

	switch callee := n.Function.(type) {
	case *parser.MemberExpression:
		base := c.regAlloc.AllocContiguous(argc + 2)
		c.compileExpression(callee.Object, base+1)
		c.emitGetProp(base, base+1, callee.Property.Value, line)
		c.compileArguments(n.Arguments, base+2)
		c.emitCall(vm.OpCallMethod, dest, base, argc, line)
		c.regAlloc.FreeContiguous(base, argc+2)

	case *parser.PrivateMemberExpression:
		base := c.regAlloc.AllocContiguous(argc + 2)
		c.compileExpression(callee.Object, base+1)
		env := c.loadPrivateEnv(callee.Property, line)
		c.emitPrivate(vm.OpGetPrivate, base, base+1, env, callee.Property.Name, line)
		c.regAlloc.Free(env)
		c.compileArguments(n.Arguments, base+2)
		c.emitCall(vm.OpCallMethod, dest, base, argc, line)
		c.regAlloc.FreeContiguous(base, argc+2)

	case *parser.IndexExpression:
		base := c.regAlloc.AllocContiguous(argc + 2)
		c.compileExpression(callee.Left, base+1)
		key := c.regAlloc.Alloc()
		c.compileExpression(callee.Index, key)
		c.emitBinary(vm.OpGetIndex, base, base+1, key, line)
		c.regAlloc.Free(key)
		c.compileArguments(n.Arguments, base+2)
		c.emitCall(vm.OpCallMethod, dest, base, argc, line)
		c.regAlloc.FreeContiguous(base, argc+2)

	default:
		base := c.regAlloc.AllocContiguous(argc + 1)
		c.compileExpression(n.Function, base)
		c.compileArguments(n.Arguments, base+1)
		c.emitCall(vm.OpCall, dest, base, argc, line)
		c.regAlloc.FreeContiguous(base, argc+1)
	}
}

// compileSuperCall calls the parent constructor with the active function
// and new.target, binds this to the result and runs the class's field
// initialisers on it. With forward set the constructor's own arguments are
// passed on unchanged.
func (c *Compiler) compileSuperCall(args []parser.Expression, forward bool, dest Register, line int) {
	argc := len(args)
	base := c.regAlloc.AllocContiguous(argc + 2)
	c.loadBinding(c.resolve(calleeName), base, false, line)
	c.loadBinding(c.resolve(newTargetName), base+1, false, line)
	if forward {
		c.emitCall(vm.OpSuperCall, dest, base, 255, line)
	} else {
		c.compileArguments(args, base+2)
		c.emitCall(vm.OpSuperCall, dest, base, argc, line)
	}

	thisB := c.resolve(thisName)
	current := c.regAlloc.Alloc()
	c.loadBinding(thisB, current, false, line)
	c.emitCheckThisUnbound(current, line)
	c.regAlloc.Free(current)
	c.storeBinding(thisB, dest, line)
	c.emitUnary(vm.OpInitInstance, dest, base, line)
	c.regAlloc.FreeContiguous(base, argc+2)
}
