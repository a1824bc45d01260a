package compiler

import (
	"sigil/pkg/parser"
	"sigil/pkg/privatename"
	"sigil/pkg/vm"
)

// compileClass compiles a class literal into dest.
//
// Evaluation order: the heritage, a fresh private environment, the
// constructor, the class object itself, methods and accessors in source
// order, the instance field initialiser, the inner name binding, and last
// the static elements, which run immediately with this bound to the class.
func (c *Compiler) compileClass(node *parser.ClassExpression, dest Register, inferred string) {
	line := node.Token.Line
	analysis := c.unit.analysis
	id := analysis.ClassIDs[node]

	name := inferred
	if node.Name != nil {
		name = node.Name.Value
	}
	tmpl := &vm.ClassTemplate{ID: id, Name: name, Derived: node.SuperClass != nil}
	if table := analysis.Tables[node]; table != nil && table.Len() > 0 {
		tmpl.Table = table
	}
	tmplIdx := c.chunk.AddConstant(vm.ClassTemplateValue(tmpl))

	c.enterScope()

	inner := NoHint
	if node.Name != nil {
		inner = c.regAlloc.AllocLocal()
		c.currentSymbolTable.Define(name, BindClass, inner, true)
		c.emitLoadUninitialized(inner, line)
	}

	parentReg := NoHint
	if node.SuperClass != nil {
		parentReg = c.regAlloc.Alloc()
		c.compileExpression(node.SuperClass, parentReg)
	}

	envReg := NoHint
	if tmpl.Table != nil {
		envReg = c.regAlloc.AllocLocal()
		c.currentSymbolTable.Define(privateEnvName(id), BindHidden, envReg, false)
		c.emitOpCode(vm.OpPrivateEnv, line)
		c.emitByte(byte(envReg))
		c.emitUint16(tmplIdx)
	}

	ctorReg := c.regAlloc.Alloc()
	c.compileConstructor(node, name, ctorReg)

	classReg := c.regAlloc.Alloc()
	c.emitOpCode(vm.OpClass, line)
	c.emitByte(byte(classReg))
	c.emitByte(byte(ctorReg))
	c.emitByte(byte(parentReg))
	c.emitByte(byte(envReg))
	c.emitUint16(tmplIdx)
	c.regAlloc.Free(ctorReg)
	if parentReg != NoHint {
		c.regAlloc.Free(parentReg)
	}

	protoReg := c.regAlloc.Alloc()
	c.emitGetProp(protoReg, classReg, "prototype", line)

	var instanceFields, statics []*parser.ClassMember
	for _, m := range node.Body.Members {
		switch m.Kind {
		case parser.MemberMethod, parser.MemberGetter, parser.MemberSetter:
			c.compileMethod(m, classReg, protoReg, envReg)
		case parser.MemberField:
			if m.Static {
				statics = append(statics, m)
			} else {
				instanceFields = append(instanceFields, m)
			}
		case parser.MemberStaticBlock:
			statics = append(statics, m)
		}
	}
	c.regAlloc.Free(protoReg)

	if len(instanceFields) > 0 {
		initReg := c.regAlloc.Alloc()
		c.compileSynthetic("<instance_members_initializer>", vm.FuncMethod, line, initReg, func(fc *Compiler) {
			for _, m := range instanceFields {
				fc.compileFieldDefinition(m, id)
			}
		})
		c.emitUnary(vm.OpSetFieldInit, classReg, initReg, line)
		c.regAlloc.Free(initReg)
	}

	if inner != NoHint {
		c.emitMove(inner, classReg, line)
	}

	if len(statics) > 0 {
		base := c.regAlloc.AllocContiguous(2)
		c.compileSynthetic("<static_initializer>", vm.FuncMethod, line, base, func(fc *Compiler) {
			for _, m := range statics {
				if m.Kind == parser.MemberStaticBlock {
					fc.hoistVars(m.Body.Statements)
					fc.compileBlock(m.Body)
					continue
				}
				fc.compileFieldDefinition(m, id)
			}
		})
		c.emitMove(base+1, classReg, line)
		c.emitCall(vm.OpCallMethod, base, base, 0, line)
		c.regAlloc.FreeContiguous(base, 2)
	}

	c.emitMove(dest, classReg, line)
	c.regAlloc.Free(classReg)
	c.exitScope(line)
}

// compileConstructor emits the class's constructor closure. Without an
// explicit one a base class gets an empty body and a derived class one
// that forwards its arguments to the parent.
func (c *Compiler) compileConstructor(node *parser.ClassExpression, name string, dest Register) {
	kind := vm.FuncBaseConstructor
	if node.SuperClass != nil {
		kind = vm.FuncDerivedConstructor
	}
	if ctor := node.Body.Constructor(); ctor != nil {
		c.compileFunction(ctor.Value, kind, name, false, dest)
		return
	}
	c.compileSynthetic(name, kind, node.Token.Line, dest, func(fc *Compiler) {
		if kind == vm.FuncDerivedConstructor {
			result := fc.regAlloc.Alloc()
			fc.compileSuperCall(nil, true, result, node.Token.Line)
			fc.regAlloc.Free(result)
		}
	})
}

// compileMethod installs a method or accessor. Public ones go on the
// prototype (or the class when static); private ones go into the private
// environment, where a getter and setter pair merges into one accessor.
func (c *Compiler) compileMethod(m *parser.ClassMember, classReg, protoReg, envReg Register) {
	line := m.Token.Line
	key := m.KeyName()

	var kind byte
	fnName := key
	switch m.Kind {
	case parser.MemberGetter:
		kind = vm.MethodGetter
		fnName = "get " + key
	case parser.MemberSetter:
		kind = vm.MethodSetter
		fnName = "set " + key
	default:
		kind = vm.MethodPlain
	}

	fnReg := c.regAlloc.Alloc()
	c.compileFunction(m.Value, vm.FuncMethod, fnName, false, fnReg)
	if m.IsPrivate() {
		c.emitDefineMethod(vm.OpDefinePrivateMethod, envReg, fnReg, key, kind, line)
	} else {
		target := protoReg
		if m.Static {
			target = classReg
		}
		c.emitDefineMethod(vm.OpDefineMethod, target, fnReg, key, kind, line)
	}
	c.regAlloc.Free(fnReg)
}

// compileFieldDefinition defines one field on this. It runs inside the
// instance or static initialiser function.
func (c *Compiler) compileFieldDefinition(m *parser.ClassMember, classID privatename.ClassID) {
	line := m.Token.Line
	c.line = line
	key := m.KeyName()

	val := c.regAlloc.Alloc()
	if m.Initializer != nil {
		c.compileNamedExpression(m.Initializer, key, val)
	} else {
		c.emitLoadUndefined(val, line)
	}
	this := c.regAlloc.Alloc()
	c.loadBinding(c.resolve(thisName), this, false, line)
	if m.IsPrivate() {
		env := c.loadPrivateEnvByID(classID, line)
		c.emitPrivate(vm.OpDefinePrivateField, this, env, val, key, line)
		c.regAlloc.Free(env)
	} else {
		c.emitDefineField(this, val, key, line)
	}
	c.regAlloc.Free(this)
	c.regAlloc.Free(val)
}
