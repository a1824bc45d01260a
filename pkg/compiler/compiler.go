package compiler

import (
	"fmt"

	"sigil/pkg/checker"
	"sigil/pkg/errors"
	"sigil/pkg/lexer"
	"sigil/pkg/parser"
	"sigil/pkg/privatename"
	"sigil/pkg/source"
	"sigil/pkg/vm"
)

const debugCompiler = false

func debugPrintf(format string, args ...interface{}) {
	if debugCompiler {
		fmt.Printf(format, args...)
	}
}

var errJumpTooLong = fmt.Errorf("jump offset does not fit in 16 bits")

// Names of the hidden bindings. None of them is a valid identifier, so
// user code cannot shadow them.
const (
	thisName      = "this"
	calleeName    = "%fn"
	newTargetName = "%newtarget"
)

func privateEnvName(id privatename.ClassID) string {
	return "%priv:" + id.String()
}

// GlobalResolver hands out global slots. The VM implements it, so globals
// persist across compilations run on the same VM.
type GlobalResolver interface {
	GlobalIndex(name string) int
}

// globalMap is the resolver used when none is supplied.
type globalMap map[string]int

func (m globalMap) GlobalIndex(name string) int {
	if idx, ok := m[name]; ok {
		return idx
	}
	m[name] = len(m)
	return m[name]
}

// Options configure a compilation.
type Options struct {
	MaxClassNesting int                      // passed to the checker
	IDs             *privatename.IDAllocator // passed to the checker
	Globals         GlobalResolver           // nil means a private map
}

// unit is the state shared by the compilers of one compilation: the
// top-level one and one per nested function.
type unit struct {
	opts     Options
	analysis *checker.Analysis
	source   *source.SourceFile
	errors   []errors.SigilError
}

// upvalueRef is one captured variable of the function being compiled:
// a register of the enclosing function (isLocal) or one of its upvalues.
type upvalueRef struct {
	name    string
	isLocal bool
	index   uint8
}

// Compiler transforms an AST into bytecode. There is one Compiler per
// function; nested functions get a child linked through enclosing.
type Compiler struct {
	unit               *unit
	enclosing          *Compiler
	fn                 *vm.FunctionObject
	chunk              *vm.Chunk
	regAlloc           *RegisterAllocator
	currentSymbolTable *SymbolTable
	freeSymbols        []upvalueRef

	isScript      bool
	completionReg Register // script only: value of the last expression statement
	line          int
}

// NewCompiler creates a top-level Compiler. A Compiler compiles one
// program; create a new one for every compilation.
func NewCompiler(opts Options) *Compiler {
	if opts.Globals == nil {
		opts.Globals = globalMap{}
	}
	fn := vm.NewFunctionObject("<script>", 0, vm.FuncMethod)
	return &Compiler{
		unit:               &unit{opts: opts},
		fn:                 fn,
		chunk:              fn.Chunk,
		regAlloc:           NewRegisterAllocator(),
		currentSymbolTable: NewSymbolTable(),
		isScript:           true,
	}
}

// Compile checks and compiles program into a script function. No code is
// produced when the checker or the compiler reports any error.
func (c *Compiler) Compile(program *parser.Program) (script *vm.FunctionObject, errs []errors.SigilError) {
	analysis, checkErrs := checker.NewChecker(checker.Options{
		MaxClassNesting: c.unit.opts.MaxClassNesting,
		IDs:             c.unit.opts.IDs,
	}).Check(program)
	if len(checkErrs) > 0 {
		return nil, checkErrs
	}
	c.unit.analysis = analysis
	c.unit.source = program.Source
	c.fn.Source = program.Source

	defer func() {
		if r := recover(); r != nil {
			if r != errOutOfRegisters && r != errJumpTooLong {
				panic(r)
			}
			c.unit.errors = append(c.unit.errors, &errors.CompileError{
				Position: errors.Position{Line: c.line, Column: 1, Source: program.Source},
				Msg:      r.(error).Error(),
			})
			script, errs = nil, c.unit.errors
		}
	}()

	thisReg := c.regAlloc.AllocLocal()
	c.currentSymbolTable.Define(thisName, BindHidden, thisReg, false)
	c.fn.ThisRegister = int(thisReg)
	c.completionReg = c.regAlloc.AllocLocal()

	c.hoistVars(program.Statements)
	c.hoistLexical(program.Statements)
	c.compileStatements(program.Statements)
	c.emitReturn(c.completionReg, c.line)
	c.fn.RegisterSize = c.regAlloc.MaxRegs()

	if len(c.unit.errors) > 0 {
		return nil, c.unit.errors
	}
	debugPrintf("// [Compiler] script: %d bytes, %d registers\n", len(c.chunk.Code), c.fn.RegisterSize)
	return c.fn, nil
}

// --- Scopes ---

func (c *Compiler) enterScope() {
	table := NewEnclosedSymbolTable(c.currentSymbolTable)
	table.watermark = c.regAlloc.Peek()
	c.currentSymbolTable = table
}

// exitScope closes the upvalues of the scope's variables, so closures
// created in a loop body each keep their own copy.
func (c *Compiler) exitScope(line int) {
	table := c.currentSymbolTable
	if table.hasLocals {
		c.emitCloseUpvalues(table.watermark, line)
	}
	c.currentSymbolTable = table.Outer
}

// atScriptRoot reports whether declarations here become globals.
func (c *Compiler) atScriptRoot() bool {
	return c.isScript && c.currentSymbolTable.Outer == nil
}

func (c *Compiler) globalIndex(name string) uint16 {
	idx := c.unit.opts.Globals.GlobalIndex(name)
	if idx > 65535 {
		panic(fmt.Sprintf("compiler: global index %d out of range", idx))
	}
	return uint16(idx)
}

// --- Name resolution ---

type bindingKind uint8

const (
	bindLocal bindingKind = iota
	bindUpvalue
	bindGlobal
)

type binding struct {
	kind   bindingKind
	reg    Register // bindLocal
	index  uint8    // bindUpvalue
	global uint16   // bindGlobal
	symbol Symbol
}

// resolve finds name in this function, then in the enclosing functions
// (capturing it), and finally falls back to a global.
func (c *Compiler) resolve(name string) binding {
	if b, ok := c.lookup(name); ok {
		return b
	}
	return binding{kind: bindGlobal, global: c.globalIndex(name), symbol: Symbol{Name: name, Kind: BindVar}}
}

func (c *Compiler) lookup(name string) (binding, bool) {
	if sym, _, ok := c.currentSymbolTable.Resolve(name); ok {
		if sym.IsGlobal {
			return binding{kind: bindGlobal, global: sym.GlobalIndex, symbol: sym}, true
		}
		return binding{kind: bindLocal, reg: sym.Register, symbol: sym}, true
	}
	if c.enclosing == nil {
		return binding{}, false
	}
	outer, ok := c.enclosing.lookup(name)
	if !ok {
		return binding{}, false
	}
	switch outer.kind {
	case bindGlobal:
		return outer, true
	case bindLocal:
		return binding{kind: bindUpvalue, index: c.addFreeSymbol(name, true, uint8(outer.reg)), symbol: outer.symbol}, true
	default:
		return binding{kind: bindUpvalue, index: c.addFreeSymbol(name, false, outer.index), symbol: outer.symbol}, true
	}
}

func (c *Compiler) addFreeSymbol(name string, isLocal bool, index uint8) uint8 {
	for i, uv := range c.freeSymbols {
		if uv.isLocal == isLocal && uv.index == index {
			return uint8(i)
		}
	}
	if len(c.freeSymbols) >= 255 {
		panic(errOutOfRegisters)
	}
	c.freeSymbols = append(c.freeSymbols, upvalueRef{name: name, isLocal: isLocal, index: index})
	return uint8(len(c.freeSymbols) - 1)
}

// loadBinding copies a binding into dest. With check set, reading a binding
// still in its temporal dead zone throws.
func (c *Compiler) loadBinding(b binding, dest Register, check bool, line int) {
	switch b.kind {
	case bindLocal:
		if check && b.symbol.TDZ {
			c.emitCheckInitialized(b.reg, b.symbol.Name, line)
		}
		c.emitMove(dest, b.reg, line)
	case bindUpvalue:
		c.emitLoadFree(dest, b.index, line)
		if check && b.symbol.TDZ {
			c.emitCheckInitialized(dest, b.symbol.Name, line)
		}
	case bindGlobal:
		c.emitGetGlobal(dest, b.global, line)
	}
}

func (c *Compiler) storeBinding(b binding, src Register, line int) {
	switch b.kind {
	case bindLocal:
		c.emitMove(b.reg, src, line)
	case bindUpvalue:
		c.emitSetUpvalue(b.index, src, line)
	case bindGlobal:
		c.emitSetGlobal(b.global, src, line)
	}
}

// checkAssignable emits the checks an assignment (not an initialisation)
// needs before the store: the binding must be initialised and, for
// globals, defined.
func (c *Compiler) checkAssignable(b binding, line int) {
	switch {
	case b.kind == bindLocal && b.symbol.TDZ:
		c.emitCheckInitialized(b.reg, b.symbol.Name, line)
	case b.kind == bindUpvalue && b.symbol.TDZ, b.kind == bindGlobal:
		tmp := c.regAlloc.Alloc()
		c.loadBinding(b, tmp, true, line)
		c.regAlloc.Free(tmp)
	}
}

// loadPrivateEnv loads the private environment that ref's declaring class
// created in this evaluation.
func (c *Compiler) loadPrivateEnv(ref *parser.PrivateIdentifier, line int) Register {
	d, ok := c.unit.analysis.Refs[ref]
	if !ok {
		panic(fmt.Sprintf("compiler: private name %s at %d:%d was not resolved", ref.Name, ref.Token.Line, ref.Token.Column))
	}
	return c.loadPrivateEnvByID(d.ClassID, line)
}

func (c *Compiler) loadPrivateEnvByID(id privatename.ClassID, line int) Register {
	b, ok := c.lookup(privateEnvName(id))
	if !ok {
		panic(fmt.Sprintf("compiler: no private environment in scope for %s", id))
	}
	reg := c.regAlloc.Alloc()
	c.loadBinding(b, reg, false, line)
	return reg
}

// --- Functions ---

func (c *Compiler) newFunctionCompiler(kind vm.FunctionKind, name string) *Compiler {
	fn := vm.NewFunctionObject(name, 0, kind)
	fn.Source = c.unit.source
	return &Compiler{
		unit:               c.unit,
		enclosing:          c,
		fn:                 fn,
		chunk:              fn.Chunk,
		regAlloc:           NewRegisterAllocator(),
		currentSymbolTable: NewSymbolTable(),
	}
}

// setupReceiver defines the hidden bindings the VM fills on entry. Arrow
// functions have none: they see their enclosing function's.
func (fc *Compiler) setupReceiver() {
	kind := fc.fn.Kind
	if kind == vm.FuncArrow {
		return
	}
	derived := kind == vm.FuncDerivedConstructor
	thisReg := fc.regAlloc.AllocLocal()
	fc.currentSymbolTable.Define(thisName, BindHidden, thisReg, derived)
	fc.fn.ThisRegister = int(thisReg)
	if kind == vm.FuncBaseConstructor || derived {
		calleeReg := fc.regAlloc.AllocLocal()
		fc.currentSymbolTable.Define(calleeName, BindHidden, calleeReg, false)
		fc.fn.CalleeRegister = int(calleeReg)
		ntReg := fc.regAlloc.AllocLocal()
		fc.currentSymbolTable.Define(newTargetName, BindHidden, ntReg, false)
		fc.fn.NewTargetRegister = int(ntReg)
	}
}

// compileFunction compiles a function literal and emits a closure for it
// into dest. bindSelf gives a named function expression a read-only
// binding of its own name.
func (c *Compiler) compileFunction(lit *parser.FunctionLiteral, kind vm.FunctionKind, name string, bindSelf bool, dest Register) {
	fc := c.newFunctionCompiler(kind, name)
	fc.line = lit.Token.Line

	for _, param := range lit.Parameters {
		if _, exists := fc.currentSymbolTable.Lookup(param.Value); exists {
			fc.addSyntaxError(param.Token, "Duplicate parameter name not allowed in this context")
			continue
		}
		reg := fc.regAlloc.AllocLocal()
		fc.currentSymbolTable.Define(param.Value, BindParam, reg, false)
	}
	fc.fn.Arity = len(lit.Parameters)

	if bindSelf && lit.Name != nil {
		if _, shadowed := fc.currentSymbolTable.Lookup(lit.Name.Value); !shadowed {
			reg := fc.regAlloc.AllocLocal()
			fc.currentSymbolTable.Define(lit.Name.Value, BindConst, reg, false)
			fc.fn.CalleeRegister = int(reg)
		}
	}
	fc.setupReceiver()

	fc.hoistVars(lit.Body.Statements)
	fc.hoistLexical(lit.Body.Statements)
	fc.compileStatements(lit.Body.Statements)
	fc.emitOpCode(vm.OpReturnUndefined, fc.line)

	c.finishFunction(fc, dest, lit.Token.Line)
}

// compileSynthetic compiles a function the source does not spell out:
// default constructors and the field and static initialisers of a class.
func (c *Compiler) compileSynthetic(name string, kind vm.FunctionKind, line int, dest Register, body func(fc *Compiler)) {
	fc := c.newFunctionCompiler(kind, name)
	fc.line = line
	fc.setupReceiver()
	body(fc)
	fc.emitOpCode(vm.OpReturnUndefined, fc.line)
	c.finishFunction(fc, dest, line)
}

func (c *Compiler) finishFunction(fc *Compiler, dest Register, line int) {
	fc.fn.RegisterSize = fc.regAlloc.MaxRegs()
	fc.fn.UpvalueCount = len(fc.freeSymbols)
	debugPrintf("// [Compiler] function %s: %d bytes, %d registers, %d upvalues\n",
		fc.fn.Name, len(fc.chunk.Code), fc.fn.RegisterSize, fc.fn.UpvalueCount)
	c.emitClosure(dest, fc.fn, fc.freeSymbols, line)
}

// emitClosure emits OpClosure followed by one (isLocal, index) pair per
// captured variable.
func (c *Compiler) emitClosure(dest Register, fn *vm.FunctionObject, freeSymbols []upvalueRef, line int) {
	idx := c.chunk.AddConstant(vm.FunctionValue(fn))
	c.emitOpCode(vm.OpClosure, line)
	c.emitByte(byte(dest))
	c.emitUint16(idx)
	c.emitByte(byte(len(freeSymbols)))
	for _, uv := range freeSymbols {
		if uv.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.index)
	}
}

// --- Errors ---

func (c *Compiler) position(tok lexer.Token) errors.Position {
	return errors.Position{
		Line:     tok.Line,
		Column:   tok.Column,
		StartPos: tok.StartPos,
		EndPos:   tok.EndPos,
		Source:   c.unit.source,
	}
}

func (c *Compiler) addError(tok lexer.Token, msg string) {
	c.unit.errors = append(c.unit.errors, &errors.CompileError{Position: c.position(tok), Msg: msg})
}

func (c *Compiler) addSyntaxError(tok lexer.Token, msg string) {
	c.unit.errors = append(c.unit.errors, &errors.SyntaxError{Position: c.position(tok), Msg: msg})
}
