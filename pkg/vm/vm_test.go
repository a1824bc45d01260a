package vm

import (
	stderrors "errors"
	"math"
	"strings"
	"testing"

	"sigil/pkg/privatename"
)

// assembler builds a chunk by hand for tests that must not depend on the
// compiler.
type assembler struct {
	fn *FunctionObject
}

func newAssembler(name string, registers int) *assembler {
	fn := NewFunctionObject(name, 0, FuncMethod)
	fn.RegisterSize = registers
	return &assembler{fn: fn}
}

func (a *assembler) op(op OpCode, operands ...byte) *assembler {
	a.fn.Chunk.WriteOpCode(op, 1)
	for _, b := range operands {
		a.fn.Chunk.WriteByte(b)
	}
	return a
}

func (a *assembler) u16(v uint16) *assembler {
	a.fn.Chunk.WriteUint16(v)
	return a
}

func (a *assembler) constant(v Value) uint16 {
	return a.fn.Chunk.AddConstant(v)
}

func (a *assembler) pc() int { return len(a.fn.Chunk.Code) }

func TestInterpretArithmetic(t *testing.T) {
	a := newAssembler("main", 3)
	a.op(OpLoadConst, 0).u16(a.constant(Number(1)))
	a.op(OpLoadConst, 1).u16(a.constant(Number(2)))
	a.op(OpAdd, 2, 0, 1)
	a.op(OpReturn, 2)

	vm := New(Options{})
	result, errs := vm.Interpret(a.fn)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if !result.IsNumber() || result.AsNumber() != 3 {
		t.Errorf("expected 3, got %s", result.Inspect())
	}
}

func TestStringConcatenation(t *testing.T) {
	a := newAssembler("main", 3)
	a.op(OpLoadConst, 0).u16(a.constant(String("n=")))
	a.op(OpLoadConst, 1).u16(a.constant(Number(1.5)))
	a.op(OpAdd, 2, 0, 1)
	a.op(OpReturn, 2)

	result, errs := New(Options{}).Interpret(a.fn)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if result.ToString() != "n=1.5" {
		t.Errorf("expected n=1.5, got %q", result.ToString())
	}
}

func TestExceptionTableCatches(t *testing.T) {
	a := newAssembler("main", 1)
	tryStart := a.pc()
	a.op(OpThrowError, ErrorKindTypeError).u16(a.constant(String("boom")))
	tryEnd := a.pc()
	a.op(OpReturnUndefined)
	handler := a.pc()
	a.op(OpReturn, 0)
	a.fn.Chunk.ExceptionTable = []ExceptionHandler{{
		TryStart: tryStart, TryEnd: tryEnd, HandlerPC: handler, CatchReg: 0,
	}}

	vm := New(Options{})
	result, errs := vm.Interpret(a.fn)
	if len(errs) > 0 {
		t.Fatalf("exception escaped the handler: %v", errs)
	}
	ok, err := vm.InstanceOf(result, vm.ErrorConstructor(ErrorKindTypeError))
	if err != nil || !ok {
		t.Fatalf("caught value is not a TypeError: %s", result.Inspect())
	}
	msg, err := vm.GetProperty(result, "message")
	if err != nil || msg.ToString() != "boom" {
		t.Errorf("message = %s, %v", msg.Inspect(), err)
	}
}

func TestUncaughtException(t *testing.T) {
	a := newAssembler("main", 1)
	a.op(OpThrowError, ErrorKindReferenceError).u16(a.constant(String("x is not defined")))

	vm := New(Options{})
	_, errs := vm.Interpret(a.fn)
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
	if got := errs[0].Message(); got != "Uncaught ReferenceError: x is not defined" {
		t.Errorf("unexpected message %q", got)
	}
	if errs[0].Kind() != "Runtime" {
		t.Errorf("unexpected kind %q", errs[0].Kind())
	}
}

func TestUndefinedGlobal(t *testing.T) {
	vm := New(Options{})
	a := newAssembler("main", 1)
	a.op(OpGetGlobal, 0).u16(uint16(vm.GlobalIndex("missing")))
	a.op(OpReturn, 0)

	_, errs := vm.Interpret(a.fn)
	if len(errs) != 1 || !strings.Contains(errs[0].Message(), "missing is not defined") {
		t.Errorf("expected a ReferenceError, got %v", errs)
	}
}

func TestStackOverflow(t *testing.T) {
	vm := New(Options{MaxFrames: 8})
	// main() { return main(); } with main as a global.
	a := newAssembler("main", 2)
	slot := uint16(vm.GlobalIndex("main"))
	a.op(OpGetGlobal, 0).u16(slot)
	a.op(OpCall, 1, 0, 0)
	a.op(OpReturn, 1)
	vm.SetGlobal("main", ClosureValue(vm.newClosure(a.fn, nil)))

	main, _ := vm.GetGlobal("main")
	_, err := vm.Call(main, Undefined, nil)
	if err == nil {
		t.Fatalf("expected a RangeError")
	}
	if !strings.Contains(err.Error(), "Maximum call stack size exceeded") {
		t.Errorf("unexpected error %v", err)
	}
	if vm.frameCount != 0 {
		t.Errorf("frames left after unwinding: %d", vm.frameCount)
	}
}

func TestNativeFunctionCall(t *testing.T) {
	vm := New(Options{})
	double := vm.NewNativeFunction("double", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		return Number(args[0].ToFloat() * 2), nil
	})
	result, err := vm.Call(double, Undefined, []Value{Number(21)})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if result.AsNumber() != 42 {
		t.Errorf("expected 42, got %s", result.Inspect())
	}

	if _, err := vm.Call(Number(1), Undefined, nil); err == nil || !strings.Contains(err.Error(), "is not a function") {
		t.Errorf("calling a number: %v", err)
	}
}

func TestErrorSubclass(t *testing.T) {
	vm := New(Options{})
	custom := vm.NewErrorType("CustomError", vm.ErrorConstructor(ErrorKindError))
	obj, err := vm.Construct(custom, []Value{String("bad")})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	for _, ctor := range []Value{custom, vm.ErrorConstructor(ErrorKindError)} {
		if ok, _ := vm.InstanceOf(obj, ctor); !ok {
			t.Errorf("%s is not an instance of %s", obj.Inspect(), functionName(ctor))
		}
	}
	s, err := vm.ToString(obj)
	if err != nil || s != "CustomError: bad" {
		t.Errorf("ToString = %q, %v", s, err)
	}
	if g, ok := vm.GetGlobal("CustomError"); !ok || !g.StrictlyEquals(custom) {
		t.Errorf("CustomError is not installed as a global")
	}
}

func TestDisassemble(t *testing.T) {
	a := newAssembler("main", 2)
	a.op(OpLoadConst, 0).u16(a.constant(String("hi")))
	a.op(OpGetProp, 1, 0).u16(a.constant(String("length")))
	a.op(OpReturn, 1)

	out := a.fn.Chunk.DisassembleChunk("main")
	for _, want := range []string{"== main ==", "OpLoadConst", "OpGetProp", "OpReturn", "length"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly lacks %q:\n%s", want, out)
		}
	}
}

func TestAddConstantDeduplicates(t *testing.T) {
	c := NewChunk()
	a := c.AddConstant(String("x"))
	b := c.AddConstant(String("x"))
	n1 := c.AddConstant(Number(math.NaN()))
	n2 := c.AddConstant(Number(math.NaN()))
	if a != b {
		t.Errorf("equal strings got different slots %d and %d", a, b)
	}
	if n1 != n2 {
		t.Errorf("NaN constants got different slots %d and %d", n1, n2)
	}
	if len(c.Constants) != 2 {
		t.Errorf("expected 2 constants, got %d", len(c.Constants))
	}
}

// --- Private names ---

// privateClass builds a private environment for a class declaring members,
// the way OpPrivateEnv does at class evaluation.
func privateClass(t *testing.T, name string, members ...privatename.Member) *PrivateEnvironment {
	t.Helper()
	ids := &privatename.IDAllocator{}
	table, errs := privatename.Collect(ids.Next(), members)
	if len(errs) > 0 {
		t.Fatalf("collect: %v", errs)
	}
	return newPrivateEnvironment(&ClassTemplate{ID: table.ClassID(), Name: name, Table: table})
}

func TestPrivateFieldBrandCheck(t *testing.T) {
	vm := New(Options{})
	env := privateClass(t, "C", privatename.Member{Name: "#x", Private: true, Kind: privatename.MemberField})

	branded := ObjectValue(NewObject(Null))
	if err := branded.header().Brands().Install(env.Brand); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := vm.definePrivateField(branded, env, "#x", Number(1)); err != nil {
		t.Fatalf("define: %v", err)
	}
	if err := vm.definePrivateField(branded, env, "#x", Number(1)); err == nil {
		t.Errorf("defining #x twice succeeded")
	}

	v, err := vm.getPrivate(branded, env, "#x")
	if err != nil || v.AsNumber() != 1 {
		t.Errorf("read = %s, %v", v.Inspect(), err)
	}
	if err := vm.setPrivate(branded, env, "#x", Number(2)); err != nil {
		t.Errorf("write: %v", err)
	}
	if v, _ := vm.getPrivate(branded, env, "#x"); v.AsNumber() != 2 {
		t.Errorf("after write: %s", v.Inspect())
	}

	plain := ObjectValue(NewObject(Null))
	for _, receiver := range []Value{plain, Number(1), Undefined} {
		if _, err := vm.getPrivate(receiver, env, "#x"); !stderrors.Is(err, privatename.ErrInvalidPrivateAccess) {
			t.Errorf("read from %s: %v", receiver.Inspect(), err)
		}
		if err := vm.setPrivate(receiver, env, "#x", Number(3)); !stderrors.Is(err, privatename.ErrInvalidPrivateAccess) {
			t.Errorf("write to %s: %v", receiver.Inspect(), err)
		}
	}
}

func TestPrivateHas(t *testing.T) {
	vm := New(Options{})
	env := privateClass(t, "C",
		privatename.Member{Name: "#x", Private: true, Kind: privatename.MemberField},
		privatename.Member{Name: "#m", Private: true, Kind: privatename.MemberMethod},
	)
	env.define("#m", vm.NewNativeFunction("#m", 0, func(vm *VM, this Value, args []Value) (Value, error) {
		return Undefined, nil
	}), MethodPlain)

	obj := ObjectValue(NewObject(Null))
	if has, err := vm.hasPrivate(obj, env, "#m"); err != nil || has {
		t.Errorf("unbranded #m in obj = %v, %v", has, err)
	}

	obj.header().Brands().Install(env.Brand)
	if has, _ := vm.hasPrivate(obj, env, "#m"); !has {
		t.Errorf("branded object lacks #m")
	}
	// The field is not there until its initialiser has run.
	if has, _ := vm.hasPrivate(obj, env, "#x"); has {
		t.Errorf("#x present before definition")
	}
	if _, err := vm.getPrivate(obj, env, "#x"); err == nil {
		t.Errorf("reading an uninitialised field succeeded")
	}
	vm.definePrivateField(obj, env, "#x", Null)
	if has, _ := vm.hasPrivate(obj, env, "#x"); !has {
		t.Errorf("#x missing after definition")
	}

	if _, err := vm.hasPrivate(Number(1), env, "#x"); !stderrors.Is(err, privatename.ErrInvalidPrivateAccess) {
		t.Errorf("#x in 1: %v", err)
	}
}

func TestPrivateAccessorMerging(t *testing.T) {
	vm := New(Options{})
	env := privateClass(t, "C",
		privatename.Member{Name: "#both", Private: true, Kind: privatename.MemberGetter},
		privatename.Member{Name: "#both", Private: true, Kind: privatename.MemberSetter},
		privatename.Member{Name: "#ro", Private: true, Kind: privatename.MemberGetter},
		privatename.Member{Name: "#wo", Private: true, Kind: privatename.MemberSetter},
		privatename.Member{Name: "#m", Private: true, Kind: privatename.MemberMethod},
	)

	var stored Value = Number(0)
	getter := vm.NewNativeFunction("get", 0, func(vm *VM, this Value, args []Value) (Value, error) {
		return stored, nil
	})
	setter := vm.NewNativeFunction("set", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		stored = args[0]
		return Undefined, nil
	})
	env.define("#both", getter, MethodGetter)
	env.define("#both", setter, MethodSetter)
	env.define("#ro", getter, MethodGetter)
	env.define("#wo", setter, MethodSetter)
	env.define("#m", getter, MethodPlain)

	obj := ObjectValue(NewObject(Null))
	obj.header().Brands().Install(env.Brand)

	if err := vm.setPrivate(obj, env, "#both", Number(7)); err != nil {
		t.Fatalf("set #both: %v", err)
	}
	if v, err := vm.getPrivate(obj, env, "#both"); err != nil || v.AsNumber() != 7 {
		t.Errorf("get #both = %s, %v", v.Inspect(), err)
	}

	tests := []struct {
		name  string
		write bool
	}{
		{"#ro", true},  // getter only
		{"#wo", false}, // setter only
		{"#m", true},   // methods are not writable
	}
	for _, tt := range tests {
		var err error
		if tt.write {
			err = vm.setPrivate(obj, env, tt.name, Number(1))
		} else {
			_, err = vm.getPrivate(obj, env, tt.name)
		}
		if !stderrors.Is(err, privatename.ErrInvalidPrivateAccess) {
			t.Errorf("%s (write=%v): expected an invalid access, got %v", tt.name, tt.write, err)
		}
	}
	if stored.AsNumber() != 7 {
		t.Errorf("a failed access ran the setter: %s", stored.Inspect())
	}
}

func TestPrivateErrorBecomesTypeError(t *testing.T) {
	vm := New(Options{})
	env := privateClass(t, "C", privatename.Member{Name: "#x", Private: true, Kind: privatename.MemberField})
	_, err := vm.getPrivate(Number(1), env, "#x")
	exc := vm.toException(err)
	if ok, _ := vm.InstanceOf(exc.Value, vm.ErrorConstructor(ErrorKindTypeError)); !ok {
		t.Errorf("expected a TypeError, got %s", exc.Value.Inspect())
	}
	if !stderrors.Is(exc, privatename.ErrInvalidPrivateAccess) {
		t.Errorf("exception does not unwrap to the access error")
	}
}
