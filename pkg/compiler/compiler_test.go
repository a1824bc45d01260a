package compiler

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"sigil/pkg/errors"
	"sigil/pkg/lexer"
	"sigil/pkg/parser"
	"sigil/pkg/privatename"
	"sigil/pkg/vm"
)

// Helper function to create expected instruction sequences
func makeInstructions(ops ...interface{}) []byte {
	var instructions []byte
	for _, op := range ops {
		switch v := op.(type) {
		case vm.OpCode:
			instructions = append(instructions, byte(v))
		case Register:
			instructions = append(instructions, byte(v))
		case int:
			if v < 0 || v > 255 {
				panic(fmt.Sprintf("Integer operand %d out of byte range", v))
			}
			instructions = append(instructions, byte(v))
		case uint16:
			instructions = append(instructions, byte(v>>8))   // High byte
			instructions = append(instructions, byte(v&0xff)) // Low byte
		default:
			panic(fmt.Sprintf("Unsupported operand type %T in makeInstructions", op))
		}
	}
	return instructions
}

func compileSource(t *testing.T, input string) (*vm.FunctionObject, []errors.SigilError) {
	t.Helper()
	program, parseErrs := parser.NewParser(lexer.NewLexer(input)).ParseProgram()
	if len(parseErrs) > 0 {
		var errMsgs strings.Builder
		for _, e := range parseErrs {
			errMsgs.WriteString(e.Error() + "\n")
		}
		t.Fatalf("Parser encountered errors:\n%s", errMsgs.String())
	}
	return NewCompiler(Options{IDs: &privatename.IDAllocator{}}).Compile(program)
}

func mustCompile(t *testing.T, input string) *vm.FunctionObject {
	t.Helper()
	fn, errs := compileSource(t, input)
	if len(errs) > 0 {
		var errMsgs strings.Builder
		for _, e := range errs {
			errMsgs.WriteString(e.Error() + "\n")
		}
		t.Fatalf("Compiler encountered errors:\n%s", errMsgs.String())
	}
	if fn == nil {
		t.Fatalf("Compiler returned nil function without errors")
	}
	return fn
}

func TestCompileGlobalLet(t *testing.T) {
	script := mustCompile(t, "let x = 1; x;")

	// R0 is this, R1 the completion value.
	expected := makeInstructions(
		vm.OpLoadUninitialized, Register(2),
		vm.OpSetGlobal, uint16(0), Register(2),
		vm.OpLoadConst, Register(2), uint16(0),
		vm.OpSetGlobal, uint16(0), Register(2),
		vm.OpGetGlobal, Register(1), uint16(0),
		vm.OpReturn, Register(1),
	)
	if !reflect.DeepEqual(script.Chunk.Code, expected) {
		t.Errorf("Instruction mismatch:")
		t.Errorf("  Expected: %v", expected)
		t.Errorf("  Got:      %v", script.Chunk.Code)
		t.Logf("%s", script.Chunk.DisassembleChunk("script"))
	}
	if script.RegisterSize != 3 {
		t.Errorf("RegisterSize = %d, want 3", script.RegisterSize)
	}
	if script.ThisRegister != 0 {
		t.Errorf("ThisRegister = %d, want 0", script.ThisRegister)
	}
}

func TestCompileFunctionLocals(t *testing.T) {
	script := mustCompile(t, "function f(a, b) { let c = a; return c; }")

	fnConst := findFunction(script.Chunk, "f")
	if fnConst == nil {
		t.Fatalf("function f not found in constants")
	}
	if fnConst.Arity != 2 {
		t.Errorf("Arity = %d, want 2", fnConst.Arity)
	}
	// Params take R0 and R1, this R2, c R3.
	code := fnConst.Chunk.Code
	if code[0] != byte(vm.OpLoadUninitialized) || code[1] != 3 {
		t.Errorf("expected c's TDZ marker in R3 first, got %v", code[:2])
	}
	if last := vm.OpCode(code[len(code)-1]); last != vm.OpReturnUndefined {
		t.Errorf("function does not end with OpReturnUndefined: %s", last)
	}
	if fnConst.ThisRegister != 2 {
		t.Errorf("ThisRegister = %d, want 2", fnConst.ThisRegister)
	}
}

func findFunction(chunk *vm.Chunk, name string) *vm.FunctionObject {
	for _, c := range chunk.Constants {
		if c.Type() != vm.TypeFunction {
			continue
		}
		fn := c.AsFunction()
		if fn.Name == name {
			return fn
		}
		if found := findFunction(fn.Chunk, name); found != nil {
			return found
		}
	}
	return nil
}

func TestCompileUpvalues(t *testing.T) {
	script := mustCompile(t, `
function outer() {
	let count = 0;
	return () => { count = count + 1; return count; };
}`)
	arrow := findFunction(script.Chunk, "")
	if arrow == nil {
		t.Fatalf("arrow function not found")
	}
	if arrow.UpvalueCount != 1 {
		t.Errorf("UpvalueCount = %d, want 1", arrow.UpvalueCount)
	}
	if arrow.ThisRegister != -1 {
		t.Errorf("arrow functions have no this register, got %d", arrow.ThisRegister)
	}
}

func TestCompilePrivateAccess(t *testing.T) {
	script := mustCompile(t, `
class C {
	#x = 1;
	get #y() { return this.#x; }
	static has(o) { return #x in o; }
}`)
	dis := script.Chunk.DisassembleChunk("script")
	for _, want := range []string{"OpPrivateEnv", "OpClass", "OpDefinePrivateMethod", "OpSetFieldInit", "OpGetPrivate", "OpHasPrivate", "OpDefinePrivateField"} {
		if !strings.Contains(dis, want) {
			t.Errorf("disassembly lacks %s:\n%s", want, dis)
		}
	}
}

func TestClassWithoutPrivateNamesHasNoEnvironment(t *testing.T) {
	script := mustCompile(t, "class C { m() { return 1; } }")
	dis := script.Chunk.DisassembleChunk("script")
	if strings.Contains(dis, "OpPrivateEnv") {
		t.Errorf("unexpected private environment:\n%s", dis)
	}
}

func TestCheckerErrorsStopCompilation(t *testing.T) {
	fn, errs := compileSource(t, "class C { m(o) { return o.#missing; } }")
	if fn != nil {
		t.Errorf("expected no code for a program with early errors")
	}
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
	if !stderrors.Is(errs[0], privatename.ErrUnresolvedPrivateName) {
		t.Errorf("expected an unresolved private name error, got %v", errs[0])
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"duplicate let", "let a = 1; let a = 2;", "Identifier 'a' has already been declared"},
		{"let then var", "function f() { let a; var a; }", "Identifier 'a' has already been declared"},
		{"duplicate parameter", "function f(a, a) {}", "Duplicate parameter name not allowed in this context"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, errs := compileSource(t, tt.input)
			if fn != nil {
				t.Errorf("expected compilation to fail")
			}
			found := false
			for _, e := range errs {
				if strings.Contains(e.Error(), tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error containing %q, got %v", tt.want, errs)
			}
		})
	}
}

func TestTooManyRegisters(t *testing.T) {
	var b strings.Builder
	b.WriteString("function f() {\n")
	for i := 0; i < maxRegisters+5; i++ {
		fmt.Fprintf(&b, "let v%d = %d;\n", i, i)
	}
	b.WriteString("}\n")

	fn, errs := compileSource(t, b.String())
	if fn != nil {
		t.Fatalf("expected compilation to fail")
	}
	if len(errs) != 1 || errs[0].Kind() != "Compile" {
		t.Fatalf("expected one compile error, got %v", errs)
	}
	if !strings.Contains(errs[0].Message(), "more than 250 registers") {
		t.Errorf("unexpected message %q", errs[0].Message())
	}
}

func TestExceptionTableOrder(t *testing.T) {
	script := mustCompile(t, `
try {
	try { throw 1; } catch (inner) {}
} catch (outer) {}`)
	table := script.Chunk.ExceptionTable
	if len(table) != 2 {
		t.Fatalf("expected 2 handlers, got %d", len(table))
	}
	inner, outer := table[0], table[1]
	if !(inner.TryStart >= outer.TryStart && inner.TryEnd <= outer.TryEnd) {
		t.Errorf("first handler %+v should be nested in %+v", inner, outer)
	}
}

func TestGlobalsShareResolver(t *testing.T) {
	globals := globalMap{}
	compile := func(src string) {
		program, _ := parser.NewParser(lexer.NewLexer(src)).ParseProgram()
		if _, errs := NewCompiler(Options{Globals: globals}).Compile(program); len(errs) > 0 {
			t.Fatalf("compile %q: %v", src, errs)
		}
	}
	compile("var a = 1;")
	compile("var b = a;")
	if globals["a"] != 0 || globals["b"] != 1 {
		t.Errorf("unexpected global slots %v", globals)
	}
}
