package checker

import (
	stderrors "errors"
	"strings"
	"testing"

	"sigil/pkg/errors"
	"sigil/pkg/lexer"
	"sigil/pkg/parser"
	"sigil/pkg/privatename"
)

func check(t *testing.T, input string) (*parser.Program, *Analysis, []errors.SigilError) {
	t.Helper()
	p := parser.NewParser(lexer.NewLexer(input))
	program, perrs := p.ParseProgram()
	if len(perrs) > 0 {
		t.Fatalf("parse errors: %v", perrs)
	}
	analysis, errs := NewChecker(Options{IDs: &privatename.IDAllocator{}}).Check(program)
	return program, analysis, errs
}

func classes(program *parser.Program) map[string]*parser.ClassExpression {
	found := make(map[string]*parser.ClassExpression)
	var walk func(n parser.Node)
	walk = func(n parser.Node) {
		switch n := n.(type) {
		case *parser.ClassDeclaration:
			walk(n.Class)
		case *parser.ClassExpression:
			if n.Name != nil {
				found[n.Name.Value] = n
			}
			for _, m := range n.Body.Members {
				if m.Value != nil {
					walk(m.Value.Body)
				}
			}
		case *parser.BlockStatement:
			for _, s := range n.Statements {
				walk(s)
			}
		case *parser.ReturnStatement:
			if n.ReturnValue != nil {
				walk(n.ReturnValue)
			}
		case *parser.ExpressionStatement:
			walk(n.Expression)
		}
	}
	for _, s := range program.Statements {
		walk(s)
	}
	return found
}

func TestComplementaryAccessors(t *testing.T) {
	for _, src := range []string{
		"class C { get #a() {} set #a(val) {} }",
		"class C { set #a(val) {} get #a() {} }",
	} {
		program, analysis, errs := check(t, src)
		if len(errs) > 0 {
			t.Fatalf("%q: unexpected errors %v", src, errs)
		}
		c := classes(program)["C"]
		d, ok := analysis.Tables[c].Lookup("#a")
		if !ok || d.Kind != privatename.AccessorBoth {
			t.Errorf("%q: #a = %v", src, d)
		}
	}
}

func TestDuplicateAccessorsAreEarlyErrors(t *testing.T) {
	tests := []string{
		"class C { get #a() {} get #a() {} }",
		"class C { set #a(val) {} set #a(val) {} }",
		"class C { #ok = 1; m() {} get #a() {} set #a(v) {} get #a() {} }",
		"class C { #a; #a() {} }",
	}
	for _, src := range tests {
		_, _, errs := check(t, src)
		if len(errs) != 1 {
			t.Errorf("%q: expected 1 error, got %v", src, errs)
			continue
		}
		if !stderrors.Is(errs[0], privatename.ErrDuplicatePrivateName) {
			t.Errorf("%q: got %v, want DuplicatePrivateName", src, errs[0])
		}
		if errs[0].Kind() != "Syntax" {
			t.Errorf("%q: kind %q", src, errs[0].Kind())
		}
	}
}

func TestNestedClassesShadow(t *testing.T) {
	src := `
class C {
  a() { return this.#a; }
  get #a() {
    class D {
      get #a() { return 1; }
      m() { return this.#a; }
    }
    return new D;
  }
  b() { return this.#a; }
}`
	program, analysis, errs := check(t, src)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	found := classes(program)
	cID := analysis.ClassIDs[found["C"]]
	dID := analysis.ClassIDs[found["D"]]
	if cID == dID {
		t.Fatalf("C and D share %s", cID)
	}

	byLine := map[int]privatename.ClassID{}
	for ref, d := range analysis.Refs {
		if ref.Name == "#a" {
			byLine[ref.Token.Line] = d.ClassID
		}
	}
	want := map[int]privatename.ClassID{3: cID, 7: dID, 11: cID}
	for line, id := range want {
		if byLine[line] != id {
			t.Errorf("reference on line %d bound to %s, want %s", line, byLine[line], id)
		}
	}
}

func TestForwardReferenceWithinClass(t *testing.T) {
	_, _, errs := check(t, "class C { m() { return this.#later; } #later = 1; }")
	if len(errs) > 0 {
		t.Fatalf("forward reference rejected: %v", errs)
	}
}

func TestUnresolvedPrivateName(t *testing.T) {
	tests := []struct {
		src  string
		line int
	}{
		{"class C { m(o) { return o.#b; } #a; }", 1},
		{"class C { #a; }\nfunction f(o) { return o.#a; }", 2},
		{"class C { #a; }\nclass D { m(o) { return #a in o; } }", 2},
		// The heritage cannot see the class's own names.
		{"class C extends (class { m(o) { return o.#x; } }) { #x; }", 1},
	}
	for _, tt := range tests {
		_, _, errs := check(t, tt.src)
		if len(errs) != 1 {
			t.Errorf("%q: expected 1 error, got %v", tt.src, errs)
			continue
		}
		if !stderrors.Is(errs[0], privatename.ErrUnresolvedPrivateName) {
			t.Errorf("%q: got %v", tt.src, errs[0])
		}
		if errs[0].Pos().Line != tt.line {
			t.Errorf("%q: error on line %d, want %d", tt.src, errs[0].Pos().Line, tt.line)
		}
	}
}

func TestSiblingsAfterFailureSeeCleanStack(t *testing.T) {
	src := `
class Broken { get #a() {} get #a() {} m() { return this.#a; } }
class Sibling { m(o) { return o.#a; } }
class Fine { #a; m() { return this.#a; } }`
	_, analysis, errs := check(t, src)
	if len(errs) != 2 {
		t.Fatalf("expected duplicate + unresolved, got %v", errs)
	}
	if !stderrors.Is(errs[0], privatename.ErrDuplicatePrivateName) {
		t.Errorf("first error %v", errs[0])
	}
	if !stderrors.Is(errs[1], privatename.ErrUnresolvedPrivateName) || errs[1].Pos().Line != 3 {
		t.Errorf("second error %v", errs[1])
	}
	if len(analysis.Refs) != 1 {
		t.Errorf("expected only Fine's reference to resolve, got %d", len(analysis.Refs))
	}
}

func TestRecheckingAllocatesFreshIDs(t *testing.T) {
	src := "class C { #a; m() { return this.#a; } }"
	alloc := &privatename.IDAllocator{}
	run := func() privatename.ClassID {
		p := parser.NewParser(lexer.NewLexer(src))
		program, _ := p.ParseProgram()
		analysis, errs := NewChecker(Options{IDs: alloc}).Check(program)
		if len(errs) > 0 {
			t.Fatalf("errors: %v", errs)
		}
		for _, id := range analysis.ClassIDs {
			return id
		}
		return privatename.NoClass
	}
	if first, second := run(), run(); first == second {
		t.Errorf("two compilations of the same class share %s", first)
	}
}

func TestStructuralEarlyErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"class C { constructor() {} constructor() {} }", "only have one constructor"},
		{"class C { constructor() { super(); } }", "'super' keyword unexpected here"},
		{"class B {} class C extends B { m() { super(); } }", "'super' keyword unexpected here"},
		{"function f() { super(); }", "'super' keyword unexpected here"},
		{"return 1;", "Illegal return statement"},
		{"class C { static { return; } }", "Illegal return statement"},
		{"class C { #constructor() {} }", "#constructor"},
	}
	for _, tt := range tests {
		_, _, errs := check(t, tt.src)
		if len(errs) == 0 {
			t.Errorf("%q: expected an error", tt.src)
			continue
		}
		if !strings.Contains(errs[0].Message(), tt.want) {
			t.Errorf("%q: got %q, want %q", tt.src, errs[0].Message(), tt.want)
		}
	}

	// super() is fine in a derived constructor, also from an arrow.
	_, _, errs := check(t, "class B {} class C extends B { constructor() { const f = () => super(); f(); } }")
	if len(errs) > 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestMaxClassNesting(t *testing.T) {
	src := "class A { m() { class B { m() { class C {} } } } }"
	p := parser.NewParser(lexer.NewLexer(src))
	program, _ := p.ParseProgram()
	_, errs := NewChecker(Options{MaxClassNesting: 2}).Check(program)
	if len(errs) != 1 || errs[0].Kind() != "Compile" {
		t.Fatalf("expected one nesting error, got %v", errs)
	}
	if !strings.Contains(errs[0].Message(), "nested deeper than 2") {
		t.Errorf("message %q", errs[0].Message())
	}
}
