package parser

import (
	"strings"
	"testing"

	"sigil/pkg/lexer"
)

func parse(t *testing.T, input string) *Program {
	t.Helper()
	p := NewParser(lexer.NewLexer(input))
	program, errs := p.ParseProgram()
	if len(errs) > 0 {
		for _, err := range errs {
			t.Errorf("parser error: %s", err)
		}
		t.FailNow()
	}
	return program
}

func parseErrors(input string) []string {
	p := NewParser(lexer.NewLexer(input))
	_, errs := p.ParseProgram()
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Message()
	}
	return msgs
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a + b * c", "(a + (b * c));"},
		{"-a * b", "((-a) * b);"},
		{"!a === b", "((!a) === b);"},
		{"a || b && c", "(a || (b && c));"},
		{"a ?? b || c", "(a ?? (b || c));"},
		{"a = b = c", "(a = (b = c));"},
		{"a += b * 2", "(a += (b * 2));"},
		{"a ? b : c ? d : e", "(a ? b : (c ? d : e));"},
		{"typeof a === 'x'", "((typeof a) === \"x\");"},
		{"a.b.c(d)[e]", "(a.b.c(d)[e]);"},
		{"o.#x + 1", "(o.#x + 1);"},
		{"#x in o && y", "((#x in o) && y);"},
		{"a < b == c > d", "((a < b) == (c > d));"},
		{"a instanceof B", "(a instanceof B);"},
		{"x++ + --y", "((x++) + (--y));"},
		{"new C().a()", "new C().a();"},
		{"new C", "new C();"},
		{"new a.B(1, 2)", "new a.B(1, 2);"},
	}

	for _, tt := range tests {
		program := parse(t, tt.input)
		if got := program.String(); got != tt.expected {
			t.Errorf("%q: expected=%q, got=%q", tt.input, tt.expected, got)
		}
	}
}

func TestArrowFunctions(t *testing.T) {
	tests := []struct {
		input  string
		params int
	}{
		{"x => x + 1", 1},
		{"() => 1", 0},
		{"(a, b) => { return a; }", 2},
		{"(a) => (b) => a + b", 1},
	}
	for _, tt := range tests {
		program := parse(t, tt.input)
		stmt := program.Statements[0].(*ExpressionStatement)
		fn, ok := stmt.Expression.(*FunctionLiteral)
		if !ok || !fn.IsArrow {
			t.Fatalf("%q: expected arrow function, got %T", tt.input, stmt.Expression)
		}
		if len(fn.Parameters) != tt.params {
			t.Errorf("%q: expected %d params, got %d", tt.input, tt.params, len(fn.Parameters))
		}
	}

	program := parse(t, "(a + b) * c")
	if _, ok := program.Statements[0].(*ExpressionStatement).Expression.(*InfixExpression); !ok {
		t.Errorf("grouped expression was mistaken for arrow parameters")
	}
}

func TestClassMembers(t *testing.T) {
	input := `class C extends B {
  #count = 0;
  static #instances;
  name
  constructor(n) { super(); this.name = n; }
  get #a() { return this.#count; }
  set #a(v) { this.#count = v; }
  static get total() { return 1; }
  #bump() { this.#a++; }
  get() {}
  static = 3;
  'quoted'() {}
  static { C.ready = true; }
}`
	program := parse(t, input)
	decl, ok := program.Statements[0].(*ClassDeclaration)
	if !ok {
		t.Fatalf("expected *ClassDeclaration, got %T", program.Statements[0])
	}
	class := decl.Class
	if class.Name.Value != "C" {
		t.Errorf("class name = %q", class.Name.Value)
	}
	if class.SuperClass == nil || class.SuperClass.String() != "B" {
		t.Errorf("superclass = %v", class.SuperClass)
	}

	want := []struct {
		kind    MemberKind
		static  bool
		name    string
		private bool
	}{
		{MemberField, false, "#count", true},
		{MemberField, true, "#instances", true},
		{MemberField, false, "name", false},
		{MemberConstructor, false, "constructor", false},
		{MemberGetter, false, "#a", true},
		{MemberSetter, false, "#a", true},
		{MemberGetter, true, "total", false},
		{MemberMethod, false, "#bump", true},
		{MemberMethod, false, "get", false},
		{MemberField, false, "static", false},
		{MemberMethod, false, "quoted", false},
		{MemberStaticBlock, true, "", false},
	}
	if len(class.Body.Members) != len(want) {
		t.Fatalf("expected %d members, got %d: %s", len(want), len(class.Body.Members), class)
	}
	for i, w := range want {
		m := class.Body.Members[i]
		if m.Kind != w.kind || m.Static != w.static || m.KeyName() != w.name || (m.Kind != MemberStaticBlock && m.IsPrivate() != w.private) {
			t.Errorf("member %d: got kind=%s static=%v name=%q private=%v, want %s %v %q %v",
				i, m.Kind, m.Static, m.KeyName(), m.IsPrivate(), w.kind, w.static, w.name, w.private)
		}
	}
	if class.Body.Constructor() == nil {
		t.Errorf("Constructor() returned nil")
	}
}

func TestDuplicatePrivateAccessorsStillParse(t *testing.T) {
	// Early errors for private names are not the parser's business; the
	// whole member list must reach the collector.
	program := parse(t, "class C { get #a() {} get #a() {} }")
	class := program.Statements[0].(*ClassDeclaration).Class
	if len(class.Body.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(class.Body.Members))
	}
}

func TestPrivateReferenceForms(t *testing.T) {
	program := parse(t, `
class C {
  #x = 1;
  m(o) {
    o.#x = 2;
    o.#x += 3;
    o.#x++;
    this.#f();
    return #x in o;
  }
  #f() {}
}`)
	method := program.Statements[0].(*ClassDeclaration).Class.Body.Members[1].Value
	stmts := method.Body.Statements

	assign := stmts[0].(*ExpressionStatement).Expression.(*AssignmentExpression)
	if _, ok := assign.Left.(*PrivateMemberExpression); !ok {
		t.Errorf("assignment target: got %T", assign.Left)
	}
	compound := stmts[1].(*ExpressionStatement).Expression.(*AssignmentExpression)
	if compound.Operator != "+=" {
		t.Errorf("compound operator = %q", compound.Operator)
	}
	update := stmts[2].(*ExpressionStatement).Expression.(*UpdateExpression)
	if update.Prefix {
		t.Errorf("expected postfix update")
	}
	call := stmts[3].(*ExpressionStatement).Expression.(*CallExpression)
	if pm, ok := call.Function.(*PrivateMemberExpression); !ok || pm.Property.Name != "#f" {
		t.Errorf("call callee: got %T", call.Function)
	}
	ret := stmts[4].(*ReturnStatement)
	in, ok := ret.ReturnValue.(*PrivateInExpression)
	if !ok || in.Name.Name != "#x" {
		t.Errorf("return value: got %T", ret.ReturnValue)
	}
}

func TestASI(t *testing.T) {
	program := parse(t, "let a = 1\nlet b = a\na\n++b\nreturn\n5")
	if len(program.Statements) != 6 {
		t.Fatalf("expected 6 statements, got %d: %s", len(program.Statements), program)
	}
	if _, ok := program.Statements[3].(*ExpressionStatement).Expression.(*UpdateExpression); !ok {
		t.Errorf("'++' after a line break must start a new statement")
	}
	if ret := program.Statements[4].(*ReturnStatement); ret.ReturnValue != nil {
		t.Errorf("'return' followed by a line break must not take a value")
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"let = 1;", "expected identifier"},
		{"const x;", "missing initializer"},
		{"a b", "expected ';'"},
		{"#x + 1", "unexpected private name #x"},
		{"1 = 2", "invalid left-hand side"},
		{"class C { get constructor() {} }", "may not be an accessor"},
		{"class C { constructor = 1 }", "field named 'constructor'"},
		{"class C { get #a(x) {} }", "must not have parameters"},
		{"class C { set #a() {} }", "exactly one parameter"},
		{"o.#", "expected identifier after '.'"},
		{"try {} finally {}", "'finally' blocks are not supported"},
		{"super.x", "'super' keyword unexpected here"},
		{"class { }", "class declarations require a name"},
		{"f(", "unexpected end of input"},
	}

	for _, tt := range tests {
		errs := parseErrors(tt.input)
		if len(errs) == 0 {
			t.Errorf("%q: expected an error containing %q, got none", tt.input, tt.expected)
			continue
		}
		found := false
		for _, msg := range errs {
			if strings.Contains(msg, tt.expected) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("%q: expected an error containing %q, got %v", tt.input, tt.expected, errs)
		}
	}
}

func TestErrorPositions(t *testing.T) {
	p := NewParser(lexer.NewLexer("let x = 1;\nlet = 2;"))
	_, errs := p.ParseProgram()
	if len(errs) == 0 {
		t.Fatal("expected an error")
	}
	pos := errs[0].Pos()
	if pos.Line != 2 || pos.Column != 5 {
		t.Errorf("error position = %d:%d, want 2:5", pos.Line, pos.Column)
	}
}
