package errors

import (
	"bytes"
	"strings"
	"testing"

	"sigil/pkg/source"
)

func TestCaretPadding(t *testing.T) {
	tests := []struct {
		line string
		col  int
		want string
	}{
		{"let x = 1;", 1, ""},
		{"let x = 1;", 5, "    "},
		{"\tfoo", 2, "\t"},
		{"名前 = 1", 3, "    "},
		{"ab", 5, "    "},
	}
	for _, tt := range tests {
		if got := caretPadding(tt.line, tt.col); got != tt.want {
			t.Errorf("caretPadding(%q, %d) = %q, want %q", tt.line, tt.col, got, tt.want)
		}
	}
}

func TestDisplayErrors(t *testing.T) {
	src := "class C {\n  get #a() {}\n  get #a() {}\n}"
	sf := source.NewSourceFile("dup.js", "testdata/dup.js", src)
	errs := []SigilError{
		&SyntaxError{Position: Position{Line: 3, Column: 7, Source: sf}, Msg: "duplicate private name '#a'"},
		&RuntimeError{Position: Position{Line: 0}, Msg: "no position"},
	}

	var out bytes.Buffer
	DisplayErrors(&out, src, errs)
	got := out.String()

	for _, want := range []string{
		"Syntax Error at testdata/dup.js:3:7: duplicate private name '#a'",
		"    get #a() {}",
		"        ^",
		"Runtime Error: no position",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
