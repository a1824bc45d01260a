package lsp

import (
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

func codeOf(d protocol.Diagnostic) string {
	if d.Code == nil {
		return ""
	}
	s, _ := d.Code.Value.(string)
	return s
}

func TestDiagnose(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode []string
		wantLine uint32
	}{
		{"clean", "class C { get #a() {} set #a(v) {} }", nil, 0},
		{"duplicate getter", "let x = 1;\nclass C { get #a() {} get #a() {} }", []string{"DuplicatePrivateName"}, 1},
		{"unresolved", "function f(o) {\n  return o.#a;\n}", []string{"UnresolvedPrivateName"}, 1},
		{"every duplicate reported", "class C { #a; #a; #b; #b; }", []string{"DuplicatePrivateName", "DuplicatePrivateName"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := Diagnose("file:///tmp/test.js", tt.input, 64)
			if len(diags) != len(tt.wantCode) {
				t.Fatalf("got %d diagnostics %+v, want %d", len(diags), diags, len(tt.wantCode))
			}
			for i, d := range diags {
				if got := codeOf(d); got != tt.wantCode[i] {
					t.Errorf("diagnostic %d: code %q, want %q", i, got, tt.wantCode[i])
				}
				if d.Source == nil || *d.Source != DiagnosticSource {
					t.Errorf("diagnostic %d: missing source", i)
				}
				if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
					t.Errorf("diagnostic %d: severity %v", i, d.Severity)
				}
			}
			if len(diags) > 0 && diags[0].Range.Start.Line != tt.wantLine {
				t.Errorf("first diagnostic on line %d, want %d", diags[0].Range.Start.Line, tt.wantLine)
			}
		})
	}
}

func TestDiagnoseSyntaxError(t *testing.T) {
	diags := Diagnose("file:///tmp/test.js", "let = ;", 64)
	if len(diags) == 0 {
		t.Fatal("expected a syntax diagnostic")
	}
	if got := codeOf(diags[0]); got != "Syntax" {
		t.Errorf("code %q, want Syntax", got)
	}
}

func TestToLspPositionCountsUTF16(t *testing.T) {
	lines := []string{`let s = "😀"; x`}
	// Column 14 (runes) is the x; the emoji takes two UTF-16 units.
	got := toLspPosition(lines, 1, 14)
	if got.Line != 0 || got.Character != 14 {
		t.Errorf("got %+v, want line 0 character 14", got)
	}
	if got := toLspPosition(lines, 5, 1); got != (protocol.Position{}) {
		t.Errorf("out-of-range line: got %+v", got)
	}
}

func TestUriToPath(t *testing.T) {
	tests := map[string]string{
		"file:///tmp/a%20b.js": "/tmp/a b.js",
		"untitled:Untitled-1":  "",
	}
	for uri, want := range tests {
		if got := UriToPath(uri); got != want {
			t.Errorf("UriToPath(%q) = %q, want %q", uri, got, want)
		}
	}
}

func TestStore(t *testing.T) {
	s := NewStore()
	s.Set("a", "1")
	if got, ok := s.Get("a"); !ok || got != "1" {
		t.Errorf("Get(a) = %q, %v", got, ok)
	}
	s.Delete("a")
	if _, ok := s.Get("a"); ok {
		t.Error("Get(a) after Delete should miss")
	}
}
