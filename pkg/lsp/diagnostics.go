// Package lsp turns sigil's early errors into Language Server Protocol
// diagnostics.
package lsp

import (
	stderrors "errors"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"sigil/pkg/compiler"
	"sigil/pkg/errors"
	"sigil/pkg/lexer"
	"sigil/pkg/parser"
	"sigil/pkg/privatename"
	"sigil/pkg/source"
)

// DiagnosticSource names sigil in every published diagnostic.
const DiagnosticSource = "sigil"

// Check parses and compiles text without running it and returns every
// early error: syntax errors first, then private-name and compile errors.
func Check(name, text string, maxClassNesting int) []errors.SigilError {
	sf := source.NewSourceFile(name, UriToPath(name), text)
	program, errs := parser.NewParser(lexer.NewLexerWithSource(sf)).ParseProgram()
	if len(errs) > 0 {
		return errs
	}
	_, errs = compiler.NewCompiler(compiler.Options{MaxClassNesting: maxClassNesting}).Compile(program)
	return errs
}

// Diagnose is Check followed by ToLspDiagnostics.
func Diagnose(uri, text string, maxClassNesting int) []protocol.Diagnostic {
	return ToLspDiagnostics(text, Check(uri, text, maxClassNesting))
}

// ToLspDiagnostics converts errors located in text. LSP positions are
// 0-based and count UTF-16 code units; sigil's columns count runes.
func ToLspDiagnostics(text string, errs []errors.SigilError) []protocol.Diagnostic {
	lines := strings.Split(text, "\n")
	out := make([]protocol.Diagnostic, 0, len(errs))
	for _, err := range errs {
		pos := err.Pos()
		start := toLspPosition(lines, pos.Line, pos.Column)
		end := start
		if n := spanLength(text, pos); n > 0 {
			end.Character = start.Character + n
		} else {
			end.Character = start.Character + 1
		}

		severity := protocol.DiagnosticSeverityError
		d := protocol.Diagnostic{
			Range:    protocol.Range{Start: start, End: end},
			Severity: &severity,
			Source:   ptrString(DiagnosticSource),
			Message:  err.Message(),
		}
		if code := diagnosticCode(err); code != "" {
			d.Code = &protocol.IntegerOrString{Value: code}
		}
		out = append(out, d)
	}
	return out
}

// diagnosticCode is the privatename code for private-name errors and the
// error kind otherwise.
func diagnosticCode(err errors.SigilError) string {
	var perr *privatename.Error
	if stderrors.As(err, &perr) {
		return perr.Code.String()
	}
	return err.Kind()
}

func toLspPosition(lines []string, line1, col1 int) protocol.Position {
	if line1 < 1 || line1 > len(lines) {
		return protocol.Position{}
	}
	var char uint32
	col := 1
	for _, r := range lines[line1-1] {
		if col >= col1 {
			break
		}
		char += utf16Len(r)
		col++
	}
	return protocol.Position{Line: uint32(line1 - 1), Character: char}
}

// spanLength is the UTF-16 length of the error's byte span when it stays
// on one line.
func spanLength(text string, pos errors.Position) uint32 {
	if pos.EndPos <= pos.StartPos || pos.EndPos > len(text) {
		return 0
	}
	span := text[pos.StartPos:pos.EndPos]
	if strings.Contains(span, "\n") || !utf8.ValidString(span) {
		return 0
	}
	var n uint32
	for _, r := range span {
		n += utf16Len(r)
	}
	return n
}

func utf16Len(r rune) uint32 {
	n := utf16.RuneLen(r)
	if n < 0 {
		n = 1
	}
	return uint32(n)
}

func UriToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return ""
	}
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	pth, err := url.PathUnescape(u.Path)
	if err != nil {
		return ""
	}
	return filepath.FromSlash(pth)
}

func ptrString(s string) *string { return &s }
