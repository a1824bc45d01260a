package errors

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/width"
)

// DisplayErrors prints errs to w in a user-friendly format: the error line,
// the offending source line, and a caret under the reported column.
// source is used when an error carries no SourceFile of its own.
func DisplayErrors(w io.Writer, source string, errs []SigilError) {
	if len(errs) == 0 {
		return
	}
	lines := strings.Split(source, "\n")

	for _, err := range errs {
		pos := err.Pos()
		kind := err.Kind()
		msg := err.Message()

		var sourceLine string
		switch {
		case pos.Source != nil:
			sourceLine = pos.Source.Line(pos.Line)
		case pos.Line >= 1 && pos.Line <= len(lines):
			sourceLine = strings.TrimRight(lines[pos.Line-1], "\r")
		default:
			fmt.Fprintf(w, "%s Error: %s\n", kind, msg)
			continue
		}

		location := fmt.Sprintf("%d:%d", pos.Line, pos.Column)
		if pos.Source != nil && pos.Source.IsFile() {
			location = pos.Source.DisplayPath() + ":" + location
		}
		fmt.Fprintf(w, "%s Error at %s: %s\n", kind, location, msg)
		fmt.Fprintf(w, "  %s\n", strings.TrimRight(sourceLine, "\t "))
		fmt.Fprintf(w, "  %s^\n", caretPadding(sourceLine, pos.Column))
		fmt.Fprintln(w)
	}
}

// caretPadding returns the whitespace that puts a caret under the 1-based
// rune column col of line. Tabs are kept so terminals expand them the same
// way in both lines; wide runes take two cells.
func caretPadding(line string, col int) string {
	var b strings.Builder
	i := 1
	for _, r := range line {
		if i >= col {
			break
		}
		switch {
		case r == '\t':
			b.WriteByte('\t')
		case isWide(r):
			b.WriteString("  ")
		default:
			b.WriteByte(' ')
		}
		i++
	}
	for ; i < col; i++ {
		b.WriteByte(' ')
	}
	return b.String()
}

func isWide(r rune) bool {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return true
	}
	return false
}
