package errors

import "sigil/pkg/source"

// Position represents a specific location in the source code.
// Line and Column are 1-based for humans; StartPos/EndPos are 0-based byte
// offsets for tooling.
type Position struct {
	Line     int                // 1-based line number
	Column   int                // 1-based column number (rune index within the line)
	StartPos int                // 0-based byte offset of the start of the span
	EndPos   int                // 0-based byte offset of the end of the span (exclusive)
	Source   *source.SourceFile // Reference to the source file, may be nil
}

// IsValid reports whether the position points at an actual line.
func (p Position) IsValid() bool {
	return p.Line > 0
}
