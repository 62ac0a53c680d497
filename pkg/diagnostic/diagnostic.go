// Package diagnostic renders the single fatal compile error a run may produce.
package diagnostic

import (
	"fmt"
	"strings"
)

// Error carries everything needed to render the caret-ruler diagnostic
// described by the CLI contract: the offending byte offset and span inside
// the full source text, plus a human-readable message.
type Error struct {
	Source  string // the full source text, for locating the offending line
	Offset  int    // byte offset of the first offending character
	Span    int    // number of characters to underline, minimum 1
	Message string
}

func At(source string, offset, span int, format string, args ...any) *Error {
	if span < 1 {
		span = 1
	}
	return &Error{Source: source, Offset: offset, Span: span, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Message
}

// Render produces the two-line diagnostic specified in the CLI contract:
// the source line the offset falls on, followed by a caret ruler under the
// offending span.
func (e *Error) Render() string {
	line, col := lineAndColumn(e.Source, e.Offset)

	var b strings.Builder
	fmt.Fprintf(&b, "error: %s\n", line)
	b.WriteString(strings.Repeat(" ", col+7)) // align under "error: "
	b.WriteString(strings.Repeat("^", e.Span))
	b.WriteString(" ")
	b.WriteString(e.Message)
	return b.String()
}

// lineAndColumn finds the source line containing offset and the column (in
// bytes) within that line where offset falls.
func lineAndColumn(source string, offset int) (string, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(source) {
		offset = len(source)
	}

	start := strings.LastIndexByte(source[:offset], '\n') + 1 // 0 if no newline found
	end := len(source)
	if idx := strings.IndexByte(source[offset:], '\n'); idx >= 0 {
		end = offset + idx
	}

	return source[start:end], offset - start
}
