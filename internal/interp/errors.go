package interp

import (
	"fmt"

	"github.com/cbegin/etcnome-go/internal/notation"
	"github.com/cbegin/etcnome-go/internal/track"
)

// Error is a semantic error found while interpreting a program. Err, when
// set, is the underlying cause and can be matched with errors.Is.
type Error struct {
	Range track.Range
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Range.Start, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func rangeOf(s notation.Span) track.Range {
	return track.NewRange(s.StartLine, s.StartCol, s.EndLine, s.EndCol)
}

func errorAt(s notation.Span, err error) *Error {
	return &Error{Range: rangeOf(s), Msg: err.Error(), Err: err}
}

func errorfAt(s notation.Span, format string, args ...any) *Error {
	return &Error{Range: rangeOf(s), Msg: fmt.Sprintf(format, args...)}
}
