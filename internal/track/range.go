package track

import "fmt"

// Location is a position in the source text. Lines start at 1, columns at 0.
type Location struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Before reports whether l is at or before other.
func (l Location) Before(other Location) bool {
	return l.Line < other.Line || (l.Line == other.Line && l.Col <= other.Col)
}

// After reports whether l is at or after other.
func (l Location) After(other Location) bool {
	return l.Line > other.Line || (l.Line == other.Line && l.Col >= other.Col)
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Col)
}

// Range is a span of source text. End is exclusive.
type Range struct {
	Start Location `json:"start"`
	End   Location `json:"end"`
}

func NewRange(startLine, startCol, endLine, endCol int) Range {
	return Range{Start: Location{startLine, startCol}, End: Location{endLine, endCol}}
}

// Contains reports whether other lies entirely inside r.
func (r Range) Contains(other Range) bool {
	return r.Start.Before(other.Start) && r.End.After(other.End)
}

// Merge returns the smallest range covering both r and other.
func (r Range) Merge(other Range) Range {
	out := r
	if !r.Start.Before(other.Start) {
		out.Start = other.Start
	}
	if !r.End.After(other.End) {
		out.End = other.End
	}
	return out
}

func (r Range) String() string {
	return fmt.Sprintf("[%s,%s)", r.Start, r.End)
}
