package track

import "github.com/cbegin/etcnome-go/internal/notation"

// Named is a section bound to a name by an assignment.
type Named struct {
	Name    string
	Section Section
	// Range covers the whole assignment.
	Range Range
	// Source is the assigned subtree, kept for re-interpretation.
	Source notation.Instr
}

// Track is the result of interpreting a program.
type Track struct {
	Default Section
	Named   []Named

	// Section is what should play: Default, or the named section picked by a
	// selection. Range is the selection, if any, and filters Section's beats.
	Section Section
	Range   *Range
}

// PickSection returns the most deeply nested section whose range contains
// sel. Without a selection, or when nothing contains it, the default section
// is returned.
func (t *Track) PickSection(sel *Range) Section {
	if sel == nil {
		return t.Default
	}
	best := t.Default
	bestRange := t.Default.Range()
	for _, n := range t.Named {
		if !n.Range.Contains(*sel) {
			continue
		}
		if !bestRange.Contains(*sel) || bestRange.Contains(n.Range) {
			best = n.Section
			bestRange = n.Range
		}
	}
	return best
}

// Cursor returns a cursor over the picked section, filtered by the selection.
func (t *Track) Cursor() *Cursor {
	return NewCursor(t.Section, t.Range, 0)
}

// WholeCursor returns an unfiltered cursor over the default section.
func (t *Track) WholeCursor() *Cursor {
	return NewCursor(t.Default, nil, 0)
}
