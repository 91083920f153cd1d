package track

import "sync/atomic"

// Sound describes the click a beat plays. Tone 0 is the strongest emphasis;
// larger values are progressively weaker.
type Sound struct {
	Tone       float64 `json:"tone"`
	Volume     float64 `json:"volume"`
	Instrument int     `json:"instrument"`
}

// Frame records how far a single section has progressed.
type Frame struct {
	ID  int64 `json:"id"`
	Pos int   `json:"pos"`
}

// Progress is an explicit cursor into a section tree: one frame per section
// on the path from the root to the leaf that produced a beat, outermost first.
// A nil Progress means "start from the beginning".
type Progress []Frame

// Beat is a single sound event produced by a section.
type Beat struct {
	Duration float64
	Sound    Sound
	Range    Range
	Progress Progress
}

// Section is one of *Measure, *BeatList, *SectionList or *Repeating.
type Section interface {
	ID() int64
	Range() Range
	isSection()
}

var lastSectionID atomic.Int64

func nextSectionID() int64 {
	return lastSectionID.Add(1)
}

type step struct {
	duration float64
	sound    Sound
}

// SectionList plays its children in order.
type SectionList struct {
	id       int64
	Children []Section
	span     Range
	forced   bool
}

// NewSectionList returns a list spanning r. When forced is set every beat
// the list produces is re-tagged with r instead of its leaf's own range.
func NewSectionList(children []Section, r Range, forced bool) *SectionList {
	return &SectionList{id: nextSectionID(), Children: children, span: r, forced: forced}
}

func (s *SectionList) ID() int64    { return s.id }
func (s *SectionList) Range() Range { return s.span }
func (s *SectionList) Forced() bool { return s.forced }
func (*SectionList) isSection()     {}

// Repeating plays Child Count times. Beats from every pass after the first
// carry the range of the whole repetition.
type Repeating struct {
	id    int64
	Child Section
	Count int
	span  Range
}

func NewRepeating(child Section, count int, r Range) *Repeating {
	return &Repeating{id: nextSectionID(), Child: child, Count: count, span: r}
}

func (s *Repeating) ID() int64    { return s.id }
func (s *Repeating) Range() Range { return s.span }
func (*Repeating) isSection()     {}

// Next derives the beat that follows prev in s. It returns false once s is
// exhausted, or immediately if s plays nothing. Next never mutates s.
func Next(s Section, prev Progress) (Beat, bool) {
	var own *Frame
	var rest Progress
	if len(prev) > 0 && prev[0].ID == s.ID() {
		own = &prev[0]
		rest = prev[1:]
	}
	switch s := s.(type) {
	case *Measure:
		return nextStep(s.id, s.steps, s.span, own)
	case *BeatList:
		return nextStep(s.id, s.steps, s.span, own)
	case *SectionList:
		return s.next(own, rest)
	case *Repeating:
		return s.next(own, rest)
	}
	return Beat{}, false
}

func nextStep(id int64, steps []step, r Range, own *Frame) (Beat, bool) {
	idx := 0
	if own != nil {
		idx = own.Pos + 1
	}
	if idx >= len(steps) {
		return Beat{}, false
	}
	st := steps[idx]
	return Beat{
		Duration: st.duration,
		Sound:    st.sound,
		Range:    r,
		Progress: Progress{{ID: id, Pos: idx}},
	}, true
}

func (s *SectionList) next(own *Frame, rest Progress) (Beat, bool) {
	idx := 0
	var childPrev Progress
	if own != nil {
		idx = own.Pos
		childPrev = rest
	}
	for ; idx < len(s.Children); idx++ {
		if b, ok := Next(s.Children[idx], childPrev); ok {
			if s.forced {
				b.Range = s.span
			}
			b.Progress = wrapProgress(s.id, idx, b.Progress)
			return b, true
		}
		childPrev = nil
	}
	return Beat{}, false
}

func (s *Repeating) next(own *Frame, rest Progress) (Beat, bool) {
	remaining := s.Count
	var childPrev Progress
	if own != nil {
		remaining = own.Pos
		childPrev = rest
	}
	if remaining <= 0 {
		return Beat{}, false
	}
	b, ok := Next(s.Child, childPrev)
	for !ok {
		remaining--
		if remaining <= 0 {
			return Beat{}, false
		}
		b, ok = Next(s.Child, nil)
	}
	if remaining < s.Count {
		b.Range = s.span
	}
	b.Progress = wrapProgress(s.id, remaining, b.Progress)
	return b, true
}

func wrapProgress(id int64, pos int, inner Progress) Progress {
	out := make(Progress, 0, len(inner)+1)
	out = append(out, Frame{ID: id, Pos: pos})
	return append(out, inner...)
}

// Clone returns a copy of p that shares no storage with it.
func (p Progress) Clone() Progress {
	if p == nil {
		return nil
	}
	out := make(Progress, len(p))
	copy(out, p)
	return out
}
