// Package interp turns an instruction tree into a playable track.
package interp

import (
	"github.com/pkg/errors"

	"github.com/cbegin/etcnome-go/internal/notation"
	"github.com/cbegin/etcnome-go/internal/track"
)

var (
	ErrUnknownSection = errors.New("unknown section")
	ErrRampAssign     = errors.New("cannot name a section while the tempo is changing")
	ErrRampPlay       = errors.New("cannot play a section exactly while the tempo is changing")
	ErrRampTempo      = errors.New("cannot set the tempo while the tempo is changing")
)

type interpreter struct {
	ledger *track.Ledger
	swing  *track.Swing
	named  []track.Named
	// active holds the bindings being re-interpreted, innermost last.
	// Sections named while re-interpreting are not new definitions and are
	// not recorded.
	active []*binding
}

// reinterpreting reports whether b is being re-interpreted. A name inside
// its own body then refers to the binding it shadows, so re-interpretation
// always terminates.
func (in *interpreter) reinterpreting(b *binding) bool {
	for _, a := range in.active {
		if a == b {
			return true
		}
	}
	return false
}

// Interpret builds the track described by block. When sel is non-nil the
// track's Section is the innermost named section containing it, and its
// beats are filtered by sel. Interpretation is all or nothing: on error no
// track is returned.
func Interpret(block *notation.Block, sel *track.Range) (*track.Track, error) {
	if err := notation.Validate(block); err != nil {
		return nil, err
	}
	in := &interpreter{ledger: track.NewLedger()}
	def, err := in.block(block, nil)
	if err != nil {
		return nil, err
	}
	t := &track.Track{Default: def, Named: in.named, Range: sel}
	t.Section = t.PickSection(sel)
	return t, nil
}

// block evaluates instructions in order. The block's range covers all of
// its instructions.
func (in *interpreter) block(b *notation.Block, sc *scope) (*track.SectionList, error) {
	var children []track.Section
	span := b.Span
	for i := range b.Instrs {
		instr := &b.Instrs[i]
		if i == 0 {
			span = instr.Span
		} else {
			span = span.Merge(instr.Span)
		}
		switch instr.Kind {
		case notation.KindTempo, notation.KindRamp, notation.KindATempo, notation.KindSwing:
			if err := in.directive(instr); err != nil {
				return nil, err
			}
		case notation.KindAssign:
			next, err := in.assign(instr, sc)
			if err != nil {
				return nil, err
			}
			sc = next
		default:
			s, err := in.section(instr, sc)
			if err != nil {
				return nil, err
			}
			children = append(children, s)
		}
	}
	return track.NewSectionList(children, rangeOf(span), false), nil
}

func (in *interpreter) directive(instr *notation.Instr) error {
	switch instr.Kind {
	case notation.KindTempo:
		if in.ledger.Ramping() {
			return errorAt(instr.Span, ErrRampTempo)
		}
		bpm := instr.BPM
		if instr.Relative {
			cur, err := in.ledger.Current()
			if err != nil {
				return errorAt(instr.Span, err)
			}
			bpm *= cur
		}
		if err := in.ledger.Push(bpm); err != nil {
			return errorAt(instr.Span, err)
		}
	case notation.KindRamp:
		target := instr.BPM
		if instr.Relative {
			cur, err := in.ledger.Current()
			if err != nil {
				return errorAt(instr.Span, err)
			}
			target *= cur
		}
		if err := in.ledger.BeginRamp(target, instr.Beats, instr.Delay); err != nil {
			return errorAt(instr.Span, err)
		}
	case notation.KindATempo:
		if _, err := in.ledger.PopToPrevious(); err != nil {
			return errorAt(instr.Span, err)
		}
	case notation.KindSwing:
		if len(instr.Ratios) == 0 {
			in.swing = nil
			return nil
		}
		sw := &track.Swing{Ratios: append([]float64(nil), instr.Ratios...), Phrase: instr.Phrase}
		if err := sw.Validate(); err != nil {
			return errorAt(instr.Span, err)
		}
		in.swing = sw
	}
	return nil
}

func (in *interpreter) assign(instr *notation.Instr, sc *scope) (*scope, error) {
	if len(in.active) == 0 && in.ledger.Ramping() {
		return nil, errorAt(instr.Span, ErrRampAssign)
	}
	s, err := in.section(instr.Body, sc)
	if err != nil {
		return nil, err
	}
	if len(in.active) == 0 {
		in.named = append(in.named, track.Named{
			Name:    instr.Name,
			Section: s,
			Range:   rangeOf(instr.Span),
			Source:  *instr.Body,
		})
	}
	return sc.with(instr.Name, &binding{section: s, source: *instr.Body}), nil
}

func (in *interpreter) section(instr *notation.Instr, sc *scope) (track.Section, error) {
	r := rangeOf(instr.Span)
	switch instr.Kind {
	case notation.KindMeasure:
		m, err := track.NewMeasure(in.ledger, in.swing, instr.Rhythms, instr.Denom, r)
		if err != nil {
			return nil, errorAt(instr.Span, err)
		}
		return m, nil
	case notation.KindBeatList:
		specs := make([]track.BeatSpec, len(instr.BeatSpecs))
		for i, b := range instr.BeatSpecs {
			specs[i] = track.BeatSpec{Intensity: intensity(b.Intensity), Duration: b.Duration, Relative: b.Relative}
		}
		bl, err := track.NewBeatList(in.ledger, specs, r)
		if err != nil {
			return nil, errorAt(instr.Span, err)
		}
		return bl, nil
	case notation.KindBlock:
		l, err := in.block(instr.Block, sc)
		if err != nil {
			return nil, err
		}
		return l, nil
	case notation.KindRepeat:
		child, err := in.section(instr.Body, sc)
		if err != nil {
			return nil, err
		}
		return track.NewRepeating(child, instr.Count, r), nil
	case notation.KindPlay:
		if in.ledger.Ramping() {
			return nil, errorAt(instr.Span, ErrRampPlay)
		}
		b, ok := sc.lookup(instr.Name, in.reinterpreting)
		if !ok {
			return nil, errorAt(instr.Span, errors.Wrapf(ErrUnknownSection, "%q", instr.Name))
		}
		return track.NewSectionList([]track.Section{b.section}, r, true), nil
	case notation.KindReinterpret:
		b, ok := sc.lookup(instr.Name, in.reinterpreting)
		if !ok {
			return nil, errorAt(instr.Span, errors.Wrapf(ErrUnknownSection, "%q", instr.Name))
		}
		// names in the body resolve where it is used, not where it was defined
		in.active = append(in.active, b)
		s, err := in.section(&b.source, sc)
		in.active = in.active[:len(in.active)-1]
		if err != nil {
			return nil, err
		}
		return track.NewSectionList([]track.Section{s}, r, true), nil
	}
	return nil, errorfAt(instr.Span, "%s is not a section", instr.Kind)
}

func intensity(i notation.Intensity) track.Intensity {
	switch i {
	case notation.High:
		return track.IntensityHigh
	case notation.Mid:
		return track.IntensityMid
	}
	return track.IntensityLow
}
