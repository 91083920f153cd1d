package track

import (
	"github.com/pkg/errors"
)

var (
	ErrSwingRatio     = errors.New("swing ratios must be > 0")
	ErrSwingTooMany   = errors.New("overswung: swing has too many ratios and not enough phrase")
	ErrSwingTooMuch   = errors.New("overswung: too much swing, not enough beat")
	ErrSwingDivisible = errors.New("swing phrase doesn't divide evenly into the number of beats")
)

// Swing redistributes durations inside fixed-size phrases. The first
// len(Ratios) beats of a phrase get Ratios[i] times their nominal share, and
// the remaining beats split what is left evenly.
type Swing struct {
	Ratios []float64
	Phrase int // 0 means len(Ratios)+1
}

func (s *Swing) phrase() int {
	if s.Phrase > 0 {
		return s.Phrase
	}
	return len(s.Ratios) + 1
}

// Validate checks the swing on its own, independent of any measure.
func (s *Swing) Validate() error {
	phrase := s.phrase()
	if len(s.Ratios) >= phrase {
		return ErrSwingTooMany
	}
	var total float64
	for _, r := range s.Ratios {
		if !(r > 0) {
			return ErrSwingRatio
		}
		total += r
	}
	if total >= float64(phrase) {
		return ErrSwingTooMuch
	}
	return nil
}

// ratios returns one ratio per beat of a phrase.
func (s *Swing) ratios() []float64 {
	phrase := s.phrase()
	all := make([]float64, 0, phrase)
	all = append(all, s.Ratios...)
	var used float64
	for _, r := range s.Ratios {
		used += r
	}
	share := (float64(phrase) - used) / float64(phrase-len(s.Ratios))
	for len(all) < phrase {
		all = append(all, share)
	}
	return all
}

// Apply swings durations in place. The total duration of every phrase is
// unchanged.
func (s *Swing) Apply(durations []float64) error {
	if s == nil {
		return nil
	}
	if err := s.Validate(); err != nil {
		return err
	}
	phrase := s.phrase()
	if len(durations)%phrase != 0 {
		return errors.Wrapf(ErrSwingDivisible, "%d beats, phrase of %d", len(durations), phrase)
	}
	ratios := s.ratios()
	for i := 0; i < len(durations); i += phrase {
		chunk := durations[i : i+phrase]
		var total, swung float64
		for j, d := range chunk {
			total += d
			chunk[j] = d * ratios[j]
			swung += chunk[j]
		}
		if swung == 0 {
			continue
		}
		scale := total / swung
		for j := range chunk {
			chunk[j] *= scale
		}
	}
	return nil
}
