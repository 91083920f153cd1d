package track

import (
	"github.com/pkg/errors"
)

var ErrRelativeWithoutBPM = errors.New("beat list requires positive BPM to use relative durations")

type Intensity int

const (
	IntensityHigh Intensity = iota
	IntensityMid
	IntensityLow
)

func (i Intensity) tone() float64 {
	switch i {
	case IntensityHigh:
		return 0
	case IntensityMid:
		return 1
	default:
		return 2
	}
}

// BeatSpec is one author-specified beat. Relative durations are measured in
// beats at the prevailing tempo, others in seconds.
type BeatSpec struct {
	Intensity Intensity
	Duration  float64
	Relative  bool
}

// BeatList plays an explicit list of beats.
type BeatList struct {
	id    int64
	Beats []BeatSpec
	span  Range
	steps []step
}

func (b *BeatList) ID() int64    { return b.id }
func (b *BeatList) Range() Range { return b.span }
func (*BeatList) isSection()     {}

// NewBeatList resolves beat durations against the ledger. Relative beats are
// bent by an active ramp; exact ones are not.
func NewBeatList(ledger *Ledger, beats []BeatSpec, r Range) (*BeatList, error) {
	steps := make([]step, 0, len(beats))
	for _, spec := range beats {
		duration := spec.Duration
		if duration < 0 {
			return nil, errors.Errorf("beat duration must not be negative, got %v", duration)
		}
		if spec.Relative {
			bpm, err := ledger.Current()
			if err != nil {
				return nil, ErrRelativeWithoutBPM
			}
			duration = ledger.Consume(duration * 60 / bpm)
		}
		steps = append(steps, step{
			duration: duration,
			sound:    Sound{Tone: spec.Intensity.tone(), Volume: 1, Instrument: 0},
		})
	}
	return &BeatList{id: nextSectionID(), Beats: beats, span: r, steps: steps}, nil
}
