package track

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

var ErrMeter = errors.New("malformed meter")

const (
	weakestTone = 2.0
	maxChunks   = 1 << 16
)

// Measure is a single bar in a (possibly additive, compound or polyrhythmic)
// meter. Its beats are fixed when it is built.
type Measure struct {
	id      int64
	Rhythms [][]int
	Denom   int
	BPM     float64
	Swing   *Swing
	span    Range
	steps   []step
}

func (m *Measure) ID() int64    { return m.id }
func (m *Measure) Range() Range { return m.span }
func (*Measure) isSection()     {}

// Len returns the number of beats in the measure.
func (m *Measure) Len() int { return len(m.steps) }

// NewMeasure expands a meter at the ledger's current tempo. rhythms holds one
// additive beat list per voice of a polyrhythm, e.g. 4:2+3/4 is
// [[4] [2 3]] over 4. Swing and any ramp in the ledger are applied here, once.
func NewMeasure(ledger *Ledger, swing *Swing, rhythms [][]int, denom int, r Range) (*Measure, error) {
	if err := validateMeter(rhythms, denom); err != nil {
		return nil, err
	}
	bpm, err := ledger.Current()
	if err != nil {
		return nil, err
	}
	steps, err := expandMeter(bpm, rhythms, denom)
	if err != nil {
		return nil, err
	}

	durations := make([]float64, len(steps))
	for i, st := range steps {
		durations[i] = st.duration
	}
	if err := swing.Apply(durations); err != nil {
		return nil, err
	}
	// swing first, then let a ramp bend the swung durations
	for i := range steps {
		steps[i].duration = ledger.Consume(durations[i])
	}

	return &Measure{
		id:      nextSectionID(),
		Rhythms: rhythms,
		Denom:   denom,
		BPM:     bpm,
		Swing:   swing,
		span:    r,
		steps:   steps,
	}, nil
}

func validateMeter(rhythms [][]int, denom int) error {
	if denom <= 0 {
		return errors.Wrapf(ErrMeter, "denominator %d", denom)
	}
	if len(rhythms) == 0 {
		return errors.Wrap(ErrMeter, "no beats")
	}
	for _, rhythm := range rhythms {
		if len(rhythm) == 0 {
			return errors.Wrap(ErrMeter, "empty rhythm")
		}
		for _, n := range rhythm {
			if n <= 0 {
				return errors.Wrapf(ErrMeter, "beat count %d", n)
			}
		}
	}
	return nil
}

// compoundToAdditive rewrites a compound meter such as 6/8 as the additive
// meter of its implied emphasis (3+3/8). Anything else is returned as is.
func compoundToAdditive(rhythm []int, denom int) []int {
	if len(rhythm) > 1 || denom&(denom-1) != 0 || rhythm[0]%3 != 0 {
		return rhythm
	}
	out := make([]int, rhythm[0]/3)
	for i := range out {
		out[i] = 3
	}
	return out
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// expandMeter lays every rhythm of the meter over a shared grid of chunks
// and emits one step per chunk on which any rhythm plays.
func expandMeter(bpm float64, rhythms [][]int, denom int) ([]step, error) {
	totalChunks := 1
	for _, rhythm := range rhythms {
		n := sum(rhythm)
		totalChunks = totalChunks / gcd(totalChunks, n) * n
		if totalChunks > maxChunks {
			return nil, errors.Wrap(ErrMeter, "polyrhythm is too complex")
		}
	}

	chunks := make(map[int]*Sound)
	emphasized := 1.0
	nonEmphasized := 0.0
	volume := 1.0
	volumeStep := 0.5 / float64(len(rhythms))
	for instr, rhythm := range rhythms {
		rhythm = compoundToAdditive(rhythm, denom)
		beatChunks := totalChunks / sum(rhythm)
		chunk := 0
		for _, group := range rhythm {
			for i := 0; i < group; i++ {
				snd, ok := chunks[chunk]
				if !ok {
					snd = &Sound{Tone: weakestTone, Volume: volume, Instrument: instr}
					chunks[chunk] = snd
				}
				// the first beat of each group is emphasized
				if i == 0 {
					snd.Tone -= emphasized
				} else {
					snd.Tone -= nonEmphasized
				}
				chunk += beatChunks
			}
		}
		emphasized /= 2
		nonEmphasized = -(1 - math.Pow(0.9, float64(instr+1)))
		volume -= volumeStep
	}
	// the downbeat is always the strongest
	chunks[0].Tone = 0

	barDuration := float64(sum(rhythms[0])) * (60 / bpm) * (4 / float64(denom))
	chunkDuration := barDuration / float64(totalChunks)

	played := make([]int, 0, len(chunks))
	for chunk := range chunks {
		played = append(played, chunk)
	}
	slices.Sort(played)
	steps := make([]step, 0, len(played))
	for i, chunk := range played {
		end := totalChunks
		if i+1 < len(played) {
			end = played[i+1]
		}
		steps = append(steps, step{
			duration: float64(end-chunk) * chunkDuration,
			sound:    *chunks[chunk],
		})
	}
	return steps, nil
}
