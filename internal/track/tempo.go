package track

import (
	"math"

	"github.com/pkg/errors"
)

var (
	ErrInvalidBPM     = errors.New("BPM must be a positive number")
	ErrNoTempo        = errors.New("no tempo has been set")
	ErrNoPrevious     = errors.New("no previous tempo to return to")
	ErrRampActive     = errors.New("a tempo change is still in progress")
	ErrRampDelay      = errors.New("cannot delay the onset of a tempo change beyond the end of the change")
	ErrRampBeats      = errors.New("a tempo change must last a positive number of beats")
	ErrRampTargetBPM  = errors.New("tempo change target must be a positive number")
	ErrRampInProgress = errors.New("cannot start a tempo change while another is in progress")
)

// rampEpsilon absorbs floating point residue when a ramp is consumed exactly.
const rampEpsilon = 1e-9

// Ramp is a linear tempo change over a number of beats, optionally delayed.
type Ramp struct {
	Initial        float64 // tempo durations handed to Consume were computed at
	Target         float64
	BPM            float64 // tempo reached so far
	BeatsRemaining float64 // beats left in the changing part
	Delay          float64 // beats left before the change starts
}

func (r *Ramp) complete() bool {
	return r.Delay <= rampEpsilon && r.BeatsRemaining <= rampEpsilon
}

// elapsed returns the minutes spent playing x beats of the changing part, the
// definite integral of 1/bpm over [0, x] where bpm moves linearly from r.BPM
// to r.Target across r.BeatsRemaining beats.
func (r *Ramp) elapsed(x float64) float64 {
	n := r.BeatsRemaining
	bpm0 := r.BPM
	bpmN := r.Target
	if x <= 0 {
		return 0
	}
	if math.Abs(bpmN-bpm0) < rampEpsilon {
		return x / bpm0
	}
	// ∫ 1/(bpm0 + x(bpmN-bpm0)/n) dx = n/(bpmN-bpm0) * ln(bpm0*n - bpm0*x + bpmN*x)
	antiderivative := func(x float64) float64 {
		return n * math.Log(bpm0*n-bpm0*x+bpmN*x) / (bpmN - bpm0)
	}
	return antiderivative(x) - antiderivative(0)
}

// Ledger tracks the prevailing tempo while a track is interpreted.
type Ledger struct {
	vals []float64
	ramp *Ramp
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Push makes bpm the current tempo.
func (l *Ledger) Push(bpm float64) error {
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return errors.Wrapf(ErrInvalidBPM, "got %v", bpm)
	}
	l.vals = append(l.vals, bpm)
	return nil
}

// Current returns the tempo on top of the stack. It does not reflect a ramp in
// progress: durations are computed at Current and bent by Consume.
func (l *Ledger) Current() (float64, error) {
	if len(l.vals) == 0 {
		return 0, ErrNoTempo
	}
	return l.vals[len(l.vals)-1], nil
}

// HasTempo reports whether any tempo has been set.
func (l *Ledger) HasTempo() bool {
	return len(l.vals) > 0
}

// PopToPrevious restores the tempo in effect before the most recent change.
func (l *Ledger) PopToPrevious() (float64, error) {
	if l.Ramping() {
		return 0, ErrRampActive
	}
	if len(l.vals) < 2 {
		return 0, ErrNoPrevious
	}
	l.vals = l.vals[:len(l.vals)-1]
	return l.Current()
}

// Ramping reports whether a tempo change is in progress.
func (l *Ledger) Ramping() bool {
	return l.ramp != nil
}

// Ramp returns a copy of the active ramp, if any.
func (l *Ledger) Ramp() (Ramp, bool) {
	if l.ramp == nil {
		return Ramp{}, false
	}
	return *l.ramp, true
}

// BeginRamp starts a linear change from the current tempo to target that is
// reached numBeats beats from now, the first delay of which stay at the
// current tempo.
func (l *Ledger) BeginRamp(target, numBeats, delay float64) error {
	if l.ramp != nil {
		return ErrRampInProgress
	}
	if !(target > 0) || math.IsInf(target, 0) {
		return errors.Wrapf(ErrRampTargetBPM, "got %v", target)
	}
	if !(numBeats > 0) {
		return errors.Wrapf(ErrRampBeats, "got %v", numBeats)
	}
	if delay < 0 {
		delay = 0
	}
	if delay > numBeats {
		return ErrRampDelay
	}
	initial, err := l.Current()
	if err != nil {
		return err
	}
	l.ramp = &Ramp{
		Initial:        initial,
		Target:         target,
		BPM:            initial,
		BeatsRemaining: numBeats - delay,
		Delay:          delay,
	}
	if l.ramp.complete() {
		l.commit()
	}
	return nil
}

// Consume converts a duration computed at the pre-ramp tempo into the time
// that actually passes under the active ramp, and advances the ramp by the
// beats it covers. Without a ramp the duration is returned unchanged.
func (l *Ledger) Consume(nominal float64) float64 {
	r := l.ramp
	if r == nil {
		return nominal
	}
	beats := nominal / (60 / r.Initial)

	var delayTime float64
	if r.Delay > 0 {
		delayBeats := math.Min(r.Delay, beats)
		r.Delay -= delayBeats
		beats -= delayBeats
		delayTime = delayBeats * 60 / r.Initial
	}

	var postTime float64
	if beats > r.BeatsRemaining {
		postTime = (beats - r.BeatsRemaining) * 60 / r.Target
		beats = r.BeatsRemaining
	}

	rampTime := r.elapsed(beats) * 60
	if beats > 0 {
		r.BPM += (r.Target - r.BPM) / r.BeatsRemaining * beats
		r.BeatsRemaining -= beats
	}
	if r.complete() {
		l.commit()
	}
	return delayTime + rampTime + postTime
}

func (l *Ledger) commit() {
	l.vals = append(l.vals, l.ramp.Target)
	l.ramp = nil
}
