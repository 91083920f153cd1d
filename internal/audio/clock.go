package audio

import "github.com/pkg/errors"

// MaxTailFactor bounds how long a source may sound relative to its slot. A
// click scheduled for a 0.1s slot is cut off after 0.5s.
const MaxTailFactor = 5

var ErrClosed = errors.New("audio clock is closed")

// Source is a mono buffer placed on a Clock's timeline.
type Source struct {
	Samples []float32
	// Start is the clock time in seconds at which the first sample sounds.
	Start float64
	// Slot is the nominal length of the event. OnEnded fires once the clock
	// passes Start+Slot, even if the samples ring on.
	Slot    float64
	OnEnded func()
}

// Clock is a timeline that sources can be scheduled against. Callbacks are
// invoked without any Clock lock held, possibly on the audio thread.
type Clock interface {
	// Now returns the current clock time in seconds. It does not advance
	// while suspended.
	Now() float64
	Schedule(src Source) error
	Suspend() error
	Resume() error
	// Close discards everything scheduled. A callback already being
	// delivered when Close is called may still run.
	Close() error
}
