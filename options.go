package etcnome

import (
	"runtime"

	"github.com/cbegin/etcnome-go/internal/audio"
	"github.com/cbegin/etcnome-go/internal/effects"
	"github.com/cbegin/etcnome-go/internal/tone"
)

const (
	DefaultSampleRate = 44100
	// MinLookahead is the smallest number of events the player keeps
	// scheduled ahead of the clock.
	MinLookahead = 2
)

// ClockFactory opens the clock a play session runs on.
type ClockFactory func(sampleRate int) (audio.Clock, error)

type Option func(*options)

type options struct {
	sampleRate int
	lookahead  int
	repeat     bool
	speed      float64
	workers    int
	ensemble   *tone.Ensemble
	bus        func(sampleRate int) effects.Effector
	clock      ClockFactory
}

func defaultOptions() options {
	return options{
		sampleRate: DefaultSampleRate,
		lookahead:  MinLookahead,
		speed:      1,
		workers:    runtime.NumCPU(),
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.ensemble == nil {
		o.ensemble = tone.NewEnsemble(tone.WithWorkers(o.workers))
	}
	if o.clock == nil {
		bus := o.bus
		o.clock = func(sampleRate int) (audio.Clock, error) {
			var mixerOpts []audio.MixerOption
			if bus != nil {
				mixerOpts = append(mixerOpts, audio.WithBus(bus(sampleRate)))
			}
			return audio.NewDevice(sampleRate, mixerOpts...)
		}
	}
	return o
}

func WithSampleRate(sampleRate int) Option {
	return func(o *options) { o.sampleRate = sampleRate }
}

// WithLookahead sets how many events are kept scheduled ahead of the clock.
// Values below MinLookahead are raised to it.
func WithLookahead(n int) Option {
	return func(o *options) {
		if n < MinLookahead {
			n = MinLookahead
		}
		o.lookahead = n
	}
}

func WithRepeat(enabled bool) Option {
	return func(o *options) { o.repeat = enabled }
}

// WithSpeed scales playback tempo. 2 plays twice as fast.
func WithSpeed(speed float64) Option {
	return func(o *options) { o.speed = speed }
}

// WithWorkers bounds concurrent click rendering.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithEnsemble shares a click cache between players and exporters.
func WithEnsemble(e *tone.Ensemble) Option {
	return func(o *options) { o.ensemble = e }
}

// WithBus installs an output effect. The factory is called once per clock or
// export, since effects carry state.
func WithBus(bus func(sampleRate int) effects.Effector) Option {
	return func(o *options) { o.bus = bus }
}

// WithClockFactory replaces the system audio device, e.g. with a silent
// audio.Ticker or a manually driven audio.Mixer.
func WithClockFactory(f ClockFactory) Option {
	return func(o *options) { o.clock = f }
}
