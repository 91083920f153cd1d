package audio

import (
	"math"
	"sync"

	"github.com/viterin/vek/vek32"

	"github.com/cbegin/etcnome-go/internal/effects"
)

type voice struct {
	samples []float32
	start   int64 // first frame
	end     int64 // frame after the last audible sample
	slotEnd int64
	onEnded func()
	ended   bool
}

// Mixer is a Clock whose time is the number of frames it has produced. It
// sums scheduled sources into stereo frames on demand through Process.
type Mixer struct {
	mu         sync.Mutex
	sampleRate int
	frame      int64
	voices     []*voice
	suspended  bool
	closed     bool
	bus        effects.Effector
	scratch    []float32
}

type MixerOption func(*Mixer)

// WithBus runs the mixed mono signal through an effect before output.
func WithBus(e effects.Effector) MixerOption {
	return func(m *Mixer) { m.bus = e }
}

func NewMixer(sampleRate int, opts ...MixerOption) *Mixer {
	m := &Mixer{sampleRate: sampleRate}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mixer) SampleRate() int { return m.sampleRate }

func (m *Mixer) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.frame) / float64(m.sampleRate)
}

func (m *Mixer) toFrames(seconds float64) int64 {
	return int64(math.Round(seconds * float64(m.sampleRate)))
}

// Schedule adds a source. A source whose start has already passed starts
// immediately instead.
func (m *Mixer) Schedule(src Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	start := m.toFrames(src.Start)
	if start < m.frame {
		start = m.frame
	}
	slot := m.toFrames(src.Slot)
	length := int64(len(src.Samples))
	if bound := MaxTailFactor * slot; length > bound {
		length = bound
	}
	m.voices = append(m.voices, &voice{
		samples: src.Samples[:length],
		start:   start,
		end:     start + length,
		slotEnd: start + slot,
		onEnded: src.OnEnded,
	})
	return nil
}

func (m *Mixer) Suspend() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = true
	return nil
}

func (m *Mixer) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.suspended = false
	return nil
}

func (m *Mixer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.voices = nil
	return nil
}

// Finished reports whether the mixer has been closed.
func (m *Mixer) Finished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Pending returns the number of sources still sounding or waiting for their
// slot to end.
func (m *Mixer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Process fills dst with interleaved stereo frames and advances the clock.
// While suspended or closed it produces silence and time stands still.
func (m *Mixer) Process(dst []float32) {
	frames := len(dst) / 2
	m.mu.Lock()
	if m.suspended || m.closed || frames == 0 {
		m.mu.Unlock()
		vek32.Zeros_Into(dst, len(dst))
		return
	}
	if cap(m.scratch) < frames {
		m.scratch = make([]float32, frames)
	}
	mono := m.scratch[:frames]
	vek32.Zeros_Into(mono, frames)

	from, to := m.frame, m.frame+int64(frames)
	for _, v := range m.voices {
		lo, hi := max64(v.start, from), min64(v.end, to)
		if lo >= hi {
			continue
		}
		vek32.Add_Inplace(mono[lo-from:hi-from], v.samples[lo-v.start:hi-v.start])
	}
	if m.bus != nil {
		for i, x := range mono {
			mono[i] = m.bus.Process(x)
		}
	}
	for i, x := range mono {
		dst[2*i] = x
		dst[2*i+1] = x
	}
	m.frame = to

	var ended []func()
	kept := m.voices[:0]
	for _, v := range m.voices {
		if !v.ended && v.slotEnd <= to {
			v.ended = true
			if v.onEnded != nil {
				ended = append(ended, v.onEnded)
			}
		}
		if !v.ended || v.end > to {
			kept = append(kept, v)
		}
	}
	for i := len(kept); i < len(m.voices); i++ {
		m.voices[i] = nil
	}
	m.voices = kept
	m.mu.Unlock()

	for _, fn := range ended {
		fn()
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
