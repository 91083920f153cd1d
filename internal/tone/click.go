// Package tone synthesizes the metronome clicks.
package tone

import (
	"math"

	"github.com/fogleman/ease"

	"github.com/cbegin/etcnome-go/internal/track"
)

// Params shape a click. Durations are in seconds.
type Params struct {
	Duration float64
	Attack   float64
	// NoiseMix is the share of the click taken by noise rather than pitch.
	NoiseMix float64
	// BasePitch is the frequency of tone 0; every tone step halves it.
	BasePitch float64
	Gain      float64
}

func DefaultParams() Params {
	return Params{
		Duration:  0.05,
		Attack:    0.002,
		NoiseMix:  0.35,
		BasePitch: 2000,
		Gain:      0.8,
	}
}

type waveType int

const (
	waveSine waveType = iota
	waveTriangle
	wavePulseWide
	wavePulseNarrow
	waveCount
)

var pulseDuty = map[waveType]float64{
	wavePulseWide:   0.25,
	wavePulseNarrow: 0.125,
}

// waveForInstrument gives each voice of a polyrhythm its own timbre.
func waveForInstrument(instrument int) waveType {
	if instrument < 0 {
		instrument = -instrument
	}
	return waveType(instrument % int(waveCount))
}

// Pitch returns the click frequency for a tone. Weaker tones are lower.
func (p Params) Pitch(tone float64) float64 {
	return p.BasePitch / math.Pow(2, tone)
}

type oscillator struct {
	wave  waveType
	freq  float64
	phase float64
	lfsr  uint16
}

func polyBLEP(t, dt float64) float64 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func (o *oscillator) tone(sampleRate float64) float64 {
	dt := o.freq / sampleRate
	o.phase += dt
	if o.phase >= 1 {
		o.phase -= math.Floor(o.phase)
	}
	switch o.wave {
	case waveTriangle:
		return 2*math.Abs(2*o.phase-1) - 1
	case wavePulseWide, wavePulseNarrow:
		duty := pulseDuty[o.wave]
		out := -1.0
		if o.phase < duty {
			out = 1
		}
		out += polyBLEP(o.phase, dt)
		out -= polyBLEP(math.Mod(o.phase-duty+1, 1), dt)
		return out
	default:
		return math.Sin(2 * math.Pi * o.phase)
	}
}

func (o *oscillator) noise() float64 {
	bit := (o.lfsr ^ (o.lfsr >> 1)) & 1
	o.lfsr = (o.lfsr >> 1) | (bit << 15)
	if o.lfsr&1 == 1 {
		return 1
	}
	return -1
}

// envelope rises over the attack and decays to silence at the end.
func (p Params) envelope(t float64) float64 {
	if t < p.Attack {
		return ease.OutQuad(t / p.Attack)
	}
	rest := p.Duration - p.Attack
	if rest <= 0 {
		return 0
	}
	return 1 - ease.OutCubic(math.Min(1, (t-p.Attack)/rest))
}

// Render synthesizes a mono click for s. The result is deterministic for a
// given sound, sample rate and params.
func Render(s track.Sound, sampleRate int, p Params) []float32 {
	n := int(math.Round(p.Duration * float64(sampleRate)))
	if n <= 0 {
		return nil
	}
	sr := float64(sampleRate)
	osc := oscillator{
		wave: waveForInstrument(s.Instrument),
		freq: p.Pitch(s.Tone),
		lfsr: uint16(0xACE1 + s.Instrument*97),
	}
	if osc.lfsr == 0 {
		osc.lfsr = 0xACE1
	}
	gain := p.Gain * s.Volume
	out := make([]float32, n)
	for i := range out {
		v := (1-p.NoiseMix)*osc.tone(sr) + p.NoiseMix*osc.noise()
		out[i] = float32(gain * p.envelope(float64(i)/sr) * v)
	}
	return out
}
