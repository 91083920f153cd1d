package effects

import "math"

// Limiter keeps overlapping clicks from clipping. It is a fast attack
// compressor with a high ratio followed by a hard ceiling.
type Limiter struct {
	threshold float32
	ratio     float32
	attack    float32 // coefficient
	release   float32 // coefficient
	ceiling   float32
	env       float32
}

// NewLimiter creates a limiter.
// thresholdDB: level above which gain is reduced (e.g. -3)
// ratio: compression ratio above the threshold (e.g. 20)
// attackMs, releaseMs: envelope follower times
func NewLimiter(sampleRate int, thresholdDB, ratio, attackMs, releaseMs float32) *Limiter {
	sr := float64(sampleRate)
	return &Limiter{
		threshold: float32(math.Pow(10, float64(thresholdDB)/20)),
		ratio:     ratio,
		attack:    float32(1.0 - math.Exp(-1.0/(float64(attackMs)*sr/1000.0))),
		release:   float32(1.0 - math.Exp(-1.0/(float64(releaseMs)*sr/1000.0))),
		ceiling:   1,
	}
}

// DefaultLimiter is tuned for stacked metronome clicks.
func DefaultLimiter(sampleRate int) *Limiter {
	return NewLimiter(sampleRate, -3, 20, 0.5, 80)
}

func (l *Limiter) Process(x float32) float32 {
	abs := float32(math.Abs(float64(x)))
	if abs > l.env {
		l.env += l.attack * (abs - l.env)
	} else {
		l.env += l.release * (abs - l.env)
	}
	y := x * l.gain(l.env)
	if y > l.ceiling {
		return l.ceiling
	}
	if y < -l.ceiling {
		return -l.ceiling
	}
	return y
}

func (l *Limiter) gain(env float32) float32 {
	if env <= l.threshold || l.threshold <= 0 {
		return 1.0
	}
	over := env / l.threshold
	return float32(math.Pow(float64(over), float64(1.0/l.ratio-1)))
}

func (l *Limiter) Reset() {
	l.env = 0
}
