package tone

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"github.com/remeh/sizedwaitgroup"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/cbegin/etcnome-go/internal/logging"
	"github.com/cbegin/etcnome-go/internal/track"
)

var (
	ErrInvalidSound      = errors.New("invalid sound")
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
)

type key struct {
	tone       float64
	volume     float64
	instrument int
	sampleRate int
}

func (k key) String() string {
	return fmt.Sprintf("%v|%v|%d|%d", k.tone, k.volume, k.instrument, k.sampleRate)
}

// Ensemble renders clicks on demand and remembers them. Concurrent requests
// for the same sound share a single render.
type Ensemble struct {
	params  Params
	workers int
	render  func(track.Sound, int, Params) []float32

	mu    sync.RWMutex
	cache map[key][]float32
	group singleflight.Group
	log   *logrus.Entry
}

type Option func(*Ensemble)

func WithParams(p Params) Option {
	return func(e *Ensemble) { e.params = p }
}

// WithWorkers bounds how many sounds Prepare renders at once.
func WithWorkers(n int) Option {
	return func(e *Ensemble) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithRenderer replaces the synthesizer, mostly for tests.
func WithRenderer(fn func(track.Sound, int, Params) []float32) Option {
	return func(e *Ensemble) {
		if fn != nil {
			e.render = fn
		}
	}
}

func NewEnsemble(opts ...Option) *Ensemble {
	e := &Ensemble{
		params:  DefaultParams(),
		workers: runtime.NumCPU(),
		render:  Render,
		cache:   make(map[key][]float32),
		log:     logging.GetProjectLogger().WithField("component", "ensemble"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Ensemble) Params() Params { return e.params }

func validate(s track.Sound, sampleRate int) error {
	if sampleRate <= 0 {
		return errors.Wrapf(ErrInvalidSampleRate, "got %d", sampleRate)
	}
	if math.IsNaN(s.Tone) || math.IsInf(s.Tone, 0) {
		return errors.Wrapf(ErrInvalidSound, "tone %v", s.Tone)
	}
	if !(s.Volume >= 0) || math.IsInf(s.Volume, 0) {
		return errors.Wrapf(ErrInvalidSound, "volume %v", s.Volume)
	}
	return nil
}

// Lookup returns an already rendered sound without blocking.
func (e *Ensemble) Lookup(s track.Sound, sampleRate int) ([]float32, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	buf, ok := e.cache[key{s.Tone, s.Volume, s.Instrument, sampleRate}]
	return buf, ok
}

// Sound returns the rendered click for s. The returned buffer is shared and
// must not be modified. If ctx ends first, Sound returns ctx.Err() and the
// render carries on for later callers.
func (e *Ensemble) Sound(ctx context.Context, s track.Sound, sampleRate int) ([]float32, error) {
	if err := validate(s, sampleRate); err != nil {
		return nil, err
	}
	if buf, ok := e.Lookup(s, sampleRate); ok {
		return buf, nil
	}
	k := key{s.Tone, s.Volume, s.Instrument, sampleRate}
	ch := e.group.DoChan(k.String(), func() (interface{}, error) {
		if buf, ok := e.Lookup(s, sampleRate); ok {
			return buf, nil
		}
		buf := e.render(s, sampleRate, e.params)
		e.mu.Lock()
		e.cache[k] = buf
		e.mu.Unlock()
		e.log.WithFields(logrus.Fields{
			"tone":       s.Tone,
			"volume":     s.Volume,
			"instrument": s.Instrument,
			"samples":    len(buf),
		}).Debug("rendered click")
		return buf, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]float32), nil
	}
}

// Prepare renders every distinct sound in sounds, a bounded number at a time.
// It returns the first error encountered. No new render starts once ctx is
// done.
func (e *Ensemble) Prepare(ctx context.Context, sounds []track.Sound, sampleRate int) error {
	seen := make(map[track.Sound]bool, len(sounds))
	var (
		mu       sync.Mutex
		firstErr error
	)
	record := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	wg := sizedwaitgroup.New(e.workers)
	for _, s := range sounds {
		if seen[s] {
			continue
		}
		seen[s] = true
		if _, ok := e.Lookup(s, sampleRate); ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			record(err)
			break
		}
		if err := wg.AddWithContext(ctx); err != nil {
			record(err)
			break
		}
		go func(s track.Sound) {
			defer wg.Done()
			if _, err := e.Sound(ctx, s, sampleRate); err != nil {
				record(err)
			}
		}(s)
	}
	wg.Wait()
	return firstErr
}
