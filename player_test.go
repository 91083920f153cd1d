package etcnome

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/etcnome-go/internal/audio"
	"github.com/cbegin/etcnome-go/internal/tone"
	"github.com/cbegin/etcnome-go/internal/track"
)

const testSampleRate = 1000

func testEnsemble() *tone.Ensemble {
	return tone.NewEnsemble(tone.WithRenderer(func(s track.Sound, _ int, _ tone.Params) []float32 {
		buf := make([]float32, 10)
		for i := range buf {
			buf[i] = float32(s.Volume)
		}
		return buf
	}))
}

// manualClocks hands out mixers that only advance when the test says so.
type manualClocks struct {
	mu     sync.Mutex
	mixers []*audio.Mixer
}

func (m *manualClocks) open(sampleRate int) (audio.Clock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mx := audio.NewMixer(sampleRate)
	m.mixers = append(m.mixers, mx)
	return mx, nil
}

func (m *manualClocks) last() *audio.Mixer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mixers[len(m.mixers)-1]
}

func advance(m *audio.Mixer, seconds float64) {
	frames := int(seconds * float64(m.SampleRate()))
	m.Process(make([]float32, 2*frames))
}

func newTestPlayer(t *testing.T, opts ...Option) (*Player, *manualClocks) {
	t.Helper()
	clocks := &manualClocks{}
	opts = append([]Option{
		WithSampleRate(testSampleRate),
		WithEnsemble(testEnsemble()),
		WithClockFactory(clocks.open),
	}, opts...)
	p, err := NewPlayer(opts...)
	require.NoError(t, err)
	return p, clocks
}

func compile(t *testing.T, src string) *track.Track {
	t.Helper()
	tr, err := Compile(src, nil)
	require.NoError(t, err)
	return tr
}

func TestPlayerSingleBeatEndsNaturally(t *testing.T) {
	t.Parallel()

	p, clocks := newTestPlayer(t)
	states := p.Watch()
	assert.Equal(t, StateEmpty, p.State())

	p.SetTrack(compile(t, "bpm 120\n1/4"))
	assert.Equal(t, StateStopped, p.State())
	assert.Equal(t, StateStopped, <-states)

	require.NoError(t, p.Play())
	assert.Equal(t, StatePlaying, p.State())
	assert.Equal(t, StatePlaying, <-states)

	mx := clocks.last()
	assert.Equal(t, 1, mx.Pending())

	advance(mx, 0.5)
	assert.Equal(t, StatePlaying, p.State(), "the beat's slot has not ended yet")

	advance(mx, 0.1)
	assert.Equal(t, StateStopped, p.State())
	assert.Equal(t, StateStopped, <-states)

	// a finished track plays again from the top on a fresh clock
	require.NoError(t, p.Play())
	assert.Equal(t, StatePlaying, p.State())
	assert.NotSame(t, mx, clocks.last())
	assert.Equal(t, 1, clocks.last().Pending())
}

func TestPlayerKeepsLookaheadFilled(t *testing.T) {
	t.Parallel()

	p, clocks := newTestPlayer(t)
	p.SetTrack(compile(t, "bpm 120\n4/4"))
	require.NoError(t, p.Play())
	mx := clocks.last()
	assert.Equal(t, 2, mx.Pending())

	advance(mx, 0.6)
	assert.Equal(t, 2, mx.Pending())
	assert.Equal(t, StatePlaying, p.State())

	advance(mx, 1.5)
	assert.Equal(t, 1, mx.Pending())
	advance(mx, 0.5)
	assert.Equal(t, StateStopped, p.State())
}

func TestPlayerResolvesUncachedClicks(t *testing.T) {
	t.Parallel()

	p, clocks := newTestPlayer(t)
	p.SetTrack(compile(t, "beats hi 0.5 mid 0.5 lo 0.5"))
	require.NoError(t, p.Play())
	mx := clocks.last()
	assert.Equal(t, 2, mx.Pending())

	advance(mx, 0.6)
	require.Eventually(t, func() bool { return mx.Pending() == 2 }, time.Second, time.Millisecond)
}

func TestPlayerRepeat(t *testing.T) {
	t.Parallel()

	p, clocks := newTestPlayer(t, WithRepeat(true))
	p.SetTrack(compile(t, "bpm 120\n2/4"))
	require.NoError(t, p.Play())
	mx := clocks.last()

	advance(mx, 3)
	assert.Equal(t, StatePlaying, p.State())
	assert.Equal(t, 2, mx.Pending())

	p.SetRepeat(false)
	advance(mx, 1.1)
	assert.Equal(t, StateStopped, p.State())
}

func TestPlayerPauseAndResume(t *testing.T) {
	t.Parallel()

	p, clocks := newTestPlayer(t)
	p.SetTrack(compile(t, "bpm 120\n1/4"))
	require.NoError(t, p.Play())
	mx := clocks.last()

	advance(mx, 0.2)
	require.NoError(t, p.Pause())
	assert.Equal(t, StatePaused, p.State())
	now := mx.Now()
	advance(mx, 1)
	assert.Equal(t, now, mx.Now())
	assert.Equal(t, StatePaused, p.State())

	require.NoError(t, p.Play())
	assert.Equal(t, StatePlaying, p.State())
	assert.Same(t, mx, clocks.last(), "resuming reuses the clock")
	advance(mx, 0.4)
	assert.Equal(t, StateStopped, p.State())
}

func TestPlayerStop(t *testing.T) {
	t.Parallel()

	p, clocks := newTestPlayer(t)
	p.SetTrack(compile(t, "bpm 120\n4/4"))
	require.NoError(t, p.Play())
	mx := clocks.last()
	advance(mx, 0.6)

	require.NoError(t, p.Stop())
	assert.Equal(t, StateStopped, p.State())
	assert.True(t, mx.Finished())

	// stopping again still tears down cleanly
	require.NoError(t, p.Stop())
	require.NoError(t, p.Pause())
	assert.Equal(t, StateStopped, p.State())
}

func TestPlayerSpeed(t *testing.T) {
	t.Parallel()

	p, clocks := newTestPlayer(t)
	assert.ErrorIs(t, p.SetSpeed(0), ErrInvalidSpeed)
	require.NoError(t, p.SetSpeed(2))

	p.SetTrack(compile(t, "bpm 120\n1/4"))
	require.NoError(t, p.Play())
	mx := clocks.last()
	advance(mx, 0.29)
	assert.Equal(t, StatePlaying, p.State())
	advance(mx, 0.02)
	assert.Equal(t, StateStopped, p.State())
}

func TestPlayerNothingToPlay(t *testing.T) {
	t.Parallel()

	p, _ := newTestPlayer(t)
	assert.ErrorIs(t, p.Play(), ErrNothingToPlay)

	p.SetTrack(compile(t, "bpm 120"))
	assert.Equal(t, StateEmpty, p.State())
	assert.ErrorIs(t, p.Play(), ErrNothingToPlay)
}

func TestPlayerSelectionPlaysOnlySelectedBeats(t *testing.T) {
	t.Parallel()

	src := "bpm 120\n4/4\n1/4"
	sel := SelectOffsets(src, len("bpm 120\n4/4\n"), len(src))
	tr, err := Compile(src, &sel)
	require.NoError(t, err)

	p, clocks := newTestPlayer(t)
	p.SetTrack(tr)
	require.NoError(t, p.Play())
	assert.Equal(t, 1, clocks.last().Pending())
}

func TestPlayerClockFailureStops(t *testing.T) {
	t.Parallel()

	p, err := NewPlayer(
		WithSampleRate(testSampleRate),
		WithEnsemble(testEnsemble()),
		WithClockFactory(func(int) (audio.Clock, error) { return nil, errors.New("no device") }),
	)
	require.NoError(t, err)
	p.SetTrack(compile(t, "bpm 120\n1/4"))

	err = p.Play()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no device")
	assert.Equal(t, StateStopped, p.State())
}

func TestPlayerOnTicker(t *testing.T) {
	t.Parallel()

	p, err := NewPlayer(
		WithSampleRate(testSampleRate),
		WithEnsemble(testEnsemble()),
		WithClockFactory(func(int) (audio.Clock, error) { return audio.NewTicker(nil), nil }),
	)
	require.NoError(t, err)
	p.SetTrack(compile(t, "beats hi 0.01 lo 0.01"))
	states := p.Watch()
	require.NoError(t, p.Play())
	assert.Equal(t, StatePlaying, <-states)

	select {
	case s := <-states:
		assert.Equal(t, StateStopped, s)
	case <-time.After(5 * time.Second):
		t.Fatal("playback did not end")
	}
}
