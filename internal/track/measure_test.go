package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMeasure(t *testing.T, bpm float64, rhythms [][]int, denom int) *Measure {
	t.Helper()
	l := NewLedger()
	require.NoError(t, l.Push(bpm))
	m, err := NewMeasure(l, nil, rhythms, denom, NewRange(1, 0, 1, 3))
	require.NoError(t, err)
	return m
}

func TestMeasureSimple(t *testing.T) {
	t.Parallel()

	m := newTestMeasure(t, 120, [][]int{{4}}, 4)
	require.Equal(t, 4, m.Len())
	assert.Equal(t, 0.0, m.steps[0].sound.Tone)
	for _, st := range m.steps {
		assert.InDelta(t, 0.5, st.duration, 1e-12)
	}
	for _, st := range m.steps[1:] {
		assert.Equal(t, weakestTone, st.sound.Tone)
	}
}

func TestMeasureCompound(t *testing.T) {
	t.Parallel()

	m := newTestMeasure(t, 120, [][]int{{6}}, 8)
	require.Equal(t, 6, m.Len())
	tones := make([]float64, 0, 6)
	for _, st := range m.steps {
		assert.InDelta(t, 0.25, st.duration, 1e-12)
		tones = append(tones, st.sound.Tone)
	}
	assert.Equal(t, []float64{0, 2, 2, 1, 2, 2}, tones)
}

func TestMeasureAdditive(t *testing.T) {
	t.Parallel()

	m := newTestMeasure(t, 60, [][]int{{3, 2}}, 4)
	require.Equal(t, 5, m.Len())
	assert.Equal(t, 0.0, m.steps[0].sound.Tone)
	assert.Equal(t, 1.0, m.steps[3].sound.Tone)
	assert.Equal(t, 2.0, m.steps[4].sound.Tone)
}

func TestMeasurePolyrhythm(t *testing.T) {
	t.Parallel()

	m := newTestMeasure(t, 120, [][]int{{4}, {5}}, 4)
	// chunks 0 4 5 8 10 12 15 16 of 20
	require.Equal(t, 8, m.Len())
	durations := make([]float64, 0, 8)
	var total float64
	for _, st := range m.steps {
		durations = append(durations, st.duration)
		total += st.duration
	}
	assert.InDeltaSlice(t, []float64{0.4, 0.1, 0.3, 0.2, 0.2, 0.3, 0.1, 0.4}, durations, 1e-12)
	assert.InDelta(t, 2.0, total, 1e-12)

	assert.Equal(t, 0, m.steps[0].sound.Instrument)
	assert.Equal(t, 1, m.steps[1].sound.Instrument)
	assert.Equal(t, 0.75, m.steps[1].sound.Volume)
	assert.Equal(t, 0, m.steps[2].sound.Instrument)
	assert.Equal(t, 1.0, m.steps[2].sound.Volume)
	assert.Equal(t, 0.0, m.steps[0].sound.Tone)
}

func TestMeasureMixedPolyrhythmUsesCommonGrid(t *testing.T) {
	t.Parallel()

	m := newTestMeasure(t, 120, [][]int{{4}, {2, 3}}, 4)
	var total float64
	for _, st := range m.steps {
		total += st.duration
	}
	assert.InDelta(t, 2.0, total, 1e-12)
}

func TestMeasureSwingAndRamp(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	require.NoError(t, l.Push(60))
	m, err := NewMeasure(l, &Swing{Ratios: []float64{1.4}}, [][]int{{2}}, 4, Range{})
	require.NoError(t, err)
	assert.InDelta(t, 1.4, m.steps[0].duration, 1e-12)
	assert.InDelta(t, 0.6, m.steps[1].duration, 1e-12)

	// a ramp that starts after the measure does not touch it
	require.NoError(t, l.BeginRamp(120, 4, 2))
	m, err = NewMeasure(l, nil, [][]int{{2}}, 4, Range{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.steps[0].duration, 1e-12)
	assert.InDelta(t, 1.0, m.steps[1].duration, 1e-12)
	assert.True(t, l.Ramping())
}

func TestMeasureErrors(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	_, err := NewMeasure(l, nil, [][]int{{4}}, 4, Range{})
	assert.ErrorIs(t, err, ErrNoTempo)

	require.NoError(t, l.Push(120))
	_, err = NewMeasure(l, nil, [][]int{{4}}, 0, Range{})
	assert.ErrorIs(t, err, ErrMeter)
	_, err = NewMeasure(l, nil, [][]int{}, 4, Range{})
	assert.ErrorIs(t, err, ErrMeter)
	_, err = NewMeasure(l, nil, [][]int{{4, 0}}, 4, Range{})
	assert.ErrorIs(t, err, ErrMeter)
	_, err = NewMeasure(l, nil, [][]int{{65537}, {65521}}, 4, Range{})
	assert.ErrorIs(t, err, ErrMeter)
}

func TestBeatList(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	_, err := NewBeatList(l, []BeatSpec{{Intensity: IntensityHigh, Duration: 1, Relative: true}}, Range{})
	assert.ErrorIs(t, err, ErrRelativeWithoutBPM)

	bl, err := NewBeatList(l, []BeatSpec{{Intensity: IntensityMid, Duration: 0.25}}, Range{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, bl.steps[0].sound.Tone)

	_, err = NewBeatList(l, []BeatSpec{{Duration: -1}}, Range{})
	assert.Error(t, err)
}
