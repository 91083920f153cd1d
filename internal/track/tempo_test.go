package track

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerPushRejectsNonPositive(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	for _, bpm := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		assert.ErrorIs(t, l.Push(bpm), ErrInvalidBPM, "bpm %v", bpm)
	}
	assert.False(t, l.HasTempo())
	_, err := l.Current()
	assert.ErrorIs(t, err, ErrNoTempo)

	require.NoError(t, l.Push(90))
	bpm, err := l.Current()
	require.NoError(t, err)
	assert.Equal(t, 90.0, bpm)
}

func TestLedgerPopToPrevious(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	require.NoError(t, l.Push(120))
	_, err := l.PopToPrevious()
	assert.ErrorIs(t, err, ErrNoPrevious)

	require.NoError(t, l.Push(200))
	bpm, err := l.PopToPrevious()
	require.NoError(t, err)
	assert.Equal(t, 120.0, bpm)
}

func TestLedgerBeginRampValidation(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	assert.ErrorIs(t, l.BeginRamp(120, 4, 0), ErrNoTempo)
	require.NoError(t, l.Push(60))

	assert.ErrorIs(t, l.BeginRamp(120, 4, 5), ErrRampDelay)
	assert.ErrorIs(t, l.BeginRamp(0, 4, 0), ErrRampTargetBPM)
	assert.ErrorIs(t, l.BeginRamp(120, 0, 0), ErrRampBeats)
	assert.False(t, l.Ramping())

	require.NoError(t, l.BeginRamp(120, 4, 4))
	assert.True(t, l.Ramping())
	assert.ErrorIs(t, l.BeginRamp(90, 4, 0), ErrRampInProgress)
	_, err := l.PopToPrevious()
	assert.ErrorIs(t, err, ErrRampActive)
}

func TestLedgerConsumeAcrossRamp(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	require.NoError(t, l.Push(60))
	require.NoError(t, l.BeginRamp(120, 4, 0))

	// six beats at 60bpm: four ramping, two at the target
	got := l.Consume(6)
	assert.InDelta(t, 4*math.Ln2+1, got, 1e-9)
	assert.False(t, l.Ramping())
	bpm, err := l.Current()
	require.NoError(t, err)
	assert.Equal(t, 120.0, bpm)

	// the committed target is now poppable
	bpm, err = l.PopToPrevious()
	require.NoError(t, err)
	assert.Equal(t, 60.0, bpm)
}

func TestLedgerConsumeIsMonotonic(t *testing.T) {
	t.Parallel()

	for _, target := range []float64{30, 240} {
		l := NewLedger()
		require.NoError(t, l.Push(60))
		require.NoError(t, l.BeginRamp(target, 16, 0))

		fast, slow := math.Min(60, 60*60/target), math.Max(60, 60*60/target)
		prev := math.NaN()
		var total float64
		for i := 0; i < 16; i++ {
			d := l.Consume(1)
			total += d
			assert.Greater(t, d, fast/60, "beat %d", i)
			assert.Less(t, d, slow/60, "beat %d", i)
			if !math.IsNaN(prev) {
				if target > 60 {
					assert.Less(t, d, prev)
				} else {
					assert.Greater(t, d, prev)
				}
			}
			prev = d
		}
		// closed form: 60 * n / (target-initial) * ln(target/initial)
		assert.InDelta(t, 60*16/(target-60)*math.Log(target/60), total, 1e-9)
		assert.False(t, l.Ramping())
	}
}

func TestLedgerConsumeSplitMatchesWhole(t *testing.T) {
	t.Parallel()

	whole := NewLedger()
	require.NoError(t, whole.Push(100))
	require.NoError(t, whole.BeginRamp(180, 7, 0))
	want := whole.Consume(7 * 0.6)

	split := NewLedger()
	require.NoError(t, split.Push(100))
	require.NoError(t, split.BeginRamp(180, 7, 0))
	var got float64
	for i := 0; i < 14; i++ {
		got += split.Consume(0.3)
	}
	assert.InDelta(t, want, got, 1e-9)
}

func TestLedgerConsumeDelay(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	require.NoError(t, l.Push(60))
	require.NoError(t, l.BeginRamp(120, 4, 2))

	assert.InDelta(t, 2.0, l.Consume(2), 1e-9)
	r, ok := l.Ramp()
	require.True(t, ok)
	assert.InDelta(t, 0, r.Delay, 1e-9)
	assert.InDelta(t, 60, r.BPM, 1e-9)

	assert.InDelta(t, 2*math.Ln2, l.Consume(2), 1e-9)
	assert.False(t, l.Ramping())
}

func TestLedgerConsumeConstantRamp(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	require.NoError(t, l.Push(60))
	require.NoError(t, l.BeginRamp(60, 4, 0))
	for i := 0; i < 4; i++ {
		assert.InDelta(t, 1.0, l.Consume(1), 1e-12)
	}
	assert.False(t, l.Ramping())
}

func TestLedgerConsumeWithoutRamp(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	require.NoError(t, l.Push(60))
	assert.Equal(t, 0.75, l.Consume(0.75))
}
