package audio

import (
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ones(n int) []float32 {
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = 1
	}
	return buf
}

func TestMixerPlacesSourcesOnTimeline(t *testing.T) {
	t.Parallel()

	m := NewMixer(100)
	ended := 0
	require.NoError(t, m.Schedule(Source{Samples: ones(3), Start: 0.02, Slot: 0.05, OnEnded: func() { ended++ }}))
	require.NoError(t, m.Schedule(Source{Samples: ones(2), Start: 0.03, Slot: 0.05}))

	dst := make([]float32, 2*6)
	m.Process(dst)
	assert.Equal(t, []float32{0, 0, 0, 0, 1, 1, 2, 2, 2, 2, 0, 0}, dst)
	assert.InDelta(t, 0.06, m.Now(), 1e-12)
	assert.Equal(t, 0, ended)

	m.Process(dst)
	assert.Equal(t, 1, ended)
	assert.Equal(t, 0, m.Pending())
}

func TestMixerTruncatesLongTails(t *testing.T) {
	t.Parallel()

	m := NewMixer(100)
	require.NoError(t, m.Schedule(Source{Samples: ones(50), Start: 0, Slot: 0.02}))
	dst := make([]float32, 2*20)
	m.Process(dst)
	for i := 0; i < 20; i++ {
		want := float32(0)
		if i < MaxTailFactor*2 {
			want = 1
		}
		assert.Equal(t, want, dst[2*i], "frame %d", i)
	}
	assert.Equal(t, 0, m.Pending())
}

func TestMixerLateSourceStartsNow(t *testing.T) {
	t.Parallel()

	m := NewMixer(100)
	m.Process(make([]float32, 2*10))
	require.NoError(t, m.Schedule(Source{Samples: ones(1), Start: 0.01, Slot: 0.01}))
	dst := make([]float32, 2)
	m.Process(dst)
	assert.Equal(t, []float32{1, 1}, dst)
}

func TestMixerSuspendStopsTime(t *testing.T) {
	t.Parallel()

	m := NewMixer(100)
	fired := false
	require.NoError(t, m.Schedule(Source{Samples: ones(1), Start: 0, Slot: 0.01, OnEnded: func() { fired = true }}))
	require.NoError(t, m.Suspend())
	dst := []float32{5, 5, 5, 5}
	m.Process(dst)
	assert.Equal(t, []float32{0, 0, 0, 0}, dst)
	assert.Zero(t, m.Now())
	assert.False(t, fired)

	require.NoError(t, m.Resume())
	m.Process(dst)
	assert.True(t, fired)
}

func TestMixerClose(t *testing.T) {
	t.Parallel()

	m := NewMixer(100)
	fired := false
	require.NoError(t, m.Schedule(Source{Samples: ones(1), Start: 0, Slot: 0.01, OnEnded: func() { fired = true }}))
	require.NoError(t, m.Close())
	m.Process(make([]float32, 8))
	assert.False(t, fired)
	assert.True(t, m.Finished())
	assert.ErrorIs(t, m.Schedule(Source{}), ErrClosed)
	assert.ErrorIs(t, m.Resume(), ErrClosed)
}

type gain float32

func (g gain) Process(x float32) float32 { return x * float32(g) }
func (gain) Reset()                      {}

func TestMixerBus(t *testing.T) {
	t.Parallel()

	m := NewMixer(100, WithBus(gain(0.5)))
	require.NoError(t, m.Schedule(Source{Samples: ones(1), Start: 0, Slot: 0.01}))
	dst := make([]float32, 2)
	m.Process(dst)
	assert.Equal(t, []float32{0.5, 0.5}, dst)
}

func TestStreamReaderEncodesFrames(t *testing.T) {
	t.Parallel()

	m := NewMixer(100)
	require.NoError(t, m.Schedule(Source{Samples: []float32{0.25, -0.5}, Start: 0, Slot: 0.02}))
	r := NewStreamReader(m)

	p := make([]byte, 16)
	n, err := r.Read(p)
	require.NoError(t, err)
	require.Equal(t, 16, n)
	got := make([]float32, 4)
	for i := range got {
		got[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
	}
	assert.Equal(t, []float32{0.25, 0.25, -0.5, -0.5}, got)

	require.NoError(t, m.Close())
	_, err = r.Read(p)
	assert.ErrorIs(t, err, io.EOF)
}
