package etcnome

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/etcnome-go/internal/track"
)

type saved struct {
	data        []byte
	description string
	mimeType    string
	extensions  []string
}

type memorySaver struct {
	saves []saved
	err   error
	block chan struct{}
}

func (m *memorySaver) Save(ctx context.Context, data []byte, description, mimeType string, extensions []string) error {
	if m.block != nil {
		<-m.block
	}
	if m.err != nil {
		return m.err
	}
	m.saves = append(m.saves, saved{data, description, mimeType, extensions})
	return nil
}

func newTestExporter(t *testing.T, saver Saver) *Exporter {
	t.Helper()
	e, err := NewExporter(saver, WithSampleRate(testSampleRate), WithEnsemble(testEnsemble()), WithWorkers(2))
	require.NoError(t, err)
	return e
}

func TestExporterRequiresSaver(t *testing.T) {
	t.Parallel()

	_, err := NewExporter(nil)
	assert.Error(t, err)
}

func TestExporterNothingToExport(t *testing.T) {
	t.Parallel()

	saver := &memorySaver{}
	e := newTestExporter(t, saver)
	assert.ErrorIs(t, e.Export(context.Background()), ErrNothingToExport)
	assert.Equal(t, ExportEmpty, e.State())

	e.SetTrack(compile(t, "bpm 120"))
	assert.ErrorIs(t, e.Export(context.Background()), ErrNothingToExport)
	assert.Equal(t, ExportEmpty, e.State())
	assert.Empty(t, saver.saves)
}

func TestExporterWritesWholeTrackAsWAV(t *testing.T) {
	t.Parallel()

	src := "bpm 120\n4/4\n1/4"
	sel := SelectOffsets(src, len("bpm 120\n4/4\n"), len(src))
	tr, err := Compile(src, &sel)
	require.NoError(t, err)

	saver := &memorySaver{}
	e := newTestExporter(t, saver)
	states := e.Watch()
	e.SetTrack(tr)
	assert.Equal(t, ExportReady, <-states)

	require.NoError(t, e.Export(context.Background()))
	assert.Equal(t, ExportExporting, <-states)
	assert.Equal(t, ExportReady, <-states)
	assert.Equal(t, ExportReady, e.State())

	require.Len(t, saver.saves, 1)
	got := saver.saves[0]
	assert.Equal(t, "audio/wav", got.mimeType)
	assert.Equal(t, []string{".wav"}, got.extensions)

	// five beats of half a second, selection ignored
	wantSamples := 2500
	data := got.data
	require.Len(t, data, 44+4*wantSamples)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(data[20:]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[22:]))
	assert.Equal(t, uint32(testSampleRate), binary.LittleEndian.Uint32(data[24:]))
	assert.Equal(t, uint16(32), binary.LittleEndian.Uint16(data[34:]))
	assert.Equal(t, uint32(4*wantSamples), binary.LittleEndian.Uint32(data[40:]))

	sample := func(i int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[44+4*i:]))
	}
	assert.NotZero(t, sample(0))
	assert.NotZero(t, sample(2000))
	assert.Zero(t, sample(100))
}

func TestEncodeMIDIRejectsTracksTooLong(t *testing.T) {
	t.Parallel()

	s := track.Sound{Volume: 1}
	_, err := EncodeMIDI([]track.Event{{Time: 0, Duration: 1, Sound: s}, {Time: 300000, Duration: 1, Sound: s}})
	require.ErrorIs(t, err, ErrMIDITooLong)

	_, err = EncodeMIDI([]track.Event{{Time: 270000, Duration: 1, Sound: s}})
	require.NoError(t, err)
}

func TestExporterMIDI(t *testing.T) {
	t.Parallel()

	saver := &memorySaver{}
	e := newTestExporter(t, saver)
	e.SetTrack(compile(t, "bpm 120\n3/4"))
	require.NoError(t, e.ExportMIDI(context.Background()))
	require.Len(t, saver.saves, 1)
	assert.Equal(t, "audio/midi", saver.saves[0].mimeType)
	assert.Equal(t, []string{".mid"}, saver.saves[0].extensions)

	sm, err := smf.ReadFrom(bytes.NewReader(saver.saves[0].data))
	require.NoError(t, err)
	require.NotEmpty(t, sm.TempoChanges())
	assert.InDelta(t, 60, sm.TempoChanges()[0].BPM, 1e-6)

	var (
		at    uint32
		ticks []uint32
		keys  []uint8
	)
	for _, tr := range sm.Tracks {
		at = 0
		for _, ev := range tr {
			at += ev.Delta
			var ch, key, vel uint8
			if ev.Message.GetNoteOn(&ch, &key, &vel) {
				assert.Equal(t, uint8(midiDrumChannel), ch)
				assert.NotZero(t, vel)
				ticks = append(ticks, at)
				keys = append(keys, key)
			}
		}
	}
	assert.Equal(t, []uint32{0, 480, 960}, ticks)
	assert.NotEqual(t, keys[0], keys[1], "the downbeat uses the accent key")
	assert.Equal(t, keys[1], keys[2])
}

func TestExporterRecoversFromSaveFailure(t *testing.T) {
	t.Parallel()

	saver := &memorySaver{err: errors.New("disk full")}
	e := newTestExporter(t, saver)
	e.SetTrack(compile(t, "bpm 120\n1/4"))
	err := e.Export(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, ExportReady, e.State())
}

func TestExporterRejectsConcurrentExport(t *testing.T) {
	t.Parallel()

	saver := &memorySaver{block: make(chan struct{})}
	e := newTestExporter(t, saver)
	states := e.Watch()
	e.SetTrack(compile(t, "bpm 120\n1/4"))
	require.Equal(t, ExportReady, <-states)

	done := make(chan error, 1)
	go func() { done <- e.Export(context.Background()) }()
	require.Equal(t, ExportExporting, <-states)

	assert.ErrorIs(t, e.Export(context.Background()), ErrExportInProgress)
	close(saver.block)
	require.NoError(t, <-done)
	assert.Equal(t, ExportReady, e.State())
}

func TestFileSaver(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := FileSaver{Path: filepath.Join(dir, "click")}
	require.NoError(t, s.Save(context.Background(), []byte("abc"), "WAV audio", "audio/wav", []string{".wav"}))
	data, err := os.ReadFile(filepath.Join(dir, "click.wav"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	assert.Equal(t, filepath.Join(dir, "take.mid"), FileSaver{Path: filepath.Join(dir, "take.mid")}.Target([]string{".wav"}))
}
