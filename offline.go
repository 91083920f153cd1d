package etcnome

import (
	"context"
	"encoding/binary"
	"math"
	"sync"

	"github.com/pkg/errors"
	"github.com/viterin/vek/vek32"
	"golang.org/x/sync/errgroup"

	"github.com/cbegin/etcnome-go/internal/audio"
	"github.com/cbegin/etcnome-go/internal/effects"
	"github.com/cbegin/etcnome-go/internal/tone"
	"github.com/cbegin/etcnome-go/internal/track"
)

var ErrWAVTooLarge = errors.New("audio is too long for a WAV file")

// maxWAVSamples is the most mono float32 samples whose data chunk still fits
// the 32-bit RIFF size field.
const maxWAVSamples = (math.MaxUint32 - 36) / 4

// Drain collects every remaining event of c.
func Drain(c *track.Cursor) []track.Event {
	var events []track.Event
	for {
		ev, ok := c.Next()
		if !ok {
			return events
		}
		events = append(events, ev)
	}
}

// Length returns the time the last of events ends at.
func Length(events []track.Event) float64 {
	if len(events) == 0 {
		return 0
	}
	last := events[len(events)-1]
	return last.Time + last.Duration
}

// RenderOffline mixes events into a mono buffer exactly as long as the
// events. Tails ringing past the end are cut. Distinct clicks are rendered
// concurrently, at most workers at a time. bus may be nil. Tracks too long for
// a WAV file fail with ErrWAVTooLarge before anything is allocated.
func RenderOffline(ctx context.Context, events []track.Event, ens *tone.Ensemble, sampleRate, workers int, bus effects.Effector) ([]float32, error) {
	if sampleRate <= 0 {
		return nil, errors.Wrapf(tone.ErrInvalidSampleRate, "got %d", sampleRate)
	}
	length := math.Round(Length(events) * float64(sampleRate))
	if length > maxWAVSamples {
		return nil, errors.Wrapf(ErrWAVTooLarge, "%.0f samples", length)
	}
	total := int(length)
	out := make([]float32, total)

	var mu sync.Mutex
	clicks := make(map[track.Sound][]float32)
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, ev := range events {
		snd := ev.Sound
		mu.Lock()
		_, seen := clicks[snd]
		if !seen {
			clicks[snd] = nil
		}
		mu.Unlock()
		if seen {
			continue
		}
		g.Go(func() error {
			buf, err := ens.Sound(gctx, snd, sampleRate)
			if err != nil {
				return err
			}
			mu.Lock()
			clicks[snd] = buf
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "render clicks")
	}

	for i, ev := range events {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		start := int(math.Round(ev.Time * float64(sampleRate)))
		if start >= total {
			continue
		}
		buf := clicks[ev.Sound]
		n := len(buf)
		if bound := audio.MaxTailFactor * int(math.Round(ev.Duration*float64(sampleRate))); n > bound {
			n = bound
		}
		if n > total-start {
			n = total - start
		}
		if n <= 0 {
			continue
		}
		vek32.Add_Inplace(out[start:start+n], buf[:n])
	}
	if bus != nil {
		effects.ProcessBuffer(bus, out)
	}
	return out, nil
}

// EncodeWAV encodes mono samples as a 32-bit IEEE float WAV file.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	const channels = 1
	if len(samples) > maxWAVSamples {
		return nil, errors.Wrapf(ErrWAVTooLarge, "%d samples", len(samples))
	}
	dataSize := uint64(len(samples)) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	out := make([]byte, 44+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], channels)
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out, nil
}
