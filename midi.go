package etcnome

import (
	"bytes"
	"math"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/etcnome-go/internal/track"
)

const (
	midiTicksPerQuarter = 960
	// the tempo track runs at 60 BPM so that one quarter note is one second
	midiBPM          = 60
	midiDrumChannel  = 9
	midiNoteTicks    = 48
	midiMinVelocity  = 1
	midiMaxVelocity  = 127
	midiToneFalloff  = 0.75
	midiAccentCutoff = 1.0
)

// General MIDI percussion keys per instrument: accented, then plain.
var midiKeys = [][2]uint8{
	{76, 77}, // hi/low wood block
	{34, 33}, // metronome bell/click
	{67, 68}, // high/low agogo
	{60, 61}, // hi/low bongo
}

func midiKey(s track.Sound) uint8 {
	instrument := s.Instrument
	if instrument < 0 {
		instrument = -instrument
	}
	pair := midiKeys[instrument%len(midiKeys)]
	if s.Tone < midiAccentCutoff {
		return pair[0]
	}
	return pair[1]
}

func midiVelocity(s track.Sound) uint8 {
	v := math.Round(midiMaxVelocity * s.Volume * math.Pow(midiToneFalloff, math.Max(s.Tone, 0)))
	return uint8(math.Max(midiMinVelocity, math.Min(midiMaxVelocity, v)))
}

// midiMaxTicks is the largest delta time a variable-length quantity holds.
// Keeping the whole track below it keeps every delta and absolute tick in range.
const midiMaxTicks = 0x0FFFFFFF

var ErrMIDITooLong = errors.New("track is too long for a MIDI file")

func midiTicks(seconds float64) uint32 {
	return uint32(math.Round(seconds * midiTicksPerQuarter * midiBPM / 60))
}

// EncodeMIDI writes events as a single track Standard MIDI File on the
// General MIDI percussion channel, one short note per event.
func EncodeMIDI(events []track.Event) ([]byte, error) {
	if end := math.Round(Length(events) * midiTicksPerQuarter * midiBPM / 60); end > midiMaxTicks {
		return nil, errors.Wrapf(ErrMIDITooLong, "%.0f ticks", end)
	}
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(midiTicksPerQuarter)

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(midiBPM))
	var at uint32
	for _, ev := range events {
		on := midiTicks(ev.Time)
		length := midiTicks(ev.Time+ev.Duration) - on
		if length > midiNoteTicks {
			length = midiNoteTicks
		}
		key := midiKey(ev.Sound)
		tr.Add(on-at, midi.NoteOn(midiDrumChannel, key, midiVelocity(ev.Sound)))
		tr.Add(length, midi.NoteOff(midiDrumChannel, key))
		at = on + length
	}
	tr.Close(midiTicks(Length(events)) - at)
	if err := sm.Add(tr); err != nil {
		return nil, errors.Wrap(err, "add midi track")
	}

	var buf bytes.Buffer
	if _, err := sm.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "write midi")
	}
	return buf.Bytes(), nil
}
