// Package etcnome is a programmable metronome. Programs written in its rhythm
// notation are compiled into tracks, which a Player plays in real time and an
// Exporter renders to WAV or MIDI files.
package etcnome

import (
	"github.com/cbegin/etcnome-go/internal/interp"
	"github.com/cbegin/etcnome-go/internal/notation"
	"github.com/cbegin/etcnome-go/internal/track"
)

// Compile parses and interprets a program. With a selection, the track plays
// the innermost named section around it, restricted to beats inside it.
func Compile(text string, sel *track.Range) (*track.Track, error) {
	block, err := notation.Parse(text)
	if err != nil {
		return nil, err
	}
	return interp.Interpret(block, sel)
}

// SelectOffsets converts a selection given as byte offsets into text to a
// track range.
func SelectOffsets(text string, start, end int) track.Range {
	sl, sc := notation.LocationAt(text, start)
	el, ec := notation.LocationAt(text, end)
	return track.NewRange(sl, sc, el, ec)
}
