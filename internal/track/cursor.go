package track

// Event is a beat placed on the track's timeline.
type Event struct {
	Time     float64
	Duration float64
	Sound    Sound
	Range    Range
}

// Cursor walks a section beat by beat, optionally skipping beats whose range
// is not inside a filter range. All of its state is the progress of the last
// beat handed out plus a running clock, so restarting is cheap.
type Cursor struct {
	section Section
	filter  *Range
	offset  float64
	clock   float64
	last    Progress
}

// NewCursor returns a cursor over s. A nil filter lets every beat through.
// Event times start at offset.
func NewCursor(s Section, filter *Range, offset float64) *Cursor {
	return &Cursor{section: s, filter: filter, offset: offset, clock: offset}
}

func (c *Cursor) filteredNext() (Beat, bool) {
	if c.section == nil {
		return Beat{}, false
	}
	b, ok := Next(c.section, c.last)
	for ok && c.filter != nil && !c.filter.Contains(b.Range) {
		b, ok = Next(c.section, b.Progress)
	}
	return b, ok
}

// HasNext reports whether Next would return an event, without consuming it.
func (c *Cursor) HasNext() bool {
	_, ok := c.filteredNext()
	return ok
}

// Next returns the next event, or false when the section is exhausted.
func (c *Cursor) Next() (Event, bool) {
	b, ok := c.filteredNext()
	if !ok {
		return Event{}, false
	}
	c.last = b.Progress
	ev := Event{Time: c.clock, Duration: b.Duration, Sound: b.Sound, Range: b.Range}
	c.clock += b.Duration
	return ev, true
}

// ToStart restarts the section from its first beat. The clock keeps running,
// so the first event after ToStart is timed right after the last one.
func (c *Cursor) ToStart() {
	c.last = nil
}

// Reset restarts the section and rewinds the clock to the start offset.
func (c *Cursor) Reset() {
	c.last = nil
	c.clock = c.offset
}

// Clock returns the time the next event would start at.
func (c *Cursor) Clock() float64 {
	return c.clock
}

// Position returns the progress of the last event handed out.
func (c *Cursor) Position() Progress {
	return c.last.Clone()
}

// Seek resumes the cursor after the beat described by p, with the next event
// starting at time at.
func (c *Cursor) Seek(p Progress, at float64) {
	c.last = p.Clone()
	c.clock = at
}

// Clone returns an independent cursor at the same position.
func (c *Cursor) Clone() *Cursor {
	out := *c
	out.last = c.last.Clone()
	return &out
}
