package etcnome

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cbegin/etcnome-go/internal/audio"
	"github.com/cbegin/etcnome-go/internal/logging"
	"github.com/cbegin/etcnome-go/internal/track"
)

// startLead delays the first event of a session so that it is never
// scheduled in the past.
const startLead = 0.05

var (
	ErrNothingToPlay = errors.New("nothing to play")
	ErrInvalidSpeed  = errors.New("speed must be positive")
)

type State int

const (
	StateEmpty State = iota
	StateStopped
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	}
	return "unknown"
}

// session is one run of the clock, from Play to stop or natural end.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	clock  audio.Clock
	// next is the clock time the next scheduled event starts at.
	next     float64
	inFlight int
}

func (s *session) close() error {
	if s == nil {
		return nil
	}
	s.cancel()
	if s.clock == nil {
		return nil
	}
	return s.clock.Close()
}

// Player plays a track in real time. It keeps a small window of events
// scheduled ahead of the clock and tops it up every time an event's slot ends.
type Player struct {
	opts options
	log  *logrus.Entry

	mu      sync.Mutex
	state   State
	track   *track.Track
	cursor  *track.Cursor
	session *session

	watch watcher[State]
}

func NewPlayer(opts ...Option) (*Player, error) {
	o := buildOptions(opts)
	if o.sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	if !(o.speed > 0) {
		return nil, ErrInvalidSpeed
	}
	return &Player{
		opts: o,
		log:  logging.GetProjectLogger().WithField("component", "player"),
	}, nil
}

// Watch returns a channel that receives every state change. Only the most
// recent Watch channel receives states; call Watch before SetTrack.
func (p *Player) Watch() <-chan State {
	return p.watch.watch()
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) setStateLocked(s State) {
	if p.state == s {
		return
	}
	p.log.WithFields(logrus.Fields{"from": p.state, "to": s}).Debug("state change")
	p.state = s
	p.watch.send(s)
}

func (p *Player) idleStateLocked() State {
	if p.cursor != nil && p.cursor.HasNext() {
		return StateStopped
	}
	return StateEmpty
}

// detachLocked forgets the current session. The caller closes it after
// releasing p.mu.
func (p *Player) detachLocked() *session {
	s := p.session
	p.session = nil
	if s != nil {
		s.cancel()
	}
	return s
}

func (p *Player) closeSession(s *session) {
	if err := s.close(); err != nil {
		p.log.WithError(err).Warn("close audio clock")
	}
}

// SetTrack stops playback and loads t. The player is stopped if t has
// anything to play and empty otherwise.
func (p *Player) SetTrack(t *track.Track) {
	p.mu.Lock()
	s := p.detachLocked()
	p.track = t
	p.cursor = nil
	if t != nil {
		p.cursor = t.Cursor()
	}
	p.setStateLocked(p.idleStateLocked())
	p.mu.Unlock()
	p.closeSession(s)
}

func (p *Player) SetRepeat(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts.repeat = enabled
}

// SetSpeed scales the tempo of events scheduled from now on.
func (p *Player) SetSpeed(speed float64) error {
	if !(speed > 0) {
		return errors.Wrapf(ErrInvalidSpeed, "got %v", speed)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts.speed = speed
	return nil
}

// Play starts or resumes playback. Starting blocks until the clicks for the
// first events are rendered.
func (p *Player) Play() error {
	p.mu.Lock()
	switch p.state {
	case StatePlaying:
		p.mu.Unlock()
		return nil
	case StateEmpty:
		p.mu.Unlock()
		return ErrNothingToPlay
	case StatePaused:
		s := p.session
		p.setStateLocked(StatePlaying)
		p.mu.Unlock()
		if err := s.clock.Resume(); err != nil {
			return p.fail(s, errors.Wrap(err, "resume audio clock"))
		}
		return nil
	}
	if p.session != nil {
		// already starting
		p.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{ctx: ctx, cancel: cancel}
	p.session = s
	sounds := p.firstSoundsLocked()
	sampleRate := p.opts.sampleRate
	p.mu.Unlock()

	if err := p.opts.ensemble.Prepare(ctx, sounds, sampleRate); err != nil {
		return p.fail(s, errors.Wrap(err, "prepare clicks"))
	}
	clk, err := p.opts.clock(sampleRate)
	if err != nil {
		return p.fail(s, errors.Wrap(err, "open audio clock"))
	}

	p.mu.Lock()
	if p.session != s {
		// stopped while preparing
		p.mu.Unlock()
		_ = clk.Close()
		return nil
	}
	s.clock = clk
	s.next = clk.Now() + startLead
	done, err := p.refillLocked(s)
	if err != nil || done {
		p.mu.Unlock()
		if err == nil {
			err = ErrNothingToPlay
		}
		return p.fail(s, err)
	}
	p.setStateLocked(StatePlaying)
	p.mu.Unlock()

	if err := clk.Resume(); err != nil {
		return p.fail(s, errors.Wrap(err, "start audio clock"))
	}
	p.log.WithField("sampleRate", sampleRate).Info("playback started")
	return nil
}

// firstSoundsLocked lists the sounds of the first burst of events without
// moving the cursor.
func (p *Player) firstSoundsLocked() []track.Sound {
	c := p.cursor.Clone()
	sounds := make([]track.Sound, 0, p.opts.lookahead)
	wrapped := false
	for len(sounds) < p.opts.lookahead {
		ev, ok := c.Next()
		if !ok {
			if !p.opts.repeat || wrapped {
				break
			}
			wrapped = true
			c.ToStart()
			continue
		}
		sounds = append(sounds, ev.Sound)
	}
	return sounds
}

// refillLocked tops up the scheduling window. It reports done once the
// track has ended and nothing is left in flight.
func (p *Player) refillLocked(s *session) (bool, error) {
	for s.inFlight < p.opts.lookahead {
		ev, ok := p.cursor.Next()
		if !ok && p.opts.repeat {
			p.cursor.ToStart()
			ev, ok = p.cursor.Next()
		}
		if !ok {
			break
		}
		slot := ev.Duration / p.opts.speed
		start := s.next
		s.next += slot
		s.inFlight++
		if err := p.scheduleLocked(s, ev.Sound, start, slot); err != nil {
			return false, err
		}
	}
	return s.inFlight == 0, nil
}

func (p *Player) source(s *session, buf []float32, start, slot float64) audio.Source {
	return audio.Source{
		Samples: buf,
		Start:   start,
		Slot:    slot,
		OnEnded: func() { p.slotEnded(s) },
	}
}

func (p *Player) scheduleLocked(s *session, snd track.Sound, start, slot float64) error {
	if buf, ok := p.opts.ensemble.Lookup(snd, p.opts.sampleRate); ok {
		return errors.Wrap(s.clock.Schedule(p.source(s, buf, start, slot)), "schedule click")
	}
	go p.resolve(s, snd, start, slot)
	return nil
}

// resolve renders a click that was not cached yet and schedules it. A click
// that arrives after its session ended is dropped.
func (p *Player) resolve(s *session, snd track.Sound, start, slot float64) {
	buf, err := p.opts.ensemble.Sound(s.ctx, snd, p.opts.sampleRate)
	if err != nil {
		if s.ctx.Err() == nil {
			_ = p.fail(s, errors.Wrap(err, "render click"))
		}
		return
	}
	p.mu.Lock()
	if p.session != s {
		p.mu.Unlock()
		return
	}
	err = s.clock.Schedule(p.source(s, buf, start, slot))
	p.mu.Unlock()
	if err != nil {
		_ = p.fail(s, errors.Wrap(err, "schedule click"))
	}
}

// slotEnded runs on the clock's thread whenever a scheduled event's slot has
// passed.
func (p *Player) slotEnded(s *session) {
	p.mu.Lock()
	if p.session != s {
		p.mu.Unlock()
		return
	}
	s.inFlight--
	done, err := p.refillLocked(s)
	if err != nil {
		p.mu.Unlock()
		_ = p.fail(s, err)
		return
	}
	if done {
		p.detachLocked()
		p.cursor.Reset()
		p.setStateLocked(p.idleStateLocked())
	}
	p.mu.Unlock()
	if done {
		p.log.Info("playback ended")
		// the clock may be calling us from its own thread
		go p.closeSession(s)
	}
}

// fail tears down session s and forces the player back to stopped. It
// returns err, or nil if s was no longer current.
func (p *Player) fail(s *session, err error) error {
	p.mu.Lock()
	if p.session != s {
		p.mu.Unlock()
		p.closeSession(s)
		return nil
	}
	p.detachLocked()
	p.cursor.Reset()
	p.setStateLocked(p.idleStateLocked())
	p.mu.Unlock()
	p.closeSession(s)
	p.log.WithError(err).Error("playback failed")
	return err
}

// Pause suspends the clock. Scheduled events resume where they were.
func (p *Player) Pause() error {
	p.mu.Lock()
	s := p.session
	if p.state != StatePlaying || s == nil || s.clock == nil {
		p.mu.Unlock()
		return nil
	}
	p.setStateLocked(StatePaused)
	p.mu.Unlock()
	if err := s.clock.Suspend(); err != nil {
		return p.fail(s, errors.Wrap(err, "suspend audio clock"))
	}
	return nil
}

// Stop discards the clock and rewinds to the start of the track. The clock is
// closed even if the player believes it is already stopped.
func (p *Player) Stop() error {
	p.mu.Lock()
	s := p.detachLocked()
	if p.cursor != nil {
		p.cursor.Reset()
	}
	p.setStateLocked(p.idleStateLocked())
	p.mu.Unlock()
	return errors.Wrap(s.close(), "close audio clock")
}

// Close stops playback. The player stays usable.
func (p *Player) Close() error {
	return p.Stop()
}
