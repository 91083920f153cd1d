package audio

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

type tickerEntry struct {
	due     float64
	onEnded func()
	timer   clock.Timer
	stop    chan struct{}
}

// Ticker is a silent Clock driven by wall time. It plays nothing, but keeps
// the same timing as a Device, which makes it useful for dry runs and
// tests.
type Ticker struct {
	clk clock.Clock

	mu        sync.Mutex
	elapsed   time.Duration
	resumedAt time.Time
	running   bool
	closed    bool
	pending   map[*tickerEntry]struct{}
}

// NewTicker returns a suspended Ticker reading time from clk.
func NewTicker(clk clock.Clock) *Ticker {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Ticker{clk: clk, pending: make(map[*tickerEntry]struct{})}
}

func (t *Ticker) nowLocked() float64 {
	d := t.elapsed
	if t.running {
		d += t.clk.Since(t.resumedAt)
	}
	return d.Seconds()
}

func (t *Ticker) Now() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nowLocked()
}

func (t *Ticker) Schedule(src Source) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	e := &tickerEntry{due: src.Start + src.Slot, onEnded: src.OnEnded}
	t.pending[e] = struct{}{}
	if t.running {
		t.armLocked(e)
	}
	return nil
}

func (t *Ticker) armLocked(e *tickerEntry) {
	wait := time.Duration((e.due - t.nowLocked()) * float64(time.Second))
	if wait < 0 {
		wait = 0
	}
	e.timer = t.clk.NewTimer(wait)
	e.stop = make(chan struct{})
	go t.wait(e, e.timer, e.stop)
}

func (t *Ticker) wait(e *tickerEntry, timer clock.Timer, stop chan struct{}) {
	select {
	case <-timer.C():
	case <-stop:
		return
	}
	t.mu.Lock()
	if _, ok := t.pending[e]; !ok || e.stop != stop {
		t.mu.Unlock()
		return
	}
	delete(t.pending, e)
	t.mu.Unlock()
	if e.onEnded != nil {
		e.onEnded()
	}
}

func (t *Ticker) disarmLocked(e *tickerEntry) {
	if e.timer == nil {
		return
	}
	e.timer.Stop()
	close(e.stop)
	e.timer, e.stop = nil, nil
}

func (t *Ticker) Suspend() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return nil
	}
	t.elapsed += t.clk.Since(t.resumedAt)
	t.running = false
	for e := range t.pending {
		t.disarmLocked(e)
	}
	return nil
}

func (t *Ticker) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if t.running {
		return nil
	}
	t.resumedAt = t.clk.Now()
	t.running = true
	for e := range t.pending {
		t.armLocked(e)
	}
	return nil
}

func (t *Ticker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.running = false
	for e := range t.pending {
		t.disarmLocked(e)
	}
	t.pending = map[*tickerEntry]struct{}{}
	return nil
}
