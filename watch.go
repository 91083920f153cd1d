package etcnome

import "sync"

// watcher delivers state changes to the most recent Watch channel. Sends
// never block; a slow reader misses intermediate states.
type watcher[S any] struct {
	mu sync.Mutex
	ch chan S
}

func (w *watcher[S]) watch() <-chan S {
	ch := make(chan S, 8)
	w.mu.Lock()
	w.ch = ch
	w.mu.Unlock()
	return ch
}

func (w *watcher[S]) send(s S) {
	w.mu.Lock()
	ch := w.ch
	w.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- s:
	default:
	}
}
