package interp

import (
	"github.com/cbegin/etcnome-go/internal/notation"
	"github.com/cbegin/etcnome-go/internal/track"
)

// binding is a named section together with the source needed to evaluate it
// again.
type binding struct {
	section track.Section
	source  notation.Instr
}

// scope is an immutable linked chain of bindings. Adding a name returns a
// new head, so a nested block's names vanish when its evaluation returns.
type scope struct {
	parent *scope
	name   string
	b      *binding
}

func (s *scope) with(name string, b *binding) *scope {
	return &scope{parent: s, name: name, b: b}
}

// lookup finds the most recent binding of name visible from s, passing over
// bindings for which skip reports true.
func (s *scope) lookup(name string, skip func(*binding) bool) (*binding, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.name == name && (skip == nil || !skip(cur.b)) {
			return cur.b, true
		}
	}
	return nil, false
}
