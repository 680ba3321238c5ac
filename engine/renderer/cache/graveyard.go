package cache

import "sync"

// Graveyard defers releases of objects that recorded but not yet completed
// GPU work may still reference. The owner drains it once the work is known
// to be finished.
type Graveyard struct {
	mu      sync.Mutex
	pending []func()
}

func NewGraveyard() *Graveyard {
	return &Graveyard{}
}

func (g *Graveyard) Bury(release func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = append(g.pending, release)
}

// Drain runs every pending release in burial order. Releases buried by a
// running release are drained too.
func (g *Graveyard) Drain() int {
	n := 0
	for {
		g.mu.Lock()
		pending := g.pending
		g.pending = nil
		g.mu.Unlock()
		if len(pending) == 0 {
			return n
		}
		for _, release := range pending {
			release()
		}
		n += len(pending)
	}
}

func (g *Graveyard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}
