package cache

// cascadeGuard tracks which operation keys are in flight during a patch.
//
// An operation whose key is already outstanding is part of its own
// cascade; applying it again would loop (A links B, B links A, ...).
// Keys are counted rather than flagged so sibling duplicates release
// correctly.
type cascadeGuard struct {
	outstanding map[string]int
}

func newCascadeGuard() *cascadeGuard {
	return &cascadeGuard{outstanding: make(map[string]int)}
}

// wouldCycle reports whether key is already in flight.
func (g *cascadeGuard) wouldCycle(key string) bool {
	return g.outstanding[key] > 0
}

// enter marks key as in flight.
func (g *cascadeGuard) enter(key string) {
	g.outstanding[key]++
}

// leave releases one hold on key.
func (g *cascadeGuard) leave(key string) {
	if g.outstanding[key] <= 1 {
		delete(g.outstanding, key)
		return
	}
	g.outstanding[key]--
}

// size returns the number of distinct keys in flight.
func (g *cascadeGuard) size() int {
	return len(g.outstanding)
}
