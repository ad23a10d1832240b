package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates transform ids "<prefix>-1", "<prefix>-2", ...
//
// Unlike model.FixedIDGenerator it can be reset, so the same scenario run
// twice produces identical ids and byte-identical golden output.
//
// Safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewSequentialIDs creates a generator. An empty prefix defaults to "t".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "t"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Current returns the number of ids generated since the last reset.
func (g *SequentialIDs) Current() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence. The next id is "<prefix>-1".
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
