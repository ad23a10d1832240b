package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs(t *testing.T) {
	gen := NewSequentialIDs("tx")

	assert.Equal(t, "tx-1", gen.Generate())
	assert.Equal(t, "tx-2", gen.Generate())
	assert.Equal(t, 2, gen.Current())

	gen.Reset()
	assert.Equal(t, "tx-1", gen.Generate())
}

func TestSequentialIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "t-1", NewSequentialIDs("").Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	gen := NewSequentialIDs("t")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				gen.Generate()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, gen.Current())
}

func TestPlanetSchema(t *testing.T) {
	s := PlanetSchema(t)

	assert.Equal(t, []string{"moon", "planet", "star"}, s.Models())
	rel, err := s.Relationship("planet", "moons")
	assert.NoError(t, err)
	assert.Equal(t, "planet", rel.Inverse)
}
