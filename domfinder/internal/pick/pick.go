// Package pick draws random elements (User-Agents, row colours) from an
// injectable source so tests can seed it.
package pick

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source is satisfied by *rand.Rand from math/rand/v2.
type Source interface {
	IntN(n int) int
}

// Locked is a Source safe for concurrent use.
type Locked struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewLocked returns a concurrency-safe Source seeded with seed.
func NewLocked(seed uint64) *Locked {
	return &Locked{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewTimeSeeded returns a Locked source seeded from the wall clock.
func NewTimeSeeded() *Locked {
	return NewLocked(uint64(time.Now().UnixNano()))
}

// IntN returns a pseudo-random int in [0, n). It panics if n <= 0.
func (l *Locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.IntN(n)
}

// One returns a random element of items, or the zero value when items is empty.
func One[T any](src Source, items []T) T {
	var zero T
	if len(items) == 0 {
		return zero
	}
	return items[src.IntN(len(items))]
}
