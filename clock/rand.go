package clock

import (
	"math/rand/v2"
	"sync"
)

// Rand defines an interface for random number generation, allowing for testing.
type Rand interface {
	// IntN returns, as an int, a non-negative pseudo-random number in [0,n).
	// It panics if n <= 0.
	IntN(n int) int

	// Float64 returns, as a float64, a pseudo-random number in [0.0,1.0).
	Float64() float64
}

// standardRand wraps a math/rand/v2 generator; the mutex makes it safe
// for concurrent use by retrying clients.
type standardRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewStandardRand returns a Rand seeded from the runtime's random source.
func NewStandardRand() Rand {
	return &standardRand{r: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewStandardRandWithSeed returns a deterministic Rand for reproducible tests.
func NewStandardRandWithSeed(seed uint64) Rand {
	return &standardRand{r: rand.New(rand.NewPCG(seed, seed))}
}

func (s *standardRand) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

func (s *standardRand) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}
