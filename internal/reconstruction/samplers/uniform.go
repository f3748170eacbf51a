package samplers

import (
	"math/rand"

	"github.com/copyleftdev/KILN/internal/reconstruction"
)

// Uniform draws sites uniformly at random. It is stateless.
type Uniform struct {
	rng *rand.Rand
}

// NewUniform creates a uniform sampler. A nil rng selects a time-seeded
// generator.
func NewUniform(rng *rand.Rand) *Uniform {
	return &Uniform{rng: newRNG(rng)}
}

// Sample returns a uniformly random flat index.
func (s *Uniform) Sample(t reconstruction.Tracker) (int, error) {
	return s.rng.Intn(t.Len()), nil
}

// UpdatePre is a no-op.
func (s *Uniform) UpdatePre(reconstruction.Tracker, int) {}

// UpdatePost is a no-op.
func (s *Uniform) UpdatePost(reconstruction.Tracker, int) {}
