package samplers

import (
	"math/rand"

	"github.com/copyleftdev/KILN/internal/reconstruction"
)

// maxInterfaceRetries bounds the number of seed sites an Interface sampler
// tries before concluding the grid has no phase boundary.
const maxInterfaceRetries = 1024

// Interface samples sites on a phase boundary: it casts a ray from a
// random seed and returns the first site along the ray whose phase differs
// from the seed's. Rays that leave the grid trigger a retry from a fresh
// seed, so boundary sites are hit with probability proportional to their
// exposure.
type Interface struct {
	rng *rand.Rand
}

// NewInterface creates an interface sampler. A nil rng selects a
// time-seeded generator.
func NewInterface(rng *rand.Rand) *Interface {
	return &Interface{rng: newRNG(rng)}
}

// Sample returns a site adjacent to a phase change. A grid containing a
// single phase has no such site; after the retry budget is exhausted the
// error wraps reconstruction.ErrNoInterface.
func (s *Interface) Sample(t reconstruction.Tracker) (int, error) {
	shape := t.Shape()
	for try := 0; try < maxInterfaceRetries; try++ {
		seedIdx := s.rng.Intn(t.Len())
		seedPhase := t.At(seedIdx)

		ray := NewRay(reconstruction.UnravelIndex(seedIdx, shape), s.rng)
		ray.Next() // the seed itself
		for {
			pos := ray.Next()
			if !reconstruction.InBounds(pos, shape) {
				break
			}
			idx := reconstruction.RavelIndex(pos, shape)
			if t.At(idx) != seedPhase {
				return idx, nil
			}
		}
	}
	return 0, reconstruction.WrapErrorf(reconstruction.ErrNoInterface, "after %d seeds", maxInterfaceRetries).
		WithOperation("Sample").WithComponent("samplers")
}

// UpdatePre is a no-op.
func (s *Interface) UpdatePre(reconstruction.Tracker, int) {}

// UpdatePost is a no-op.
func (s *Interface) UpdatePost(reconstruction.Tracker, int) {}
