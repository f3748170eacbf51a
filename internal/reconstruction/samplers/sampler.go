// Package samplers provides the site-selection strategies used by the
// mutation modifiers: uniform, interface-biased and different-phase-
// neighbor-weighted sampling.
package samplers

import (
	"math/rand"
	"time"

	"github.com/copyleftdev/KILN/internal/reconstruction"
)

// Sampler chooses one lattice site per call. Stateful samplers maintain
// internal statistics over the grid and must be notified of every grid
// mutation: UpdatePre before the tracker write, UpdatePost after it. The
// same bracketing applies on the rejection path so sampler state rewinds
// together with the grid.
type Sampler interface {
	// Sample returns an in-bounds flat index.
	Sample(t reconstruction.Tracker) (int, error)
	// UpdatePre is called before the site at idx mutates.
	UpdatePre(t reconstruction.Tracker, idx int)
	// UpdatePost is called after the site at idx mutated.
	UpdatePost(t reconstruction.Tracker, idx int)
}

// newRNG returns rng, or a time-seeded generator when rng is nil.
func newRNG(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
