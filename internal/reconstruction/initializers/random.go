// Package initializers produces starting grids for an annealing session,
// wrapped into trackers that inherit the target's descriptor set,
// directions, correlation length and periodicity.
package initializers

import (
	"math/rand"
	"time"

	"github.com/copyleftdev/KILN/internal/reconstruction"
)

// Random scatters solid sites uniformly until the new grid carries
// exactly ⌊φ·N⌋ of them, where φ is the target's solid fraction. Indices
// already set are silently redrawn. A nil shape reuses the target's; a
// nil rng selects a time-seeded generator.
func Random(target reconstruction.Tracker, shape []int, rng *rand.Rand) (reconstruction.Tracker, error) {
	if shape == nil {
		shape = target.Shape()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	n := reconstruction.NumSites(shape)
	want := int(reconstruction.PhaseFraction(target) * float64(n))

	data := make([]uint8, n)
	for placed := 0; placed < want; {
		idx := rng.Intn(n)
		if data[idx] == 0 {
			data[idx] = 1
			placed++
		}
	}
	return target.ConstructLike(data, shape)
}
