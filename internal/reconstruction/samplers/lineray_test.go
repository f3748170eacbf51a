package samplers

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRayFirstYieldIsSeed(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 50; trial++ {
		seed := []int{rng.Intn(20), rng.Intn(20)}
		ray := NewRay(seed, rng)
		assert.Equal(t, seed, ray.Next())
	}
}

func TestRayAdvancesOutward(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	for trial := 0; trial < 50; trial++ {
		seed := []int{10, 10}
		ray := NewRay(seed, rng)
		ray.Next()

		prev := 0.0
		for i := 0; i < 20; i++ {
			pos := ray.Next()
			dx := float64(pos[0] - seed[0])
			dy := float64(pos[1] - seed[1])
			dist := math.Sqrt(dx*dx + dy*dy)
			// Each step advances the ray parameter by sqrt(2); the floored
			// lattice distance tracks it to within one cell per axis.
			assert.GreaterOrEqual(t, dist, prev-2.0)
			prev = dist
		}
		assert.Greater(t, prev, 20.0, "ray should leave a 20-cell neighborhood after 20 steps")
	}
}

func TestRay3DDirectionOnSphere(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	ray := NewRay([]int{5, 5, 5}, rng)
	norm := 0.0
	for _, u := range ray.unit {
		norm += u * u
	}
	require.InDelta(t, 1.0, norm, 1e-12)
}

func TestRayRejectsBadSeeds(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	assert.Panics(t, func() { NewRay([]int{1}, rng) })
	assert.Panics(t, func() { NewRay([]int{1, 2, 3, 4}, rng) })
}
