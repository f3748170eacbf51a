package initializers_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/KILN/internal/reconstruction"
	"github.com/copyleftdev/KILN/internal/reconstruction/corrtrack"
	"github.com/copyleftdev/KILN/internal/reconstruction/initializers"
)

func newTarget(t *testing.T, rng *rand.Rand, shape []int, fraction float64) reconstruction.Tracker {
	t.Helper()
	data := make([]uint8, reconstruction.NumSites(shape))
	for i := range data {
		if rng.Float64() < fraction {
			data[i] = 1
		}
	}
	tracker, err := corrtrack.New(corrtrack.Config{
		Data:     data,
		Shape:    shape,
		Periodic: true,
		Length:   5,
		Descriptors: []reconstruction.Descriptor{
			{Kind: reconstruction.TwoPoint, Phase: 0},
			{Kind: reconstruction.LinealPath, Phase: 1},
		},
		Directions: []reconstruction.Direction{reconstruction.DirX, reconstruction.DirY},
	})
	require.NoError(t, err)
	return tracker
}

func TestRandomPreservesPhaseFractionExactly(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	target := newTarget(t, rng, []int{20, 20}, 0.37)

	system, err := initializers.Random(target, nil, rng)
	require.NoError(t, err)

	want := int(reconstruction.PhaseFraction(target) * float64(system.Len()))
	assert.Equal(t, want, reconstruction.SolidCount(system))
	assert.Equal(t, target.Shape(), system.Shape())
	assert.True(t, reconstruction.SameDescriptors(target, system))
}

func TestRandomScalesToRequestedShape(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	target := newTarget(t, rng, []int{10, 10}, 0.5)

	shape := []int{16, 16}
	system, err := initializers.Random(target, shape, rng)
	require.NoError(t, err)

	assert.Equal(t, shape, system.Shape())
	want := int(reconstruction.PhaseFraction(target) * 256)
	assert.Equal(t, want, reconstruction.SolidCount(system))
}

// booleanTarget renders a Boolean model with known parameters into a
// periodic tracker.
func booleanTarget(t *testing.T, rng *rand.Rand, shape []int, radius, intensity float64) reconstruction.Tracker {
	t.Helper()
	data := make([]uint8, reconstruction.NumSites(shape))
	centers := int(intensity * float64(len(data)))
	for i := 0; i < centers; i++ {
		cy := rng.Float64() * float64(shape[0])
		cx := rng.Float64() * float64(shape[1])
		for idx := range data {
			coords := reconstruction.UnravelIndex(idx, shape)
			dy := wrapDist(float64(coords[0])-cy, float64(shape[0]))
			dx := wrapDist(float64(coords[1])-cx, float64(shape[1]))
			if dy*dy+dx*dx <= radius*radius {
				data[idx] = 1
			}
		}
	}

	tracker, err := corrtrack.New(corrtrack.Config{
		Data:     data,
		Shape:    shape,
		Periodic: true,
		Length:   12,
		Descriptors: []reconstruction.Descriptor{
			{Kind: reconstruction.TwoPoint, Phase: 0},
		},
		Directions: []reconstruction.Direction{reconstruction.DirX, reconstruction.DirY},
	})
	require.NoError(t, err)
	return tracker
}

func TestSpheresProducesTwoPhaseGrid(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	target := booleanTarget(t, rng, []int{48, 48}, 4, 0.01)

	system, err := initializers.Spheres(target, nil, 3, 0.02, rng)
	require.NoError(t, err)

	assert.Equal(t, target.Shape(), system.Shape())
	assert.True(t, reconstruction.SameDescriptors(target, system))

	fraction := reconstruction.PhaseFraction(system)
	assert.Greater(t, fraction, 0.0)
	assert.Less(t, fraction, 1.0)
}

func TestFitBooleanModelRecoversKnownModel(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	const radius, intensity = 4.0, 0.01
	target := booleanTarget(t, rng, []int{64, 64}, radius, intensity)

	r, lam, err := initializers.FitBooleanModel(target, 3, 0.02)
	require.NoError(t, err)
	assert.InDelta(t, radius, r, 1.5)
	assert.InDelta(t, intensity, lam, 0.01)
}

func TestFitBooleanModelValidatesStart(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	target := newTarget(t, rng, []int{10, 10}, 0.5)

	_, _, err := initializers.FitBooleanModel(target, 0, 0.1)
	assert.Error(t, err)
	_, _, err = initializers.FitBooleanModel(target, 2, -1)
	assert.Error(t, err)
}

func wrapDist(d, period float64) float64 {
	for d > period/2 {
		d -= period
	}
	for d < -period/2 {
		d += period
	}
	return d
}
