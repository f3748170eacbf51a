package reconstruction_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/KILN/internal/reconstruction"
	"github.com/copyleftdev/KILN/internal/reconstruction/cooldowns"
	"github.com/copyleftdev/KILN/internal/reconstruction/corrtrack"
	"github.com/copyleftdev/KILN/internal/reconstruction/costs"
	"github.com/copyleftdev/KILN/internal/reconstruction/initializers"
	"github.com/copyleftdev/KILN/internal/reconstruction/modifiers"
	"github.com/copyleftdev/KILN/internal/reconstruction/samplers"
)

var testDescriptors = []reconstruction.Descriptor{
	{Kind: reconstruction.TwoPoint, Phase: 0},
	{Kind: reconstruction.LinealPath, Phase: 1},
}

var testDirections = []reconstruction.Direction{
	reconstruction.DirX,
	reconstruction.DirY,
	reconstruction.DirXY,
	reconstruction.DirYX,
}

func newTracker(t *testing.T, rng *rand.Rand, shape []int, fraction float64) reconstruction.Tracker {
	t.Helper()
	data := make([]uint8, reconstruction.NumSites(shape))
	for i := range data {
		if rng.Float64() < fraction {
			data[i] = 1
		}
	}
	tracker, err := corrtrack.New(corrtrack.Config{
		Data:        data,
		Shape:       shape,
		Periodic:    true,
		Length:      5,
		Descriptors: testDescriptors,
		Directions:  testDirections,
	})
	require.NoError(t, err)
	return tracker
}

// stripeTracker builds a structured target: alternating solid bands.
func stripeTracker(t *testing.T, shape []int, band int) reconstruction.Tracker {
	t.Helper()
	data := make([]uint8, reconstruction.NumSites(shape))
	for idx := range data {
		coords := reconstruction.UnravelIndex(idx, shape)
		if (coords[1]/band)%2 == 0 {
			data[idx] = 1
		}
	}
	tracker, err := corrtrack.New(corrtrack.Config{
		Data:        data,
		Shape:       shape,
		Periodic:    true,
		Length:      5,
		Descriptors: testDescriptors,
		Directions:  testDirections,
	})
	require.NoError(t, err)
	return tracker
}

func TestNewFurnaceValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	system := newTracker(t, rng, []int{8, 8}, 0.5)
	target := newTracker(t, rng, []int{8, 8}, 0.5)

	_, err := reconstruction.NewFurnace(nil, target, 1)
	assert.Error(t, err)

	_, err = reconstruction.NewFurnace(system, target, 0)
	assert.Error(t, err)

	mismatched, err := corrtrack.New(corrtrack.Config{
		Data:        make([]uint8, 64),
		Shape:       []int{8, 8},
		Periodic:    true,
		Length:      5,
		Descriptors: testDescriptors[:1],
		Directions:  testDirections,
	})
	require.NoError(t, err)
	_, err = reconstruction.NewFurnace(system, mismatched, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, reconstruction.ErrDescriptorMismatch)

	furnace, err := reconstruction.NewFurnace(system, target, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.5, furnace.Temperature)
	assert.Zero(t, furnace.Steps)
}

// TestStepOnConvergedPair starts from identical system and target: the
// first proposal can only be uphill or flat, and the counters must
// reflect the classification.
func TestStepOnConvergedPair(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	target := newTracker(t, rng, []int{10, 10}, 0.5)
	system, err := target.ConstructLike(gridOf(target), target.Shape())
	require.NoError(t, err)

	furnace, err := reconstruction.NewFurnace(system, target, 1e-4)
	require.NoError(t, err)

	mod := modifiers.NewFlipper(samplers.NewUniform(rng))
	next, err := reconstruction.Step(furnace, costs.NewDirectional(), mod, cooldowns.NewExponential(0.999), rng)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), next.Steps)
	assert.LessOrEqual(t, next.Accepted+next.Rejected, uint64(1),
		"at most one counter moves on a single step")
	if next.Rejected == 1 {
		assert.Equal(t, furnace.Temperature, next.Temperature, "rejection preserves temperature")
	} else {
		assert.Less(t, next.Temperature, furnace.Temperature)
	}
}

// TestStepRejectionPreservesTemperature forces rejections with a
// freezing temperature and verifies the schedule is never consulted.
func TestStepRejectionPreservesTemperature(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	target := stripeTracker(t, []int{16, 16}, 4)
	system, err := initializers.Random(target, nil, rng)
	require.NoError(t, err)

	furnace, err := reconstruction.NewFurnace(system, target, 1e-300)
	require.NoError(t, err)

	cost := costs.NewDirectional()
	mod := modifiers.NewFlipper(samplers.NewUniform(rng))
	cool := cooldowns.NewExponential(0.5)

	sawRejection := false
	for i := 0; i < 200; i++ {
		next, err := reconstruction.Step(furnace, cost, mod, cool, rng)
		require.NoError(t, err)
		if next.Rejected > furnace.Rejected {
			sawRejection = true
			require.Equal(t, furnace.Temperature, next.Temperature)
		}
		furnace = next
	}
	assert.True(t, sawRejection, "a frozen chain must reject uphill proposals")
}

// TestAnnealingConvergence anneals a random start toward a striped
// target and requires the cost to drop.
func TestAnnealingConvergence(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	target := stripeTracker(t, []int{24, 24}, 4)
	system, err := initializers.Random(target, nil, rng)
	require.NoError(t, err)

	furnace, err := reconstruction.NewFurnace(system, target, 1e-4)
	require.NoError(t, err)

	cost := costs.NewDirectional()
	mod := modifiers.NewFlipper(samplers.NewInterface(rng))
	cool := cooldowns.NewAartsKorst(15, 0.01)

	initial, err := cost.Evaluate(furnace.System, furnace.Target)
	require.NoError(t, err)

	for i := 0; i < 3000; i++ {
		furnace, err = reconstruction.Step(furnace, cost, mod, cool, rng)
		require.NoError(t, err)
	}

	final, err := cost.Evaluate(furnace.System, furnace.Target)
	require.NoError(t, err)
	assert.Less(t, final, initial)
	assert.Equal(t, uint64(3000), furnace.Steps)
}

// TestSwapChainPreservesPhaseFraction anneals with a swapper and checks
// the solid count never moves.
func TestSwapChainPreservesPhaseFraction(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	target := stripeTracker(t, []int{16, 16}, 4)
	system, err := initializers.Random(target, nil, rng)
	require.NoError(t, err)

	furnace, err := reconstruction.NewFurnace(system, target, 1e-4)
	require.NoError(t, err)

	want := reconstruction.SolidCount(furnace.System)
	cost := costs.NewMean()
	mod := modifiers.NewSwapper(samplers.NewInterface(rng))
	cool := cooldowns.NewExponential(0.999999)

	for i := 0; i < 1000; i++ {
		furnace, err = reconstruction.Step(furnace, cost, mod, cool, rng)
		require.NoError(t, err)
	}
	assert.Equal(t, want, reconstruction.SolidCount(furnace.System))
}

// TestCapekChainConverges runs the Čapek objective end to end.
func TestCapekChainConverges(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	target := stripeTracker(t, []int{20, 20}, 5)

	system, err := initializers.Random(target, nil, rng)
	require.NoError(t, err)

	capekTarget, err := withCapekDescriptors(target)
	require.NoError(t, err)
	capekSystem, err := capekTarget.ConstructLike(gridOf(system), system.Shape())
	require.NoError(t, err)

	furnace, err := reconstruction.NewFurnace(capekSystem, capekTarget, 7e-5)
	require.NoError(t, err)

	cost, err := costs.NewCapek(capekSystem, capekTarget, 0.6)
	require.NoError(t, err)
	reference := costs.NewDirectional()

	initial, err := reference.Evaluate(furnace.System, furnace.Target)
	require.NoError(t, err)

	mod := modifiers.NewFlipper(samplers.NewInterface(rng))
	cool := cooldowns.NewAartsKorst(15, 0.01)
	for i := 0; i < 2000; i++ {
		furnace, err = reconstruction.Step(furnace, cost, mod, cool, rng)
		require.NoError(t, err)
	}

	final, err := reference.Evaluate(furnace.System, furnace.Target)
	require.NoError(t, err)
	assert.Less(t, final, initial)
}

// withCapekDescriptors rebuilds a tracker over the same grid with the
// descriptor set the Čapek cost requires.
func withCapekDescriptors(t reconstruction.Tracker) (reconstruction.Tracker, error) {
	return corrtrack.New(corrtrack.Config{
		Data:     gridOf(t),
		Shape:    t.Shape(),
		Periodic: t.Periodic(),
		Length:   5,
		Descriptors: []reconstruction.Descriptor{
			{Kind: reconstruction.TwoPoint, Phase: 0},
			{Kind: reconstruction.LinealPath, Phase: 0},
			{Kind: reconstruction.LinealPath, Phase: 1},
		},
		Directions: testDirections,
	})
}

func gridOf(t reconstruction.Tracker) []uint8 {
	data := make([]uint8, t.Len())
	for i := range data {
		data[i] = t.At(i)
	}
	return data
}
