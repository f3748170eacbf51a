package initializers

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/copyleftdev/KILN/internal/reconstruction"
)

var voidTwoPoint = reconstruction.Descriptor{Kind: reconstruction.TwoPoint, Phase: 0}

// Spheres renders a Boolean model of solid spheres whose void-phase
// two-point function matches the target's: the radius and intensity are
// fitted from the target's S2, the number of centers is Poisson in the
// grid volume, and centers are uniform. The solid fraction is matched
// only in expectation.
//
// r0 and lambda0 seed the fit. A nil shape reuses the target's; a nil rng
// selects a time-seeded generator.
func Spheres(target reconstruction.Tracker, shape []int, r0, lambda0 float64, rng *rand.Rand) (reconstruction.Tracker, error) {
	if shape == nil {
		shape = target.Shape()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	radius, intensity, err := FitBooleanModel(target, r0, lambda0)
	if err != nil {
		return nil, err
	}

	n := reconstruction.NumSites(shape)
	centers := int(distuv.Poisson{Lambda: intensity * float64(n)}.Rand())

	data := make([]uint8, n)
	for i := 0; i < centers; i++ {
		center := make([]float64, len(shape))
		for j, s := range shape {
			center[j] = rng.Float64() * float64(s)
		}
		renderSphere(data, shape, center, radius, target.Periodic())
	}
	return target.ConstructLike(data, shape)
}

// FitBooleanModel fits the radius and intensity of a Boolean sphere model
// so its void-phase two-point function matches the target's direction-
// averaged S2(phase 0). The fit minimizes the squared residual with
// Nelder–Mead from the given starting point.
func FitBooleanModel(target reconstruction.Tracker, r0, lambda0 float64) (radius, intensity float64, err error) {
	if r0 <= 0 || lambda0 <= 0 {
		return 0, 0, reconstruction.NewErrorf("starting radius and intensity must be positive, got (%v, %v)", r0, lambda0).
			WithOperation("FitBooleanModel").WithComponent("initializers")
	}
	corr, err := target.CorrelationFor(voidTwoPoint)
	if err != nil {
		return 0, 0, reconstruction.WrapError(err, "target must track S2 for the void phase").
			WithOperation("FitBooleanModel").WithComponent("initializers")
	}
	s2 := corr.Mean()
	dim := len(target.Shape())

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			r, lam := x[0], x[1]
			if r <= 0 || lam <= 0 {
				return math.Inf(1)
			}
			sum := 0.0
			for d, want := range s2 {
				got := math.Exp(-lam * pairVolume(float64(d), r, dim))
				diff := got - want
				sum += diff * diff
			}
			return sum
		},
	}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-10,
			Iterations: 200,
		},
	}
	method := &optimize.NelderMead{}

	result, err := optimize.Minimize(problem, []float64{r0, lambda0}, settings, method)
	if err != nil {
		return 0, 0, reconstruction.WrapError(err, "sphere model fit").
			WithOperation("FitBooleanModel").WithComponent("initializers")
	}
	return result.X[0], result.X[1], nil
}

// pairVolume is the volume (area in 2D) of the union of two spheres of
// radius r whose centers are d apart. The Boolean model's void-phase S2
// is exp(-λ · pairVolume).
func pairVolume(d, r float64, dim int) float64 {
	switch dim {
	case 2:
		single := math.Pi * r * r
		if d >= 2*r {
			return 2 * single
		}
		lens := 2*r*r*math.Acos(d/(2*r)) - (d/2)*math.Sqrt(4*r*r-d*d)
		return 2*single - lens
	case 3:
		single := 4.0 / 3.0 * math.Pi * r * r * r
		if d >= 2*r {
			return 2 * single
		}
		lens := math.Pi / 12.0 * (4*r + d) * (2*r - d) * (2*r - d)
		return 2*single - lens
	default:
		panic("boolean model supports 2D and 3D grids only")
	}
}

// renderSphere sets every lattice site within radius of center to solid.
// With periodic boundaries the sphere wraps; otherwise out-of-grid parts
// are clipped.
func renderSphere(data []uint8, shape []int, center []float64, radius float64, periodic bool) {
	lo := make([]int, len(shape))
	hi := make([]int, len(shape))
	for i := range shape {
		lo[i] = int(math.Floor(center[i] - radius))
		hi[i] = int(math.Ceil(center[i] + radius))
	}

	coords := make([]int, len(shape))
	var walk func(axis int)
	walk = func(axis int) {
		if axis == len(shape) {
			sum := 0.0
			for i, c := range coords {
				diff := float64(c) - center[i]
				sum += diff * diff
			}
			if sum > radius*radius {
				return
			}
			pos := append([]int(nil), coords...)
			if periodic {
				reconstruction.WrapCoords(pos, shape)
			} else if !reconstruction.InBounds(pos, shape) {
				return
			}
			data[reconstruction.RavelIndex(pos, shape)] = 1
			return
		}
		for c := lo[axis]; c <= hi[axis]; c++ {
			coords[axis] = c
			walk(axis + 1)
		}
	}
	walk(0)
}
