package costs

import (
	"github.com/copyleftdev/KILN/internal/reconstruction"
)

// distanceFunc is a per-descriptor distance between two trackers.
type distanceFunc func(reconstruction.Descriptor, reconstruction.Tracker, reconstruction.Tracker) (float64, error)

// Weighted normalizes each descriptor's contribution by its distance at
// construction time, so every descriptor starts at parity (one unit each)
// regardless of the functions' natural scales.
type Weighted struct {
	weights  map[reconstruction.Descriptor]float64
	distance distanceFunc
}

// NewMeanWeighted captures the direction-averaged baseline distances
// between the two trackers. A descriptor whose baseline distance is zero
// is rejected with reconstruction.ErrZeroBaseline: its weight would
// divide by zero on every later evaluation.
func NewMeanWeighted(a, b reconstruction.Tracker) (*Weighted, error) {
	return newWeighted(a, b, meanDistance)
}

// NewDirectionalWeighted captures the per-direction baseline distances
// between the two trackers. Zero baselines are rejected as in
// NewMeanWeighted.
func NewDirectionalWeighted(a, b reconstruction.Tracker) (*Weighted, error) {
	return newWeighted(a, b, directionalDistance)
}

func newWeighted(a, b reconstruction.Tracker, distance distanceFunc) (*Weighted, error) {
	if err := checkTrackers(a, b); err != nil {
		return nil, err
	}
	weights := make(map[reconstruction.Descriptor]float64)
	for _, d := range a.Descriptors() {
		w, err := distance(d, a, b)
		if err != nil {
			return nil, err
		}
		if w == 0 {
			return nil, reconstruction.WrapErrorf(reconstruction.ErrZeroBaseline, "descriptor %s", d).
				WithOperation("newWeighted").WithComponent("costs")
		}
		weights[d] = w
	}
	return &Weighted{weights: weights, distance: distance}, nil
}

// Evaluate implements reconstruction.CostFunc.
func (c *Weighted) Evaluate(system, target reconstruction.Tracker) (float64, error) {
	if err := checkTrackers(system, target); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, d := range system.Descriptors() {
		w, ok := c.weights[d]
		if !ok {
			return 0, reconstruction.WrapErrorf(reconstruction.ErrDescriptorMismatch,
				"descriptor %s missing from baseline", d).
				WithOperation("Evaluate").WithComponent("costs")
		}
		dist, err := c.distance(d, system, target)
		if err != nil {
			return 0, err
		}
		sum += dist / w
	}
	return sum, nil
}
