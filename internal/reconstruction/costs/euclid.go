package costs

import (
	"github.com/copyleftdev/KILN/internal/reconstruction"
)

// Mean sums, over all tracked descriptors, the squared Euclidean distance
// between the direction-averaged correlation vectors of the two trackers.
type Mean struct{}

// NewMean creates the direction-averaged euclid cost.
func NewMean() *Mean { return &Mean{} }

// Evaluate implements reconstruction.CostFunc.
func (*Mean) Evaluate(system, target reconstruction.Tracker) (float64, error) {
	if err := checkTrackers(system, target); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, d := range system.Descriptors() {
		dist, err := meanDistance(d, system, target)
		if err != nil {
			return 0, err
		}
		sum += dist
	}
	return sum, nil
}

// Directional sums squared Euclidean distances per direction without
// averaging, then across descriptors. It resolves anisotropy the averaged
// variant washes out.
type Directional struct{}

// NewDirectional creates the per-direction euclid cost.
func NewDirectional() *Directional { return &Directional{} }

// Evaluate implements reconstruction.CostFunc.
func (*Directional) Evaluate(system, target reconstruction.Tracker) (float64, error) {
	if err := checkTrackers(system, target); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, d := range system.Descriptors() {
		dist, err := directionalDistance(d, system, target)
		if err != nil {
			return 0, err
		}
		sum += dist
	}
	return sum, nil
}
