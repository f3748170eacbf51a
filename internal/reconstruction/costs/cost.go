// Package costs provides the scalar distances between two correlation
// trackers that the annealing loop minimizes: plain and per-direction
// euclid distances, baseline-weighted variants, and the time-dependent
// Čapek objective.
package costs

import (
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/KILN/internal/reconstruction"
)

// sqDist returns the squared Euclidean distance between two correlation
// vectors.
func sqDist(x, y []float64) float64 {
	d := floats.Distance(x, y, 2)
	return d * d
}

// meanDistance is the squared distance between the direction-averaged
// correlation vectors of one descriptor.
func meanDistance(d reconstruction.Descriptor, a, b reconstruction.Tracker) (float64, error) {
	ca, err := a.CorrelationFor(d)
	if err != nil {
		return 0, err
	}
	cb, err := b.CorrelationFor(d)
	if err != nil {
		return 0, err
	}
	return sqDist(ca.Mean(), cb.Mean()), nil
}

// directionalDistance sums the squared distances of one descriptor's
// correlation vectors direction by direction, without averaging.
func directionalDistance(d reconstruction.Descriptor, a, b reconstruction.Tracker) (float64, error) {
	ca, err := a.CorrelationFor(d)
	if err != nil {
		return 0, err
	}
	cb, err := b.CorrelationFor(d)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, dir := range ca.Directions() {
		sum += sqDist(ca.ForDirection(dir.Tag), cb.ForDirection(dir.Tag))
	}
	return sum, nil
}

// checkTrackers enforces the shared precondition of every cost: both
// trackers report the same descriptor and direction sets.
func checkTrackers(a, b reconstruction.Tracker) error {
	if !reconstruction.SameDescriptors(a, b) {
		return reconstruction.WrapError(reconstruction.ErrDescriptorMismatch, "cost evaluation").
			WithComponent("costs")
	}
	return nil
}
