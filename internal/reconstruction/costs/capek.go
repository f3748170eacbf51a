package costs

import (
	"github.com/copyleftdev/KILN/internal/reconstruction"
)

// The Čapek objective anneals the void-phase lineal path in gradually:
// the primary terms are the solid-structure distances S2(phase 0) and
// L2(phase 1); the void-phase L2(phase 0) term is gated by a factor that
// starts at η/(1+η) and approaches one as the primary terms converge.

var (
	capekS2  = reconstruction.Descriptor{Kind: reconstruction.TwoPoint, Phase: 0}
	capekL2S = reconstruction.Descriptor{Kind: reconstruction.LinealPath, Phase: 1}
	capekL2V = reconstruction.Descriptor{Kind: reconstruction.LinealPath, Phase: 0}
)

// Capek is the two-term Čapek cost with one gating control.
type Capek struct {
	etaPrime float64
}

// NewCapek captures the baseline distances s2 + l2(solid) between the two
// trackers and scales eta by their sum. Both trackers must track S2 for
// the void phase and L2 for both phases.
func NewCapek(a, b reconstruction.Tracker, eta float64) (*Capek, error) {
	if err := checkTrackers(a, b); err != nil {
		return nil, err
	}
	s2Init, err := directionalDistance(capekS2, a, b)
	if err != nil {
		return nil, err
	}
	l2Init, err := directionalDistance(capekL2S, a, b)
	if err != nil {
		return nil, err
	}
	if _, err := a.CorrelationFor(capekL2V); err != nil {
		return nil, err
	}
	return &Capek{etaPrime: eta * (s2Init + l2Init)}, nil
}

// Evaluate implements reconstruction.CostFunc.
func (c *Capek) Evaluate(system, target reconstruction.Tracker) (float64, error) {
	if err := checkTrackers(system, target); err != nil {
		return 0, err
	}
	s2, err := directionalDistance(capekS2, system, target)
	if err != nil {
		return 0, err
	}
	l2s, err := directionalDistance(capekL2S, system, target)
	if err != nil {
		return 0, err
	}
	l2v, err := directionalDistance(capekL2V, system, target)
	if err != nil {
		return 0, err
	}
	return s2 + l2s + l2v*gate(c.etaPrime, s2+l2s), nil
}

// GeneralizedCapek extends the Čapek gating to an arbitrary set of extra
// descriptors, each with its own control in [0, 1].
type GeneralizedCapek struct {
	etaPrimes map[reconstruction.Descriptor]float64
}

// NewGeneralizedCapek captures the same s2 + l2(solid) baseline as
// NewCapek and scales each extra descriptor's control by it.
func NewGeneralizedCapek(a, b reconstruction.Tracker, etas map[reconstruction.Descriptor]float64) (*GeneralizedCapek, error) {
	if err := checkTrackers(a, b); err != nil {
		return nil, err
	}
	s2Init, err := directionalDistance(capekS2, a, b)
	if err != nil {
		return nil, err
	}
	l2Init, err := directionalDistance(capekL2S, a, b)
	if err != nil {
		return nil, err
	}
	base := s2Init + l2Init

	etaPrimes := make(map[reconstruction.Descriptor]float64, len(etas))
	for d, eta := range etas {
		if eta < 0 || eta > 1 {
			return nil, reconstruction.NewErrorf("control for %s must be in [0,1], got %v", d, eta).
				WithOperation("NewGeneralizedCapek").WithComponent("costs")
		}
		if _, err := a.CorrelationFor(d); err != nil {
			return nil, err
		}
		etaPrimes[d] = eta * base
	}
	return &GeneralizedCapek{etaPrimes: etaPrimes}, nil
}

// Evaluate implements reconstruction.CostFunc.
func (c *GeneralizedCapek) Evaluate(system, target reconstruction.Tracker) (float64, error) {
	if err := checkTrackers(system, target); err != nil {
		return 0, err
	}
	s2, err := directionalDistance(capekS2, system, target)
	if err != nil {
		return 0, err
	}
	l2s, err := directionalDistance(capekL2S, system, target)
	if err != nil {
		return 0, err
	}
	sum := s2 + l2s
	for d, etaPrime := range c.etaPrimes {
		dist, err := directionalDistance(d, system, target)
		if err != nil {
			return 0, err
		}
		sum += dist * gate(etaPrime, s2+l2s)
	}
	return sum, nil
}

// gate is the Čapek gating factor etaPrime / (etaPrime + primary). It is
// zero when both terms vanish, so a fully converged chain reports zero
// cost instead of NaN.
func gate(etaPrime, primary float64) float64 {
	denom := etaPrime + primary
	if denom == 0 {
		return 0
	}
	return etaPrime / denom
}
