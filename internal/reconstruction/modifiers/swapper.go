package modifiers

import (
	"github.com/copyleftdev/KILN/internal/reconstruction"
	"github.com/copyleftdev/KILN/internal/reconstruction/samplers"
)

// maxSwapRetries bounds the search for a second site of the opposing
// phase. Hitting it means the grid is effectively single-phase.
const maxSwapRetries = 65536

// Swapper proposes exchanging the phases of two opposing sites. Swaps
// preserve the grid's phase fraction exactly.
type Swapper struct {
	sampler samplers.Sampler
}

// NewSwapper creates a swap modifier drawing sites from the sampler.
func NewSwapper(sampler samplers.Sampler) *Swapper {
	return &Swapper{sampler: sampler}
}

// Modify samples a site, then re-samples until it finds one of the
// opposite phase, and writes the exchanged values through the tracker:
// first site first, then the second. The returned token carries both
// rollback tokens.
func (m *Swapper) Modify(t reconstruction.Tracker) (reconstruction.ProposalToken, error) {
	i1, err := m.sampler.Sample(t)
	if err != nil {
		return reconstruction.ProposalToken{}, reconstruction.WrapError(err, "sampling first swap site").
			WithOperation("Modify").WithComponent("swapper")
	}
	v1 := t.At(i1)

	i2 := -1
	for try := 0; try < maxSwapRetries; try++ {
		candidate, err := m.sampler.Sample(t)
		if err != nil {
			return reconstruction.ProposalToken{}, reconstruction.WrapError(err, "sampling second swap site").
				WithOperation("Modify").WithComponent("swapper")
		}
		if t.At(candidate) != v1 {
			i2 = candidate
			break
		}
	}
	if i2 < 0 {
		return reconstruction.ProposalToken{}, reconstruction.WrapErrorf(reconstruction.ErrHomogeneousGrid,
			"no opposing site after %d draws", maxSwapRetries).
			WithOperation("Modify").WithComponent("swapper")
	}
	v2 := t.At(i2)

	tok1, err := write(t, m.sampler, v2, i1)
	if err != nil {
		return reconstruction.ProposalToken{}, reconstruction.WrapError(err, "first swap write").
			WithOperation("Modify").WithComponent("swapper")
	}
	tok2, err := write(t, m.sampler, v1, i2)
	if err != nil {
		return reconstruction.ProposalToken{}, reconstruction.WrapError(err, "second swap write").
			WithOperation("Modify").WithComponent("swapper")
	}
	return reconstruction.ProposalToken{Pair: true, First: tok1, Second: tok2}, nil
}

// Reject reverses a swap, second write first, so the tracker's
// intermediate states mirror the forward path.
func (m *Swapper) Reject(t reconstruction.Tracker, tok reconstruction.ProposalToken) error {
	if err := rollback(t, m.sampler, tok.Second); err != nil {
		return reconstruction.WrapError(err, "second swap rollback").
			WithOperation("Reject").WithComponent("swapper")
	}
	if err := rollback(t, m.sampler, tok.First); err != nil {
		return reconstruction.WrapError(err, "first swap rollback").
			WithOperation("Reject").WithComponent("swapper")
	}
	return nil
}
