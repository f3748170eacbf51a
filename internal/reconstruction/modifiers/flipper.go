package modifiers

import (
	"github.com/copyleftdev/KILN/internal/reconstruction"
	"github.com/copyleftdev/KILN/internal/reconstruction/samplers"
)

// Flipper proposes single-site phase flips. Flips change the grid's phase
// fraction by one site.
type Flipper struct {
	sampler samplers.Sampler
}

// NewFlipper creates a flip modifier drawing sites from the sampler.
func NewFlipper(sampler samplers.Sampler) *Flipper {
	return &Flipper{sampler: sampler}
}

// Modify flips one sampled site and returns the tracker's rollback token.
func (m *Flipper) Modify(t reconstruction.Tracker) (reconstruction.ProposalToken, error) {
	idx, err := m.sampler.Sample(t)
	if err != nil {
		return reconstruction.ProposalToken{}, reconstruction.WrapError(err, "sampling flip site").
			WithOperation("Modify").WithComponent("flipper")
	}
	tok, err := write(t, m.sampler, 1-t.At(idx), idx)
	if err != nil {
		return reconstruction.ProposalToken{}, reconstruction.WrapError(err, "flip write").
			WithOperation("Modify").WithComponent("flipper")
	}
	return reconstruction.ProposalToken{First: tok}, nil
}

// Reject reverses a flip.
func (m *Flipper) Reject(t reconstruction.Tracker, tok reconstruction.ProposalToken) error {
	if err := rollback(t, m.sampler, tok.First); err != nil {
		return reconstruction.WrapError(err, "flip rollback").
			WithOperation("Reject").WithComponent("flipper")
	}
	return nil
}
