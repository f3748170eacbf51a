// Package modifiers provides the mutation strategies of the annealing
// loop: single-site flips and opposing-phase swaps. Each modifier owns a
// sampler and brackets every tracker write with the sampler's pre/post
// notifications, on the forward path and on rejection alike, so stateful
// samplers rewind exactly with the grid.
package modifiers

import (
	"github.com/copyleftdev/KILN/internal/reconstruction"
	"github.com/copyleftdev/KILN/internal/reconstruction/samplers"
)

// write routes one tracker write through the sampler's pre/post hooks.
func write(t reconstruction.Tracker, s samplers.Sampler, value uint8, idx int) (reconstruction.RollbackToken, error) {
	s.UpdatePre(t, idx)
	tok, err := t.Update(value, idx)
	s.UpdatePost(t, idx)
	return tok, err
}

// rollback reverses one tracker write through the sampler's pre/post hooks.
func rollback(t reconstruction.Tracker, s samplers.Sampler, tok reconstruction.RollbackToken) error {
	s.UpdatePre(t, tok.Idx)
	err := t.Rollback(tok)
	s.UpdatePost(t, tok.Idx)
	return err
}
