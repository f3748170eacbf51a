package reconstruction

import (
	"math"
	"math/rand"
)

// rollbackTol is the relative tolerance used to verify that the cost after
// a rejected proposal's rollback matches the pre-proposal cost.
const rollbackTol = 1e-9

// Furnace is the annealing state: the evolving system tracker, the fixed
// target tracker, the current temperature and the step counters. Each call
// to Step returns a fresh Furnace; the counter block is never mutated in
// place.
//
// Accepted counts uphill proposals that passed the Metropolis draw,
// Rejected counts uphill proposals that failed it. Downhill and flat moves
// advance Steps only.
type Furnace struct {
	System Tracker
	Target Tracker

	Temperature float64
	Steps       uint64
	Accepted    uint64
	Rejected    uint64
}

// NewFurnace validates that system and target track the same descriptors
// along the same directions and returns the initial annealing state.
func NewFurnace(system, target Tracker, t0 float64) (Furnace, error) {
	if system == nil || target == nil {
		return Furnace{}, NewError("system and target trackers are required").
			WithOperation("NewFurnace").WithComponent("furnace")
	}
	if !SameDescriptors(system, target) {
		return Furnace{}, WrapError(ErrDescriptorMismatch, "cannot anneal").
			WithOperation("NewFurnace").WithComponent("furnace")
	}
	if t0 <= 0 {
		return Furnace{}, NewErrorf("initial temperature must be positive, got %v", t0).
			WithOperation("NewFurnace").WithComponent("furnace")
	}
	return Furnace{System: system, Target: target, Temperature: t0}, nil
}

// Step performs one Metropolis step: evaluate the cost, propose a mutation,
// re-evaluate, then accept the move or roll it back. The cooldown schedule
// is consulted only when the step was not rejected; a rejected step
// preserves the temperature.
//
// On rejection the cost is recomputed after rollback and compared against
// the pre-proposal cost; drift beyond a small relative tolerance returns
// ErrRollbackDrift, which indicates a tracker, modifier or sampler bug.
func Step(f Furnace, cost CostFunc, mod Modifier, cool Schedule, rng *rand.Rand) (Furnace, error) {
	c1, err := cost.Evaluate(f.System, f.Target)
	if err != nil {
		return f, WrapError(err, "pre-proposal cost").WithOperation("Step").WithComponent("furnace")
	}

	tok, err := mod.Modify(f.System)
	if err != nil {
		return f, WrapError(err, "proposal").WithOperation("Step").WithComponent("furnace")
	}

	c2, err := cost.Evaluate(f.System, f.Target)
	if err != nil {
		return f, WrapError(err, "post-proposal cost").WithOperation("Step").WithComponent("furnace")
	}

	next := f
	next.Steps++

	rejected := false
	switch {
	case c2 <= c1:
		// Downhill or flat: always taken, counters untouched.
	default:
		p := math.Exp(-(c2 - c1) / f.Temperature)
		if rng.Float64() <= p {
			next.Accepted++
		} else {
			rejected = true
			next.Rejected++
			if err := mod.Reject(f.System, tok); err != nil {
				return f, WrapError(err, "rollback").WithOperation("Step").WithComponent("furnace")
			}
			restored, err := cost.Evaluate(f.System, f.Target)
			if err != nil {
				return f, WrapError(err, "post-rollback cost").WithOperation("Step").WithComponent("furnace")
			}
			if math.Abs(restored-c1) > rollbackTol*math.Max(1, math.Abs(c1)) {
				return f, WrapErrorf(ErrRollbackDrift, "got %v, want %v", restored, c1).
					WithOperation("Step").WithComponent("furnace")
			}
		}
	}

	if !rejected {
		next.Temperature = cool.Next(f.Temperature, c2)
	}
	return next, nil
}
