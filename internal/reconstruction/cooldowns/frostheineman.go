package cooldowns

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// FrostHeineman lowers a target cost level by λσ every time the chain's
// recent mean drops below the previous target, and steps the temperature
// by (μ_target − μ_prev)·(T/σ)². Its buffer grows until a target update
// clears it.
type FrostHeineman struct {
	window int
	lambda float64
	buf    []float64
	target float64
}

// NewFrostHeineman creates a Frost–Heineman schedule. The buffer must
// collect at least n samples (n ≥ 2) before a target update is considered;
// lambda must be positive.
func NewFrostHeineman(n int, lambda float64) *FrostHeineman {
	if n < 2 {
		panic(fmt.Sprintf("window must hold at least 2 samples, got %d", n))
	}
	if lambda <= 0 {
		panic(fmt.Sprintf("lambda must be positive, got %v", lambda))
	}
	return &FrostHeineman{
		window: n,
		lambda: lambda,
		buf:    make([]float64, 0, n),
		target: math.Inf(1),
	}
}

// Next appends the cost sample; once the buffer holds the window and the
// mean has dropped below the target, the target moves down by λσ, the
// buffer clears and the temperature steps by (μ_target − μ_prev)·(T/σ)².
// Otherwise the temperature is unchanged.
func (s *FrostHeineman) Next(temp, lastCost float64) float64 {
	s.buf = append(s.buf, lastCost)
	if len(s.buf) < s.window {
		return temp
	}
	mu := stat.Mean(s.buf, nil)
	if mu >= s.target {
		return temp
	}
	sigma := stat.StdDev(s.buf, nil)
	if sigma == 0 {
		// A zero spread gives no scale to step by; hold until the
		// buffer picks up variation.
		return temp
	}

	// The first update anchors μ_prev at the current mean rather than the
	// initial infinite target.
	muPrev := mu
	if !math.IsInf(s.target, 1) {
		muPrev = s.target
	}
	s.target = mu - s.lambda*sigma
	s.buf = s.buf[:0]

	ratio := temp / sigma
	return temp + (s.target-muPrev)*ratio*ratio
}
