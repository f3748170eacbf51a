package cooldowns

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// AartsKorst adapts the temperature to the spread of recent costs: every
// time its circular buffer of n samples fills, the temperature becomes
// T·σ/(σ + λT) where σ is the buffer's standard deviation. Between
// refills the temperature is unchanged.
type AartsKorst struct {
	lambda float64
	buf    []float64
	next   int
}

// NewAartsKorst creates an Aarts–Korst schedule over a window of n cost
// samples. n must be at least 2 and lambda positive.
func NewAartsKorst(n int, lambda float64) *AartsKorst {
	if n < 2 {
		panic(fmt.Sprintf("window must hold at least 2 samples, got %d", n))
	}
	if lambda <= 0 {
		panic(fmt.Sprintf("lambda must be positive, got %v", lambda))
	}
	return &AartsKorst{lambda: lambda, buf: make([]float64, 0, n)}
}

// Next appends the cost sample and, on every n-th call, rescales the
// temperature by the window's spread.
func (s *AartsKorst) Next(temp, lastCost float64) float64 {
	if len(s.buf) < cap(s.buf) {
		s.buf = append(s.buf, lastCost)
	} else {
		s.buf[s.next] = lastCost
		s.next = (s.next + 1) % cap(s.buf)
	}
	if len(s.buf) < cap(s.buf) || s.next != 0 {
		return temp
	}
	sigma := stat.StdDev(s.buf, nil)
	return temp * sigma / (sigma + s.lambda*temp)
}
