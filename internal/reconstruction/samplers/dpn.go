package samplers

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/copyleftdev/KILN/internal/reconstruction"
)

// DPN samples sites weighted by their count of different-phase neighbors.
// It maintains a histogram H where H[n] is the number of grid sites with
// exactly n Moore-neighbors of the opposite phase (8-connected in 2D,
// 26-connected in 3D). A draw first picks n with probability proportional
// to alpha^n * H[n], then rejection-samples a uniform site whose neighbor
// count equals n. Larger alpha biases the draw toward rougher interface
// sites.
type DPN struct {
	rng     *rand.Rand
	alpha   float64
	offsets [][]int
	hist    []int64
}

// NewDPN builds the sampler and its histogram with a full grid scan.
// alpha must be positive.
func NewDPN(t reconstruction.Tracker, alpha float64, rng *rand.Rand) (*DPN, error) {
	if alpha <= 0 {
		return nil, reconstruction.NewErrorf("alpha must be positive, got %v", alpha).
			WithOperation("NewDPN").WithComponent("samplers")
	}
	s := &DPN{
		rng:     newRNG(rng),
		alpha:   alpha,
		offsets: reconstruction.MooreOffsets(len(t.Shape())),
		hist:    Histogram(t),
	}
	return s, nil
}

// Histogram recomputes the different-phase-neighbor histogram of the
// tracker's grid from scratch. The result has 3^N buckets.
func Histogram(t reconstruction.Tracker) []int64 {
	shape := t.Shape()
	offsets := reconstruction.MooreOffsets(len(shape))
	hist := make([]int64, len(offsets)+1)
	for idx := 0; idx < t.Len(); idx++ {
		hist[neighborCount(t, reconstruction.UnravelIndex(idx, shape), offsets)]++
	}
	return hist
}

// Histogram returns a copy of the maintained histogram.
func (s *DPN) Histogram() []int64 {
	return append([]int64(nil), s.hist...)
}

// Sample draws a neighbor-count bucket with probability proportional to
// alpha^n * H[n], then rejection-samples a site from that bucket.
func (s *DPN) Sample(t reconstruction.Tracker) (int, error) {
	total := 0.0
	for n, h := range s.hist {
		if h > 0 {
			total += math.Pow(s.alpha, float64(n)) * float64(h)
		}
	}

	x := s.rng.Float64() * total
	bucket := -1
	for n, h := range s.hist {
		if h == 0 {
			continue
		}
		x -= math.Pow(s.alpha, float64(n)) * float64(h)
		if x <= 0 {
			bucket = n
			break
		}
		bucket = n // floating-point slack lands in the last nonempty bucket
	}
	if bucket < 0 || s.hist[bucket] <= 0 {
		panic(fmt.Sprintf("dpn histogram bucket %d is empty", bucket))
	}

	shape := t.Shape()
	for {
		idx := s.rng.Intn(t.Len())
		if neighborCount(t, reconstruction.UnravelIndex(idx, shape), s.offsets) == bucket {
			return idx, nil
		}
	}
}

// UpdatePre removes the mutating site and its neighborhood from the
// histogram ahead of a grid write.
func (s *DPN) UpdatePre(t reconstruction.Tracker, idx int) {
	for _, site := range s.neighborhood(t, idx) {
		s.hist[neighborCount(t, site, s.offsets)]--
	}
}

// UpdatePost re-adds the mutated site and its neighborhood after a grid
// write.
func (s *DPN) UpdatePost(t reconstruction.Tracker, idx int) {
	for _, site := range s.neighborhood(t, idx) {
		s.hist[neighborCount(t, site, s.offsets)]++
	}
}

// neighborhood returns the coordinates of idx and every in-grid Moore
// neighbor, deduplicated: on small periodic grids offsets can alias.
func (s *DPN) neighborhood(t reconstruction.Tracker, idx int) [][]int {
	shape := t.Shape()
	center := reconstruction.UnravelIndex(idx, shape)
	sites := make([][]int, 0, len(s.offsets)+1)
	seen := map[int]struct{}{idx: {}}
	sites = append(sites, center)

	for _, off := range s.offsets {
		pos := make([]int, len(center))
		for i := range pos {
			pos[i] = center[i] + off[i]
		}
		if t.Periodic() {
			reconstruction.WrapCoords(pos, shape)
		} else if !reconstruction.InBounds(pos, shape) {
			continue
		}
		flat := reconstruction.RavelIndex(pos, shape)
		if _, dup := seen[flat]; dup {
			continue
		}
		seen[flat] = struct{}{}
		sites = append(sites, pos)
	}
	return sites
}

// neighborCount returns the number of Moore neighbors of the site at
// coords holding the opposite phase.
func neighborCount(t reconstruction.Tracker, coords []int, offsets [][]int) int {
	shape := t.Shape()
	phase := t.At(reconstruction.RavelIndex(coords, shape))
	n := 0
	for _, off := range offsets {
		pos := make([]int, len(coords))
		for i := range pos {
			pos[i] = coords[i] + off[i]
		}
		if t.Periodic() {
			reconstruction.WrapCoords(pos, shape)
		} else if !reconstruction.InBounds(pos, shape) {
			continue
		}
		if t.At(reconstruction.RavelIndex(pos, shape)) != phase {
			n++
		}
	}
	return n
}
