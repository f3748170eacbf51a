// Package corrtrack provides the reference correlation tracker: a dense
// binary grid plus incrementally maintained two-point (S2) and lineal-path
// (L2) statistics along a set of lattice directions.
//
// Counts are kept as integers and updates record the exact count deltas
// they applied, so Update followed by Rollback restores the statistics
// bit for bit.
package corrtrack

import (
	"github.com/copyleftdev/KILN/internal/reconstruction"
)

// Config assembles a tracker over an existing grid.
type Config struct {
	// Data is the flat row-major grid, phase values in {0, 1}.
	Data []uint8
	// Shape is the grid dimensions, 2 or 3 axes.
	Shape []int
	// Periodic selects periodic rather than clamped boundaries.
	Periodic bool
	// Length is the correlation length: statistics are kept for
	// separations r = 0 .. Length-1.
	Length int
	// Descriptors lists the statistics to track. Only TwoPoint and
	// LinealPath are supported.
	Descriptors []reconstruction.Descriptor
	// Directions lists the lattice directions to measure along.
	Directions []reconstruction.Direction
}

// Tracker implements reconstruction.Tracker over a dense grid.
type Tracker struct {
	data     []uint8
	shape    []int
	periodic bool
	length   int

	descriptors []reconstruction.Descriptor
	directions  []reconstruction.Direction

	// counts[descriptor][direction tag][r] = anchors whose pair/segment
	// predicate holds. anchors[direction tag][r] = valid anchor count.
	counts  map[reconstruction.Descriptor]map[string][]int64
	anchors map[string][]int64
}

// New validates the configuration, builds the tracker and computes the
// initial statistics with a full scan.
func New(cfg Config) (*Tracker, error) {
	if len(cfg.Shape) != 2 && len(cfg.Shape) != 3 {
		return nil, reconstruction.NewErrorf("grid must be 2D or 3D, got %d axes", len(cfg.Shape)).
			WithOperation("New").WithComponent("corrtrack")
	}
	n := reconstruction.NumSites(cfg.Shape)
	if len(cfg.Data) != n {
		return nil, reconstruction.NewErrorf("grid data has %d sites, shape wants %d", len(cfg.Data), n).
			WithOperation("New").WithComponent("corrtrack")
	}
	for i, v := range cfg.Data {
		if v > 1 {
			return nil, reconstruction.NewErrorf("phase value %d at site %d, want 0 or 1", v, i).
				WithOperation("New").WithComponent("corrtrack")
		}
	}
	if cfg.Length < 1 {
		return nil, reconstruction.NewError("correlation length must be at least 1").
			WithOperation("New").WithComponent("corrtrack")
	}
	if len(cfg.Descriptors) == 0 || len(cfg.Directions) == 0 {
		return nil, reconstruction.NewError("at least one descriptor and one direction are required").
			WithOperation("New").WithComponent("corrtrack")
	}
	for _, d := range cfg.Descriptors {
		if d.Kind != reconstruction.TwoPoint && d.Kind != reconstruction.LinealPath {
			return nil, reconstruction.NewErrorf("unsupported descriptor %s", d).
				WithOperation("New").WithComponent("corrtrack")
		}
	}
	for _, dir := range cfg.Directions {
		if len(dir.Step) != len(cfg.Shape) {
			return nil, reconstruction.NewErrorf("direction %q has %d axes, grid has %d",
				dir.Tag, len(dir.Step), len(cfg.Shape)).
				WithOperation("New").WithComponent("corrtrack")
		}
	}

	t := &Tracker{
		data:        append([]uint8(nil), cfg.Data...),
		shape:       append([]int(nil), cfg.Shape...),
		periodic:    cfg.Periodic,
		length:      cfg.Length,
		descriptors: append([]reconstruction.Descriptor(nil), cfg.Descriptors...),
		directions:  append([]reconstruction.Direction(nil), cfg.Directions...),
	}
	t.anchors = t.countAnchors()
	t.counts = t.recount()
	return t, nil
}

// Shape returns the grid dimensions.
func (t *Tracker) Shape() []int { return t.shape }

// Len returns the number of lattice sites.
func (t *Tracker) Len() int { return len(t.data) }

// Periodic reports whether boundaries wrap.
func (t *Tracker) Periodic() bool { return t.periodic }

// Length returns the correlation length.
func (t *Tracker) Length() int { return t.length }

// At returns the phase at the flat index idx.
func (t *Tracker) At(idx int) uint8 { return t.data[idx] }

// Descriptors enumerates the tracked descriptors.
func (t *Tracker) Descriptors() []reconstruction.Descriptor {
	return append([]reconstruction.Descriptor(nil), t.descriptors...)
}

// Directions returns the tracked direction set. The set is shared by all
// descriptors, so d is ignored beyond the interface contract.
func (t *Tracker) Directions(_ reconstruction.Descriptor) []reconstruction.Direction {
	return append([]reconstruction.Direction(nil), t.directions...)
}

// CorrelationFor returns the per-direction correlation vectors for d,
// derived from the maintained counts.
func (t *Tracker) CorrelationFor(d reconstruction.Descriptor) (*reconstruction.CorrelationData, error) {
	byDir, ok := t.counts[d]
	if !ok {
		return nil, reconstruction.NewErrorf("descriptor %s is not tracked", d).
			WithOperation("CorrelationFor").WithComponent("corrtrack")
	}
	values := make(map[string][]float64, len(t.directions))
	for _, dir := range t.directions {
		cts := byDir[dir.Tag]
		anc := t.anchors[dir.Tag]
		vec := make([]float64, t.length)
		for r := 0; r < t.length; r++ {
			if anc[r] > 0 {
				vec[r] = float64(cts[r]) / float64(anc[r])
			}
		}
		values[dir.Tag] = vec
	}
	return reconstruction.NewCorrelationData(t.Directions(d), values), nil
}

// ConstructLike wraps a new grid in a tracker carrying this tracker's
// descriptor set, directions, correlation length and periodicity.
func (t *Tracker) ConstructLike(data []uint8, shape []int) (reconstruction.Tracker, error) {
	return New(Config{
		Data:        data,
		Shape:       shape,
		Periodic:    t.periodic,
		Length:      t.length,
		Descriptors: t.descriptors,
		Directions:  t.directions,
	})
}

// countAnchors computes, per direction and separation, the number of sites
// from which a pair or segment of that extent fits in the grid. With
// periodic boundaries every site anchors every separation.
func (t *Tracker) countAnchors() map[string][]int64 {
	anchors := make(map[string][]int64, len(t.directions))
	for _, dir := range t.directions {
		vec := make([]int64, t.length)
		for r := 0; r < t.length; r++ {
			if t.periodic {
				vec[r] = int64(len(t.data))
				continue
			}
			n := int64(1)
			for i, s := range dir.Step {
				extent := t.shape[i] - r*abs(s)
				if extent <= 0 {
					n = 0
					break
				}
				n *= int64(extent)
			}
			vec[r] = n
		}
		anchors[dir.Tag] = vec
	}
	return anchors
}

// recount recomputes every count with a full grid scan.
func (t *Tracker) recount() map[reconstruction.Descriptor]map[string][]int64 {
	counts := make(map[reconstruction.Descriptor]map[string][]int64, len(t.descriptors))
	for _, d := range t.descriptors {
		byDir := make(map[string][]int64, len(t.directions))
		for _, dir := range t.directions {
			vec := make([]int64, t.length)
			for idx := range t.data {
				coords := reconstruction.UnravelIndex(idx, t.shape)
				for r := 0; r < t.length; r++ {
					if hit, valid := t.predicate(d, coords, dir, r); valid && hit {
						vec[r]++
					}
				}
			}
			byDir[dir.Tag] = vec
		}
		counts[d] = byDir
	}
	return counts
}

// predicate evaluates the descriptor's condition for the anchor at coords
// along dir at separation r. valid is false when the pair or segment does
// not fit in a clamped grid.
func (t *Tracker) predicate(d reconstruction.Descriptor, coords []int, dir reconstruction.Direction, r int) (hit, valid bool) {
	switch d.Kind {
	case reconstruction.TwoPoint:
		v0, ok := t.phaseAt(coords, dir, 0)
		if !ok {
			return false, false
		}
		v1, ok := t.phaseAt(coords, dir, r)
		if !ok {
			return false, false
		}
		return v0 == d.Phase && v1 == d.Phase, true
	case reconstruction.LinealPath:
		for k := 0; k <= r; k++ {
			v, ok := t.phaseAt(coords, dir, k)
			if !ok {
				return false, false
			}
			if v != d.Phase {
				return false, true
			}
		}
		return true, true
	default:
		return false, false
	}
}

// phaseAt reads the phase at coords + k*dir, wrapping when periodic.
// ok is false when the site falls outside a clamped grid.
func (t *Tracker) phaseAt(coords []int, dir reconstruction.Direction, k int) (uint8, bool) {
	pos := make([]int, len(coords))
	for i := range coords {
		pos[i] = coords[i] + k*dir.Step[i]
	}
	if t.periodic {
		reconstruction.WrapCoords(pos, t.shape)
	} else if !reconstruction.InBounds(pos, t.shape) {
		return 0, false
	}
	return t.data[reconstruction.RavelIndex(pos, t.shape)], true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
