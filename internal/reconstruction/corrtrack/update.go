package corrtrack

import (
	"github.com/copyleftdev/KILN/internal/reconstruction"
)

// deltaKey addresses one maintained count.
type deltaKey struct {
	desc reconstruction.Descriptor
	tag  string
	r    int
}

// countDelta is one applied count adjustment, recorded for rollback.
type countDelta struct {
	key deltaKey
	n   int64
}

// updateState is the tracker-private payload of a rollback token.
type updateState struct {
	deltas []countDelta
}

// Update writes value at idx and incrementally adjusts every count whose
// pair or segment crosses the written site: O(length · directions) anchors
// for S2 and O(length² · directions) for L2. The returned token records
// the applied deltas so Rollback restores the statistics exactly.
func (t *Tracker) Update(value uint8, idx int) (reconstruction.RollbackToken, error) {
	if idx < 0 || idx >= len(t.data) {
		return reconstruction.RollbackToken{}, reconstruction.NewErrorf("index %d out of range [0,%d)", idx, len(t.data)).
			WithOperation("Update").WithComponent("corrtrack")
	}
	if value > 1 {
		return reconstruction.RollbackToken{}, reconstruction.NewErrorf("phase value %d, want 0 or 1", value).
			WithOperation("Update").WithComponent("corrtrack")
	}

	prev := t.data[idx]
	tok := reconstruction.RollbackToken{Idx: idx, Prev: prev, State: &updateState{}}
	if prev == value {
		return tok, nil
	}

	coords := reconstruction.UnravelIndex(idx, t.shape)
	acc := make(map[deltaKey]int64)

	t.scanAffected(coords, -1, acc)
	t.data[idx] = value
	t.scanAffected(coords, +1, acc)

	st := tok.State.(*updateState)
	for key, n := range acc {
		if n == 0 {
			continue
		}
		t.counts[key.desc][key.tag][key.r] += n
		st.deltas = append(st.deltas, countDelta{key: key, n: n})
	}
	return tok, nil
}

// Rollback reverses a previous Update by restoring the written site and
// subtracting the recorded count deltas.
func (t *Tracker) Rollback(tok reconstruction.RollbackToken) error {
	st, ok := tok.State.(*updateState)
	if !ok {
		return reconstruction.NewError("token does not belong to this tracker").
			WithOperation("Rollback").WithComponent("corrtrack")
	}
	if tok.Idx < 0 || tok.Idx >= len(t.data) {
		return reconstruction.NewErrorf("token index %d out of range", tok.Idx).
			WithOperation("Rollback").WithComponent("corrtrack")
	}
	t.data[tok.Idx] = tok.Prev
	for _, d := range st.deltas {
		t.counts[d.key.desc][d.key.tag][d.key.r] -= d.n
	}
	return nil
}

// Grid returns a copy of the current grid data.
func (t *Tracker) Grid() []uint8 {
	return append([]uint8(nil), t.data...)
}

// scanAffected adds sign to acc for every (descriptor, direction, r) whose
// predicate currently holds at an anchor touching the mutated site.
// Calling it with -1 before a write and +1 after leaves the net deltas.
func (t *Tracker) scanAffected(coords []int, sign int64, acc map[deltaKey]int64) {
	for _, d := range t.descriptors {
		for _, dir := range t.directions {
			for r := 0; r < t.length; r++ {
				for _, anchor := range t.affectedAnchors(d.Kind, coords, dir, r) {
					if hit, valid := t.predicate(d, anchor, dir, r); valid && hit {
						acc[deltaKey{desc: d, tag: dir.Tag, r: r}] += sign
					}
				}
			}
		}
	}
}

// affectedAnchors enumerates the anchor sites whose pair (S2) or segment
// (L2) of separation r along dir covers the site at coords. Anchors are
// deduplicated: with periodic wrapping two offsets can alias to the same
// site.
func (t *Tracker) affectedAnchors(kind reconstruction.FunctionKind, coords []int, dir reconstruction.Direction, r int) [][]int {
	var ks []int
	if kind == reconstruction.TwoPoint {
		if r == 0 {
			ks = []int{0}
		} else {
			ks = []int{0, r}
		}
	} else {
		ks = make([]int, r+1)
		for k := range ks {
			ks[k] = k
		}
	}

	anchors := make([][]int, 0, len(ks))
	seen := make(map[int]struct{}, len(ks))
	for _, k := range ks {
		a := make([]int, len(coords))
		for i := range coords {
			a[i] = coords[i] - k*dir.Step[i]
		}
		if t.periodic {
			reconstruction.WrapCoords(a, t.shape)
		} else if !reconstruction.InBounds(a, t.shape) {
			continue
		}
		flat := reconstruction.RavelIndex(a, t.shape)
		if _, dup := seen[flat]; dup {
			continue
		}
		seen[flat] = struct{}{}
		anchors = append(anchors, a)
	}
	return anchors
}
