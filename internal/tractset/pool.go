// Package tractset manages streamline pools and the set-level filters
// applied to them before export.
package tractset

import (
	"math"

	"gocnt/domain/tract"
)

// Pool is an append-only streamline collection. It is not safe for
// concurrent use; the coordinator's accumulator owns every pool.
type Pool struct {
	set tract.Set
}

// Add appends the valid streamlines of at least minLength and returns how
// many were kept.
func (p *Pool) Add(set tract.Set, minLength int) int {
	kept := 0
	for _, s := range set {
		if s.Valid() && s.Length() >= minLength {
			p.set = append(p.set, s)
			kept++
		}
	}
	return kept
}

// Len returns the number of streamlines.
func (p *Pool) Len() int { return len(p.set) }

// Set returns the pooled streamlines.
func (p *Pool) Set() tract.Set { return p.set }

// Replace swaps the contents for set.
func (p *Pool) Replace(set tract.Set) { p.set = set }

// Clear empties the pool.
func (p *Pool) Clear() { p.set = nil }

// DeleteByLength keeps streamlines whose length is at least length.
func DeleteByLength(set tract.Set, length int) tract.Set {
	out := set[:0:0]
	for _, s := range set {
		if s.Length() >= length {
			out = append(out, s)
		}
	}
	return out
}

func roundPoint(p [3]float32) [3]int32 {
	return [3]int32{
		int32(math.Round(float64(p[0]))),
		int32(math.Round(float64(p[1]))),
		int32(math.Round(float64(p[2]))),
	}
}

type cellKey struct {
	points int
	cell   [3]int64
}

func cellOf(p [3]float32, size float32) [3]int64 {
	return [3]int64{
		int64(math.Floor(float64(p[0] / size))),
		int64(math.Floor(float64(p[1] / size))),
		int64(math.Floor(float64(p[2] / size))),
	}
}

// DeleteRepeated drops streamlines that repeat an earlier one in either
// direction, every coordinate within tolerance. Kept streamlines are
// indexed by point count and the grid cells of both endpoints, with cells
// one tolerance wide, so a match always lies in one of the 27 cells around
// the candidate's first point. The first occurrence is kept.
func DeleteRepeated(set tract.Set, tolerance float32) tract.Set {
	size := tolerance
	if size <= 0 {
		size = 1
	}
	cells := make(map[cellKey][]int)
	out := make(tract.Set, 0, len(set))
	for _, s := range set {
		if !s.Valid() {
			out = append(out, s)
			continue
		}
		n := s.PointCount()
		head := cellOf(s.Point(0), size)
		if repeated(out, cells, s, cellKey{points: n, cell: head}, tolerance) {
			continue
		}
		idx := len(out)
		out = append(out, s)
		cells[cellKey{n, head}] = append(cells[cellKey{n, head}], idx)
		if tail := cellOf(s.Point(n-1), size); tail != head {
			cells[cellKey{n, tail}] = append(cells[cellKey{n, tail}], idx)
		}
	}
	return out
}

func repeated(kept tract.Set, cells map[cellKey][]int, s tract.Streamline, at cellKey, tolerance float32) bool {
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				k := cellKey{points: at.points, cell: [3]int64{at.cell[0] + dx, at.cell[1] + dy, at.cell[2] + dz}}
				for _, idx := range cells[k] {
					if same(kept[idx], s, tolerance) {
						return true
					}
				}
			}
		}
	}
	return false
}

func same(a, b tract.Streamline, tolerance float32) bool {
	if len(a) != len(b) {
		return false
	}
	forward := true
	for i := range a {
		if abs32(a[i]-b[i]) > tolerance {
			forward = false
			break
		}
	}
	if forward {
		return true
	}
	n := a.PointCount()
	for i := 0; i < n; i++ {
		j := n - 1 - i
		for c := 0; c < 3; c++ {
			if abs32(a[3*i+c]-b[3*j+c]) > tolerance {
				return false
			}
		}
	}
	return true
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
