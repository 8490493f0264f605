package tractset

import (
	"gocnt/domain/tract"
	"gocnt/ports"
)

// TopologyPruner removes streamlines that run mostly through voxels no
// other streamline of the set visits.
type TopologyPruner struct {
	// MinShared is the fraction of a streamline's voxels that must be
	// shared with another streamline for it to survive a pass.
	MinShared float64
}

var _ ports.Pruner = TopologyPruner{}

// NewTopologyPruner returns a pruner requiring half of the voxels shared.
func NewTopologyPruner() TopologyPruner {
	return TopologyPruner{MinShared: 0.5}
}

// Prune applies one pass.
func (p TopologyPruner) Prune(set tract.Set) tract.Set {
	if len(set) == 0 {
		return set
	}
	voxels := make([][][3]int32, len(set))
	visits := make(map[[3]int32]int)
	for i, s := range set {
		voxels[i] = distinctVoxels(s)
		for _, v := range voxels[i] {
			visits[v]++
		}
	}

	out := set[:0:0]
	for i, s := range set {
		if len(voxels[i]) == 0 {
			continue
		}
		shared := 0
		for _, v := range voxels[i] {
			if visits[v] > 1 {
				shared++
			}
		}
		if float64(shared) >= p.MinShared*float64(len(voxels[i])) {
			out = append(out, s)
		}
	}
	return out
}

// Trim applies iterations passes of pruner.
func Trim(pruner ports.Pruner, set tract.Set, iterations int) tract.Set {
	for i := 0; i < iterations && len(set) > 0; i++ {
		set = pruner.Prune(set)
	}
	return set
}

func distinctVoxels(s tract.Streamline) [][3]int32 {
	n := s.PointCount()
	seen := make(map[[3]int32]struct{}, n)
	out := make([][3]int32, 0, n)
	for i := 0; i < n; i++ {
		v := roundPoint(s.Point(i))
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
