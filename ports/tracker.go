package ports

import (
	"context"

	"gocnt/domain/tract"
)

// Tracker runs fiber tracking over a per-fiber magnitude field.
type Tracker interface {
	// RunTrack returns the streamlines grown from SeedCount seed attempts.
	// Fewer than SeedCount streamlines is normal. On cancellation it
	// returns ctx.Err() and no streamlines.
	RunTrack(ctx context.Context, req TrackRequest) (tract.Set, error)
}

// TrackRequest describes one tracking pass
type TrackRequest struct {
	Field       [][]float32 // magnitude per fiber order and voxel
	Threshold   float32     // field values at or below are not followed
	SeedCount   int         // seed attempt budget, not a guaranteed track count
	RandomSeed  int64
	ThreadCount int
	MinLength   int // voxel-distance units
}

// Pruner applies one topology-informed pruning pass to a streamline set
type Pruner interface {
	Prune(set tract.Set) tract.Set
}
