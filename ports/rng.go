package ports

import (
	"context"
	"math/rand"
)

// RNGPort hands out seeded random streams. The same run, stage, key and
// seed always yield the same stream, which makes every resample of a run
// reproducible regardless of which worker draws it.
type RNGPort interface {
	Stream(ctx context.Context, runID, stageName, key string, baseSeed int64) (*rand.Rand, error)
}
