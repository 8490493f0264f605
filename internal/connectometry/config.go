package connectometry

import (
	"fmt"

	"gocnt/internal/config"
	"gocnt/internal/errors"
)

// RestartPolicy decides when an epoch is abandoned for a larger seed count.
type RestartPolicy struct {
	MinIterations int // real iterations that must have elapsed
	MinTracks     int // real tracks below which the epoch is abandoned
	SeedCeiling   int // seed count at which restarts stop
}

// DefaultRestartPolicy restarts after 100 real iterations with fewer than
// 100 real tracks, up to 640000 seeds.
func DefaultRestartPolicy() RestartPolicy {
	return RestartPolicy{MinIterations: 100, MinTracks: 100, SeedCeiling: 640000}
}

// ShouldRestart reports whether an epoch at seedCount with the given real
// iteration and track counts must restart.
func (p RestartPolicy) ShouldRestart(realIterations, realTracks, seedCount int) bool {
	return realIterations > p.MinIterations &&
		realTracks < p.MinTracks &&
		seedCount < p.SeedCeiling
}

// Config holds the parameters of one permutation run.
type Config struct {
	PermutationCount   int
	ThreadCount        int
	TrackThreads       int
	LengthThreshold    int
	TThreshold         float64
	Tip                int
	ExpectedTractCount int // zero disables seed calibration
	SeedFloor          int
	Restart            RestartPolicy
}

// DefaultConfig mirrors config.Default.
func DefaultConfig() Config {
	return ConfigFrom(config.Default())
}

// ConfigFrom extracts the run parameters from the application config.
func ConfigFrom(c *config.Config) Config {
	return Config{
		PermutationCount:   c.Analysis.PermutationCount,
		ThreadCount:        c.Analysis.ThreadCount,
		TrackThreads:       c.Analysis.TrackThreads,
		LengthThreshold:    c.Analysis.LengthThreshold,
		TThreshold:         c.Analysis.TThreshold,
		Tip:                c.Analysis.Tip,
		ExpectedTractCount: c.Analysis.ExpectedTractCount,
		SeedFloor:          c.Seeding.Floor,
		Restart: RestartPolicy{
			MinIterations: c.Seeding.RestartMinIterations,
			MinTracks:     c.Seeding.RestartMinTracks,
			SeedCeiling:   c.Seeding.Ceiling,
		},
	}
}

func (c Config) validate() error {
	switch {
	case c.PermutationCount <= 0:
		return errors.ConfigInvalid(fmt.Sprintf("permutation count must be positive, got %d", c.PermutationCount))
	case c.ThreadCount <= 0:
		return errors.ConfigInvalid(fmt.Sprintf("thread count must be positive, got %d", c.ThreadCount))
	case c.SeedFloor <= 0:
		return errors.ConfigInvalid(fmt.Sprintf("seed floor must be positive, got %d", c.SeedFloor))
	case c.LengthThreshold < 0:
		return errors.ConfigInvalid(fmt.Sprintf("length threshold must not be negative, got %d", c.LengthThreshold))
	}
	return nil
}
