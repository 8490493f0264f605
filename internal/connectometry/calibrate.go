package connectometry

import (
	"context"

	"gocnt/domain/stats"
	"gocnt/internal/spm"
)

// calibrate doubles the seed count from the floor until tracking both
// channels of the unpermuted map yields the per-permutation share of the
// expected tract count, or the ceiling is reached.
func (c *Coordinator) calibrate(ctx context.Context, m *spm.Result) (int, error) {
	seedCount := c.cfg.SeedFloor
	if c.cfg.ExpectedTractCount <= 0 {
		return seedCount, nil
	}
	target := max(c.cfg.ExpectedTractCount/c.cfg.PermutationCount, 1)
	ceiling := max(c.cfg.Restart.SeedCeiling, seedCount)

	for {
		yield := 0
		for _, corr := range stats.Correlations {
			set, err := c.track(ctx, m.Field(corr), seedCount, 0)
			if err != nil {
				return 0, err
			}
			yield += len(set)
		}
		c.logger.Debug("calibration: seed count=%d yield=%d target=%d", seedCount, yield, target)
		if yield >= target || seedCount >= ceiling {
			break
		}
		seedCount = min(seedCount*2, ceiling)
	}
	c.logger.Info("seed count calibrated to %d", seedCount)
	return seedCount, nil
}
