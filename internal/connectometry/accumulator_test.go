package connectometry

import (
	"testing"

	"gocnt/domain/stats"
	"gocnt/domain/tract"
	"gocnt/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(epoch uint64, index int, length int, n int) iterationResult {
	r := iterationResult{epoch: epoch, index: index}
	for _, s := range stats.Samples {
		for _, c := range stats.Correlations {
			set := make(tract.Set, n)
			for i := range set {
				set[i] = testkit.StraightStreamline(length, float32(index))
			}
			r.tracks[s][c] = set
		}
	}
	return r
}

func TestAccumulatorCounts(t *testing.T) {
	acc := newAccumulator(16, 5, 1)
	defer acc.stop()

	acc.submit(result(1, 0, 10, 2))
	acc.submit(result(1, 1, 3, 4)) // histogrammed but below the pool length
	acc.submit(result(1, 2, 40, 1))

	snap := acc.Snapshot()
	assert.Equal(t, 3, snap.RealIterations)
	assert.Equal(t, 3, snap.Tracks[stats.Real][stats.Positive])
	assert.Equal(t, 6, snap.RealTracks())
	assert.Equal(t, uint64(7), snap.Histogram[stats.Null][stats.Negative])
	assert.False(t, snap.Empty())
}

func TestAccumulatorDiscardsStaleEpochs(t *testing.T) {
	acc := newAccumulator(16, 0, 1)
	defer acc.stop()

	acc.submit(result(1, 0, 10, 2))
	after := acc.Reset(2)
	assert.True(t, after.Empty())
	assert.Equal(t, uint64(2), after.Epoch)

	acc.submit(result(1, 1, 10, 2))
	acc.submit(result(2, 0, 10, 1))
	snap := acc.Snapshot()
	assert.Equal(t, 1, snap.Stale)
	assert.Equal(t, 1, snap.RealIterations)
	assert.Equal(t, 1, snap.Tracks[stats.Real][stats.Positive])
}

func TestAccumulatorDrainOrdersByIndex(t *testing.T) {
	acc := newAccumulator(16, 0, 1)
	defer acc.stop()

	for _, i := range []int{3, 0, 2, 1} {
		acc.submit(result(1, i, 6, 1))
	}
	pools := acc.Drain()
	set := pools[stats.Real][stats.Positive].Set()
	require.Len(t, set, 4)
	for i, s := range set {
		assert.Equal(t, float32(i), s.Point(0)[1])
	}
}
