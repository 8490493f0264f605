package rng

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draw(t *testing.T, runID, stage, key string, seed int64) []int {
	t.Helper()
	r, err := NewSeeded().Stream(context.Background(), runID, stage, key, seed)
	require.NoError(t, err)
	out := make([]int, 8)
	for i := range out {
		out[i] = r.Intn(1000)
	}
	return out
}

func TestStreamDeterminism(t *testing.T) {
	assert.Equal(t, draw(t, "run", "resample", "rows", 7), draw(t, "run", "resample", "rows", 7))
	assert.NotEqual(t, draw(t, "run", "resample", "rows", 7), draw(t, "run", "resample", "rows", 8))
	assert.NotEqual(t, draw(t, "run", "resample", "rows", 7), draw(t, "run", "resample", "study", 7))
	assert.NotEqual(t, draw(t, "run-a", "resample", "rows", 7), draw(t, "run-b", "resample", "rows", 7))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSeeded().Stream(ctx, "run", "resample", "rows", 1)
	assert.ErrorIs(t, err, context.Canceled)
}
