package tractset

import (
	"math/rand"
	"testing"

	"gocnt/domain/tract"
	"gocnt/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAddFiltersByLength(t *testing.T) {
	var p Pool
	kept := p.Add(tract.Set{
		testkit.StraightStreamline(25, 0),
		testkit.StraightStreamline(19, 0),
		testkit.StraightStreamline(20, 0),
		{1, 1, 1},
	}, 20)
	assert.Equal(t, 2, kept)
	assert.Equal(t, 2, p.Len())

	p.Clear()
	assert.Zero(t, p.Len())
	assert.Nil(t, p.Set())
}

func TestDeleteByLength(t *testing.T) {
	set := tract.Set{
		testkit.StraightStreamline(5, 0),
		testkit.StraightStreamline(10, 0),
		testkit.StraightStreamline(15, 0),
	}
	out := DeleteByLength(set, 10)
	require.Len(t, out, 2)
	assert.Equal(t, 10, out[0].Length())
	assert.Len(t, set, 3, "input untouched")
	assert.Empty(t, DeleteByLength(set, 100))
}

func TestDeleteRepeated(t *testing.T) {
	a := testkit.StraightStreamline(10, 0)
	nearCopy := append(tract.Streamline(nil), a...)
	nearCopy[4] += 0.3
	reversed := a.Reversed()
	other := testkit.StraightStreamline(10, 3)

	out := DeleteRepeated(tract.Set{a, nearCopy, reversed, other}, 1.0)
	require.Len(t, out, 2)
	assert.Equal(t, a, out[0])
	assert.Equal(t, other, out[1])

	strict := DeleteRepeated(tract.Set{a, nearCopy}, 0.1)
	assert.Len(t, strict, 2)
}

func TestDeleteRepeatedAcrossCellBoundary(t *testing.T) {
	tests := []struct {
		name string
		a, b tract.Streamline
		kept int
	}{
		{"straddles half voxel", tract.Streamline{0.49, 0.49, 0.49, 5, 5, 5}, tract.Streamline{0.51, 0.51, 0.51, 5, 5, 5}, 1},
		{"straddles whole voxel", tract.Streamline{0.99, 2, 3, 4, 4, 4}, tract.Streamline{1.01, 2, 3, 4, 4, 4}, 1},
		{"negative side", tract.Streamline{-0.01, 0, 0, 3, 3, 3}, tract.Streamline{0.01, 0, 0, 3, 3, 3}, 1},
		{"reversed near boundary", tract.Streamline{0.49, 0.49, 0.49, 5, 5, 5}, tract.Streamline{5, 5, 5.4, 0.51, 0.51, 0.51}, 1},
		{"just outside tolerance", tract.Streamline{0.49, 0, 0, 5, 5, 5}, tract.Streamline{1.6, 0, 0, 5, 5, 5}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := DeleteRepeated(tract.Set{tt.a, tt.b}, 1.0)
			require.Len(t, out, tt.kept)
			assert.Equal(t, tt.a, out[0])
		})
	}
}

func TestDeleteRepeatedIsIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(17))
	for trial := 0; trial < 25; trial++ {
		var set tract.Set
		for i := 0; i < 60; i++ {
			s := testkit.StraightStreamline(3+r.Intn(4), float32(r.Intn(4)))
			for k := range s {
				s[k] += float32(r.Float64()*1.6 - 0.8)
			}
			if r.Intn(2) == 0 {
				s = s.Reversed()
			}
			set = append(set, s)
		}
		once := DeleteRepeated(set, 1.0)
		twice := DeleteRepeated(once, 1.0)
		require.Equal(t, once, twice)
	}
}

func TestTopologyPrunerDropsIsolated(t *testing.T) {
	bundle := tract.Set{
		testkit.StraightStreamline(20, 0),
		testkit.StraightStreamline(20, 0.2),
		testkit.StraightStreamline(20, -0.2),
	}
	isolated := testkit.StraightStreamline(20, 9)
	set := append(append(tract.Set(nil), bundle...), isolated)

	out := NewTopologyPruner().Prune(set)
	assert.Len(t, out, 3)
	for _, s := range out {
		assert.NotEqual(t, isolated, s)
	}

	assert.Len(t, Trim(NewTopologyPruner(), set, 0), 4)
	assert.Len(t, Trim(NewTopologyPruner(), set, 4), 3)
	assert.Empty(t, Trim(NewTopologyPruner(), tract.Set{isolated}, 1))
}
