// Package spm builds statistical parametric maps: per fiber order and
// voxel T magnitudes split into positive and negative correlation channels.
package spm

import (
	"context"
	"sync"

	"gocnt/domain/atlas"
	"gocnt/domain/stats"
	"gocnt/internal/statmodel"

	"golang.org/x/sync/semaphore"
)

// chunkSize is the number of voxels evaluated per task.
const chunkSize = 2048

// Result holds the non-negative T magnitudes of one resample, indexed
// [fiber][voxel]. Voxels that were not evaluated stay zero.
type Result struct {
	Pos [][]float32
	Neg [][]float32
}

// Field returns the channel for c.
func (r *Result) Field(c stats.Correlation) [][]float32 {
	if c == stats.Negative {
		return r.Neg
	}
	return r.Pos
}

// Builder evaluates a StatModel over every fiber present in the atlas.
type Builder struct {
	atlas          *atlas.Atlas
	fiberThreshold float32
	threads        int
}

// NewBuilder creates a builder evaluating fibers whose anisotropy is
// above fiberThreshold, one goroutine at a time.
func NewBuilder(a *atlas.Atlas, fiberThreshold float32) *Builder {
	return &Builder{atlas: a, fiberThreshold: fiberThreshold, threads: 1}
}

// WithThreads returns a copy evaluating up to n voxel chunks concurrently.
func (b *Builder) WithThreads(n int) *Builder {
	if n < 1 {
		n = 1
	}
	out := *b
	out.threads = n
	return &out
}

// Atlas returns the atlas the builder evaluates.
func (b *Builder) Atlas() *atlas.Atlas { return b.atlas }

// FiberThreshold returns the anisotropy above which a fiber is evaluated.
func (b *Builder) FiberThreshold() float32 { return b.fiberThreshold }

// Calculate builds the map for one resampled model. It does not mutate
// the model or the atlas and may run concurrently with other calls.
//
// Fiber orders at a voxel are visited in order until the first one at or
// below the fiber threshold. When the cohort carries one metric per voxel
// the statistic of the first fiber is reused for the later fiber orders
// at that voxel instead of being recomputed.
func (b *Builder) Calculate(ctx context.Context, m *statmodel.StatModel) (*Result, error) {
	fibers := b.atlas.FiberCount()
	voxels := b.atlas.VoxelCount()
	res := &Result{
		Pos: make([][]float32, fibers),
		Neg: make([][]float32, fibers),
	}
	for f := 0; f < fibers; f++ {
		res.Pos[f] = make([]float32, voxels)
		res.Neg[f] = make([]float32, voxels)
	}

	if b.threads == 1 {
		b.fill(m, res, 0, voxels)
		return res, ctx.Err()
	}

	sem := semaphore.NewWeighted(int64(b.threads))
	var wg sync.WaitGroup
	var err error
	for from := 0; from < voxels; from += chunkSize {
		if err = sem.Acquire(ctx, 1); err != nil {
			break
		}
		to := min(from+chunkSize, voxels)
		wg.Add(1)
		go func(from, to int) {
			defer wg.Done()
			defer sem.Release(1)
			b.fill(m, res, from, to)
		}(from, to)
	}
	wg.Wait()
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (b *Builder) fill(m *statmodel.StatModel, res *Result, from, to int) {
	eval := m.NewEvaluator()
	values := make([]float64, m.SubjectCount())
	single := m.Cohort().SingleMetric()
	fa := b.atlas.FA

	for v := from; v < to; v++ {
		var first stats.Statistic
		evaluated := false
		for f := 0; f < len(fa) && fa[f][v] > b.fiberThreshold; f++ {
			s := first
			if !single || !evaluated {
				if !m.Population(f, v, values) {
					if single {
						break
					}
					continue
				}
				s = eval.Info(values)
				first, evaluated = s, true
			}
			if s.IsZero() {
				continue
			}
			res.Field(s.Correlation)[f][v] = float32(s.Magnitude)
		}
	}
}
