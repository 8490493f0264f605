// Package tracking implements deterministic streamline tracking over a
// per-fiber magnitude field restricted to the atlas fiber directions.
package tracking

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gocnt/domain/atlas"
	"gocnt/domain/core"
	"gocnt/domain/tract"
	"gocnt/ports"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultAngle is the maximum turning angle between steps, in degrees.
	DefaultAngle = 60
	// DefaultStep is the step size in voxels.
	DefaultStep = 1.0

	cancelCheckInterval = 256
)

// StreamlineTracker grows streamlines from random seeds placed in the
// whole-brain region of an atlas.
type StreamlineTracker struct {
	atlas     *atlas.Atlas
	seeds     []int
	cosAngle  float32
	step      float32
	maxLength int
}

// NewStreamlineTracker seeds from every voxel whose first fiber FA is
// above fiberThreshold.
func NewStreamlineTracker(a *atlas.Atlas, fiberThreshold float32) *StreamlineTracker {
	t := &StreamlineTracker{
		atlas:     a,
		cosAngle:  float32(math.Cos(DefaultAngle * math.Pi / 180)),
		step:      DefaultStep,
		maxLength: 2 * a.MaxDimension(),
	}
	if len(a.FA) > 0 {
		for v, fa := range a.FA[0] {
			if fa > fiberThreshold {
				t.seeds = append(t.seeds, v)
			}
		}
	}
	return t
}

// SeedRegionSize returns the number of voxels seeds are drawn from.
func (t *StreamlineTracker) SeedRegionSize() int { return len(t.seeds) }

// RunTrack implements ports.Tracker. Output order follows seed index, so a
// request yields the same streamlines for any ThreadCount.
func (t *StreamlineTracker) RunTrack(ctx context.Context, req ports.TrackRequest) (tract.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	voxels := t.atlas.VoxelCount()
	for f, field := range req.Field {
		if len(field) != voxels {
			return nil, core.NewDimensionMismatchError(fmt.Sprintf("field[%d]", f), len(field), voxels)
		}
	}
	if req.SeedCount <= 0 || len(t.seeds) == 0 || len(req.Field) == 0 {
		return nil, nil
	}

	threads := max(req.ThreadCount, 1)
	results := make([]tract.Streamline, req.SeedCount)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < threads; w++ {
		g.Go(func() error {
			for i := w; i < req.SeedCount; i += threads {
				if (i/threads)%cancelCheckInterval == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				results[i] = t.trackSeed(&req, i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out tract.Set
	for _, s := range results {
		if s != nil && s.Length() >= req.MinLength {
			out = append(out, s)
		}
	}
	return out, nil
}

func (t *StreamlineTracker) trackSeed(req *ports.TrackRequest, index int) tract.Streamline {
	r := rand.New(rand.NewPCG(uint64(req.RandomSeed), uint64(index)))
	v := t.seeds[r.IntN(len(t.seeds))]
	x, y, z := t.atlas.Coord(v)
	pos := [3]float32{
		float32(x) + r.Float32() - 0.5,
		float32(y) + r.Float32() - 0.5,
		float32(z) + r.Float32() - 0.5,
	}

	fibers := min(len(req.Field), t.atlas.FiberCount())
	fiber := -1
	for f := 0; f < fibers; f++ {
		if req.Field[f][v] > req.Threshold {
			fiber = f
			break
		}
	}
	if fiber < 0 {
		return nil
	}
	dir := t.atlas.Direction(fiber, v)
	if dir == [3]float32{} {
		return nil
	}

	forward := t.trace(req, pos, dir)
	backward := t.trace(req, pos, [3]float32{-dir[0], -dir[1], -dir[2]})
	if len(forward)+len(backward)-1 > t.maxLength+1 {
		return nil
	}

	out := make(tract.Streamline, 0, 3*(len(forward)+len(backward)-1))
	for i := len(backward) - 1; i > 0; i-- {
		out = append(out, backward[i][0], backward[i][1], backward[i][2])
	}
	for _, p := range forward {
		out = append(out, p[0], p[1], p[2])
	}
	return out
}

// trace follows the field from pos, starting along dir, and returns the
// visited points including pos.
func (t *StreamlineTracker) trace(req *ports.TrackRequest, pos, dir [3]float32) [][3]float32 {
	points := [][3]float32{pos}
	fibers := min(len(req.Field), t.atlas.FiberCount())
	for len(points) <= t.maxLength+1 {
		next := [3]float32{
			pos[0] + t.step*dir[0],
			pos[1] + t.step*dir[1],
			pos[2] + t.step*dir[2],
		}
		x, y, z := voxelOf(next)
		if !t.atlas.Contains(x, y, z) {
			break
		}
		v := t.atlas.Index(x, y, z)

		var best [3]float32
		bestCos := t.cosAngle
		found := false
		for f := 0; f < fibers; f++ {
			if req.Field[f][v] <= req.Threshold {
				continue
			}
			d := t.atlas.Direction(f, v)
			c := d[0]*dir[0] + d[1]*dir[1] + d[2]*dir[2]
			sign := float32(1)
			if c < 0 {
				c, sign = -c, -1
			}
			if c >= bestCos {
				bestCos = c
				best = [3]float32{sign * d[0], sign * d[1], sign * d[2]}
				found = true
			}
		}
		if !found {
			break
		}
		pos, dir = next, best
		points = append(points, pos)
	}
	return points
}

func voxelOf(p [3]float32) (int, int, int) {
	return int(math.Floor(float64(p[0]) + 0.5)),
		int(math.Floor(float64(p[1]) + 0.5)),
		int(math.Floor(float64(p[2]) + 0.5))
}
