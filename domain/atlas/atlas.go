package atlas

import (
	"fmt"
	"math"

	"gocnt/domain/core"
)

// Atlas is the template fiber field every subject is sampled on.
// FA and Dir are indexed by fiber order first: FA[f][v], Dir[f][3v:3v+3].
type Atlas struct {
	Dimension [3]int
	VoxelSize [3]float32
	FA        [][]float32
	Dir       [][]float32
}

// VoxelCount returns the number of spatial indices.
func (a *Atlas) VoxelCount() int {
	return a.Dimension[0] * a.Dimension[1] * a.Dimension[2]
}

// FiberCount returns the number of fiber orders per voxel.
func (a *Atlas) FiberCount() int {
	return len(a.FA)
}

// MaxDimension returns the largest extent, which sizes the length histograms.
func (a *Atlas) MaxDimension() int {
	m := a.Dimension[0]
	if a.Dimension[1] > m {
		m = a.Dimension[1]
	}
	if a.Dimension[2] > m {
		m = a.Dimension[2]
	}
	return m
}

// Index converts voxel coordinates to a flat spatial index.
func (a *Atlas) Index(x, y, z int) int {
	return x + a.Dimension[0]*(y+a.Dimension[1]*z)
}

// Coord converts a flat spatial index back to coordinates.
func (a *Atlas) Coord(i int) (x, y, z int) {
	x = i % a.Dimension[0]
	i /= a.Dimension[0]
	y = i % a.Dimension[1]
	z = i / a.Dimension[1]
	return
}

// Contains reports whether the coordinates fall inside the volume.
func (a *Atlas) Contains(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 &&
		x < a.Dimension[0] && y < a.Dimension[1] && z < a.Dimension[2]
}

// Direction returns the unit direction of fiber f at voxel v.
func (a *Atlas) Direction(f, v int) [3]float32 {
	d := a.Dir[f][3*v : 3*v+3]
	return [3]float32{d[0], d[1], d[2]}
}

// Validate checks array shapes against the dimension.
func (a *Atlas) Validate() error {
	for i, d := range a.Dimension {
		if d <= 0 {
			return fmt.Errorf("%w: dimension %d is %d", core.ErrInvalidAtlas, i, d)
		}
	}
	if len(a.FA) == 0 {
		return fmt.Errorf("%w: no fiber orders", core.ErrInvalidAtlas)
	}
	if len(a.Dir) != len(a.FA) {
		return core.NewDimensionMismatchError("direction fiber orders", len(a.Dir), len(a.FA))
	}
	n := a.VoxelCount()
	for f := range a.FA {
		if len(a.FA[f]) != n {
			return core.NewDimensionMismatchError(fmt.Sprintf("fa%d", f), len(a.FA[f]), n)
		}
		if len(a.Dir[f]) != 3*n {
			return core.NewDimensionMismatchError(fmt.Sprintf("dir%d", f), len(a.Dir[f]), 3*n)
		}
	}
	for i := range a.VoxelSize {
		if a.VoxelSize[i] <= 0 {
			a.VoxelSize[i] = 1
		}
	}
	return nil
}

// FiberThreshold returns 0.6 of the Otsu threshold of the first fiber order.
// Fibers with FA above it are considered present.
func (a *Atlas) FiberThreshold() float32 {
	if len(a.FA) == 0 {
		return 0
	}
	return 0.6 * Otsu(a.FA[0], 256)
}

// Otsu returns the value that maximises between-class variance over a
// 'bins'-bin histogram of values; negatives count as zero.
func Otsu(values []float32, bins int) float32 {
	var maxValue float32
	for _, v := range values {
		if v > maxValue {
			maxValue = v
		}
	}
	if maxValue <= 0 || bins < 2 {
		return 0
	}

	histogram := make([]int, bins)
	scale := float32(bins-1) / maxValue
	for _, v := range values {
		if v < 0 {
			v = 0
		}
		histogram[int(v*scale)]++
	}

	total := 0
	sum := 0.0
	for i, c := range histogram {
		total += c
		sum += float64(i) * float64(c)
	}
	if total == 0 {
		return 0
	}

	sumB := 0.0
	wB := 0
	maxVariance := -1.0
	best := 0
	for t := 0; t < bins; t++ {
		wB += histogram[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(histogram[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		varBetween := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if varBetween > maxVariance {
			maxVariance = varBetween
			best = t
		}
	}
	return float32(math.Min(float64(maxValue), float64(best+1)/float64(scale)))
}
