// Package testkit provides deterministic fixtures: a synthetic atlas and
// cohort with a planted association, and scripted trackers.
package testkit

import (
	"fmt"
	"math/rand"

	"gocnt/adapters/rng"
	"gocnt/domain/atlas"
	"gocnt/domain/cohort"
	"gocnt/ports"
)

// RNGAdapter returns the deterministic RNG port used across fixtures.
func RNGAdapter() ports.RNGPort {
	return rng.NewSeeded()
}

// SyntheticOptions shapes a synthetic dataset
type SyntheticOptions struct {
	Dimension [3]int
	Subjects  int
	Fibers    int
	Effect    float64 // tube value shift between the two groups
	Noise     float64
	Seed      int64
}

// DefaultSyntheticOptions is a 32x8x8 volume, 20 subjects, one fiber order.
func DefaultSyntheticOptions() SyntheticOptions {
	return SyntheticOptions{
		Dimension: [3]int{32, 8, 8},
		Subjects:  20,
		Fibers:    1,
		Effect:    0.4,
		Noise:     0.05,
		Seed:      42,
	}
}

// Synthetic feature titles
const (
	FeatureAge   = "age"
	FeatureSex   = "sex"
	FeatureGroup = "group"
	FeatureSite  = "site" // constant across subjects
)

// SyntheticDataset builds an atlas with a straight bundle along x through
// the centre of the volume and a cohort whose bundle values rise with
// "group". Background voxels carry low anisotropy and noise only.
func SyntheticDataset(opts SyntheticOptions) (*atlas.Atlas, *cohort.Cohort) {
	if opts.Fibers < 1 {
		opts.Fibers = 1
	}
	r := rand.New(rand.NewSource(opts.Seed))
	a := &atlas.Atlas{
		Dimension: opts.Dimension,
		VoxelSize: [3]float32{2, 2, 2},
		FA:        make([][]float32, opts.Fibers),
		Dir:       make([][]float32, opts.Fibers),
	}
	n := a.VoxelCount()
	for f := 0; f < opts.Fibers; f++ {
		a.FA[f] = make([]float32, n)
		a.Dir[f] = make([]float32, 3*n)
	}

	inBundle := make([]bool, n)
	cy, cz := opts.Dimension[1]/2, opts.Dimension[2]/2
	for v := 0; v < n; v++ {
		_, y, z := a.Coord(v)
		if abs(y-cy) <= 1 && abs(z-cz) <= 1 {
			inBundle[v] = true
			a.FA[0][v] = 0.6
			a.Dir[0][3*v] = 1
		} else {
			a.FA[0][v] = 0.05
			a.Dir[0][3*v+1] = 1
		}
		for f := 1; f < opts.Fibers; f++ {
			a.FA[f][v] = 0.02
			a.Dir[f][3*v+2] = 1
		}
	}

	c := &cohort.Cohort{
		FeatureTitles:   []string{FeatureAge, FeatureSex, FeatureGroup, FeatureSite},
		MetricsPerVoxel: 1,
		VoxelCount:      n,
		Subjects:        make([]cohort.Subject, opts.Subjects),
	}
	for s := 0; s < opts.Subjects; s++ {
		group := 0.0
		if s >= opts.Subjects/2 {
			group = 1
		}
		values := make([]float32, n)
		for v := 0; v < n; v++ {
			value := 1 + opts.Noise*r.Float64()
			if inBundle[v] {
				value += opts.Effect * (group - 0.5)
			}
			values[v] = float32(value)
		}
		c.Subjects[s] = cohort.Subject{
			ID:       fmt.Sprintf("sub-%02d", s+1),
			Features: []float64{float64(20 + r.Intn(50)), float64(s % 2), group, 1},
			Values:   values,
		}
	}
	return a, c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
