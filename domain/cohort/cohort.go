package cohort

import (
	"fmt"
	"math"
	"strings"

	"gocnt/domain/atlas"
	"gocnt/domain/core"
)

// Subject is one participant: demographic features plus the scalar
// values sampled on the atlas. Values holds MetricsPerVoxel blocks of
// VoxelCount entries; a zero value means the measurement is missing.
type Subject struct {
	ID       string
	Features []float64
	Values   []float32
}

// Cohort is the immutable subject database shared by every resample.
type Cohort struct {
	FeatureTitles   []string
	MetricsPerVoxel int
	VoxelCount      int
	Subjects        []Subject
}

// FeatureIndex finds a feature by title, ignoring case and surrounding space.
func (c *Cohort) FeatureIndex(name string) (int, bool) {
	name = strings.TrimSpace(name)
	for i, title := range c.FeatureTitles {
		if strings.EqualFold(title, name) {
			return i, true
		}
	}
	return -1, false
}

// SingleMetric reports whether each voxel carries one value shared by all
// fiber orders.
func (c *Cohort) SingleMetric() bool {
	return c.MetricsPerVoxel <= 1
}

// Value returns the subject's value for the given fiber order and voxel.
func (c *Cohort) Value(subject, fiber, voxel int) float32 {
	if c.SingleMetric() {
		fiber = 0
	}
	return c.Subjects[subject].Values[fiber*c.VoxelCount+voxel]
}

// Feature returns a subject's feature value, NaN when absent.
func (c *Cohort) Feature(subject, feature int) float64 {
	row := c.Subjects[subject].Features
	if feature < 0 || feature >= len(row) {
		return math.NaN()
	}
	return row[feature]
}

// SubjectIDs returns the IDs of the given subject indices.
func (c *Cohort) SubjectIDs(indices []int) []string {
	ids := make([]string, len(indices))
	for i, s := range indices {
		ids[i] = c.Subjects[s].ID
	}
	return ids
}

// Validate checks the cohort against the atlas it was sampled on.
func (c *Cohort) Validate(a *atlas.Atlas) error {
	if len(c.Subjects) == 0 {
		return core.ErrEmptyCohort
	}
	if c.VoxelCount != a.VoxelCount() {
		return core.NewDimensionMismatchError("cohort voxel count", c.VoxelCount, a.VoxelCount())
	}
	if c.MetricsPerVoxel != 1 && c.MetricsPerVoxel != a.FiberCount() {
		return fmt.Errorf("%w: %d metrics per voxel for %d fiber orders",
			core.ErrDimensionMismatch, c.MetricsPerVoxel, a.FiberCount())
	}
	want := c.MetricsPerVoxel * c.VoxelCount
	for _, s := range c.Subjects {
		if len(s.Values) != want {
			return core.NewDimensionMismatchError("subject "+s.ID, len(s.Values), want)
		}
		if len(s.Features) != len(c.FeatureTitles) {
			return core.NewDimensionMismatchError("features of "+s.ID, len(s.Features), len(c.FeatureTitles))
		}
	}
	return nil
}
