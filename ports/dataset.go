package ports

import (
	"context"

	"gocnt/domain/atlas"
	"gocnt/domain/cohort"
	"gocnt/domain/stats"
	"gocnt/domain/tract"
)

// DatasetLoader reads an atlas and the cohort sampled on it
type DatasetLoader interface {
	Load(ctx context.Context, path string) (*atlas.Atlas, *cohort.Cohort, error)
}

// ArtifactWriter persists finalized analysis outputs. Every method
// returns the paths it wrote.
type ArtifactWriter interface {
	// WriteDistribution writes one row per length bin from minLength to the array bound.
	WriteDistribution(ctx context.Context, base string, d *stats.Distribution, minLength int) ([]string, error)

	// WriteTracts writes a streamline set, or an empty marker when the set is empty.
	WriteTracts(ctx context.Context, base string, c stats.Correlation, set tract.Set) (string, error)

	// WriteStatistics writes the positive and negative T magnitudes per fiber order.
	WriteStatistics(ctx context.Context, base string, pos, neg [][]float32) (string, error)

	// Remove deletes outputs written earlier in a run that did not finish.
	Remove(paths []string) error
}
