package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gocnt/adapters/excel"
	"gocnt/adapters/npy"
	"gocnt/domain/atlas"
	"gocnt/domain/cohort"
	"gocnt/domain/core"
	"gocnt/internal"
	"gocnt/ports"
)

// Loader implements ports.DatasetLoader for manifest datasets.
type Loader struct {
	logger *internal.Logger
}

var _ ports.DatasetLoader = (*Loader)(nil)

// NewLoader creates a loader.
func NewLoader(logger *internal.Logger) *Loader {
	if logger == nil {
		logger = internal.NewDefaultLogger()
	}
	return &Loader{logger: logger.With("dataset")}
}

// Load reads the dataset at path, a manifest file or a directory holding
// dataset.yaml. Subjects without a demographics row are an error.
func (l *Loader) Load(ctx context.Context, path string) (*atlas.Atlas, *cohort.Cohort, error) {
	m, dir, err := ReadManifest(path)
	if err != nil {
		return nil, nil, err
	}

	a, err := l.loadAtlas(m, dir)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	c, err := l.loadCohort(m, dir, a)
	if err != nil {
		return nil, nil, err
	}
	l.logger.Info("dataset %q: %v voxels, %d fiber orders, %d subjects, %d features",
		m.Name, a.Dimension, a.FiberCount(), len(c.Subjects), len(c.FeatureTitles))
	return a, c, nil
}

func (l *Loader) loadAtlas(m *Manifest, dir string) (*atlas.Atlas, error) {
	a := &atlas.Atlas{Dimension: m.Atlas.Dimension, VoxelSize: m.Atlas.VoxelSize}
	n := a.VoxelCount()

	fa, shape, err := npy.ReadFloat32(resolve(dir, m.Atlas.FA))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidAtlas, err)
	}
	fibers, err := rows(shape, len(fa), n)
	if err != nil {
		return nil, fmt.Errorf("%w: fa: %v", core.ErrInvalidAtlas, err)
	}
	dirs, _, err := npy.ReadFloat32(resolve(dir, m.Atlas.Dir))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidAtlas, err)
	}
	if len(dirs) != fibers*n*3 {
		return nil, core.NewDimensionMismatchError("dir", len(dirs), fibers*n*3)
	}

	a.FA = make([][]float32, fibers)
	a.Dir = make([][]float32, fibers)
	for f := 0; f < fibers; f++ {
		a.FA[f] = fa[f*n : (f+1)*n]
		a.Dir[f] = dirs[f*n*3 : (f+1)*n*3]
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (l *Loader) loadCohort(m *Manifest, dir string, a *atlas.Atlas) (*cohort.Cohort, error) {
	demo, err := excel.NewDataReader(resolve(dir, m.Cohort.Demographics), l.logger).ReadDemographics()
	if err != nil {
		return nil, fmt.Errorf("demographics: %w", err)
	}

	values, shape, err := npy.ReadFloat32(resolve(dir, m.Cohort.Values))
	if err != nil {
		return nil, fmt.Errorf("subject values: %w", err)
	}
	width := m.Cohort.MetricsPerVoxel * a.VoxelCount()
	count, err := rows(shape, len(values), width)
	if err != nil {
		return nil, fmt.Errorf("%w: subject values: %v", core.ErrDimensionMismatch, err)
	}

	ids := m.Cohort.Subjects
	if len(ids) == 0 {
		ids = demo.IDs
	}
	if len(ids) != count {
		return nil, core.NewDimensionMismatchError("subject list", len(ids), count)
	}

	c := &cohort.Cohort{
		FeatureTitles:   demo.Features,
		MetricsPerVoxel: m.Cohort.MetricsPerVoxel,
		VoxelCount:      a.VoxelCount(),
		Subjects:        make([]cohort.Subject, count),
	}
	for i, id := range ids {
		features, ok := demo.Row(id)
		if !ok {
			return nil, fmt.Errorf("%w: subject %q has no demographics row", core.ErrFeatureNotFound, id)
		}
		c.Subjects[i] = cohort.Subject{
			ID:       id,
			Features: features,
			Values:   values[i*width : (i+1)*width],
		}
	}
	if err := c.Validate(a); err != nil {
		return nil, err
	}
	return c, nil
}

// rows returns the row count of a [rows, width] or flat array.
func rows(shape []int, length, width int) (int, error) {
	if width == 0 || length%width != 0 {
		return 0, fmt.Errorf("%d values do not divide into rows of %d", length, width)
	}
	if len(shape) == 2 && shape[1] != width {
		return 0, fmt.Errorf("shape %v, expected rows of %d", shape, width)
	}
	return length / width, nil
}

// Save writes a and c as a manifest dataset in dir and returns the
// manifest path. Demographics are written as CSV.
func Save(dir, name string, a *atlas.Atlas, c *cohort.Cohort) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	n := a.VoxelCount()
	fibers := a.FiberCount()

	m := &Manifest{Name: name}
	m.Atlas.Dimension = a.Dimension
	m.Atlas.VoxelSize = a.VoxelSize
	m.Atlas.FA = "fa.npy"
	m.Atlas.Dir = "dir.npy"
	m.Cohort.Values = "values.npy"
	m.Cohort.MetricsPerVoxel = c.MetricsPerVoxel
	m.Cohort.Demographics = "demographics.csv"

	fa := make([]float32, 0, fibers*n)
	dirs := make([]float32, 0, fibers*n*3)
	for f := 0; f < fibers; f++ {
		fa = append(fa, a.FA[f]...)
		dirs = append(dirs, a.Dir[f]...)
	}
	if err := npy.WriteFloat32(filepath.Join(dir, m.Atlas.FA), []int{fibers, n}, fa); err != nil {
		return "", err
	}
	if err := npy.WriteFloat32(filepath.Join(dir, m.Atlas.Dir), []int{fibers, n * 3}, dirs); err != nil {
		return "", err
	}

	width := c.MetricsPerVoxel * c.VoxelCount
	values := make([]float32, 0, len(c.Subjects)*width)
	for _, s := range c.Subjects {
		values = append(values, s.Values...)
		m.Cohort.Subjects = append(m.Cohort.Subjects, s.ID)
	}
	if err := npy.WriteFloat32(filepath.Join(dir, m.Cohort.Values), []int{len(c.Subjects), width}, values); err != nil {
		return "", err
	}
	if err := writeDemographics(filepath.Join(dir, m.Cohort.Demographics), c); err != nil {
		return "", err
	}

	path := filepath.Join(dir, ManifestName)
	if err := m.write(path); err != nil {
		return "", err
	}
	return path, nil
}

func writeDemographics(path string, c *cohort.Cohort) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"id"}, c.FeatureTitles...)); err != nil {
		f.Close()
		return err
	}
	for _, s := range c.Subjects {
		record := []string{s.ID}
		for _, v := range s.Features {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
