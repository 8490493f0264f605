// Package dataset loads an atlas and cohort described by a YAML manifest
// whose arrays are stored as .npy files and whose demographics are an
// Excel or CSV sheet.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestName is the file Save writes and Load accepts as a directory.
const ManifestName = "dataset.yaml"

// Manifest describes the files of a dataset. Paths are relative to the
// manifest directory unless absolute.
type Manifest struct {
	Name string `yaml:"name"`

	Atlas struct {
		Dimension [3]int     `yaml:"dimension"`
		VoxelSize [3]float32 `yaml:"voxelSize"`
		// FA has shape [fibers, voxels], Dir [fibers, voxels*3]
		FA  string `yaml:"fa"`
		Dir string `yaml:"dir"`
	} `yaml:"atlas"`

	Cohort struct {
		// Values has shape [subjects, metricsPerVoxel*voxels]
		Values          string   `yaml:"values"`
		MetricsPerVoxel int      `yaml:"metricsPerVoxel"`
		Demographics    string   `yaml:"demographics"`
		Subjects        []string `yaml:"subjects"` // row order of Values
	} `yaml:"cohort"`
}

// ReadManifest parses a manifest file, or dataset.yaml inside a directory.
func ReadManifest(path string) (*Manifest, string, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, ManifestName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read manifest: %w", err)
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, "", fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if m.Cohort.MetricsPerVoxel == 0 {
		m.Cohort.MetricsPerVoxel = 1
	}
	return m, filepath.Dir(path), nil
}

func (m *Manifest) write(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
