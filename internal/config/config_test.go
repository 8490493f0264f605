package config

import (
	"os"
	"path/filepath"
	"testing"

	"gocnt/internal/errors"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 2000, cfg.Analysis.PermutationCount)
	assert.Equal(t, 20, cfg.Analysis.LengthThreshold)
	assert.Equal(t, 4, cfg.Analysis.Tip)
	assert.Equal(t, 2.5, cfg.Analysis.TThreshold)
	assert.True(t, cfg.Analysis.Nonparametric)
	assert.Equal(t, 10000, cfg.Seeding.Floor)
	assert.Equal(t, 640000, cfg.Seeding.Ceiling)
	assert.Equal(t, 100, cfg.Seeding.RestartMinIterations)
	assert.Equal(t, 100, cfg.Seeding.RestartMinTracks)
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cnt.yaml")
	content := "analysis:\n  permutation_count: 500\n  fdr_threshold: 0.05\nseeding:\n  floor: 2000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("CNT_ANALYSIS_TIP", "2")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("threads", 1, "")
	require.NoError(t, flags.Parse([]string{"--threads", "3"}))

	cfg, err := Load(path, map[string]*pflag.Flag{"analysis.thread_count": flags.Lookup("threads")})
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Analysis.PermutationCount)
	assert.Equal(t, 0.05, cfg.Analysis.FDRThreshold)
	assert.Equal(t, 2000, cfg.Seeding.Floor)
	assert.Equal(t, 2, cfg.Analysis.Tip)
	assert.Equal(t, 3, cfg.Analysis.ThreadCount)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"permutations", func(c *Config) { c.Analysis.PermutationCount = 0 }},
		{"threads", func(c *Config) { c.Analysis.ThreadCount = 0 }},
		{"fdr", func(c *Config) { c.Analysis.FDRThreshold = 1 }},
		{"t threshold", func(c *Config) { c.Analysis.TThreshold = 0 }},
		{"floor above ceiling", func(c *Config) { c.Seeding.Floor = c.Seeding.Ceiling * 2 }},
		{"length", func(c *Config) { c.Analysis.LengthThreshold = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
	assert.NoError(t, Default().Validate())
}
