package config

import (
	"runtime"
	"strings"

	"gocnt/internal/errors"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Seeding   SeedingConfig   `mapstructure:"seeding"`
	Output    OutputConfig    `mapstructure:"output"`
	Log       LogConfig       `mapstructure:"log"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
}

// AnalysisConfig holds the permutation test parameters
type AnalysisConfig struct {
	PermutationCount   int     `mapstructure:"permutation_count"`
	ThreadCount        int     `mapstructure:"thread_count"`
	TrackThreads       int     `mapstructure:"track_threads"`
	LengthThreshold    int     `mapstructure:"length_threshold"`
	FDRThreshold       float64 `mapstructure:"fdr_threshold"`
	TThreshold         float64 `mapstructure:"t_threshold"`
	Tip                int     `mapstructure:"tip"`
	Nonparametric      bool    `mapstructure:"nonparametric"`
	NormalizeQA        bool    `mapstructure:"normalize_qa"`
	ExpectedTractCount int     `mapstructure:"expected_tract_count"`
}

// SeedingConfig holds the seed-count calibration and restart policy
type SeedingConfig struct {
	Floor                int `mapstructure:"floor"`
	Ceiling              int `mapstructure:"ceiling"`
	RestartMinIterations int `mapstructure:"restart_min_iterations"`
	RestartMinTracks     int `mapstructure:"restart_min_tracks"`
}

// OutputConfig holds where and how results are written
type OutputConfig struct {
	Dir      string `mapstructure:"dir"`
	Prefix   string `mapstructure:"prefix"`
	Workbook bool   `mapstructure:"workbook"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ProfilingConfig holds pprof and metrics server settings
type ProfilingConfig struct {
	Port    string `mapstructure:"port"`
	Enabled bool   `mapstructure:"enabled"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			PermutationCount:   2000,
			ThreadCount:        runtime.NumCPU(),
			TrackThreads:       1,
			LengthThreshold:    20,
			FDRThreshold:       0,
			TThreshold:         2.5,
			Tip:                4,
			Nonparametric:      true,
			NormalizeQA:        true,
			ExpectedTractCount: 50000,
		},
		Seeding: SeedingConfig{
			Floor:                10000,
			Ceiling:              640000,
			RestartMinIterations: 100,
			RestartMinTracks:     100,
		},
		Output:    OutputConfig{Dir: "."},
		Log:       LogConfig{Level: "INFO"},
		Profiling: ProfilingConfig{Port: "6060"},
	}
}

// Load layers defaults, an optional YAML file, CNT_* environment
// variables and bound command-line flags, then validates the result.
// flags maps configuration keys such as "analysis.permutation_count" to flags.
func Load(path string, flags map[string]*pflag.Flag) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("CNT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("log.level", "CNT_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return nil, errors.Wrap(err, "failed to bind log level")
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "failed to read config %s", path))
		}
	}

	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, errors.Wrapf(err, "failed to bind flag %s", flag.Name)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, errors.Wrap(err, "failed to decode configuration"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("analysis.permutation_count", d.Analysis.PermutationCount)
	v.SetDefault("analysis.thread_count", d.Analysis.ThreadCount)
	v.SetDefault("analysis.track_threads", d.Analysis.TrackThreads)
	v.SetDefault("analysis.length_threshold", d.Analysis.LengthThreshold)
	v.SetDefault("analysis.fdr_threshold", d.Analysis.FDRThreshold)
	v.SetDefault("analysis.t_threshold", d.Analysis.TThreshold)
	v.SetDefault("analysis.tip", d.Analysis.Tip)
	v.SetDefault("analysis.nonparametric", d.Analysis.Nonparametric)
	v.SetDefault("analysis.normalize_qa", d.Analysis.NormalizeQA)
	v.SetDefault("analysis.expected_tract_count", d.Analysis.ExpectedTractCount)

	v.SetDefault("seeding.floor", d.Seeding.Floor)
	v.SetDefault("seeding.ceiling", d.Seeding.Ceiling)
	v.SetDefault("seeding.restart_min_iterations", d.Seeding.RestartMinIterations)
	v.SetDefault("seeding.restart_min_tracks", d.Seeding.RestartMinTracks)

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.prefix", d.Output.Prefix)
	v.SetDefault("output.workbook", d.Output.Workbook)

	v.SetDefault("log.level", d.Log.Level)

	v.SetDefault("profiling.port", d.Profiling.Port)
	v.SetDefault("profiling.enabled", d.Profiling.Enabled)
}

// Validate rejects settings no run could start with
func (c *Config) Validate() error {
	a := c.Analysis
	if a.PermutationCount < 1 {
		return errors.ConfigInvalid("permutation count must be positive")
	}
	if a.ThreadCount < 1 {
		return errors.ConfigInvalid("thread count must be positive")
	}
	if a.TrackThreads < 1 {
		return errors.ConfigInvalid("track thread count must be positive")
	}
	if a.LengthThreshold < 1 {
		return errors.ConfigInvalid("length threshold must be positive")
	}
	if a.FDRThreshold < 0 || a.FDRThreshold >= 1 {
		return errors.ConfigInvalid("fdr threshold must be in [0, 1)")
	}
	if a.TThreshold <= 0 {
		return errors.ConfigInvalid("t threshold must be positive")
	}
	if a.Tip < 0 {
		return errors.ConfigInvalid("tip iterations cannot be negative")
	}

	s := c.Seeding
	if s.Floor < 1 || s.Ceiling < s.Floor {
		return errors.ConfigInvalid("seeding floor must be positive and not above the ceiling")
	}
	if s.RestartMinIterations < 0 || s.RestartMinTracks < 0 {
		return errors.ConfigInvalid("restart thresholds cannot be negative")
	}
	return nil
}
