package main

import (
	"fmt"
	"time"

	"gocnt/adapters/artifacts"
	"gocnt/adapters/dataset"
	"gocnt/adapters/rng"
	"gocnt/app"
	"gocnt/domain/core"
	"gocnt/domain/stats"
	"gocnt/internal"
	"gocnt/internal/config"
	"gocnt/internal/connectometry"
	"gocnt/internal/finalize"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// configFlags maps configuration keys to the run command flags overriding them.
var configFlags = map[string]string{
	"analysis.permutation_count":    "permutations",
	"analysis.thread_count":         "threads",
	"analysis.track_threads":        "track-threads",
	"analysis.length_threshold":     "length-threshold",
	"analysis.fdr_threshold":        "fdr-threshold",
	"analysis.t_threshold":          "t-threshold",
	"analysis.tip":                  "tip",
	"analysis.nonparametric":        "nonparametric",
	"analysis.normalize_qa":         "normalize",
	"analysis.expected_tract_count": "expected-tracts",
	"seeding.floor":                 "seeds",
	"seeding.ceiling":               "seed-ceiling",
	"output.dir":                    "output",
	"output.prefix":                 "prefix",
	"output.workbook":               "workbook",
	"log.level":                     "log-level",
	"profiling.enabled":             "profile",
	"profiling.port":                "profile-port",
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		study      string
		covariates []string
		selection  string
		runID      string
	)

	cmd := &cobra.Command{
		Use:   "run [dataset]",
		Short: "Run a permutation connectometry analysis",
		Long: `Run a permutation connectometry analysis on a dataset manifest.

Settings come from defaults, the --config YAML file, CNT_* environment
variables and flags, in increasing priority.

Example: cnt run study/dataset.yaml --study age --covariates sex --select "age>20" --permutations 2000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := make(map[string]*pflag.Flag, len(configFlags))
			for key, name := range configFlags {
				flags[key] = cmd.Flags().Lookup(name)
			}
			cfg, err := config.Load(configPath, flags)
			if err != nil {
				return err
			}
			return runAnalysis(cmd, cfg, app.AnalysisRequest{
				DatasetPath: args[0],
				Study:       study,
				Covariates:  covariates,
				Selection:   selection,
				Config:      cfg,
				RunID:       core.RunID(runID),
			})
		},
	}

	d := config.Default()
	cmd.Flags().StringVar(&configPath, "config", "", "YAML configuration file")
	cmd.Flags().StringVar(&study, "study", "", "Study feature")
	cmd.Flags().StringSliceVar(&covariates, "covariates", nil, "Covariate features")
	cmd.Flags().StringVar(&selection, "select", "", `Cohort selection, e.g. "age>20,sex=1"`)
	cmd.Flags().StringVar(&runID, "run-id", "", "Run identifier keying every resample (generated if empty)")
	cmd.Flags().Int("permutations", d.Analysis.PermutationCount, "Number of permutations")
	cmd.Flags().Int("threads", d.Analysis.ThreadCount, "Permutation worker count")
	cmd.Flags().Int("track-threads", d.Analysis.TrackThreads, "Threads per mapping and tracking pass")
	cmd.Flags().Int("length-threshold", d.Analysis.LengthThreshold, "Minimum track length in voxel distance")
	cmd.Flags().Float64("fdr-threshold", d.Analysis.FDRThreshold, "FDR threshold, 0 selects the length criterion")
	cmd.Flags().Float64("t-threshold", d.Analysis.TThreshold, "T threshold of the statistic map")
	cmd.Flags().Int("tip", d.Analysis.Tip, "Topology-informed pruning passes")
	cmd.Flags().Bool("nonparametric", d.Analysis.Nonparametric, "Spearman correlation instead of multiple regression")
	cmd.Flags().Bool("normalize", d.Analysis.NormalizeQA, "Normalize each subject by its maximum value")
	cmd.Flags().Int("expected-tracts", d.Analysis.ExpectedTractCount, "Expected track count for seed calibration, 0 disables it")
	cmd.Flags().Int("seeds", d.Seeding.Floor, "Initial seed count")
	cmd.Flags().Int("seed-ceiling", d.Seeding.Ceiling, "Seed count at which restarts stop")
	cmd.Flags().String("output", d.Output.Dir, "Output directory")
	cmd.Flags().String("prefix", d.Output.Prefix, "Output file prefix")
	cmd.Flags().Bool("workbook", d.Output.Workbook, "Also write the distribution table as an Excel workbook")
	cmd.Flags().String("log-level", d.Log.Level, "ERROR, WARN, INFO, DEBUG or TRACE")
	cmd.Flags().Bool("profile", d.Profiling.Enabled, "Serve pprof and metrics")
	cmd.Flags().String("profile-port", d.Profiling.Port, "Profiling server port")
	_ = cmd.MarkFlagRequired("study")

	return cmd
}

func runAnalysis(cmd *cobra.Command, cfg *config.Config, req app.AnalysisRequest) error {
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level))
	if cfg.Profiling.Enabled {
		serveProfiling(cfg.Profiling.Port, logger)
	}

	last := -1
	req.OnProgress = func(state connectometry.State, percent int) {
		if percent != last {
			last = percent
			logger.Info("%s %d%%", state, percent)
		}
	}

	svc := app.NewConnectometryService(
		dataset.NewLoader(logger),
		artifacts.NewFileWriter(cfg.Output.Workbook),
		rng.NewSeeded(),
		app.StreamlineTrackerFactory,
		logger,
	)
	sum, err := svc.Run(cmd.Context(), req)
	if err != nil {
		return err
	}
	printSummary(cmd, sum)
	return nil
}

func printSummary(cmd *cobra.Command, sum *finalize.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s on cohort %s: %d seeds, %d restarts, %s\n",
		sum.RunID, sum.Cohort.Short(), sum.SeedCount, sum.Restarts, sum.Elapsed.Round(time.Millisecond))
	for _, c := range stats.Correlations {
		ch := sum.Channels[c]
		status := "no finding"
		if sum.HasFinding(c) {
			status = "finding"
		}
		fmt.Fprintf(out, "  %-8s %6d tracks  cutoff %3d  min FDR %.4f  mean length %.1f  %s\n",
			c.Label(), ch.Tracks, ch.Cutoff, ch.MinFDR, ch.Lengths.Mean, status)
	}
	fmt.Fprintln(out, "\nOutputs:")
	for _, f := range sum.Files {
		fmt.Fprintf(out, "  %s\n", f)
	}
	fmt.Fprintf(out, "\n%s\n", sum.Report)
}
