// Package finalize turns a completed permutation run into its outputs:
// the FDR or length cut of the real tracks, duplicate removal, the
// distribution table, the streamline sets and the statistics volume.
package finalize

import (
	"context"
	"fmt"
	"time"

	"gocnt/domain/core"
	"gocnt/domain/stats"
	"gocnt/internal"
	"gocnt/internal/config"
	"gocnt/internal/connectometry"
	"gocnt/internal/statmodel"
	"gocnt/internal/tractset"
	"gocnt/ports"

	mstats "github.com/montanaflynn/stats"
)

const (
	// DuplicateTolerance is the per-coordinate distance under which two
	// streamlines are the same.
	DuplicateTolerance = 1.0

	// findingFDR is the FDR at the length threshold under which a length
	// mode channel counts as a finding.
	findingFDR = 0.2
)

// Options selects how tracks are cut and where outputs go.
type Options struct {
	LengthThreshold int
	FDRThreshold    float64 // zero selects the length criterion
	TThreshold      float64
	Tip             int
	OutputDir       string
	OutputPrefix    string
}

// OptionsFrom extracts finalization options from the application config.
func OptionsFrom(c *config.Config) Options {
	return Options{
		LengthThreshold: c.Analysis.LengthThreshold,
		FDRThreshold:    c.Analysis.FDRThreshold,
		TThreshold:      c.Analysis.TThreshold,
		Tip:             c.Analysis.Tip,
		OutputDir:       c.Output.Dir,
		OutputPrefix:    c.Output.Prefix,
	}
}

// LengthSummary describes the lengths of a streamline set.
type LengthSummary struct {
	Mean   float64
	Median float64
	Max    float64
}

// ChannelSummary is the outcome for one correlation channel.
type ChannelSummary struct {
	Correlation stats.Correlation
	Cutoff      int // applied length cut, -1 when the channel was cleared
	Tracks      int
	MinFDR      float64
	Lengths     LengthSummary
	Finding     bool
	File        string
}

// Summary is returned to callers of a finished analysis.
type Summary struct {
	RunID     core.RunID
	Cohort    core.CohortHash
	Base      string
	SeedCount int
	Restarts  int
	Channels  [2]ChannelSummary
	Files     []string
	Report    string
	Elapsed   time.Duration
}

// HasFinding reports whether channel c produced significant tracks.
func (s *Summary) HasFinding(c stats.Correlation) bool {
	return s.Channels[c].Finding
}

// Finalizer writes the outputs of completed runs.
type Finalizer struct {
	writer ports.ArtifactWriter
	model  *statmodel.StatModel
	opts   Options
	logger *internal.Logger
}

// New creates a finalizer for runs over model.
func New(writer ports.ArtifactWriter, model *statmodel.StatModel, opts Options, logger *internal.Logger) *Finalizer {
	if logger == nil {
		logger = internal.NewDefaultLogger()
	}
	return &Finalizer{writer: writer, model: model, opts: opts, logger: logger.With("finalize")}
}

// Base returns the path prefix of every output file.
func (f *Finalizer) Base() string {
	postfix := FilePostfix(f.model.StudyFeature(), f.opts.TThreshold, f.model.NormalizeQA(), f.opts.LengthThreshold, f.opts.FDRThreshold)
	return OutputBase(f.opts.OutputDir, f.opts.OutputPrefix, postfix)
}

// Finalize cuts the real pools of res in place and writes every output.
// Nothing is written when ctx is already cancelled. When writing fails or
// ctx is cancelled part way, the files already written are removed and a
// cancellation is reported as core.ErrAborted.
func (f *Finalizer) Finalize(ctx context.Context, res *connectometry.Result) (*Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrAborted, err)
	}

	sum := &Summary{
		RunID:     res.RunID,
		Cohort:    f.model.CohortHash(),
		Base:      f.Base(),
		SeedCount: res.SeedCount,
		Restarts:  len(res.Restarts),
		Report:    Report(f.model, f.opts, res.PermutationCount),
		Elapsed:   res.FinishedAt.Sub(res.StartedAt),
	}

	d := res.Distribution
	for _, c := range stats.Correlations {
		pool := res.Pool(stats.Real, c)
		cutoff := f.opts.LengthThreshold
		if f.opts.FDRThreshold != 0 {
			cutoff = FDRCutoff(d.FDR[c], f.opts.LengthThreshold, f.opts.FDRThreshold)
		}
		if cutoff < 0 {
			pool.Clear()
		} else {
			pool.Replace(tractset.DeleteByLength(pool.Set(), cutoff))
		}
		pool.Replace(tractset.DeleteRepeated(pool.Set(), DuplicateTolerance))

		sum.Channels[c] = ChannelSummary{
			Correlation: c,
			Cutoff:      cutoff,
			Tracks:      pool.Len(),
			MinFDR:      d.FDR[c].Min(),
			Lengths:     summarizeLengths(pool.Set().Lengths()),
			Finding:     f.hasFinding(d.FDR[c], pool.Len()),
		}
		f.logger.Info("%s: %d tracks after cutoff %d", c, pool.Len(), cutoff)
	}

	if err := f.write(ctx, sum, res); err != nil {
		if len(sum.Files) > 0 {
			if rerr := f.writer.Remove(sum.Files); rerr != nil {
				f.logger.Warn("remove partial outputs: %v", rerr)
			}
		}
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrAborted, cerr)
		}
		return nil, err
	}
	return sum, nil
}

// write saves every output in order, recording each path in sum.Files as
// soon as it exists. Cancellation is checked before each file.
func (f *Finalizer) write(ctx context.Context, sum *Summary, res *connectometry.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	files, err := f.writer.WriteDistribution(ctx, sum.Base, res.Distribution, f.opts.LengthThreshold)
	sum.Files = append(sum.Files, files...)
	if err != nil {
		return fmt.Errorf("write distribution: %w", err)
	}

	for _, c := range stats.Correlations {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, err := f.writer.WriteTracts(ctx, sum.Base, c, res.Tracks(stats.Real, c))
		if err != nil {
			return fmt.Errorf("write %s tracts: %w", c, err)
		}
		sum.Channels[c].File = path
		sum.Files = append(sum.Files, path)
	}

	if res.Map == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.writer.WriteStatistics(ctx, sum.Base, res.Map.Pos, res.Map.Neg)
	if err != nil {
		return fmt.Errorf("write statistics: %w", err)
	}
	sum.Files = append(sum.Files, path)
	return nil
}

// FDRCutoff returns the shortest length at or above lengthThreshold whose
// FDR does not exceed threshold, or -1 when there is none.
func FDRCutoff(curve stats.FDRCurve, lengthThreshold int, threshold float64) int {
	for length := max(lengthThreshold, 0); length < len(curve); length++ {
		if curve[length] <= threshold {
			return length
		}
	}
	return -1
}

func (f *Finalizer) hasFinding(curve stats.FDRCurve, tracks int) bool {
	if tracks == 0 || f.opts.LengthThreshold >= len(curve) {
		return false
	}
	if f.opts.FDRThreshold == 0 {
		return curve[f.opts.LengthThreshold] <= findingFDR
	}
	for length := max(f.opts.LengthThreshold, 0); length < len(curve); length++ {
		if curve[length] < f.opts.FDRThreshold {
			return true
		}
	}
	return false
}

func summarizeLengths(lengths []float64) LengthSummary {
	if len(lengths) == 0 {
		return LengthSummary{}
	}
	data := mstats.Float64Data(lengths)
	mean, _ := mstats.Mean(data)
	median, _ := mstats.Median(data)
	peak, _ := mstats.Max(data)
	return LengthSummary{Mean: mean, Median: median, Max: peak}
}
