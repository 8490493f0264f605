package app

import (
	"context"
	"math"
	"time"

	"gocnt/adapters/tracking"
	"gocnt/domain/atlas"
	"gocnt/domain/core"
	"gocnt/internal"
	"gocnt/internal/config"
	"gocnt/internal/connectometry"
	"gocnt/internal/errors"
	"gocnt/internal/finalize"
	"gocnt/internal/spm"
	"gocnt/internal/statmodel"
	"gocnt/internal/tractset"
	"gocnt/ports"

	mstats "github.com/montanaflynn/stats"
)

// progressInterval is how often a running analysis reports progress.
const progressInterval = 500 * time.Millisecond

// TrackerFactory creates the tracker for an atlas.
type TrackerFactory func(a *atlas.Atlas, fiberThreshold float32) ports.Tracker

// StreamlineTrackerFactory builds the reference streamline tracker.
func StreamlineTrackerFactory(a *atlas.Atlas, fiberThreshold float32) ports.Tracker {
	return tracking.NewStreamlineTracker(a, fiberThreshold)
}

// ConnectometryService loads a dataset, runs the permutation test and
// writes its outputs
type ConnectometryService struct {
	loader     ports.DatasetLoader
	writer     ports.ArtifactWriter
	rngPort    ports.RNGPort
	newTracker TrackerFactory
	logger     *internal.Logger
}

// AnalysisRequest defines one analysis
type AnalysisRequest struct {
	DatasetPath string
	Study       string
	Covariates  []string
	Selection   string         // cohort selection, empty keeps every subject
	Config      *config.Config // defaults when nil
	RunID       core.RunID     // optional, generated if empty

	// OnProgress, when set, is called periodically with the coordinator
	// state and percentage, and with 100 once every output is written.
	OnProgress func(state connectometry.State, percent int)
}

// Feature describes one selectable variable of a dataset
type Feature struct {
	Index    int
	Name     string
	Mean     float64
	Variance float64
	Missing  int
}

// Constant reports whether the feature cannot serve as a study variable.
func (f Feature) Constant() bool {
	return f.Variance == 0
}

// NewConnectometryService creates the service. A nil tracker factory
// selects the reference streamline tracker.
func NewConnectometryService(loader ports.DatasetLoader, writer ports.ArtifactWriter, rngPort ports.RNGPort, newTracker TrackerFactory, logger *internal.Logger) *ConnectometryService {
	if newTracker == nil {
		newTracker = StreamlineTrackerFactory
	}
	if logger == nil {
		logger = internal.NewDefaultLogger()
	}
	return &ConnectometryService{
		loader:     loader,
		writer:     writer,
		rngPort:    rngPort,
		newTracker: newTracker,
		logger:     logger,
	}
}

// Run executes the analysis described by req and returns the summary of
// its outputs. Configuration problems carry CONFIG_INVALID, cancellation
// carries ABORTED and still matches core.ErrAborted.
func (s *ConnectometryService) Run(ctx context.Context, req AnalysisRequest) (*finalize.Summary, error) {
	cfg := req.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if req.DatasetPath == "" {
		return nil, errors.InvalidInput("no dataset given")
	}
	if req.Study == "" {
		return nil, errors.ConfigInvalid("no study feature given")
	}

	a, c, err := s.loader.Load(ctx, req.DatasetPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load dataset %s", req.DatasetPath)
	}
	s.logger.Info("loaded %d subjects on a %dx%dx%d atlas with %d fiber orders",
		len(c.Subjects), a.Dimension[0], a.Dimension[1], a.Dimension[2], a.FiberCount())

	model := statmodel.New(c, s.rngPort)
	model.SetNonparametric(cfg.Analysis.Nonparametric)
	model.SetNormalizeQA(cfg.Analysis.NormalizeQA)
	if err := model.SelectCohort(req.Selection); err != nil {
		return nil, errors.Wrap(err, "invalid cohort selection")
	}
	if err := model.SelectFeature(req.Study, req.Covariates...); err != nil {
		return nil, errors.Wrap(err, "invalid model")
	}

	threshold := a.FiberThreshold()
	builder := spm.NewBuilder(a, threshold).WithThreads(cfg.Analysis.TrackThreads)
	opts := []connectometry.Option{connectometry.WithLogger(s.logger)}
	if req.RunID != "" {
		opts = append(opts, connectometry.WithRunID(req.RunID))
	}
	coord := connectometry.New(connectometry.ConfigFrom(cfg), model, builder,
		s.newTracker(a, threshold), tractset.NewTopologyPruner(), opts...)

	stop := s.reportProgress(coord, req.OnProgress)
	res, err := coord.Run(ctx)
	stop()
	if err != nil {
		return nil, errors.Wrap(err, "analysis failed")
	}

	sum, err := finalize.New(s.writer, model, finalize.OptionsFrom(cfg), s.logger).Finalize(ctx, res)
	if err != nil {
		if core.IsAborted(err) {
			return nil, errors.Wrap(err, "analysis aborted before output")
		}
		return nil, errors.WithCode(errors.CodeIOError, err)
	}
	if req.OnProgress != nil {
		req.OnProgress(coord.State(), 100)
	}
	s.logger.Info("run %s finished in %s with %d seeds and %d restarts", sum.RunID, sum.Elapsed, sum.SeedCount, sum.Restarts)
	return sum, nil
}

// reportProgress polls coord until the returned stop function is called.
func (s *ConnectometryService) reportProgress(coord *connectometry.Coordinator, fn func(connectometry.State, int)) func() {
	if fn == nil {
		return func() {}
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn(coord.State(), coord.Progress())
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// Features lists the variables of a dataset with their spread over the
// subjects that have a value.
func (s *ConnectometryService) Features(ctx context.Context, path string) ([]Feature, error) {
	_, c, err := s.loader.Load(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load dataset %s", path)
	}
	features := make([]Feature, len(c.FeatureTitles))
	for i, name := range c.FeatureTitles {
		f := Feature{Index: i, Name: name}
		values := make(mstats.Float64Data, 0, len(c.Subjects))
		for subject := range c.Subjects {
			v := c.Feature(subject, i)
			if math.IsNaN(v) {
				f.Missing++
				continue
			}
			values = append(values, v)
		}
		if len(values) > 0 {
			f.Mean, _ = mstats.Mean(values)
			f.Variance, _ = mstats.PopulationVariance(values)
		}
		features[i] = f
	}
	return features, nil
}
