// Package connectometry runs the permutation test: repeated null and real
// resamples of a StatModel are mapped, tracked and accumulated into length
// histograms from which per-channel FDR curves are derived.
package connectometry

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync/atomic"
	"time"

	"gocnt/domain/core"
	"gocnt/domain/stats"
	"gocnt/domain/tract"
	"gocnt/internal"
	"gocnt/internal/fdr"
	"gocnt/internal/spm"
	"gocnt/internal/statmodel"
	"gocnt/internal/tractset"
	"gocnt/ports"

	"golang.org/x/sync/errgroup"
)

// PermutationProgress is the percentage reported once every permutation is
// accumulated. The remainder belongs to output writing.
const PermutationProgress = 95

var errRestart = stderrors.New("epoch restart")

// epoch is the supervisor-owned generation and the seed count its
// workers track with.
type epoch struct {
	generation uint64
	seedCount  int
}

// RestartEvent records one abandoned epoch.
type RestartEvent struct {
	Epoch          uint64
	FromSeed       int
	ToSeed         int
	RealIterations int
	RealTracks     int
	AfterReset     Snapshot
}

// Result is the outcome of a completed run.
type Result struct {
	RunID            core.RunID
	SeedCount        int
	CalibratedSeed   int
	Restarts         []RestartEvent
	Distribution     *stats.Distribution
	Map              *spm.Result // statistic of the unpermuted cohort
	PermutationCount int
	LengthThreshold  int
	StaleResults     int
	StartedAt        time.Time
	FinishedAt       time.Time

	pools [2][2]*tractset.Pool
}

// Tracks returns the final pooled streamlines of one sample and channel.
func (r *Result) Tracks(s stats.Sample, c stats.Correlation) tract.Set {
	if r.pools[s][c] == nil {
		return nil
	}
	return r.pools[s][c].Set()
}

// Pool returns the mutable pool of one sample and channel.
func (r *Result) Pool(s stats.Sample, c stats.Correlation) *tractset.Pool {
	if r.pools[s][c] == nil {
		r.pools[s][c] = &tractset.Pool{}
	}
	return r.pools[s][c]
}

// Coordinator drives one permutation analysis.
type Coordinator struct {
	cfg     Config
	model   *statmodel.StatModel
	builder *spm.Builder
	tracker ports.Tracker
	pruner  ports.Pruner
	logger  *internal.Logger
	runID   core.RunID
	size    int

	state    atomic.Int32
	progress atomic.Int32
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *internal.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithRunID fixes the run identifier keying every resample.
func WithRunID(id core.RunID) Option {
	return func(c *Coordinator) { c.runID = id }
}

// WithHistogramSize overrides the number of length bins.
func WithHistogramSize(n int) Option {
	return func(c *Coordinator) { c.size = n }
}

// New creates a coordinator. The histogram size defaults to the largest
// atlas dimension. pruner may be nil when no pruning passes are wanted.
func New(cfg Config, model *statmodel.StatModel, builder *spm.Builder, tracker ports.Tracker, pruner ports.Pruner, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:     cfg,
		model:   model,
		builder: builder,
		tracker: tracker,
		pruner:  pruner,
		logger:  internal.NewDefaultLogger(),
		size:    builder.Atlas().MaxDimension(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.runID == "" {
		c.runID = core.NewRunID()
	}
	c.logger = c.logger.With("coordinator")
	return c
}

// Progress returns the completion percentage. The permutation phase maps
// to 0-95, finalization completes it.
func (c *Coordinator) Progress() int { return int(c.progress.Load()) }

// State returns the current lifecycle stage.
func (c *Coordinator) State() State { return State(c.state.Load()) }

func (c *Coordinator) setState(s State) { c.state.Store(int32(s)) }

func (c *Coordinator) setProgress(p int) {
	c.progress.Store(int32(p))
	progressGauge.Set(float64(p))
}

// Run executes the analysis. Configuration errors are returned before any
// worker starts. When ctx is cancelled Run returns an error matching
// core.ErrAborted and no result.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	if err := c.cfg.validate(); err != nil {
		return nil, err
	}
	if !c.model.Selected() {
		return nil, fmt.Errorf("%w: no study feature selected", core.ErrFeatureNotFound)
	}
	if c.size < 1 {
		return nil, fmt.Errorf("%w: histogram size %d", core.ErrInvalidAtlas, c.size)
	}

	res := &Result{
		RunID:            c.runID,
		PermutationCount: c.cfg.PermutationCount,
		LengthThreshold:  c.cfg.LengthThreshold,
		StartedAt:        time.Now(),
	}
	c.model.SetRunID(c.runID)
	c.setState(StateInit)
	c.setProgress(0)

	initial, err := c.builder.Calculate(ctx, c.model)
	if err != nil {
		return nil, c.aborted(ctx, err)
	}
	res.Map = initial

	seedCount, err := c.calibrate(ctx, initial)
	if err != nil {
		return nil, c.aborted(ctx, err)
	}
	res.CalibratedSeed = seedCount

	ep := epoch{generation: 1, seedCount: seedCount}
	acc := newAccumulator(c.size, c.cfg.LengthThreshold, ep.generation)
	var retired []<-chan error
	shutdown := func() {
		for _, done := range retired {
			<-done
		}
		acc.stop()
	}

epochs:
	for {
		c.setState(StateRunning)
		seedCountGauge.Set(float64(ep.seedCount))
		c.logger.Info("epoch %d running with seed count=%d", ep.generation, ep.seedCount)

		restart, done := c.startEpoch(ctx, ep, acc)
		var snap Snapshot
		select {
		case err := <-done:
			if !stderrors.Is(err, errRestart) {
				if err != nil {
					shutdown()
					return nil, c.aborted(ctx, err)
				}
				break epochs
			}
			snap = <-restart
		case snap = <-restart:
			retired = append(retired, done)
		}

		c.setState(StateRestart)
		restartsTotal.Inc()
		c.logger.Info("total track=%d analysis restarted with higher seed count", snap.RealTracks())
		next := epoch{generation: ep.generation + 1, seedCount: ep.seedCount * 2}
		res.Restarts = append(res.Restarts, RestartEvent{
			Epoch:          ep.generation,
			FromSeed:       ep.seedCount,
			ToSeed:         next.seedCount,
			RealIterations: snap.RealIterations,
			RealTracks:     snap.RealTracks(),
			AfterReset:     acc.Reset(next.generation),
		})
		c.setProgress(0)
		ep = next
	}

	c.setState(StateFinalizing)
	pools := acc.Drain()
	res.StaleResults = acc.Snapshot().Stale
	shutdown()

	res.SeedCount = ep.seedCount
	res.Distribution = stats.NewDistribution(c.size)
	for _, s := range stats.Samples {
		for _, corr := range stats.Correlations {
			if c.pruner != nil && c.cfg.Tip > 0 {
				pools[s][corr].Replace(tractset.Trim(c.pruner, pools[s][corr].Set(), c.cfg.Tip))
			}
			fdr.CalHist(pools[s][corr].Set(), res.Distribution.Histogram(s, corr))
		}
	}
	fdr.Calculate(res.Distribution)
	res.pools = pools
	res.FinishedAt = time.Now()

	c.logger.Info("permutation finished: seed count=%d, real tracks pos=%d neg=%d, null tracks pos=%d neg=%d",
		ep.seedCount,
		pools[stats.Real][stats.Positive].Len(), pools[stats.Real][stats.Negative].Len(),
		pools[stats.Null][stats.Positive].Len(), pools[stats.Null][stats.Negative].Len())
	c.setProgress(PermutationProgress)
	c.setState(StateDone)
	return res, nil
}

// startEpoch launches the workers of ep. restart receives worker 0's
// snapshot when it abandons the epoch; done receives the group result.
func (c *Coordinator) startEpoch(ctx context.Context, ep epoch, acc *accumulator) (<-chan Snapshot, <-chan error) {
	restart := make(chan Snapshot, 1)
	done := make(chan error, 1)
	g, gctx := errgroup.WithContext(ctx)
	for id := 0; id < c.cfg.ThreadCount; id++ {
		g.Go(func() error {
			return c.work(gctx, id, ep, acc, restart)
		})
	}
	go func() { done <- g.Wait() }()
	return restart, done
}

func (c *Coordinator) work(ctx context.Context, id int, ep epoch, acc *accumulator, restart chan<- Snapshot) error {
	threads := c.cfg.ThreadCount
	for i := id; i < c.cfg.PermutationCount; i += threads {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := iterationResult{epoch: ep.generation, index: i}
		for _, s := range []stats.Sample{stats.Null, stats.Real} {
			for _, corr := range []stats.Correlation{stats.Negative, stats.Positive} {
				set, err := c.pass(ctx, ep, s, corr, i)
				if err != nil {
					return err
				}
				r.tracks[s][corr] = set
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		acc.submit(r)
		c.logger.Trace("worker %d finished permutation %d", id, i)

		if id != 0 {
			continue
		}
		snap := acc.Snapshot()
		c.setProgress(min(i+threads, c.cfg.PermutationCount) * PermutationProgress / c.cfg.PermutationCount)
		if c.cfg.Restart.ShouldRestart(snap.RealIterations, snap.RealTracks(), ep.seedCount) {
			restart <- snap
			return errRestart
		}
	}
	return nil
}

// pass resamples, maps and tracks one channel of one sample. Real samples
// shuffle every row jointly, which leaves Spearman and OLS statistics
// unchanged, so a real map equals the initial map and real iterations
// differ only by their tracking seed.
func (c *Coordinator) pass(ctx context.Context, ep epoch, s stats.Sample, corr stats.Correlation, i int) (tract.Set, error) {
	seed := passSeed(i, s, corr)
	m, err := c.model.Resample(ctx, s == stats.Null, true, seed)
	if err != nil {
		return nil, err
	}
	result, err := c.builder.Calculate(ctx, m)
	if err != nil {
		return nil, err
	}
	return c.track(ctx, result.Field(corr), ep.seedCount, seed)
}

func passSeed(i int, s stats.Sample, c stats.Correlation) int64 {
	return int64(i)*4 + int64(s)*2 + int64(c)
}

// track runs the tracker. Failures other than cancellation yield no tracks.
func (c *Coordinator) track(ctx context.Context, field [][]float32, seedCount int, seed int64) (tract.Set, error) {
	set, err := c.tracker.RunTrack(ctx, ports.TrackRequest{
		Field:       field,
		Threshold:   float32(c.cfg.TThreshold),
		SeedCount:   seedCount,
		RandomSeed:  seed,
		ThreadCount: max(c.cfg.TrackThreads, 1),
		MinLength:   c.cfg.LengthThreshold,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug("tracking failed, counted as no tracks: %v", err)
		return nil, nil
	}
	return set, nil
}

// aborted maps a failure under a cancelled parent context to ErrAborted.
func (c *Coordinator) aborted(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		c.logger.Warn("analysis aborted")
		return fmt.Errorf("%w: %v", core.ErrAborted, ctx.Err())
	}
	return err
}
