package connectometry

import (
	"sort"

	"gocnt/domain/stats"
	"gocnt/domain/tract"
	"gocnt/internal/fdr"
	"gocnt/internal/tractset"
)

// iterationResult is what a worker emits for one permutation index: the
// streamlines of the null and real passes of both channels, tagged with
// the epoch the worker ran under.
type iterationResult struct {
	epoch  uint64
	index  int
	tracks [2][2]tract.Set // [sample][correlation]
}

// Snapshot is the accumulator state as seen by the supervisor.
type Snapshot struct {
	Epoch          uint64
	RealIterations int
	Tracks         [2][2]int    // pooled streamlines per [sample][correlation]
	Histogram      [2][2]uint64 // histogram mass per [sample][correlation]
	Stale          int          // results dropped from retired epochs
}

// RealTracks returns the pooled real streamlines of both channels.
func (s Snapshot) RealTracks() int {
	return s.Tracks[stats.Real][stats.Positive] + s.Tracks[stats.Real][stats.Negative]
}

// Empty reports whether no streamline or histogram count is held.
func (s Snapshot) Empty() bool {
	for _, sample := range stats.Samples {
		for _, c := range stats.Correlations {
			if s.Tracks[sample][c] != 0 || s.Histogram[sample][c] != 0 {
				return false
			}
		}
	}
	return s.RealIterations == 0
}

type snapshotRequest struct{ reply chan Snapshot }

type resetRequest struct {
	epoch uint64
	reply chan Snapshot
}

type drainRequest struct{ reply chan [2][2]*tractset.Pool }

// accumulator is the single owner of the histograms and streamline pools.
// Every mutation arrives through its inbox, so none of its state is shared.
type accumulator struct {
	inbox chan any
	done  chan struct{}

	epoch     uint64
	minLength int
	hist      [2][2]stats.Histogram
	counts    [2][2]int
	results   map[int][2][2]tract.Set
	realIters int
	stale     int
}

func newAccumulator(size, minLength int, epoch uint64) *accumulator {
	a := &accumulator{
		inbox:     make(chan any, 64),
		done:      make(chan struct{}),
		epoch:     epoch,
		minLength: minLength,
		results:   make(map[int][2][2]tract.Set),
	}
	for _, s := range stats.Samples {
		for _, c := range stats.Correlations {
			a.hist[s][c] = stats.NewHistogram(size)
		}
	}
	go a.run()
	return a
}

func (a *accumulator) run() {
	defer close(a.done)
	for msg := range a.inbox {
		switch m := msg.(type) {
		case iterationResult:
			a.accept(m)
		case snapshotRequest:
			m.reply <- a.snapshot()
		case resetRequest:
			a.reset(m.epoch)
			m.reply <- a.snapshot()
		case drainRequest:
			m.reply <- a.pools()
		}
	}
}

func (a *accumulator) accept(r iterationResult) {
	if r.epoch != a.epoch {
		a.stale++
		staleTotal.Inc()
		return
	}
	var kept [2][2]tract.Set
	for _, s := range stats.Samples {
		for _, c := range stats.Correlations {
			fdr.CalHist(r.tracks[s][c], a.hist[s][c])
			var p tractset.Pool
			n := p.Add(r.tracks[s][c], a.minLength)
			kept[s][c] = p.Set()
			a.counts[s][c] += n
			tracksTotal.WithLabelValues(s.String(), c.String()).Add(float64(n))
		}
		iterationsTotal.WithLabelValues(s.String()).Inc()
	}
	a.results[r.index] = kept
	a.realIters++
}

func (a *accumulator) reset(epoch uint64) {
	a.epoch = epoch
	for _, s := range stats.Samples {
		for _, c := range stats.Correlations {
			a.hist[s][c].Reset()
			a.counts[s][c] = 0
		}
	}
	a.results = make(map[int][2][2]tract.Set)
	a.realIters = 0
}

func (a *accumulator) snapshot() Snapshot {
	snap := Snapshot{Epoch: a.epoch, RealIterations: a.realIters, Tracks: a.counts, Stale: a.stale}
	for _, s := range stats.Samples {
		for _, c := range stats.Correlations {
			snap.Histogram[s][c] = a.hist[s][c].Sum()
		}
	}
	return snap
}

// pools assembles the epoch's streamlines in permutation index order.
func (a *accumulator) pools() [2][2]*tractset.Pool {
	indices := make([]int, 0, len(a.results))
	for i := range a.results {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	var out [2][2]*tractset.Pool
	for _, s := range stats.Samples {
		for _, c := range stats.Correlations {
			out[s][c] = &tractset.Pool{}
			for _, i := range indices {
				out[s][c].Add(a.results[i][s][c], 0)
			}
		}
	}
	return out
}

func (a *accumulator) submit(r iterationResult) { a.inbox <- r }

func (a *accumulator) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	a.inbox <- snapshotRequest{reply: reply}
	return <-reply
}

// Reset starts epoch and returns the state right after the reset.
func (a *accumulator) Reset(epoch uint64) Snapshot {
	reply := make(chan Snapshot, 1)
	a.inbox <- resetRequest{epoch: epoch, reply: reply}
	return <-reply
}

func (a *accumulator) Drain() [2][2]*tractset.Pool {
	reply := make(chan [2][2]*tractset.Pool, 1)
	a.inbox <- drainRequest{reply: reply}
	return <-reply
}

// stop must only be called once no sender remains.
func (a *accumulator) stop() {
	close(a.inbox)
	<-a.done
}
