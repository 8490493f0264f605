package finalize

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gocnt/adapters/artifacts"
	"gocnt/domain/core"
	"gocnt/domain/stats"
	"gocnt/domain/tract"
	"gocnt/internal"
	"gocnt/internal/connectometry"
	"gocnt/internal/spm"
	"gocnt/internal/statmodel"
	"gocnt/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteDistribution(ctx context.Context, base string, d *stats.Distribution, minLength int) ([]string, error) {
	args := m.Called(ctx, base, d, minLength)
	files, _ := args.Get(0).([]string)
	return files, args.Error(1)
}

func (m *mockWriter) WriteTracts(ctx context.Context, base string, c stats.Correlation, set tract.Set) (string, error) {
	args := m.Called(ctx, base, c, set)
	return args.String(0), args.Error(1)
}

func (m *mockWriter) WriteStatistics(ctx context.Context, base string, pos, neg [][]float32) (string, error) {
	args := m.Called(ctx, base, pos, neg)
	return args.String(0), args.Error(1)
}

func (m *mockWriter) Remove(paths []string) error {
	return m.Called(paths).Error(0)
}

func expectWrites(w *mockWriter) {
	w.On("WriteDistribution", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]string{"dist"}, nil)
	w.On("WriteTracts", mock.Anything, mock.Anything, stats.Positive, mock.Anything).Return("pos", nil)
	w.On("WriteTracts", mock.Anything, mock.Anything, stats.Negative, mock.Anything).Return("neg", nil)
	w.On("WriteStatistics", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("stats", nil)
}

func model(t *testing.T, covariates ...string) *statmodel.StatModel {
	t.Helper()
	_, c := testkit.SyntheticDataset(testkit.DefaultSyntheticOptions())
	m := statmodel.New(c, testkit.RNGAdapter())
	require.NoError(t, m.SelectFeature(testkit.FeatureGroup, covariates...))
	return m
}

func runResult(size int) *connectometry.Result {
	res := &connectometry.Result{
		RunID:            "run-1",
		SeedCount:        20000,
		Distribution:     stats.NewDistribution(size),
		Map:              &spm.Result{Pos: [][]float32{{1}}, Neg: [][]float32{{0}}},
		PermutationCount: 100,
		LengthThreshold:  20,
		StartedAt:        time.Now(),
		FinishedAt:       time.Now(),
	}
	for _, c := range stats.Correlations {
		for i := range res.Distribution.FDR[c] {
			res.Distribution.FDR[c][i] = 1
		}
	}
	return res
}

func quiet() *internal.Logger { return internal.NewLoggerTo(io.Discard, internal.LogLevelError) }

func TestFinalizeLengthMode(t *testing.T) {
	res := runResult(32)
	pos := res.Pool(stats.Real, stats.Positive)
	pos.Add(tract.Set{
		testkit.StraightStreamline(25, 0),
		testkit.StraightStreamline(25, 0),
		testkit.StraightStreamline(25, 3),
		testkit.StraightStreamline(12, 6),
	}, 0)
	res.Distribution.FDR[stats.Positive][20] = 0.1

	w := &mockWriter{}
	expectWrites(w)
	opts := Options{LengthThreshold: 20, TThreshold: 2.5, OutputDir: "out"}
	m := model(t)
	sum, err := New(w, m, opts, quiet()).Finalize(context.Background(), res)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("out", "group.t2.nqa.length20"), sum.Base)
	assert.Equal(t, m.CohortHash(), sum.Cohort)
	assert.Equal(t, []string{"dist", "pos", "neg", "stats"}, sum.Files)
	assert.Equal(t, 2, sum.Channels[stats.Positive].Tracks)
	assert.Equal(t, 20, sum.Channels[stats.Positive].Cutoff)
	assert.Equal(t, 25.0, sum.Channels[stats.Positive].Lengths.Max)
	assert.True(t, sum.HasFinding(stats.Positive))
	assert.False(t, sum.HasFinding(stats.Negative))
	assert.Equal(t, 2, res.Tracks(stats.Real, stats.Positive).Len())

	w.AssertCalled(t, "WriteDistribution", mock.Anything, sum.Base, res.Distribution, 20)
	w.AssertCalled(t, "WriteTracts", mock.Anything, sum.Base, stats.Positive, res.Tracks(stats.Real, stats.Positive))
	w.AssertExpectations(t)
}

func TestFinalizeFDRMode(t *testing.T) {
	res := runResult(32)
	pos := res.Pool(stats.Real, stats.Positive)
	pos.Add(tract.Set{
		testkit.StraightStreamline(21, 0),
		testkit.StraightStreamline(24, 3),
		testkit.StraightStreamline(30, 6),
	}, 0)
	neg := res.Pool(stats.Real, stats.Negative)
	neg.Add(tract.Set{testkit.StraightStreamline(30, 9)}, 0)

	fdr := res.Distribution.FDR[stats.Positive]
	fdr[20], fdr[21], fdr[22], fdr[23] = 0.4, 0.3, 0.2, 0.04

	w := &mockWriter{}
	expectWrites(w)
	opts := Options{LengthThreshold: 20, FDRThreshold: 0.05, TThreshold: 3, OutputPrefix: "study"}
	sum, err := New(w, model(t), opts, quiet()).Finalize(context.Background(), res)
	require.NoError(t, err)

	assert.Equal(t, "study.group.t3.nqa.fdr0.05", sum.Base)
	assert.Equal(t, 23, sum.Channels[stats.Positive].Cutoff)
	assert.Equal(t, 2, sum.Channels[stats.Positive].Tracks)
	assert.True(t, sum.HasFinding(stats.Positive))

	assert.Equal(t, -1, sum.Channels[stats.Negative].Cutoff)
	assert.Equal(t, 0, sum.Channels[stats.Negative].Tracks)
	assert.Empty(t, res.Tracks(stats.Real, stats.Negative))
	assert.False(t, sum.HasFinding(stats.Negative))
}

func TestFinalizeAborted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &mockWriter{}
	_, err := New(w, model(t), Options{LengthThreshold: 20}, quiet()).Finalize(ctx, runResult(32))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrAborted))
	w.AssertNotCalled(t, "WriteDistribution", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// cancellingWriter writes real files and cancels the run once the named
// output is on disk.
type cancellingWriter struct {
	*artifacts.FileWriter
	after  string
	cancel context.CancelFunc
}

func (w *cancellingWriter) WriteDistribution(ctx context.Context, base string, d *stats.Distribution, minLength int) ([]string, error) {
	files, err := w.FileWriter.WriteDistribution(ctx, base, d, minLength)
	if w.after == "distribution" {
		w.cancel()
	}
	return files, err
}

func (w *cancellingWriter) WriteTracts(ctx context.Context, base string, c stats.Correlation, set tract.Set) (string, error) {
	path, err := w.FileWriter.WriteTracts(ctx, base, c, set)
	if w.after == c.String() {
		w.cancel()
	}
	return path, err
}

func TestFinalizeCancelledMidOutput(t *testing.T) {
	for _, after := range []string{"distribution", stats.Positive.String(), stats.Negative.String()} {
		t.Run(after, func(t *testing.T) {
			dir := t.TempDir()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			w := &cancellingWriter{FileWriter: artifacts.NewFileWriter(true), after: after, cancel: cancel}

			sum, err := New(w, model(t), Options{LengthThreshold: 20, OutputDir: dir}, quiet()).Finalize(ctx, runResult(32))
			require.Error(t, err)
			assert.Nil(t, sum)
			assert.ErrorIs(t, err, core.ErrAborted)

			left, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, left)
		})
	}
}

func TestFinalizeWriterErrorRemovesWritten(t *testing.T) {
	w := &mockWriter{}
	w.On("WriteDistribution", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]string{"dist"}, nil)
	w.On("WriteTracts", mock.Anything, mock.Anything, stats.Positive, mock.Anything).Return("pos", nil)
	w.On("WriteTracts", mock.Anything, mock.Anything, stats.Negative, mock.Anything).Return("", errors.New("disk full"))
	w.On("Remove", []string{"dist", "pos"}).Return(nil)

	_, err := New(w, model(t), Options{LengthThreshold: 20}, quiet()).Finalize(context.Background(), runResult(32))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, core.IsAborted(err))
	w.AssertExpectations(t)
}

func TestFinalizeWriterError(t *testing.T) {
	w := &mockWriter{}
	w.On("WriteDistribution", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))

	_, err := New(w, model(t), Options{LengthThreshold: 20}, quiet()).Finalize(context.Background(), runResult(32))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	w.AssertNotCalled(t, "WriteTracts", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFDRCutoff(t *testing.T) {
	curve := stats.FDRCurve{1, 1, 0.5, 0.04, 0.3, 0.01}
	tests := []struct {
		name      string
		length    int
		threshold float64
		want      int
	}{
		{"first passing bin", 0, 0.05, 3},
		{"start above threshold bin", 4, 0.05, 5},
		{"inclusive", 0, 0.5, 2},
		{"none", 0, 0.001, -1},
		{"threshold beyond curve", 10, 0.5, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FDRCutoff(curve, tt.length, tt.threshold))
		})
	}
}
