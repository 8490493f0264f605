package statmodel

import (
	"context"
	"errors"
	"math"
	"testing"

	"gocnt/domain/cohort"
	"gocnt/domain/core"
	"gocnt/domain/stats"
	"gocnt/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticModel(t *testing.T, nonparametric bool, covariates ...string) (*StatModel, int) {
	t.Helper()
	a, c := testkit.SyntheticDataset(testkit.DefaultSyntheticOptions())
	m := New(c, testkit.RNGAdapter())
	m.SetNonparametric(nonparametric)
	require.NoError(t, m.SelectFeature(testkit.FeatureGroup, covariates...))
	bundle := a.Index(a.Dimension[0]/2, a.Dimension[1]/2, a.Dimension[2]/2)
	return m, bundle
}

func statAt(t *testing.T, m *StatModel, voxel int) stats.Statistic {
	t.Helper()
	values := make([]float64, m.SubjectCount())
	require.True(t, m.Population(0, voxel, values))
	return m.Info(values)
}

func TestSelectFeatureErrors(t *testing.T) {
	_, c := testkit.SyntheticDataset(testkit.DefaultSyntheticOptions())

	tests := []struct {
		name    string
		setup   func(m *StatModel) error
		wantErr error
	}{
		{"unknown study", func(m *StatModel) error { return m.SelectFeature("bmi") }, core.ErrFeatureNotFound},
		{"unknown covariate", func(m *StatModel) error { return m.SelectFeature(testkit.FeatureGroup, "bmi") }, core.ErrFeatureNotFound},
		{"constant study", func(m *StatModel) error { return m.SelectFeature(testkit.FeatureSite) }, core.ErrZeroVariance},
		{"empty selection", func(m *StatModel) error { return m.SelectCohort("group=5") }, core.ErrEmptyCohort},
		{"bad operator", func(m *StatModel) error { return m.SelectCohort("group") }, core.ErrInvalidSelection},
		{"bad value", func(m *StatModel) error { return m.SelectCohort("age>old") }, core.ErrInvalidSelection},
		{"single group", func(m *StatModel) error {
			if err := m.SelectCohort("group=1"); err != nil {
				return err
			}
			return m.SelectFeature(testkit.FeatureGroup)
		}, core.ErrZeroVariance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.setup(New(c, testkit.RNGAdapter()))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.True(t, core.IsConfigurationError(err))
		})
	}
}

func TestSelectFeatureCohortTooSmall(t *testing.T) {
	c := &cohort.Cohort{
		FeatureTitles:   []string{"age", "sex"},
		MetricsPerVoxel: 1,
		VoxelCount:      1,
		Subjects: []cohort.Subject{
			{ID: "a", Features: []float64{20, 0}, Values: []float32{1}},
			{ID: "b", Features: []float64{30, 1}, Values: []float32{1}},
			{ID: "c", Features: []float64{40, math.NaN()}, Values: []float32{1}},
			{ID: "d", Features: []float64{50, 1}, Values: []float32{1}},
		},
	}
	m := New(c, testkit.RNGAdapter())
	err := m.SelectFeature("age", "sex")
	assert.True(t, errors.Is(err, core.ErrCohortTooSmall), "got %v", err)

	require.NoError(t, m.SelectFeature("age"))
	assert.Equal(t, 4, m.SubjectCount())
}

func TestSelectCohort(t *testing.T) {
	_, c := testkit.SyntheticDataset(testkit.DefaultSyntheticOptions())
	m := New(c, testkit.RNGAdapter())
	require.NoError(t, m.SelectCohort("sex=0, age>=0"))
	require.NoError(t, m.SelectFeature(testkit.FeatureGroup))
	assert.Equal(t, 10, m.SubjectCount())
	assert.Equal(t, "sex=0, age>=0", m.Selection())
	assert.False(t, m.CohortHash().Short() == "")
}

func TestInfoDetectsPlantedAssociation(t *testing.T) {
	for _, nonparametric := range []bool{true, false} {
		m, bundle := syntheticModel(t, nonparametric)
		s := statAt(t, m, bundle)
		assert.Equal(t, stats.Positive, s.Correlation, "nonparametric=%v", nonparametric)
		assert.Greater(t, s.Magnitude, 2.5, "nonparametric=%v", nonparametric)
	}
}

func TestInfoWithCovariate(t *testing.T) {
	for _, nonparametric := range []bool{true, false} {
		m, bundle := syntheticModel(t, nonparametric, testkit.FeatureAge, testkit.FeatureSex)
		assert.Equal(t, []string{testkit.FeatureAge, testkit.FeatureSex}, m.Covariates())
		assert.Equal(t, 20-2-2, m.DegreesOfFreedom())
		s := statAt(t, m, bundle)
		assert.Equal(t, stats.Positive, s.Correlation)
		assert.Greater(t, s.Magnitude, 2.5)
		assert.False(t, math.IsInf(s.Magnitude, 0))
	}
}

func TestJointPermutationPreservesStatistic(t *testing.T) {
	for _, nonparametric := range []bool{true, false} {
		m, bundle := syntheticModel(t, nonparametric, testkit.FeatureAge)
		want := statAt(t, m, bundle)

		shuffled, err := m.Resample(context.Background(), false, true, 11)
		require.NoError(t, err)
		got := statAt(t, shuffled, bundle)
		assert.InDelta(t, want.Signed(), got.Signed(), 1e-8, "nonparametric=%v", nonparametric)
	}
}

func TestResampleDeterminism(t *testing.T) {
	m, bundle := syntheticModel(t, true)
	ctx := context.Background()

	a, err := m.Resample(ctx, true, true, 5)
	require.NoError(t, err)
	b, err := m.Resample(ctx, true, true, 5)
	require.NoError(t, err)
	assert.Equal(t, statAt(t, a, bundle), statAt(t, b, bundle))
	assert.True(t, a.IsNull())
	assert.False(t, m.IsNull(), "source model is untouched")

	boot, err := m.Resample(ctx, false, false, 5)
	require.NoError(t, err)
	assert.Equal(t, m.SubjectCount(), boot.SubjectCount())
}

func TestNullDrawsWeakenAssociation(t *testing.T) {
	m, bundle := syntheticModel(t, true)
	real := statAt(t, m, bundle).Magnitude

	var sum float64
	const draws = 40
	for i := 0; i < draws; i++ {
		null, err := m.Resample(context.Background(), true, true, int64(i))
		require.NoError(t, err)
		sum += statAt(t, null, bundle).Magnitude
	}
	assert.Less(t, sum/draws, real/2)
}

func TestPopulationSkipsMissing(t *testing.T) {
	m, bundle := syntheticModel(t, true)
	m.Cohort().Subjects[3].Values[bundle] = 0
	values := make([]float64, m.SubjectCount())
	assert.False(t, m.Population(0, bundle, values))
}

func TestResampleRequiresSelection(t *testing.T) {
	_, c := testkit.SyntheticDataset(testkit.DefaultSyntheticOptions())
	_, err := New(c, testkit.RNGAdapter()).Resample(context.Background(), true, true, 1)
	assert.Error(t, err)
}

func TestRankTies(t *testing.T) {
	data := []float64{3, 1, 3, 2}
	got := rank(data, make([]float64, 4), make([]rankPair, 4))
	assert.Equal(t, []float64{3.5, 1, 3.5, 2}, got)
}

func TestDistributions(t *testing.T) {
	assert.InDelta(t, 1.0, TTestPValue(0, 18), 1e-12)
	p := TTestPValue(2.5, 18)
	assert.Greater(t, p, 0.01)
	assert.Less(t, p, 0.05)
	assert.Equal(t, 1.0, TTestPValue(3, 0))

	r := CorrelationForT(2.5, 18)
	assert.InDelta(t, 2.5, r*math.Sqrt(18/(1-r*r)), 1e-9)
	assert.Less(t, CorrelationForT(-2.5, 18), 0.0)
}
