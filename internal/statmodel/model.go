// Package statmodel holds the cohort regression model that turns one
// voxel's subject values into a T statistic, and the resampling that
// produces permuted and bootstrapped copies of it.
package statmodel

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gocnt/domain/cohort"
	"gocnt/domain/core"
	"gocnt/ports"

	"github.com/montanaflynn/stats"
)

// StatModel is a cohort design plus one resampling of its rows. The
// source model returned by New keeps rows in cohort order; Resample
// derives independent copies that share the immutable cohort.
type StatModel struct {
	cohort *cohort.Cohort
	rng    ports.RNGPort
	runID  string

	selection  string
	candidates []int // cohort subjects passing the selection
	subjects   []int // candidates with every model variable present
	study      int
	covariates []int
	selected   bool

	nonparametric bool
	normalize     bool
	scale         []float64 // per position in subjects

	// rows map to positions in subjects
	index       []int
	studyOrder  []int
	null        bool
	permutation bool

	design *design
}

// New creates a model over every subject of c. Nonparametric (Spearman)
// statistics and QA normalisation are on by default.
func New(c *cohort.Cohort, rng ports.RNGPort) *StatModel {
	m := &StatModel{
		cohort:        c,
		rng:           rng,
		study:         -1,
		nonparametric: true,
		normalize:     true,
	}
	m.candidates = make([]int, len(c.Subjects))
	for i := range m.candidates {
		m.candidates[i] = i
	}
	return m
}

// SetNonparametric switches between Spearman (partial) correlation and
// the OLS t statistic. Call before SelectFeature.
func (m *StatModel) SetNonparametric(on bool) { m.nonparametric = on }

// SetNormalizeQA scales each subject by the inverse of its maximum value.
// Call before SelectFeature.
func (m *StatModel) SetNormalizeQA(on bool) { m.normalize = on }

// SetRunID keys the resampling streams to a run.
func (m *StatModel) SetRunID(id core.RunID) { m.runID = id.String() }

// SelectCohort keeps subjects satisfying every comma-separated condition
// of the form <feature><op><value>, op one of = != > < >= <=.
// An empty expression selects every subject.
func (m *StatModel) SelectCohort(expr string) error {
	type condition struct {
		feature int
		op      string
		value   float64
	}
	var conditions []condition
	for _, raw := range strings.Split(expr, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		name, op, valueText, ok := splitCondition(raw)
		if !ok {
			return core.NewSelectionError(raw, "has no comparison operator")
		}
		feature, found := m.cohort.FeatureIndex(name)
		if !found {
			return core.NewFeatureNotFoundError(name)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(valueText), 64)
		if err != nil {
			return core.NewSelectionError(raw, "has a non-numeric value")
		}
		conditions = append(conditions, condition{feature: feature, op: op, value: value})
	}

	m.candidates = m.candidates[:0]
	for s := range m.cohort.Subjects {
		keep := true
		for _, c := range conditions {
			if !compare(m.cohort.Feature(s, c.feature), c.op, c.value) {
				keep = false
				break
			}
		}
		if keep {
			m.candidates = append(m.candidates, s)
		}
	}
	m.selection = strings.TrimSpace(expr)
	m.selected = false
	if len(m.candidates) == 0 {
		return fmt.Errorf("%w: selection %q excludes every subject", core.ErrEmptyCohort, expr)
	}
	return nil
}

func splitCondition(s string) (name, op, value string, ok bool) {
	for _, candidate := range []string{">=", "<=", "!=", "=", ">", "<"} {
		if i := strings.Index(s, candidate); i > 0 {
			return strings.TrimSpace(s[:i]), candidate, s[i+len(candidate):], true
		}
	}
	return "", "", "", false
}

func compare(v float64, op string, ref float64) bool {
	if math.IsNaN(v) {
		return false
	}
	switch op {
	case "=":
		return v == ref
	case "!=":
		return v != ref
	case ">":
		return v > ref
	case "<":
		return v < ref
	case ">=":
		return v >= ref
	case "<=":
		return v <= ref
	}
	return false
}

// SelectFeature fixes the study feature and covariates. Subjects missing
// any of them are dropped. It fails on an unknown feature, an empty or
// too small cohort, or a study feature without variance.
func (m *StatModel) SelectFeature(study string, covariates ...string) error {
	studyIndex, ok := m.cohort.FeatureIndex(study)
	if !ok {
		return core.NewFeatureNotFoundError(study)
	}
	var cov []int
	seen := map[int]bool{studyIndex: true}
	for _, name := range covariates {
		if strings.TrimSpace(name) == "" {
			continue
		}
		idx, ok := m.cohort.FeatureIndex(name)
		if !ok {
			return core.NewFeatureNotFoundError(name)
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		cov = append(cov, idx)
	}

	if len(m.candidates) == 0 {
		return core.ErrEmptyCohort
	}
	subjects := make([]int, 0, len(m.candidates))
	for _, s := range m.candidates {
		present := !math.IsNaN(m.cohort.Feature(s, studyIndex))
		for _, c := range cov {
			if math.IsNaN(m.cohort.Feature(s, c)) {
				present = false
			}
		}
		if present {
			subjects = append(subjects, s)
		}
	}
	if len(subjects) == 0 {
		return fmt.Errorf("%w: no subject has %s recorded", core.ErrEmptyCohort, study)
	}
	if len(subjects) < len(cov)+3 {
		return fmt.Errorf("%w: %d subjects for %d variables", core.ErrCohortTooSmall, len(subjects), len(cov)+1)
	}

	values := make(stats.Float64Data, len(subjects))
	for i, s := range subjects {
		values[i] = m.cohort.Feature(s, studyIndex)
	}
	variance, err := stats.Variance(values)
	if err != nil || variance == 0 {
		return fmt.Errorf("%w: %s", core.ErrZeroVariance, m.cohort.FeatureTitles[studyIndex])
	}

	m.study = studyIndex
	m.covariates = cov
	m.subjects = subjects
	m.scale = m.subjectScales(subjects)
	m.index = identity(len(subjects))
	m.studyOrder = m.index
	m.null = false
	m.permutation = true
	m.selected = true
	m.design = newDesign(m)
	return nil
}

func (m *StatModel) subjectScales(subjects []int) []float64 {
	scale := make([]float64, len(subjects))
	for i, s := range subjects {
		scale[i] = 1
		if !m.normalize {
			continue
		}
		var peak float32
		for _, v := range m.cohort.Subjects[s].Values {
			if v > peak {
				peak = v
			}
		}
		if peak > 0 {
			scale[i] = 1 / float64(peak)
		}
	}
	return scale
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// Resample derives a copy of m with a seeded row order. With permutation
// the rows are a shuffle applied jointly to every variable, which keeps
// the association; without it rows are drawn with replacement. With null
// the study feature is additionally shuffled against the other columns.
func (m *StatModel) Resample(ctx context.Context, null, permutation bool, seed int64) (*StatModel, error) {
	if !m.selected {
		return nil, fmt.Errorf("%w: no study feature selected", core.ErrFeatureNotFound)
	}
	rows, err := m.rng.Stream(ctx, m.runID, "resample", "rows", seed)
	if err != nil {
		return nil, fmt.Errorf("rows stream: %w", err)
	}

	n := len(m.subjects)
	index := identity(n)
	if permutation {
		shuffle(rows.Intn, index)
	} else {
		for i := range index {
			index[i] = rows.Intn(n)
		}
	}

	studyOrder := index
	if null {
		labels, err := m.rng.Stream(ctx, m.runID, "resample", "study", seed)
		if err != nil {
			return nil, fmt.Errorf("study stream: %w", err)
		}
		order := identity(n)
		shuffle(labels.Intn, order)
		studyOrder = make([]int, n)
		for i, p := range order {
			studyOrder[i] = index[p]
		}
	}

	out := *m
	out.index = index
	out.studyOrder = studyOrder
	out.null = null
	out.permutation = permutation
	out.design = newDesign(&out)
	return &out, nil
}

// shuffle is a Fisher-Yates shuffle driven by intn.
func shuffle(intn func(int) int, s []int) {
	for i := len(s) - 1; i > 0; i-- {
		j := intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// Population fills dst with the normalised values of every row at one
// fiber order and voxel. It returns false when any value is missing.
func (m *StatModel) Population(fiber, voxel int, dst []float64) bool {
	for row, pos := range m.index {
		v := m.cohort.Value(m.subjects[pos], fiber, voxel)
		if v == 0 {
			return false
		}
		dst[row] = float64(v) * m.scale[pos]
	}
	return true
}

// Selected reports whether SelectFeature succeeded.
func (m *StatModel) Selected() bool { return m.selected }

// SubjectCount returns the number of rows.
func (m *StatModel) SubjectCount() int { return len(m.subjects) }

// IsNull reports whether the study feature was shuffled.
func (m *StatModel) IsNull() bool { return m.null }

// Nonparametric reports whether Spearman statistics are used.
func (m *StatModel) Nonparametric() bool { return m.nonparametric }

// NormalizeQA reports whether subjects are scaled to their maximum.
func (m *StatModel) NormalizeQA() bool { return m.normalize }

// Selection returns the cohort selection expression.
func (m *StatModel) Selection() string { return m.selection }

// StudyFeature returns the title of the study feature.
func (m *StatModel) StudyFeature() string {
	if m.study < 0 {
		return ""
	}
	return m.cohort.FeatureTitles[m.study]
}

// Covariates returns the titles of the covariates.
func (m *StatModel) Covariates() []string {
	out := make([]string, len(m.covariates))
	for i, c := range m.covariates {
		out[i] = m.cohort.FeatureTitles[c]
	}
	return out
}

// DegreesOfFreedom of the T statistic.
func (m *StatModel) DegreesOfFreedom() int {
	return len(m.subjects) - 2 - len(m.covariates)
}

// CohortHash fingerprints the included subjects and variables.
func (m *StatModel) CohortHash() core.CohortHash {
	vars := append([]string{m.StudyFeature()}, m.Covariates()...)
	return core.ComputeCohortHash(m.cohort.SubjectIDs(m.subjects), vars, m.selection)
}

// Cohort returns the shared subject database.
func (m *StatModel) Cohort() *cohort.Cohort { return m.cohort }
