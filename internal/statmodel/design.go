package statmodel

import (
	"math"
	"sort"

	"gocnt/domain/stats"

	"gonum.org/v1/gonum/mat"
	gstat "gonum.org/v1/gonum/stat"
)

// rhoLimit keeps the rho to t conversion finite.
const rhoLimit = 0.999999

// design holds everything Info needs that depends only on the row order.
type design struct {
	n  int
	df int

	// nonparametric
	studyRanks []float64
	nuisance   *mat.Dense // [1, covariates], nil without covariates
	nuisanceP  *mat.Dense // (Z'Z)^-1 Z'

	// parametric
	full      *mat.Dense // [1, covariates, study]
	fullP     *mat.Dense // (X'X)^-1 X'
	studyVar  float64    // diagonal entry of (X'X)^-1 for the study column
	studyCol  int
	parameter bool

	degenerate bool
}

func newDesign(m *StatModel) *design {
	n := len(m.index)
	k := len(m.covariates)
	d := &design{n: n, df: n - 2 - k}
	if d.df < 1 {
		d.degenerate = true
		return d
	}

	study := make([]float64, n)
	for row, pos := range m.studyOrder {
		study[row] = m.cohort.Feature(m.subjects[pos], m.study)
	}

	if !m.nonparametric {
		d.parameter = true
		p := k + 2
		x := mat.NewDense(n, p, nil)
		for row, pos := range m.index {
			x.Set(row, 0, 1)
			for j, c := range m.covariates {
				x.Set(row, j+1, m.cohort.Feature(m.subjects[pos], c))
			}
			x.Set(row, p-1, study[row])
		}
		inv, ok := normalInverse(x)
		if !ok {
			d.degenerate = true
			return d
		}
		d.full = x
		d.fullP = projection(inv, x)
		d.studyCol = p - 1
		d.studyVar = inv.At(p-1, p-1)
		return d
	}

	if k > 0 {
		z := mat.NewDense(n, k+1, nil)
		for row, pos := range m.index {
			z.Set(row, 0, 1)
			for j, c := range m.covariates {
				z.Set(row, j+1, m.cohort.Feature(m.subjects[pos], c))
			}
		}
		inv, ok := normalInverse(z)
		if !ok {
			d.degenerate = true
			return d
		}
		d.nuisance = z
		d.nuisanceP = projection(inv, z)
		study = d.residual(study, make([]float64, k+1), make([]float64, n))
	}
	d.studyRanks = rank(study, make([]float64, n), make([]rankPair, n))
	return d
}

// normalInverse returns (X'X)^-1, false when X'X is singular.
func normalInverse(x *mat.Dense) (*mat.Dense, bool) {
	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, false
	}
	return &inv, true
}

func projection(inv, x *mat.Dense) *mat.Dense {
	var p mat.Dense
	p.Mul(inv, x.T())
	return &p
}

// residual writes y minus its least-squares fit on the nuisance columns into dst.
func (d *design) residual(y, beta, dst []float64) []float64 {
	rows, cols := d.nuisanceP.Dims()
	for i := 0; i < rows; i++ {
		s := 0.0
		for j := 0; j < cols; j++ {
			s += d.nuisanceP.At(i, j) * y[j]
		}
		beta[i] = s
	}
	for r := 0; r < d.n; r++ {
		fit := 0.0
		for c := range beta {
			fit += d.nuisance.At(r, c) * beta[c]
		}
		dst[r] = y[r] - fit
	}
	return dst
}

type rankPair struct {
	value float64
	index int
}

// rank writes average ranks of data into dst, ties sharing their mean rank.
func rank(data, dst []float64, pairs []rankPair) []float64 {
	n := len(data)
	for i, v := range data {
		pairs[i] = rankPair{value: v, index: i}
	}
	sort.Slice(pairs[:n], func(i, j int) bool {
		return pairs[i].value < pairs[j].value
	})

	i := 0
	for i < n {
		j := i + 1
		for j < n && pairs[j].value == pairs[i].value {
			j++
		}
		avgRank := float64(i+1) + float64(j-i-1)/2.0
		for k := i; k < j; k++ {
			dst[pairs[k].index] = avgRank
		}
		i = j
	}
	return dst
}

// Evaluator computes statistics with reusable scratch buffers. It is not
// safe for concurrent use; create one per goroutine.
type Evaluator struct {
	d        *design
	work     []float64
	ranks    []float64
	pairs    []rankPair
	beta     []float64
	fullBeta []float64
}

// NewEvaluator returns an evaluator bound to the model's row order.
func (m *StatModel) NewEvaluator() *Evaluator {
	n := m.design.n
	return &Evaluator{
		d:        m.design,
		work:     make([]float64, n),
		ranks:    make([]float64, n),
		pairs:    make([]rankPair, n),
		beta:     make([]float64, len(m.covariates)+1),
		fullBeta: make([]float64, len(m.covariates)+2),
	}
}

// Info returns the T statistic of the study feature for one population.
// values must hold one non-missing value per row.
func (m *StatModel) Info(values []float64) stats.Statistic {
	return m.NewEvaluator().Info(values)
}

// Info returns the T statistic of the study feature for one population.
func (e *Evaluator) Info(values []float64) stats.Statistic {
	d := e.d
	if d.degenerate || len(values) != d.n {
		return stats.Statistic{}
	}
	if d.parameter {
		return stats.NewStatistic(e.regressionT(values))
	}

	y := values
	if d.nuisance != nil {
		y = d.residual(values, e.beta, e.work)
	}
	yRanks := rank(y, e.ranks, e.pairs)
	rho := gstat.Correlation(d.studyRanks, yRanks, nil)
	if math.IsNaN(rho) {
		return stats.Statistic{}
	}
	rho = math.Max(-rhoLimit, math.Min(rhoLimit, rho))
	return stats.NewStatistic(rho * math.Sqrt(float64(d.df)/(1-rho*rho)))
}

func (e *Evaluator) regressionT(y []float64) float64 {
	d := e.d
	p, n := d.fullP.Dims()
	for i := 0; i < p; i++ {
		s := 0.0
		for j := 0; j < n; j++ {
			s += d.fullP.At(i, j) * y[j]
		}
		e.fullBeta[i] = s
	}
	sse := 0.0
	for r := 0; r < n; r++ {
		fit := 0.0
		for c := 0; c < p; c++ {
			fit += d.full.At(r, c) * e.fullBeta[c]
		}
		res := y[r] - fit
		sse += res * res
	}
	dof := n - p
	if dof < 1 {
		return 0
	}
	se := math.Sqrt(sse / float64(dof) * d.studyVar)
	if se == 0 || math.IsNaN(se) {
		return 0
	}
	return e.fullBeta[d.studyCol] / se
}
