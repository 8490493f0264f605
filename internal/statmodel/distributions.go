package statmodel

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// TTestPValue computes the two-tailed p-value of a t statistic using
// Student's t-distribution.
func TTestPValue(tStatistic float64, degreesOfFreedom int) float64 {
	if degreesOfFreedom <= 0 {
		return 1.0
	}
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(degreesOfFreedom)}
	return 2 * (1 - tDist.CDF(math.Abs(tStatistic)))
}

// CorrelationForT inverts t = r*sqrt(df/(1-r^2)).
func CorrelationForT(tStatistic float64, degreesOfFreedom int) float64 {
	if degreesOfFreedom <= 0 {
		return 0
	}
	t2 := tStatistic * tStatistic
	return math.Copysign(math.Sqrt(t2/(t2+float64(degreesOfFreedom))), tStatistic)
}
