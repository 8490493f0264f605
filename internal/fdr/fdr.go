// Package fdr turns streamline sets into length histograms and the
// per-length false discovery rate of real against null streamlines.
package fdr

import (
	"gocnt/domain/stats"
	"gocnt/domain/tract"
)

// SignificanceFloor is the rate below which a curve counts as carrying a
// finding; curves that reach it have their undetermined 1.0 bins zeroed.
const SignificanceFloor = 0.05

// CalHist adds every valid streamline to hist by length. Lengths beyond
// the last bin saturate into it.
func CalHist(set tract.Set, hist stats.Histogram) {
	if len(hist) == 0 {
		return
	}
	last := len(hist) - 1
	for _, s := range set {
		if !s.Valid() {
			continue
		}
		length := s.Length()
		if length < last {
			hist[length]++
		} else {
			hist[last]++
		}
	}
}

// Calculate fills d.FDR from the four histograms of d.
func Calculate(d *stats.Distribution) {
	for _, c := range stats.Correlations {
		d.FDR[c] = Curve(d.Null[c], d.Real[c], d.FDR[c])
	}
}

// Curve computes the FDR of each length bin as the ratio of null to real
// streamlines at least that long, capped at 1.
//
// While the null tail is still empty the ratio is undefined; the first bin
// where null mass appears (or bin 0) back-fills every bin up to the longest
// real streamline with 1/real so the curve stays informative. If the curve
// dips below SignificanceFloor, bins left at exactly 1 are reported as 0.
func Curve(null, real stats.Histogram, dst stats.FDRCurve) stats.FDRCurve {
	size := len(real)
	if len(dst) != size {
		dst = make(stats.FDRCurve, size)
	}
	var sumNull, sumReal float64
	for i := size - 1; i >= 0; i-- {
		if sumNull == 0 && (null[i] != 0 || i == 0) && sumReal > 0 {
			tail := 1 / sumReal
			j := i
			for k := size - 1; k > i; k-- {
				if real[k] != 0 {
					j = k
					break
				}
			}
			for k := i; k <= j; k++ {
				dst[k] = tail
			}
		}
		sumNull += float64(null[i])
		sumReal += float64(real[i])
		if sumReal > 0 {
			dst[i] = min(1, sumNull/sumReal)
		} else {
			dst[i] = 1
		}
	}
	if dst.Min() < SignificanceFloor {
		for i, v := range dst {
			if v == 1 {
				dst[i] = 0
			}
		}
	}
	return dst
}
