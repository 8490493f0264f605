package stats

import "math"

// ============================================================================
// CHANNELS
// ============================================================================

// Correlation tags the sign channel a statistic or streamline belongs to.
type Correlation int

const (
	Positive Correlation = iota
	Negative
)

// Correlations lists both channels in output order.
var Correlations = [...]Correlation{Positive, Negative}

// String returns the file-name token of the channel.
func (c Correlation) String() string {
	if c == Negative {
		return "neg_corr"
	}
	return "pos_corr"
}

// Label returns the human-readable channel name.
func (c Correlation) Label() string {
	if c == Negative {
		return "negative"
	}
	return "positive"
}

// Sample distinguishes the observed association from the permuted null.
type Sample int

const (
	Real Sample = iota
	Null
)

var Samples = [...]Sample{Real, Null}

func (s Sample) String() string {
	if s == Null {
		return "null"
	}
	return "real"
}

// Statistic is a signed T value split into its channel and magnitude.
// A zero statistic carries Positive with zero magnitude and routes nowhere.
type Statistic struct {
	Correlation Correlation
	Magnitude   float64
}

// NewStatistic tags t by sign. NaN and infinities collapse to zero.
func NewStatistic(t float64) Statistic {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return Statistic{}
	}
	if t < 0 {
		return Statistic{Correlation: Negative, Magnitude: -t}
	}
	return Statistic{Correlation: Positive, Magnitude: t}
}

// Signed restores the signed T value.
func (s Statistic) Signed() float64 {
	if s.Correlation == Negative {
		return -s.Magnitude
	}
	return s.Magnitude
}

func (s Statistic) IsZero() bool { return s.Magnitude == 0 }

// ============================================================================
// LENGTH DISTRIBUTIONS
// ============================================================================

// Histogram counts streamlines per length bin. The last bin saturates.
type Histogram []uint32

func NewHistogram(size int) Histogram {
	return make(Histogram, size)
}

// Sum returns the total count across bins.
func (h Histogram) Sum() uint64 {
	var total uint64
	for _, c := range h {
		total += uint64(c)
	}
	return total
}

// Reset zeroes every bin in place.
func (h Histogram) Reset() {
	for i := range h {
		h[i] = 0
	}
}

func (h Histogram) Clone() Histogram {
	return append(Histogram(nil), h...)
}

// FDRCurve holds one false discovery rate per length bin, each in [0, 1].
type FDRCurve []float64

// Min returns the smallest rate on the curve, 1 for an empty curve.
func (f FDRCurve) Min() float64 {
	lowest := 1.0
	for _, v := range f {
		if v < lowest {
			lowest = v
		}
	}
	return lowest
}

// Distribution holds the four length histograms and the FDR curve of each channel.
type Distribution struct {
	Real [2]Histogram
	Null [2]Histogram
	FDR  [2]FDRCurve
}

// NewDistribution allocates zeroed histograms and curves of the given size.
func NewDistribution(size int) *Distribution {
	d := &Distribution{}
	for _, c := range Correlations {
		d.Real[c] = NewHistogram(size)
		d.Null[c] = NewHistogram(size)
		d.FDR[c] = make(FDRCurve, size)
	}
	return d
}

// Histogram returns the histogram for one sample and channel.
func (d *Distribution) Histogram(s Sample, c Correlation) Histogram {
	if s == Null {
		return d.Null[c]
	}
	return d.Real[c]
}

// Size returns the number of length bins.
func (d *Distribution) Size() int {
	return len(d.Real[Positive])
}

// Reset zeroes all histograms and curves.
func (d *Distribution) Reset() {
	for _, c := range Correlations {
		d.Real[c].Reset()
		d.Null[c].Reset()
		for i := range d.FDR[c] {
			d.FDR[c][i] = 0
		}
	}
}
