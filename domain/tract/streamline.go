package tract

// Streamline is a polyline through voxel space stored as flat x,y,z triples.
type Streamline []float32

// PointCount returns the number of xyz points.
func (s Streamline) PointCount() int {
	return len(s) / 3
}

// Valid reports whether the streamline carries more than a single point.
func (s Streamline) Valid() bool {
	return len(s) > 3
}

// Length returns the length in voxel-distance units: one unit per step.
func (s Streamline) Length() int {
	return len(s)/3 - 1
}

// Point returns the i-th point.
func (s Streamline) Point(i int) [3]float32 {
	return [3]float32{s[3*i], s[3*i+1], s[3*i+2]}
}

// Reversed returns a copy with point order reversed.
func (s Streamline) Reversed() Streamline {
	n := s.PointCount()
	out := make(Streamline, len(s))
	for i := 0; i < n; i++ {
		copy(out[3*i:3*i+3], s[3*(n-1-i):3*(n-1-i)+3])
	}
	return out
}

// Set is an ordered collection of streamlines.
type Set []Streamline

// Len returns the number of streamlines.
func (s Set) Len() int { return len(s) }

// Lengths returns each streamline length as float64, ready for summary statistics.
func (s Set) Lengths() []float64 {
	out := make([]float64, len(s))
	for i, t := range s {
		out[i] = float64(t.Length())
	}
	return out
}
