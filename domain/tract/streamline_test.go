package tract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamlineGeometry(t *testing.T) {
	s := Streamline{0, 0, 0, 1, 0, 0, 2, 0, 0}
	assert.True(t, s.Valid())
	assert.Equal(t, 3, s.PointCount())
	assert.Equal(t, 2, s.Length())
	assert.Equal(t, [3]float32{1, 0, 0}, s.Point(1))

	r := s.Reversed()
	assert.Equal(t, Streamline{2, 0, 0, 1, 0, 0, 0, 0, 0}, r)
	assert.Equal(t, Streamline{0, 0, 0, 1, 0, 0, 2, 0, 0}, s, "source must not change")

	assert.False(t, Streamline{1, 2, 3}.Valid())
	assert.Equal(t, []float64{2, 0}, Set{s, {1, 2, 3}}.Lengths())
}
