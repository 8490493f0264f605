package finalize

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilePostfix(t *testing.T) {
	tests := []struct {
		name      string
		study     string
		t         float64
		normalize bool
		length    int
		fdr       float64
		want      string
	}{
		{"length mode", "age", 2.5, true, 20, 0, "age.t2.nqa.length20"},
		{"fdr mode", "group", 3, false, 20, 0.05, "group.t3.fdr0.05"},
		{"fdr truncated", "bmi", 2, true, 10, 0.1, "bmi.t2.nqa.fdr0.10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilePostfix(tt.study, tt.t, tt.normalize, tt.length, tt.fdr))
		})
	}
}

func TestOutputBase(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "age.t2.length20"), OutputBase("out", "", "age.t2.length20"))
	assert.Equal(t, filepath.Join("out", "run1.age.t2.length20"), OutputBase("out", "run1", "age.t2.length20"))
}
