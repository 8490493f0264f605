package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewRunIDUniqueness(t *testing.T) {
	const n = 10000

	seen := make(map[RunID]bool, n)
	for i := 0; i < n; i++ {
		id := NewRunID()
		if id == "" {
			t.Fatalf("empty run ID at iteration %d", i)
		}
		if seen[id] {
			t.Fatalf("duplicate run ID %s", id)
		}
		seen[id] = true
	}
}

func TestComputeCohortHashIsOrderInsensitive(t *testing.T) {
	a := ComputeCohortHash([]string{"s1", "s2", "s3"}, []string{"age"}, "sex=1")
	b := ComputeCohortHash([]string{"s3", "s1", "s2"}, []string{"age"}, "sex=1")
	if a != b {
		t.Errorf("subject order changed the hash: %s vs %s", a, b)
	}

	c := ComputeCohortHash([]string{"s1", "s2", "s3"}, []string{"age"}, "sex=0")
	if a == c {
		t.Error("selection did not change the hash")
	}
	if len(a.Short()) != 12 {
		t.Errorf("Expected 12 character short hash, got %q", a.Short())
	}
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		err     error
		config  bool
		aborted bool
	}{
		{NewFeatureNotFoundError("age"), true, false},
		{NewDimensionMismatchError("field", 3, 4), true, false},
		{NewSelectionError("age~3", "has no comparison operator"), true, false},
		{fmt.Errorf("wrapped: %w", ErrZeroVariance), true, false},
		{fmt.Errorf("%w: context canceled", ErrAborted), false, true},
		{errors.New("disk full"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := IsConfigurationError(tt.err); got != tt.config {
				t.Errorf("IsConfigurationError = %v, want %v", got, tt.config)
			}
			if got := IsAborted(tt.err); got != tt.aborted {
				t.Errorf("IsAborted = %v, want %v", got, tt.aborted)
			}
		})
	}
}
