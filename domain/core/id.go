package core

import "github.com/google/uuid"

// RunID identifies one permutation analysis run. Resampling streams are
// keyed by it, so two runs with the same RunID draw the same permutations.
type RunID string

// NewRunID returns a time-ordered UUID v7 identifier.
func NewRunID() RunID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return RunID(id.String())
}

func (id RunID) String() string { return string(id) }
