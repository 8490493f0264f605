// Package rng implements ports.RNGPort on math/rand.
package rng

import (
	"context"
	"math/rand"

	"gocnt/ports"
)

// Seeded derives each stream's seed from the run, stage and key names
// mixed into the base seed.
type Seeded struct{}

var _ ports.RNGPort = (*Seeded)(nil)

// NewSeeded returns a deterministic RNG port.
func NewSeeded() *Seeded {
	return &Seeded{}
}

// Stream returns the stream for one run, stage and key.
func (r *Seeded) Stream(ctx context.Context, runID, stageName, key string, baseSeed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed := baseSeed
	if runID != "" {
		seed += int64(djb2(runID))
	}
	if stageName != "" {
		seed += int64(djb2(stageName))
	}
	if key != "" {
		seed += int64(djb2(key)) << 20
	}
	return rand.New(rand.NewSource(seed)), nil
}

func djb2(s string) uint32 {
	var h uint32 = 5381
	for _, c := range s {
		h = h<<5 + h + uint32(c)
	}
	return h
}
