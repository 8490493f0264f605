package testkit

import (
	"context"
	"sync"

	"gocnt/domain/tract"
	"gocnt/ports"
)

// ScriptedTracker returns Yield(req) straight streamlines of Length steps
// per call and records every request it receives.
type ScriptedTracker struct {
	Yield  func(req ports.TrackRequest) int
	Length int

	mu    sync.Mutex
	calls []ports.TrackRequest
}

// RunTrack implements ports.Tracker
func (s *ScriptedTracker) RunTrack(ctx context.Context, req ports.TrackRequest) (tract.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	count := 0
	if s.Yield != nil {
		count = s.Yield(req)
	}
	out := make(tract.Set, count)
	for i := range out {
		out[i] = StraightStreamline(s.Length, float32(i))
	}
	return out, nil
}

// Calls returns a copy of the recorded requests.
func (s *ScriptedTracker) Calls() []ports.TrackRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.TrackRequest(nil), s.calls...)
}

// SeedCounts returns the distinct seed counts requested, in first-seen order.
func (s *ScriptedTracker) SeedCounts() []int {
	var out []int
	seen := map[int]bool{}
	for _, c := range s.Calls() {
		if !seen[c.SeedCount] {
			seen[c.SeedCount] = true
			out = append(out, c.SeedCount)
		}
	}
	return out
}

// StraightStreamline returns a streamline of length steps along x at height y.
func StraightStreamline(length int, y float32) tract.Streamline {
	s := make(tract.Streamline, 0, 3*(length+1))
	for i := 0; i <= length; i++ {
		s = append(s, float32(i), y, 0)
	}
	return s
}
