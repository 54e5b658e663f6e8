package monitoring

import (
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// TickSummary describes recent render tick durations in milliseconds.
type TickSummary struct {
	Count     int     `json:"count"`
	MeanMs    float64 `json:"mean_ms"`
	StdDevMs  float64 `json:"stddev_ms"`
	P95Ms     float64 `json:"p95_ms"`
	MaxMs     float64 `json:"max_ms"`
	LateTicks uint64  `json:"late_ticks"`
	Frames    uint64  `json:"frames"`
}

// TickStats keeps a fixed-size window of tick durations. Observe is called
// from the render goroutine; Summary may be called from anywhere.
type TickStats struct {
	mu     sync.Mutex
	window []float64
	next   int
	filled bool
	late   uint64
	frames uint64
}

// NewTickStats returns stats over the most recent size ticks.
func NewTickStats(size int) *TickStats {
	if size <= 0 {
		size = 256
	}
	return &TickStats{window: make([]float64, size)}
}

// Observe records one tick's duration. late marks a tick that overran its
// period.
func (s *TickStats) Observe(d time.Duration, late bool) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.window[s.next] = float64(d) / float64(time.Millisecond)
	s.next++
	if s.next == len(s.window) {
		s.next = 0
		s.filled = true
	}
	s.frames++
	if late {
		s.late++
	}
}

// MarkLate counts a tick that was skipped because the previous one overran.
func (s *TickStats) MarkLate() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.late++
	s.mu.Unlock()
}

// Late returns the number of late ticks so far.
func (s *TickStats) Late() uint64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.late
}

// Summary returns mean, standard deviation, 95th percentile and max over the
// window.
func (s *TickStats) Summary() TickSummary {
	if s == nil {
		return TickSummary{}
	}
	s.mu.Lock()
	n := s.next
	if s.filled {
		n = len(s.window)
	}
	xs := slices.Clone(s.window[:n])
	out := TickSummary{Count: n, LateTicks: s.late, Frames: s.frames}
	s.mu.Unlock()

	if n == 0 {
		return out
	}
	slices.Sort(xs)
	out.MeanMs = stat.Mean(xs, nil)
	if n > 1 {
		out.StdDevMs = stat.StdDev(xs, nil)
	}
	out.P95Ms = stat.Quantile(0.95, stat.Empirical, xs, nil)
	out.MaxMs = xs[n-1]
	return out
}
