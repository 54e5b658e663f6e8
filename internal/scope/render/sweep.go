package render

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/banshee-data/sonarscope/internal/scope"
	"github.com/banshee-data/sonarscope/internal/scope/projection"
)

// SweepLine is one line of the scan trail.
type SweepLine struct {
	Angle      float64
	From, To   orb.Point
	Brightness float64
}

// SweepTracker remembers the most recent distinct bearings the sensor
// reported, newest first.
type SweepTracker struct {
	buckets int
	limit   int
	recent  []int // angle bucket indices, newest first
}

// NewSweepTracker sizes a tracker for cfg.
func NewSweepTracker(cfg scope.DisplayConfig) *SweepTracker {
	return &SweepTracker{
		buckets: cfg.AngleBucketCount,
		limit:   cfg.SweepTrailLength,
		recent:  make([]int, 0, cfg.SweepTrailLength),
	}
}

// Observe records the bearing of one sample. Repeated readings on the
// current bearing do not push the trail along.
func (t *SweepTracker) Observe(angle float64) {
	if t.limit == 0 {
		return
	}
	b := int(math.Floor(angle * float64(t.buckets) / (2 * math.Pi)))
	b = min(max(b, 0), t.buckets-1)
	if len(t.recent) > 0 && t.recent[0] == b {
		return
	}
	if len(t.recent) < t.limit {
		t.recent = append(t.recent, 0)
	}
	copy(t.recent[1:], t.recent[:len(t.recent)-1])
	t.recent[0] = b
}

// Lines returns the trail from newest to oldest. The newest line is at full
// brightness and each older one is dimmed by cfg.SweepTrailFade.
func (t *SweepTracker) Lines(cfg scope.DisplayConfig) []SweepLine {
	if len(t.recent) == 0 {
		return nil
	}
	out := make([]SweepLine, 0, len(t.recent))
	level := 1.0
	for _, b := range t.recent {
		angle := float64(b) * 2 * math.Pi / float64(t.buckets)
		out = append(out, SweepLine{
			Angle:      angle,
			From:       cfg.Origin,
			To:         projection.ToDisplay(cfg, angle, cfg.MaxRange),
			Brightness: level,
		})
		level *= cfg.SweepTrailFade
	}
	return out
}
