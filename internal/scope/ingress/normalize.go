// Package ingress turns raw transport readings into validated samples and
// hands them to the render task through a bounded queue.
//
// The intake goroutine is the only producer and the render goroutine the
// only consumer; neither ever touches the persistence field directly from
// here.
package ingress

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/sonarscope/internal/scope"
)

const twoPi = 2 * math.Pi

// WrapAngle reduces any finite angle into [0, 2π).
func WrapAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	// math.Mod of a tiny negative value can round back up to exactly 2π.
	if a >= twoPi {
		a = 0
	}
	return a
}

// Normalize validates raw and stamps it with now, which must come from a
// monotonic clock. Out-of-band angles are wrapped, not rejected. Intensity
// is clamped into [0, 1].
func Normalize(raw scope.RawReading, now time.Time) (scope.Sample, error) {
	if math.IsNaN(raw.Angle) || math.IsInf(raw.Angle, 0) {
		return scope.Sample{}, fmt.Errorf("%w: angle %v is not finite", scope.ErrInvalidReading, raw.Angle)
	}
	if math.IsNaN(raw.Distance) || math.IsInf(raw.Distance, 0) {
		return scope.Sample{}, fmt.Errorf("%w: distance %v is not finite", scope.ErrInvalidReading, raw.Distance)
	}
	if raw.Distance < 0 {
		return scope.Sample{}, fmt.Errorf("%w: negative distance %v", scope.ErrInvalidReading, raw.Distance)
	}

	s := scope.Sample{
		Angle:      WrapAngle(raw.Angle),
		Distance:   raw.Distance,
		CapturedAt: now,
	}
	if raw.HasIntensity {
		if math.IsNaN(raw.Intensity) || math.IsInf(raw.Intensity, 0) {
			return scope.Sample{}, fmt.Errorf("%w: intensity %v is not finite", scope.ErrInvalidReading, raw.Intensity)
		}
		s.HasIntensity = true
		s.Intensity = min(max(raw.Intensity, 0), 1)
	}
	return s, nil
}
