package scope

import "time"

// RawReading is a single (angle, distance[, intensity]) tuple as delivered by
// a transport. Angle is in radians and may be outside [0, 2π).
type RawReading struct {
	Angle        float64
	Distance     float64
	Intensity    float64
	HasIntensity bool
}

// Sample is a validated reading. Angle is in [0, 2π), Distance is finite and
// non-negative, Intensity (when present) is in [0, 1]. CapturedAt comes from
// a monotonic clock. Samples are passed by value and never mutated.
type Sample struct {
	Angle        float64
	Distance     float64
	Intensity    float64
	HasIntensity bool
	CapturedAt   time.Time
}

// Level is the brightness an accumulate call writes for this sample: the
// intensity when one was reported, otherwise full brightness.
func (s Sample) Level() float64 {
	if s.HasIntensity {
		return s.Intensity
	}
	return 1.0
}
