// Package field holds the phosphor persistence buffer: a polar grid of
// brightness cells that samples light up and that fades once per render tick.
//
// A Field is owned by exactly one goroutine (the render scheduler). It has
// no locks; concurrent intake goes through ingress.Queue instead.
package field

import (
	"fmt"
	"math"

	"github.com/banshee-data/sonarscope/internal/scope"
)

// Bucket addresses one cell by quantised angle and range.
type Bucket struct {
	Angle int
	Range int
}

func (b Bucket) String() string { return fmt.Sprintf("(%d,%d)", b.Angle, b.Range) }

// Geometry is the bucket layout a field was built for. Two fields with
// different geometry are never merged.
type Geometry struct {
	AngleBuckets int
	RangeBuckets int
	MaxRange     float64
}

// GeometryOf derives the bucket layout from a config.
func GeometryOf(cfg scope.DisplayConfig) Geometry {
	return Geometry{
		AngleBuckets: cfg.AngleBucketCount,
		RangeBuckets: cfg.RangeBucketCount,
		MaxRange:     cfg.MaxRange,
	}
}

// Cells is the total number of buckets.
func (g Geometry) Cells() int { return g.AngleBuckets * g.RangeBuckets }

// Index flattens b into the dense cell slice (angle-major).
func (g Geometry) Index(b Bucket) int { return b.Angle*g.RangeBuckets + b.Range }

// BucketAt is the inverse of Index.
func (g Geometry) BucketAt(idx int) Bucket {
	return Bucket{Angle: idx / g.RangeBuckets, Range: idx % g.RangeBuckets}
}

// Locate quantises a normalised polar reading. It reports false when
// distance is beyond MaxRange. A distance exactly at MaxRange falls into the
// outermost bucket.
func (g Geometry) Locate(angle, distance float64) (Bucket, bool) {
	if distance > g.MaxRange || distance < 0 {
		return Bucket{}, false
	}

	// distance·N/max keeps whole-resolution distances exact, which
	// distance/(max/N) does not (5/0.1 != 50 in floating point).
	r := int(math.Floor(distance * float64(g.RangeBuckets) / g.MaxRange))
	if r >= g.RangeBuckets {
		r = g.RangeBuckets - 1
	}

	a := int(math.Floor(angle * float64(g.AngleBuckets) / (2 * math.Pi)))
	switch {
	case a < 0:
		a = 0
	case a >= g.AngleBuckets:
		a = g.AngleBuckets - 1
	}
	return Bucket{Angle: a, Range: r}, true
}

// Anchor returns the polar coordinate a bucket is drawn at: the lower edge
// of its angle and range interval, so a reading on an exact bucket boundary
// is drawn exactly where it was measured.
func (g Geometry) Anchor(b Bucket) (angle, distance float64) {
	angle = float64(b.Angle) * 2 * math.Pi / float64(g.AngleBuckets)
	distance = float64(b.Range) * g.MaxRange / float64(g.RangeBuckets)
	return angle, distance
}
