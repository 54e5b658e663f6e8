package scope

import (
	"fmt"
	"image/color"
	"math"
	"slices"
	"time"

	"github.com/paulmach/orb"

	"github.com/banshee-data/sonarscope/internal/units"
)

// MaxCells bounds the dense field allocation (angle buckets × range buckets).
const MaxCells = 1 << 22

// Bounds on the tick period derived from RefreshHz.
const (
	MinRefreshPeriod = time.Millisecond
	MaxRefreshPeriod = time.Hour
)

// Palette holds the colours the viewers use for each layer.
type Palette struct {
	Blip      color.RGBA
	Ring      color.RGBA
	Bearing   color.RGBA
	Sweep     color.RGBA
	Exclusion color.RGBA
	Text      color.RGBA
}

// DisplayConfig is the per-session configuration consumed by every stage of
// the pipeline. It is treated as an immutable value: callers replace it
// wholesale through the scheduler's Reconfigure rather than editing fields
// of a live config.
type DisplayConfig struct {
	// Geometry
	MaxRange         float64 // sensor units (the original tool used cm)
	ScalePxPerUnit   float64
	AngleBucketCount int
	RangeBucketCount int
	Origin           orb.Point // display-space position of the sensor
	Units            string    // label suffix for ring radii, "" for none

	// Timing
	DecayHalfLife time.Duration
	RefreshHz     float64
	DecayFloor    float64 // brightness below this is treated as zero

	// Intake
	MaxSamplesPerTick int // above this a tick's batch is coalesced per bucket; 0 disables
	QueueCapacity     int // pending samples held between ticks

	// Overlay
	OverlayRings      []float64     // ring radii in sensor units, ascending
	ExclusionZones    []orb.Polygon // sensor-frame polygons in sensor units
	BearingSpacingDeg float64       // 0 disables bearing lines
	RingSegments      int

	// Sweep trail and rays
	SweepTrailLength int
	SweepTrailFade   float64
	ClearPathLines   bool // origin to contact
	ShadowLines      bool // contact to max range

	Palette Palette
}

// DefaultDisplayConfig returns the layout of the original sonar display:
// 100 unit range drawn at 4 px/unit, four rings, a 30° bearing grid and a
// ten line scan trail.
func DefaultDisplayConfig() DisplayConfig {
	return DisplayConfig{
		MaxRange:          100,
		ScalePxPerUnit:    4,
		AngleBucketCount:  360,
		RangeBucketCount:  200,
		DecayHalfLife:     3 * time.Second,
		RefreshHz:         30,
		DecayFloor:        1e-3,
		MaxSamplesPerTick: 2048,
		QueueCapacity:     3 * 2048,
		OverlayRings:      []float64{25, 50, 75, 100},
		BearingSpacingDeg: 30,
		RingSegments:      90,
		SweepTrailLength:  10,
		SweepTrailFade:    0.8,
		ClearPathLines:    true,
		ShadowLines:       true,
		Palette: Palette{
			Blip:      color.RGBA{R: 255, G: 77, B: 0, A: 255},
			Ring:      color.RGBA{R: 200, G: 22, B: 0, A: 255},
			Bearing:   color.RGBA{R: 200, G: 22, B: 0, A: 160},
			Sweep:     color.RGBA{R: 255, G: 77, B: 0, A: 255},
			Exclusion: color.RGBA{R: 200, G: 0, B: 200, A: 128},
			Text:      color.RGBA{R: 200, G: 22, B: 0, A: 255},
		},
	}
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Validate reports the first problem with the configuration. Every error
// wraps ErrInvalidConfig.
func (c DisplayConfig) Validate() error {
	if !finitePositive(c.MaxRange) {
		return fmt.Errorf("%w: max range must be positive, got %v", ErrInvalidConfig, c.MaxRange)
	}
	if !finitePositive(c.ScalePxPerUnit) {
		return fmt.Errorf("%w: scale must be positive, got %v", ErrInvalidConfig, c.ScalePxPerUnit)
	}
	if c.DecayHalfLife <= 0 {
		return fmt.Errorf("%w: decay half-life must be positive, got %v", ErrInvalidConfig, c.DecayHalfLife)
	}
	if !finitePositive(c.RefreshHz) {
		return fmt.Errorf("%w: refresh rate must be positive, got %v", ErrInvalidConfig, c.RefreshHz)
	}
	if p := float64(time.Second) / c.RefreshHz; p < float64(MinRefreshPeriod) || p > float64(MaxRefreshPeriod) {
		return fmt.Errorf("%w: refresh rate %v Hz gives a period outside [%v, %v]",
			ErrInvalidConfig, c.RefreshHz, MinRefreshPeriod, MaxRefreshPeriod)
	}
	if c.Units != "" && !units.IsValid(c.Units) {
		return fmt.Errorf("%w: units %q must be one of %s", ErrInvalidConfig, c.Units, units.GetValidUnitsString())
	}
	if c.AngleBucketCount < 1 || c.RangeBucketCount < 1 {
		return fmt.Errorf("%w: bucket counts must be at least 1, got %d x %d",
			ErrInvalidConfig, c.AngleBucketCount, c.RangeBucketCount)
	}
	if int64(c.AngleBucketCount)*int64(c.RangeBucketCount) > MaxCells {
		return fmt.Errorf("%w: %d x %d buckets exceeds %d cells",
			ErrInvalidConfig, c.AngleBucketCount, c.RangeBucketCount, MaxCells)
	}
	if c.DecayFloor < 0 || c.DecayFloor >= 1 || math.IsNaN(c.DecayFloor) {
		return fmt.Errorf("%w: decay floor must be in [0, 1), got %v", ErrInvalidConfig, c.DecayFloor)
	}
	if c.MaxSamplesPerTick < 0 {
		return fmt.Errorf("%w: max samples per tick must be non-negative, got %d", ErrInvalidConfig, c.MaxSamplesPerTick)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("%w: queue capacity must be at least 1, got %d", ErrInvalidConfig, c.QueueCapacity)
	}

	prev := 0.0
	for i, r := range c.OverlayRings {
		if !finitePositive(r) || r > c.MaxRange {
			return fmt.Errorf("%w: ring %d radius %v outside (0, %v]", ErrInvalidConfig, i, r, c.MaxRange)
		}
		if r <= prev {
			return fmt.Errorf("%w: ring radii must be strictly ascending (ring %d = %v)", ErrInvalidConfig, i, r)
		}
		prev = r
	}

	for i, zone := range c.ExclusionZones {
		if len(zone) == 0 || len(zone[0]) < 3 {
			return fmt.Errorf("%w: exclusion zone %d needs an outer ring of at least 3 points", ErrInvalidConfig, i)
		}
	}

	if c.BearingSpacingDeg < 0 || c.BearingSpacingDeg > 360 || math.IsNaN(c.BearingSpacingDeg) {
		return fmt.Errorf("%w: bearing spacing must be in [0, 360], got %v", ErrInvalidConfig, c.BearingSpacingDeg)
	}
	if c.RingSegments < 0 {
		return fmt.Errorf("%w: ring segments must be non-negative, got %d", ErrInvalidConfig, c.RingSegments)
	}
	if c.SweepTrailLength < 0 {
		return fmt.Errorf("%w: sweep trail length must be non-negative, got %d", ErrInvalidConfig, c.SweepTrailLength)
	}
	if c.SweepTrailFade < 0 || c.SweepTrailFade > 1 || math.IsNaN(c.SweepTrailFade) {
		return fmt.Errorf("%w: sweep trail fade must be in [0, 1], got %v", ErrInvalidConfig, c.SweepTrailFade)
	}
	return nil
}

// AngleBucketWidth is the angular size of one bucket in radians.
func (c DisplayConfig) AngleBucketWidth() float64 {
	return 2 * math.Pi / float64(c.AngleBucketCount)
}

// RangeResolution is the radial size of one bucket in sensor units.
func (c DisplayConfig) RangeResolution() float64 {
	return c.MaxRange / float64(c.RangeBucketCount)
}

// RefreshPeriod is the scheduler tick period, clamped to
// [MinRefreshPeriod, MaxRefreshPeriod] so a ticker can always be built from it.
func (c DisplayConfig) RefreshPeriod() time.Duration {
	p := float64(time.Second) / c.RefreshHz
	switch {
	case math.IsNaN(p) || p < float64(MinRefreshPeriod):
		return MinRefreshPeriod
	case p > float64(MaxRefreshPeriod):
		return MaxRefreshPeriod
	}
	return time.Duration(p)
}

// WithRange returns a copy with MaxRange set to r and every overlay ring kept
// at the same fraction of the range. A non-positive r is set as is and left
// for Validate to reject.
func (c DisplayConfig) WithRange(r float64) DisplayConfig {
	out := c.Clone()
	if finitePositive(r) && finitePositive(c.MaxRange) {
		ratio := r / c.MaxRange
		for i := range out.OverlayRings {
			out.OverlayRings[i] *= ratio
		}
	}
	out.MaxRange = r
	return out
}

// Clone returns a deep copy so the caller's slices can't alias a live config.
func (c DisplayConfig) Clone() DisplayConfig {
	out := c
	out.OverlayRings = slices.Clone(c.OverlayRings)
	if c.ExclusionZones != nil {
		out.ExclusionZones = make([]orb.Polygon, len(c.ExclusionZones))
		for i, p := range c.ExclusionZones {
			out.ExclusionZones[i] = p.Clone()
		}
	}
	return out
}

// SameGeometry reports whether two configs share bucket geometry. A field
// built for one can only be reused by the other when this holds.
func (c DisplayConfig) SameGeometry(o DisplayConfig) bool {
	return c.MaxRange == o.MaxRange &&
		c.AngleBucketCount == o.AngleBucketCount &&
		c.RangeBucketCount == o.RangeBucketCount
}

// Equal reports whether two configs are identical, slices included.
func (c DisplayConfig) Equal(o DisplayConfig) bool {
	if !c.SameGeometry(o) ||
		c.ScalePxPerUnit != o.ScalePxPerUnit ||
		c.Origin != o.Origin ||
		c.Units != o.Units ||
		c.DecayHalfLife != o.DecayHalfLife ||
		c.RefreshHz != o.RefreshHz ||
		c.DecayFloor != o.DecayFloor ||
		c.MaxSamplesPerTick != o.MaxSamplesPerTick ||
		c.QueueCapacity != o.QueueCapacity ||
		c.BearingSpacingDeg != o.BearingSpacingDeg ||
		c.RingSegments != o.RingSegments ||
		c.SweepTrailLength != o.SweepTrailLength ||
		c.SweepTrailFade != o.SweepTrailFade ||
		c.ClearPathLines != o.ClearPathLines ||
		c.ShadowLines != o.ShadowLines ||
		c.Palette != o.Palette {
		return false
	}
	if !slices.Equal(c.OverlayRings, o.OverlayRings) {
		return false
	}
	return slices.EqualFunc(c.ExclusionZones, o.ExclusionZones, orb.Polygon.Equal)
}
