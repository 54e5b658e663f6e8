// Package overlay builds the static display geometry drawn with the decay
// field: range rings, bearing lines and exclusion zones. Geometry depends
// only on the config, so a Layer caches it between frames.
package overlay

import (
	"image/color"
	"math"
	"strconv"
	"sync"

	"github.com/paulmach/orb"

	"github.com/banshee-data/sonarscope/internal/monitoring"
	"github.com/banshee-data/sonarscope/internal/scope"
	"github.com/banshee-data/sonarscope/internal/scope/projection"
	"github.com/banshee-data/sonarscope/internal/units"
)

// Z orders a primitive relative to the decay field.
type Z int

const (
	// Below is drawn before the blips.
	Below Z = iota
	// Above is drawn after the blips.
	Above
)

const defaultRingSegments = 90

// Label is a text annotation anchored in display space.
type Label struct {
	Text string
	At   orb.Point
}

// Ring is a range ring.
type Ring struct {
	Radius float64 // sensor units
	Path   orb.Ring
	Label  Label
	Color  color.RGBA
	Z      Z
}

// Bearing is a radial grid line.
type Bearing struct {
	Degrees float64
	Line    orb.LineString
	Label   Label
	Color   color.RGBA
	Z       Z
}

// Zone is an exclusion polygon in display space.
type Zone struct {
	Index   int
	Polygon orb.Polygon
	Bound   orb.Bound
	Color   color.RGBA
	Z       Z
}

// Geometry is the full overlay for one config. It is shared between frames
// and must be treated as read-only.
type Geometry struct {
	Rings    []Ring
	Bearings []Bearing
	Zones    []Zone
}

// Build computes the overlay for cfg.
func Build(cfg scope.DisplayConfig) *Geometry {
	g := &Geometry{}

	segments := cfg.RingSegments
	if segments == 0 {
		segments = defaultRingSegments
	}
	segments = max(segments, 3)

	outer := cfg.MaxRange
	for _, r := range cfg.OverlayRings {
		g.Rings = append(g.Rings, Ring{
			Radius: r,
			Path:   circle(cfg, r, segments),
			Label:  Label{Text: units.Label(r, cfg.Units), At: projection.ToDisplay(cfg, 0, r)},
			Color:  cfg.Palette.Ring,
			Z:      Below,
		})
	}
	if n := len(cfg.OverlayRings); n > 0 {
		outer = cfg.OverlayRings[n-1]
	}

	if cfg.BearingSpacingDeg > 0 {
		for deg := 0.0; deg < 360-1e-9; deg += cfg.BearingSpacingDeg {
			rad := deg * math.Pi / 180
			end := projection.ToDisplay(cfg, rad, outer)
			g.Bearings = append(g.Bearings, Bearing{
				Degrees: deg,
				Line:    orb.LineString{cfg.Origin, end},
				Label:   Label{Text: strconv.FormatFloat(deg, 'f', -1, 64) + "°", At: end},
				Color:   cfg.Palette.Bearing,
				Z:       Below,
			})
		}
	}

	for i, zone := range cfg.ExclusionZones {
		poly := make(orb.Polygon, len(zone))
		for j, ring := range zone {
			out := make(orb.Ring, len(ring))
			for k, p := range ring {
				out[k] = projection.SensorToDisplay(cfg, p)
			}
			poly[j] = out
		}
		g.Zones = append(g.Zones, Zone{
			Index:   i,
			Polygon: poly,
			Bound:   poly.Bound(),
			Color:   cfg.Palette.Exclusion,
			Z:       Above,
		})
	}
	return g
}

func circle(cfg scope.DisplayConfig, radius float64, segments int) orb.Ring {
	ring := make(orb.Ring, 0, segments+1)
	for i := 0; i < segments; i++ {
		a := 2 * math.Pi * float64(i) / float64(segments)
		ring = append(ring, projection.ToDisplay(cfg, a, radius))
	}
	return append(ring, ring[0])
}

// Layer caches the geometry for the most recent config it was asked about.
type Layer struct {
	mu     sync.Mutex
	cfg    scope.DisplayConfig
	cached *Geometry
	builds int
}

// NewLayer returns an empty layer.
func NewLayer() *Layer { return &Layer{} }

// Compose returns the overlay for cfg, rebuilding only when cfg differs from
// the config the cached geometry was built for.
func (l *Layer) Compose(cfg scope.DisplayConfig) *Geometry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil && l.cfg.Equal(cfg) {
		return l.cached
	}
	l.cfg = cfg.Clone()
	l.cached = Build(l.cfg)
	l.builds++
	monitoring.Logf("[Overlay] rebuilt rings=%d bearings=%d zones=%d",
		len(l.cached.Rings), len(l.cached.Bearings), len(l.cached.Zones))
	return l.cached
}

// Builds returns how many times geometry has been computed.
func (l *Layer) Builds() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.builds
}
