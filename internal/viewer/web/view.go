package web

import (
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/banshee-data/sonarscope/internal/scope/overlay"
	"github.com/banshee-data/sonarscope/internal/scope/render"
	"github.com/banshee-data/sonarscope/internal/units"
)

// FrameView is the JSON form of a frame served on /api/frame. Angles are in
// degrees; positions are display space.
type FrameView struct {
	Seq       uint64            `json:"seq"`
	SessionID string            `json:"session_id"`
	At        time.Time         `json:"at"`
	MaxRange  float64           `json:"max_range"`
	Units     string            `json:"units,omitempty"`
	MaxRangeM float64           `json:"max_range_m,omitempty"`
	Scale     float64           `json:"scale_px_per_unit"`
	Origin    orb.Point         `json:"origin"`
	Points    []PointView       `json:"points"`
	Rays      []RayView         `json:"rays,omitempty"`
	Sweep     []SweepView       `json:"sweep,omitempty"`
	Stats     render.FrameStats `json:"stats"`
}

type PointView struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Brightness  float64 `json:"brightness"`
	AngleDeg    float64 `json:"angle_deg"`
	Distance    float64 `json:"distance"`
	InExclusion bool    `json:"in_exclusion,omitempty"`
}

type RayView struct {
	Kind       string    `json:"kind"`
	From       orb.Point `json:"from"`
	To         orb.Point `json:"to"`
	Brightness float64   `json:"brightness"`
}

type SweepView struct {
	AngleDeg   float64   `json:"angle_deg"`
	To         orb.Point `json:"to"`
	Brightness float64   `json:"brightness"`
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// NewFrameView converts f. Points is never nil so clients always see an array.
func NewFrameView(f render.Frame) FrameView {
	v := FrameView{
		Seq:       f.Seq,
		SessionID: f.SessionID,
		At:        f.At,
		MaxRange:  f.Config.MaxRange,
		Units:     f.Config.Units,
		Scale:     f.Config.ScalePxPerUnit,
		Origin:    f.Config.Origin,
		Points:    make([]PointView, 0, len(f.Points)),
		Stats:     f.Stats,
	}
	if f.Config.Units != "" {
		v.MaxRangeM = units.ToMetres(f.Config.MaxRange, f.Config.Units)
	}
	for _, p := range f.Points {
		v.Points = append(v.Points, PointView{
			X: p.X, Y: p.Y,
			Brightness:  p.Brightness,
			AngleDeg:    degrees(p.Angle),
			Distance:    p.Distance,
			InExclusion: p.InExclusion,
		})
	}
	for _, r := range f.Rays {
		v.Rays = append(v.Rays, RayView{Kind: r.Kind.String(), From: r.From, To: r.To, Brightness: r.Brightness})
	}
	for _, s := range f.Sweep {
		v.Sweep = append(v.Sweep, SweepView{AngleDeg: degrees(s.Angle), To: s.To, Brightness: s.Brightness})
	}
	return v
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// OverlayGeoJSON renders the overlay as a FeatureCollection in display
// space. Each feature carries "kind", "z" and "color" properties.
func OverlayGeoJSON(g *overlay.Geometry) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if g == nil {
		return fc
	}
	z := func(v overlay.Z) string {
		if v == overlay.Above {
			return "above"
		}
		return "below"
	}
	for _, r := range g.Rings {
		f := geojson.NewFeature(orb.LineString(r.Path))
		f.Properties["kind"] = "ring"
		f.Properties["radius"] = r.Radius
		f.Properties["label"] = r.Label.Text
		f.Properties["z"] = z(r.Z)
		f.Properties["color"] = hexColor(r.Color)
		fc.Append(f)
	}
	for _, b := range g.Bearings {
		f := geojson.NewFeature(b.Line)
		f.Properties["kind"] = "bearing"
		f.Properties["degrees"] = b.Degrees
		f.Properties["label"] = b.Label.Text
		f.Properties["z"] = z(b.Z)
		f.Properties["color"] = hexColor(b.Color)
		fc.Append(f)
	}
	for _, zone := range g.Zones {
		f := geojson.NewFeature(zone.Polygon)
		f.Properties["kind"] = "exclusion"
		f.Properties["index"] = zone.Index
		f.Properties["z"] = z(zone.Z)
		f.Properties["color"] = hexColor(zone.Color)
		f.BBox = geojson.NewBBox(zone.Bound)
		fc.Append(f)
	}
	return fc
}
