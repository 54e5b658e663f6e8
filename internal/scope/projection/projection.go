// Package projection maps field snapshots into display space. Everything here
// is a pure function of its inputs.
package projection

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/banshee-data/sonarscope/internal/scope"
	"github.com/banshee-data/sonarscope/internal/scope/field"
)

// DisplayPoint is one lit bucket in display coordinates. Y grows with the
// sine of the bearing; viewers flip it if their screen y axis points down.
type DisplayPoint struct {
	X, Y       float64
	Brightness float64
	Angle      float64 // anchor bearing, radians
	Distance   float64 // anchor range, sensor units
	Bucket     field.Bucket
	// InExclusion marks points inside a configured exclusion zone.
	InExclusion bool
}

// RayKind distinguishes the two supplemental line types.
type RayKind int

const (
	// ClearPath runs from the sensor to a contact.
	ClearPath RayKind = iota
	// Shadow runs from a contact out to max range.
	Shadow
)

func (k RayKind) String() string {
	if k == Shadow {
		return "shadow"
	}
	return "clear_path"
}

// Ray is a line segment tied to one contact.
type Ray struct {
	Kind       RayKind
	From, To   orb.Point
	Brightness float64
}

// ToDisplay converts a polar position in sensor units into display space.
func ToDisplay(cfg scope.DisplayConfig, angle, distance float64) orb.Point {
	r := distance * cfg.ScalePxPerUnit
	return orb.Point{
		cfg.Origin[0] + r*math.Cos(angle),
		cfg.Origin[1] + r*math.Sin(angle),
	}
}

// SensorToDisplay converts a sensor-frame cartesian point (sensor units)
// into display space.
func SensorToDisplay(cfg scope.DisplayConfig, p orb.Point) orb.Point {
	return orb.Point{
		cfg.Origin[0] + p[0]*cfg.ScalePxPerUnit,
		cfg.Origin[1] + p[1]*cfg.ScalePxPerUnit,
	}
}

// InExclusion reports whether a sensor-frame point lies inside any of the
// configured exclusion zones.
func InExclusion(cfg scope.DisplayConfig, p orb.Point) bool {
	for _, zone := range cfg.ExclusionZones {
		if planar.PolygonContains(zone, p) {
			return true
		}
	}
	return false
}

// Project converts every lit cell in snap into a DisplayPoint, preserving
// snapshot order. Bucket positions come from the snapshot's own geometry;
// scale, origin and zones come from cfg.
func Project(snap field.Snapshot, cfg scope.DisplayConfig) []DisplayPoint {
	if len(snap.Cells) == 0 {
		return nil
	}
	out := make([]DisplayPoint, 0, len(snap.Cells))
	for _, c := range snap.Cells {
		angle, dist := snap.Geometry.Anchor(c.Bucket)
		p := ToDisplay(cfg, angle, dist)
		sensor := orb.Point{dist * math.Cos(angle), dist * math.Sin(angle)}
		out = append(out, DisplayPoint{
			X:           p[0],
			Y:           p[1],
			Brightness:  c.Brightness,
			Angle:       angle,
			Distance:    dist,
			Bucket:      c.Bucket,
			InExclusion: len(cfg.ExclusionZones) > 0 && InExclusion(cfg, sensor),
		})
	}
	return out
}

// Rays builds the clear-path and shadow lines for points, in point order,
// for whichever kinds cfg enables.
func Rays(points []DisplayPoint, cfg scope.DisplayConfig) []Ray {
	if len(points) == 0 || (!cfg.ClearPathLines && !cfg.ShadowLines) {
		return nil
	}
	n := 0
	if cfg.ClearPathLines {
		n += len(points)
	}
	if cfg.ShadowLines {
		n += len(points)
	}

	out := make([]Ray, 0, n)
	origin := cfg.Origin
	for _, p := range points {
		at := orb.Point{p.X, p.Y}
		if cfg.ClearPathLines {
			out = append(out, Ray{Kind: ClearPath, From: origin, To: at, Brightness: p.Brightness})
		}
		if cfg.ShadowLines {
			edge := ToDisplay(cfg, p.Angle, cfg.MaxRange)
			out = append(out, Ray{Kind: Shadow, From: at, To: edge, Brightness: p.Brightness})
		}
	}
	return out
}
