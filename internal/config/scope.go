package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/sonarscope/internal/scope"
	"github.com/banshee-data/sonarscope/internal/serialmux"
	"github.com/banshee-data/sonarscope/internal/units"
)

// ExampleConfigPath is the annotated example shipped with the repository.
const ExampleConfigPath = "config/scope.example.yaml"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// ScopeConfig is the on-disk and over-the-wire form of a display session.
// Every field is optional: unset fields fall back to the base config passed
// to ApplyTo, or to scope.DefaultDisplayConfig. The same schema is accepted
// by POST /api/config so a file can be pushed to a running scope.
type ScopeConfig struct {
	// Geometry
	MaxRange       *float64    `json:"max_range,omitempty" yaml:"max_range,omitempty"`
	ScalePxPerUnit *float64    `json:"scale_px_per_unit,omitempty" yaml:"scale_px_per_unit,omitempty"`
	AngleBuckets   *int        `json:"angle_buckets,omitempty" yaml:"angle_buckets,omitempty"`
	RangeBuckets   *int        `json:"range_buckets,omitempty" yaml:"range_buckets,omitempty"`
	Origin         *[2]float64 `json:"origin,omitempty" yaml:"origin,omitempty"`
	Units          *string     `json:"units,omitempty" yaml:"units,omitempty"` // ring label suffix: mm, cm, m, in, ft

	// Timing
	DecayHalfLife *string  `json:"decay_half_life,omitempty" yaml:"decay_half_life,omitempty"` // duration string like "3s"
	RefreshHz     *float64 `json:"refresh_hz,omitempty" yaml:"refresh_hz,omitempty"`
	DecayFloor    *float64 `json:"decay_floor,omitempty" yaml:"decay_floor,omitempty"`

	// Intake
	MaxSamplesPerTick *int `json:"max_samples_per_tick,omitempty" yaml:"max_samples_per_tick,omitempty"`
	QueueCapacity     *int `json:"queue_capacity,omitempty" yaml:"queue_capacity,omitempty"`

	// Overlay. An explicit empty rings list disables the rings.
	Rings             *[]float64   `json:"rings,omitempty" yaml:"rings,omitempty"`
	BearingSpacingDeg *float64     `json:"bearing_spacing_deg,omitempty" yaml:"bearing_spacing_deg,omitempty"`
	RingSegments      *int         `json:"ring_segments,omitempty" yaml:"ring_segments,omitempty"`
	ExclusionZones    []ZoneConfig `json:"exclusion_zones,omitempty" yaml:"exclusion_zones,omitempty"`

	// Sweep trail and rays
	SweepTrailLength *int     `json:"sweep_trail_length,omitempty" yaml:"sweep_trail_length,omitempty"`
	SweepTrailFade   *float64 `json:"sweep_trail_fade,omitempty" yaml:"sweep_trail_fade,omitempty"`
	ClearPathLines   *bool    `json:"clear_path_lines,omitempty" yaml:"clear_path_lines,omitempty"`
	ShadowLines      *bool    `json:"shadow_lines,omitempty" yaml:"shadow_lines,omitempty"`

	Palette *PaletteConfig         `json:"palette,omitempty" yaml:"palette,omitempty"`
	Serial  *serialmux.PortOptions `json:"serial,omitempty" yaml:"serial,omitempty"`
}

// ZoneConfig is an exclusion polygon in sensor units, listed as [x, y]
// vertices. The ring is closed automatically.
type ZoneConfig struct {
	Name   string       `json:"name,omitempty" yaml:"name,omitempty"`
	Points [][2]float64 `json:"points" yaml:"points"`
}

// PaletteConfig holds "#rrggbb" or "#rrggbbaa" colours. Empty entries keep
// the base palette.
type PaletteConfig struct {
	Blip      string `json:"blip,omitempty" yaml:"blip,omitempty"`
	Ring      string `json:"ring,omitempty" yaml:"ring,omitempty"`
	Bearing   string `json:"bearing,omitempty" yaml:"bearing,omitempty"`
	Sweep     string `json:"sweep,omitempty" yaml:"sweep,omitempty"`
	Exclusion string `json:"exclusion,omitempty" yaml:"exclusion,omitempty"`
	Text      string `json:"text,omitempty" yaml:"text,omitempty"`
}

func valueOr[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}

func ptr[T any](v T) *T { return &v }

// LoadScopeConfig reads a .json, .yaml or .yml file. Unknown keys are
// rejected so a typo doesn't silently fall back to a default.
func LoadScopeConfig(path string) (*ScopeConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg *ScopeConfig
	if ext == ".json" {
		cfg, err = ParseJSON(data)
	} else {
		cfg, err = ParseYAML(data)
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.ToDisplayConfig().Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ParseJSON decodes a ScopeConfig without validating it.
func ParseJSON(data []byte) (*ScopeConfig, error) {
	cfg := &ScopeConfig{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return cfg, nil
}

// ParseYAML decodes a ScopeConfig without validating it. An empty document
// yields an empty config.
func ParseYAML(data []byte) (*ScopeConfig, error) {
	cfg := &ScopeConfig{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields that can be checked without a base config:
// duration syntax, colours, zone shapes and serial options. Range checks on
// the merged result are left to scope.DisplayConfig.Validate.
func (c *ScopeConfig) Validate() error {
	if c.DecayHalfLife != nil {
		if _, err := time.ParseDuration(*c.DecayHalfLife); err != nil {
			return fmt.Errorf("invalid decay_half_life '%s': %w", *c.DecayHalfLife, err)
		}
	}

	if c.Units != nil && *c.Units != "" && !units.IsValid(*c.Units) {
		return fmt.Errorf("invalid units '%s': must be one of %s", *c.Units, units.GetValidUnitsString())
	}

	for i, z := range c.ExclusionZones {
		if len(z.Points) < 3 {
			return fmt.Errorf("exclusion zone %d (%s) needs at least 3 points, got %d", i, z.Name, len(z.Points))
		}
	}

	if c.Palette != nil {
		for name, v := range c.Palette.entries() {
			if v == "" {
				continue
			}
			if _, err := parseHexColor(v); err != nil {
				return fmt.Errorf("palette %s: %w", name, err)
			}
		}
	}

	if c.Serial != nil {
		if _, err := c.Serial.Normalise(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}
	return nil
}

// GetDecayHalfLife parses DecayHalfLife, returning fallback when it is unset
// or malformed.
func (c *ScopeConfig) GetDecayHalfLife(fallback time.Duration) time.Duration {
	if c.DecayHalfLife == nil || *c.DecayHalfLife == "" {
		return fallback
	}
	d, err := time.ParseDuration(*c.DecayHalfLife)
	if err != nil {
		return fallback
	}
	return d
}

// GetSerial returns the normalised serial options, or the defaults when the
// serial block is absent or invalid.
func (c *ScopeConfig) GetSerial() serialmux.PortOptions {
	var opts serialmux.PortOptions
	if c.Serial != nil {
		opts = *c.Serial
	}
	if n, err := opts.Normalise(); err == nil {
		return n
	}
	n, _ := serialmux.PortOptions{}.Normalise()
	return n
}

// ToDisplayConfig overlays the set fields on scope.DefaultDisplayConfig.
func (c *ScopeConfig) ToDisplayConfig() scope.DisplayConfig {
	return c.ApplyTo(scope.DefaultDisplayConfig())
}

// ApplyTo returns base with every set field replaced. base is not modified.
// When MaxRange is set and Rings is not, base's rings are scaled with the
// new range.
func (c *ScopeConfig) ApplyTo(base scope.DisplayConfig) scope.DisplayConfig {
	out := base.Clone()

	// A range given without rings keeps the rings in proportion.
	if c.MaxRange != nil && c.Rings == nil {
		out = out.WithRange(*c.MaxRange)
	}
	out.MaxRange = valueOr(c.MaxRange, out.MaxRange)
	out.ScalePxPerUnit = valueOr(c.ScalePxPerUnit, out.ScalePxPerUnit)
	out.AngleBucketCount = valueOr(c.AngleBuckets, out.AngleBucketCount)
	out.RangeBucketCount = valueOr(c.RangeBuckets, out.RangeBucketCount)
	if c.Origin != nil {
		out.Origin = orb.Point(*c.Origin)
	}
	out.Units = valueOr(c.Units, out.Units)

	out.DecayHalfLife = c.GetDecayHalfLife(out.DecayHalfLife)
	out.RefreshHz = valueOr(c.RefreshHz, out.RefreshHz)
	out.DecayFloor = valueOr(c.DecayFloor, out.DecayFloor)

	out.MaxSamplesPerTick = valueOr(c.MaxSamplesPerTick, out.MaxSamplesPerTick)
	out.QueueCapacity = valueOr(c.QueueCapacity, out.QueueCapacity)

	if c.Rings != nil {
		out.OverlayRings = append([]float64{}, (*c.Rings)...)
	}
	out.BearingSpacingDeg = valueOr(c.BearingSpacingDeg, out.BearingSpacingDeg)
	out.RingSegments = valueOr(c.RingSegments, out.RingSegments)
	if c.ExclusionZones != nil {
		out.ExclusionZones = make([]orb.Polygon, 0, len(c.ExclusionZones))
		for _, z := range c.ExclusionZones {
			out.ExclusionZones = append(out.ExclusionZones, z.Polygon())
		}
	}

	out.SweepTrailLength = valueOr(c.SweepTrailLength, out.SweepTrailLength)
	out.SweepTrailFade = valueOr(c.SweepTrailFade, out.SweepTrailFade)
	out.ClearPathLines = valueOr(c.ClearPathLines, out.ClearPathLines)
	out.ShadowLines = valueOr(c.ShadowLines, out.ShadowLines)

	if c.Palette != nil {
		c.Palette.applyTo(&out.Palette)
	}
	return out
}

// FromDisplayConfig returns a fully populated ScopeConfig describing cfg.
func FromDisplayConfig(cfg scope.DisplayConfig) *ScopeConfig {
	out := &ScopeConfig{
		MaxRange:          ptr(cfg.MaxRange),
		ScalePxPerUnit:    ptr(cfg.ScalePxPerUnit),
		AngleBuckets:      ptr(cfg.AngleBucketCount),
		RangeBuckets:      ptr(cfg.RangeBucketCount),
		Origin:            ptr([2]float64(cfg.Origin)),
		Units:             ptr(cfg.Units),
		DecayHalfLife:     ptr(cfg.DecayHalfLife.String()),
		RefreshHz:         ptr(cfg.RefreshHz),
		DecayFloor:        ptr(cfg.DecayFloor),
		MaxSamplesPerTick: ptr(cfg.MaxSamplesPerTick),
		QueueCapacity:     ptr(cfg.QueueCapacity),
		Rings:             ptr(append([]float64{}, cfg.OverlayRings...)),
		BearingSpacingDeg: ptr(cfg.BearingSpacingDeg),
		RingSegments:      ptr(cfg.RingSegments),
		SweepTrailLength:  ptr(cfg.SweepTrailLength),
		SweepTrailFade:    ptr(cfg.SweepTrailFade),
		ClearPathLines:    ptr(cfg.ClearPathLines),
		ShadowLines:       ptr(cfg.ShadowLines),
		Palette: &PaletteConfig{
			Blip:      formatHexColor(cfg.Palette.Blip),
			Ring:      formatHexColor(cfg.Palette.Ring),
			Bearing:   formatHexColor(cfg.Palette.Bearing),
			Sweep:     formatHexColor(cfg.Palette.Sweep),
			Exclusion: formatHexColor(cfg.Palette.Exclusion),
			Text:      formatHexColor(cfg.Palette.Text),
		},
	}
	for i, poly := range cfg.ExclusionZones {
		z := ZoneConfig{Name: "zone-" + strconv.Itoa(i+1)}
		outer := poly[0]
		if len(outer) > 1 && outer.Closed() {
			outer = outer[:len(outer)-1]
		}
		for _, p := range outer {
			z.Points = append(z.Points, [2]float64(p))
		}
		out.ExclusionZones = append(out.ExclusionZones, z)
	}
	return out
}

// Polygon returns the zone as a closed single-ring polygon.
func (z ZoneConfig) Polygon() orb.Polygon {
	ring := make(orb.Ring, 0, len(z.Points)+1)
	for _, p := range z.Points {
		ring = append(ring, orb.Point(p))
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}
}

func (p *PaletteConfig) entries() map[string]string {
	return map[string]string{
		"blip":      p.Blip,
		"ring":      p.Ring,
		"bearing":   p.Bearing,
		"sweep":     p.Sweep,
		"exclusion": p.Exclusion,
		"text":      p.Text,
	}
}

func (p *PaletteConfig) applyTo(dst *scope.Palette) {
	set := func(v string, c *color.RGBA) {
		if rgba, err := parseHexColor(v); v != "" && err == nil {
			*c = rgba
		}
	}
	set(p.Blip, &dst.Blip)
	set(p.Ring, &dst.Ring)
	set(p.Bearing, &dst.Bearing)
	set(p.Sweep, &dst.Sweep)
	set(p.Exclusion, &dst.Exclusion)
	set(p.Text, &dst.Text)
}

func parseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("colour %q must be #rrggbb or #rrggbbaa", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("colour %q: %w", s, err)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func formatHexColor(c color.RGBA) string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
