package config

import (
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/banshee-data/sonarscope/internal/scope"
	"github.com/banshee-data/sonarscope/internal/serialmux"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadScopeConfigJSON(t *testing.T) {
	path := writeConfig(t, "scope.json", `{
  "max_range": 250,
  "decay_half_life": "1500ms",
  "rings": [100, 200],
  "shadow_lines": false,
  "serial": {"baud_rate": 9600}
}`)

	cfg, err := LoadScopeConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	dc := cfg.ToDisplayConfig()
	if dc.MaxRange != 250 {
		t.Errorf("MaxRange = %v, want 250", dc.MaxRange)
	}
	if dc.DecayHalfLife != 1500*time.Millisecond {
		t.Errorf("DecayHalfLife = %v, want 1.5s", dc.DecayHalfLife)
	}
	if len(dc.OverlayRings) != 2 || dc.OverlayRings[1] != 200 {
		t.Errorf("OverlayRings = %v", dc.OverlayRings)
	}
	if dc.ShadowLines {
		t.Error("ShadowLines should be false")
	}
	if !dc.ClearPathLines {
		t.Error("ClearPathLines should keep its default")
	}
	if got := cfg.GetSerial().BaudRate; got != 9600 {
		t.Errorf("serial baud = %d, want 9600", got)
	}
}

func TestLoadScopeConfigYAML(t *testing.T) {
	path := writeConfig(t, "scope.yml", `
max_range: 120
rings: []
exclusion_zones:
  - name: bench
    points: [[0, 10], [10, 10], [10, 20]]
palette:
  blip: "#00ff0080"
`)

	cfg, err := LoadScopeConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	dc := cfg.ToDisplayConfig()
	if len(dc.OverlayRings) != 0 {
		t.Errorf("explicit empty rings should disable rings, got %v", dc.OverlayRings)
	}
	want := orb.Polygon{orb.Ring{{0, 10}, {10, 10}, {10, 20}, {0, 10}}}
	if len(dc.ExclusionZones) != 1 || !dc.ExclusionZones[0].Equal(want) {
		t.Errorf("ExclusionZones = %v, want %v", dc.ExclusionZones, want)
	}
	if dc.Palette.Blip != (color.RGBA{G: 0xff, A: 0x80}) {
		t.Errorf("Palette.Blip = %v", dc.Palette.Blip)
	}
	if dc.Palette.Ring != scope.DefaultDisplayConfig().Palette.Ring {
		t.Errorf("Palette.Ring should keep its default, got %v", dc.Palette.Ring)
	}
}

func TestLoadScopeConfigEmptyYAML(t *testing.T) {
	cfg, err := LoadScopeConfig(writeConfig(t, "empty.yaml", "# nothing set\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.ToDisplayConfig().Equal(scope.DefaultDisplayConfig()) {
		t.Error("empty config should produce the default display config")
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadScopeConfig(filepath.Join("..", "..", ExampleConfigPath))
	if err != nil {
		t.Fatalf("Failed to load example config: %v", err)
	}
	if err := cfg.ToDisplayConfig().Validate(); err != nil {
		t.Errorf("example config invalid: %v", err)
	}
}

func TestLoadScopeConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"bad json", "bad.json", `{"max_range": "far"`, "parse config JSON"},
		{"unknown key", "typo.json", `{"max_rnage": 10}`, "unknown field"},
		{"unknown yaml key", "typo.yaml", "max_rnage: 10\n", "not found"},
		{"bad duration", "dur.json", `{"decay_half_life": "soon"}`, "decay_half_life"},
		{"short zone", "zone.json", `{"exclusion_zones": [{"points": [[0,0],[1,1]]}]}`, "at least 3 points"},
		{"bad colour", "col.json", `{"palette": {"blip": "red"}}`, "palette blip"},
		{"bad serial", "ser.json", `{"serial": {"parity": "Q"}}`, "serial"},
		{"bad units", "units.yaml", "units: cubits\n", "units"},
		{"display invalid", "range.json", `{"max_range": -5}`, "invalid display config"},
		{"ring beyond range", "ring.yaml", "max_range: 10\nrings: [5, 20]\n", "ring 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScopeConfig(writeConfig(t, tt.file, tt.body))
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadScopeConfigMissing(t *testing.T) {
	if _, err := LoadScopeConfig("/nonexistent/path/to/scope.json"); err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadScopeConfigRejectsExtension(t *testing.T) {
	for _, p := range []string{"../../etc/passwd", "/some/path/scope.toml"} {
		if _, err := LoadScopeConfig(p); err == nil {
			t.Errorf("Expected error for %q, got nil", p)
		}
	}
}

func TestLoadScopeConfigRejectsLargeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "large.json")
	if err := os.WriteFile(path, make([]byte, 2*1024*1024), 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}
	if _, err := LoadScopeConfig(path); err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestApplyToKeepsBase(t *testing.T) {
	base := scope.DefaultDisplayConfig()
	base.MaxRange = 400
	base.OverlayRings = []float64{100, 400}

	cfg := &ScopeConfig{RefreshHz: ptr(10.0)}
	got := cfg.ApplyTo(base)
	if got.MaxRange != 400 || got.RefreshHz != 10 {
		t.Errorf("ApplyTo = range %v hz %v, want 400 and 10", got.MaxRange, got.RefreshHz)
	}
	got.OverlayRings[0] = 1
	if base.OverlayRings[0] != 100 {
		t.Error("ApplyTo result aliases the base rings")
	}
}

func TestApplyToRangeWithoutRingsScalesRings(t *testing.T) {
	base := scope.DefaultDisplayConfig()

	got := (&ScopeConfig{MaxRange: ptr(50.0)}).ApplyTo(base)
	want := []float64{12.5, 25, 37.5, 50}
	if got.MaxRange != 50 || !slices.Equal(got.OverlayRings, want) {
		t.Errorf("ApplyTo = range %v rings %v, want 50 and %v", got.MaxRange, got.OverlayRings, want)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("scaled config invalid: %v", err)
	}

	got = (&ScopeConfig{MaxRange: ptr(50.0), Rings: &[]float64{10}}).ApplyTo(base)
	if !slices.Equal(got.OverlayRings, []float64{10}) {
		t.Errorf("explicit rings = %v, want [10]", got.OverlayRings)
	}
	if !slices.Equal(base.OverlayRings, scope.DefaultDisplayConfig().OverlayRings) {
		t.Error("ApplyTo modified the base rings")
	}
}

func TestFromDisplayConfigRoundTrip(t *testing.T) {
	dc := scope.DefaultDisplayConfig()
	dc.Origin = orb.Point{10, -5}
	dc.Units = "in"
	dc.ExclusionZones = []orb.Polygon{{orb.Ring{{1, 1}, {2, 1}, {2, 2}, {1, 1}}}}
	dc.Palette.Exclusion = color.RGBA{R: 1, G: 2, B: 3, A: 4}

	sc := FromDisplayConfig(dc)
	if err := sc.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := sc.ApplyTo(scope.DisplayConfig{}); !got.Equal(dc) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, dc)
	}
}

func TestGetDecayHalfLife(t *testing.T) {
	tests := []struct {
		name string
		in   *string
		want time.Duration
	}{
		{"unset", nil, time.Second},
		{"empty", ptr(""), time.Second},
		{"set", ptr("250ms"), 250 * time.Millisecond},
		{"malformed", ptr("later"), time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &ScopeConfig{DecayHalfLife: tt.in}
			if got := cfg.GetDecayHalfLife(time.Second); got != tt.want {
				t.Errorf("GetDecayHalfLife() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSerialDefaults(t *testing.T) {
	want, _ := serialmux.PortOptions{}.Normalise()
	if got := (&ScopeConfig{}).GetSerial(); got != want {
		t.Errorf("GetSerial() = %+v, want %+v", got, want)
	}
	bad := &ScopeConfig{Serial: &serialmux.PortOptions{BaudRate: 7}}
	if got := bad.GetSerial(); got != want {
		t.Errorf("GetSerial() with invalid options = %+v, want defaults", got)
	}
}
