package scope

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

func TestDefaultDisplayConfig_Valid(t *testing.T) {
	cfg := DefaultDisplayConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if got := cfg.RefreshPeriod(); got != time.Second/30 {
		t.Errorf("RefreshPeriod() = %v, want %v", got, time.Second/30)
	}
}

func TestDisplayConfig_RefreshPeriodClamped(t *testing.T) {
	tests := []struct {
		hz   float64
		want time.Duration
	}{
		{30, time.Second / 30},
		{2e9, MinRefreshPeriod},
		{1e-300, MaxRefreshPeriod},
		{0, MaxRefreshPeriod},
		{math.NaN(), MinRefreshPeriod},
	}
	for _, tt := range tests {
		cfg := DefaultDisplayConfig()
		cfg.RefreshHz = tt.hz
		if got := cfg.RefreshPeriod(); got != tt.want {
			t.Errorf("RefreshHz %v: RefreshPeriod() = %v, want %v", tt.hz, got, tt.want)
		}
	}
}

func TestDisplayConfig_Validate(t *testing.T) {
	square := orb.Polygon{orb.Ring{{1, 1}, {2, 1}, {2, 2}, {1, 2}, {1, 1}}}

	tests := []struct {
		name   string
		mutate func(*DisplayConfig)
		ok     bool
	}{
		{"defaults", func(c *DisplayConfig) {}, true},
		{"zero range", func(c *DisplayConfig) { c.MaxRange = 0 }, false},
		{"negative range", func(c *DisplayConfig) { c.MaxRange = -5 }, false},
		{"infinite range", func(c *DisplayConfig) { c.MaxRange = math.Inf(1) }, false},
		{"zero scale", func(c *DisplayConfig) { c.ScalePxPerUnit = 0 }, false},
		{"NaN scale", func(c *DisplayConfig) { c.ScalePxPerUnit = math.NaN() }, false},
		{"zero half-life", func(c *DisplayConfig) { c.DecayHalfLife = 0 }, false},
		{"zero refresh", func(c *DisplayConfig) { c.RefreshHz = 0 }, false},
		{"refresh faster than 1ms", func(c *DisplayConfig) { c.RefreshHz = 2e9 }, false},
		{"refresh slower than 1h", func(c *DisplayConfig) { c.RefreshHz = 1e-300 }, false},
		{"refresh at 1kHz", func(c *DisplayConfig) { c.RefreshHz = 1000 }, true},
		{"refresh every half hour", func(c *DisplayConfig) { c.RefreshHz = 1.0 / 1800 }, true},
		{"known units", func(c *DisplayConfig) { c.Units = "cm" }, true},
		{"unknown units", func(c *DisplayConfig) { c.Units = "parsec" }, false},
		{"zero angle buckets", func(c *DisplayConfig) { c.AngleBucketCount = 0 }, false},
		{"zero range buckets", func(c *DisplayConfig) { c.RangeBucketCount = 0 }, false},
		{"too many cells", func(c *DisplayConfig) { c.AngleBucketCount = 7200; c.RangeBucketCount = 1000 }, false},
		{"floor of one", func(c *DisplayConfig) { c.DecayFloor = 1 }, false},
		{"zero floor", func(c *DisplayConfig) { c.DecayFloor = 0 }, true},
		{"negative per-tick ceiling", func(c *DisplayConfig) { c.MaxSamplesPerTick = -1 }, false},
		{"zero queue", func(c *DisplayConfig) { c.QueueCapacity = 0 }, false},
		{"rings unsorted", func(c *DisplayConfig) { c.OverlayRings = []float64{50, 25} }, false},
		{"ring beyond range", func(c *DisplayConfig) { c.OverlayRings = []float64{150} }, false},
		{"ring at range", func(c *DisplayConfig) { c.OverlayRings = []float64{100} }, true},
		{"no rings", func(c *DisplayConfig) { c.OverlayRings = nil }, true},
		{"zone ok", func(c *DisplayConfig) { c.ExclusionZones = []orb.Polygon{square} }, true},
		{"degenerate zone", func(c *DisplayConfig) { c.ExclusionZones = []orb.Polygon{{orb.Ring{{0, 0}, {1, 1}}}} }, false},
		{"empty zone", func(c *DisplayConfig) { c.ExclusionZones = []orb.Polygon{{}} }, false},
		{"bearing spacing too large", func(c *DisplayConfig) { c.BearingSpacingDeg = 400 }, false},
		{"trail fade above one", func(c *DisplayConfig) { c.SweepTrailFade = 1.5 }, false},
		{"negative trail", func(c *DisplayConfig) { c.SweepTrailLength = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDisplayConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("Validate() = nil, want error")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("error %v does not wrap ErrInvalidConfig", err)
				}
			}
		})
	}
}

func TestDisplayConfig_WithRange(t *testing.T) {
	cfg := DefaultDisplayConfig()
	got := cfg.WithRange(200)
	if got.MaxRange != 200 {
		t.Errorf("MaxRange = %v, want 200", got.MaxRange)
	}
	want := []float64{50, 100, 150, 200}
	for i, r := range want {
		if got.OverlayRings[i] != r {
			t.Errorf("ring %d = %v, want %v", i, got.OverlayRings[i], r)
		}
	}
	if cfg.OverlayRings[0] != 25 {
		t.Error("WithRange modified the receiver's rings")
	}

	bad := cfg.WithRange(-1)
	if bad.OverlayRings[0] != 25 || !errors.Is(bad.Validate(), ErrInvalidConfig) {
		t.Errorf("WithRange(-1) = rings %v, validate %v", bad.OverlayRings, bad.Validate())
	}
}

func TestDisplayConfig_Derived(t *testing.T) {
	cfg := DefaultDisplayConfig()
	cfg.MaxRange = 10
	cfg.AngleBucketCount = 360
	cfg.RangeBucketCount = 100

	if got, want := cfg.RangeResolution(), 0.1; math.Abs(got-want) > 1e-12 {
		t.Errorf("RangeResolution() = %v, want %v", got, want)
	}
	if got, want := cfg.AngleBucketWidth(), math.Pi/180; math.Abs(got-want) > 1e-12 {
		t.Errorf("AngleBucketWidth() = %v, want %v", got, want)
	}
}

func TestDisplayConfig_CloneAndEqual(t *testing.T) {
	cfg := DefaultDisplayConfig()
	cfg.ExclusionZones = []orb.Polygon{{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}}

	clone := cfg.Clone()
	if !cfg.Equal(clone) {
		t.Fatal("clone should equal original")
	}

	clone.OverlayRings[0] = 10
	if cfg.OverlayRings[0] == 10 {
		t.Error("clone aliases OverlayRings")
	}
	if cfg.Equal(clone) {
		t.Error("configs with different rings reported equal")
	}

	clone = cfg.Clone()
	clone.ExclusionZones[0][0][1] = orb.Point{5, 5}
	if cfg.ExclusionZones[0][0][1] == (orb.Point{5, 5}) {
		t.Error("clone aliases ExclusionZones")
	}

	other := cfg.Clone()
	other.AngleBucketCount = 720
	if cfg.SameGeometry(other) {
		t.Error("different angle bucket count reported as same geometry")
	}
	other = cfg.Clone()
	other.ScalePxPerUnit = 9
	if !cfg.SameGeometry(other) {
		t.Error("scale change should not change geometry")
	}
}

func TestSample_Level(t *testing.T) {
	if got := (Sample{}).Level(); got != 1.0 {
		t.Errorf("Level() without intensity = %v, want 1", got)
	}
	if got := (Sample{Intensity: 0.25, HasIntensity: true}).Level(); got != 0.25 {
		t.Errorf("Level() = %v, want 0.25", got)
	}
}
