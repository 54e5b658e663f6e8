package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sonarscope/internal/config"
	"github.com/banshee-data/sonarscope/internal/httputil"
	"github.com/banshee-data/sonarscope/internal/monitoring"
	"github.com/banshee-data/sonarscope/internal/scope"
	"github.com/banshee-data/sonarscope/internal/scope/render"
	"github.com/banshee-data/sonarscope/internal/timeutil"
)

func init() { monitoring.SetLogger(nil) }

type fixture struct {
	sched  *render.Scheduler
	server *Server
	clock  *timeutil.MockClock
	mux    *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	cfg := scope.DefaultDisplayConfig()
	fx := &fixture{clock: clock}

	var sink render.SinkFunc = func(f render.Frame) { fx.server.OnFrame(f) }
	s, err := render.NewScheduler(cfg, sink, render.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(s.Stop)

	fx.sched = s
	fx.server = NewServer(s)
	fx.mux = fx.server.ServeMux()
	return fx
}

func (fx *fixture) tick(t *testing.T, samples ...scope.Sample) {
	t.Helper()
	for _, sm := range samples {
		fx.sched.Queue().Push(sm)
	}
	require.NoError(t, fx.sched.Tick(fx.clock.Now()))
	fx.clock.Advance(100 * time.Millisecond)
}

func (fx *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	r.RemoteAddr = "127.0.0.1:4321"
	w := httptest.NewRecorder()
	fx.mux.ServeHTTP(w, r)
	return w
}

func TestFrameEndpoint(t *testing.T) {
	fx := newFixture(t)

	w := fx.do(http.MethodGet, "/api/frame", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	fx.tick(t, scope.Sample{Angle: 0, Distance: 50, CapturedAt: fx.clock.Now()})
	w = fx.do(http.MethodGet, "/api/frame", "")
	require.Equal(t, http.StatusOK, w.Code)

	var v FrameView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, uint64(1), v.Seq)
	assert.Equal(t, fx.sched.SessionID(), v.SessionID)
	require.Len(t, v.Points, 1)
	assert.InDelta(t, 200, v.Points[0].X, 1e-9)
	assert.Equal(t, 1.0, v.Points[0].Brightness)
	assert.Equal(t, 1, v.Stats.Lit)

	assert.Equal(t, http.StatusMethodNotAllowed, fx.do(http.MethodPost, "/api/frame", "{}").Code)
}

func TestFrameEndpoint_EmptyFieldHasArray(t *testing.T) {
	fx := newFixture(t)
	fx.tick(t)
	w := fx.do(http.MethodGet, "/api/frame", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"points":[]`)
}

func TestOverlayEndpoint(t *testing.T) {
	fx := newFixture(t)
	fx.tick(t)

	w := fx.do(http.MethodGet, "/api/overlay", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))

	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	require.NoError(t, err)

	kinds := map[string]int{}
	for _, f := range fc.Features {
		kinds[f.Properties.MustString("kind")]++
	}
	cfg := scope.DefaultDisplayConfig()
	assert.Equal(t, len(cfg.OverlayRings), kinds["ring"])
	assert.Equal(t, 12, kinds["bearing"])
}

func TestConfigEndpoint_GetAndPost(t *testing.T) {
	fx := newFixture(t)
	before := fx.sched.SessionID()

	w := fx.do(http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got config.ScopeConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.NotNil(t, got.MaxRange)
	assert.Equal(t, 100.0, *got.MaxRange)

	w = fx.do(http.MethodPost, "/api/config", `{"max_range": 200, "rings": [100, 200]}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	fx.tick(t)
	assert.Equal(t, 200.0, fx.sched.Config().MaxRange)
	assert.Equal(t, []float64{100, 200}, fx.sched.Config().OverlayRings)
	assert.NotEqual(t, before, fx.sched.SessionID())
	assert.Equal(t, uint64(1), fx.sched.Counters().Load(scope.SignalFieldReset))
}

func TestConfigEndpoint_Rejects(t *testing.T) {
	fx := newFixture(t)
	before := fx.sched.SessionID()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{"max_range":`, http.StatusBadRequest},
		{"unknown field", `{"range": 5}`, http.StatusBadRequest},
		{"bad duration", `{"decay_half_life": "x"}`, http.StatusBadRequest},
		{"invalid display", `{"max_range": 10, "rings": [50]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := fx.do(http.MethodPost, "/api/config", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
	fx.tick(t)
	assert.Equal(t, before, fx.sched.SessionID())

	assert.Equal(t, http.StatusMethodNotAllowed, fx.do(http.MethodDelete, "/api/config", "").Code)
}

func TestConfigEndpoint_RangeOnlyScalesRings(t *testing.T) {
	fx := newFixture(t)
	w := fx.do(http.MethodPost, "/api/config", `{"max_range": 50}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	fx.tick(t)
	assert.Equal(t, 50.0, fx.sched.Config().MaxRange)
	assert.Equal(t, []float64{12.5, 25, 37.5, 50}, fx.sched.Config().OverlayRings)
}

func TestConfigEndpoint_ConcurrentPatchesAllLand(t *testing.T) {
	fx := newFixture(t)
	bodies := []string{`{"refresh_hz": 10}`, `{"units": "cm"}`, `{"shadow_lines": false}`, `{"sweep_trail_length": 4}`}

	var wg sync.WaitGroup
	for _, body := range bodies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := fx.do(http.MethodPost, "/api/config", body)
			assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		}()
	}
	wg.Wait()

	fx.tick(t)
	got := fx.sched.Config()
	assert.Equal(t, 10.0, got.RefreshHz)
	assert.Equal(t, "cm", got.Units)
	assert.False(t, got.ShadowLines)
	assert.Equal(t, 4, got.SweepTrailLength)
}

func TestConfigEndpoint_RejectsUntickableRefresh(t *testing.T) {
	fx := newFixture(t)
	w := fx.do(http.MethodPost, "/api/config", `{"refresh_hz": 2e9}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	fx.tick(t)
	assert.Equal(t, scope.DefaultDisplayConfig().RefreshHz, fx.sched.Config().RefreshHz)
}

func TestConfigEndpoint_StoppedScheduler(t *testing.T) {
	fx := newFixture(t)
	fx.sched.Stop()
	w := fx.do(http.MethodPost, "/api/config", `{"refresh_hz": 5}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	fx := newFixture(t)
	fx.tick(t, scope.Sample{Angle: 1, Distance: 500, CapturedAt: fx.clock.Now()})

	w := fx.do(http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var v StatsView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, uint64(1), v.Served)
	assert.Equal(t, uint64(1), v.Signals["out_of_range"])
	assert.Equal(t, uint64(1), v.Ticks.Frames)
}

func TestScopeChart(t *testing.T) {
	fx := newFixture(t)
	assert.Equal(t, http.StatusNotFound, fx.do(http.MethodGet, "/scope", "").Code)

	fx.tick(t, scope.Sample{Angle: 0.3, Distance: 40, CapturedAt: fx.clock.Now()})
	w := fx.do(http.MethodGet, "/scope?refresh=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("Refresh"))
	body := w.Body.String()
	assert.Contains(t, body, "<html")
	assert.Contains(t, body, "blips")
	assert.Contains(t, body, "seq=1")

	w = fx.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestDebugPageShowsScopeCounters(t *testing.T) {
	fx := newFixture(t)
	fx.tick(t)
	w := fx.do(http.MethodGet, "/debug/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scope frames")
	assert.Contains(t, w.Body.String(), "scope-stats")
}

func TestClient_PushConfigAgainstServer(t *testing.T) {
	fx := newFixture(t)
	srv := httptest.NewServer(fx.mux)
	defer srv.Close()

	c := NewClient(srv.URL+"/", nil)
	hz := 15.0
	out, err := c.PushConfig(context.Background(), &config.ScopeConfig{RefreshHz: &hz})
	require.NoError(t, err)
	require.NotNil(t, out.RefreshHz)
	assert.Equal(t, 15.0, *out.RefreshHz)

	fx.tick(t)
	cfg, err := c.Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15.0, *cfg.RefreshHz)

	st, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fx.sched.SessionID(), st.SessionID)
}

func TestClient_SurfacesServerError(t *testing.T) {
	mock := httputil.NewMockHTTPClient().AddResponse(http.StatusBadRequest, `{"error":"reconfigure: invalid display config"}`)
	c := NewClient("http://scope.local", mock)

	_, err := c.PushConfig(context.Background(), &config.ScopeConfig{})
	var se *httputil.StatusError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Message, "invalid display config")
	assert.Equal(t, "/api/config", mock.Requests[0].URL.Path)
}

func TestNewFrameView_Units(t *testing.T) {
	cfg := scope.DefaultDisplayConfig()
	v := NewFrameView(render.Frame{Config: cfg})
	assert.Empty(t, v.Units)
	assert.Zero(t, v.MaxRangeM)
	assert.NotNil(t, v.Points)

	cfg.Units = "cm"
	v = NewFrameView(render.Frame{Config: cfg})
	assert.Equal(t, "cm", v.Units)
	assert.InDelta(t, 1.0, v.MaxRangeM, 1e-12)
}
