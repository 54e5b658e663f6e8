// Package web serves the latest frame, the session config and a chart view
// over HTTP, and mounts the scope's counters on the tsweb debug page.
package web

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"

	"tailscale.com/tsweb"

	"github.com/banshee-data/sonarscope/internal/config"
	"github.com/banshee-data/sonarscope/internal/httputil"
	"github.com/banshee-data/sonarscope/internal/monitoring"
	"github.com/banshee-data/sonarscope/internal/scope"
	"github.com/banshee-data/sonarscope/internal/scope/render"
	"github.com/banshee-data/sonarscope/internal/version"
)

// Controller is the part of the render scheduler the web viewer drives.
type Controller interface {
	Config() scope.DisplayConfig
	Update(func(scope.DisplayConfig) scope.DisplayConfig) (scope.DisplayConfig, error)
	SessionID() string
	Stats() monitoring.TickSummary
	Counters() *scope.Counters
}

// StatsView is served on /api/stats.
type StatsView struct {
	SessionID string                 `json:"session_id"`
	Ticks     monitoring.TickSummary `json:"ticks"`
	Signals   map[string]uint64      `json:"signals"`
	Served    uint64                 `json:"frames_received"`
	Version   version.Info           `json:"version"`
}

// Server is a render.Sink that keeps the most recent frame for HTTP
// clients. OnFrame is lock-free so the render goroutine never waits on a
// slow request.
type Server struct {
	ctrl   Controller
	latest atomic.Pointer[render.Frame]
	frames atomic.Uint64
}

func NewServer(ctrl Controller) *Server {
	return &Server{ctrl: ctrl}
}

// OnFrame implements render.Sink.
func (s *Server) OnFrame(f render.Frame) {
	s.latest.Store(&f)
	s.frames.Add(1)
}

// Latest returns the newest frame, if any.
func (s *Server) Latest() (render.Frame, bool) {
	f := s.latest.Load()
	if f == nil {
		return render.Frame{}, false
	}
	return *f, true
}

// ServeMux returns a mux with the API, chart and debug routes mounted.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/frame", s.handleFrame)
	mux.HandleFunc("/api/overlay", s.handleOverlay)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/scope", s.handleScopeChart)
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/scope", http.StatusFound)
	})
	s.AttachAdminRoutes(mux)
	return mux
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	f, ok := s.Latest()
	if !ok {
		httputil.NotFound(w, "no frame rendered yet")
		return
	}
	httputil.WriteJSONOK(w, NewFrameView(f))
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	f, ok := s.Latest()
	if !ok {
		httputil.NotFound(w, "no frame rendered yet")
		return
	}
	data, err := OverlayGeoJSON(f.Overlay).MarshalJSON()
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, config.FromDisplayConfig(s.ctrl.Config()))

	case http.MethodPost:
		var patch config.ScopeConfig
		if !httputil.DecodeJSON(w, r, &patch) {
			return
		}
		if err := patch.Validate(); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		// Patches apply on top of any reconfiguration still waiting for a
		// tick. A bare max_range scales the rings with it.
		next, err := s.ctrl.Update(patch.ApplyTo)
		if err != nil {
			switch {
			case errors.Is(err, scope.ErrStopped):
				httputil.ServiceUnavailable(w, err.Error())
			default:
				httputil.BadRequest(w, err.Error())
			}
			return
		}
		log.Printf("[Web] reconfigure accepted from %s", r.RemoteAddr)
		httputil.WriteJSON(w, http.StatusAccepted, config.FromDisplayConfig(next))

	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) stats() StatsView {
	return StatsView{
		SessionID: s.ctrl.SessionID(),
		Ticks:     s.ctrl.Stats(),
		Signals:   s.ctrl.Counters().Snapshot(),
		Served:    s.frames.Load(),
		Version:   version.Get(),
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.stats())
}

// AttachAdminRoutes adds scope counters to the /debug/ page.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.KVFunc("scope session", func() any { return s.ctrl.SessionID() })
	debug.KVFunc("scope frames", func() any { return s.frames.Load() })
	debug.KVFunc("scope ticks", func() any {
		t := s.ctrl.Stats()
		return fmt.Sprintf("mean %.2fms p95 %.2fms max %.2fms late %d", t.MeanMs, t.P95Ms, t.MaxMs, t.LateTicks)
	})
	debug.KVFunc("scope signals", func() any { return s.ctrl.Counters().Snapshot() })
	debug.KV("version", version.Get().String())
	debug.Handle("scope-stats", "Scope tick and signal stats (JSON)", http.HandlerFunc(s.handleStats))
}
