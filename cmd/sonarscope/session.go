package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/sonarscope/internal/scope"
	"github.com/banshee-data/sonarscope/internal/scope/ingress"
	"github.com/banshee-data/sonarscope/internal/scope/render"
	"github.com/banshee-data/sonarscope/internal/sensorlink"
	"github.com/banshee-data/sonarscope/internal/serialmux"
	"github.com/banshee-data/sonarscope/internal/viewer/audio"
	"github.com/banshee-data/sonarscope/internal/viewer/terminal"
	"github.com/banshee-data/sonarscope/internal/viewer/web"
)

const (
	pingSampleRate = beep.SampleRate(44100)
	shutdownGrace  = 5 * time.Second
)

// pipeline is what a command contributes to a session beyond the shared
// scope: where readings come from and any extra goroutines or debug routes.
type pipeline struct {
	source ingress.Source
	// finite sources end on their own; a headless session stops with them.
	finite     bool
	background []func(context.Context) error
	routes     []func(*http.ServeMux)
}

// sessionResult summarises a finished session.
type sessionResult struct {
	Frames   uint64
	Accepted uint64
	Invalid  uint64
	Lit      int
	Session  string
}

func (r sessionResult) String() string {
	return fmt.Sprintf("session %s: %d frames, %d readings accepted, %d invalid, %d lit at exit",
		r.Session, r.Frames, r.Accepted, r.Invalid, r.Lit)
}

// runSession wires source → intake → scheduler → viewers and runs until the
// context ends, the user quits the terminal scope, or a finite source is
// exhausted in a headless session.
func runSession(ctx context.Context, o *rootOptions, cfg scope.DisplayConfig, p pipeline) (sessionResult, error) {
	counters := scope.NewCounters()

	var (
		sinks   render.MultiSink
		lit     atomic.Int64
		mailbox *render.Mailbox
	)
	sinks = append(sinks, render.SinkFunc(func(f render.Frame) { lit.Store(int64(f.Stats.Lit)) }))
	if !o.NoTUI {
		mailbox = render.NewMailbox()
		sinks = append(sinks, mailbox)
	}
	if o.Ping {
		if pinger := newPinger(o, cfg); pinger != nil {
			sinks = append(sinks, pinger)
		}
	}

	// The web server needs the scheduler as its controller, so it joins
	// the sink list after the scheduler exists and before Run.
	var webSink atomic.Pointer[web.Server]
	sinks = append(sinks, render.SinkFunc(func(f render.Frame) {
		if s := webSink.Load(); s != nil {
			s.OnFrame(f)
		}
	}))

	opts := []render.Option{render.WithCounters(counters)}
	if o.StatsEvery > 0 {
		opts = append(opts, render.WithStatsLogInterval(o.StatsEvery))
	}
	sched, err := render.NewScheduler(cfg, sinks, opts...)
	if err != nil {
		return sessionResult{}, err
	}
	defer sched.Stop()

	intake := ingress.NewIntake(p.source, sched.Queue(), ingress.WithCounters(counters))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return sched.Run(gctx) })

	g.Go(func() error {
		err := intake.Run(gctx)
		if err == nil && p.finite && o.NoTUI && o.Listen == "" {
			// Render whatever the source left in the queue, then finish.
			if err := sched.Tick(time.Now()); err != nil && !errors.Is(err, scope.ErrStopped) {
				return err
			}
			cancel()
		}
		return err
	})

	for _, fn := range p.background {
		g.Go(func() error { return fn(gctx) })
	}

	if !o.NoTUI {
		viewer, err := terminal.Open(mailbox, o.Half)
		if err != nil {
			cancel()
			_ = g.Wait()
			return sessionResult{}, err
		}
		g.Go(func() error {
			defer viewer.LogDropped()
			return viewer.Run(gctx)
		})
	}

	if o.Listen != "" {
		srv := web.NewServer(sched)
		webSink.Store(srv)
		mux := srv.ServeMux()
		for _, attach := range p.routes {
			attach(mux)
		}
		g.Go(func() error { return serveHTTP(gctx, o.Listen, mux) })
	}

	err = g.Wait()
	sched.Stop()

	res := sessionResult{
		Frames:   sched.Stats().Frames,
		Accepted: intake.Accepted(),
		Invalid:  intake.Invalid(),
		Lit:      int(lit.Load()),
		Session:  sched.SessionID(),
	}
	log.Printf("[Session] %s", res)

	switch {
	case err == nil,
		errors.Is(err, terminal.ErrQuit),
		errors.Is(err, context.Canceled):
		log.Printf("Graceful shutdown complete")
		return res, nil
	}
	return res, err
}

// mirrorSource publishes every reading src yields to mux in wire format, so
// a replay or simulated session can be tailed like a live device.
func mirrorSource(src ingress.Source, mux *serialmux.DisabledSerialMux) ingress.Source {
	return ingress.SourceFunc(func(ctx context.Context) (scope.RawReading, error) {
		raw, err := src.NextReading(ctx)
		if err == nil {
			mux.Publish(sensorlink.FormatLine(raw))
		}
		return raw, err
	})
}

// serveHTTP runs an HTTP server until ctx ends, then shuts it down.
func serveHTTP(ctx context.Context, addr string, h http.Handler) error {
	server := &http.Server{
		Addr: addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("[HTTP] %s %s", r.Method, r.URL.Path)
			h.ServeHTTP(w, r)
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("[HTTP] listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Printf("HTTP server routine stopped")
	return ctx.Err()
}

// newPinger builds the audio sink. A machine without an audio device
// simply runs silent.
func newPinger(o *rootOptions, cfg scope.DisplayConfig) *audio.Pinger {
	player, err := audio.NewSpeakerPlayer(pingSampleRate)
	if err != nil {
		log.Printf("[Audio] ping disabled: %v", err)
		return nil
	}
	radius := o.WarnRadius
	if radius == 0 {
		radius = cfg.MaxRange / 4
	}
	policy := &audio.PingPolicy{
		WarnRadius:  radius,
		Threshold:   0.95,
		MinInterval: 750 * time.Millisecond,
	}
	return audio.NewPinger(policy, player, pingSampleRate)
}
