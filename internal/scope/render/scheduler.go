// Package render drives the fixed-rate frame loop. The scheduler's goroutine
// is the only one that touches the persistence field: intake hands samples
// over through an ingress.Queue that is drained at the start of every tick.
package render

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sonarscope/internal/monitoring"
	"github.com/banshee-data/sonarscope/internal/scope"
	"github.com/banshee-data/sonarscope/internal/scope/field"
	"github.com/banshee-data/sonarscope/internal/scope/ingress"
	"github.com/banshee-data/sonarscope/internal/scope/overlay"
	"github.com/banshee-data/sonarscope/internal/scope/projection"
	"github.com/banshee-data/sonarscope/internal/timeutil"
)

// State is the scheduler lifecycle.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// ErrAlreadyRunning is returned by Run when the scheduler is not idle.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for ticks and timing.
func WithClock(c timeutil.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithCounters shares signal counters with other components.
func WithCounters(c *scope.Counters) Option {
	return func(s *Scheduler) { s.counters = c }
}

// WithStatsLogInterval logs a tick summary every n frames. 0 disables it.
func WithStatsLogInterval(n uint64) Option {
	return func(s *Scheduler) { s.statsEvery = n }
}

// Scheduler is the render loop.
type Scheduler struct {
	clock      timeutil.Clock
	counters   *scope.Counters
	queue      *ingress.Queue
	sink       Sink
	stats      *monitoring.TickStats
	statsEvery uint64

	state atomic.Int32
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once

	// cfgMu guards cfg, pending and sessionID, which are read from other
	// goroutines (HTTP handlers).
	cfgMu     sync.RWMutex
	cfg       scope.DisplayConfig
	pending   *scope.DisplayConfig
	sessionID string

	// tickMu serialises ticks with Stop. Everything below is owned by
	// whoever holds it.
	tickMu   sync.Mutex
	field    *field.Field
	overlay  *overlay.Layer
	sweep    *SweepTracker
	batch    []scope.Sample
	lastTick time.Time
	seq      uint64
	elapsed  time.Duration
}

// NewScheduler validates cfg and builds the first field. The returned
// scheduler owns a queue sized by cfg.QueueCapacity; wire intake to Queue().
func NewScheduler(cfg scope.DisplayConfig, sink Sink, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Clone()

	s := &Scheduler{
		clock:   timeutil.RealClock{},
		sink:    sink,
		stats:   monitoring.NewTickStats(0),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		cfg:     cfg,
		overlay: overlay.NewLayer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.counters == nil {
		s.counters = scope.NewCounters()
	}
	if s.sink == nil {
		s.sink = MultiSink(nil)
	}

	s.queue = ingress.NewQueue(cfg.QueueCapacity, s.counters)
	s.field = field.New(cfg, s.counters)
	s.overlay.Compose(cfg)
	s.sweep = NewSweepTracker(cfg)
	s.sessionID = uuid.NewString()
	return s, nil
}

// Queue is the hand-off between intake and this scheduler.
func (s *Scheduler) Queue() *ingress.Queue { return s.queue }

// Counters returns the signal counters the scheduler records into.
func (s *Scheduler) Counters() *scope.Counters { return s.counters }

// State returns the current lifecycle state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Stats summarises recent tick timings.
func (s *Scheduler) Stats() monitoring.TickSummary { return s.stats.Summary() }

// Config returns the config in effect for the current session.
func (s *Scheduler) Config() scope.DisplayConfig {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.Clone()
}

// SessionID identifies the current field. It changes on every applied
// reconfiguration.
func (s *Scheduler) SessionID() string {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.sessionID
}

// Reconfigure validates cfg and schedules it for the start of the next
// tick. An invalid config is rejected here and the running session is left
// untouched.
func (s *Scheduler) Reconfigure(cfg scope.DisplayConfig) error {
	if s.State() == StateStopped {
		return scope.ErrStopped
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("reconfigure: %w", err)
	}
	c := cfg.Clone()
	s.cfgMu.Lock()
	s.pending = &c
	s.cfgMu.Unlock()
	return nil
}

// Update derives a new config from the newest one, which is the pending
// config when a reconfiguration has not landed yet, and schedules it like
// Reconfigure. fn runs under the config lock, so concurrent updates apply in
// turn and none is lost. fn must not call back into the scheduler.
func (s *Scheduler) Update(fn func(scope.DisplayConfig) scope.DisplayConfig) (scope.DisplayConfig, error) {
	if s.State() == StateStopped {
		return scope.DisplayConfig{}, scope.ErrStopped
	}
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	base := s.cfg
	if s.pending != nil {
		base = *s.pending
	}
	next := fn(base.Clone())
	if err := next.Validate(); err != nil {
		return scope.DisplayConfig{}, fmt.Errorf("reconfigure: %w", err)
	}
	c := next.Clone()
	s.pending = &c
	return next, nil
}

// Run ticks at the configured refresh rate until ctx is cancelled (returns
// ctx.Err()) or Stop is called (returns nil). The first frame is rendered
// immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		if s.State() == StateStopped {
			return scope.ErrStopped
		}
		return ErrAlreadyRunning
	}
	defer func() {
		s.shutdown()
		close(s.done)
	}()

	period := s.Config().RefreshPeriod()
	ticker := s.clock.NewTicker(period)
	defer ticker.Stop()

	log.Printf("[Scheduler] running session=%s period=%v", s.SessionID(), period)
	s.tick(s.clock.Now())

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Scheduler] context done after %d frames", s.Stats().Frames)
			return ctx.Err()
		case <-s.stop:
			log.Printf("[Scheduler] stopped after %d frames", s.Stats().Frames)
			return nil
		case now := <-ticker.C():
			start := s.clock.Now()
			s.tick(now)

			if p := s.Config().RefreshPeriod(); p != period {
				period = p
				ticker.Reset(period)
			}

			// A tick that overran its period leaves a stale tick in the
			// channel. Skip it so the next frame lands on a fresh boundary.
			if s.clock.Since(start) > period {
				select {
				case <-ticker.C():
				default:
				}
				s.stats.MarkLate()
				monitoring.Logf("[Scheduler] tick %d overran period %v", s.seq, period)
			}
		}
	}
}

// Stop halts the scheduler. When Run is active Stop waits for it to return,
// so no accumulate, decay or render call happens after Stop returns. The
// field is released. Stop is idempotent and must not be called from a Sink.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		prev := State(s.state.Swap(int32(StateStopped)))
		close(s.stop)
		if prev == StateRunning {
			<-s.done
			return
		}
		s.shutdown()
	})
}

func (s *Scheduler) shutdown() {
	s.state.Store(int32(StateStopped))
	s.tickMu.Lock()
	s.field = nil
	s.sweep = nil
	s.batch = nil
	s.tickMu.Unlock()
	s.queue.Discard()
}

// Tick runs one frame at now. It is what Run calls on every ticker fire;
// tests and offline tools call it directly instead of Run.
func (s *Scheduler) Tick(now time.Time) error {
	if s.State() == StateStopped {
		return scope.ErrStopped
	}
	if !s.tick(now) {
		return scope.ErrStopped
	}
	return nil
}

func (s *Scheduler) tick(now time.Time) bool {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	if s.field == nil {
		return false
	}
	start := s.clock.Now()

	cfg, reset := s.applyPending()

	// Drain then accumulate.
	s.batch = s.queue.Drain(s.batch[:0])
	accepted := s.field.AccumulateBatch(s.batch)
	for _, smp := range s.batch {
		s.sweep.Observe(smp.Angle)
	}

	// Decay by the time since the previous frame.
	var dt time.Duration
	if !s.lastTick.IsZero() && !reset {
		dt = now.Sub(s.lastTick)
	}
	s.lastTick = now
	s.field.DecayStep(now, dt)

	// Snapshot, project and compose.
	snap := s.field.Snapshot()
	points := projection.Project(snap, cfg)
	s.seq++
	frame := Frame{
		Seq:       s.seq,
		SessionID: s.SessionID(),
		At:        now,
		Config:    cfg,
		Overlay:   s.overlay.Compose(cfg),
		Points:    points,
		Rays:      projection.Rays(points, cfg),
		Sweep:     s.sweep.Lines(cfg),
		Stats: FrameStats{
			Drained:  len(s.batch),
			Accepted: accepted,
			Lit:      snap.Len(),
			Overruns: s.queue.Overruns(),
			Late:     s.stats.Late(),
			Elapsed:  s.elapsed,
			Signals:  s.counters.Snapshot(),
		},
	}

	// Hand off.
	s.sink.OnFrame(frame)

	s.elapsed = s.clock.Since(start)
	s.stats.Observe(s.elapsed, false)
	if s.statsEvery > 0 && s.seq%s.statsEvery == 0 {
		sum := s.stats.Summary()
		log.Printf("[Scheduler] frames=%d mean=%.2fms p95=%.2fms max=%.2fms late=%d lit=%d overruns=%d",
			sum.Frames, sum.MeanMs, sum.P95Ms, sum.MaxMs, sum.LateTicks, snap.Len(), frame.Stats.Overruns)
	}
	return true
}

// applyPending swaps in a pending config. Must hold tickMu.
func (s *Scheduler) applyPending() (scope.DisplayConfig, bool) {
	s.cfgMu.Lock()
	if s.pending == nil {
		cfg := s.cfg
		s.cfgMu.Unlock()
		return cfg, false
	}
	cfg := *s.pending
	s.pending = nil
	s.cfg = cfg
	s.sessionID = uuid.NewString()
	session := s.sessionID
	s.cfgMu.Unlock()

	lit := s.field.Lit()
	s.field = field.New(cfg, s.counters)
	s.sweep = NewSweepTracker(cfg)
	var dropped int
	if cfg.QueueCapacity != s.queue.Cap() {
		dropped = s.queue.Resize(cfg.QueueCapacity)
	} else {
		dropped = s.queue.Discard()
	}
	s.overlay.Compose(cfg)
	s.counters.Record(scope.SignalFieldReset, 1)

	log.Printf("[Scheduler] field reset session=%s buckets=%dx%d range=%v lit_before=%d pending_dropped=%d",
		session, cfg.AngleBucketCount, cfg.RangeBucketCount, cfg.MaxRange, lit, dropped)
	return cfg, true
}
