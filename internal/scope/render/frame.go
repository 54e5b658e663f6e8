package render

import (
	"sync"
	"time"

	"github.com/banshee-data/sonarscope/internal/scope"
	"github.com/banshee-data/sonarscope/internal/scope/overlay"
	"github.com/banshee-data/sonarscope/internal/scope/projection"
)

// FrameStats summarises the tick that produced a frame.
//
// Drained counts samples taken off the queue, Accepted those that landed in
// the field. Overruns and Late are cumulative for the session. Elapsed is
// the build time of the previous frame.
type FrameStats struct {
	Drained  int               `json:"drained"`
	Accepted int               `json:"accepted"`
	Lit      int               `json:"lit"`
	Overruns uint64            `json:"overruns"`
	Late     uint64            `json:"late"`
	Elapsed  time.Duration     `json:"elapsed"`
	Signals  map[string]uint64 `json:"signals,omitempty"`
}

// Frame is everything a presentation layer needs to draw one tick. Overlay
// primitives carry their own Z; Points, Rays and Sweep sit between Below and
// Above. A frame is handed to the sink once and not retained.
type Frame struct {
	Seq       uint64
	SessionID string
	At        time.Time
	Config    scope.DisplayConfig

	Overlay *overlay.Geometry
	Points  []projection.DisplayPoint
	Rays    []projection.Ray
	Sweep   []SweepLine

	Stats FrameStats
}

// Sink receives completed frames on the render goroutine. OnFrame must not
// block for long; slow consumers should sit behind a Mailbox.
type Sink interface {
	OnFrame(Frame)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Frame)

func (f SinkFunc) OnFrame(fr Frame) { f(fr) }

// MultiSink hands each frame to every sink in order.
type MultiSink []Sink

func (m MultiSink) OnFrame(f Frame) {
	for _, s := range m {
		if s != nil {
			s.OnFrame(f)
		}
	}
}

// Mailbox is a single-slot hand-off to a consumer on another goroutine. A
// frame that is not taken before the next one arrives is overwritten.
type Mailbox struct {
	mu      sync.Mutex
	frame   Frame
	full    bool
	dropped uint64
	ready   chan struct{}
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// OnFrame stores f, replacing any frame not yet taken.
func (m *Mailbox) OnFrame(f Frame) {
	m.mu.Lock()
	if m.full {
		m.dropped++
	}
	m.frame = f
	m.full = true
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Ready is signalled whenever a frame is stored.
func (m *Mailbox) Ready() <-chan struct{} { return m.ready }

// Take removes and returns the stored frame.
func (m *Mailbox) Take() (Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		return Frame{}, false
	}
	f := m.frame
	m.frame = Frame{}
	m.full = false
	return f, true
}

// Dropped returns how many frames were overwritten before being taken.
func (m *Mailbox) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}
