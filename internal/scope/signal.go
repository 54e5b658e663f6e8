package scope

import (
	"sync"
	"sync/atomic"
)

// Signal identifies a non-fatal event counted by the pipeline.
type Signal int

const (
	SignalInvalidReading Signal = iota
	SignalOutOfRange
	SignalFieldReset
	SignalIngressOverrun
	SignalCoalesced
	numSignals
)

var signalNames = [numSignals]string{
	SignalInvalidReading: "invalid_reading",
	SignalOutOfRange:     "out_of_range",
	SignalFieldReset:     "field_reset",
	SignalIngressOverrun: "ingress_overrun",
	SignalCoalesced:      "coalesced",
}

func (s Signal) String() string {
	if s < 0 || s >= numSignals {
		return "unknown"
	}
	return signalNames[s]
}

// SignalHandler is notified every time a signal is recorded. n is the number
// of events folded into the call (e.g. samples dropped by one overrun).
type SignalHandler func(sig Signal, n uint64)

// Counters accumulates signal counts. It is safe for concurrent use: the
// intake goroutine records overruns and invalid readings while the render
// goroutine records out-of-range drops and resets.
type Counters struct {
	counts [numSignals]atomic.Uint64

	mu      sync.RWMutex
	handler SignalHandler
}

// NewCounters returns zeroed counters.
func NewCounters() *Counters {
	return &Counters{}
}

// SetHandler installs a callback invoked after each Record. Passing nil
// removes it.
func (c *Counters) SetHandler(h SignalHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Record adds n to the counter for sig. A nil receiver is a no-op so
// components can run without counters in tests.
func (c *Counters) Record(sig Signal, n uint64) {
	if c == nil || n == 0 || sig < 0 || sig >= numSignals {
		return
	}
	c.counts[sig].Add(n)

	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h != nil {
		h(sig, n)
	}
}

// Load returns the current count for sig.
func (c *Counters) Load(sig Signal) uint64 {
	if c == nil || sig < 0 || sig >= numSignals {
		return 0
	}
	return c.counts[sig].Load()
}

// Snapshot returns all counts keyed by signal name.
func (c *Counters) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, numSignals)
	for i := Signal(0); i < numSignals; i++ {
		out[i.String()] = c.Load(i)
	}
	return out
}
