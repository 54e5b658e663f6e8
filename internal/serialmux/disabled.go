package serialmux

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"tailscale.com/tsweb"
)

// ErrNoDevice is returned by SendCommand when no serial device is attached.
var ErrNoDevice = errors.New("no serial device attached")

// DisabledSerialMux stands in for a SerialMux when readings come from a
// replay file or the simulator. Nothing is read from a port; instead the
// session publishes each reading it consumes so /debug/tail and the line
// counters look the same as for a live device.
type DisabledSerialMux struct {
	source string

	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool

	lines   atomic.Uint64
	dropped atomic.Uint64
}

// NewDisabledSerialMux returns a mux with no port. source names where the
// readings come from instead ("replay capture.txt", "simulator") and is
// shown on the debug page.
func NewDisabledSerialMux(source string) *DisabledSerialMux {
	return &DisabledSerialMux{
		source:      source,
		subscribers: make(map[string]chan string),
	}
}

// Source reports what the mux is standing in for.
func (d *DisabledSerialMux) Source() string { return d.source }

func (d *DisabledSerialMux) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, SubscriberBuffer)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		// If already closing, return a closed channel so callers don't block.
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

func (d *DisabledSerialMux) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

// Publish fans line out to subscribers the way Monitor does for a port.
// Full subscribers miss the line. Publishing after Close is a no-op.
func (d *DisabledSerialMux) Publish(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return
	}
	d.lines.Add(1)
	for _, ch := range d.subscribers {
		select {
		case ch <- line:
		default:
			d.dropped.Add(1)
		}
	}
}

func (d *DisabledSerialMux) SendCommand(string) error { return ErrNoDevice }

func (d *DisabledSerialMux) Stats() Stats {
	d.mu.Lock()
	n := len(d.subscribers)
	d.mu.Unlock()
	return Stats{Lines: d.lines.Load(), Dropped: d.dropped.Load(), Subscribers: n}
}

func (d *DisabledSerialMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledSerialMux) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	return nil
}

func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KV("serial", "disabled ("+d.source+")")
	debug.KVFunc("serial lines", func() any { return d.lines.Load() })
	debug.KVFunc("serial dropped", func() any { return d.dropped.Load() })

	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		http.Error(w, "Serial disabled: readings come from "+d.source, http.StatusServiceUnavailable)
	})
	debug.HandleSilentFunc("tail", tailHandler(d.Subscribe, d.Unsubscribe))
}
