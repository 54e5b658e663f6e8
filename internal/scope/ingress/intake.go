package ingress

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/banshee-data/sonarscope/internal/monitoring"
	"github.com/banshee-data/sonarscope/internal/scope"
	"github.com/banshee-data/sonarscope/internal/timeutil"
)

// Source is the pull-style transport interface. NextReading blocks until a
// reading is available, the context is cancelled, or the stream ends with
// io.EOF. A returned error wrapping scope.ErrInvalidReading describes one
// bad reading; the stream is still usable.
type Source interface {
	NextReading(ctx context.Context) (scope.RawReading, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (scope.RawReading, error)

func (f SourceFunc) NextReading(ctx context.Context) (scope.RawReading, error) { return f(ctx) }

// invalidLogEvery rate-limits invalid reading logs after the first few.
const invalidLogEvery = 100

// Intake pulls readings from a Source, normalizes them and pushes them into
// a Queue. It runs on its own goroutine.
type Intake struct {
	source   Source
	queue    *Queue
	clock    timeutil.Clock
	counters *scope.Counters

	accepted atomic.Uint64
	invalid  atomic.Uint64
}

// IntakeOption configures an Intake.
type IntakeOption func(*Intake)

// WithClock sets the monotonic clock used to stamp samples.
func WithClock(c timeutil.Clock) IntakeOption {
	return func(in *Intake) { in.clock = c }
}

// WithCounters sets the counters invalid readings are recorded in.
func WithCounters(c *scope.Counters) IntakeOption {
	return func(in *Intake) { in.counters = c }
}

// NewIntake wires src to q.
func NewIntake(src Source, q *Queue, opts ...IntakeOption) *Intake {
	in := &Intake{
		source: src,
		queue:  q,
		clock:  timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Run consumes the source until it ends (returns nil), the context is
// cancelled (returns ctx.Err()), or the source fails (returns the error).
// Invalid readings are counted and skipped.
func (in *Intake) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := in.source.NextReading(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				monitoring.Logf("[Intake] end of stream after %d samples", in.accepted.Load())
				return nil
			case errors.Is(err, scope.ErrInvalidReading):
				in.reject(err)
				continue
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				return err
			}
		}

		sample, err := Normalize(raw, in.clock.Now())
		if err != nil {
			in.reject(err)
			continue
		}
		in.queue.Push(sample)
		in.accepted.Add(1)
	}
}

func (in *Intake) reject(err error) {
	n := in.invalid.Add(1)
	in.counters.Record(scope.SignalInvalidReading, 1)
	if n <= 5 || n%invalidLogEvery == 0 {
		monitoring.Logf("[Intake] discarded reading #%d: %v", n, err)
	}
}

// Accepted returns the number of samples pushed into the queue.
func (in *Intake) Accepted() uint64 { return in.accepted.Load() }

// Invalid returns the number of readings discarded as invalid.
func (in *Intake) Invalid() uint64 { return in.invalid.Load() }
