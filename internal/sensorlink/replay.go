package sensorlink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/banshee-data/sonarscope/internal/scope"
	"github.com/banshee-data/sonarscope/internal/timeutil"
)

// MaxLineLength caps one replay line in bytes. A longer line is consumed and
// reported as an invalid reading so playback carries on after it.
const MaxLineLength = 4096

var errLineTooLong = errors.New("line too long")

// ReplaySource plays back a recorded line log. Blank lines and lines starting
// with '#' are skipped. With a non-zero Interval each reading waits that long
// on the clock before it is returned.
type ReplaySource struct {
	rd       *bufio.Reader
	clock    timeutil.Clock
	interval time.Duration
	verbose  bool
	line     int
}

// ReplayOption configures a ReplaySource.
type ReplayOption func(*ReplaySource)

// WithReplayClock sets the clock used for pacing.
func WithReplayClock(c timeutil.Clock) ReplayOption {
	return func(r *ReplaySource) { r.clock = c }
}

// WithInterval paces playback at one reading per d.
func WithInterval(d time.Duration) ReplayOption {
	return func(r *ReplaySource) { r.interval = d }
}

// WithVerbose logs every reading returned.
func WithVerbose(v bool) ReplayOption {
	return func(r *ReplaySource) { r.verbose = v }
}

func NewReplaySource(r io.Reader, opts ...ReplayOption) *ReplaySource {
	rs := &ReplaySource{
		rd:    bufio.NewReaderSize(r, MaxLineLength),
		clock: timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// Line returns the number of lines consumed so far.
func (r *ReplaySource) Line() int { return r.line }

func (r *ReplaySource) NextReading(ctx context.Context) (scope.RawReading, error) {
	for {
		text, err := r.readLine()
		if errors.Is(err, errLineTooLong) {
			r.line++
			return scope.RawReading{}, fmt.Errorf("%w: line %d longer than %d bytes",
				scope.ErrInvalidReading, r.line, MaxLineLength)
		}
		if err != nil {
			return scope.RawReading{}, err
		}
		r.line++
		text = strings.TrimSpace(text)
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		if r.interval > 0 {
			select {
			case <-ctx.Done():
				return scope.RawReading{}, ctx.Err()
			case <-r.clock.After(r.interval):
			}
		}

		raw, err := ParseLine(text)
		if err != nil {
			return raw, err
		}
		if r.verbose {
			logReading(raw)
		}
		return raw, nil
	}
}

// readLine returns the next line including its terminator. An unterminated
// final line is returned as is; io.EOF only comes once nothing is left.
func (r *ReplaySource) readLine() (string, error) {
	b, err := r.rd.ReadSlice('\n')
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		for errors.Is(err, bufio.ErrBufferFull) {
			_, err = r.rd.ReadSlice('\n')
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return "", errLineTooLong
	case errors.Is(err, io.EOF):
		if len(b) == 0 {
			return "", io.EOF
		}
		return string(b), nil
	case err != nil:
		return "", err
	}
	return string(b), nil
}
