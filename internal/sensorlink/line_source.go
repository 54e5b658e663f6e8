package sensorlink

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/banshee-data/sonarscope/internal/scope"
	"github.com/banshee-data/sonarscope/internal/serialmux"
)

// LineSource reads readings from a serial mux subscription. The stream ends
// with io.EOF once the mux closes the subscription.
type LineSource struct {
	mux     serialmux.SerialMuxInterface
	id      string
	lines   chan string
	verbose bool
	once    sync.Once
}

// NewLineSource subscribes to mux. Call Close to release the subscription.
func NewLineSource(mux serialmux.SerialMuxInterface, verbose bool) *LineSource {
	id, ch := mux.Subscribe()
	return &LineSource{mux: mux, id: id, lines: ch, verbose: verbose}
}

// NextReading blocks for the next non-blank line.
func (s *LineSource) NextReading(ctx context.Context) (scope.RawReading, error) {
	for {
		select {
		case <-ctx.Done():
			return scope.RawReading{}, ctx.Err()
		case line, ok := <-s.lines:
			if !ok {
				return scope.RawReading{}, io.EOF
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			raw, err := ParseLine(line)
			if err != nil {
				return raw, err
			}
			if s.verbose {
				logReading(raw)
			}
			return raw, nil
		}
	}
}

// Close unsubscribes from the mux. It is safe to call more than once.
func (s *LineSource) Close() {
	s.once.Do(func() { s.mux.Unsubscribe(s.id) })
}
