// Package sensorlink adapts sensor transports to the ingress.Source
// interface: live serial lines, recorded logs and a synthetic sweep.
package sensorlink

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/sonarscope/internal/monitoring"
	"github.com/banshee-data/sonarscope/internal/scope"
)

// ParseLine decodes one "<degrees>,<distance>[,<intensity>]" line. Trailing
// CR/LF and spaces around fields are ignored.
func ParseLine(line string) (scope.RawReading, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 2 || len(fields) > 3 {
		return scope.RawReading{}, fmt.Errorf("%w: want 2 or 3 fields, got %q", scope.ErrInvalidReading, line)
	}

	deg, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return scope.RawReading{}, fmt.Errorf("%w: bad angle %q", scope.ErrInvalidReading, fields[0])
	}
	dist, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return scope.RawReading{}, fmt.Errorf("%w: bad distance %q", scope.ErrInvalidReading, fields[1])
	}

	raw := scope.RawReading{Angle: deg * math.Pi / 180, Distance: dist}
	if len(fields) == 3 {
		in, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return scope.RawReading{}, fmt.Errorf("%w: bad intensity %q", scope.ErrInvalidReading, fields[2])
		}
		raw.Intensity = in
		raw.HasIntensity = true
	}
	return raw, nil
}

// FormatLine is the inverse of ParseLine, used when recording a session.
func FormatLine(r scope.RawReading) string {
	deg := strconv.FormatFloat(r.Angle*180/math.Pi, 'f', -1, 64)
	dist := strconv.FormatFloat(r.Distance, 'f', -1, 64)
	if r.HasIntensity {
		return deg + "," + dist + "," + strconv.FormatFloat(r.Intensity, 'f', -1, 64)
	}
	return deg + "," + dist
}

func logReading(r scope.RawReading) {
	monitoring.Logf("degrees=%.6g distance=%g", r.Angle*180/math.Pi, r.Distance)
}
