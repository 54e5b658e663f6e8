package sensorlink

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/banshee-data/sonarscope/internal/scope"
	"github.com/banshee-data/sonarscope/internal/timeutil"
)

const (
	DefaultMinDistance = 150
	DefaultMaxDistance = 200
)

// SimulatorConfig describes the synthetic sweep.
type SimulatorConfig struct {
	MinDistance float64
	MaxDistance float64
	// Interval between readings; zero emits as fast as the caller pulls.
	Interval time.Duration
	Seed     uint64
	Verbose  bool
}

// Simulator sweeps a servo from 0° to 180° and back, one degree per reading,
// reporting a uniformly random distance in [MinDistance, MaxDistance).
type Simulator struct {
	cfg   SimulatorConfig
	clock timeutil.Clock
	rng   *rand.Rand

	deg  int
	step int
}

// NewSimulator validates cfg. A nil clock means the real clock.
func NewSimulator(cfg SimulatorConfig, clock timeutil.Clock) (*Simulator, error) {
	if cfg.MinDistance == 0 && cfg.MaxDistance == 0 {
		cfg.MinDistance, cfg.MaxDistance = DefaultMinDistance, DefaultMaxDistance
	}
	if cfg.MinDistance < 0 || cfg.MaxDistance <= cfg.MinDistance ||
		math.IsInf(cfg.MaxDistance, 0) || math.IsNaN(cfg.MinDistance) || math.IsNaN(cfg.MaxDistance) {
		return nil, fmt.Errorf("simulator distance range [%v, %v) is empty", cfg.MinDistance, cfg.MaxDistance)
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("simulator interval must be non-negative, got %v", cfg.Interval)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Simulator{
		cfg:   cfg,
		clock: clock,
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		step:  1,
	}, nil
}

func (s *Simulator) NextReading(ctx context.Context) (scope.RawReading, error) {
	if err := ctx.Err(); err != nil {
		return scope.RawReading{}, err
	}
	if s.cfg.Interval > 0 {
		select {
		case <-ctx.Done():
			return scope.RawReading{}, ctx.Err()
		case <-s.clock.After(s.cfg.Interval):
		}
	}

	span := s.cfg.MaxDistance - s.cfg.MinDistance
	raw := scope.RawReading{
		Angle:    float64(s.deg) * math.Pi / 180,
		Distance: s.cfg.MinDistance + s.rng.Float64()*span,
	}
	if s.cfg.Verbose {
		logReading(raw)
	}

	s.deg += s.step
	if s.deg >= 180 || s.deg <= 0 {
		s.step = -s.step
	}
	return raw, nil
}
