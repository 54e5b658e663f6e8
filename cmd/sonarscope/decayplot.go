package main

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/sonarscope/internal/scope"
	"github.com/banshee-data/sonarscope/internal/scope/field"
	"github.com/banshee-data/sonarscope/internal/scope/render"
	"github.com/banshee-data/sonarscope/internal/timeutil"
	"github.com/banshee-data/sonarscope/internal/viewer/decayplot"
)

type decayPlotOptions struct {
	*rootOptions
	Out      string
	HalfLife time.Duration
	Duration time.Duration
}

func newDecayPlotCommand(root *rootOptions) *cobra.Command {
	opts := &decayPlotOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "decay-plot",
		Short: "Plot how contacts fade with the configured half-life",
		Long: `Run a short offline session on a simulated clock: light two cells, refresh
one of them halfway through, and plot both fading next to the expected
0.5^(t/half-life) curve.

Examples:
  sonarscope decay-plot --out decay.png
  sonarscope decay-plot --half-life 1s --duration 5s --config scope.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecayPlot(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "decay.png", "output PNG path")
	cmd.Flags().DurationVar(&opts.HalfLife, "half-life", 0, "decay half-life (overrides config)")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "session length (default four half-lives)")
	return cmd
}

func runDecayPlot(cmd *cobra.Command, opts *decayPlotOptions) error {
	cfg, _, err := opts.displayConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if opts.HalfLife < 0 || opts.Duration < 0 {
		return fmt.Errorf("--half-life and --duration must not be negative")
	}
	if opts.HalfLife > 0 {
		cfg.DecayHalfLife = opts.HalfLife
	}
	duration := opts.Duration
	if duration == 0 {
		duration = 4 * cfg.DecayHalfLife
	}

	trace, ticks, err := traceDecay(cfg, duration)
	if err != nil {
		return err
	}
	if err := trace.Save(opts.Out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d frames, half-life %s)\n", opts.Out, ticks, cfg.DecayHalfLife)
	return nil
}

// decayProbes are the two readings traceDecay lights.
func decayProbes(cfg scope.DisplayConfig) (near, far scope.Sample) {
	near = scope.Sample{Angle: math.Pi / 4, Distance: cfg.MaxRange / 2}
	far = scope.Sample{Angle: 3 * math.Pi / 4, Distance: 3 * cfg.MaxRange / 4}
	return near, far
}

// traceDecay drives a scheduler by hand on a mock clock. The first cell is
// lit once; the second is lit at the start and again at the midpoint.
func traceDecay(cfg scope.DisplayConfig, duration time.Duration) (*decayplot.DecayTrace, int, error) {
	geom := field.GeometryOf(cfg)
	near, far := decayProbes(cfg)
	bNear, _ := geom.Locate(near.Angle, near.Distance)
	bFar, _ := geom.Locate(far.Angle, far.Distance)

	trace := decayplot.NewDecayTrace(bNear, bFar)
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	sched, err := render.NewScheduler(cfg, trace, render.WithClock(clock))
	if err != nil {
		return nil, 0, err
	}
	defer sched.Stop()

	period := cfg.RefreshPeriod()
	ticks := int(duration/period) + 1
	for i := 0; i < ticks; i++ {
		now := clock.Now()
		if i == 0 {
			near.CapturedAt, far.CapturedAt = now, now
			sched.Queue().Push(near)
			sched.Queue().Push(far)
		}
		if i == ticks/2 {
			far.CapturedAt = now
			sched.Queue().Push(far)
		}
		if err := sched.Tick(now); err != nil {
			return nil, i, err
		}
		clock.Advance(period)
	}
	return trace, ticks, nil
}
