package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/sonarscope/internal/sensorlink"
	"github.com/banshee-data/sonarscope/internal/serialmux"
	"github.com/banshee-data/sonarscope/internal/timeutil"
)

type simulateOptions struct {
	*rootOptions
	MinRand float64
	MaxRand float64
	Rate    float64
	Seed    uint64
}

func newSimulateCommand(root *rootOptions) *cobra.Command {
	opts := &simulateOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Draw a simulated 0-180 degree sweep",
		Long: `Generate a sweep from 0 to 180 degrees and back, one degree per reading,
with a uniformly random distance in [min-rand, max-rand).

Examples:
  sonarscope simulate
  sonarscope simulate --min-rand 20 --max-rand 90 --half`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.MinRand, "min-rand", sensorlink.DefaultMinDistance, "minimum simulated distance")
	cmd.Flags().Float64Var(&opts.MaxRand, "max-rand", sensorlink.DefaultMaxDistance, "maximum simulated distance (exclusive)")
	cmd.Flags().Float64Var(&opts.Rate, "rate", 180, "readings per second (0 is unpaced)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "random seed (0 picks one from the clock)")
	return cmd
}

func runSimulate(cmd *cobra.Command, opts *simulateOptions) error {
	if opts.Rate < 0 {
		return fmt.Errorf("invalid --rate %v", opts.Rate)
	}
	cfg, _, err := opts.displayConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("range") && opts.ConfigPath == "" {
		// The default sweep sits beyond the default range; fit it.
		cfg = cfg.WithRange(opts.MaxRand)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	sim, err := sensorlink.NewSimulator(sensorlink.SimulatorConfig{
		MinDistance: opts.MinRand,
		MaxDistance: opts.MaxRand,
		Interval:    intervalForRate(opts.Rate),
		Seed:        seed,
		Verbose:     opts.Verbose,
	}, timeutil.RealClock{})
	if err != nil {
		return err
	}

	restore, err := opts.redirectLogs()
	if err != nil {
		return err
	}
	defer restore()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := serialmux.NewDisabledSerialMux("simulator")
	defer mux.Close()

	res, err := runSession(ctx, opts.rootOptions, cfg, pipeline{
		source: mirrorSource(sim, mux),
		routes: []func(*http.ServeMux){mux.AttachAdminRoutes},
	})
	if opts.NoTUI {
		fmt.Fprintln(cmd.OutOrStdout(), res)
	}
	return err
}
