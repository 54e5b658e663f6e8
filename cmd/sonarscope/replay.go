package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banshee-data/sonarscope/internal/sensorlink"
	"github.com/banshee-data/sonarscope/internal/serialmux"
)

type replayOptions struct {
	*rootOptions
	Rate float64
}

func newReplayCommand(root *rootOptions) *cobra.Command {
	opts := &replayOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Draw readings from a recorded log",
		Long: `Replay a file of "<degrees>,<distance>[,<intensity>]" lines. Blank lines
and lines starting with # are skipped. Use - to read standard input.

Without the terminal scope or --listen the command exits once the log is
exhausted and prints a summary.

Examples:
  sonarscope replay capture.log --rate 60
  sonarscope replay capture.log --no-tui`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts, args[0])
		},
	}

	cmd.Flags().Float64Var(&opts.Rate, "rate", 0, "readings per second (0 replays as fast as possible)")
	return cmd
}

func runReplay(cmd *cobra.Command, opts *replayOptions, path string) error {
	if opts.Rate < 0 {
		return fmt.Errorf("invalid --rate %v", opts.Rate)
	}
	cfg, _, err := opts.displayConfig(cmd.Flags())
	if err != nil {
		return err
	}

	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open replay: %w", err)
		}
		defer f.Close()
		r = f
	}

	restore, err := opts.redirectLogs()
	if err != nil {
		return err
	}
	defer restore()

	src := sensorlink.NewReplaySource(r,
		sensorlink.WithInterval(intervalForRate(opts.Rate)),
		sensorlink.WithVerbose(opts.Verbose),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	name := path
	if path == "-" {
		name = "stdin"
	}
	mux := serialmux.NewDisabledSerialMux("replay " + name)
	defer mux.Close()

	res, err := runSession(ctx, opts.rootOptions, cfg, pipeline{
		source: mirrorSource(src, mux),
		finite: true,
		routes: []func(*http.ServeMux){mux.AttachAdminRoutes},
	})
	if opts.NoTUI {
		fmt.Fprintln(cmd.OutOrStdout(), res)
	}
	return err
}
