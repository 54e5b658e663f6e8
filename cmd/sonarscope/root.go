package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/banshee-data/sonarscope/internal/config"
	"github.com/banshee-data/sonarscope/internal/scope"
)

// rootOptions are the display and presentation flags shared by every
// command that runs a session.
type rootOptions struct {
	Verbose     bool
	ConfigPath  string
	Range       float64
	NoClearPath bool
	NoShadow    bool
	Listen      string
	NoTUI       bool
	Half        bool
	Ping        bool
	WarnRadius  float64
	LogFile     string
	StatsEvery  uint64
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sonarscope",
		Short: "Phosphor-persistence radar scope for angle/distance sensors",
		Long: `sonarscope renders polar sensor readings as a fading radar scope in the
terminal and, optionally, over HTTP.

Readings come from a serial port (run), a recorded log (replay) or the
built-in sweep simulator (simulate).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Range < 0 {
				return fmt.Errorf("invalid --range %v: must be positive", opts.Range)
			}
			if opts.WarnRadius < 0 {
				return fmt.Errorf("invalid --warn-radius %v", opts.WarnRadius)
			}
			return nil
		},
	}

	opts.bindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newReplayCommand(opts))
	cmd.AddCommand(newSimulateCommand(opts))
	cmd.AddCommand(newDecayPlotCommand(opts))
	cmd.AddCommand(newPushConfigCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func (o *rootOptions) bindFlags(f *pflag.FlagSet) {
	f.BoolVarP(&o.Verbose, "verbose", "v", false, "log every parsed reading")
	f.StringVar(&o.ConfigPath, "config", "", "scope config file (.json, .yaml)")
	f.Float64VarP(&o.Range, "range", "r", 0, "display range in sensor units (overrides config)")
	f.BoolVarP(&o.NoClearPath, "no-clear-path", "f", false, "disable the clear-path line in front of contacts")
	f.BoolVarP(&o.NoShadow, "no-shadow", "b", false, "disable the shadow line behind contacts")
	f.StringVar(&o.Listen, "listen", "", "serve the web scope on this address, e.g. :8080")
	f.BoolVar(&o.NoTUI, "no-tui", false, "run without the terminal scope")
	f.BoolVar(&o.Half, "half", false, "terminal half-plane layout (0-180 degrees)")
	f.BoolVar(&o.Ping, "ping", false, "play a ping for close contacts and intrusions")
	f.Float64Var(&o.WarnRadius, "warn-radius", 0, "ping radius in sensor units (default quarter range)")
	f.StringVar(&o.LogFile, "log-file", "", "write logs here while the terminal scope is open")
	f.Uint64Var(&o.StatsEvery, "stats-every", 300, "log tick stats every N frames (0 disables)")
}

// displayConfig loads --config (or the defaults) and applies flag
// overrides. The file is returned too for its serial block.
func (o *rootOptions) displayConfig(flags *pflag.FlagSet) (scope.DisplayConfig, *config.ScopeConfig, error) {
	file := &config.ScopeConfig{}
	if o.ConfigPath != "" {
		loaded, err := config.LoadScopeConfig(o.ConfigPath)
		if err != nil {
			return scope.DisplayConfig{}, nil, err
		}
		file = loaded
	}
	cfg := file.ToDisplayConfig()

	if flags.Changed("range") {
		cfg = cfg.WithRange(o.Range)
	}
	if o.NoClearPath {
		cfg.ClearPathLines = false
	}
	if o.NoShadow {
		cfg.ShadowLines = false
	}
	if err := cfg.Validate(); err != nil {
		return scope.DisplayConfig{}, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, file, nil
}

// redirectLogs keeps log output off the terminal scope. It returns a
// function restoring the previous writer.
func (o *rootOptions) redirectLogs() (func(), error) {
	if o.NoTUI {
		return func() {}, nil
	}
	prev := log.Writer()
	var w io.Writer = io.Discard
	var closer io.Closer
	if o.LogFile != "" {
		f, err := os.OpenFile(o.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}
	log.SetOutput(w)
	return func() {
		log.SetOutput(prev)
		if closer != nil {
			closer.Close()
		}
	}, nil
}

func intervalForRate(rate float64) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / rate)
}
