package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/sonarscope/internal/config"
	"github.com/banshee-data/sonarscope/internal/viewer/web"
)

type pushConfigOptions struct {
	Server  string
	Timeout time.Duration
}

func newPushConfigCommand() *cobra.Command {
	opts := &pushConfigOptions{}

	cmd := &cobra.Command{
		Use:   "push-config <file>",
		Short: "Reconfigure a running scope over HTTP",
		Long: `Load a scope config file and POST it to a scope started with --listen.
Only the keys present in the file change. The running scope applies the
result on its next tick and starts a new session.

Examples:
  sonarscope push-config scope.yaml --server http://radar.local:8080`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPushConfig(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Server, "server", "http://localhost:8080", "scope base URL")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

func runPushConfig(cmd *cobra.Command, opts *pushConfigOptions, path string) error {
	patch, err := config.LoadScopeConfig(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	client := web.NewClient(opts.Server, nil)
	applied, err := client.PushConfig(ctx, patch)
	if err != nil {
		return fmt.Errorf("push config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# accepted by %s\n", opts.Server)
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(applied); err != nil {
		return err
	}
	return enc.Close()
}
