package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banshee-data/sonarscope/internal/sensorlink"
	"github.com/banshee-data/sonarscope/internal/serialmux"
)

type runOptions struct {
	*rootOptions
	Port      string
	Baud      int
	ListPorts bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Draw readings from a serial sensor",
		Long: `Open a serial port and draw every "<degrees>,<distance>" line it sends.

Examples:
  sonarscope run --port /dev/ttyUSB0
  sonarscope run --port /dev/ttyACM0 --baud 9600 -r 200 --listen :8080
  sonarscope run --list-ports`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.ListPorts {
				return listPorts(cmd)
			}
			return runSerial(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Port, "port", "p", "/dev/ttyUSB0", "serial device")
	cmd.Flags().IntVar(&opts.Baud, "baud", 0, "baud rate (overrides config, default 115200)")
	cmd.Flags().BoolVar(&opts.ListPorts, "list-ports", false, "list serial devices and exit")
	return cmd
}

func listPorts(cmd *cobra.Command) error {
	ports, err := serialmux.ListPorts()
	if err != nil {
		return fmt.Errorf("list ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found.")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}

func runSerial(cmd *cobra.Command, opts *runOptions) error {
	cfg, file, err := opts.displayConfig(cmd.Flags())
	if err != nil {
		return err
	}
	portOpts := file.GetSerial()
	if opts.Baud != 0 {
		portOpts.BaudRate = opts.Baud
	}

	restore, err := opts.redirectLogs()
	if err != nil {
		return err
	}
	defer restore()

	mux, err := serialmux.NewRealSerialMux(opts.Port, portOpts)
	if err != nil {
		return err
	}
	defer mux.Close()

	src := sensorlink.NewLineSource(mux, opts.Verbose)
	defer src.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := runSession(ctx, opts.rootOptions, cfg, pipeline{
		source:     src,
		finite:     true,
		background: []func(context.Context) error{mux.Monitor},
		routes:     []func(*http.ServeMux){mux.AttachAdminRoutes},
	})
	if opts.NoTUI {
		fmt.Fprintln(cmd.OutOrStdout(), res)
	}
	return err
}
