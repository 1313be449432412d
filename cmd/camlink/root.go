package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"camlink/pkg/config"
	"camlink/pkg/control"
	"camlink/pkg/core/netstack"
	"camlink/pkg/observability"
	"camlink/pkg/simulator"
)

// app holds the state shared by subcommands once PersistentPreRunE ran.
type app struct {
	cfgFile      string
	outputFormat string
	verbose      bool

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "camlink",
		Short: "Drive a UDP camera with fixed-shape commands",
		Long: `camlink talks to a camera that answers short ASCII commands with a fixed
number of fixed-size UDP datagrams. Commands are serialised through a single
worker so only one exchange is ever on the wire.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if a.verbose {
				cfg.Log.Level = "debug"
			}
			log, err := observability.SetupLogger(cfg.Log)
			if err != nil {
				return fmt.Errorf("failed to set up logging: %w", err)
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./camlink.yaml or $CAMLINK_CONFIG)")
	root.PersistentFlags().StringVarP(&a.outputFormat, "output", "o", "table", "output format: table, json, yaml")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newDemoCmd(a),
		newSendCmd(a),
		newSimCmd(a),
		newCommandsCmd(a),
		newReportCmd(a),
	)
	return root
}

// connect dials the configured remote, or addr when non-empty.
func (a *app) connect(ctx context.Context, addr string) (*control.Controller, error) {
	r := a.cfg.Remote
	if addr != "" {
		r.Address = addr
	}
	policy, err := control.ParseOverflowPolicy(r.OverflowPolicy)
	if err != nil {
		return nil, err
	}
	d, err := netstack.NewByKind(r.Transport, netstack.Options{UDPReadBuffer: r.SocketBuffer})
	if err != nil {
		return nil, err
	}
	return control.New(ctx, d, r.Address, control.Options{
		QueueCapacity:     r.QueueCapacity,
		Overflow:          policy,
		DefaultTimeout:    r.DefaultTimeout(),
		MaxStaleDatagrams: r.MaxStaleDatagrams,
		Logger:            a.log.Named("control"),
	})
}

// startSimulator runs a simulator from the configured settings until ctx is
// done. The returned stop func closes it and waits for Serve to return.
func (a *app) startSimulator(ctx context.Context, sc config.SimulatorConfig) (*simulator.Simulator, func(), error) {
	sim, err := simulator.New(simulator.Options{
		DropRate:        sc.DropRate,
		Seed:            sc.Seed,
		ReplyDelay:      sc.ReplyDelay(),
		RateBytesPerSec: sc.RateBytesPerSec,
		Burst:           sc.Burst,
		Logger:          a.log.Named("simulator"),
	})
	if err != nil {
		return nil, nil, err
	}
	if err := sim.Listen(ctx, sc.Listen); err != nil {
		return nil, nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sim.Serve(ctx); err != nil {
			a.log.Error("simulator stopped", zap.Error(err))
		}
	}()
	stop := func() {
		_ = sim.Close()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			a.log.Warn("simulator did not stop in time")
		}
	}
	return sim, stop, nil
}

func printResult(w io.Writer, name string, r control.Result) {
	fmt.Fprintf(w, "%-8s %s\n", name, r)
}
