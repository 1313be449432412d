package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"camlink/pkg/command"
)

// demoSequence is the bring-up check run against a fresh camera.
var demoSequence = []string{"RESET", "RESET", "IMAGE"}

func newDemoCmd(a *app) *cobra.Command {
	var (
		addr    string
		timeout time.Duration
		withSim bool
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run RESET, RESET, IMAGE against the camera and print each result",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			table, err := a.cfg.CommandTable()
			if err != nil {
				return err
			}
			if withSim {
				sim, stop, err := a.startSimulator(ctx, a.cfg.Simulator)
				if err != nil {
					return err
				}
				defer stop()
				addr = sim.Addr().String()
			}

			ctl, err := a.connect(ctx, addr)
			if err != nil {
				return err
			}
			defer ctl.Close()

			out := cmd.OutOrStdout()
			ok := 0
			for _, name := range demoSequence {
				e, found := table.Lookup(name)
				if !found {
					return fmt.Errorf("command %s is not in the command table", name)
				}
				r := ctl.Submit(ctx, e.Command, timeout)
				printResult(out, name, r)
				if r.Success() {
					ok++
				}
			}
			fmt.Fprintf(out, "%d/%d succeeded\n", ok, len(demoSequence))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "camera address (default remote.address)")
	cmd.Flags().DurationVar(&timeout, "timeout", command.DefaultTimeout, "per-command timeout")
	cmd.Flags().BoolVar(&withSim, "sim", false, "start a simulator on simulator.listen and talk to it")
	return cmd
}
