package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newSimCmd(a *app) *cobra.Command {
	var (
		listen     string
		dropRate   float64
		replyDelay time.Duration
		seed       int64
		rate       int64
	)
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run the camera simulator until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := a.cfg.Simulator
			flags := cmd.Flags()
			if flags.Changed("listen") {
				sc.Listen = listen
			}
			if flags.Changed("drop-rate") {
				sc.DropRate = dropRate
			}
			if flags.Changed("reply-delay") {
				sc.ReplyDelayMS = int(replyDelay / time.Millisecond)
			}
			if flags.Changed("seed") {
				sc.Seed = seed
			}
			if flags.Changed("rate") {
				sc.RateBytesPerSec = rate
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			sim, stop, err := a.startSimulator(ctx, sc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "camera simulator listening on %s\n", sim.Addr())
			<-ctx.Done()
			stop()

			st := sim.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "received %d, replied %d, dropped %d, unknown %d\n",
				st.Received, st.Replied, st.Dropped, st.Unknown)
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default simulator.listen)")
	cmd.Flags().Float64Var(&dropRate, "drop-rate", 0, "fraction of requests to drop")
	cmd.Flags().DurationVar(&replyDelay, "reply-delay", 0, "delay before each reply")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed for the drop sequence")
	cmd.Flags().Int64Var(&rate, "rate", 0, "reply pacing in bytes per second, 0 for none")
	return cmd
}
