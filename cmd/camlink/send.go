package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"camlink/pkg/command"
	"camlink/pkg/control"
	"camlink/pkg/protocol/codec"
	"camlink/pkg/report"
)

func newSendCmd(a *app) *cobra.Command {
	var (
		addr       string
		timeout    time.Duration
		parallel   bool
		reportPath string
		format     string
		omitData   bool
	)
	cmd := &cobra.Command{
		Use:   "send NAME [NAME...]",
		Short: "Send named commands from the command table",
		Long: `Send submits each named command and prints its result. With --parallel all
commands are submitted at once; they still execute one at a time in
submission order. --report writes one record per command.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			table, err := a.cfg.CommandTable()
			if err != nil {
				return err
			}
			entries := make([]command.Entry, len(args))
			for i, name := range args {
				e, ok := table.Lookup(name)
				if !ok {
					return fmt.Errorf("unknown command %q", name)
				}
				if timeout > 0 {
					e.Timeout = timeout
				}
				entries[i] = e
			}

			var rw *report.Writer
			if reportPath != "" {
				reg, err := codec.NewRegistry()
				if err != nil {
					return err
				}
				c, err := reg.Lookup(format)
				if err != nil {
					return err
				}
				f, err := os.Create(reportPath)
				if err != nil {
					return fmt.Errorf("create report: %w", err)
				}
				defer f.Close()
				rw = report.NewWriter(f, c)
			}

			ctl, err := a.connect(ctx, addr)
			if err != nil {
				return err
			}
			defer ctl.Close()

			type outcome struct {
				res  control.Result
				at   time.Time
				took time.Duration
			}
			outcomes := make([]outcome, len(entries))
			run := func(i int) {
				at := time.Now()
				r := ctl.Submit(ctx, entries[i].Command, entries[i].Timeout)
				outcomes[i] = outcome{res: r, at: at, took: time.Since(at)}
			}
			if parallel {
				var wg sync.WaitGroup
				for i := range entries {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						run(i)
					}(i)
				}
				wg.Wait()
			} else {
				for i := range entries {
					run(i)
				}
			}

			out := cmd.OutOrStdout()
			failed := 0
			for i, o := range outcomes {
				printResult(out, entries[i].Command.Name(), o.res)
				if !o.res.Success() {
					failed++
				}
				if rw != nil {
					rec := report.NewRecord(entries[i].Command, o.res, o.at, o.took, report.Options{OmitData: omitData})
					if err := rw.Write(rec); err != nil {
						return err
					}
				}
			}
			if rw != nil {
				a.log.Info("report written", zap.String("path", reportPath), zap.String("format", format), zap.Int("records", rw.Count()))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d commands failed", failed, len(entries))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "camera address (default remote.address)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-command timeout (default from the command table)")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "submit all commands concurrently")
	cmd.Flags().StringVar(&reportPath, "report", "", "write result records to this file")
	cmd.Flags().StringVar(&format, "format", "json", "report format: json, cbor, proto")
	cmd.Flags().BoolVar(&omitData, "omit-data", false, "leave payload bytes out of the report")
	return cmd
}
