package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"camlink/pkg/protocol/codec"
	"camlink/pkg/report"
)

type reportRow struct {
	At       string `json:"at" yaml:"at"`
	Command  string `json:"command" yaml:"command"`
	Success  bool   `json:"success" yaml:"success"`
	Received int    `json:"received" yaml:"received"`
	Expected int    `json:"expected" yaml:"expected"`
	TookMs   int64  `json:"took_ms" yaml:"took_ms"`
	Kind     string `json:"kind,omitempty" yaml:"kind,omitempty"`
}

// formatFromPath guesses the report format from the file extension.
func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cbor":
		return "cbor"
	case ".pb", ".proto", ".bin":
		return "proto"
	default:
		return "json"
	}
}

func newReportCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "report FILE",
		Short: "Print the records of a report written by send --report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if format == "" {
				format = formatFromPath(path)
			}
			reg, err := codec.NewRegistry()
			if err != nil {
				return err
			}
			c, err := reg.Lookup(format)
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open report: %w", err)
			}
			defer f.Close()

			recs, err := report.NewReader(f, c).ReadAll()
			if err != nil {
				return err
			}
			rows := make([]reportRow, 0, len(recs))
			for _, r := range recs {
				rows = append(rows, reportRow{
					At:       time.UnixMilli(r.AtUnixMs).UTC().Format(time.RFC3339Nano),
					Command:  r.Command,
					Success:  r.Success,
					Received: r.Received,
					Expected: r.Expected,
					TookMs:   r.TookMs,
					Kind:     r.Kind,
				})
			}
			_, err = cmd.OutOrStdout().Write([]byte(newFormatter(a.outputFormat).Format(rows)))
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "report format: json, cbor, proto (default from the file extension)")
	return cmd
}
