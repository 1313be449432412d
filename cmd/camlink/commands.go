package main

import (
	"github.com/spf13/cobra"
)

type commandRow struct {
	Name      string `json:"name" yaml:"name"`
	Count     int    `json:"count" yaml:"count"`
	Size      int    `json:"size" yaml:"size"`
	Total     int    `json:"total" yaml:"total"`
	TimeoutMS int64  `json:"timeout_ms" yaml:"timeout_ms"`
}

func newCommandsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the command table",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := a.cfg.CommandTable()
			if err != nil {
				return err
			}
			var rows []commandRow
			for _, e := range table.Entries() {
				rows = append(rows, commandRow{
					Name:      e.Command.Name(),
					Count:     e.Command.DatagramCount(),
					Size:      e.Command.DatagramSize(),
					Total:     e.Command.Total(),
					TimeoutMS: e.Timeout.Milliseconds(),
				})
			}
			_, err = cmd.OutOrStdout().Write([]byte(newFormatter(a.outputFormat).Format(rows)))
			return err
		},
	}
}
