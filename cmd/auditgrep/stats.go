package main

import (
	"github.com/spf13/cobra"

	"github.com/vaibhaw-/auditgrep/internal/auditgrep/config"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/output"
	"github.com/vaibhaw-/auditgrep/internal/auditgrep/runner"
)

var statsCmd = &cobra.Command{
	Use:   "stats AUDIT_LOG_FILE...",
	Short: "Show size and modification time of audit log files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := config.Get().Output.Format
		if name == "" {
			name = string(output.FormatGrid)
		}
		if flagStatsFormat != "" {
			name = flagStatsFormat
		}
		format, err := output.ParseFormat(name)
		if err != nil {
			return err
		}
		return runner.RunFileStats(args, format, cmd.OutOrStdout())
	},
}

var flagStatsFormat string

func init() {
	statsCmd.Flags().StringVarP(&flagStatsFormat, "format", "f", "", "output format (default from config)")
}
