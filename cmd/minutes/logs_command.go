package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"minutes/internal/logging"
	"minutes/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Paths.LogDir == "" {
				return fmt.Errorf("log_dir is not configured, the daemon logs to stdout only")
			}
			logPath := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)

			limit := lines
			if limit < 0 {
				limit = 0
			}
			offset := int64(-1)
			if limit == 0 {
				offset = 0
			}

			out := cmd.OutOrStdout()
			printed := false
			for {
				result, err := logs.Tail(cmd.Context(), logPath, logs.TailOptions{
					Offset: offset,
					Limit:  limit,
					Follow: follow,
					Wait:   time.Second,
				})
				if err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					return fmt.Errorf("tail logs: %w", err)
				}
				for _, line := range result.Lines {
					fmt.Fprintln(out, line)
					printed = true
				}
				offset = result.Offset
				limit = 0
				if !follow {
					if !printed {
						fmt.Fprintln(out, "No log entries available")
					}
					return nil
				}
				select {
				case <-cmd.Context().Done():
					return nil
				default:
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	return cmd
}
