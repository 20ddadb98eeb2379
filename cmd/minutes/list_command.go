package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"minutes/internal/jobstate"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var completedOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs known to the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			path := "/api/jobs"
			if completedOnly {
				path = "/api/meetings"
			}
			var jobs []jobstate.Summary
			if err := client.getJSON(cmd.Context(), path, &jobs); err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, jobs)
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				if completedOnly {
					fmt.Fprintln(out, "No completed meetings found")
				} else {
					fmt.Fprintln(out, "No jobs found")
				}
				return nil
			}
			fmt.Fprintln(out, renderTable(jobListHeaders, buildJobRows(jobs), jobListAlignments))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the raw API response as JSON")
	cmd.Flags().BoolVar(&completedOnly, "completed", false, "Show only completed meetings")
	return cmd
}
