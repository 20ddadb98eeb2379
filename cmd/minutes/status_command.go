package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"minutes/internal/jobstate"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the processing state of one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := strings.TrimSpace(args[0])
			if jobID == "" {
				return errors.New("job id is required")
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			var detail jobstate.Detail
			if err := client.getJSON(cmd.Context(), "/api/jobs/"+jobID, &detail); err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, detail)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Job "+detail.JobID, colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range buildJobStatusLines(detail, colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the raw API response as JSON")
	return cmd
}
