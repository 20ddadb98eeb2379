package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"minutes/internal/jobstate"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check whether the daemon is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			var payload struct {
				Status string `json:"status"`
			}
			if err := client.getJSON(cmd.Context(), "/health", &payload); err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, payload)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			kind := statusOK
			if payload.Status != "ok" {
				kind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Daemon", kind,
				fmt.Sprintf("%s at %s", payload.Status, client.baseURL), colorize))

			// Job counts are best effort; an error here should not mask a
			// healthy daemon.
			var jobs []jobstate.Summary
			if err := client.getJSON(cmd.Context(), "/api/jobs", &jobs); err == nil {
				counts := formatJobCounts(countJobStatuses(jobs))
				fmt.Fprintln(out, renderStatusLine("Jobs", statusInfo, counts, colorize))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the raw API response as JSON")
	return cmd
}
