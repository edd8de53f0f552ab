package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqlens/airsync/internal/api"
)

func pollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll [LOCATION]",
		Short: "Fetch the current snapshot once and print it",
		Long: `Fetch the current snapshot for a location over the pull path and
print it as JSON. Useful to verify connectivity and credentials before
running the agent.

Examples:
  # Poll the configured location
  airsync-agent poll

  # Poll a specific location
  airsync-agent poll Mumbai`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			location := cfg.Location
			if len(args) == 1 {
				location = args[0]
			}

			client := api.NewClient(
				cfg.Pull.BaseURL,
				cfg.Pull.RatePerSecond,
				time.Duration(cfg.Pull.TimeoutSec)*time.Second,
				cfg.Pull.RetryCount,
				logger,
			)

			snap, err := client.Current(cmd.Context(), location)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
