package main

import (
	"github.com/spf13/cobra"

	"petal/internal/api"
	"petal/internal/config"
)

func newPruneCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Sweep expired blobs (requires the admin token)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				result, err := client.Prune(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(result)
				}
				return writePlain("scanned %d, expired %d, deleted %d, failed %d, reclaimed %d bytes\n",
					result.ScannedCount, result.ExpiredCount, result.DeletedCount,
					result.FailedCount, result.ReclaimedBytes)
			})
		},
	}
}
