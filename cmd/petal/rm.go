package main

import (
	"github.com/spf13/cobra"

	"petal/internal/api"
	"petal/internal/config"
)

func newRmCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <sha256>",
		Short: "Delete an owned blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				return client.Delete(cmd.Context(), args[0])
			})
		},
	}
}
