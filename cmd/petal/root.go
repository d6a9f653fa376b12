package main

import (
	"github.com/spf13/cobra"

	"petal/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var jsonOutput bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "petal",
		Short: "Petal is a content-addressed blob storage server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureDefaultLogger(logLevel)
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(cfg),
		newUploadCmd(cfg, &jsonOutput),
		newListCmd(cfg, &jsonOutput),
		newGetCmd(cfg),
		newRmCmd(cfg),
		newPruneCmd(cfg, &jsonOutput),
	)

	return cmd
}
