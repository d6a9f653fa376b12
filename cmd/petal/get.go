package main

import (
	"os"

	"github.com/spf13/cobra"

	"petal/internal/api"
	"petal/internal/config"
)

func newGetCmd(cfg *config.Config) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "get <sha256>",
		Short: "Download a blob by content hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			return withClient(cfg, func(client *api.Client) error {
				_, err := client.Download(cmd.Context(), args[0], out)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to file instead of stdout")
	return cmd
}
