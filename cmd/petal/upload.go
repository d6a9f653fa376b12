package main

import (
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"petal/internal/api"
	"petal/internal/config"
)

func newUploadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var mediaType string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return err
			}

			mt := mediaType
			if mt == "" {
				mt = mime.TypeByExtension(filepath.Ext(path))
			}

			return withClient(cfg, func(client *api.Client) error {
				descriptor, err := client.Upload(cmd.Context(), f, info.Size(), mt)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(descriptor)
				}
				return writePlain("%s\n", descriptor.URL)
			})
		},
	}

	cmd.Flags().StringVar(&mediaType, "type", "", "media type (defaults to the file extension's type)")
	return cmd
}
