package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"petal/internal/api"
	"petal/internal/config"
)

func newListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list [<pubkey>]",
		Short: "List blobs owned by a pubkey",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pubkey := ""
			if len(args) > 0 {
				pubkey = args[0]
			} else {
				pubkey = strings.ToLower(strings.TrimSpace(os.Getenv("PETAL_PUBKEY")))
			}
			if pubkey == "" {
				return fmt.Errorf("pubkey is required: pass it as an argument or set PETAL_PUBKEY")
			}

			return withClient(cfg, func(client *api.Client) error {
				descriptors, err := client.List(cmd.Context(), pubkey)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(descriptors)
				}
				for _, descriptor := range descriptors {
					if err := writePlain("%s  %8d  %-24s  %s\n",
						descriptor.SHA256, descriptor.Size, descriptor.Type, descriptor.URL); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
