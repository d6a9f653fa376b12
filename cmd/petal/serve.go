package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"petal/internal/config"
	"petal/internal/objstore"
	"petal/internal/server"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the petal blob server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}

			logger := slog.Default().With("component", "server")

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			logger.Info("store ready", "backend", cfg.Store.Backend)
			return server.New(cfg, store, logger).ListenAndServe()
		},
	}
}

func openStore(ctx context.Context, cfg *config.Config) (objstore.Store, error) {
	switch cfg.Store.Backend {
	case "local":
		root := cfg.Store.Path
		if root == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			root = filepath.Join(home, ".petal", "blobs")
		}
		return objstore.NewLocal(root)
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(home, ".petal", "petal.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		return objstore.OpenSQLite(path)
	case "s3":
		return objstore.NewS3(ctx, objstore.S3Options{
			Endpoint:  cfg.Store.S3Endpoint,
			Bucket:    cfg.Store.S3Bucket,
			AccessKey: cfg.Store.S3AccessKey,
			SecretKey: cfg.Store.S3SecretKey,
			Region:    cfg.Store.S3Region,
			UseSSL:    cfg.Store.S3UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
