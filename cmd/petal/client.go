package main

import (
	"petal/internal/api"
	"petal/internal/config"
)

func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	return fn(api.NewClient(cfg.PublicURL))
}
