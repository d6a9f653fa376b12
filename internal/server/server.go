package server

import (
	"log/slog"
	"net/http"
	"time"

	"petal/internal/auth"
	"petal/internal/config"
	"petal/internal/objstore"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 5 * time.Minute
	writeTimeout      = 5 * time.Minute
	idleTimeout       = 60 * time.Second
)

// Server wraps HTTP handlers for the petal blob API.
type Server struct {
	addr       string
	store      objstore.Store
	service    *BlobService
	verifier   *auth.Verifier
	logger     *slog.Logger
	adminToken string
}

// New creates a new server instance from the loaded configuration.
func New(cfg *config.Config, store objstore.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	service := NewBlobService(store, BlobServiceOptions{
		PublicURL:         cfg.PublicURL,
		MaxSizeBytes:      cfg.Upload.MaxSizeBytes,
		AllowedMediaTypes: cfg.Upload.AllowedMediaTypes,
		Retention:         cfg.Retention(),
	}, logger)

	return &Server{
		addr:       cfg.ListenAddr,
		store:      store,
		service:    service,
		verifier:   auth.NewVerifier(cfg.Auth.AllowedPubKeys, cfg.MaxEventAge(), nil),
		logger:     logger,
		adminToken: cfg.Auth.AdminToken,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return server.ListenAndServe()
}

// authenticate verifies the Authorization header and returns the pubkey.
// With required false an absent header yields an empty pubkey; a present but
// invalid header is rejected either way.
func (s *Server) authenticate(r *http.Request, required bool) (string, error) {
	pubkey, err := s.verifier.Verify(r.Header.Get("Authorization"), required)
	if err != nil {
		return "", unauthorized(err)
	}
	return pubkey, nil
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
