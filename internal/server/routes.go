package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.withRequestLogging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "HEAD", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Admin-Token"},
		ExposedHeaders: []string{"Content-Length", "X-Max-File-Size", "X-Allowed-MIME-Types", "X-TTL"},
		MaxAge:         86400,
	}))

	// Liveness.
	r.Get("/", s.handleRoot)

	// Upload.
	r.Put("/upload", s.handleUpload)
	r.Head("/upload", s.handleUploadRequirements)

	// Ownership listing.
	r.Get("/list/{pubkey}", s.handleList)

	// Admin.
	r.Post("/admin/prune", s.handleAdminPrune)

	// Blob by content hash, optional file extension.
	r.Get("/{hash}", s.handleGetBlob)
	r.Head("/{hash}", s.handleHeadBlob)
	r.Delete("/{hash}", s.handleDeleteBlob)

	return r
}
