package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const blobCacheControl = "public, max-age=31536000, immutable"

func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	rc, blob, err := s.service.Fetch(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	s.setBlobHeaders(w, blob.MediaType, blob.SizeBytes, blob.SHA256)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.log().Error("stream blob", "sha256", blob.SHA256, "error", err)
	}
}

func (s *Server) handleHeadBlob(w http.ResponseWriter, r *http.Request) {
	blob, err := s.service.Stat(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.setBlobHeaders(w, blob.MediaType, blob.SizeBytes, blob.SHA256)
	if !blob.Uploaded.IsZero() {
		w.Header().Set("Last-Modified", blob.Uploaded.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeleteBlob(w http.ResponseWriter, r *http.Request) {
	pubkey, err := s.authenticate(r, true)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if err := s.service.Delete(r.Context(), chi.URLParam(r, "hash"), pubkey); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setBlobHeaders(w http.ResponseWriter, mediaType string, size int64, hash string) {
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("ETag", fmt.Sprintf("%q", hash))
	w.Header().Set("Cache-Control", blobCacheControl)
}
