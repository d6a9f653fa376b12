package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	pubkey, err := s.authenticate(r, true)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	// Declared lengths over the limit are rejected before reading the body.
	if max := s.service.MaxSizeBytes(); r.ContentLength > max {
		s.writeServiceError(w, r, payloadTooLarge(fmt.Errorf("blob exceeds %d bytes", max)))
		return
	}

	descriptor, created, err := s.service.Admit(r.Context(), r.Body, r.Header.Get("Content-Type"), pubkey)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, descriptor)
}

func (s *Server) handleUploadRequirements(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Max-File-Size", strconv.FormatInt(s.service.MaxSizeBytes(), 10))

	allowed := s.service.AllowedMediaTypes()
	if len(allowed) == 0 {
		w.Header().Set("X-Allowed-MIME-Types", "*")
	} else {
		w.Header().Set("X-Allowed-MIME-Types", strings.Join(allowed, ","))
	}

	w.Header().Set("X-TTL", strconv.Itoa(int(s.service.Retention().Seconds())))
	w.WriteHeader(http.StatusOK)
}
