package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
)

func (s *Server) handleAdminPrune(w http.ResponseWriter, r *http.Request) {
	if s.adminToken == "" {
		s.writeServiceError(w, r, unauthorized(fmt.Errorf("admin token is not configured")))
		return
	}
	token := r.Header.Get("X-Admin-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
		s.writeServiceError(w, r, unauthorized(fmt.Errorf("invalid admin token")))
		return
	}

	result, err := s.service.Sweep(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
