package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	// Listing is public; a credential, when presented, must still be valid.
	if _, err := s.authenticate(r, false); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	descriptors, err := s.service.ListByOwner(r.Context(), chi.URLParam(r, "pubkey"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, descriptors)
}
