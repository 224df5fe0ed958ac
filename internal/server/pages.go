package server

import (
	"net/http"
)

func (s *Service) handleHome(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessionIdentity(r); ok {
		http.Redirect(w, r, "/intake", http.StatusSeeOther)
		return
	}

	s.redirectToLogin(w, r)
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Service) internalServerError(w http.ResponseWriter) {
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
