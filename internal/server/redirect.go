package server

import (
	"net/http"
	"net/url"
)

func (s *Service) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Service) redirectToIntake(w http.ResponseWriter, r *http.Request, notice string) {
	if notice == "" {
		http.Redirect(w, r, "/intake", http.StatusSeeOther)
		return
	}

	v := url.Values{}
	v.Set("notice", notice)
	http.Redirect(w, r, "/intake?"+v.Encode(), http.StatusSeeOther)
}
