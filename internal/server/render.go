package server

import (
	"net/http"

	"neurolink/internal/session"
	"neurolink/pkg/types"
)

func (s *Service) renderTemplate(w http.ResponseWriter, r *http.Request, templateName string, data any) error {
	identity, err := session.ContextProvider{}.Identity(r.Context())
	if err != nil {
		identity = types.Identity{}
	}

	if setter, ok := data.(types.NavbarDataSetter); ok {
		setter.SetNavbarData(types.NavbarData{
			IsAuthenticated: identity.UserID != "",
			UserID:          identity.UserID,
			UserEmail:       identity.UserEmail,
			UserName:        identity.UserName,
			UserRole:        identity.UserRole,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return s.templates.ExecuteTemplate(w, templateName, data)
}
