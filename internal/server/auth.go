package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"neurolink/internal"
	"neurolink/internal/session"
	"neurolink/pkg/types"
)

type loginForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
}

func (s *Service) handleGetLogin(w http.ResponseWriter, r *http.Request) {

	if _, ok := s.sessionIdentity(r); ok {
		s.logger.Info("user is already logged in, redirecting to intake")
		http.Redirect(w, r, "/intake", http.StatusSeeOther)
		return
	}

	data := &types.LoginPageData{
		BasePageData: types.BasePageData{Title: "Sign in"},
		Message:      r.URL.Query().Get("notice"),
	}

	if err := s.renderTemplate(w, r, "page.login", data); err != nil {
		s.logger.WithError(err).Error("failed to render login page")
		s.internalServerError(w)
		return
	}
}

func (s *Service) handlePostLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		s.logger.WithError(err).Error("failed to parse form")
		s.renderLoginError(w, r, "", "Invalid form submission.")
		return
	}

	var in loginForm
	if err := decoder.Decode(&in, r.PostForm); err != nil {
		s.logger.WithError(err).Error("failed to decode form")
		s.renderLoginError(w, r, "", "Invalid form submission.")
		return
	}

	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.Password == "" {
		s.renderLoginError(w, r, in.Email, "Email and password are required.")
		return
	}

	identity, err := s.auth.Login(ctx, in.Email, in.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			s.renderLoginError(w, r, in.Email, "Invalid email or password.")
			return
		}
		s.logger.WithError(err).Error("failed to login user")
		s.renderLoginError(w, r, in.Email, "Login failed. Please try again.")
		return
	}

	encoded, err := s.cookie.Encode(internal.COOKIE_SESSION_NAME, identity)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode session cookie")
		s.internalServerError(w)
		return
	}

	maxAge := s.config.SessionMaxAgeSec
	if !identity.ExpiresAt.IsZero() {
		if remaining := int(time.Until(identity.ExpiresAt).Seconds()); remaining < maxAge || maxAge <= 0 {
			maxAge = remaining
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     internal.COOKIE_SESSION_NAME,
		Value:    encoded,
		HttpOnly: true,
		Secure:   s.secureCookies(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
		Path:     "/",
	})

	// Check to see if this login attempt was the result of an unauthed redirect
	redirectCookie, err := r.Cookie(internal.COOKIE_REDIRECT_NAME)
	if err == nil && strings.HasPrefix(redirectCookie.Value, "/") && !strings.HasPrefix(redirectCookie.Value, "//") {
		s.clearRedirectCookie(w)
		http.Redirect(w, r, redirectCookie.Value, http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/intake", http.StatusSeeOther)
}

func (s *Service) handlePostLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)
	s.clearDraftCookie(w)
	http.Redirect(w, r, "/login?notice=You+have+been+signed+out.", http.StatusSeeOther)
}

func (s *Service) renderLoginError(w http.ResponseWriter, r *http.Request, email, msg string) {
	data := &types.LoginPageData{
		BasePageData: types.BasePageData{Title: "Sign in"},
		Email:        email,
		Error:        msg,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	if err := s.renderTemplate(w, r, "page.login", data); err != nil {
		s.logger.WithError(err).Error("failed to render login page")
	}
}

func (s *Service) secureCookies() bool {
	return s.config.Environment != "development"
}

func (s *Service) clearSessionCookie(w http.ResponseWriter) {
	s.expireCookie(w, internal.COOKIE_SESSION_NAME)
}

func (s *Service) setRedirectCookie(w http.ResponseWriter, path string, age time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     internal.COOKIE_REDIRECT_NAME,
		Value:    path,
		HttpOnly: true,
		Secure:   s.secureCookies(),
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   int(age.Seconds()),
	})
}

func (s *Service) clearRedirectCookie(w http.ResponseWriter) {
	s.expireCookie(w, internal.COOKIE_REDIRECT_NAME)
}

func (s *Service) expireCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		HttpOnly: true,
		Secure:   s.secureCookies(),
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
}
