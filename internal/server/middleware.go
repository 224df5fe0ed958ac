package server

import (
	"net/http"
	"strings"
	"time"

	"neurolink/internal"
	"neurolink/internal/session"
	"neurolink/pkg/types"

	"github.com/sirupsen/logrus"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the connection.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (s *Service) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("http request")
	})
}

// RequireAuth decodes the session cookie and puts the identity on the
// request context for every backend call made while serving it.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := s.sessionIdentity(r)
		if !ok {
			if r.Method == http.MethodGet {
				s.setRedirectCookie(w, r.URL.Path, time.Minute*5)
			}
			s.redirectToLogin(w, r)
			return
		}

		if identity.Expired(time.Now()) {
			s.logger.WithField("user_id", identity.UserID).Info("session token expired")
			s.clearSessionCookie(w)
			s.redirectToLogin(w, r)
			return
		}

		s.logger.WithFields(logrus.Fields{
			"user_id": identity.UserID,
			"role":    identity.UserRole,
		}).Debug("authenticated user")

		ctx := session.WithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) sessionIdentity(r *http.Request) (types.Identity, bool) {
	cookie, err := r.Cookie(internal.COOKIE_SESSION_NAME)
	if err != nil {
		s.logger.WithError(err).Debug("no session cookie found")
		return types.Identity{}, false
	}

	var identity types.Identity
	if err := s.cookie.Decode(internal.COOKIE_SESSION_NAME, cookie.Value, &identity); err != nil {
		s.logger.WithError(err).Warn("failed to decode session cookie")
		return types.Identity{}, false
	}

	if identity.UserID == "" {
		return types.Identity{}, false
	}

	return identity, true
}

func (s *Service) StripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Only strip if path is not root and has trailing slash
		if path != "/" && strings.HasSuffix(path, "/") {
			newURL := *r.URL
			newURL.Path = strings.TrimSuffix(path, "/")

			http.Redirect(w, r, newURL.String(), http.StatusMovedPermanently)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ExtendDeadlines replaces the server wide read and write timeouts for
// routes that take large bodies or wait on the backend.
func (s *Service) ExtendDeadlines(read, write time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := http.NewResponseController(w)
			now := time.Now()

			if read > 0 {
				if err := rc.SetReadDeadline(now.Add(read)); err != nil {
					s.logger.WithError(err).Debug("read deadline not extended")
				}
			}
			if write > 0 {
				if err := rc.SetWriteDeadline(now.Add(write)); err != nil {
					s.logger.WithError(err).Debug("write deadline not extended")
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
