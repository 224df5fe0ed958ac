package server

import (
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"neurolink/internal/formstate"
	"neurolink/internal/location"
	"neurolink/internal/session"
	"neurolink/internal/storage"
	"neurolink/internal/store"
	"neurolink/internal/submit"
	"neurolink/internal/wire"
	"neurolink/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/go-playground/form/v4"
	"github.com/gorilla/securecookie"
	"github.com/sirupsen/logrus"
)

//go:embed templates static
var uiFS embed.FS
var decoder = form.NewDecoder()

// Backend is the referral backend as seen by the web front end.
type Backend interface {
	submit.Submitter
	HasResponse(ctx context.Context, formID string) (bool, error)
}

// Authenticator logs a doctor in against the backend.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (types.Identity, error)
}

type Service struct {
	logger    *logrus.Logger
	config    *types.Config
	templates *template.Template

	locations location.Fetcher
	backend   Backend
	auth      Authenticator
	drafts    store.Drafts
	stager    storage.Stager

	cookie       *securecookie.SecureCookie
	policy       formstate.Policy
	submitPolicy submit.Policy
	variant      types.WireVariant

	inflightMu sync.Mutex
	inflight   map[string]struct{}

	server *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	locations location.Fetcher,
	backend Backend,
	auth Authenticator,
	drafts store.Drafts,
	stager storage.Stager,
) (*Service, error) {
	mux := flow.New()

	policy, err := formstate.ParsePolicy(config.CityPolicy)
	if err != nil {
		return nil, err
	}

	cookie, err := newSecureCookie(config, logger)
	if err != nil {
		return nil, err
	}

	submitPolicy := submit.Policy{
		Timeout:     time.Duration(config.SubmitTimeoutSec) * time.Second,
		MaxAttempts: int(config.SubmitMaxAttempts),
		RetryDelay:  time.Duration(config.SubmitRetryDelayMs) * time.Millisecond,
	}

	s := &Service{
		logger:       logger,
		config:       config,
		locations:    locations,
		backend:      backend,
		auth:         auth,
		drafts:       drafts,
		stager:       stager,
		cookie:       cookie,
		policy:       policy,
		submitPolicy: submitPolicy,
		variant:      wire.ParseVariant(config.WireVariant),
		inflight:     make(map[string]struct{}),
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			Handler:           mux,
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	templates, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	s.templates = templates

	s.buildRouter(mux)

	return s, nil
}

func newSecureCookie(config *types.Config, logger logrus.FieldLogger) (*securecookie.SecureCookie, error) {
	hashKey, err := base64.StdEncoding.DecodeString(config.CookieHashKey)
	if err != nil {
		return nil, fmt.Errorf("decode cookie hash key: %w", err)
	}

	blockKey, err := base64.StdEncoding.DecodeString(config.CookieBlockKey)
	if err != nil {
		return nil, fmt.Errorf("decode cookie block key: %w", err)
	}

	if len(hashKey) == 0 {
		logger.Warn("COOKIE_HASH_KEY not set, generated an ephemeral key; sessions end on restart")
		hashKey = securecookie.GenerateRandomKey(32)
	}

	if len(blockKey) == 0 {
		logger.Warn("COOKIE_BLOCK_KEY not set, generated an ephemeral key; sessions end on restart")
		blockKey = securecookie.GenerateRandomKey(32)
	}

	cookie := securecookie.New(hashKey, blockKey).SetSerializer(securecookie.JSONEncoder{})
	if config.SessionMaxAgeSec > 0 {
		cookie.MaxAge(config.SessionMaxAgeSec)
	}

	return cookie, nil
}

func (s *Service) Handler() http.Handler {
	return s.server.Handler
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.Use(s.StripTrailingSlash)
	r.Use(s.LoggingMiddleware)

	r.HandleFunc("/", s.handleHome, http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)

	r.HandleFunc("/login", s.handleGetLogin, http.MethodGet)
	r.HandleFunc("/login", s.handlePostLogin, http.MethodPost)
	r.HandleFunc("/logout", s.handlePostLogout, http.MethodPost)

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireAuth)

		r.HandleFunc("/intake", s.handleGetIntake, http.MethodGet)
		r.HandleFunc("/intake/submitted/:formID", s.handleGetIntakeSubmitted, http.MethodGet)

		// Every intake post is the whole multipart form, file inputs included.
		upload := time.Duration(s.config.UploadTimeoutSec) * time.Second
		r.Group(func(r *flow.Mux) {
			r.Use(s.ExtendDeadlines(upload, upload))
			r.HandleFunc("/intake", s.handlePostIntake, http.MethodPost)
			r.HandleFunc("/intake/region", s.handlePostIntakeRegion, http.MethodPost)
			r.HandleFunc("/intake/media/:kind", s.handlePostIntakeMedia, http.MethodPost)
			r.HandleFunc("/intake/media/:kind/delete", s.handlePostIntakeMediaDelete, http.MethodPost)
		})
		r.Group(func(r *flow.Mux) {
			r.Use(s.ExtendDeadlines(upload, upload+s.submitPolicy.Budget()))
			r.HandleFunc("/intake/submit", s.handlePostIntakeSubmit, http.MethodPost)
		})
	})

	staticRoot, err := fs.Sub(uiFS, "static")
	if err != nil {
		s.logger.WithError(err).Fatal("failed to mount static assets")
	}
	r.Handle("/static/...", http.StripPrefix("/static/", http.FileServer(http.FS(staticRoot))), http.MethodGet)
}

// StartJanitor purges abandoned drafts every hour until ctx ends.
func (s *Service) StartJanitor(ctx context.Context) {
	ttl := time.Duration(s.config.DraftTTLHours) * time.Hour
	if ttl <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purged, err := s.drafts.PurgeStale(ctx, time.Now().Add(-ttl))
				if err != nil {
					s.logger.WithError(err).Error("failed to purge stale drafts")
					continue
				}
				if purged > 0 {
					s.logger.WithField("purged", purged).Info("purged stale drafts")
				}
			}
		}
	}()
}

func loadTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"join": strings.Join,
		"megabytes": func(b int64) string {
			return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
		},
	}

	t := template.New("").Funcs(funcMap)
	err := fs.WalkDir(uiFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}

		data, err := fs.ReadFile(uiFS, path)
		if err != nil {
			return fmt.Errorf("read template %s: %w", path, err)
		}

		if _, err := t.Parse(string(data)); err != nil {
			return fmt.Errorf("parse template %s: %w", path, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return t, nil
}

func (s *Service) identityFromContext(ctx context.Context) (types.Identity, error) {
	return session.Require(ctx, session.ContextProvider{})
}
