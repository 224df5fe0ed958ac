package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"neurolink/pkg/types"

	"github.com/go-resty/resty/v2"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/sirupsen/logrus"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string      `json:"message"`
	UserID  json.Number `json:"userId"`
	Name    string      `json:"name"`
	Email   string      `json:"email"`
	Role    string      `json:"role"`
	Token   string      `json:"token"`
}

// Client runs the login and logout flows against the backend and writes
// the result to a Store.
type Client struct {
	http      *resty.Client
	store     Store
	inspector *TokenInspector
	logger    logrus.FieldLogger
}

func NewClient(baseURL string, store Store, inspector *TokenInspector, logger logrus.FieldLogger) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(15*time.Second).
			SetHeader("Accept", "application/json"),
		store:     store,
		inspector: inspector,
		logger:    logger,
	}
}

// Login authenticates and persists the identity. A client without a store
// only returns it.
func (c *Client) Login(ctx context.Context, email, password string) (types.Identity, error) {
	var out loginResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(loginRequest{Email: strings.TrimSpace(email), Password: password}).
		SetResult(&out).
		Post("/api/auth/login")
	if err != nil {
		return types.Identity{}, fmt.Errorf("failed to call login endpoint: %w", err)
	}

	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		return types.Identity{}, ErrInvalidCredentials
	}

	if resp.IsError() {
		return types.Identity{}, fmt.Errorf("login failed with status %d: %s", resp.StatusCode(), errorMessage(resp.Body()))
	}

	identity := types.Identity{
		UserID:    out.UserID.String(),
		Token:     out.Token,
		UserName:  out.Name,
		UserEmail: out.Email,
		UserRole:  types.UserRole(out.Role),
	}

	if identity.UserID == "" {
		return types.Identity{}, fmt.Errorf("login response carried no user id")
	}

	if c.inspector != nil && identity.Token != "" {
		expiresAt, err := c.inspector.Expiry(ctx, identity.Token)
		if err != nil {
			return types.Identity{}, fmt.Errorf("failed to verify access token: %w", err)
		}
		identity.ExpiresAt = expiresAt
	}

	if c.store != nil {
		if err := c.store.Save(ctx, identity); err != nil {
			return types.Identity{}, fmt.Errorf("failed to persist session: %w", err)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"user_id": identity.UserID,
		"role":    identity.UserRole,
	}).Info("user logged in")

	return identity, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.Clear(ctx)
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(body))
}

// TokenInspector reads the expiry of backend issued JWTs. With a key set
// URL the signature is verified, without one the token is only decoded.
type TokenInspector struct {
	cache   *jwk.Cache
	jwksURL string
	logger  logrus.FieldLogger
}

func NewTokenInspector(ctx context.Context, jwksURL string, logger logrus.FieldLogger) (*TokenInspector, error) {
	i := &TokenInspector{jwksURL: jwksURL, logger: logger}
	if jwksURL == "" {
		return i, nil
	}

	cache, err := jwk.NewCache(ctx, httprc.NewClient())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jwk cache: %w", err)
	}

	if err := cache.Register(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("failed to register jwks url with cache: %w", err)
	}

	i.cache = cache
	return i, nil
}

// Expiry returns the token's exp claim, zero when the token carries none
// or is not a JWT at all and no key set is configured.
func (i *TokenInspector) Expiry(ctx context.Context, raw string) (time.Time, error) {
	var (
		token jwt.Token
		err   error
	)

	if i.cache != nil {
		set, lookupErr := i.cache.Lookup(ctx, i.jwksURL)
		if lookupErr != nil {
			return time.Time{}, fmt.Errorf("failed to fetch JWKS: %w", lookupErr)
		}
		token, err = jwt.Parse([]byte(raw), jwt.WithKeySet(set), jwt.WithValidate(true))
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse JWT: %w", err)
		}
	} else {
		token, err = jwt.ParseInsecure([]byte(raw))
		if err != nil {
			i.logger.WithError(err).Debug("access token is not a decodable JWT")
			return time.Time{}, nil
		}
	}

	exp, ok := token.Expiration()
	if !ok {
		return time.Time{}, nil
	}
	return exp, nil
}
