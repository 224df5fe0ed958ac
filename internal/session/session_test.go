package session

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"neurolink/pkg/types"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRequire(t *testing.T) {
	ctx := context.Background()

	_, err := Require(ctx, nil)
	require.ErrorIs(t, err, types.ErrNoIdentity)

	_, err = Require(ctx, NewMemory(nil))
	require.ErrorIs(t, err, types.ErrNoIdentity)

	_, err = Require(ctx, NewMemory(&types.Identity{Token: "t"}))
	require.ErrorIs(t, err, types.ErrNoIdentity)

	identity, err := Require(ctx, NewMemory(&types.Identity{UserID: "7"}))
	require.NoError(t, err)
	assert.Equal(t, "7", identity.UserID)
}

func TestContextProvider(t *testing.T) {
	var p ContextProvider

	_, err := p.Identity(context.Background())
	require.ErrorIs(t, err, types.ErrNoIdentity)

	ctx := WithIdentity(context.Background(), types.Identity{UserID: "12"})
	identity, err := p.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "12", identity.UserID)
}

func TestAuthHeaders(t *testing.T) {
	assert.Equal(t, map[string]string{"Accept": "application/json"}, AuthHeaders(types.Identity{}))
	assert.Equal(t, map[string]string{
		"Accept":        "application/json",
		"Authorization": "Bearer abc",
		"userId":        "3",
	}, AuthHeaders(types.Identity{UserID: "3", Token: "abc"}))
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFile(filepath.Join(t.TempDir(), "nested", "session.json"))

	_, err := store.Identity(ctx)
	require.ErrorIs(t, err, types.ErrNoIdentity)

	want := types.Identity{UserID: "5", Token: "tok", UserName: "Dr Karim", UserRole: types.UserRoleDoctor}
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))

	_, err = store.Identity(ctx)
	require.ErrorIs(t, err, types.ErrNoIdentity)
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login", r.URL.Path)

		var body loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if body.Password != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"ok","userId":42,"name":"Dr Salma","email":"salma@example.tn","role":"MEDECIN","token":"opaque-token"}`))
	}))
	defer srv.Close()

	store := NewMemory(nil)
	inspector, err := NewTokenInspector(context.Background(), "", testLogger())
	require.NoError(t, err)

	client := NewClient(srv.URL, store, inspector, testLogger())

	_, err = client.Login(context.Background(), "salma@example.tn", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	identity, err := client.Login(context.Background(), " salma@example.tn ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "42", identity.UserID)
	assert.Equal(t, types.UserRoleDoctor, identity.UserRole)
	assert.True(t, identity.ExpiresAt.IsZero())

	stored, err := store.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, identity, stored)

	require.NoError(t, client.Logout(context.Background()))
	_, err = store.Identity(context.Background())
	require.ErrorIs(t, err, types.ErrNoIdentity)
}

func TestTokenInspectorReadsExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	tok, err := jwt.NewBuilder().Subject("42").Expiration(exp).Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), []byte("test-secret")))
	require.NoError(t, err)

	inspector, err := NewTokenInspector(context.Background(), "", testLogger())
	require.NoError(t, err)

	got, err := inspector.Expiry(context.Background(), string(signed))
	require.NoError(t, err)
	assert.True(t, exp.Equal(got))

	got, err = inspector.Expiry(context.Background(), "not-a-jwt")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestIdentityExpired(t *testing.T) {
	now := time.Now()

	assert.False(t, types.Identity{}.Expired(now))
	assert.False(t, types.Identity{ExpiresAt: now.Add(time.Minute)}.Expired(now))
	assert.True(t, types.Identity{ExpiresAt: now.Add(-time.Minute)}.Expired(now))
}
