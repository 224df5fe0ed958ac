// Package session carries the authenticated identity explicitly to every
// component that talks to the referral backend.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"neurolink/pkg/types"
)

// Provider resolves the identity for the current caller. Implementations
// return types.ErrNoIdentity when nobody is logged in.
type Provider interface {
	Identity(ctx context.Context) (types.Identity, error)
}

// Store is a Provider the login and logout flows can write to.
type Store interface {
	Provider
	Save(ctx context.Context, identity types.Identity) error
	Clear(ctx context.Context) error
}

// AuthHeaders returns the headers every authenticated backend call carries.
func AuthHeaders(identity types.Identity) map[string]string {
	headers := map[string]string{"Accept": "application/json"}
	if identity.Token != "" {
		headers["Authorization"] = "Bearer " + identity.Token
	}
	if identity.UserID != "" {
		headers["userId"] = identity.UserID
	}
	return headers
}

// Require resolves the identity and fails when it has no user id.
func Require(ctx context.Context, p Provider) (types.Identity, error) {
	if p == nil {
		return types.Identity{}, types.ErrNoIdentity
	}

	identity, err := p.Identity(ctx)
	if err != nil {
		return types.Identity{}, err
	}

	if strings.TrimSpace(identity.UserID) == "" {
		return types.Identity{}, types.ErrNoIdentity
	}

	return identity, nil
}

type contextKey struct{}

// WithIdentity attaches identity to ctx for ContextProvider.
func WithIdentity(ctx context.Context, identity types.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// ContextProvider reads the identity placed on the request context by the
// web front end's session middleware.
type ContextProvider struct{}

func (ContextProvider) Identity(ctx context.Context) (types.Identity, error) {
	identity, ok := ctx.Value(contextKey{}).(types.Identity)
	if !ok {
		return types.Identity{}, types.ErrNoIdentity
	}
	return identity, nil
}

// Memory keeps one identity in process.
type Memory struct {
	mu       sync.RWMutex
	identity *types.Identity
}

func NewMemory(identity *types.Identity) *Memory {
	return &Memory{identity: identity}
}

func (m *Memory) Identity(_ context.Context) (types.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.identity == nil {
		return types.Identity{}, types.ErrNoIdentity
	}
	return *m.identity, nil
}

func (m *Memory) Save(_ context.Context, identity types.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.identity = &identity
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.identity = nil
	return nil
}

// File persists the identity as JSON, used by the CLI between invocations.
type File struct {
	path string
	mu   sync.Mutex
}

// DefaultFilePath is session.json under the user config directory.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "neurolink", "session.json"), nil
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Identity(_ context.Context) (types.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return types.Identity{}, types.ErrNoIdentity
	}
	if err != nil {
		return types.Identity{}, fmt.Errorf("read session file: %w", err)
	}

	var identity types.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return types.Identity{}, fmt.Errorf("decode session file: %w", err)
	}

	return identity, nil
}

func (f *File) Save(_ context.Context, identity types.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(identity, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}

	return nil
}

func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
