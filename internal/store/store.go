// Package store persists in-progress intake drafts for the web front end.
package store

import (
	"context"
	"sync"
	"time"

	"neurolink/pkg/types"

	sq "github.com/Masterminds/squirrel"
)

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// Drafts is implemented by the Postgres repository and by Memory.
type Drafts interface {
	Draft(ctx context.Context, id string) (*types.Draft, error)
	SaveDraft(ctx context.Context, draft *types.Draft) error
	DeleteDraft(ctx context.Context, id string) error
	PurgeStale(ctx context.Context, cutoff time.Time) (int64, error)
}

var (
	_ Drafts = (*DraftRepository)(nil)
	_ Drafts = (*Memory)(nil)
)

// Memory keeps drafts in process, used when no database is configured.
type Memory struct {
	mu     sync.RWMutex
	drafts map[string]types.Draft
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{drafts: make(map[string]types.Draft), now: time.Now}
}

func (m *Memory) Draft(_ context.Context, id string) (*types.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	draft, ok := m.drafts[id]
	if !ok {
		return nil, types.ErrDraftNotFound
	}

	draft.State = draft.State.Clone()
	return &draft, nil
}

func (m *Memory) SaveDraft(_ context.Context, draft *types.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if existing, ok := m.drafts[draft.ID]; ok {
		draft.CreatedAt = existing.CreatedAt
	} else {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now

	stored := *draft
	stored.State = draft.State.Clone()
	m.drafts[draft.ID] = stored

	return nil
}

func (m *Memory) DeleteDraft(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.drafts, id)
	return nil
}

func (m *Memory) PurgeStale(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged int64
	for id, draft := range m.drafts {
		if draft.UpdatedAt.Before(cutoff) {
			delete(m.drafts, id)
			purged++
		}
	}

	return purged, nil
}
