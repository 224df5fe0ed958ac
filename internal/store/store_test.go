package store

import (
	"context"
	"testing"
	"time"

	"neurolink/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDrafts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Draft(ctx, "missing")
	require.ErrorIs(t, err, types.ErrDraftNotFound)

	draft := &types.Draft{
		ID:     "d1",
		UserID: "17",
		State: types.FormState{
			FullName: "Salma",
			MRIPhoto: &types.Attachment{URI: "s3://bucket/staging/x", MimeType: "image/png"},
		},
	}
	require.NoError(t, m.SaveDraft(ctx, draft))
	created := draft.CreatedAt
	assert.False(t, created.IsZero())

	draft.State.MRIPhoto.URI = "changed after save"

	got, err := m.Draft(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "Salma", got.State.FullName)
	assert.Equal(t, "s3://bucket/staging/x", got.State.MRIPhoto.URI)

	got.State.FullName = "Salma B."
	require.NoError(t, m.SaveDraft(ctx, got))
	assert.Equal(t, created, got.CreatedAt)

	require.NoError(t, m.DeleteDraft(ctx, "d1"))
	_, err = m.Draft(ctx, "d1")
	require.ErrorIs(t, err, types.ErrDraftNotFound)
}

func TestMemoryPurgeStale(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	require.NoError(t, m.SaveDraft(ctx, &types.Draft{ID: "old"}))

	m.now = func() time.Time { return base.Add(48 * time.Hour) }
	require.NoError(t, m.SaveDraft(ctx, &types.Draft{ID: "fresh"}))

	purged, err := m.PurgeStale(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = m.Draft(ctx, "old")
	assert.ErrorIs(t, err, types.ErrDraftNotFound)
	_, err = m.Draft(ctx, "fresh")
	assert.NoError(t, err)
}

func TestDraftQueries(t *testing.T) {
	query, args, err := psql().
		Select(draftColumns...).
		From(draftTableName).
		Where(sq.Eq{"id": "d1"}).
		ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, user_id, state, created_at, updated_at FROM neurolink.intake_drafts WHERE id = $1", query)
	assert.Equal(t, []any{"d1"}, args)
}
