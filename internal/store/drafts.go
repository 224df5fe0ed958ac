package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"neurolink/internal/utils"
	"neurolink/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const draftTableName = "neurolink.intake_drafts"

// draftRow keeps the jsonb state undecoded so scany maps a single column.
type draftRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	State     []byte    `db:"state"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

var draftColumns = utils.StructTagValues(draftRow{})

type DraftRepository struct {
	pool *pgxpool.Pool
}

func NewDraftRepository(pool *pgxpool.Pool) *DraftRepository {
	return &DraftRepository{pool: pool}
}

func (r *DraftRepository) Draft(ctx context.Context, id string) (*types.Draft, error) {
	query, args, err := psql().
		Select(draftColumns...).
		From(draftTableName).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate draft query: %w", err)
	}

	var row draftRow
	err = pgxscan.Get(ctx, r.pool, &row, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrDraftNotFound
		}
		return nil, fmt.Errorf("failed to fetch draft: %w", err)
	}

	draft := &types.Draft{
		ID:        row.ID,
		UserID:    row.UserID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}

	if err := json.Unmarshal(row.State, &draft.State); err != nil {
		return nil, fmt.Errorf("failed to decode draft state: %w", err)
	}

	return draft, nil
}

// SaveDraft inserts or replaces the draft keyed by its id.
func (r *DraftRepository) SaveDraft(ctx context.Context, draft *types.Draft) error {
	state, err := json.Marshal(draft.State)
	if err != nil {
		return fmt.Errorf("failed to encode draft state: %w", err)
	}

	now := time.Now()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now

	row := draftRow{
		ID:        draft.ID,
		UserID:    draft.UserID,
		State:     state,
		CreatedAt: draft.CreatedAt,
		UpdatedAt: draft.UpdatedAt,
	}

	query, args, err := psql().
		Insert(draftTableName).
		SetMap(utils.StructToMap(row)).
		Suffix("ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, state = EXCLUDED.state, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate save draft query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}

	return nil
}

func (r *DraftRepository) DeleteDraft(ctx context.Context, id string) error {
	query, args, err := psql().
		Delete(draftTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete draft query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}

	return nil
}

// PurgeStale removes drafts untouched since before cutoff.
func (r *DraftRepository) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := psql().
		Delete(draftTableName).
		Where(sq.Lt{"updated_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate purge drafts query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge drafts: %w", err)
	}

	return tag.RowsAffected(), nil
}
