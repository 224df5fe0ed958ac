package types

import (
	"errors"
	"time"
)

var ErrDraftNotFound = errors.New("draft not found")

// Draft is a persisted in-progress intake form.
type Draft struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	State     FormState `db:"-"` // jsonb, decoded by the repository
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
