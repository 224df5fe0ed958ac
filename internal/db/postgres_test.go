package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "migrations/001_intake_drafts.sql", names[0])

	sql, err := migrationFS.ReadFile(names[0])
	require.NoError(t, err)
	assert.Contains(t, string(sql), "neurolink.intake_drafts")
}
