package store

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getPostgresDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

func TestPostgresStoreRequiresDSN(t *testing.T) {
	_, err := NewPostgresStore("", 0, 0)
	assert.Error(t, err)
}

func TestPostgresStoreInvalidDSN(t *testing.T) {
	_, err := NewPostgresStore("postgres://invalid:5432/nonexistent?connect_timeout=1", 0, 0)
	assert.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	dsn := getPostgresDSN(t)
	s, err := NewPostgresStore(dsn, 2, 0)
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s, uuid.NewString()+":")
}
