package store

import (
	"testing"

	"linkgate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		s, err := New(models.StorageConfig{Type: models.StorageTypeMemory})
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &MemoryStore{}, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := models.StorageConfig{Type: models.StorageTypeSQLite}
		cfg.Database.DSN = ":memory:"
		s, err := New(cfg)
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &SQLiteStore{}, s)
	})

	t.Run("sqlite without dsn", func(t *testing.T) {
		_, err := New(models.StorageConfig{Type: models.StorageTypeSQLite})
		assert.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := New(models.StorageConfig{Type: "etcd"})
		assert.ErrorContains(t, err, "unsupported storage type")
	})
}

func TestSupportedTypes(t *testing.T) {
	assert.ElementsMatch(t, []string{"memory", "redis", "sqlite", "postgres"}, SupportedTypes())
}
