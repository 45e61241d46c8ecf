package store

import (
	"fmt"

	"linkgate/internal/models"
)

// New instantiates a store backend from configuration.
// Supported backends:
//   - memory: process-local map (single instance)
//   - redis: shared state with native key expiry
//   - sqlite: single-node state that survives restarts
//   - postgres: shared state through PostgreSQL
func New(cfg models.StorageConfig) (Store, error) {
	switch cfg.Type {
	case models.StorageTypeMemory:
		return NewMemoryStore(cfg.SweepInterval), nil
	case models.StorageTypeRedis:
		return NewRedisStore(RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Prefix:   cfg.KeyPrefix,
		})
	case models.StorageTypeSQLite:
		return NewSQLiteStore(cfg.Database.DSN, cfg.SweepInterval)
	case models.StorageTypePostgres:
		return NewPostgresStore(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.SweepInterval)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// SupportedTypes returns every backend New accepts.
func SupportedTypes() []string {
	return []string{models.StorageTypeMemory, models.StorageTypeRedis, models.StorageTypeSQLite, models.StorageTypePostgres}
}
