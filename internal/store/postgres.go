package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS gate_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL DEFAULT '',
	counter    BIGINT NOT NULL DEFAULT 0,
	expires_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS gate_kv_expires_at ON gate_kv (expires_at);
`

// PostgresStore shares gate state between instances through PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time

	done chan struct{}
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a connection pool, applies the schema and starts the sweep.
func NewPostgresStore(dsn string, maxConns int, sweepInterval time.Duration) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &PostgresStore{pool: pool, now: time.Now, done: make(chan struct{})}
	if sweepInterval > 0 {
		go s.sweep(sweepInterval)
	}
	return s, nil
}

func (s *PostgresStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("begin incr: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM gate_kv WHERE key = $1 AND expires_at < $2`,
		key, now.UnixMilli()); err != nil {
		return 0, time.Time{}, fmt.Errorf("expire window: %w", err)
	}

	var count, expiresAt int64
	err = tx.QueryRow(ctx, `
		INSERT INTO gate_kv (key, value, counter, expires_at) VALUES ($1, '', 1, $2)
		ON CONFLICT (key) DO UPDATE SET counter = gate_kv.counter + 1
		RETURNING counter, expires_at`,
		key, now.Add(window).UnixMilli()).Scan(&count, &expiresAt)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("increment counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("commit incr: %w", err)
	}
	return count, time.UnixMilli(expiresAt), nil
}

func (s *PostgresStore) PutIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	now := s.now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin put: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM gate_kv WHERE key = $1 AND expires_at < $2`,
		key, now.UnixMilli()); err != nil {
		return false, fmt.Errorf("expire entry: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO gate_kv (key, value, counter, expires_at) VALUES ($1, $2, 0, $3)
		ON CONFLICT (key) DO NOTHING`,
		key, value, now.Add(ttl).UnixMilli())
	if err != nil {
		return false, fmt.Errorf("insert entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit put: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM gate_kv WHERE key = $1 AND expires_at >= $2`,
		key, s.now().UnixMilli()).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get entry: %w", err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO gate_kv (key, value, counter, expires_at) VALUES ($1, $2, 0, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, counter = 0, expires_at = EXCLUDED.expires_at`,
		key, value, s.now().Add(ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("set entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.pool.Close()
	return nil
}

func (s *PostgresStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if _, err := s.pool.Exec(ctx, `DELETE FROM gate_kv WHERE expires_at < $1`, s.now().UnixMilli()); err != nil {
				slog.Warn("postgres sweep failed", "error", err)
			}
			cancel()
		}
	}
}
