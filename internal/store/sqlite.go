package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS gate_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL DEFAULT '',
	counter    INTEGER NOT NULL DEFAULT 0,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS gate_kv_expires_at ON gate_kv (expires_at);
`

// SQLiteStore keeps gate state in a single SQLite file so a single-node
// deployment survives restarts. Times are stored as Unix milliseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time

	done chan struct{}
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database, applies the schema and starts the sweep.
func NewSQLiteStore(dsn string, sweepInterval time.Duration) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now, done: make(chan struct{})}
	if sweepInterval > 0 {
		go s.sweep(sweepInterval)
	}
	return s, nil
}

func (s *SQLiteStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("begin incr: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM gate_kv WHERE key = ? AND expires_at < ?`,
		key, now.UnixMilli()); err != nil {
		return 0, time.Time{}, fmt.Errorf("expire window: %w", err)
	}

	var count, expiresAt int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO gate_kv (key, value, counter, expires_at) VALUES (?, '', 1, ?)
		ON CONFLICT(key) DO UPDATE SET counter = gate_kv.counter + 1
		RETURNING counter, expires_at`,
		key, now.Add(window).UnixMilli()).Scan(&count, &expiresAt)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("increment counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, time.Time{}, fmt.Errorf("commit incr: %w", err)
	}
	return count, time.UnixMilli(expiresAt), nil
}

func (s *SQLiteStore) PutIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin put: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM gate_kv WHERE key = ? AND expires_at < ?`,
		key, now.UnixMilli()); err != nil {
		return false, fmt.Errorf("expire entry: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO gate_kv (key, value, counter, expires_at) VALUES (?, ?, 0, ?)
		ON CONFLICT(key) DO NOTHING`,
		key, value, now.Add(ttl).UnixMilli())
	if err != nil {
		return false, fmt.Errorf("insert entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit put: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM gate_kv WHERE key = ? AND expires_at >= ?`,
		key, s.now().UnixMilli()).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get entry: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gate_kv (key, value, counter, expires_at) VALUES (?, ?, 0, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, counter = 0, expires_at = excluded.expires_at`,
		key, value, s.now().Add(ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("set entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return s.db.Close()
}

func (s *SQLiteStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if _, err := s.db.Exec(`DELETE FROM gate_kv WHERE expires_at < ?`, s.now().UnixMilli()); err != nil {
				slog.Warn("sqlite sweep failed", "error", err)
			}
		}
	}
}
