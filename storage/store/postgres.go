package store

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"cchain/chain"
)

// PostgresStore implements Store on top of a pgx connection pool.
// Records are ordered by a serial sequence column; the insert order is
// the chain order.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS commit_records (
    seq        BIGSERIAL PRIMARY KEY,
    hash       TEXT NOT NULL,
    type       TEXT NOT NULL,
    message    TEXT NOT NULL,
    user_id    TEXT NOT NULL,
    ts         TEXT NOT NULL,
    prev       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chain_checkpoints (
    id         BIGSERIAL PRIMARY KEY,
    tail_hash  TEXT NOT NULL,
    records    INTEGER NOT NULL,
    valid      BOOLEAN NOT NULL,
    reason     TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// NewPostgresStore connects to PostgreSQL and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string, minConns, maxConns int, logger *log.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}
	poolCfg.MinConns = int32(minConns)
	poolCfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.ConnectConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	logger.Printf("PostgreSQL store initialized (min_conns=%d, max_conns=%d)", minConns, maxConns)
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// GetAll returns every record in chain order.
func (s *PostgresStore) GetAll(ctx context.Context) ([]chain.CommitRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT hash, type, message, user_id, ts, prev FROM commit_records ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query commit records: %w", err)
	}
	defer rows.Close()

	var records []chain.CommitRecord
	for rows.Next() {
		var rec chain.CommitRecord
		if err := rows.Scan(&rec.Hash, &rec.Type, &rec.Message, &rec.User, &rec.Timestamp, &rec.Prev); err != nil {
			return nil, fmt.Errorf("failed to scan commit record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read commit records: %w", err)
	}
	return records, nil
}

// Tail returns the last record's hash, or the sentinel for an empty chain.
func (s *PostgresStore) Tail(ctx context.Context) (string, error) {
	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT hash FROM commit_records ORDER BY seq DESC LIMIT 1`).Scan(&hash)
	if err == pgx.ErrNoRows {
		return chain.SentinelPrev, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query chain tail: %w", err)
	}
	return hash, nil
}

// Append adds one record unconditionally.
func (s *PostgresStore) Append(ctx context.Context, rec chain.CommitRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO commit_records (hash, type, message, user_id, ts, prev)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.Hash, rec.Type, rec.Message, rec.User, rec.Timestamp, rec.Prev)
	if err != nil {
		return fmt.Errorf("failed to insert commit record: %w", err)
	}
	return nil
}

// appendLockKey is the advisory lock key serializing conditional appends.
const appendLockKey = int64(0x63636861696e) // "cchain"

// AppendWithTail inserts the record only if the current tail still equals
// expectedPrev. Conditional appends are serialized with a transaction-scoped
// advisory lock: a concurrent appender blocks until the winner commits, then
// re-reads the tail and observes the new record, so the loser gets
// ErrTailMoved instead of forking the chain. Plain Append stays lock-free,
// keeping the unguarded mode's documented behavior.
func (s *PostgresStore) AppendWithTail(ctx context.Context, rec chain.CommitRecord, expectedPrev string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin append transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
		return fmt.Errorf("failed to acquire append lock: %w", err)
	}

	tail := chain.SentinelPrev
	err = tx.QueryRow(ctx,
		`SELECT hash FROM commit_records ORDER BY seq DESC LIMIT 1`).Scan(&tail)
	if err != nil && err != pgx.ErrNoRows {
		return fmt.Errorf("failed to query chain tail: %w", err)
	}
	if tail != expectedPrev {
		return chain.ErrTailMoved
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO commit_records (hash, type, message, user_id, ts, prev)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.Hash, rec.Type, rec.Message, rec.User, rec.Timestamp, rec.Prev); err != nil {
		return fmt.Errorf("failed to insert commit record: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit append: %w", err)
	}
	return nil
}

// InsertCheckpoint persists one verification outcome.
func (s *PostgresStore) InsertCheckpoint(ctx context.Context, cp Checkpoint) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chain_checkpoints (tail_hash, records, valid, reason)
		 VALUES ($1, $2, $3, $4)`,
		cp.TailHash, cp.Records, cp.Valid, cp.Reason)
	if err != nil {
		return fmt.Errorf("failed to insert checkpoint: %w", err)
	}
	return nil
}

// LatestCheckpoint returns the newest checkpoint, or nil when none exists.
func (s *PostgresStore) LatestCheckpoint(ctx context.Context) (*Checkpoint, error) {
	var cp Checkpoint
	err := s.pool.QueryRow(ctx,
		`SELECT id, tail_hash, records, valid, reason, created_at
		 FROM chain_checkpoints ORDER BY id DESC LIMIT 1`).
		Scan(&cp.ID, &cp.TailHash, &cp.Records, &cp.Valid, &cp.Reason, &cp.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest checkpoint: %w", err)
	}
	return &cp, nil
}

// Close shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.logger.Println("Closing PostgreSQL store...")
	s.pool.Close()
}

var _ Store = (*PostgresStore)(nil)
