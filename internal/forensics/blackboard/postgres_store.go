package blackboard

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PostgresBackingStore is the durable-tier BackingStore: a simple
// key/value/expires_at table over a pgx pool.
//
// Expected schema:
//
//	CREATE TABLE forensics_blackboard (
//	  key        TEXT PRIMARY KEY,
//	  value      BYTEA NOT NULL,
//	  expires_at TIMESTAMPTZ
//	);
type PostgresBackingStore struct {
	pool *pgxpool.Pool
}

// NewPostgresBackingStore wraps an already-configured pgx pool.
func NewPostgresBackingStore(pool *pgxpool.Pool) *PostgresBackingStore {
	return &PostgresBackingStore{pool: pool}
}

func (s *PostgresBackingStore) GetJSON(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, blackboardIOTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx, `
		SELECT value FROM forensics_blackboard
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`, key)

	var value []byte
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Str("key", key).Msg("forensics blackboard postgres read timed out")
			return nil, false, nil
		}
		return nil, false, nil
	}
	return value, true, nil
}

func (s *PostgresBackingStore) SetJSONWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, blackboardIOTimeout)
	defer cancel()

	var expiresAt interface{}
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO forensics_blackboard (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expiresAt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Str("key", key).Msg("forensics blackboard postgres write timed out")
			return nil
		}
		return err
	}
	return nil
}
