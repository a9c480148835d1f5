// Package blackboard implements the pipeline's shared
// persistence/state surface over a pluggable BackingStore, with no
// separate in-memory cache layer in front of it, owning history rings,
// the Q-table, baselines and run records.
package blackboard

import (
	"context"
	"time"
)

// BackingStore is the pluggable persistence contract injected into the
// Blackboard. Production wiring uses RedisBackingStore (cache tier) or
// PostgresBackingStore (durable tier); tests inject MapBackingStore.
type BackingStore interface {
	// GetJSON returns the raw bytes stored under key, ok=false if absent.
	// Implementations must return (nil, false, nil) on timeout rather
	// than an error; a blackboard I/O timeout reads as an empty value.
	GetJSON(ctx context.Context, key string) (value []byte, ok bool, err error)

	// SetJSONWithTTL stores value under key with the given TTL. The
	// Redis and Postgres stores return nil when a write times out; any
	// other write error is returned to the caller.
	SetJSONWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// TTLs for persisted state layout.
const (
	TTLRunRecord   = 7 * 24 * time.Hour
	TTLRunHistory  = 7 * 24 * time.Hour
	TTLCalibration = 30 * 24 * time.Hour
	TTLPolicy      = 30 * 24 * time.Hour
	TTLTopology    = 90 * 24 * time.Hour

	// blackboardIOTimeout is the hard deadline for any single backing
	// store call.
	blackboardIOTimeout = 3 * time.Second
)

func scopedKey(envPrefix, scope string) string {
	if envPrefix == "" {
		return scope
	}
	return envPrefix + ":" + scope
}
