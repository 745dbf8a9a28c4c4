package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key is absent or has expired.
var ErrNotFound = errors.New("storage: key not found")

// KV is the key-value surface the auth subsystem consumes.
//
// No ordering or transactional guarantees are assumed across calls:
// every session and refresh-token mutation is a sequence of independent
// operations, and callers are written to tolerate read-then-write
// races. All methods accept context.Context for tracing and
// cancellation.
type KV interface {
	// Set stores value under key with the given TTL. A TTL is always
	// required; nothing in this subsystem lives forever.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get retrieves the value for key. Returns ErrNotFound when the key
	// is absent or expired.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes a key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// TTL reports the remaining lifetime of key. A result <= 0 means
	// the key is absent or expired.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Expire updates the TTL of an existing key without rewriting its
	// value.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Keys lists keys matching a glob pattern (e.g. "session:*").
	Keys(ctx context.Context, pattern string) ([]string, error)

	// NewID generates a high-entropy opaque identifier suitable for
	// session ids.
	NewID() string
}
