package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Galoniax/dualeat-auth/storage"
)

// validMarker is the value stored for a live refresh-token record. The
// record's existence with this exact value is what makes a token
// redeemable; anything else fails the validity check.
const validMarker = "valid"

// tokenIDLogLength is the number of characters to include when logging
// hashed token ids
const tokenIDLogLength = 8

// Registry tracks the validity of individual refresh tokens scoped to
// a session. Records are keyed by the one-way hash of the token's
// unique identifier; the raw identifier is never persisted.
type Registry struct {
	kv     storage.KV
	logger *slog.Logger
}

// NewRegistry creates a refresh-token registry over the given key-value
// backend.
func NewRegistry(kv storage.KV, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		kv:     kv,
		logger: logger,
	}
}

// refreshKey returns the key for a refresh-token record:
// refresh:{sessionID}:{hashedTokenID}
func refreshKey(sessionID, hashedTokenID string) string {
	return fmt.Sprintf("%s%s:%s", refreshPrefix, sessionID, hashedTokenID)
}

// Store records a refresh token as valid for its session. The TTL must
// equal the token's own expiry so the record and the token it
// represents expire together.
func (r *Registry) Store(ctx context.Context, sessionID, hashedTokenID string, ttl time.Duration) error {
	if sessionID == "" || hashedTokenID == "" {
		return fmt.Errorf("session id and hashed token id are required")
	}

	if err := r.kv.Set(ctx, refreshKey(sessionID, hashedTokenID), validMarker, ttl); err != nil {
		return fmt.Errorf("failed to store refresh token record: %w", err)
	}

	r.logger.Debug("Stored refresh token record",
		"session_id", safeTruncate(sessionID, sessionIDLogLength),
		"token_id", safeTruncate(hashedTokenID, tokenIDLogLength))
	return nil
}

// IsValid reports whether the refresh token record exists and carries
// the valid marker. Store connectivity failures are returned as errors,
// never as a false positive.
func (r *Registry) IsValid(ctx context.Context, sessionID, hashedTokenID string) (bool, error) {
	value, err := r.kv.Get(ctx, refreshKey(sessionID, hashedTokenID))
	if err != nil {
		if err == storage.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to check refresh token record: %w", err)
	}
	return value == validMarker, nil
}

// Revoke deletes a single refresh-token record. Used for rotation and
// explicit invalidation; revoking an absent record is a no-op.
func (r *Registry) Revoke(ctx context.Context, sessionID, hashedTokenID string) error {
	if err := r.kv.Delete(ctx, refreshKey(sessionID, hashedTokenID)); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	r.logger.Debug("Revoked refresh token",
		"session_id", safeTruncate(sessionID, sessionIDLogLength),
		"token_id", safeTruncate(hashedTokenID, tokenIDLogLength))
	return nil
}

// RevokeAll deletes every refresh-token record under a session. Used on
// logout and on detecting an inactive user.
func (r *Registry) RevokeAll(ctx context.Context, sessionID string) error {
	keys, err := r.kv.Keys(ctx, refreshPrefix+sessionID+":*")
	if err != nil {
		return fmt.Errorf("failed to list refresh tokens: %w", err)
	}

	for _, key := range keys {
		if err := r.kv.Delete(ctx, key); err != nil {
			r.logger.Warn("Failed to delete refresh token record",
				"error", err)
		}
	}

	if len(keys) > 0 {
		r.logger.Debug("Revoked all refresh tokens for session",
			"session_id", safeTruncate(sessionID, sessionIDLogLength),
			"count", len(keys))
	}
	return nil
}
