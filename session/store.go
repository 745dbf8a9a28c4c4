package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Galoniax/dualeat-auth/storage"
)

// sessionIDLogLength is the number of characters to include when
// logging session ids
const sessionIDLogLength = 8

// Store owns the session lifecycle: creation with per-device reuse,
// activity-tracking reads, and cascading deletion.
type Store struct {
	kv       storage.KV
	registry *Registry
	logger   *slog.Logger
}

// NewStore creates a session store over the given key-value backend.
// The registry is used to cascade refresh-token revocation on session
// deletion.
func NewStore(kv storage.KV, registry *Registry, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:       kv,
		registry: registry,
		logger:   logger,
	}
}

// sessionKey returns the key for a session record: session:{sessionID}
func sessionKey(sessionID string) string {
	return sessionPrefix + sessionID
}

// userSessionKey returns the per-(user, device) index key:
// user-session:{userID}:{device}
func userSessionKey(userID string, device Device) string {
	return fmt.Sprintf("%s%s:%s", userSessionPrefix, userID, device)
}

// CreateOrReuse creates a session for the user on the given device
// class, or reuses the live one if the per-device index points at an
// unexpired session. Reuse refreshes the TTL on both the session record
// and the index key, so repeated logins never orphan duplicate
// sessions. Exactly one session record and index entry is alive per
// (user, device) afterward. The boolean result reports whether an
// existing session was reused.
//
// The index check and the subsequent write are not atomic; a concurrent
// login can create one redundant session, which the next reuse check
// self-corrects. The backend provides no cross-key transactions, so
// this race is tolerated.
func (s *Store) CreateOrReuse(ctx context.Context, data *Data, ttl time.Duration, device Device) (string, bool, error) {
	if data == nil || data.UserID == "" {
		return "", false, fmt.Errorf("session data with user id is required")
	}
	if ttl <= 0 {
		return "", false, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}

	userKey := userSessionKey(data.UserID, device)

	existingID, err := s.kv.Get(ctx, userKey)
	if err != nil && err != storage.ErrNotFound {
		return "", false, fmt.Errorf("failed to read session index: %w", err)
	}

	if existingID != "" {
		remaining, err := s.kv.TTL(ctx, sessionKey(existingID))
		if err != nil {
			return "", false, fmt.Errorf("failed to query session ttl: %w", err)
		}

		// Only reuse a session that is still alive; a dangling index
		// entry falls through to fresh creation.
		if remaining > 0 {
			if err := s.kv.Expire(ctx, sessionKey(existingID), ttl); err != nil {
				return "", false, fmt.Errorf("failed to refresh session ttl: %w", err)
			}
			if err := s.kv.Expire(ctx, userKey, ttl); err != nil {
				return "", false, fmt.Errorf("failed to refresh session index ttl: %w", err)
			}

			s.logger.Debug("Reused existing session",
				"session_id", safeTruncate(existingID, sessionIDLogLength),
				"device", device)
			return existingID, true, nil
		}
	}

	sessionID := s.kv.NewID()

	now := time.Now()
	record := *data
	record.LoginAt = now
	record.LastActivity = now

	payload, err := json.Marshal(&record)
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal session data: %w", err)
	}

	if err := s.kv.Set(ctx, sessionKey(sessionID), string(payload), ttl); err != nil {
		return "", false, fmt.Errorf("failed to save session: %w", err)
	}

	if err := s.kv.Set(ctx, userKey, sessionID, ttl); err != nil {
		return "", false, fmt.Errorf("failed to save session index: %w", err)
	}

	s.logger.Debug("Created session",
		"session_id", safeTruncate(sessionID, sessionIDLogLength),
		"device", device,
		"ttl", ttl)
	return sessionID, false, nil
}

// Get loads the session and refreshes its activity timestamp. The
// record is rewritten at its current remaining TTL: a read refreshes
// lastActivity but never extends expiry, so sliding sessions cannot
// become infinite. Returns ErrNotFound for absent, expired, or
// malformed records (malformed payloads fail closed and the poisoned
// key is removed).
func (s *Store) Get(ctx context.Context, sessionID string) (*Data, error) {
	key := sessionKey(sessionID)

	payload, err := s.kv.Get(ctx, key)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var data Data
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		s.logger.Warn("Dropping malformed session record",
			"session_id", safeTruncate(sessionID, sessionIDLogLength),
			"error", err)
		if delErr := s.kv.Delete(ctx, key); delErr != nil {
			s.logger.Warn("Failed to delete malformed session record", "error", delErr)
		}
		return nil, ErrNotFound
	}

	remaining, err := s.kv.TTL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query session ttl: %w", err)
	}
	if remaining <= 0 {
		// Expired between the read and the TTL query; treat exactly
		// like a missing record.
		return nil, ErrNotFound
	}

	data.LastActivity = time.Now()
	updated, err := json.Marshal(&data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session data: %w", err)
	}
	if err := s.kv.Set(ctx, key, string(updated), remaining); err != nil {
		return nil, fmt.Errorf("failed to update session activity: %w", err)
	}

	return &data, nil
}

// Delete removes a session, both device index entries for its user, and
// all refresh tokens issued under it. Every step is best-effort: a
// failure is logged and the remaining steps still run, so logout always
// appears to succeed to the caller. Deleting an absent session is a
// no-op.
//
// Both device indexes are cleared even though only one can point at
// this session: a user may hold independent web and mobile sessions,
// and a stale index must never point at a deleted session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	key := sessionKey(sessionID)

	payload, err := s.kv.Get(ctx, key)
	if err != nil && err != storage.ErrNotFound {
		s.logger.Warn("Failed to read session during delete",
			"session_id", safeTruncate(sessionID, sessionIDLogLength),
			"error", err)
	}

	if err == nil {
		var data Data
		if jsonErr := json.Unmarshal([]byte(payload), &data); jsonErr != nil {
			s.logger.Warn("Malformed session record during delete",
				"session_id", safeTruncate(sessionID, sessionIDLogLength),
				"error", jsonErr)
		} else {
			for _, device := range []Device{DeviceWeb, DeviceMobile} {
				if delErr := s.kv.Delete(ctx, userSessionKey(data.UserID, device)); delErr != nil {
					s.logger.Warn("Failed to delete session index",
						"device", device,
						"error", delErr)
				}
			}
		}
	}

	if err := s.registry.RevokeAll(ctx, sessionID); err != nil {
		s.logger.Warn("Failed to revoke refresh tokens during session delete",
			"session_id", safeTruncate(sessionID, sessionIDLogLength),
			"error", err)
	}

	if err := s.kv.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to delete session record",
			"session_id", safeTruncate(sessionID, sessionIDLogLength),
			"error", err)
	}

	s.logger.Debug("Deleted session",
		"session_id", safeTruncate(sessionID, sessionIDLogLength))
	return nil
}

// DeleteAllForUser removes every session belonging to the user, across
// both device classes. This scans all session records: O(total
// sessions), which is bounded by active users, not requests.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	keys, err := s.kv.Keys(ctx, sessionPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	deleted := 0
	for _, key := range keys {
		payload, err := s.kv.Get(ctx, key)
		if err != nil {
			continue // expired between scan and read
		}

		var data Data
		if err := json.Unmarshal([]byte(payload), &data); err != nil {
			s.logger.Warn("Skipping malformed session record during bulk delete",
				"key", safeTruncate(key, len(sessionPrefix)+sessionIDLogLength),
				"error", err)
			continue
		}

		if data.UserID != userID {
			continue
		}

		sessionID := strings.TrimPrefix(key, sessionPrefix)
		if err := s.Delete(ctx, sessionID); err != nil {
			s.logger.Warn("Failed to delete session during bulk delete",
				"session_id", safeTruncate(sessionID, sessionIDLogLength),
				"error", err)
			continue
		}
		deleted++
	}

	s.logger.Info("Deleted all sessions for user",
		"sessions_deleted", deleted)
	return nil
}

// safeTruncate safely truncates a string to n characters
func safeTruncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
