// Package memory provides an in-memory implementation of the storage
// contract. It is suitable for development, testing, and
// single-instance deployments.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/Galoniax/dualeat-auth/storage"
)

const (
	// opaqueIDBytes is the entropy of generated session ids (hex-encoded
	// to twice this length)
	opaqueIDBytes = 32
)

// entry is a stored value with its absolute expiry time.
type entry struct {
	value     string
	expiresAt time.Time
}

// Store is an in-memory implementation of storage.KV with TTL
// enforcement. Expired keys are dropped lazily on access and swept by a
// background cleanup loop.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// Compile-time interface check
var _ storage.KV = (*Store)(nil)

// New creates a new in-memory store with the default cleanup interval
// (1 minute).
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store that sweeps expired
// keys every cleanupInterval. A non-positive interval disables the
// background sweep; expiry is still enforced lazily on access.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	s := &Store{
		entries:     make(map[string]entry),
		stopCleanup: make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go s.cleanupLoop(cleanupInterval)
	}

	return s
}

// Stop terminates the background cleanup loop. Safe to call more than
// once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

// Set stores value under key with the given TTL.
func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Get retrieves the value for key, expiring it lazily if needed.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return "", storage.ErrNotFound
	}

	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock: the key may have been
		// rewritten since the read lock was released.
		if cur, ok := s.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return "", storage.ErrNotFound
	}

	return e.value, nil
}

// Delete removes a key. Absent keys are a no-op.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// TTL reports the remaining lifetime of key; <= 0 means absent or
// expired.
func (s *Store) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return 0, nil
	}

	remaining := time.Until(e.expiresAt)
	if remaining <= 0 {
		return 0, nil
	}
	return remaining, nil
}

// Expire updates the TTL of an existing key without rewriting its
// value. Expiring an absent key is a no-op.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil
	}

	e.expiresAt = time.Now().Add(ttl)
	s.entries[key] = e
	return nil
}

// Keys lists live keys matching a glob pattern.
func (s *Store) Keys(_ context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var keys []string
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			continue
		}
		matched, err := path.Match(pattern, key)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if matched {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// NewID generates a high-entropy opaque identifier.
func (s *Store) NewID() string {
	b := make([]byte, opaqueIDBytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
	return hex.EncodeToString(b)
}

// Len reports the number of live entries, for metrics and tests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	n := 0
	for _, e := range s.entries {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	return n
}

// cleanupLoop periodically sweeps expired entries.
func (s *Store) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup removes all expired entries.
func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}
