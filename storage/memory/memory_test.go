package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Galoniax/dualeat-auth/internal/testutil"
	"github.com/Galoniax/dualeat-auth/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewWithInterval(0)
	t.Cleanup(s.Stop)
	return s
}

func TestSetGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	testutil.AssertNoError(t, s.Set(ctx, "key", "value", time.Minute))

	got, err := s.Get(ctx, "key")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got, "value")
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	testutil.AssertEqual(t, err, storage.ErrNotFound)
}

func TestSetValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	testutil.AssertError(t, s.Set(ctx, "", "value", time.Minute))
	testutil.AssertError(t, s.Set(ctx, "key", "value", 0))
	testutil.AssertError(t, s.Set(ctx, "key", "value", -time.Second))
}

func TestGetExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	testutil.AssertNoError(t, s.Set(ctx, "key", "value", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := s.Get(ctx, "key")
	testutil.AssertEqual(t, err, storage.ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	testutil.AssertNoError(t, s.Set(ctx, "key", "value", time.Minute))
	testutil.AssertNoError(t, s.Delete(ctx, "key"))

	_, err := s.Get(ctx, "key")
	testutil.AssertEqual(t, err, storage.ErrNotFound)

	// Deleting an absent key is a no-op.
	testutil.AssertNoError(t, s.Delete(ctx, "key"))
}

func TestTTL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	testutil.AssertNoError(t, s.Set(ctx, "key", "value", time.Hour))

	remaining, err := s.TTL(ctx, "key")
	testutil.AssertNoError(t, err)
	testutil.AssertTrue(t, remaining > 59*time.Minute, "remaining TTL should be close to an hour")

	remaining, err = s.TTL(ctx, "missing")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, remaining, time.Duration(0))
}

func TestExpire(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	testutil.AssertNoError(t, s.Set(ctx, "key", "value", time.Minute))
	testutil.AssertNoError(t, s.Expire(ctx, "key", time.Hour))

	remaining, err := s.TTL(ctx, "key")
	testutil.AssertNoError(t, err)
	testutil.AssertTrue(t, remaining > 59*time.Minute, "expire should extend the TTL")

	// Value survives a TTL update.
	got, err := s.Get(ctx, "key")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got, "value")

	// Expiring an absent key is a no-op.
	testutil.AssertNoError(t, s.Expire(ctx, "missing", time.Hour))
	remaining, err = s.TTL(ctx, "missing")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, remaining, time.Duration(0))
}

func TestKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	testutil.AssertNoError(t, s.Set(ctx, "session:a", "1", time.Minute))
	testutil.AssertNoError(t, s.Set(ctx, "session:b", "2", time.Minute))
	testutil.AssertNoError(t, s.Set(ctx, "refresh:a:x", "valid", time.Minute))

	keys, err := s.Keys(ctx, "session:*")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(keys), 2)

	keys, err = s.Keys(ctx, "refresh:a:*")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(keys), 1)
	testutil.AssertEqual(t, keys[0], "refresh:a:x")
}

func TestKeysSkipsExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	testutil.AssertNoError(t, s.Set(ctx, "session:live", "1", time.Minute))
	testutil.AssertNoError(t, s.Set(ctx, "session:dead", "2", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	keys, err := s.Keys(ctx, "session:*")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(keys), 1)
	testutil.AssertEqual(t, keys[0], "session:live")
}

func TestNewID(t *testing.T) {
	s := newTestStore(t)

	a := s.NewID()
	b := s.NewID()
	testutil.AssertEqual(t, len(a), 64)
	testutil.AssertNotEqual(t, a, b)
}

func TestCleanupSweep(t *testing.T) {
	s := NewWithInterval(10 * time.Millisecond)
	defer s.Stop()
	ctx := context.Background()

	testutil.AssertNoError(t, s.Set(ctx, "key", "value", time.Millisecond))

	deadline := time.Now().Add(time.Second)
	for s.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	testutil.AssertEqual(t, s.Len(), 0)
}

func TestConcurrentAccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			key := s.NewID()
			for j := 0; j < 50; j++ {
				_ = s.Set(ctx, key, "value", time.Minute)
				_, _ = s.Get(ctx, key)
				_, _ = s.TTL(ctx, key)
				_ = s.Delete(ctx, key)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
