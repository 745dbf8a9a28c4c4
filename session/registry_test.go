package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/Galoniax/dualeat-auth/internal/testutil"
	"github.com/Galoniax/dualeat-auth/session"
	"github.com/Galoniax/dualeat-auth/storage/memory"
)

func newTestRegistry(t *testing.T) (*session.Registry, *memory.Store) {
	t.Helper()
	kv := memory.NewWithInterval(0)
	t.Cleanup(kv.Stop)
	return session.NewRegistry(kv, testutil.DiscardLogger()), kv
}

func TestStoreAndIsValid(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	testutil.AssertNoError(t, registry.Store(ctx, "sid", "hash", time.Hour))

	valid, err := registry.IsValid(ctx, "sid", "hash")
	testutil.AssertNoError(t, err)
	testutil.AssertTrue(t, valid, "stored token should be valid")
}

func TestStoreValidation(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	testutil.AssertError(t, registry.Store(ctx, "", "hash", time.Hour))
	testutil.AssertError(t, registry.Store(ctx, "sid", "", time.Hour))
}

func TestIsValidUnknownToken(t *testing.T) {
	registry, _ := newTestRegistry(t)

	valid, err := registry.IsValid(context.Background(), "sid", "unknown")
	testutil.AssertNoError(t, err)
	testutil.AssertFalse(t, valid, "unknown token must not be valid")
}

func TestIsValidWrongMarker(t *testing.T) {
	registry, kv := newTestRegistry(t)
	ctx := context.Background()

	// A record with any value other than the marker fails the check.
	testutil.AssertNoError(t, kv.Set(ctx, "refresh:sid:hash", "tampered", time.Hour))

	valid, err := registry.IsValid(ctx, "sid", "hash")
	testutil.AssertNoError(t, err)
	testutil.AssertFalse(t, valid, "tampered record must not be valid")
}

func TestRevoke(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	testutil.AssertNoError(t, registry.Store(ctx, "sid", "hash", time.Hour))
	testutil.AssertNoError(t, registry.Revoke(ctx, "sid", "hash"))

	valid, err := registry.IsValid(ctx, "sid", "hash")
	testutil.AssertNoError(t, err)
	testutil.AssertFalse(t, valid, "revoked token must not be valid")

	// Revoking an absent record is a no-op.
	testutil.AssertNoError(t, registry.Revoke(ctx, "sid", "hash"))
}

func TestRevokeAll(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	testutil.AssertNoError(t, registry.Store(ctx, "sid", "hash1", time.Hour))
	testutil.AssertNoError(t, registry.Store(ctx, "sid", "hash2", time.Hour))
	testutil.AssertNoError(t, registry.Store(ctx, "other", "hash3", time.Hour))

	testutil.AssertNoError(t, registry.RevokeAll(ctx, "sid"))

	for _, hash := range []string{"hash1", "hash2"} {
		valid, err := registry.IsValid(ctx, "sid", hash)
		testutil.AssertNoError(t, err)
		testutil.AssertFalse(t, valid, "all session tokens must be revoked")
	}

	// Other sessions keep their tokens.
	valid, err := registry.IsValid(ctx, "other", "hash3")
	testutil.AssertNoError(t, err)
	testutil.AssertTrue(t, valid, "other sessions must be untouched")
}
