package auth

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Galoniax/dualeat-auth/internal/testutil"
	"github.com/Galoniax/dualeat-auth/session"
	"github.com/Galoniax/dualeat-auth/storage/memory"
)

const testSecret = "orchestrator-test-secret"

type fakeDirectory struct {
	users map[string]*User
	err   error
}

func (d *fakeDirectory) GetByEmail(_ context.Context, email string) (*User, error) {
	if d.err != nil {
		return nil, d.err
	}
	u, ok := d.users[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func testUser(t *testing.T, email, password string) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return &User{
		ID:           "u-" + email,
		Name:         "Test User",
		Email:        email,
		Slug:         "test-user",
		Role:         session.RoleUser,
		Provider:     session.ProviderLocal,
		Active:       true,
		PasswordHash: string(hash),
	}
}

func newTestOrchestrator(t *testing.T, users ...*User) (*Orchestrator, *memory.Store) {
	t.Helper()
	kv := memory.NewWithInterval(0)
	t.Cleanup(kv.Stop)

	dir := &fakeDirectory{users: make(map[string]*User)}
	for _, u := range users {
		dir.users[u.Email] = u
	}

	orch, err := New(kv, dir, Config{
		Secret: testSecret,
		Logger: testutil.DiscardLogger(),
	})
	testutil.AssertNoError(t, err)
	return orch, kv
}

func TestNewValidation(t *testing.T) {
	kv := memory.NewWithInterval(0)
	t.Cleanup(kv.Stop)
	dir := &fakeDirectory{}

	_, err := New(nil, dir, Config{Secret: testSecret})
	testutil.AssertError(t, err)

	_, err = New(kv, nil, Config{Secret: testSecret})
	testutil.AssertError(t, err)

	_, err = New(kv, dir, Config{})
	testutil.AssertError(t, err)
}

func TestLoginWebDefaultSession(t *testing.T) {
	user := testUser(t, "web@example.com", "pw")
	orch, kv := newTestOrchestrator(t, user)
	ctx := context.Background()

	result, err := orch.Login(ctx, LoginRequest{
		Email:    "web@example.com",
		Password: "pw",
	})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, result.User.UserID, user.ID)
	testutil.AssertNotEqual(t, result.AccessToken, "")
	testutil.AssertNotEqual(t, result.RefreshToken, "")

	// A plain web login gets the one-day session.
	remaining, err := kv.TTL(ctx, "session:"+result.SessionID)
	testutil.AssertNoError(t, err)
	testutil.AssertTrue(t, remaining > 23*time.Hour && remaining <= 24*time.Hour,
		"plain web session should live one day")
}

func TestLoginWebRemembered(t *testing.T) {
	user := testUser(t, "web@example.com", "pw")
	orch, kv := newTestOrchestrator(t, user)
	ctx := context.Background()

	result, err := orch.Login(ctx, LoginRequest{
		Email:      "web@example.com",
		Password:   "pw",
		RememberMe: true,
	})
	testutil.AssertNoError(t, err)

	remaining, err := kv.TTL(ctx, "session:"+result.SessionID)
	testutil.AssertNoError(t, err)
	testutil.AssertTrue(t, remaining > 6*24*time.Hour,
		"remembered web session should live seven days")
}

func TestLoginMobileSession(t *testing.T) {
	user := testUser(t, "mob@example.com", "pw")
	orch, kv := newTestOrchestrator(t, user)
	ctx := context.Background()

	result, err := orch.Login(ctx, LoginRequest{
		Email:    "mob@example.com",
		Password: "pw",
		IsMobile: true,
	})
	testutil.AssertNoError(t, err)

	// Mobile sessions live thirty days regardless of remember-me.
	remaining, err := kv.TTL(ctx, "session:"+result.SessionID)
	testutil.AssertNoError(t, err)
	testutil.AssertTrue(t, remaining > 29*24*time.Hour,
		"mobile session should live thirty days")

	claims, err := orch.Codec().VerifyAccessToken(result.AccessToken)
	testutil.AssertNoError(t, err)
	testutil.AssertTrue(t, claims.Mobile, "mobile login should mint mobile tokens")
}

func TestLoginReusesSessionPerDevice(t *testing.T) {
	user := testUser(t, "web@example.com", "pw")
	orch, _ := newTestOrchestrator(t, user)
	ctx := context.Background()
	req := LoginRequest{Email: "web@example.com", Password: "pw"}

	first, err := orch.Login(ctx, req)
	testutil.AssertNoError(t, err)
	second, err := orch.Login(ctx, req)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, second.SessionID, first.SessionID)

	mobileReq := req
	mobileReq.IsMobile = true
	mobile, err := orch.Login(ctx, mobileReq)
	testutil.AssertNoError(t, err)
	testutil.AssertNotEqual(t, mobile.SessionID, first.SessionID)
}

func TestLoginWrongPassword(t *testing.T) {
	user := testUser(t, "web@example.com", "pw")
	orch, _ := newTestOrchestrator(t, user)

	_, err := orch.Login(context.Background(), LoginRequest{
		Email:    "web@example.com",
		Password: "nope",
	})
	assertAuthReason(t, err, ReasonInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	orch, _ := newTestOrchestrator(t)

	// Unknown email and wrong password are indistinguishable.
	_, err := orch.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "pw",
	})
	assertAuthReason(t, err, ReasonInvalidCredentials)
}

func TestLoginInactiveUser(t *testing.T) {
	user := testUser(t, "web@example.com", "pw")
	user.Active = false
	orch, _ := newTestOrchestrator(t, user)

	_, err := orch.Login(context.Background(), LoginRequest{
		Email:    "web@example.com",
		Password: "pw",
	})
	assertAuthReason(t, err, ReasonUserInactive)
}

func TestLoginDirectoryFailure(t *testing.T) {
	kv := memory.NewWithInterval(0)
	t.Cleanup(kv.Stop)
	dir := &fakeDirectory{err: errors.New("connection refused")}

	orch, err := New(kv, dir, Config{Secret: testSecret, Logger: testutil.DiscardLogger()})
	testutil.AssertNoError(t, err)

	_, err = orch.Login(context.Background(), LoginRequest{
		Email:    "web@example.com",
		Password: "pw",
	})
	assertAuthReason(t, err, ReasonStoreUnavailable)
}

func TestRefreshRotates(t *testing.T) {
	user := testUser(t, "web@example.com", "pw")
	orch, _ := newTestOrchestrator(t, user)
	ctx := context.Background()

	login, err := orch.Login(ctx, LoginRequest{Email: "web@example.com", Password: "pw"})
	testutil.AssertNoError(t, err)

	refreshed, err := orch.Refresh(ctx, login.RefreshToken, false)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, refreshed.SessionID, login.SessionID)
	testutil.AssertNotEqual(t, refreshed.RefreshToken, login.RefreshToken)

	// The consumed token is dead; replaying it is rejected.
	_, err = orch.Refresh(ctx, login.RefreshToken, false)
	assertAuthReason(t, err, ReasonRefreshTokenRevoked)

	// The new token still works.
	_, err = orch.Refresh(ctx, refreshed.RefreshToken, false)
	testutil.AssertNoError(t, err)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	orch, _ := newTestOrchestrator(t)

	_, err := orch.Refresh(context.Background(), "not-a-token", false)
	assertAuthReason(t, err, ReasonInvalidSignature)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	user := testUser(t, "web@example.com", "pw")
	orch, _ := newTestOrchestrator(t, user)
	ctx := context.Background()

	login, err := orch.Login(ctx, LoginRequest{Email: "web@example.com", Password: "pw"})
	testutil.AssertNoError(t, err)

	_, err = orch.Refresh(ctx, login.AccessToken, false)
	assertAuthReason(t, err, ReasonWrongTokenType)
}

func TestRefreshRevokedLeavesNoNewState(t *testing.T) {
	user := testUser(t, "web@example.com", "pw")
	orch, kv := newTestOrchestrator(t, user)
	ctx := context.Background()

	login, err := orch.Login(ctx, LoginRequest{Email: "web@example.com", Password: "pw"})
	testutil.AssertNoError(t, err)

	claims, err := orch.Codec().VerifyRefreshToken(login.RefreshToken)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, orch.Registry().Revoke(ctx, login.SessionID, orch.Codec().HashTokenID(claims.ID)))

	before, err := kv.Keys(ctx, "refresh:*")
	testutil.AssertNoError(t, err)

	_, err = orch.Refresh(ctx, login.RefreshToken, false)
	assertAuthReason(t, err, ReasonRefreshTokenRevoked)

	// A rejected exchange must not mint any new refresh records.
	after, err := kv.Keys(ctx, "refresh:*")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(after), len(before))
}

func TestRefreshSessionGone(t *testing.T) {
	user := testUser(t, "web@example.com", "pw")
	orch, kv := newTestOrchestrator(t, user)
	ctx := context.Background()

	login, err := orch.Login(ctx, LoginRequest{Email: "web@example.com", Password: "pw"})
	testutil.AssertNoError(t, err)

	// Drop the session record but keep the refresh record alive.
	testutil.AssertNoError(t, kv.Delete(ctx, "session:"+login.SessionID))

	_, err = orch.Refresh(ctx, login.RefreshToken, false)
	assertAuthReason(t, err, ReasonSessionNotFound)
}

func TestRefreshDeactivatedUserTearsDown(t *testing.T) {
	user := testUser(t, "web@example.com", "pw")
	orch, kv := newTestOrchestrator(t, user)
	ctx := context.Background()

	login, err := orch.Login(ctx, LoginRequest{Email: "web@example.com", Password: "pw"})
	testutil.AssertNoError(t, err)

	deactivateSession(t, kv, login.SessionID)

	_, err = orch.Refresh(ctx, login.RefreshToken, false)
	assertAuthReason(t, err, ReasonUserInactive)

	// The whole session is torn down, refresh tokens included.
	_, err = orch.Sessions().Get(ctx, login.SessionID)
	testutil.AssertEqual(t, err, session.ErrNotFound)

	keys, err := kv.Keys(ctx, "refresh:"+login.SessionID+":*")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(keys), 0)
}

func TestAuthenticate(t *testing.T) {
	user := testUser(t, "web@example.com", "pw")
	orch, _ := newTestOrchestrator(t, user)
	ctx := context.Background()

	login, err := orch.Login(ctx, LoginRequest{Email: "web@example.com", Password: "pw"})
	testutil.AssertNoError(t, err)

	data, sessionID, err := orch.Authenticate(ctx, login.AccessToken)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, sessionID, login.SessionID)
	testutil.AssertEqual(t, data.UserID, user.ID)
}

func TestAuthenticateDeactivatedUser(t *testing.T) {
	user := testUser(t, "web@example.com", "pw")
	orch, kv := newTestOrchestrator(t, user)
	ctx := context.Background()

	login, err := orch.Login(ctx, LoginRequest{Email: "web@example.com", Password: "pw"})
	testutil.AssertNoError(t, err)

	deactivateSession(t, kv, login.SessionID)

	_, _, err = orch.Authenticate(ctx, login.AccessToken)
	assertAuthReason(t, err, ReasonUserInactive)

	_, err = orch.Sessions().Get(ctx, login.SessionID)
	testutil.AssertEqual(t, err, session.ErrNotFound)
}

func TestLogout(t *testing.T) {
	user := testUser(t, "web@example.com", "pw")
	orch, kv := newTestOrchestrator(t, user)
	ctx := context.Background()

	login, err := orch.Login(ctx, LoginRequest{Email: "web@example.com", Password: "pw"})
	testutil.AssertNoError(t, err)

	orch.Logout(ctx, login.SessionID)

	_, err = orch.Sessions().Get(ctx, login.SessionID)
	testutil.AssertEqual(t, err, session.ErrNotFound)

	keys, err := kv.Keys(ctx, "refresh:"+login.SessionID+":*")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(keys), 0)

	_, err = orch.Refresh(ctx, login.RefreshToken, false)
	assertAuthReason(t, err, ReasonRefreshTokenRevoked)

	// Logging out twice is harmless.
	orch.Logout(ctx, login.SessionID)
}

func TestLogoutAll(t *testing.T) {
	user := testUser(t, "web@example.com", "pw")
	orch, _ := newTestOrchestrator(t, user)
	ctx := context.Background()

	web, err := orch.Login(ctx, LoginRequest{Email: "web@example.com", Password: "pw"})
	testutil.AssertNoError(t, err)
	mobile, err := orch.Login(ctx, LoginRequest{Email: "web@example.com", Password: "pw", IsMobile: true})
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, orch.LogoutAll(ctx, user.ID))

	_, err = orch.Sessions().Get(ctx, web.SessionID)
	testutil.AssertEqual(t, err, session.ErrNotFound)
	_, err = orch.Sessions().Get(ctx, mobile.SessionID)
	testutil.AssertEqual(t, err, session.ErrNotFound)
}

// deactivateSession flips the active flag on a stored session record,
// simulating account deactivation after login.
func deactivateSession(t *testing.T, kv *memory.Store, sessionID string) {
	t.Helper()
	ctx := context.Background()

	payload, err := kv.Get(ctx, "session:"+sessionID)
	testutil.AssertNoError(t, err)

	var data session.Data
	testutil.AssertNoError(t, json.Unmarshal([]byte(payload), &data))
	data.Active = false

	updated, err := json.Marshal(&data)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, kv.Set(ctx, "session:"+sessionID, string(updated), time.Hour))
}

func assertAuthReason(t *testing.T, err error, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", reason)
	}
	authErr, ok := err.(*AuthError)
	if !ok {
		t.Fatalf("expected *AuthError, got %T: %v", err, err)
	}
	if authErr.Reason != reason {
		t.Fatalf("reason = %s, want %s", authErr.Reason, reason)
	}
}
