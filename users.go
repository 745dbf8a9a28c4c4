package auth

import (
	"context"
	"errors"
	"time"

	"github.com/Galoniax/dualeat-auth/session"
)

// ErrUserNotFound is returned by UserDirectory implementations when no
// account exists for the given email.
var ErrUserNotFound = errors.New("auth: user not found")

// User is an account record as the orchestrator needs it. PasswordHash
// is the bcrypt hash of the account password, empty for OAuth-only
// accounts.
type User struct {
	ID                 string
	Name               string
	Email              string
	Slug               string
	Role               session.Role
	Provider           string
	IsBusiness         bool
	Active             bool
	SubscriptionStatus string
	TrialEndsAt        *time.Time
	AvatarURL          *string
	PasswordHash       string
}

// UserDirectory looks up accounts for login. Implementations return
// ErrUserNotFound when no account matches; any other error is treated
// as a backend failure.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// sessionData projects a user record into the snapshot stored with the
// session.
func sessionData(u *User) *session.Data {
	return &session.Data{
		UserID:             u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Slug:               u.Slug,
		Role:               u.Role,
		Provider:           u.Provider,
		IsBusiness:         u.IsBusiness,
		Active:             u.Active,
		SubscriptionStatus: u.SubscriptionStatus,
		TrialEndsAt:        u.TrialEndsAt,
		AvatarURL:          u.AvatarURL,
	}
}
