package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// Declared token types. Every signed token carries its type, and each
// verifier rejects tokens whose declared type does not match — even
// when the signature is valid.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Onboarding steps carried by temporary tokens.
const (
	StepIncompleteRegistration      = "incomplete_registration"
	StepIncompleteOAuthRegistration = "incomplete_oauth_registration"
)

// AccessClaims is the compact payload of an access token. The subject
// is the hashed user id (defense in depth, never a lookup key); role
// and provider are single-character codes to keep the token small.
type AccessClaims struct {
	Role      string `json:"rol"`
	Provider  string `json:"prv"`
	Mobile    bool   `json:"mob"`
	SessionID string `json:"ses"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. The registered ID
// (jti) is the token's unique identifier; its one-way hash keys the
// validity record in the registry.
type RefreshClaims struct {
	SessionID string `json:"ses"`
	Mobile    bool   `json:"mob"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TempClaims is the payload of a temporary onboarding token. It bridges
// the two-step registration and OAuth-onboarding flows: its entire
// state lives in the signed token and nothing is persisted server-side.
type TempClaims struct {
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	PasswordHash string `json:"password_hash,omitempty"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	Provider     string `json:"provider"`
	Step         string `json:"step"`
	Mobile       bool   `json:"isMobile,omitempty"`
	jwt.RegisteredClaims
}
