package auth

import (
	"fmt"
	"net/http"
)

// Error reason codes returned to clients.
const (
	ReasonMissingToken        = "missing_token"
	ReasonInvalidSignature    = "invalid_signature"
	ReasonExpired             = "expired"
	ReasonWrongTokenType      = "wrong_token_type"
	ReasonSessionNotFound     = "session_not_found"
	ReasonUserInactive        = "user_inactive"
	ReasonRefreshTokenRevoked = "refresh_token_revoked"
	ReasonInvalidCredentials  = "invalid_credentials"
	ReasonStoreUnavailable    = "store_unavailable"
	ReasonServerError         = "server_error"
)

// AuthError is a structured authentication failure carrying a stable
// machine-readable reason, a human-readable description and the HTTP
// status the failure maps to.
type AuthError struct {
	Reason      string
	Description string
	Status      int
}

func (e *AuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Description)
	}
	return e.Reason
}

// RequiresRefresh reports whether the client should attempt a token
// refresh instead of forcing a new login. True only for failures an
// unexpired refresh token can recover from.
func (e *AuthError) RequiresRefresh() bool {
	return e.Reason == ReasonExpired || e.Reason == ReasonSessionNotFound
}

// NewAuthError creates an AuthError with the given reason, description
// and HTTP status.
func NewAuthError(reason, description string, status int) *AuthError {
	return &AuthError{Reason: reason, Description: description, Status: status}
}

// ErrMissingToken indicates no token was presented on either channel.
func ErrMissingToken(description string) *AuthError {
	return NewAuthError(ReasonMissingToken, description, http.StatusUnauthorized)
}

// ErrInvalidSignature indicates a token that failed signature or
// structural validation.
func ErrInvalidSignature(description string) *AuthError {
	return NewAuthError(ReasonInvalidSignature, description, http.StatusUnauthorized)
}

// ErrExpired indicates a token past its expiry.
func ErrExpired(description string) *AuthError {
	return NewAuthError(ReasonExpired, description, http.StatusUnauthorized)
}

// ErrWrongTokenType indicates a valid token of the wrong kind, such as
// a refresh token presented where an access token is required.
func ErrWrongTokenType(description string) *AuthError {
	return NewAuthError(ReasonWrongTokenType, description, http.StatusUnauthorized)
}

// ErrSessionNotFound indicates the token references a session that no
// longer exists or has expired.
func ErrSessionNotFound(description string) *AuthError {
	return NewAuthError(ReasonSessionNotFound, description, http.StatusUnauthorized)
}

// ErrUserInactive indicates the account behind the session has been
// deactivated.
func ErrUserInactive(description string) *AuthError {
	return NewAuthError(ReasonUserInactive, description, http.StatusUnauthorized)
}

// ErrRefreshTokenRevoked indicates a refresh token that is unknown to
// the registry or was already consumed by a previous rotation.
func ErrRefreshTokenRevoked(description string) *AuthError {
	return NewAuthError(ReasonRefreshTokenRevoked, description, http.StatusUnauthorized)
}

// ErrInvalidCredentials indicates a failed email or password check.
func ErrInvalidCredentials(description string) *AuthError {
	return NewAuthError(ReasonInvalidCredentials, description, http.StatusUnauthorized)
}

// ErrStoreUnavailable indicates the backing store could not be reached.
func ErrStoreUnavailable(description string) *AuthError {
	return NewAuthError(ReasonStoreUnavailable, description, http.StatusServiceUnavailable)
}

// ErrServerError indicates an unexpected internal failure.
func ErrServerError(description string) *AuthError {
	return NewAuthError(ReasonServerError, description, http.StatusInternalServerError)
}
