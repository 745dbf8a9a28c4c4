// Package security provides security helpers for the auth subsystem:
// audit logging with PII protection and constant-time credential
// verification.
package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection. User ids
// and emails are hashed before they reach the log stream.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	UserID    string
	SessionID string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"user_id_hash", hashForLogging(event.UserID),
		"session_id_hash", hashForLogging(event.SessionID),
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogLoginSucceeded logs a successful credential login
func (a *Auditor) LogLoginSucceeded(userID, device string, reused bool) {
	a.LogEvent(Event{
		Type:   "login_succeeded",
		UserID: userID,
		Details: map[string]any{
			"device":         device,
			"session_reused": reused,
		},
	})
}

// LogLoginFailed logs a failed credential login. The email is hashed
// like a user id; the reason stays generic on the wire and specific
// here.
func (a *Auditor) LogLoginFailed(email, reason string) {
	a.LogEvent(Event{
		Type:   "login_failed",
		UserID: email,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogTokenRefreshed logs a refresh exchange
func (a *Auditor) LogTokenRefreshed(sessionID string, rotated bool) {
	a.LogEvent(Event{
		Type:      "token_refreshed",
		SessionID: sessionID,
		Details: map[string]any{
			"rotated": rotated,
		},
	})
}

// LogRefreshRejected logs a rejected refresh attempt with its reason
func (a *Auditor) LogRefreshRejected(sessionID, reason string) {
	a.LogEvent(Event{
		Type:      "refresh_rejected",
		SessionID: sessionID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogRefreshReuse logs presentation of a revoked or already-rotated
// refresh token. This is the forensic signal for token theft or a
// badly-behaved client.
func (a *Auditor) LogRefreshReuse(sessionID string) {
	a.LogEvent(Event{
		Type:      "refresh_token_reuse",
		SessionID: sessionID,
	})
}

// LogSessionDestroyed logs session deletion with its trigger
func (a *Auditor) LogSessionDestroyed(sessionID, reason string) {
	a.LogEvent(Event{
		Type:      "session_destroyed",
		SessionID: sessionID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogUserDeactivated logs the implicit global logout applied when an
// inactive user is detected on a live session
func (a *Auditor) LogUserDeactivated(userID, sessionID string) {
	a.LogEvent(Event{
		Type:      "user_deactivated",
		UserID:    userID,
		SessionID: sessionID,
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
