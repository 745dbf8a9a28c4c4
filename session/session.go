// Package session manages authenticated session state and refresh-token
// validity records on top of the storage contract.
//
// A session represents one authenticated user on one device class (web
// or mobile). Sessions are keyed by an opaque high-entropy id, with a
// secondary per-(user, device) index enforcing at most one live session
// per device class. Refresh-token validity is tracked per session so
// individual tokens can be rotated and whole sessions revoked.
package session

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a session is absent, expired, or
// unreadable. Malformed session payloads fail closed to this error.
var ErrNotFound = errors.New("session: not found")

// Device identifies the device class a session belongs to.
type Device string

// Device classes. A user may hold one live session per class.
const (
	DeviceWeb    Device = "web"
	DeviceMobile Device = "mobile"
)

// ForMobile returns the device class for the given channel flag.
func ForMobile(isMobile bool) Device {
	if isMobile {
		return DeviceMobile
	}
	return DeviceWeb
}

// Role is the authorization role captured in the session snapshot.
type Role string

// Known roles. Anything else is treated as the least-privileged role
// when encoded into tokens.
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Auth providers captured in the session snapshot.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// Data is the per-session snapshot of the authenticated user, stored
// JSON-serialized under session:{sessionID}. Field names match the
// wire format consumed by the frontend clients.
type Data struct {
	UserID             string     `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	Slug               string     `json:"slug"`
	Role               Role       `json:"role"`
	Provider           string     `json:"provider"`
	IsBusiness         bool       `json:"isBusiness"`
	Active             bool       `json:"active"`
	SubscriptionStatus string     `json:"subscription_status"`
	TrialEndsAt        *time.Time `json:"trial_ends_at"`
	AvatarURL          *string    `json:"avatar_url"`
	LoginAt            time.Time  `json:"loginAt"`
	LastActivity       time.Time  `json:"lastActivity"`
}

// Key prefixes shared by Store and Registry.
const (
	sessionPrefix     = "session:"
	refreshPrefix     = "refresh:"
	userSessionPrefix = "user-session:"
)
