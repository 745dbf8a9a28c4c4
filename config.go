package auth

import (
	"log/slog"
	"time"

	"github.com/Galoniax/dualeat-auth/instrumentation"
)

// Default cookie settings for the web channel.
const (
	DefaultAccessCookieName  = "accessToken"
	DefaultRefreshCookieName = "refreshToken"
	DefaultRefreshCookiePath = "/api/auth/refresh"
)

// CookieConfig controls the cookies set for web clients. Mobile clients
// never receive cookies.
type CookieConfig struct {
	// AccessName is the access token cookie name.
	// Defaults to DefaultAccessCookieName.
	AccessName string

	// RefreshName is the refresh token cookie name.
	// Defaults to DefaultRefreshCookieName.
	RefreshName string

	// RefreshPath scopes the refresh cookie to the refresh endpoint so
	// the long-lived token is not sent on every request.
	// Defaults to DefaultRefreshCookiePath.
	RefreshPath string

	// Domain is the optional cookie domain.
	Domain string

	// Secure marks cookies Secure. Enable everywhere except local
	// development over plain HTTP.
	Secure bool
}

// TTLConfig overrides token and session lifetimes. Zero values fall
// back to the defaults in the token package.
type TTLConfig struct {
	Access            time.Duration
	Temp              time.Duration
	Refresh           time.Duration
	RefreshMobile     time.Duration
	Session           time.Duration
	SessionRemembered time.Duration
	SessionMobile     time.Duration
}

// Config configures an Orchestrator.
type Config struct {
	// Secret is the HMAC signing secret for all token kinds. Required.
	Secret string

	// TTL overrides token and session lifetimes.
	TTL TTLConfig

	// Cookies configures the web channel cookies.
	Cookies CookieConfig

	// AuditEnabled turns on security audit logging.
	AuditEnabled bool

	// Logger receives structured logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Instrumentation provides metrics and tracing. When nil a disabled
	// no-op instance is used.
	Instrumentation *instrumentation.Instrumentation
}

func (c *CookieConfig) applyDefaults() {
	if c.AccessName == "" {
		c.AccessName = DefaultAccessCookieName
	}
	if c.RefreshName == "" {
		c.RefreshName = DefaultRefreshCookieName
	}
	if c.RefreshPath == "" {
		c.RefreshPath = DefaultRefreshCookiePath
	}
}
