// Package token creates and verifies the signed, time-bound bearer
// credentials of the auth subsystem: short-lived access tokens,
// rotating refresh tokens, and stateless temporary onboarding tokens.
//
// All tokens are HMAC-SHA256 signed with a shared secret. Claims are
// kept compact: user ids are hashed before embedding and role/provider
// are encoded as single-character codes. Refresh tokens are backed by a
// validity record in the session registry, written before the token is
// ever returned to a caller.
package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Galoniax/dualeat-auth/session"
)

// Verification errors. Callers distinguish them with errors.Is.
var (
	// ErrInvalidSignature is returned for tokens that are malformed or
	// fail signature verification.
	ErrInvalidSignature = errors.New("token: invalid signature")

	// ErrExpired is returned for well-signed tokens past their expiry.
	ErrExpired = errors.New("token: expired")

	// ErrWrongType is returned when a token's declared type does not
	// match the verifier, even if the signature is valid.
	ErrWrongType = errors.New("token: wrong token type")
)

// Default lifetimes. Session lifetimes depend on device class and the
// remember-me choice; token lifetimes are fixed per kind.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultTempTTL    = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour

	DefaultRefreshTTLMobile = 30 * 24 * time.Hour

	DefaultSessionTTL           = 24 * time.Hour
	DefaultSessionTTLRemembered = 7 * 24 * time.Hour
	DefaultSessionTTLMobile     = 30 * 24 * time.Hour
)

// hashedUserIDLength is the truncated length of the hashed user id
// embedded in access tokens. The hash is obfuscation, not a lookup
// key; session lookup always goes through the session id.
const hashedUserIDLength = 12

// Config holds configuration for the token codec.
type Config struct {
	// Secret is the shared signing secret (required).
	Secret string

	// Sessions is the session store used by CreateTokenPair (required).
	Sessions *session.Store

	// Registry records refresh-token validity (required).
	Registry *session.Registry

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger

	// AccessTTL is the access token lifetime (default 15 minutes).
	AccessTTL time.Duration

	// TempTTL is the temporary token lifetime (default 30 minutes).
	TempTTL time.Duration

	// RefreshTTL is the refresh token lifetime on the web channel
	// (default 7 days).
	RefreshTTL time.Duration

	// RefreshTTLMobile is the refresh token lifetime on the mobile
	// channel (default 30 days).
	RefreshTTLMobile time.Duration

	// SessionTTL is the session lifetime for a plain web login
	// (default 1 day).
	SessionTTL time.Duration

	// SessionTTLRemembered is the session lifetime for a remembered
	// web login (default 7 days).
	SessionTTLRemembered time.Duration

	// SessionTTLMobile is the session lifetime for mobile logins,
	// regardless of remember-me (default 30 days).
	SessionTTLMobile time.Duration
}

// Codec creates and verifies access, refresh, and temporary tokens.
type Codec struct {
	secret   []byte
	sessions *session.Store
	registry *session.Registry
	logger   *slog.Logger

	accessTTL        time.Duration
	tempTTL          time.Duration
	refreshTTL       time.Duration
	refreshTTLMobile time.Duration

	sessionTTL           time.Duration
	sessionTTLRemembered time.Duration
	sessionTTLMobile     time.Duration
}

// Pair is an issued access/refresh token pair bound to a session.
// SessionReused reports whether an existing live session was reused
// instead of a new one created.
type Pair struct {
	AccessToken   string
	RefreshToken  string
	SessionID     string
	SessionReused bool
}

// New creates a token codec. Secret, Sessions, and Registry are
// required; zero durations fall back to the defaults above.
func New(cfg Config) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("refresh token registry is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Codec{
		secret:               []byte(cfg.Secret),
		sessions:             cfg.Sessions,
		registry:             cfg.Registry,
		logger:               logger,
		accessTTL:            cfg.AccessTTL,
		tempTTL:              cfg.TempTTL,
		refreshTTL:           cfg.RefreshTTL,
		refreshTTLMobile:     cfg.RefreshTTLMobile,
		sessionTTL:           cfg.SessionTTL,
		sessionTTLRemembered: cfg.SessionTTLRemembered,
		sessionTTLMobile:     cfg.SessionTTLMobile,
	}

	if c.accessTTL <= 0 {
		c.accessTTL = DefaultAccessTTL
	}
	if c.tempTTL <= 0 {
		c.tempTTL = DefaultTempTTL
	}
	if c.refreshTTL <= 0 {
		c.refreshTTL = DefaultRefreshTTL
	}
	if c.refreshTTLMobile <= 0 {
		c.refreshTTLMobile = DefaultRefreshTTLMobile
	}
	if c.sessionTTL <= 0 {
		c.sessionTTL = DefaultSessionTTL
	}
	if c.sessionTTLRemembered <= 0 {
		c.sessionTTLRemembered = DefaultSessionTTLRemembered
	}
	if c.sessionTTLMobile <= 0 {
		c.sessionTTLMobile = DefaultSessionTTLMobile
	}

	return c, nil
}

// AccessTTL returns the configured access token lifetime, for cookie
// policy alignment.
func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

// RefreshTTLFor returns the refresh token lifetime for a channel.
func (c *Codec) RefreshTTLFor(isMobile bool) time.Duration {
	if isMobile {
		return c.refreshTTLMobile
	}
	return c.refreshTTL
}

// SessionTTLFor returns the session lifetime for a login: mobile
// sessions get the mobile TTL regardless of remember-me; web sessions
// get the remembered TTL or the default.
func (c *Codec) SessionTTLFor(rememberMe, isMobile bool) time.Duration {
	switch {
	case isMobile:
		return c.sessionTTLMobile
	case rememberMe:
		return c.sessionTTLRemembered
	default:
		return c.sessionTTL
	}
}

// CreateAccessToken signs a short-lived access token bound to the
// session, with a fresh random token id.
func (c *Codec) CreateAccessToken(data *session.Data, sessionID string, isMobile bool) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Role:      encodeRole(data.Role),
		Provider:  encodeProvider(data.Provider),
		Mobile:    isMobile,
		SessionID: sessionID,
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.hashUserID(data.UserID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
	}

	return c.sign(claims)
}

// CreateRefreshToken signs a long-lived refresh token bound to the
// session. The validity record is persisted in the registry before the
// token is signed: a refresh token must never exist without a
// corresponding record, or it could not be revoked.
func (c *Codec) CreateRefreshToken(ctx context.Context, sessionID string, isMobile bool) (string, error) {
	jti := uuid.NewString()
	ttl := c.RefreshTTLFor(isMobile)

	if err := c.registry.Store(ctx, sessionID, c.HashTokenID(jti), ttl); err != nil {
		return "", fmt.Errorf("failed to record refresh token: %w", err)
	}

	now := time.Now()
	claims := RefreshClaims{
		SessionID: sessionID,
		Mobile:    isMobile,
		TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return c.sign(claims)
}

// CreateTokenPair establishes (or reuses) a session for the user and
// issues both tokens bound to it.
func (c *Codec) CreateTokenPair(ctx context.Context, data *session.Data, rememberMe, isMobile bool) (*Pair, error) {
	sessionTTL := c.SessionTTLFor(rememberMe, isMobile)

	sessionID, reused, err := c.sessions.CreateOrReuse(ctx, data, sessionTTL, session.ForMobile(isMobile))
	if err != nil {
		return nil, fmt.Errorf("failed to establish session: %w", err)
	}

	accessToken, err := c.CreateAccessToken(data, sessionID, isMobile)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := c.CreateRefreshToken(ctx, sessionID, isMobile)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return &Pair{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		SessionID:     sessionID,
		SessionReused: reused,
	}, nil
}

// CreateTempToken signs a temporary onboarding token. No registry
// record is written: the token is stateless by design, since
// onboarding must survive across requests without a pre-existing
// session.
func (c *Codec) CreateTempToken(claims TempClaims) (string, error) {
	if claims.Step == "" {
		return "", fmt.Errorf("onboarding step is required")
	}

	now := time.Now()
	claims.ID = uuid.NewString()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.tempTTL))

	return c.sign(claims)
}

// VerifyAccessToken verifies signature, expiry, and declared type, and
// returns the access claims.
func (c *Codec) VerifyAccessToken(raw string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := c.parse(raw, &claims); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeAccess {
		return nil, ErrWrongType
	}
	return &claims, nil
}

// VerifyRefreshToken verifies signature, expiry, and declared type, and
// returns the refresh claims. Registry validity is the caller's next
// step; a verified token may still have been revoked.
func (c *Codec) VerifyRefreshToken(raw string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := c.parse(raw, &claims); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeRefresh {
		return nil, ErrWrongType
	}
	return &claims, nil
}

// VerifyTempToken verifies signature and expiry of a temporary token.
// Temp tokens declare their kind through the onboarding step marker; a
// signed token of another kind parses without one and is rejected.
func (c *Codec) VerifyTempToken(raw string) (*TempClaims, error) {
	var claims TempClaims
	if err := c.parse(raw, &claims); err != nil {
		return nil, err
	}
	if claims.Step == "" {
		return nil, ErrWrongType
	}
	return &claims, nil
}

// sign signs claims with HMAC-SHA256.
func (c *Codec) sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// parse verifies the signature and standard time claims, rejecting any
// signing method other than HMAC.
func (c *Codec) parse(raw string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}
	if !parsed.Valid {
		return ErrInvalidSignature
	}
	return nil
}

// hashUserID derives the obfuscated subject embedded in access tokens:
// the user id combined with the signing secret, hashed, and truncated.
func (c *Codec) hashUserID(userID string) string {
	sum := sha256.Sum256([]byte(userID + ":" + string(c.secret)))
	return hex.EncodeToString(sum[:])[:hashedUserIDLength]
}

// HashTokenID derives the registry key for a refresh token id. The raw
// id only ever exists inside the signed token; the registry sees this
// hash.
func (c *Codec) HashTokenID(jti string) string {
	sum := sha256.Sum256([]byte(jti + ":" + string(c.secret)))
	return hex.EncodeToString(sum[:])
}

// encodeRole maps a role to its single-character token code. Unknown
// roles default to the least-privileged code. This is a space
// optimization, not security-relevant obfuscation.
func encodeRole(role session.Role) string {
	switch role {
	case session.RoleAdmin:
		return "a"
	default:
		return "u"
	}
}

// encodeProvider maps an auth provider to its single-character token
// code. Unknown providers default to the local code.
func encodeProvider(provider string) string {
	switch provider {
	case session.ProviderGoogle:
		return "g"
	default:
		return "l"
	}
}
