package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Galoniax/dualeat-auth/instrumentation"
	"github.com/Galoniax/dualeat-auth/security"
	"github.com/Galoniax/dualeat-auth/session"
	"github.com/Galoniax/dualeat-auth/storage"
	"github.com/Galoniax/dualeat-auth/token"
)

// Orchestrator drives the authentication flows: credential login,
// refresh with rotation, guarded access, and logout. It owns the
// session store, the refresh-token registry, and the token codec, all
// built over a single storage.KV backend.
type Orchestrator struct {
	config   Config
	users    UserDirectory
	sessions *session.Store
	registry *session.Registry
	codec    *token.Codec

	logger  *slog.Logger
	auditor *security.Auditor
	metrics *instrumentation.Metrics
	tracer  trace.Tracer
}

// LoginRequest carries a credential login attempt.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
	IsMobile   bool   `json:"isMobile"`
}

// Result is the outcome of a successful login or refresh: a token pair
// bound to a session, plus the session's user snapshot.
type Result struct {
	User         *session.Data
	AccessToken  string
	RefreshToken string
	SessionID    string
}

// New creates an Orchestrator over the given storage backend and user
// directory.
func New(kv storage.KV, users UserDirectory, cfg Config) (*Orchestrator, error) {
	if kv == nil {
		return nil, fmt.Errorf("storage backend is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user directory is required")
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	cfg.Cookies.applyDefaults()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	inst := cfg.Instrumentation
	if inst == nil {
		var err error
		inst, err = instrumentation.New(instrumentation.Config{Enabled: false})
		if err != nil {
			return nil, fmt.Errorf("failed to create instrumentation: %w", err)
		}
	}

	registry := session.NewRegistry(kv, logger)
	sessions := session.NewStore(kv, registry, logger)

	codec, err := token.New(token.Config{
		Secret:               cfg.Secret,
		Sessions:             sessions,
		Registry:             registry,
		Logger:               logger,
		AccessTTL:            cfg.TTL.Access,
		TempTTL:              cfg.TTL.Temp,
		RefreshTTL:           cfg.TTL.Refresh,
		RefreshTTLMobile:     cfg.TTL.RefreshMobile,
		SessionTTL:           cfg.TTL.Session,
		SessionTTLRemembered: cfg.TTL.SessionRemembered,
		SessionTTLMobile:     cfg.TTL.SessionMobile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token codec: %w", err)
	}

	return &Orchestrator{
		config:   cfg,
		users:    users,
		sessions: sessions,
		registry: registry,
		codec:    codec,
		logger:   logger,
		auditor:  security.NewAuditor(logger, cfg.AuditEnabled),
		metrics:  inst.Metrics(),
		tracer:   inst.Tracer("auth"),
	}, nil
}

// Sessions returns the underlying session store.
func (o *Orchestrator) Sessions() *session.Store {
	return o.sessions
}

// Registry returns the underlying refresh-token registry.
func (o *Orchestrator) Registry() *session.Registry {
	return o.registry
}

// Codec returns the underlying token codec.
func (o *Orchestrator) Codec() *token.Codec {
	return o.codec
}

// Login verifies credentials and issues a token pair. The password
// check runs in constant work even when no account exists, so login
// timing does not leak which emails are registered. Failures are
// reported as ErrInvalidCredentials without distinguishing unknown
// email from wrong password.
func (o *Orchestrator) Login(ctx context.Context, req LoginRequest) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "auth.login")
	defer span.End()
	instrumentation.SetAttributes(span,
		attribute.String(instrumentation.AttrDevice, string(session.ForMobile(req.IsMobile))))

	user, err := o.users.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		instrumentation.RecordError(span, err)
		return nil, ErrStoreUnavailable("user directory unavailable")
	}

	hash := ""
	if user != nil {
		hash = user.PasswordHash
	}
	if err := security.VerifyPassword(hash, req.Password); err != nil {
		o.auditor.LogLoginFailed(req.Email, ReasonInvalidCredentials)
		o.metrics.LoginFailures.Add(ctx, 1)
		return nil, ErrInvalidCredentials("invalid email or password")
	}

	if !user.Active {
		o.auditor.LogLoginFailed(req.Email, ReasonUserInactive)
		o.metrics.LoginFailures.Add(ctx, 1)
		return nil, ErrUserInactive("account is deactivated")
	}

	pair, err := o.codec.CreateTokenPair(ctx, sessionData(user), req.RememberMe, req.IsMobile)
	if err != nil {
		instrumentation.RecordError(span, err)
		o.logger.Error("Failed to issue token pair", "error", err)
		return nil, ErrStoreUnavailable("failed to establish session")
	}

	device := string(session.ForMobile(req.IsMobile))
	o.auditor.LogLoginSucceeded(user.ID, device, pair.SessionReused)
	o.metrics.LoginsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String(instrumentation.AttrDevice, device)))
	if pair.SessionReused {
		o.metrics.SessionsReused.Add(ctx, 1)
	} else {
		o.metrics.SessionsCreated.Add(ctx, 1)
	}
	instrumentation.SetAttributes(span,
		attribute.Bool(instrumentation.AttrSessionReuse, pair.SessionReused))

	data, err := o.sessions.Get(ctx, pair.SessionID)
	if err != nil {
		// The session was written moments ago; losing it here means the
		// store dropped it underneath us.
		instrumentation.RecordError(span, err)
		return nil, ErrStoreUnavailable("failed to load session")
	}

	return &Result{
		User:         data,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		SessionID:    pair.SessionID,
	}, nil
}

// Refresh exchanges a valid refresh token for a fresh pair, consuming
// the presented token. The checks run strictly in order: signature and
// expiry, declared type, registry validity, session liveness, account
// active. The old token is revoked before the new one is issued, so a
// crash between the two steps fails closed: the client must log in
// again, but the old token can never be replayed.
func (o *Orchestrator) Refresh(ctx context.Context, rawToken string, isMobile bool) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "auth.refresh")
	defer span.End()
	instrumentation.SetAttributes(span,
		attribute.String(instrumentation.AttrDevice, string(session.ForMobile(isMobile))))

	claims, err := o.codec.VerifyRefreshToken(rawToken)
	if err != nil {
		authErr := mapTokenError(err, "refresh token")
		o.rejectRefresh(ctx, span, "", authErr.Reason)
		return nil, authErr
	}

	sessionID := claims.SessionID
	hashed := o.codec.HashTokenID(claims.ID)

	valid, err := o.registry.IsValid(ctx, sessionID, hashed)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, ErrStoreUnavailable("failed to check refresh token")
	}
	if !valid {
		// A well-signed token the registry does not know was already
		// consumed by a rotation, revoked, or expired: likely replay.
		o.auditor.LogRefreshReuse(sessionID)
		o.metrics.RefreshReuseDetected.Add(ctx, 1)
		o.rejectRefresh(ctx, span, sessionID, ReasonRefreshTokenRevoked)
		return nil, ErrRefreshTokenRevoked("refresh token revoked or already used")
	}

	data, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			o.rejectRefresh(ctx, span, sessionID, ReasonSessionNotFound)
			return nil, ErrSessionNotFound("session expired or revoked")
		}
		instrumentation.RecordError(span, err)
		return nil, ErrStoreUnavailable("failed to load session")
	}

	if !data.Active {
		// Deactivation tears the whole session down, not just this
		// refresh attempt.
		_ = o.sessions.Delete(ctx, sessionID)
		o.auditor.LogUserDeactivated(data.UserID, sessionID)
		o.metrics.SessionsDeleted.Add(ctx, 1)
		o.rejectRefresh(ctx, span, sessionID, ReasonUserInactive)
		return nil, ErrUserInactive("account is deactivated")
	}

	if err := o.registry.Revoke(ctx, sessionID, hashed); err != nil {
		instrumentation.RecordError(span, err)
		return nil, ErrStoreUnavailable("failed to rotate refresh token")
	}
	o.metrics.TokenRevoked.Add(ctx, 1)

	accessToken, err := o.codec.CreateAccessToken(data, sessionID, isMobile)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, ErrServerError("failed to issue access token")
	}

	refreshToken, err := o.codec.CreateRefreshToken(ctx, sessionID, isMobile)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, ErrStoreUnavailable("failed to issue refresh token")
	}

	o.auditor.LogTokenRefreshed(sessionID, true)
	o.metrics.TokenRefreshed.Add(ctx, 1)
	instrumentation.SetAttributes(span,
		attribute.Bool(instrumentation.AttrTokenRotated, true))

	return &Result{
		User:         data,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    sessionID,
	}, nil
}

// Authenticate verifies an access token and loads its live session,
// refreshing the session's activity timestamp. An inactive account
// tears the session down and fails the request.
func (o *Orchestrator) Authenticate(ctx context.Context, rawToken string) (*session.Data, string, error) {
	claims, err := o.codec.VerifyAccessToken(rawToken)
	if err != nil {
		return nil, "", mapTokenError(err, "access token")
	}

	data, err := o.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, "", ErrSessionNotFound("session expired or revoked")
		}
		return nil, "", ErrStoreUnavailable("failed to load session")
	}

	if !data.Active {
		_ = o.sessions.Delete(ctx, claims.SessionID)
		o.auditor.LogUserDeactivated(data.UserID, claims.SessionID)
		o.metrics.SessionsDeleted.Add(ctx, 1)
		return nil, "", ErrUserInactive("account is deactivated")
	}

	return data, claims.SessionID, nil
}

// Logout destroys the session and every refresh token issued under it.
// Logout always succeeds: partial failures are logged and swallowed so
// the client ends up signed out either way.
func (o *Orchestrator) Logout(ctx context.Context, sessionID string) {
	ctx, span := o.tracer.Start(ctx, "auth.logout")
	defer span.End()

	_ = o.sessions.Delete(ctx, sessionID)
	o.auditor.LogSessionDestroyed(sessionID, "logout")
	o.metrics.SessionsDeleted.Add(ctx, 1)
}

// LogoutAll destroys every session the user holds, across both device
// classes.
func (o *Orchestrator) LogoutAll(ctx context.Context, userID string) error {
	ctx, span := o.tracer.Start(ctx, "auth.logout_all")
	defer span.End()

	if err := o.sessions.DeleteAllForUser(ctx, userID); err != nil {
		instrumentation.RecordError(span, err)
		return ErrStoreUnavailable("failed to delete sessions")
	}
	o.auditor.LogSessionDestroyed("", "logout_all")
	return nil
}

// rejectRefresh records a rejected refresh attempt on audit, metrics,
// and the active span.
func (o *Orchestrator) rejectRefresh(ctx context.Context, span trace.Span, sessionID, reason string) {
	o.auditor.LogRefreshRejected(sessionID, reason)
	o.metrics.RefreshRejected.Add(ctx, 1,
		metric.WithAttributes(attribute.String(instrumentation.AttrRejectReason, reason)))
	instrumentation.SetAttributes(span,
		attribute.String(instrumentation.AttrRejectReason, reason))
}

// mapTokenError converts codec verification errors to the client-facing
// taxonomy.
func mapTokenError(err error, kind string) *AuthError {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrExpired(kind + " expired")
	case errors.Is(err, token.ErrWrongType):
		return ErrWrongTokenType("token is not a " + kind)
	default:
		return ErrInvalidSignature("invalid " + kind)
	}
}
