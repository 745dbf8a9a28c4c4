package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/Galoniax/dualeat-auth/session"
)

type contextKey int

const principalContextKey contextKey = iota

// Principal is the authenticated identity attached to a request by the
// Guard middleware.
type Principal struct {
	Session   *session.Data
	SessionID string
	Mobile    bool
}

// PrincipalFromContext returns the authenticated principal set by the
// Guard middleware, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	return p, ok
}

func withPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// extractAccessToken pulls the access token from the request and
// classifies the channel: an Authorization bearer header means mobile,
// the access cookie means web. The header wins when both are present.
func (h *Handler) extractAccessToken(r *http.Request) (raw string, isMobile bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		if t, ok := strings.CutPrefix(header, "Bearer "); ok && t != "" {
			return t, true
		}
	}
	if cookie, err := r.Cookie(h.cookies.AccessName); err == nil && cookie.Value != "" {
		return cookie.Value, false
	}
	return "", false
}

// extractRefreshToken pulls the refresh token: bearer header for
// mobile, the path-scoped refresh cookie for web.
func (h *Handler) extractRefreshToken(r *http.Request) (raw string, isMobile bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		if t, ok := strings.CutPrefix(header, "Bearer "); ok && t != "" {
			return t, true
		}
	}
	if cookie, err := r.Cookie(h.cookies.RefreshName); err == nil && cookie.Value != "" {
		return cookie.Value, false
	}
	return "", false
}

// Guard authenticates the request on either channel and attaches the
// principal to the request context. Failures answer with the error
// taxonomy JSON; web clients additionally get stale cookies cleared so
// a broken token is not resent forever.
func (h *Handler) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, isMobile := h.extractAccessToken(r)
		if raw == "" {
			h.writeAuthError(w, ErrMissingToken("access token not found"))
			return
		}

		data, sessionID, err := h.orch.Authenticate(r.Context(), raw)
		if err != nil {
			authErr := asAuthError(err)
			if !isMobile {
				h.clearAccessCookie(w)
				if authErr.Reason == ReasonUserInactive {
					h.clearRefreshCookie(w)
				}
			}
			h.writeAuthError(w, authErr)
			return
		}

		principal := &Principal{
			Session:   data,
			SessionID: sessionID,
			Mobile:    isMobile,
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
	})
}

// asAuthError normalizes any error to an AuthError, hiding internal
// details behind a generic server error.
func asAuthError(err error) *AuthError {
	if authErr, ok := err.(*AuthError); ok {
		return authErr
	}
	return ErrServerError("authentication failed")
}
