package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Galoniax/dualeat-auth/session"
)

// Handler exposes the authentication flows over HTTP and implements
// the dual-channel conventions: web clients exchange tokens through
// httpOnly cookies, mobile clients through bearer headers and response
// bodies.
type Handler struct {
	orch    *Orchestrator
	cookies CookieConfig
	logger  *slog.Logger
}

// NewHandler creates an HTTP handler around the orchestrator.
func NewHandler(o *Orchestrator) *Handler {
	return &Handler{
		orch:    o,
		cookies: o.config.Cookies,
		logger:  o.logger,
	}
}

// authResponse is the JSON body for every auth endpoint. Token fields
// are only populated for mobile clients; web clients receive tokens in
// cookies.
type authResponse struct {
	Success         bool          `json:"success"`
	Message         string        `json:"message,omitempty"`
	User            *session.Data `json:"user,omitempty"`
	AccessToken     string        `json:"accessToken,omitempty"`
	RefreshToken    string        `json:"refreshToken,omitempty"`
	RequiresRefresh bool          `json:"requiresRefresh,omitempty"`
}

// Login handles POST credential logins. The channel comes from the
// isMobile flag in the body: mobile clients get tokens in the response,
// web clients get cookies with the refresh cookie lifetime following
// the remember-me choice.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeAuthError(w, NewAuthError(ReasonServerError, "malformed login request", http.StatusBadRequest))
		return
	}

	result, err := h.orch.Login(r.Context(), req)
	if err != nil {
		h.writeAuthError(w, asAuthError(err))
		return
	}

	resp := authResponse{
		Success: true,
		Message: "login successful",
		User:    result.User,
	}

	if req.IsMobile {
		resp.AccessToken = result.AccessToken
		resp.RefreshToken = result.RefreshToken
	} else {
		h.setAccessCookie(w, result.AccessToken)
		// The refresh cookie lives as long as the session it refreshes.
		h.setRefreshCookie(w, result.RefreshToken,
			h.orch.Codec().SessionTTLFor(req.RememberMe, false))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Refresh handles POST refresh exchanges. The presented refresh token
// is consumed; the response carries a fresh pair on the same channel it
// arrived on. Failed exchanges clear web cookies so the client falls
// back to login instead of replaying a dead token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw, isMobile := h.extractRefreshToken(r)
	if raw == "" {
		h.writeAuthError(w, ErrMissingToken("refresh token not found"))
		return
	}

	result, err := h.orch.Refresh(r.Context(), raw, isMobile)
	if err != nil {
		if !isMobile {
			h.clearAccessCookie(w)
			h.clearRefreshCookie(w)
		}
		h.writeAuthError(w, asAuthError(err))
		return
	}

	resp := authResponse{
		Success: true,
		Message: "token refreshed",
		User:    result.User,
	}

	if isMobile {
		resp.AccessToken = result.AccessToken
		resp.RefreshToken = result.RefreshToken
	} else {
		h.setAccessCookie(w, result.AccessToken)
		h.setRefreshCookie(w, result.RefreshToken, h.orch.Codec().RefreshTTLFor(false))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Logout handles POST logouts. It destroys the session when one can be
// identified but reports success regardless, and always clears web
// cookies: a client that asks to be signed out ends up signed out.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := ""
	isMobile := false

	if principal, ok := PrincipalFromContext(r.Context()); ok {
		sessionID = principal.SessionID
		isMobile = principal.Mobile
	} else if raw, mobile := h.extractAccessToken(r); raw != "" {
		isMobile = mobile
		if claims, err := h.orch.Codec().VerifyAccessToken(raw); err == nil {
			sessionID = claims.SessionID
		}
	}

	if sessionID != "" {
		h.orch.Logout(r.Context(), sessionID)
	}

	if !isMobile {
		h.clearAccessCookie(w)
		h.clearRefreshCookie(w)
	}

	h.writeJSON(w, http.StatusOK, authResponse{
		Success: true,
		Message: "logged out",
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeAuthError(w http.ResponseWriter, authErr *AuthError) {
	h.writeJSON(w, authErr.Status, authResponse{
		Success:         false,
		Message:         authErr.Error(),
		RequiresRefresh: authErr.RequiresRefresh(),
	})
}
