package auth

import (
	"net/http"
	"time"
)

// setAccessCookie sets the access token cookie, valid site-wide for
// the access token's own lifetime.
func (h *Handler) setAccessCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.AccessName,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   int(h.orch.Codec().AccessTTL() / time.Second),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// setRefreshCookie sets the refresh token cookie, scoped to the refresh
// endpoint path for the given lifetime.
func (h *Handler) setRefreshCookie(w http.ResponseWriter, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.RefreshName,
		Value:    value,
		Path:     h.cookies.RefreshPath,
		Domain:   h.cookies.Domain,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearAccessCookie expires the access token cookie. Attributes must
// match the set cookie or browsers keep the original.
func (h *Handler) clearAccessCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.AccessName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearRefreshCookie expires the refresh token cookie.
func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.RefreshName,
		Value:    "",
		Path:     h.cookies.RefreshPath,
		Domain:   h.cookies.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
