package api

import (
	"net/http"
	"strings"
	"time"
)

// tokenFromRequest prefers the Authorization header; the cookie is a fallback
// for browser clients when the cookie transport is enabled.
func (h *Handler) tokenFromRequest(r *http.Request) string {
	if tok := bearerToken(r); tok != "" {
		return tok
	}
	if !h.cfg.CookieEnabled {
		return ""
	}
	c, err := r.Cookie(h.cfg.CookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, exp time.Time) {
	if h == nil || w == nil {
		return
	}
	c := &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	}
	// No-expiry tokens get a session cookie (cleared when the browser exits).
	if !exp.IsZero() {
		c.Expires = exp
	}
	http.SetCookie(w, c)
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	if h == nil || w == nil || !h.cfg.CookieEnabled {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}
