package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls API behavior and security defaults.
type Config struct {
	// TrustProxy enables X-Forwarded-For / X-Real-IP for client IP detection.
	// Only enable behind a proxy that strips these headers from clients.
	TrustProxy   bool
	MaxBodyBytes int64

	// Cookie transport. When enabled, login also sets an HttpOnly session
	// cookie and requests may present the token through it instead of the
	// Authorization header.
	CookieEnabled  bool
	CookieName     string
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
}

// LoadConfigFromEnv loads API config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:     envBool("AUTHD_API_TRUST_PROXY", false),
		MaxBodyBytes:   envInt64("AUTHD_API_MAX_BODY_BYTES", 1<<20), // 1 MiB
		CookieEnabled:  envBool("AUTHD_API_COOKIE_ENABLED", false),
		CookieName:     envString("AUTHD_API_COOKIE_NAME", "authd_session"),
		CookiePath:     envString("AUTHD_API_COOKIE_PATH", "/"),
		CookieDomain:   os.Getenv("AUTHD_API_COOKIE_DOMAIN"),
		CookieSecure:   envBool("AUTHD_API_COOKIE_SECURE", true),
		CookieSameSite: envSameSite("AUTHD_API_COOKIE_SAMESITE", http.SameSiteLaxMode),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envSameSite(key string, def http.SameSite) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return def
	}
}
