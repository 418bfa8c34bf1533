package session

import (
	"os"
	"time"
)

// Config defines all runtime configuration for the session subsystem.
//
// It controls the token issuer, token lifetime, clock skew tolerance and the
// PASETO v4 signing key. It is intentionally explicit and environment-driven
// so that deployments can tune security parameters without code changes.
type Config struct {
	// Issuer is the value set in the "iss" claim of issued tokens.
	Issuer string

	// TokenTTL defines the lifetime of issued tokens. Zero means tokens carry
	// no expiry claim and stay valid until the signing key rotates or the
	// credential is deleted; revocation then happens through the store
	// re-read in Resolve.
	TokenTTL time.Duration

	// ClockSkew defines the allowed time skew during token validation.
	ClockSkew time.Duration

	// LookupTimeout bounds the credential store read performed by Resolve.
	LookupTimeout time.Duration

	// PasetoV4SecretKeyHex is the hex-encoded Ed25519 secret key
	// used to sign PASETO v4.public tokens.
	PasetoV4SecretKeyHex string
}

// DefaultConfig returns a secure default configuration suitable for development.
//
// Production environments should override values via environment variables.
func DefaultConfig() Config {
	return Config{
		Issuer:        "authd",
		TokenTTL:      0,
		ClockSkew:     30 * time.Second,
		LookupTimeout: 3 * time.Second,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - AUTHD_PASETO_V4_SECRET_KEY_HEX
//
// Optional (durations must be valid Go duration strings):
//   - AUTHD_AUTH_ISSUER
//   - AUTHD_AUTH_TOKEN_TTL (0 disables expiry)
//   - AUTHD_AUTH_CLOCK_SKEW
//   - AUTHD_AUTH_LOOKUP_TIMEOUT
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("AUTHD_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("AUTHD_AUTH_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.TokenTTL = d
	}

	if v := os.Getenv("AUTHD_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	if v := os.Getenv("AUTHD_AUTH_LOOKUP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.LookupTimeout = d
	}

	cfg.PasetoV4SecretKeyHex = os.Getenv("AUTHD_PASETO_V4_SECRET_KEY_HEX")
	if cfg.PasetoV4SecretKeyHex == "" {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
