package app

import (
	"errors"

	paseto "aidanwoods.dev/go-paseto"

	"authd/cmd/internal/auth/session"
)

// ValidateSecurityConfig enforces startup security policy.
//
// Fail-fast is intentional: a service that starts with an unusable signing
// key would mint no valid tokens and every login would fail at runtime
// instead of at boot.
func ValidateSecurityConfig(sessCfg session.Config) error {
	if sessCfg.PasetoV4SecretKeyHex == "" {
		return errors.New("security policy: AUTHD_PASETO_V4_SECRET_KEY_HEX is required")
	}
	if _, err := paseto.NewV4AsymmetricSecretKeyFromHex(sessCfg.PasetoV4SecretKeyHex); err != nil {
		return errors.New("security policy: AUTHD_PASETO_V4_SECRET_KEY_HEX is not a valid Ed25519 secret key")
	}
	return nil
}
