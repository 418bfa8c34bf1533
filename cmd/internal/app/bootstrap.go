package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	"authd/cmd/credential"
	"authd/cmd/security/password"
)

// BootstrapAdmin creates the initial admin account when no admin exists yet.
// It is idempotent: with any admin already present it does nothing, so it is
// safe to run on every boot.
//
// The generated password is written to cfg.InitialAdminPasswordPath when set,
// otherwise it is logged once. Either way it should be rotated after first
// login.
func BootstrapAdmin(ctx context.Context, store credential.Store, hasher password.Hasher, cfg Config, log *slog.Logger) error {
	if !cfg.BootstrapAdminEnabled {
		return nil
	}

	has, err := store.HasAdmin(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if has {
		return nil
	}

	username := credential.NormalizeUsername(cfg.BootstrapAdminUsername)
	plain, err := generatePassword(32)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	hash, err := hasher.Hash(plain)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	if err := store.Create(ctx, username, hash, credential.AuthorityAdmin); err != nil {
		// A concurrent boot may have won the race; that still means an admin exists.
		if credential.IsDuplicate(err) {
			return nil
		}
		return fmt.Errorf("bootstrap: %w", err)
	}

	if cfg.InitialAdminPasswordPath != "" {
		if err := os.WriteFile(cfg.InitialAdminPasswordPath, []byte(plain+"\n"), 0o600); err != nil {
			return fmt.Errorf("bootstrap: write password file: %w", err)
		}
		log.Info("initial admin created", "username", username, "password_path", cfg.InitialAdminPasswordPath)
	} else {
		log.Warn("initial admin created, rotate this password",
			"username", username, "password", plain)
	}
	return nil
}

func generatePassword(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("password length must be positive")
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}
