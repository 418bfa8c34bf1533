package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"authd/cmd/security/password"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"  DEBUG ", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLogLevel(tc.in); got != tc.want {
			t.Errorf("parseLogLevel(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearAuthdEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.SQLitePath != "authd.db" || cfg.DatabaseURL != "" {
		t.Fatalf("unexpected store defaults: %+v", cfg)
	}
	if !cfg.BootstrapAdminEnabled || cfg.BootstrapAdminUsername != "admin" {
		t.Fatalf("unexpected bootstrap defaults: %+v", cfg)
	}
	if cfg.ReadTimeout != 15*time.Second {
		t.Fatalf("ReadTimeout=%v", cfg.ReadTimeout)
	}
	if cfg.PasswordHasher != "argon2id" || cfg.BcryptCost != 0 {
		t.Fatalf("unexpected hasher defaults: %+v", cfg)
	}
}

func TestNewHasherSelection(t *testing.T) {
	pwCfg := password.DefaultConfig()

	if h, err := newHasher("", 0, pwCfg); err != nil || h == nil {
		t.Fatalf("empty name: h=%v err=%v", h, err)
	}
	if _, err := newHasher("argon2id", 0, pwCfg); err != nil {
		t.Fatalf("argon2id: %v", err)
	}

	h, err := newHasher("bcrypt", 4, pwCfg)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if _, ok := h.(*password.Bcrypt); !ok {
		t.Fatalf("expected bcrypt hasher, got %T", h)
	}

	if _, err := newHasher("scrypt", 0, pwCfg); err == nil {
		t.Fatal("expected error for unknown hasher name")
	}
}

func TestLoadConfigFileOverrides(t *testing.T) {
	clearAuthdEnv(t)

	path := filepath.Join(t.TempDir(), "authd.yaml")
	body := `
http_addr: "127.0.0.1:9090"
log_format: pretty
read_timeout: 30s
bootstrap_admin: false
sqlite_path: /var/lib/authd/users.db
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AUTHD_CONFIG_FILE", path)
	t.Setenv("AUTHD_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9090" || cfg.LogFormat != "pretty" {
		t.Fatalf("file overrides not applied: %+v", cfg)
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Fatalf("ReadTimeout=%v", cfg.ReadTimeout)
	}
	if cfg.BootstrapAdminEnabled {
		t.Fatal("bootstrap_admin=false ignored")
	}
	if cfg.SQLitePath != "/var/lib/authd/users.db" {
		t.Fatalf("SQLitePath=%q", cfg.SQLitePath)
	}
	// Keys absent from the file keep their environment values.
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel=%q", cfg.LogLevel)
	}
	if cfg.WriteTimeout != 15*time.Second {
		t.Fatalf("WriteTimeout=%v", cfg.WriteTimeout)
	}
}

func TestLoadConfigFileInvalidDuration(t *testing.T) {
	clearAuthdEnv(t)

	path := filepath.Join(t.TempDir(), "authd.yaml")
	if err := os.WriteFile(path, []byte("idle_timeout: soon\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AUTHD_CONFIG_FILE", path)

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	clearAuthdEnv(t)
	t.Setenv("AUTHD_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

// clearAuthdEnv unsets the variables LoadConfig reads so tests see defaults
// regardless of the host environment.
func clearAuthdEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AUTHD_HTTP_ADDR", "AUTHD_LOG_LEVEL", "AUTHD_LOG_FORMAT",
		"AUTHD_HTTP_READ_HEADER_TIMEOUT", "AUTHD_HTTP_READ_TIMEOUT",
		"AUTHD_HTTP_WRITE_TIMEOUT", "AUTHD_HTTP_IDLE_TIMEOUT",
		"AUTHD_HTTP_MAX_HEADER_BYTES",
		"AUTHD_DATABASE_URL", "AUTHD_DB_MAX_CONNS", "AUTHD_DB_MIN_CONNS",
		"AUTHD_SQLITE_PATH", "AUTHD_REDIS_URL", "AUTHD_READINESS_REQUIRE_DB",
		"AUTHD_PASSWORD_HASHER", "AUTHD_BCRYPT_COST",
		"AUTHD_BOOTSTRAP_ADMIN", "AUTHD_BOOTSTRAP_ADMIN_USERNAME",
		"AUTHD_INITIAL_ADMIN_PASSWORD_PATH", "AUTHD_CONFIG_FILE",
	} {
		t.Setenv(k, "")
	}
}
