// Package app wires the authd server runtime: config, logging, storage and
// HTTP routes.
//
// It is intentionally small and deterministic to keep behavior predictable.
package app

import "time"

// Config contains all runtime configuration. Values come from the environment
// with optional overrides from a YAML file named by AUTHD_CONFIG_FILE.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // "json" or "pretty"

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// DatabaseURL selects Postgres. When empty, the embedded SQLite store at
	// SQLitePath is used instead.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	SQLitePath  string

	// RedisURL enables the failed-login limiter. Empty disables throttling.
	RedisURL string

	// PasswordHasher selects the hashing scheme for new hashes: "argon2id"
	// (default) or "bcrypt" for deployments importing bcrypt-hashed records.
	PasswordHasher string
	// BcryptCost tunes the bcrypt hasher; zero means the library default.
	BcryptCost int

	// If true, /readyz returns 503 unless the backing store is reachable.
	ReadinessRequireDB bool

	// Bootstrap of the initial admin account.
	BootstrapAdminEnabled    bool
	BootstrapAdminUsername   string
	InitialAdminPasswordPath string
}

// LoadConfig loads Config from environment variables with defaults, then
// applies the YAML override file if AUTHD_CONFIG_FILE is set.
func LoadConfig() (Config, error) {
	cfg := Config{
		HTTPAddr:  EnvString("AUTHD_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("AUTHD_LOG_LEVEL", "info"),
		LogFormat: EnvString("AUTHD_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("AUTHD_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("AUTHD_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("AUTHD_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("AUTHD_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("AUTHD_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("AUTHD_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("AUTHD_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("AUTHD_DB_MIN_CONNS", 0),
		SQLitePath:  EnvString("AUTHD_SQLITE_PATH", "authd.db"),

		RedisURL: EnvString("AUTHD_REDIS_URL", ""),

		PasswordHasher: EnvString("AUTHD_PASSWORD_HASHER", "argon2id"),
		BcryptCost:     EnvInt("AUTHD_BCRYPT_COST", 0),

		ReadinessRequireDB: EnvBool("AUTHD_READINESS_REQUIRE_DB", false),

		BootstrapAdminEnabled:    EnvBool("AUTHD_BOOTSTRAP_ADMIN", true),
		BootstrapAdminUsername:   EnvString("AUTHD_BOOTSTRAP_ADMIN_USERNAME", "admin"),
		InitialAdminPasswordPath: EnvString("AUTHD_INITIAL_ADMIN_PASSWORD_PATH", ""),
	}

	if path := EnvString("AUTHD_CONFIG_FILE", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}
