package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"authd/cmd/credential"
	"authd/cmd/internal/auth/admin"
	"authd/cmd/internal/auth/api"
	"authd/cmd/internal/auth/session"
	"authd/cmd/internal/auth/throttle"
	"authd/cmd/security/password"
)

// credentialStore is the concrete storage picked at startup. Both backends
// satisfy credential.Store plus the lifecycle methods the app needs.
type credentialStore interface {
	credential.Store
	Ping(ctx context.Context) error
	Close() error
}

// App is the authd server runtime.
type App struct {
	cfg Config
	log Logger

	store credentialStore
	pool  *pgxpool.Pool
	rdb   *redis.Client

	auth *api.Handler
}

// newHasher picks the password hashing scheme named by config.
func newHasher(name string, bcryptCost int, cfg password.Config) (password.Hasher, error) {
	switch name {
	case "", "argon2id":
		return password.NewArgon2id(cfg), nil
	case "bcrypt":
		return password.NewBcrypt(bcryptCost, cfg.Policy), nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", name)
	}
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(sessCfg); err != nil {
		return nil, err
	}

	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}
	hasher, err := newHasher(cfg.PasswordHasher, cfg.BcryptCost, pwCfg)
	if err != nil {
		return nil, err
	}

	store, pool, err := newStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log, store: store, pool: pool}

	closeOnErr := func(err error) (*App, error) {
		a.close()
		return nil, err
	}

	if err := BootstrapAdmin(ctx, store, hasher, cfg, log); err != nil {
		return closeOnErr(err)
	}

	tokens, err := session.NewPasetoV4PublicManager(sessCfg)
	if err != nil {
		return closeOnErr(err)
	}
	auth, err := session.NewAuthenticator(sessCfg, store, hasher, tokens, log)
	if err != nil {
		return closeOnErr(err)
	}
	adminSvc := admin.NewService(store, hasher, log)

	var opts []api.HandlerOption
	if cfg.RedisURL != "" {
		rdb, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return closeOnErr(err)
		}
		a.rdb = rdb

		tcfg, err := throttle.LoadConfigFromEnv()
		if err != nil {
			return closeOnErr(err)
		}
		opts = append(opts, api.WithLimiter(throttle.NewLimiter(tcfg, rdb, log)))
		log.Info("login throttling enabled")
	} else {
		log.Warn("login throttling disabled, no redis url configured")
	}

	handler, err := api.NewHandler(log, api.LoadConfigFromEnv(), auth, adminSvc, opts...)
	if err != nil {
		return closeOnErr(err)
	}
	a.auth = handler

	return a, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.store, a.auth)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server start", "addr", a.cfg.HTTPAddr, "postgres", a.pool != nil)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server stop", "reason", "signal")
	case err := <-errCh:
		a.log.Error("server failed", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server shutdown failed", "err", err)
		return err
	}

	a.log.Info("server stopped")
	return nil
}

func (a *App) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Error("store close failed", "err", err)
		}
		a.store = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
		a.rdb = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between Postgres-backed persistence and the embedded
// SQLite file. The pool is returned separately because the app owns its
// lifecycle; pgStore's Close is a no-op.
func newStore(ctx context.Context, cfg Config, log Logger) (credentialStore, *pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		st, err := credential.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using sqlite credential store", "path", cfg.SQLitePath)
		return st, nil, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	st, err := credential.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info("using postgres credential store")
	return pgStore{st}, pool, nil
}

type pgStore struct {
	*credential.PostgresStore
}

// Close is a no-op; the app closes the pool itself.
func (pgStore) Close() error { return nil }
