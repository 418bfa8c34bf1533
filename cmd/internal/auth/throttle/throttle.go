// Package throttle implements a Redis-backed failed-login limiter.
//
// Counters are kept per username and per client IP inside a rolling window.
// The limiter only counts failures; a successful login clears the username
// counter so legitimate users recover immediately after a typo streak.
package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config tunes the limiter.
type Config struct {
	// MaxPerUser is the failed-attempt budget per username per window.
	MaxPerUser int
	// MaxPerIP is the failed-attempt budget per client IP per window.
	MaxPerIP int
	// Window is the rolling lockout window.
	Window time.Duration
	// KeyPrefix namespaces the limiter's keys in a shared Redis.
	KeyPrefix string
}

// DefaultConfig returns limits suitable for an interactive login endpoint.
func DefaultConfig() Config {
	return Config{
		MaxPerUser: 10,
		MaxPerIP:   30,
		Window:     15 * time.Minute,
		KeyPrefix:  "authd:lockout",
	}
}

// LoadConfigFromEnv applies AUTHD_THROTTLE_* overrides.
//
// Optional:
//   - AUTHD_THROTTLE_MAX_PER_USER
//   - AUTHD_THROTTLE_MAX_PER_IP
//   - AUTHD_THROTTLE_WINDOW (Go duration)
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("AUTHD_THROTTLE_MAX_PER_USER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("AUTHD_THROTTLE_MAX_PER_USER: invalid value %q", v)
		}
		cfg.MaxPerUser = n
	}
	if v := os.Getenv("AUTHD_THROTTLE_MAX_PER_IP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("AUTHD_THROTTLE_MAX_PER_IP: invalid value %q", v)
		}
		cfg.MaxPerIP = n
	}
	if v := os.Getenv("AUTHD_THROTTLE_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("AUTHD_THROTTLE_WINDOW: invalid duration %q", v)
		}
		cfg.Window = d
	}
	return cfg, nil
}

// Limiter counts login failures in Redis.
//
// The limiter fails open: if Redis is unreachable the login path proceeds and
// a warning is logged. Login availability should not hinge on the lockout
// cache being up.
type Limiter struct {
	cfg    Config
	client redis.Cmdable
	log    *slog.Logger
}

// NewLimiter wraps a Redis client. A nil logger falls back to slog.Default.
func NewLimiter(cfg Config, client redis.Cmdable, log *slog.Logger) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	return &Limiter{cfg: cfg, client: client, log: log}
}

// incrWithWindow bumps a counter and starts the window on first failure, in
// one round trip so a crash between the two commands cannot leave an
// immortal key.
var incrWithWindow = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
if c == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return c
`)

func (l *Limiter) userKey(username string) string {
	return l.cfg.KeyPrefix + ":user:" + username
}

func (l *Limiter) ipKey(ip string) string {
	return l.cfg.KeyPrefix + ":ip:" + ip
}

// Allow reports whether a login attempt for username from ip may proceed.
// The second return value is how long the caller should wait when blocked.
func (l *Limiter) Allow(ctx context.Context, username, ip string) (bool, time.Duration, error) {
	keys := map[string]int{
		l.userKey(username): l.cfg.MaxPerUser,
		l.ipKey(ip):         l.cfg.MaxPerIP,
	}

	for key, limit := range keys {
		n, err := l.client.Get(ctx, key).Int()
		switch {
		case err == redis.Nil:
			continue
		case err != nil:
			l.log.Warn("lockout cache unavailable, allowing attempt", "err", err)
			return true, 0, nil
		}
		if n >= limit {
			ttl, err := l.client.PTTL(ctx, key).Result()
			if err != nil || ttl < 0 {
				ttl = l.cfg.Window
			}
			return false, ttl, nil
		}
	}
	return true, 0, nil
}

// RecordFailure charges one failed attempt to both counters.
func (l *Limiter) RecordFailure(ctx context.Context, username, ip string) {
	windowMillis := l.cfg.Window.Milliseconds()
	for _, key := range []string{l.userKey(username), l.ipKey(ip)} {
		if err := incrWithWindow.Run(ctx, l.client, []string{key}, windowMillis).Err(); err != nil {
			l.log.Warn("failed to record login failure", "key", key, "err", err)
		}
	}
}

// RecordSuccess clears the username counter. The IP counter is left alone so
// an attacker cycling usernames from one address stays constrained.
func (l *Limiter) RecordSuccess(ctx context.Context, username string) {
	if err := l.client.Del(ctx, l.userKey(username)).Err(); err != nil {
		l.log.Warn("failed to clear lockout counter", "username", username, "err", err)
	}
}
