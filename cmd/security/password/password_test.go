package password

import (
	"errors"
	"testing"
)

// fastConfig keeps Argon2id cheap enough for unit tests.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestArgon2idHashAndVerify(t *testing.T) {
	h := NewArgon2id(fastConfig())

	enc, err := h.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := h.Verify("this is a strong password 123!", enc)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected match")
	}

	ok, err = h.Verify("wrong password", enc)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected mismatch")
	}
}

func TestArgon2idRejectsInvalidHash(t *testing.T) {
	h := NewArgon2id(fastConfig())

	for _, enc := range []string{
		"not-a-hash",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
	} {
		if _, err := h.Verify("whatever", enc); !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("%q: expected ErrInvalidHash, got %v", enc, err)
		}
	}
}

func TestArgon2idAntiDoSBounds(t *testing.T) {
	h := NewArgon2id(fastConfig())

	// Memory far above the configured maximum must be refused, not computed.
	huge := "$argon2id$v=19$m=1048576,t=8,p=8$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"
	if _, err := h.Verify("whatever", huge); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash for oversized params, got %v", err)
	}
}

func TestValidateMinMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.MinLength = 12
	cfg.Policy.MaxLength = 16

	if err := cfg.Validate("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := cfg.Validate("this password is definitely too long"); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if err := cfg.Validate("goodpassw0rd!"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestPolicyRejectVeryWeak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true

	for _, pw := range []string{"password", "11111111", "123456789"} {
		if err := cfg.Validate(pw); !errors.Is(err, ErrWeakPassword) {
			t.Fatalf("%q: expected ErrWeakPassword, got %v", pw, err)
		}
	}
	if err := cfg.Validate("a-very-ok-pass"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestBcryptHashAndVerify(t *testing.T) {
	h := NewBcrypt(4, DefaultConfig().Policy)

	enc, err := h.Hash("another strong password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := h.Verify("another strong password", enc)
	if err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}

	ok, err = h.Verify("nope", enc)
	if err != nil || ok {
		t.Fatalf("expected mismatch, ok=%v err=%v", ok, err)
	}

	if _, err := h.Verify("x", "garbage"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}

func TestBcryptRejectsOverlongPassword(t *testing.T) {
	h := NewBcrypt(4, Policy{MinLength: 1, MaxLength: 4096})

	long := make([]byte, 80)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := h.Hash(string(long)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("AUTHD_PASSWORD_MIN_LEN", "10")
	t.Setenv("AUTHD_ARGON2_ITERATIONS", "2")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Policy.MinLength != 10 {
		t.Fatalf("min length override not applied: %d", cfg.Policy.MinLength)
	}
	if cfg.Params.Iterations != 2 {
		t.Fatalf("iterations override not applied: %d", cfg.Params.Iterations)
	}

	t.Setenv("AUTHD_PASSWORD_MIN_LEN", "9999")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for out-of-range min length")
	}
}
