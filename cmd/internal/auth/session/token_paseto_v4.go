package session

import (
	"crypto/rand"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/oklog/ulid/v2"
)

// Claims is the verified identity envelope carried by a token.
type Claims struct {
	Username  string
	TokenID   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time // zero when the token carries no expiry
}

// TokenManager issues and verifies signed identity tokens.
type TokenManager interface {
	Issue(username string, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (Claims, error)
}

type pasetoV4PublicManager struct {
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

// NewPasetoV4PublicManager builds a TokenManager based on PASETO v4.public.
//
// It uses an Ed25519 asymmetric keypair and enforces issuer and, when the
// configured TTL is positive, expiration rules. Clock skew is applied during
// verification via ValidAt to tolerate minor clock differences.
func NewPasetoV4PublicManager(cfg Config) (TokenManager, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.PasetoV4SecretKeyHex)
	if err != nil {
		return nil, ErrConfig
	}

	return &pasetoV4PublicManager{
		issuer:    cfg.Issuer,
		ttl:       cfg.TokenTTL,
		clockSkew: cfg.ClockSkew,
		secret:    secret,
		public:    secret.Public(),
	}, nil
}

func (m *pasetoV4PublicManager) Issue(username string, now time.Time) (string, time.Time, error) {
	jti, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", time.Time{}, err
	}

	// Start from an empty claim set; NewToken would add a default one-hour
	// expiry, which conflicts with the no-expiry mode.
	tok, err := paseto.MakeToken(map[string]any{}, nil)
	if err != nil {
		return "", time.Time{}, err
	}

	tok.SetIssuer(m.issuer)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetJti(jti.String())
	tok.SetSubject(username)

	var exp time.Time
	if m.ttl > 0 {
		exp = now.Add(m.ttl)
		tok.SetExpiration(exp)
	}

	return tok.V4Sign(m.secret, nil), exp, nil
}

func (m *pasetoV4PublicManager) Verify(token string, now time.Time) (Claims, error) {
	// Clock-skew tolerance:
	// Validate slightly in the future to avoid failing "nbf" when clocks differ.
	// This also makes expiration checks slightly stricter, which is typically desirable.
	validNow := now.Add(m.clockSkew)

	// Build a fresh parser per call to avoid accumulating rules across verifies.
	p := paseto.NewParser()
	p.AddRule(paseto.IssuedBy(m.issuer))
	if m.ttl > 0 {
		p.AddRule(paseto.NotExpired())
		p.AddRule(paseto.ValidAt(validNow))
	}

	parsed, err := p.ParseV4Public(m.public, token, nil)
	if err != nil {
		return Claims{}, ErrUnauthenticated
	}

	sub, err := parsed.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, ErrUnauthenticated
	}
	jti, err := parsed.GetJti()
	if err != nil || jti == "" {
		return Claims{}, ErrUnauthenticated
	}

	// ValidAt is only registered in TTL mode; check "nbf" by hand otherwise.
	if nbf, err := parsed.GetNotBefore(); err != nil || nbf.After(validNow) {
		return Claims{}, ErrUnauthenticated
	}

	iss, _ := parsed.GetIssuer()
	iat, _ := parsed.GetIssuedAt()

	claims := Claims{
		Username: sub,
		TokenID:  jti,
		Issuer:   iss,
		IssuedAt: iat,
	}
	if m.ttl > 0 {
		exp, _ := parsed.GetExpiration()
		claims.ExpiresAt = exp
	}
	return claims, nil
}
