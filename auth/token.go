package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload.
type Claims struct {
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenCodecConfig configures a TokenCodec.
type TokenCodecConfig struct {
	// Secret is the HS256 signing key. Required.
	Secret []byte

	// Now is the clock used for iat/exp. Default: time.Now
	Now func() time.Time
}

// TokenCodec issues and verifies HS256 bearer tokens.
//
// Contract:
// - Concurrency: safe for concurrent use; the codec holds no mutable state.
// - Errors: Verify returns ErrTokenExpired or an error wrapping ErrTokenMalformed.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

var signingMethod = jwt.SigningMethodHS256

// NewTokenCodec creates a TokenCodec.
func NewTokenCodec(cfg TokenCodecConfig) (*TokenCodec, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &TokenCodec{
		secret: secret,
		now:    cfg.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signingMethod.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(cfg.Now),
		),
	}, nil
}

// Issue mints an access token for subject that expires after ttl.
func (c *TokenCodec) Issue(subject string, ttl time.Duration) (string, error) {
	return c.IssueFor(subject, PurposeAccess, ttl)
}

// IssueFor mints a token with the given purpose.
//
// Token times have whole-second precision. exp is rounded up, so the token
// verifies at any time before now+ttl and lapses within a second after it.
func (c *TokenCodec) IssueFor(subject string, purpose Purpose, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrMissingSubject
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}
	if !purpose.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPurpose, purpose)
	}

	now := c.now()
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry(now, ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// expiry returns now+ttl rounded up to jwt.TimePrecision.
func expiry(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if t := exp.Truncate(jwt.TimePrecision); t.Before(exp) {
		return t.Add(jwt.TimePrecision)
	}
	return exp
}

// Verify checks the token's signature, algorithm and expiry and returns its subject.
func (c *TokenCodec) Verify(token string) (string, error) {
	claims, err := c.parse(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// VerifyFor is Verify that also requires the token to carry purpose.
func (c *TokenCodec) VerifyFor(token string, purpose Purpose) (*Claims, error) {
	claims, err := c.parse(token)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: purpose %q, want %q", ErrTokenMalformed, claims.Purpose, purpose)
	}
	return claims, nil
}

// Identify is VerifyFor returning an Identity.
func (c *TokenCodec) Identify(token string, purpose Purpose) (*Identity, error) {
	claims, err := c.VerifyFor(token, purpose)
	if err != nil {
		return nil, err
	}
	id := &Identity{Subject: claims.Subject, Purpose: claims.Purpose}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

func (c *TokenCodec) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, ErrMissingCredentials)
	}

	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrTokenMalformed)
	}
	if !claims.Purpose.Valid() {
		return nil, fmt.Errorf("%w: missing or unknown purpose", ErrTokenMalformed)
	}
	return claims, nil
}
