package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/session-service/internal/config"
)

// ErrInvalidToken reports an identity token that failed verification for any
// reason: bad signature, wrong issuer or audience, expiry, malformed input.
var ErrInvalidToken = errors.New("invalid identity token")

// ErrInvalidSession reports a session credential that failed verification.
var ErrInvalidSession = errors.New("invalid session credential")

// IdentityClaims are the verified claims of a provider identity token.
type IdentityClaims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	jwt.RegisteredClaims
}

// SessionClaims are the claims carried by a minted session credential.
type SessionClaims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	jwt.RegisteredClaims
}

// Codec verifies identity tokens and mints/validates session credentials.
// It is stateless apart from the cached provider key set.
type Codec struct {
	providerKeys jwt.Keyfunc
	secret       []byte
	issuer       string
	audience     string
	ttl          time.Duration
	now          func() time.Time
}

// Option customizes codec construction.
type Option func(*Codec)

// WithProviderKeyfunc overrides JWKS fetching with a caller-supplied key
// resolver (useful for tests).
func WithProviderKeyfunc(fn jwt.Keyfunc) Option {
	return func(c *Codec) {
		c.providerKeys = fn
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(c *Codec) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewCodec builds a codec for the configured provider. Unless a key resolver
// is injected, the provider JWKS is fetched eagerly and refreshed in the
// background.
func NewCodec(provider config.ProviderConfig, session config.SessionConfig, opts ...Option) (*Codec, error) {
	c := &Codec{
		secret:   []byte(session.Secret),
		issuer:   provider.Issuer,
		audience: provider.ProjectID,
		ttl:      session.TTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.providerKeys == nil {
		jwks, err := keyfunc.Get(provider.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshUnknownKID: true,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch provider JWKS: %w", err)
		}
		c.providerKeys = jwks.Keyfunc
	}

	return c, nil
}

// VerifyIdentityToken validates a provider identity token against the
// provider key set, issuer, audience, and expiry. Any failure maps to
// ErrInvalidToken; the token is never partially trusted.
func (c *Codec) VerifyIdentityToken(token string) (*IdentityClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	parsed, err := jwt.ParseWithClaims(token, &IdentityClaims{}, c.providerKeys,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*IdentityClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// MintSessionCredential re-verifies the identity token and signs a session
// credential for its subject. Verification is never skipped, regardless of
// what the caller already checked.
func (c *Codec) MintSessionCredential(idToken string) (string, *SessionClaims, error) {
	identity, err := c.VerifyIdentityToken(idToken)
	if err != nil {
		return "", nil, err
	}

	issuedAt := c.now()
	claims := &SessionClaims{
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity.Subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// VerifySessionCredential validates a session credential's own signature and
// expiry. No provider round-trip happens on this path.
func (c *Codec) VerifySessionCredential(cred string) (*SessionClaims, error) {
	if cred == "" {
		return nil, fmt.Errorf("%w: empty credential", ErrInvalidSession)
	}

	parsed, err := jwt.ParseWithClaims(cred, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidSession)
	}
	return claims, nil
}

// IsExpired reports whether a verification failure was caused by expiry,
// where derivable.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}

// TTL exposes the fixed session credential lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}
