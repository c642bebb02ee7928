package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	bearerPrefix = "Bearer "

	// DefaultTokenTTL is how long an issued session token stays valid.
	DefaultTokenTTL = 30 * time.Minute
)

var ErrMissingSecret = errors.New("signing secret is not configured")

// Identity is the verified subject of a session token.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Codec issues and verifies HS256 session tokens.
type Codec struct {
	params *ValidationParameters
	ttl    time.Duration
	now    func() time.Time
}

type CodecOption func(*Codec)

func WithTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now for issuing and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCodec(params *ValidationParameters, opts ...CodecOption) *Codec {
	if params == nil {
		params = &ValidationParameters{}
	}
	c := &Codec{params: params, ttl: DefaultTokenTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue signs a token for id valid from now until now+TTL.
func (c *Codec) Issue(id Identity) (string, error) {
	if len(c.params.Secret) == 0 {
		return "", ErrMissingSecret
	}
	now := c.now()
	claims := sessionClaims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    c.params.Issuer,
			Audience:  jwt.ClaimStrings{c.params.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.params.Secret)
}

// Validate checks signature, issuer, audience and expiry. Every failure
// looks the same to the caller.
func (c *Codec) Validate(token string) (Identity, bool) {
	if len(c.params.Secret) == 0 || strings.TrimSpace(token) == "" {
		return Identity{}, false
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, c.signingKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.params.Issuer),
		jwt.WithAudience(c.params.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, false
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, false
	}
	return Identity{UserID: claims.Subject, Email: claims.Email}, true
}

func (c *Codec) signingKey(*jwt.Token) (interface{}, error) {
	return c.params.Secret, nil
}

// TryExtract pulls the token out of an Authorization header value of the
// form "Bearer <token>".
func TryExtract(header string) (string, bool) {
	if len(header) <= len(bearerPrefix) {
		return "", false
	}
	if !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
