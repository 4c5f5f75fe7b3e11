// Package auth issues and verifies the signed session tokens that gate the
// admin dashboard, and checks operator credentials at login.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// CookieName is the cookie carrying the session token.
	CookieName = "session"
	// SessionTTL is both the token lifetime and the cookie max age.
	SessionTTL = 7 * 24 * time.Hour
	// RoleAdmin is the only role issued today.
	RoleAdmin = "admin"
)

var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrMalformed        = errors.New("malformed token")
	// ErrNoSecret is returned by both Issue and Verify when no signing
	// secret is configured, so a missing secret never lets anyone in.
	ErrNoSecret = errors.New("signing secret not configured")
)

// Claims is the token payload: the standard registered claims plus the
// operator role.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Session is what a verified token asserts.
type Session struct {
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret string) *Codec {
	return &Codec{
		secret: []byte(secret),
		ttl:    SessionTTL,
		now:    time.Now,
	}
}

// Issue signs a token for subject with a fresh issued-at and an expiry
// exactly SessionTTL later.
func (c *Codec) Issue(subject, role string) (string, time.Time, error) {
	if len(c.secret) == 0 {
		return "", time.Time{}, ErrNoSecret
	}

	issuedAt := jwt.NewNumericDate(c.now())
	expiresAt := jwt.NewNumericDate(issuedAt.Add(c.ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
		Role: role,
	})

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt.Time, nil
}

// Verify checks the signature and expiry of tokenString. Failures are one of
// ErrNoSecret, ErrMalformed, ErrInvalidSignature or ErrExpired.
func (c *Codec) Verify(tokenString string) (*Session, error) {
	if len(c.secret) == 0 {
		return nil, ErrNoSecret
	}
	if tokenString == "" {
		return nil, ErrMalformed
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrMalformed
		}
	}
	if !token.Valid {
		return nil, ErrInvalidSignature
	}

	s := &Session{
		Subject: claims.Subject,
		Role:    claims.Role,
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}
