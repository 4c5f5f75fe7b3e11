package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func fixedCodec(secret string, now time.Time) *Codec {
	c := NewCodec(secret)
	c.now = func() time.Time { return now }
	return c
}

func TestIssueAndVerify_Success(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c := fixedCodec("super-secret", now)

	tok, exp, err := c.Issue("ops@example.com", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if !exp.Equal(now.Add(7 * 24 * time.Hour)) {
		t.Fatalf("expiry mismatch: got %v", exp)
	}

	s, err := c.Verify(tok)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if s.Subject != "ops@example.com" || s.Role != RoleAdmin {
		t.Fatalf("unexpected session: %+v", s)
	}
	if got := s.ExpiresAt.Sub(s.IssuedAt); got != SessionTTL {
		t.Fatalf("token lifetime: got %v want %v", got, SessionTTL)
	}
}

func TestIssue_FreshIssuedAt(t *testing.T) {
	t.Parallel()

	c := NewCodec("secret")
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	c.now = func() time.Time { return now }
	first, _, err := c.Issue("a", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	c.now = func() time.Time { return now.Add(time.Minute) }
	second, _, err := c.Issue("a", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if first == second {
		t.Fatal("tokens issued at different times must differ")
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	issued := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tok, _, err := fixedCodec("secret", issued).Issue("u1", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	later := fixedCodec("secret", issued.Add(SessionTTL+time.Second))
	_, err = later.Verify(tok)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, _, err := NewCodec("right-secret").Issue("u2", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = NewCodec("wrong-secret").Verify(tok)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	t.Parallel()

	c := NewCodec("secret")
	tok, _, err := c.Issue("viewer@example.com", "viewer")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", tok)
	}
	forged := base64.RawURLEncoding.EncodeToString(
		[]byte(`{"sub":"viewer@example.com","role":"admin","exp":4102444800}`),
	)
	tampered := parts[0] + "." + forged + "." + parts[2]

	_, err = c.Verify(tampered)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	c := NewCodec("k")
	for _, tok := range []string{"", "not.a.jwt", "garbage"} {
		if _, err := c.Verify(tok); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Verify(%q): expected ErrMalformed, got %v", tok, err)
		}
	}
}

func TestVerify_MissingExpiry(t *testing.T) {
	t.Parallel()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u3"},
		Role:             RoleAdmin,
	})
	tok, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewCodec("secret").Verify(tok); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for token without exp, got %v", err)
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u4",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	tok, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewCodec("secret").Verify(tok); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for HS512 token, got %v", err)
	}
}

func TestNoSecret_FailsClosed(t *testing.T) {
	t.Parallel()

	tok, _, err := NewCodec("secret").Issue("u5", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	empty := NewCodec("")
	if _, err := empty.Verify(tok); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
	if _, _, err := empty.Issue("u5", RoleAdmin); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret from Issue, got %v", err)
	}
}

func TestCredentials_Match(t *testing.T) {
	t.Parallel()

	c := Credentials{Email: "ops@example.com", Password: "hunter2"}

	if !c.Match("ops@example.com", "hunter2") {
		t.Fatal("expected match")
	}
	if c.Match("ops@example.com", "hunter3") {
		t.Fatal("wrong password must not match")
	}
	if c.Match("other@example.com", "hunter2") {
		t.Fatal("wrong email must not match")
	}
	if (Credentials{}).Match("", "") {
		t.Fatal("unconfigured credentials must never match")
	}
}
