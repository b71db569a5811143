package stream

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestUserToken_ClaimsAndSkew(t *testing.T) {
	issuer := &TokenIssuer{
		APIKey:    "key",
		APISecret: "secret",
		TTL:       time.Hour,
		Skew:      10 * time.Second,
	}
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	signed, err := issuer.UserToken("camera-abc", now)
	if err != nil {
		t.Fatalf("UserToken: %v", err)
	}

	parsed, err := jwt.Parse(signed, func(tok *jwt.Token) (any, error) {
		if tok.Method.Alg() != "HS256" {
			return nil, errors.New("unexpected alg")
		}
		return []byte("secret"), nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil || !parsed.Valid {
		t.Fatalf("parse: %v valid=%v", err, parsed.Valid)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["user_id"] != "camera-abc" {
		t.Fatalf("user_id=%v", claims["user_id"])
	}
	iat := int64(claims["iat"].(float64))
	if iat != now.Add(-10*time.Second).Unix() {
		t.Fatalf("iat=%d, want skewed 10s into the past", iat)
	}
	exp := int64(claims["exp"].(float64))
	if exp != now.Add(time.Hour).Unix() {
		t.Fatalf("exp=%d, want now+TTL", exp)
	}
}

func TestUserToken_NotConfigured(t *testing.T) {
	issuer := &TokenIssuer{}
	if issuer.Configured() {
		t.Fatal("empty issuer reported configured")
	}
	if _, err := issuer.UserToken("u", time.Time{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err=%v, want ErrNotConfigured", err)
	}
}

func TestUserToken_EmptyUser(t *testing.T) {
	issuer := &TokenIssuer{APIKey: "k", APISecret: "s"}
	if _, err := issuer.UserToken("  ", time.Time{}); err == nil {
		t.Fatal("expected error for empty user id")
	}
}
