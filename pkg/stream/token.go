// Package stream integrates with the Stream Video edge: user token minting
// and the narrow call-transport contract the orchestrator depends on.
package stream

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotConfigured is returned when Stream credentials are absent. Routes
// that need tokens degrade; everything else stays available.
var ErrNotConfigured = errors.New("stream credentials not configured")

const DefaultTokenTTL = time.Hour

// TokenIssuer mints Stream user JWTs. Skew shifts the issued-at timestamp
// into the past so edge nodes with lagging clocks do not reject fresh tokens.
type TokenIssuer struct {
	APIKey    string
	APISecret string
	TTL       time.Duration
	Skew      time.Duration
}

func (i *TokenIssuer) Configured() bool {
	return i != nil && strings.TrimSpace(i.APIKey) != "" && strings.TrimSpace(i.APISecret) != ""
}

// UserToken returns a signed token for userID. A zero now means "current
// time".
func (i *TokenIssuer) UserToken(userID string, now time.Time) (string, error) {
	if !i.Configured() {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("user id is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	ttl := i.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	issuedAt := now.Add(-i.Skew)
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     issuedAt.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(i.APISecret))
	if err != nil {
		return "", fmt.Errorf("sign stream token: %w", err)
	}
	return signed, nil
}
