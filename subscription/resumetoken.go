package subscription

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidResumeToken is returned for a malformed, expired, or
// wrong-signature resume token.
var ErrInvalidResumeToken = errors.New("invalid subscription resume token")

// ResumeClaims is the JWT payload a client presents to resume a
// subscription's notification stream over a new WebSocket connection
// after a drop, without re-running the full authorization flow.
type ResumeClaims struct {
	jwt.RegisteredClaims
	SubscriptionID string `json:"sid"`
	Contract       string `json:"contract"`
	Path           string `json:"path"`
}

// TokenIssuer signs and validates subscription resume tokens.
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
}

// NewTokenIssuer builds an issuer with the given HMAC secret and token
// lifetime.
func NewTokenIssuer(secret []byte, expiry time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, expiry: expiry}
}

// Issue signs a resume token for an active subscription.
func (t *TokenIssuer) Issue(r Record) (string, error) {
	now := time.Now()
	claims := &ResumeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
		},
		SubscriptionID: r.ID,
		Contract:       r.Contract,
		Path:           r.Path,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing resume token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a resume token, returning its claims.
func (t *TokenIssuer) Validate(tokenString string) (*ResumeClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ResumeClaims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidResumeToken
	}
	claims, ok := token.Claims.(*ResumeClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidResumeToken
	}
	return claims, nil
}
