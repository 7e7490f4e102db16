// Package auth issues and verifies the bearer tokens that authorise writes
// to a ledger daemon.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is the "iss" claim carried by every writer token.
const Issuer = "blockledger"

// TypeWriter marks a token that may append blocks.
const TypeWriter = "writer"

// ErrNoSecret is returned by NewTokenIssuer when the signing secret is empty.
var ErrNoSecret = errors.New("token secret is empty")

// WriterClaims are the JWT claims for a writer token.
type WriterClaims struct {
	jwt.RegisteredClaims
	Type string `json:"type"`
}

// TokenIssuer signs and verifies HS256 writer tokens with a shared secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer. ttl defaults to one hour.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}, nil
}

// Issue creates a signed writer token for subject.
func (ti *TokenIssuer) Issue(subject string) (string, error) {
	now := time.Now().UTC()
	claims := WriterClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
			ID:        uuid.New().String(),
		},
		Type: TypeWriter,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("sign writer token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a writer token, returning its claims.
func (ti *TokenIssuer) Verify(tokenStr string) (*WriterClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&WriterClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return ti.secret, nil
		},
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify writer token: %w", err)
	}
	claims, ok := token.Claims.(*WriterClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid writer token claims")
	}
	if claims.Type != TypeWriter {
		return nil, fmt.Errorf("not a writer token")
	}
	return claims, nil
}
