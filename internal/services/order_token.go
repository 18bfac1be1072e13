package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	orderTokenTTL      = 7 * 24 * time.Hour
	orderTokenAudience = "storefront:order"
)

// OrderTokens signs and verifies the bearer tokens that let a guest act on
// the order they just placed.
type OrderTokens struct {
	secret []byte
	now    func() time.Time
}

func NewOrderTokens(secret string) (*OrderTokens, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("order token secret must be at least 16 characters")
	}
	return &OrderTokens{secret: []byte(secret), now: time.Now}, nil
}

func (t *OrderTokens) Sign(orderID uuid.UUID) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   orderID.String(),
		Audience:  jwt.ClaimStrings{orderTokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(orderTokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify reports whether token grants access to orderID.
func (t *OrderTokens) Verify(token string, orderID uuid.UUID) bool {
	if token == "" {
		return false
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(orderTokenAudience),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return false
	}
	return claims.Subject == orderID.String()
}
