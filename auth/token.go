// Package auth issues and verifies the bearer tokens carried on every
// request. Identity itself lives in the account service; here a token only
// needs to resolve to a principal id and role.
package auth

import (
	"fmt"
	"time"

	"quitcoach/domain"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "quitcoach"

// Claims is the payload stored inside the JWT.
type Claims struct {
	PrincipalID string `json:"principal_id"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

type Tokens struct {
	secret   []byte
	lifetime time.Duration
}

func NewTokens(secret string, lifetime time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), lifetime: lifetime}
}

// Generate creates a signed HS256 token for a principal.
func (t *Tokens) Generate(p domain.Principal) (string, error) {
	now := time.Now()
	claims := &Claims{
		PrincipalID: p.ID,
		Role:        string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Validate checks the signature and expiration and resolves the principal.
func (t *Tokens) Validate(tokenString string) (domain.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Principal{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Principal{}, jwt.ErrSignatureInvalid
	}
	p := domain.Principal{ID: claims.PrincipalID, Role: domain.Role(claims.Role)}
	if p.ID == "" || !p.Role.Valid() {
		return domain.Principal{}, fmt.Errorf("token carries no usable principal")
	}
	return p, nil
}
