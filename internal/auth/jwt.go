package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims of a scheme user. Categories narrows the
// participant categories the token may compute, transition or invoice.
type Claims struct {
	SchemeID   string   `json:"scheme_id"`
	Role       string   `json:"role"`
	Categories []string `json:"categories,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts validated claims into a request identity.
func (c *Claims) Identity() Identity {
	role, _ := ParseRole(c.Role)
	categories := make([]string, 0, len(c.Categories))
	for _, category := range c.Categories {
		categories = append(categories, strings.ToUpper(strings.TrimSpace(category)))
	}
	return Identity{SchemeID: c.SchemeID, Role: role, Subject: c.Subject, Categories: categories}
}

// ParseJWT validates an HS256 token and returns its claims.
func ParseJWT(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("auth: empty token")
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SchemeID == "" {
		return nil, errors.New("auth: missing scheme_id")
	}
	if _, ok := ParseRole(claims.Role); !ok {
		return nil, errors.New("auth: invalid role")
	}
	for _, category := range claims.Categories {
		if strings.TrimSpace(category) == "" {
			return nil, errors.New("auth: empty category claim")
		}
	}
	return claims, nil
}

// SignToken issues an HS256 token for the identity, valid for ttl.
func SignToken(id Identity, secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("auth: empty secret")
	}
	now := time.Now()
	claims := Claims{
		SchemeID:   id.SchemeID,
		Role:       string(id.Role),
		Categories: id.Categories,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
