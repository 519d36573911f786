package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the acting staff member or trainee as asserted by the portal's
// identity provider.
type Identity struct {
	UserID  string
	Name    string
	Role    string
	StaffID string
}

// Claims represents the portal JWT payload.
type Claims struct {
	Name    string `json:"name"`
	Role    string `json:"role"`
	StaffID string `json:"staff_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity extracts the acting identity from the claims.
func (c Claims) Identity() Identity {
	return Identity{UserID: c.Subject, Name: c.Name, Role: c.Role, StaffID: c.StaffID}
}

// Issue signs an access token for the given identity. Used by dev tooling and
// tests; production tokens come from the portal's auth service with the same shape.
func Issue(id Identity, issuer, key string, ttl time.Duration) (string, error) {
	claims := Claims{
		Name:    id.Name,
		Role:    id.Role,
		StaffID: id.StaffID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
}

// Parse validates a token and returns its claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
