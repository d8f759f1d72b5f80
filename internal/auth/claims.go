package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the displayable part of an access token.
type Claims struct {
	UserID    string
	TokenType string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Expired reports whether the token expiry has passed at now.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

type accessClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
	UserID    any    `json:"user_id"`
}

// TokenClaims decodes the access token without verifying its signature.
// It is for display only and plays no part in deciding when to refresh.
func (m *Manager) TokenClaims() (*Claims, error) {
	token := m.AccessToken()
	if token == "" {
		return nil, fmt.Errorf("no access token")
	}

	var claims accessClaims
	if _, _, err := jwt.NewParser(jwt.WithJSONNumber()).ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}

	out := &Claims{TokenType: claims.TokenType}
	if claims.UserID != nil {
		out.UserID = fmt.Sprint(claims.UserID)
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
