package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the token payload carrying the trusted (identity, role) pair
// issued by the upstream identity provider.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the opaque caller identity, preferring user_id over sub.
func (c *JWTClaims) Identity() string {
	if c == nil {
		return ""
	}
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// Principal converts the claims into the engine's caller. Unknown roles pass through unchanged
// so the access policy can reject them.
func (c *JWTClaims) Principal() Principal {
	role, ok := ParseRole(string(c.Role))
	if !ok {
		role = c.Role
	}
	return Principal{Identity: c.Identity(), Role: role}
}

// Principal is the authenticated caller consumed by the engine.
type Principal struct {
	Identity string `json:"identity"`
	Role     Role   `json:"role"`
}
