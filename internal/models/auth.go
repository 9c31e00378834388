package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the access token payload minted by the auth service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Division string   `json:"division,omitempty"`
	Vendor   string   `json:"vendor,omitempty"`
	Email    string   `json:"email,omitempty"`
	FullName string   `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

// Actor projects the claims onto the workflow identity.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{
		UserID:   c.UserID,
		Role:     c.Role,
		Division: c.Division,
		Vendor:   c.Vendor,
		FullName: c.FullName,
	}
}
