package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the verified token claims the API accepts. Subject carries the
// user id; TenantID the tenant the token was issued for.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
