package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID string
	Email  string
	Name   string
	Role   enums.Role
}

// AccessTokenClaims is the token issued by the identity provider. The shopper
// id travels in the standard subject claim.
type AccessTokenClaims struct {
	Email string     `json:"email"`
	Name  string     `json:"name,omitempty"`
	Role  enums.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *AccessTokenClaims) UserID() string {
	return c.Subject
}

// EffectiveRole defaults to customer when the provider omits a role.
func (c *AccessTokenClaims) EffectiveRole() enums.Role {
	if c.Role.IsValid() {
		return c.Role
	}
	return enums.RoleCustomer
}
