package users

import (
	"time"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	"github.com/vitrine-commerce/vitrine-backend/pkg/types"
)

// UserDTO is the shopper profile returned to clients.
type UserDTO struct {
	ID              string          `json:"id"`
	Email           string          `json:"email"`
	Name            string          `json:"name"`
	Phone           *string         `json:"phone,omitempty"`
	Addresses       []types.Address `json:"addresses"`
	LoyaltyPoints   int64           `json:"loyalty_points"`
	Tier            string          `json:"tier"`
	TotalSpentCents int64           `json:"total_spent_cents"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Identity is what the identity provider asserts about a signed-in shopper.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// UpdateProfileInput replaces contact details. Nil fields are left alone.
type UpdateProfileInput struct {
	Name      *string          `json:"name,omitempty" validate:"omitempty,max=120"`
	Phone     *string          `json:"phone,omitempty" validate:"omitempty,max=30"`
	Addresses *[]types.Address `json:"addresses,omitempty" validate:"omitempty,dive"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	addresses := []types.Address(u.Addresses)
	if addresses == nil {
		addresses = []types.Address{}
	}
	return &UserDTO{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		Phone:           u.Phone,
		Addresses:       addresses,
		LoyaltyPoints:   u.LoyaltyPoints,
		Tier:            string(u.Tier),
		TotalSpentCents: u.TotalSpentCents,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}
