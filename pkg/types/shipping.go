package types

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
)

// Address is a Brazilian delivery address.
type Address struct {
	Label        string `json:"label,omitempty"`
	Street       string `json:"street" validate:"required"`
	Number       string `json:"number" validate:"required"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required,uf"`
	PostalCode   string `json:"postalCode" validate:"required,cep"`
}

// OneLine renders the address for chat messages.
func (a Address) OneLine() string {
	parts := []string{strings.TrimSpace(a.Street + ", " + a.Number)}
	if a.Complement != "" {
		parts = append(parts, a.Complement)
	}
	if a.Neighborhood != "" {
		parts = append(parts, a.Neighborhood)
	}
	parts = append(parts, a.City+"/"+a.State, a.PostalCode)
	return strings.Join(parts, " - ")
}

// Addresses is a user's saved address book stored as JSON.
type Addresses []Address

func (a Addresses) Value() (driver.Value, error) {
	if a == nil {
		a = Addresses{}
	}
	b, err := json.Marshal([]Address(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Addresses) Scan(src any) error {
	return scanJSON(src, (*[]Address)(a))
}

// ShippingInfo is the recipient captured at checkout.
type ShippingInfo struct {
	Name    string  `json:"name" validate:"required"`
	Email   string  `json:"email" validate:"required,email"`
	Phone   string  `json:"phone" validate:"required"`
	Address Address `json:"address" validate:"required"`
}

func (s ShippingInfo) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *ShippingInfo) Scan(src any) error {
	return scanJSON(src, s)
}
