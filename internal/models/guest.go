package models

import "strings"

type GuestInfo struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"required"`
	IDNumber  string `json:"idNumber,omitempty"`
}

func (g GuestInfo) FullName() string {
	return strings.TrimSpace(g.FirstName + " " + g.LastName)
}

// BuyerInfo is the separate payer's details.
type BuyerInfo struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
	IDNumber  string `json:"idNumber,omitempty"`
}
