package models

import (
	"regexp"
	"strings"
)

var catalogIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsCatalogID reports whether id has the host's GUID shape.
func IsCatalogID(id string) bool {
	return catalogIDPattern.MatchString(id)
}

// TicketInfo is one purchasable tier. ID is a placeholder until the host
// reports its real catalog identifier.
type TicketInfo struct {
	Type        string  `json:"type"`
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	SoldOut     bool    `json:"soldOut"`
	SoldPercent float64 `json:"soldPercent"`
	SalesText   string  `json:"salesText,omitempty"`
}

func (t TicketInfo) HasCatalogID() bool { return IsCatalogID(t.ID) }

func (t TicketInfo) Matches(typ string) bool { return strings.EqualFold(t.Type, typ) }

// TicketSelection is one cart line.
type TicketSelection struct {
	Type     string `json:"type" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}
