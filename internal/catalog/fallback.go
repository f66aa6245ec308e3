package catalog

import (
	"fmt"

	"github.com/tonyboom3d/exact-view-framework/internal/models"
)

const placeholderPrefix = "placeholder-"

// Fallback is shown until the host reports live metadata.
func Fallback() []models.TicketInfo {
	return []models.TicketInfo{
		newTier("general", "General Admission", 2900, 85, false),
		newTier("premier", "Premier", 3450, 72, false),
		newTier("vip", "VIP Experience", 4500, 100, true),
	}
}

func newTier(typ, name string, price, soldPercent float64, soldOut bool) models.TicketInfo {
	return models.TicketInfo{
		Type:        typ,
		ID:          placeholderPrefix + typ,
		Name:        name,
		Price:       price,
		SoldOut:     soldOut,
		SoldPercent: soldPercent,
		SalesText:   salesText(soldPercent),
	}
}

func salesText(percent float64) string {
	return fmt.Sprintf("%.0f%% of tickets sold", percent)
}
