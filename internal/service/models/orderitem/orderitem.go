package orderitem

import (
	"time"

	"github.com/shopcore/fulfillment/internal/service/models/currency"
)

// OrderItem represents a line within an order. UnitPriceCents is a snapshot
// taken at order time and is never re-read from the catalog. Backordered is
// the only field mutated after creation, exclusively by back-order
// resolution.
type OrderItem struct {
	ID              int64             `json:"id"`
	OrderID         int64             `json:"orderId"`
	VariantID       int64             `json:"variantId"`
	Quantity        int               `json:"quantity"`
	UnitPriceCents  int64             `json:"unitPriceCents"`
	TotalPriceCents int64             `json:"totalPriceCents"`
	Currency        currency.Currency `json:"currency"`
	Backordered     bool              `json:"backordered"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// DraftItem is an order line before persistence.
type DraftItem struct {
	VariantID       int64
	Quantity        int
	UnitPriceCents  int64
	TotalPriceCents int64
	Currency        currency.Currency
	Backordered     bool
}
