package variant

import (
	"errors"
	"time"

	"github.com/shopcore/fulfillment/internal/service/models/currency"
)

var (
	ErrVariantNotFound = errors.New("product variant not found")
	ErrOutOfStock      = errors.New("insufficient stock")
)

// ProductVariant is the stock-relevant view of a catalog variant. Stock is
// mutated only through the stock ledger and never goes negative.
type ProductVariant struct {
	ID         int64             `json:"id"`
	SKU        string            `json:"sku"`
	Title      string            `json:"title"`
	PriceCents int64             `json:"priceCents"`
	Currency   currency.Currency `json:"currency"`
	Stock      int               `json:"stock"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}
