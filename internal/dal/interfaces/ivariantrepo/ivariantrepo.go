package ivariantrepo

import (
	"context"

	"github.com/shopcore/fulfillment/internal/service/models/variant"
)

// IVariantRepository is the stock ledger interface. AdjustStock and
// GetForUpdate must run on a transaction-bound repository.
type IVariantRepository interface {
	Get(ctx context.Context, variantID int64) (*variant.ProductVariant, error)
	GetForUpdate(ctx context.Context, variantID int64) (*variant.ProductVariant, error)
	AdjustStock(ctx context.Context, variantID int64, delta int) (*variant.ProductVariant, error)
}
