package ordersvc

import (
	"context"

	"github.com/shopcore/fulfillment/internal/service/models/variant"
)

// AdjustStock applies a signed stock delta to a variant in its own
// transaction and returns the updated variant. It does not touch
// back-orders; use Restock when replenishment should unblock them.
func (s *OrderService) AdjustStock(ctx context.Context, variantID int64, delta int) (*variant.ProductVariant, error) {
	work := s.newUOW()

	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = work.Rollback(ctx) }()

	v, err := work.VariantRepository().AdjustStock(ctx, variantID, delta)
	if err != nil {
		return nil, classify(err)
	}

	if err := commit(ctx, work); err != nil {
		return nil, err
	}

	return v, nil
}

// Restock adds quantity to a variant and reconciles pending back-orders in
// the same transaction, so the resolver never sees a stale stock snapshot.
func (s *OrderService) Restock(ctx context.Context, variantID int64, quantity int) (*Resolution, error) {
	work := s.newUOW()

	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = work.Rollback(ctx) }()

	if _, err := work.VariantRepository().AdjustStock(ctx, variantID, quantity); err != nil {
		return nil, classify(err)
	}

	res, err := s.resolveBackorders(ctx, work, variantID)
	if err != nil {
		return nil, classify(err)
	}

	if err := commit(ctx, work); err != nil {
		return nil, err
	}

	return res, nil
}
