package ordersvc

import (
	"context"

	"github.com/shopcore/fulfillment/internal/service/models/outbox"
)

// Resolution reports the outcome of one back-order reconciliation pass.
type Resolution struct {
	VariantID      int64 `json:"variantId"`
	Processed      int   `json:"processed"`
	RemainingStock int   `json:"remainingStock"`
}

// ResolveBackorders reconciles pending back-orders for a variant in its own
// transaction, re-locking the variant row so the pass never works from a
// stale stock snapshot.
func (s *OrderService) ResolveBackorders(ctx context.Context, variantID int64) (*Resolution, error) {
	work := s.newUOW()

	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = work.Rollback(ctx) }()

	res, err := s.resolveBackorders(ctx, work, variantID)
	if err != nil {
		return nil, classify(err)
	}

	if err := commit(ctx, work); err != nil {
		return nil, err
	}

	return res, nil
}

// resolveBackorders serves back-ordered items strictly oldest-first: items
// are walked in creation order and the pass stops at the first item the
// remaining stock cannot cover. A later, smaller back-order is never served
// ahead of an earlier, larger one. The consumed quantity is debited from the
// variant in a single adjustment. Zero fulfillable items is a normal
// outcome, not an error. Must run inside an active unit of work.
func (s *OrderService) resolveBackorders(ctx context.Context, work unitOfWork, variantID int64) (*Resolution, error) {
	v, err := work.VariantRepository().GetForUpdate(ctx, variantID)
	if err != nil {
		return nil, err
	}

	items, err := work.OrderItemRepository().ListBackorderedForUpdate(ctx, variantID)
	if err != nil {
		return nil, err
	}

	remaining := v.Stock
	consumed := 0
	var processedIDs []int64

	for _, item := range items {
		if item.Quantity > remaining {
			break
		}
		remaining -= item.Quantity
		consumed += item.Quantity
		processedIDs = append(processedIDs, item.ID)
	}

	res := &Resolution{
		VariantID:      variantID,
		Processed:      len(processedIDs),
		RemainingStock: remaining,
	}

	if len(processedIDs) == 0 {
		return res, nil
	}

	if err := work.OrderItemRepository().ClearBackordered(ctx, processedIDs); err != nil {
		return nil, err
	}

	if _, err := work.VariantRepository().AdjustStock(ctx, variantID, -consumed); err != nil {
		return nil, err
	}

	if err := s.enqueueEvent(ctx, work, outbox.EventBackorderResolved, outbox.BackorderResolvedEvent{
		VariantID:      variantID,
		Processed:      res.Processed,
		RemainingStock: res.RemainingStock,
		ResolvedAt:     s.now(),
	}); err != nil {
		return nil, err
	}

	return res, nil
}
