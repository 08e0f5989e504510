package iorderitemrepo

import (
	"context"

	"github.com/shopcore/fulfillment/internal/service/models/orderitem"
)

// IOrderItemRepository is an interface for order item postgres repository.
type IOrderItemRepository interface {
	BulkInsert(ctx context.Context, orderItems []orderitem.OrderItem) ([]orderitem.OrderItem, error)
	ListByOrders(ctx context.Context, orderIDs []int64) ([]orderitem.OrderItem, error)
	ListBackorderedForUpdate(ctx context.Context, variantID int64) ([]orderitem.OrderItem, error)
	ClearBackordered(ctx context.Context, itemIDs []int64) error
}
