package iorderrepo

import (
	"context"

	"github.com/shopcore/fulfillment/internal/service/models/order"
)

// IOrderRepository is an interface for order postgres repository.
type IOrderRepository interface {
	Insert(ctx context.Context, o order.Order) (*order.Order, error)
	Get(ctx context.Context, orderID int64) (*order.Order, error)
	GetForUpdate(ctx context.Context, orderID int64) (*order.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status order.Status) error
	SetPayment(ctx context.Context, orderID int64, paymentIntentID string, paid bool) error
	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
}
