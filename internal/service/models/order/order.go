package order

import (
	"errors"
	"time"

	"github.com/shopcore/fulfillment/internal/service/models/currency"
	"github.com/shopcore/fulfillment/internal/service/models/orderitem"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrAddressRequired = errors.New("delivery address required")
	ErrConflict        = errors.New("concurrent stock mutation conflict")
)

// DeliveryMode defines how an order reaches the customer.
type DeliveryMode string

const (
	DeliveryModeStorePickup      DeliveryMode = "store_pickup"
	DeliveryModeStandardDelivery DeliveryMode = "standard_delivery"
)

var ErrInvalidDeliveryMode = errors.New("invalid delivery mode")

func (m DeliveryMode) String() string {
	return string(m)
}

func ParseDeliveryMode(s string) (DeliveryMode, error) {
	switch s {
	case DeliveryModeStorePickup.String():
		return DeliveryModeStorePickup, nil
	case DeliveryModeStandardDelivery.String():
		return DeliveryModeStandardDelivery, nil
	default:
		return "", ErrInvalidDeliveryMode
	}
}

// Status is the order lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var ErrInvalidStatus = errors.New("invalid order status")

func (s Status) String() string {
	return string(s)
}

func ParseStatus(s string) (Status, error) {
	switch s {
	case StatusPending.String():
		return StatusPending, nil
	case StatusConfirmed.String():
		return StatusConfirmed, nil
	case StatusShipped.String():
		return StatusShipped, nil
	case StatusDelivered.String():
		return StatusDelivered, nil
	case StatusCancelled.String():
		return StatusCancelled, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Order represents a persisted customer order.
type Order struct {
	ID                  int64                 `json:"id"`
	UserID              int64                 `json:"userId"`
	Status              Status                `json:"status"`
	DeliveryMode        DeliveryMode          `json:"deliveryMode"`
	DeliveryAddress     string                `json:"deliveryAddress"`
	CityID              *int64                `json:"cityId,omitempty"`
	DeliveryChargeCents int64                 `json:"deliveryChargeCents"`
	TotalPriceCents     int64                 `json:"totalPriceCents"`
	Currency            currency.Currency     `json:"currency"`
	PaymentIntentID     string                `json:"paymentIntentId,omitempty"`
	Paid                bool                  `json:"paid"`
	EstimatedDeliveryAt time.Time             `json:"estimatedDeliveryAt"`
	OrderedAt           time.Time             `json:"orderedAt"`
	UpdatedAt           time.Time             `json:"updatedAt"`
	Items               []orderitem.OrderItem `json:"items"`
}

// Draft is the immutable output of the order builder, consumed exactly once
// by order creation. It carries no identifiers because nothing is persisted
// at build time.
type Draft struct {
	UserID              int64
	DeliveryMode        DeliveryMode
	DeliveryAddress     string
	CityID              *int64
	DeliveryChargeCents int64
	TotalPriceCents     int64
	Currency            currency.Currency
	EstimatedDeliveryAt time.Time
	Items               []orderitem.DraftItem
}

// HasBackorder reports whether any line of the draft is back-ordered.
func (d *Draft) HasBackorder() bool {
	for _, item := range d.Items {
		if item.Backordered {
			return true
		}
	}

	return false
}
