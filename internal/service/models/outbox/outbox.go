package outbox

import (
	"time"
)

// Event names published through the outbox.
const (
	EventOrderCreated      = "order.created"
	EventOrderCancelled    = "order.cancelled"
	EventBackorderResolved = "backorder.resolved"
)

// Message is a pending event written in the same transaction as the state
// change it announces, published to RabbitMQ by the outbox worker.
type Message struct {
	ID           int64
	QueueName    string
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}

// BackorderResolvedEvent is the payload for EventBackorderResolved.
type BackorderResolvedEvent struct {
	VariantID      int64     `json:"variantId"`
	Processed      int       `json:"processed"`
	RemainingStock int       `json:"remainingStock"`
	ResolvedAt     time.Time `json:"resolvedAt"`
}
