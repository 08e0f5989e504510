package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/shopcore/fulfillment/internal/dal/rabbitmq"
	"github.com/shopcore/fulfillment/internal/service/services/ordersvc"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

// service represents the service layer interface.
type service interface {
	Restock(ctx context.Context, variantID int64, quantity int) (*ordersvc.Resolution, error)
}

// replenishmentEvent is what the warehouse publishes when stock arrives.
type replenishmentEvent struct {
	VariantID int64 `json:"variantId"`
	Quantity  int   `json:"quantity"`
}

// Consumer ingests warehouse replenishment events and drives restock plus
// back-order reconciliation.
type Consumer struct {
	client  *rabbitmq.Client
	service service
	queue   amqp.Queue
	stop    chan struct{}
	done    chan struct{}
}

// NewConsumer creates a new Consumer.
func NewConsumer(client *rabbitmq.Client, service service) *Consumer {
	queueName := viper.GetString("rabbitmq.replenishment_queue")
	if queueName == "" {
		queueName = "warehouse.stock.replenished"
	}

	queue, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:       queueName,
		Durable:    false,
		AutoDelete: false,
		Exclusive:  false,
		NoWait:     false,
	})
	if err != nil {
		panic(err)
	}

	return &Consumer{
		client:  client,
		service: service,
		queue:   queue,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run starts consuming replenishment events from RabbitMQ.
func (c *Consumer) Run(ctx context.Context) error {
	consumerTag := viper.GetString("rabbitmq.consumer_tag")
	if consumerTag == "" {
		consumerTag = "fulfillment-svc"
	}

	msgs, err := c.client.Consume(rabbitmq.ConsumeConfig{
		Queue:    c.queue.Name,
		Consumer: consumerTag,
	})
	if err != nil {
		return err
	}

	slog.Info("Replenishment consumer started", "queue", c.queue.Name, "consumer_tag", consumerTag)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(10)

	go func() {
		for {
			select {
			case <-c.stop:
				slog.Info("Stopping replenishment consumer")
				close(c.done)

				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Info("Message channel closed")
					close(c.done)

					return
				}

				g.Go(func() error {
					return c.processMessage(gctx, msg)
				})
			}
		}
	}()

	<-c.done
	if err := g.Wait(); err != nil {
		slog.Error("Error processing replenishment messages", "error", err)
	}

	return nil
}

// processMessage applies a single replenishment event. Malformed payloads
// are rejected without requeue; transient failures requeue for redelivery.
func (c *Consumer) processMessage(ctx context.Context, msg amqp.Delivery) error {
	ctx, span := otel.Tracer("fulfillment-svc").Start(ctx, "Consumer.processMessage")
	defer span.End()

	var event replenishmentEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		slog.Error("Failed to unmarshal replenishment event", "error", err)
		if err := msg.Nack(false, false); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}

		return err
	}

	if event.Quantity < 1 {
		slog.Error("Replenishment event with non-positive quantity", "variant_id", event.VariantID, "quantity", event.Quantity)
		if err := msg.Nack(false, false); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}

		return nil
	}

	res, err := c.service.Restock(ctx, event.VariantID, event.Quantity)
	if err != nil {
		slog.Error("Failed to apply replenishment", "error", err, "variant_id", event.VariantID)
		if err := msg.Nack(false, true); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}

		return err
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("Failed to ack message", "error", err)

		return err
	}

	slog.Info("Replenishment applied",
		"variant_id", event.VariantID,
		"quantity", event.Quantity,
		"backorders_resolved", res.Processed,
		"remaining_stock", res.RemainingStock,
	)

	return nil
}

// Shutdown gracefully shuts down the consumer.
func (c *Consumer) Shutdown() error {
	slog.Info("Shutting down replenishment consumer")
	close(c.stop)

	select {
	case <-c.done:
		slog.Info("Replenishment consumer stopped")
	case <-time.After(10 * time.Second):
		slog.Warn("Replenishment consumer shutdown timeout")
	}

	return nil
}
