package outbox

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/shopcore/fulfillment/internal/dal/interfaces/ioutboxrepo"
	"github.com/shopcore/fulfillment/internal/dal/rabbitmq"
	"github.com/shopcore/fulfillment/internal/service/models/outbox"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
)

// Worker drains the outbox table: every event row written alongside an order
// mutation is published to RabbitMQ and removed once the broker accepts it.
type Worker struct {
	outboxRepo    ioutboxrepo.IOutboxRepository
	rabbitClient  *rabbitmq.Client
	pollInterval  time.Duration
	batchSize     int
	retryInterval time.Duration
	stopCh        chan struct{}
}

// NewWorker creates a new outbox worker.
func NewWorker(
	outboxRepo ioutboxrepo.IOutboxRepository,
	rabbitClient *rabbitmq.Client,
) *Worker {
	pollIntervalSeconds := viper.GetInt("rabbitmq.outbox.poll_interval_seconds")
	if pollIntervalSeconds == 0 {
		pollIntervalSeconds = 10
	}

	batchSize := viper.GetInt("rabbitmq.outbox.batch_size")
	if batchSize == 0 {
		batchSize = 100
	}

	retryIntervalSeconds := viper.GetInt("rabbitmq.outbox.retry_interval_seconds")
	if retryIntervalSeconds == 0 {
		retryIntervalSeconds = 30
	}

	return &Worker{
		outboxRepo:    outboxRepo,
		rabbitClient:  rabbitClient,
		pollInterval:  time.Duration(pollIntervalSeconds) * time.Second,
		batchSize:     batchSize,
		retryInterval: time.Duration(retryIntervalSeconds) * time.Second,
		stopCh:        make(chan struct{}),
	}
}

// Start runs the polling loop until the context is cancelled or Stop is
// called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Outbox worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Outbox worker stopped")

			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// drain publishes one batch of pending messages.
func (w *Worker) drain(ctx context.Context) {
	messages, err := w.outboxRepo.GetPendingMessages(ctx, w.batchSize)
	if err != nil {
		slog.Error("Failed to get pending messages from outbox", "error", err)

		return
	}

	if len(messages) == 0 {
		return
	}

	slog.Info("Processing outbox messages", "count", len(messages))

	for _, msg := range messages {
		if err := w.publish(msg); err != nil {
			w.scheduleRetry(ctx, msg, err)

			continue
		}

		if err := w.outboxRepo.Delete(ctx, msg.ID); err != nil {
			slog.Error("Failed to delete outbox message after publish", "outbox_id", msg.ID, "error", err)

			continue
		}

		slog.Info("Outbox message published", "outbox_id", msg.ID, "routing_key", msg.RoutingKey)
	}
}

func (w *Worker) publish(msg outbox.Message) error {
	return w.rabbitClient.Channel().Publish(
		msg.ExchangeName,
		msg.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: msg.ContentType,
			Body:        msg.Payload,
		},
	)
}

// scheduleRetry records the failure and pushes the next attempt out with
// exponential backoff on top of the configured base interval.
func (w *Worker) scheduleRetry(ctx context.Context, msg outbox.Message, pubErr error) {
	newRetryCount := msg.RetryCount + 1
	backoff := time.Duration(math.Pow(2, float64(newRetryCount))) * w.retryInterval
	nextRetryAt := time.Now().Add(backoff)

	slog.Warn("Failed to publish outbox message, will retry",
		"outbox_id", msg.ID,
		"retry_count", newRetryCount,
		"next_retry", nextRetryAt,
		"error", pubErr,
	)

	if err := w.outboxRepo.UpdateRetry(ctx, msg.ID, newRetryCount, pubErr.Error(), nextRetryAt); err != nil {
		slog.Error("Failed to update outbox retry state", "outbox_id", msg.ID, "error", err)
	}
}
