package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopcore/fulfillment/internal/dal/postgres"
	"github.com/shopcore/fulfillment/internal/dal/rabbitmq"
	outboxrepo "github.com/shopcore/fulfillment/internal/dal/repositories/outbox/postgres"
	"github.com/shopcore/fulfillment/internal/otel"
	"github.com/shopcore/fulfillment/internal/service/models/outbox"
	"github.com/shopcore/fulfillment/internal/service/services/ordersvc"
	"github.com/shopcore/fulfillment/internal/transport/consumer"
	httptransport "github.com/shopcore/fulfillment/internal/transport/http"
	outboxworker "github.com/shopcore/fulfillment/internal/worker/outbox"
)

// App represents the application.
type App struct {
	orderSvc       *ordersvc.OrderService
	transport      *httptransport.HTTPTransport
	consumer       *consumer.Consumer
	outboxWorker   *outboxworker.Worker
	postgresClient *postgres.Client
	rabbitClient   *rabbitmq.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()
	postgresClient := postgres.MustNewClient()
	rabbitClient := rabbitmq.MustNewClient()

	declareEventQueues(rabbitClient)

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient),
	)

	transport := httptransport.NewHTTPTransport(orderSvc)
	transport.RegisterRoutes()

	replenishmentConsumer := consumer.NewConsumer(rabbitClient, orderSvc)

	worker := outboxworker.NewWorker(
		outboxrepo.NewPostgresOutboxRepository(postgresClient.Pool()),
		rabbitClient,
	)

	return &App{
		orderSvc:       orderSvc,
		transport:      transport,
		consumer:       replenishmentConsumer,
		outboxWorker:   worker,
		postgresClient: postgresClient,
		rabbitClient:   rabbitClient,
		otelController: otelController,
	}
}

// declareEventQueues declares the queues the outbox worker publishes to, so
// events survive until a downstream consumer binds.
func declareEventQueues(client *rabbitmq.Client) {
	for _, name := range []string{
		outbox.EventOrderCreated,
		outbox.EventOrderCancelled,
		outbox.EventBackorderResolved,
	} {
		if _, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
			Name:    name,
			Durable: true,
		}); err != nil {
			panic(err)
		}
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	go a.outboxWorker.Start(workerCtx)

	go func() {
		if err := a.consumer.Run(workerCtx); err != nil {
			slog.Error("Replenishment consumer error", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	if err := a.consumer.Shutdown(); err != nil {
		slog.Error("Consumer shutdown error", "error", err)
	}

	a.outboxWorker.Stop()
	cancelWorkers()

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Tracer provider shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
