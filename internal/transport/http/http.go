package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopcore/fulfillment/internal/service/models/cart"
	"github.com/shopcore/fulfillment/internal/service/models/order"
	"github.com/shopcore/fulfillment/internal/service/services/ordersvc"
	cancelorder "github.com/shopcore/fulfillment/internal/transport/http/cancel_order"
	createorder "github.com/shopcore/fulfillment/internal/transport/http/create_order"
	getorder "github.com/shopcore/fulfillment/internal/transport/http/get_order"
	listorders "github.com/shopcore/fulfillment/internal/transport/http/list_orders"
	paymentwebhook "github.com/shopcore/fulfillment/internal/transport/http/payment_webhook"
	"github.com/shopcore/fulfillment/internal/transport/http/restock"
	"github.com/shopcore/fulfillment/pkg/http/middleware/trace"
	"github.com/shopcore/fulfillment/pkg/logger"
	"github.com/spf13/viper"
)

type service interface {
	BuildOrder(ctx context.Context, lines []cart.Line, mode order.DeliveryMode, addr *cart.ShippingAddress, userID int64) (*order.Draft, error)
	CreateOrder(ctx context.Context, draft *order.Draft) (*order.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*order.Order, error)
	GetOrders(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
	CancelOrder(ctx context.Context, orderID int64) error
	Restock(ctx context.Context, variantID int64, quantity int) (*ordersvc.Resolution, error)
	HandlePaymentUpdate(ctx context.Context, orderID int64, paymentIntentID string, paid bool) error
}

type HTTPTransport struct {
	server  *http.Server
	router  *chi.Mux
	service service
}

func NewHTTPTransport(service service) *HTTPTransport {
	router := newRouter()
	server := newServer(router)
	return &HTTPTransport{
		server:  server,
		router:  router,
		service: service,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Route("/api", func(r chi.Router) {
		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Post("/orders/{id}/cancel", h.cancelOrder)
		r.Post("/variants/{id}/restock", h.restockVariant)
		r.Post("/payments/webhook", h.paymentWebhook)
	})
}

func (h *HTTPTransport) createOrder(w http.ResponseWriter, r *http.Request) {
	createorder.CreateOrder(w, r, h.service)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.service)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.service)
}

func (h *HTTPTransport) cancelOrder(w http.ResponseWriter, r *http.Request) {
	cancelorder.CancelOrder(w, r, h.service)
}

func (h *HTTPTransport) restockVariant(w http.ResponseWriter, r *http.Request) {
	restock.Restock(w, r, h.service)
}

func (h *HTTPTransport) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	paymentwebhook.Handle(w, r, h.service)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(trace.NewTraceMiddleware)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}
}
