package createorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopcore/fulfillment/internal/service/models/cart"
	"github.com/shopcore/fulfillment/internal/service/models/order"
	"github.com/shopcore/fulfillment/internal/transport/http/httperr"
)

// service is an interface for the service layer.
type service interface {
	BuildOrder(ctx context.Context, lines []cart.Line, mode order.DeliveryMode, addr *cart.ShippingAddress, userID int64) (*order.Draft, error)
	CreateOrder(ctx context.Context, draft *order.Draft) (*order.Order, error)
}

type createOrderRequest struct {
	Lines        []cart.Line           `json:"lines"`
	DeliveryMode string                `json:"deliveryMode"`
	Address      *cart.ShippingAddress `json:"address,omitempty"`
}

// CreateOrder builds a draft from the cart and persists it in one
// transaction. The authenticated user id is supplied by the auth layer via
// the X-User-Id header.
func CreateOrder(w http.ResponseWriter, r *http.Request, service service) {
	userID, err := strconv.ParseInt(r.Header.Get("X-User-Id"), 10, 64)
	if err != nil {
		http.Error(w, "missing or invalid X-User-Id header", http.StatusUnauthorized)

		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)
		slog.Error("Error decoding request body for create order", "error", err)

		return
	}

	mode, err := order.ParseDeliveryMode(req.DeliveryMode)
	if err != nil {
		httperr.Write(w, err)

		return
	}

	draft, err := service.BuildOrder(r.Context(), req.Lines, mode, req.Address, userID)
	if err != nil {
		httperr.Write(w, err)
		slog.Error("Error building order", "error", err, "user_id", userID)

		return
	}

	created, err := service.CreateOrder(r.Context(), draft)
	if err != nil {
		httperr.Write(w, err)
		slog.Error("Error creating order", "error", err, "user_id", userID)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(created); err != nil {
		slog.Error("Error writing response for create order", "error", err)
	}
}
