package paymentwebhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopcore/fulfillment/internal/transport/http/httperr"
)

type service interface {
	HandlePaymentUpdate(ctx context.Context, orderID int64, paymentIntentID string, paid bool) error
}

type paymentEvent struct {
	OrderID         int64  `json:"orderId"`
	PaymentIntentID string `json:"paymentIntentId"`
	Paid            bool   `json:"paid"`
}

// Handle accepts the payment provider's out-of-band status update keyed by
// order id.
func Handle(w http.ResponseWriter, r *http.Request, service service) {
	var event paymentEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)
		slog.Error("Error decoding payment webhook", "error", err)

		return
	}

	if err := service.HandlePaymentUpdate(r.Context(), event.OrderID, event.PaymentIntentID, event.Paid); err != nil {
		httperr.Write(w, err)
		slog.Error("Error applying payment update", "error", err, "order_id", event.OrderID)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
