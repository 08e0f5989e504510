package httperr

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopcore/fulfillment/internal/service/models/cart"
	"github.com/shopcore/fulfillment/internal/service/models/city"
	"github.com/shopcore/fulfillment/internal/service/models/order"
	"github.com/shopcore/fulfillment/internal/service/models/user"
	"github.com/shopcore/fulfillment/internal/service/models/variant"
)

type errorResponse struct {
	Error string `json:"error"`
}

// Write maps engine errors to HTTP status codes. Error kinds stay
// distinguishable for the caller; unknown errors become 500 without leaking
// detail.
func Write(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, variant.ErrVariantNotFound),
		errors.Is(err, city.ErrCityNotFound),
		errors.Is(err, user.ErrUserNotFound):
		status = http.StatusNotFound
		msg = err.Error()
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidDeliveryMode),
		errors.Is(err, order.ErrAddressRequired):
		status = http.StatusBadRequest
		msg = err.Error()
	case errors.Is(err, variant.ErrOutOfStock),
		errors.Is(err, order.ErrConflict):
		status = http.StatusConflict
		msg = err.Error()
	default:
		slog.Error("Unhandled service error", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(errorResponse{Error: msg}); encErr != nil {
		slog.Error("Error writing error response", "error", encErr)
	}
}
