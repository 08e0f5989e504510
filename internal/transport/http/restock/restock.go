package restock

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopcore/fulfillment/internal/service/services/ordersvc"
	"github.com/shopcore/fulfillment/internal/transport/http/httperr"
)

type service interface {
	Restock(ctx context.Context, variantID int64, quantity int) (*ordersvc.Resolution, error)
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

// Restock handles manual replenishment: adds stock to a variant and
// reconciles pending back-orders in the same transaction.
func Restock(w http.ResponseWriter, r *http.Request, service service) {
	variantID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid variant id", http.StatusBadRequest)

		return
	}

	var req restockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)

		return
	}

	if req.Quantity < 1 {
		http.Error(w, "quantity must be at least 1", http.StatusBadRequest)

		return
	}

	res, err := service.Restock(r.Context(), variantID, req.Quantity)
	if err != nil {
		httperr.Write(w, err)
		slog.Error("Error restocking variant", "error", err, "variant_id", variantID)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Error sending response for restock", "error", err)
	}
}
