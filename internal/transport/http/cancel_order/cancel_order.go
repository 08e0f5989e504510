package cancelorder

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopcore/fulfillment/internal/transport/http/httperr"
)

type service interface {
	CancelOrder(ctx context.Context, orderID int64) error
}

func CancelOrder(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)

		return
	}

	if err := service.CancelOrder(r.Context(), orderID); err != nil {
		httperr.Write(w, err)
		slog.Error("Error cancelling order", "error", err, "order_id", orderID)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
