package delivery

import (
	"time"

	"github.com/shopcore/fulfillment/internal/service/models/order"
)

// Lead times in calendar days. Weekends and holidays are not excluded;
// the day count is deliberately literal.
const (
	standardDays         = 7
	standardMainCityDays = 5
	pickupDays           = 1
	backorderPenaltyDays = 3
)

// Estimate computes the estimated delivery date for an order: base lead time
// from the delivery mode, shortened for main-city standard delivery, plus a
// back-order penalty applied after the city adjustment. Deterministic given
// its inputs and now.
func Estimate(now time.Time, mode order.DeliveryMode, mainCity bool, hasBackorder bool) time.Time {
	days := pickupDays
	if mode == order.DeliveryModeStandardDelivery {
		days = standardDays
		if mainCity {
			days = standardMainCityDays
		}
	}

	if hasBackorder {
		days += backorderPenaltyDays
	}

	return now.AddDate(0, 0, days)
}
