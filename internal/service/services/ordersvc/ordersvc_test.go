package ordersvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopcore/fulfillment/internal/service/models/cart"
	"github.com/shopcore/fulfillment/internal/service/models/city"
	"github.com/shopcore/fulfillment/internal/service/models/order"
	"github.com/shopcore/fulfillment/internal/service/models/user"
	"github.com/shopcore/fulfillment/internal/service/models/variant"
)

var testTime = time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)

func seedScenario(stock int) (*fakeStore, *fakeClock, *OrderService) {
	store := newFakeStore()
	store.addUser(user.User{ID: 1, Name: "alice", Address: "12 Main St", CityName: "Metropolis"})
	store.addCity(city.City{Name: "Metropolis", IsMain: true})
	store.addVariant(variant.ProductVariant{ID: 100, SKU: "SKU-100", Title: "Widget", PriceCents: 1250, Currency: "USD", Stock: stock})
	clk := &fakeClock{t: testTime}
	return store, clk, newTestService(store, clk)
}

func TestBuildAndCreateOrderInStock(t *testing.T) {
	store, _, svc := seedScenario(10)
	ctx := context.Background()

	draft, err := svc.BuildOrder(ctx,
		[]cart.Line{{VariantID: 100, Quantity: 4}},
		order.DeliveryModeStandardDelivery,
		&cart.ShippingAddress{Address: "12 Main St", CityName: "Metropolis"},
		1,
	)
	if err != nil {
		t.Fatalf("BuildOrder returned error: %v", err)
	}

	if draft.HasBackorder() {
		t.Fatal("line should be in stock")
	}
	if draft.DeliveryChargeCents != 500 {
		t.Fatalf("delivery charge = %d, want 500", draft.DeliveryChargeCents)
	}
	if draft.TotalPriceCents != 4*1250 {
		t.Fatalf("total = %d, want %d", draft.TotalPriceCents, 4*1250)
	}
	// main city shortens standard delivery to 5 days
	if want := testTime.AddDate(0, 0, 5); !draft.EstimatedDeliveryAt.Equal(want) {
		t.Fatalf("estimated delivery = %s, want %s", draft.EstimatedDeliveryAt, want)
	}

	created, err := svc.CreateOrder(ctx, draft)
	if err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}

	if created.Status != order.StatusPending {
		t.Fatalf("status = %s, want pending", created.Status)
	}
	if got := store.variants[100].Stock; got != 6 {
		t.Fatalf("stock after create = %d, want 6", got)
	}

	var itemSum int64
	for _, item := range created.Items {
		itemSum += item.TotalPriceCents
	}
	if created.TotalPriceCents != itemSum {
		t.Fatalf("order total %d != item sum %d", created.TotalPriceCents, itemSum)
	}
}

func TestBuildOrderBackordered(t *testing.T) {
	store, _, svc := seedScenario(2)
	ctx := context.Background()

	draft, err := svc.BuildOrder(ctx,
		[]cart.Line{{VariantID: 100, Quantity: 4}},
		order.DeliveryModeStandardDelivery,
		&cart.ShippingAddress{Address: "12 Main St", CityName: "Metropolis"},
		1,
	)
	if err != nil {
		t.Fatalf("BuildOrder returned error: %v", err)
	}

	if !draft.HasBackorder() {
		t.Fatal("line should be back-ordered")
	}
	// main city (5) + back-order penalty (3)
	if want := testTime.AddDate(0, 0, 8); !draft.EstimatedDeliveryAt.Equal(want) {
		t.Fatalf("estimated delivery = %s, want %s", draft.EstimatedDeliveryAt, want)
	}

	if _, err := svc.CreateOrder(ctx, draft); err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}

	// a back-ordered line reserves nothing
	if got := store.variants[100].Stock; got != 2 {
		t.Fatalf("stock after create = %d, want 2", got)
	}
}

func TestCancelBackorderedOrderDoesNotRestock(t *testing.T) {
	store, _, svc := seedScenario(2)
	ctx := context.Background()

	draft, err := svc.BuildOrder(ctx,
		[]cart.Line{{VariantID: 100, Quantity: 4}},
		order.DeliveryModeStandardDelivery,
		&cart.ShippingAddress{Address: "12 Main St", CityName: "Metropolis"},
		1,
	)
	if err != nil {
		t.Fatalf("BuildOrder returned error: %v", err)
	}
	created, err := svc.CreateOrder(ctx, draft)
	if err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}

	if err := svc.CancelOrder(ctx, created.ID); err != nil {
		t.Fatalf("CancelOrder returned error: %v", err)
	}

	if got := store.variants[100].Stock; got != 2 {
		t.Fatalf("stock after cancel = %d, want 2 (back-ordered line was never debited)", got)
	}
	if got := store.orders[created.ID].Status; got != order.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got)
	}
}

func TestCancelOrderRestocksDebitedLines(t *testing.T) {
	store, _, svc := seedScenario(10)
	ctx := context.Background()

	draft, _ := svc.BuildOrder(ctx,
		[]cart.Line{{VariantID: 100, Quantity: 4}},
		order.DeliveryModeStorePickup, nil, 1)
	created, err := svc.CreateOrder(ctx, draft)
	if err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}
	if got := store.variants[100].Stock; got != 6 {
		t.Fatalf("stock after create = %d, want 6", got)
	}

	if err := svc.CancelOrder(ctx, created.ID); err != nil {
		t.Fatalf("CancelOrder returned error: %v", err)
	}
	if got := store.variants[100].Stock; got != 10 {
		t.Fatalf("stock after cancel = %d, want 10", got)
	}
}

func TestCancelOrderIdempotent(t *testing.T) {
	store, _, svc := seedScenario(10)
	ctx := context.Background()

	draft, _ := svc.BuildOrder(ctx,
		[]cart.Line{{VariantID: 100, Quantity: 3}},
		order.DeliveryModeStorePickup, nil, 1)
	created, err := svc.CreateOrder(ctx, draft)
	if err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}

	if err := svc.CancelOrder(ctx, created.ID); err != nil {
		t.Fatalf("first cancel returned error: %v", err)
	}
	if err := svc.CancelOrder(ctx, created.ID); err != nil {
		t.Fatalf("second cancel returned error: %v", err)
	}

	if got := store.variants[100].Stock; got != 10 {
		t.Fatalf("stock = %d, want 10 (no double restock)", got)
	}
}

func TestCancelOrderNotFound(t *testing.T) {
	_, _, svc := seedScenario(10)

	err := svc.CancelOrder(context.Background(), 999)
	if !errors.Is(err, order.ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestCreateOrderRollsBackOnConcurrentDebit(t *testing.T) {
	store, _, svc := seedScenario(4)
	ctx := context.Background()

	draft, err := svc.BuildOrder(ctx,
		[]cart.Line{{VariantID: 100, Quantity: 4}},
		order.DeliveryModeStorePickup, nil, 1)
	if err != nil {
		t.Fatalf("BuildOrder returned error: %v", err)
	}

	// another order drains the stock between draft and create
	v := store.variants[100]
	v.Stock = 1
	store.variants[100] = v

	_, err = svc.CreateOrder(ctx, draft)
	if !errors.Is(err, variant.ErrOutOfStock) {
		t.Fatalf("err = %v, want ErrOutOfStock", err)
	}

	if len(store.orders) != 0 {
		t.Fatal("order must not be persisted when the stock debit fails")
	}
	if len(store.items) != 0 {
		t.Fatal("order items must not survive the rollback")
	}
	if got := store.variants[100].Stock; got != 1 {
		t.Fatalf("stock = %d, want 1 (unchanged)", got)
	}
}

func TestUnitPriceFrozenAfterCatalogChange(t *testing.T) {
	store, _, svc := seedScenario(10)
	ctx := context.Background()

	draft, _ := svc.BuildOrder(ctx,
		[]cart.Line{{VariantID: 100, Quantity: 2}},
		order.DeliveryModeStorePickup, nil, 1)
	created, err := svc.CreateOrder(ctx, draft)
	if err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}

	v := store.variants[100]
	v.PriceCents = 9999
	store.variants[100] = v

	got, err := svc.GetOrder(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetOrder returned error: %v", err)
	}
	if got.Items[0].UnitPriceCents != 1250 {
		t.Fatalf("unit price = %d, want the 1250 snapshot", got.Items[0].UnitPriceCents)
	}
	if got.TotalPriceCents != 2500 {
		t.Fatalf("total = %d, want 2500", got.TotalPriceCents)
	}
}

func TestBuildOrderAddressFallback(t *testing.T) {
	_, _, svc := seedScenario(10)
	ctx := context.Background()

	draft, err := svc.BuildOrder(ctx,
		[]cart.Line{{VariantID: 100, Quantity: 1}},
		order.DeliveryModeStandardDelivery, nil, 1)
	if err != nil {
		t.Fatalf("BuildOrder returned error: %v", err)
	}
	if draft.DeliveryAddress != "12 Main St" {
		t.Fatalf("address = %q, want profile fallback", draft.DeliveryAddress)
	}
	if draft.CityID == nil {
		t.Fatal("city must be resolved from the profile city name")
	}
}

func TestBuildOrderAddressRequired(t *testing.T) {
	store, clk, _ := seedScenario(10)
	store.addUser(user.User{ID: 2, Name: "bob"}) // no profile address
	svc := newTestService(store, clk)

	_, err := svc.BuildOrder(context.Background(),
		[]cart.Line{{VariantID: 100, Quantity: 1}},
		order.DeliveryModeStandardDelivery, nil, 2)
	if !errors.Is(err, order.ErrAddressRequired) {
		t.Fatalf("err = %v, want ErrAddressRequired", err)
	}
}

func TestBuildOrderLazyCityCreation(t *testing.T) {
	store, _, svc := seedScenario(10)
	ctx := context.Background()

	draft, err := svc.BuildOrder(ctx,
		[]cart.Line{{VariantID: 100, Quantity: 1}},
		order.DeliveryModeStandardDelivery,
		&cart.ShippingAddress{Address: "7 Elm St", CityName: "Smallville"},
		1,
	)
	if err != nil {
		t.Fatalf("BuildOrder returned error: %v", err)
	}

	created, err := (&fakeCityRepo{s: store}).GetByName(ctx, "Smallville")
	if err != nil {
		t.Fatalf("city was not created: %v", err)
	}
	if created.IsMain {
		t.Fatal("lazily created city must not be flagged main")
	}
	// new city is not main: full 7-day standard lead time
	if want := testTime.AddDate(0, 0, 7); !draft.EstimatedDeliveryAt.Equal(want) {
		t.Fatalf("estimated delivery = %s, want %s", draft.EstimatedDeliveryAt, want)
	}
}

func TestBuildOrderInvalidQuantity(t *testing.T) {
	_, _, svc := seedScenario(10)

	_, err := svc.BuildOrder(context.Background(),
		[]cart.Line{{VariantID: 100, Quantity: 0}},
		order.DeliveryModeStorePickup, nil, 1)
	if !errors.Is(err, cart.ErrInvalidQuantity) {
		t.Fatalf("err = %v, want ErrInvalidQuantity", err)
	}
}

func TestBuildOrderUnknownVariant(t *testing.T) {
	_, _, svc := seedScenario(10)

	_, err := svc.BuildOrder(context.Background(),
		[]cart.Line{{VariantID: 404, Quantity: 1}},
		order.DeliveryModeStorePickup, nil, 1)
	if !errors.Is(err, variant.ErrVariantNotFound) {
		t.Fatalf("err = %v, want ErrVariantNotFound", err)
	}
}

func TestHandlePaymentUpdateConfirmsPendingOrder(t *testing.T) {
	store, _, svc := seedScenario(10)
	ctx := context.Background()

	draft, _ := svc.BuildOrder(ctx,
		[]cart.Line{{VariantID: 100, Quantity: 1}},
		order.DeliveryModeStorePickup, nil, 1)
	created, err := svc.CreateOrder(ctx, draft)
	if err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}

	if err := svc.HandlePaymentUpdate(ctx, created.ID, "pi_123", true); err != nil {
		t.Fatalf("HandlePaymentUpdate returned error: %v", err)
	}

	got := store.orders[created.ID]
	if got.Status != order.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", got.Status)
	}
	if !got.Paid || got.PaymentIntentID != "pi_123" {
		t.Fatalf("payment not recorded: paid=%v intent=%q", got.Paid, got.PaymentIntentID)
	}
}

func TestHandlePaymentUpdateUnpaidKeepsPending(t *testing.T) {
	store, _, svc := seedScenario(10)
	ctx := context.Background()

	draft, _ := svc.BuildOrder(ctx,
		[]cart.Line{{VariantID: 100, Quantity: 1}},
		order.DeliveryModeStorePickup, nil, 1)
	created, _ := svc.CreateOrder(ctx, draft)

	if err := svc.HandlePaymentUpdate(ctx, created.ID, "pi_456", false); err != nil {
		t.Fatalf("HandlePaymentUpdate returned error: %v", err)
	}

	got := store.orders[created.ID]
	if got.Status != order.StatusPending {
		t.Fatalf("status = %s, want pending", got.Status)
	}
	if got.PaymentIntentID != "pi_456" {
		t.Fatalf("intent id = %q, want pi_456", got.PaymentIntentID)
	}
}

func TestGetOrdersFiltersByUser(t *testing.T) {
	store, clk, svc := seedScenario(10)
	store.addUser(user.User{ID: 2, Name: "bob", Address: "9 Oak St", CityName: "Metropolis"})
	ctx := context.Background()

	for _, userID := range []int64{1, 1, 2} {
		draft, _ := svc.BuildOrder(ctx,
			[]cart.Line{{VariantID: 100, Quantity: 1}},
			order.DeliveryModeStorePickup, nil, userID)
		if _, err := svc.CreateOrder(ctx, draft); err != nil {
			t.Fatalf("CreateOrder returned error: %v", err)
		}
		clk.Advance(time.Minute)
	}

	orders, err := svc.GetOrders(ctx, &order.QueryOrdersModel{UserIds: []int64{1}})
	if err != nil {
		t.Fatalf("GetOrders returned error: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("got %d orders, want 2", len(orders))
	}
	for _, o := range orders {
		if len(o.Items) != 1 {
			t.Fatalf("order %d has %d items, want 1", o.ID, len(o.Items))
		}
	}
}

func TestStatementDeadlockSurfacesAsConflict(t *testing.T) {
	store, _, svc := seedScenario(10)
	ctx := context.Background()

	draft, err := svc.BuildOrder(ctx,
		[]cart.Line{{VariantID: 100, Quantity: 2}},
		order.DeliveryModeStorePickup, nil, 1)
	if err != nil {
		t.Fatalf("BuildOrder returned error: %v", err)
	}

	// Postgres kills the blocked statement, not the commit: the stock debit
	// itself comes back with a deadlock SQLSTATE.
	store.adjustErr = &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}

	_, err = svc.CreateOrder(ctx, draft)
	if !errors.Is(err, order.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	if len(store.orders) != 0 || len(store.items) != 0 {
		t.Fatal("nothing may persist when the transaction deadlocks")
	}
}

func TestRestockDeadlockSurfacesAsConflict(t *testing.T) {
	store, _, svc := seedScenario(0)

	store.adjustErr = &pgconn.PgError{Code: "40001", Message: "could not serialize access"}

	_, err := svc.Restock(context.Background(), 100, 3)
	if !errors.Is(err, order.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestCreateOrderDebitsVariantsInIdOrder(t *testing.T) {
	store, _, svc := seedScenario(10)
	store.addVariant(variant.ProductVariant{ID: 300, SKU: "SKU-300", Title: "Gadget", PriceCents: 700, Currency: "USD", Stock: 10})
	ctx := context.Background()

	// cart lists the higher variant id first
	draft, err := svc.BuildOrder(ctx,
		[]cart.Line{{VariantID: 300, Quantity: 1}, {VariantID: 100, Quantity: 1}},
		order.DeliveryModeStorePickup, nil, 1)
	if err != nil {
		t.Fatalf("BuildOrder returned error: %v", err)
	}

	store.adjustLog = nil
	if _, err := svc.CreateOrder(ctx, draft); err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}

	want := []int64{100, 300}
	if len(store.adjustLog) != len(want) {
		t.Fatalf("adjustments = %v, want %v", store.adjustLog, want)
	}
	for i, id := range want {
		if store.adjustLog[i] != id {
			t.Fatalf("adjustments = %v, want ascending variant ids %v", store.adjustLog, want)
		}
	}
}
