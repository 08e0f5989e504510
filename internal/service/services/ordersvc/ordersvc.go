package ordersvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopcore/fulfillment/internal/dal/interfaces/icityrepo"
	"github.com/shopcore/fulfillment/internal/dal/interfaces/iorderitemrepo"
	"github.com/shopcore/fulfillment/internal/dal/interfaces/iorderrepo"
	"github.com/shopcore/fulfillment/internal/dal/interfaces/ioutboxrepo"
	"github.com/shopcore/fulfillment/internal/dal/interfaces/iuserrepo"
	"github.com/shopcore/fulfillment/internal/dal/interfaces/ivariantrepo"
	"github.com/shopcore/fulfillment/internal/dal/postgres"
	"github.com/shopcore/fulfillment/internal/dal/uow"
	"github.com/shopcore/fulfillment/internal/service/delivery"
	"github.com/shopcore/fulfillment/internal/service/models/cart"
	"github.com/shopcore/fulfillment/internal/service/models/city"
	"github.com/shopcore/fulfillment/internal/service/models/currency"
	"github.com/shopcore/fulfillment/internal/service/models/order"
	"github.com/shopcore/fulfillment/internal/service/models/orderitem"
	"github.com/shopcore/fulfillment/internal/service/models/outbox"
	"github.com/spf13/viper"
)

const defaultStandardChargeCents = 500

// OrderService is the fulfillment engine: it builds order drafts, persists
// them with their stock debits, handles cancellation and restock, and
// reconciles back-orders.
type OrderService struct {
	pgClient            *postgres.Client
	uowFactory          func() unitOfWork
	now                 func() time.Time
	standardChargeCents int64
}

func (s *OrderService) newUOW() unitOfWork {
	return s.uowFactory()
}

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	OrderItemRepository() iorderitemrepo.IOrderItemRepository
	VariantRepository() ivariantrepo.IVariantRepository
	CityRepository() icityrepo.ICityRepository
	UserRepository() iuserrepo.IUserRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{}
	for _, opt := range opts {
		opt(s)
	}

	if s.uowFactory == nil {
		if s.pgClient == nil {
			panic("order service requires a postgres client or a unit-of-work factory")
		}
		s.uowFactory = func() unitOfWork {
			return uow.NewUnitOfWork(s.pgClient)
		}
	}

	if s.now == nil {
		s.now = time.Now
	}

	if s.standardChargeCents == 0 {
		s.standardChargeCents = viper.GetInt64("delivery.standard_charge_cents")
		if s.standardChargeCents == 0 {
			s.standardChargeCents = defaultStandardChargeCents
		}
	}

	return s
}

// WithPostgresClient sets the Postgres client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.pgClient = pgClient
	}
}

// classify maps serialization failures to order.ErrConflict so callers can
// distinguish a retryable transaction conflict from a hard failure. Postgres
// raises a deadlock on the blocked statement, not at commit, so every
// repository error inside a transaction goes through here.
func classify(err error) error {
	if postgres.IsSerializationFailure(err) {
		return fmt.Errorf("%w: %s", order.ErrConflict, err)
	}

	return err
}

func commit(ctx context.Context, work unitOfWork) error {
	if err := work.Commit(ctx); err != nil {
		return classify(err)
	}

	return nil
}

// BuildOrder prices the cart lines against current catalog state and
// produces an immutable draft. Lines whose quantity exceeds available stock
// are marked back-ordered; nothing is debited here. No persistence happens
// except lazy creation of an unseen destination city.
func (s *OrderService) BuildOrder(
	ctx context.Context,
	lines []cart.Line,
	mode order.DeliveryMode,
	addr *cart.ShippingAddress,
	userID int64,
) (*order.Draft, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("cart is empty: %w", cart.ErrInvalidQuantity)
	}

	work := s.newUOW()

	draft := &order.Draft{
		UserID:       userID,
		DeliveryMode: mode,
		Currency:     currency.CurrencyUSD,
	}

	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("variant %d: %w", line.VariantID, cart.ErrInvalidQuantity)
		}

		v, err := work.VariantRepository().Get(ctx, line.VariantID)
		if err != nil {
			return nil, err
		}

		item := orderitem.DraftItem{
			VariantID:       v.ID,
			Quantity:        line.Quantity,
			UnitPriceCents:  v.PriceCents,
			TotalPriceCents: v.PriceCents * int64(line.Quantity),
			Currency:        v.Currency,
			Backordered:     line.Quantity > v.Stock,
		}

		draft.TotalPriceCents += item.TotalPriceCents
		draft.Items = append(draft.Items, item)
	}

	destCity, err := s.resolveDestination(ctx, work, draft, mode, addr, userID)
	if err != nil {
		return nil, err
	}

	if mode == order.DeliveryModeStandardDelivery {
		draft.DeliveryChargeCents = s.standardChargeCents
	}

	mainCity := destCity != nil && destCity.IsMain
	draft.EstimatedDeliveryAt = delivery.Estimate(s.now(), mode, mainCity, draft.HasBackorder())

	return draft, nil
}

// resolveDestination fills the draft's address and city. Standard delivery
// without an explicit address falls back to the user's profile address and
// fails with order.ErrAddressRequired when neither exists. Unknown city
// names create a new non-main city.
func (s *OrderService) resolveDestination(
	ctx context.Context,
	work unitOfWork,
	draft *order.Draft,
	mode order.DeliveryMode,
	addr *cart.ShippingAddress,
	userID int64,
) (*city.City, error) {
	var address, cityName string
	if addr != nil {
		address = addr.Address
		cityName = addr.CityName
	}

	if mode == order.DeliveryModeStandardDelivery && address == "" {
		u, err := work.UserRepository().Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !u.HasAddress() {
			return nil, fmt.Errorf("user %d has no profile address: %w", userID, order.ErrAddressRequired)
		}
		address = u.Address
		cityName = u.CityName
	}

	draft.DeliveryAddress = address

	if cityName == "" {
		return nil, nil
	}

	destCity, err := work.CityRepository().GetByName(ctx, cityName)
	if errors.Is(err, city.ErrCityNotFound) {
		destCity, err = work.CityRepository().Insert(ctx, city.City{Name: cityName})
	}
	if err != nil {
		return nil, err
	}

	draft.CityID = &destCity.ID

	return destCity, nil
}

// CreateOrder persists the draft in one transaction: the order row, its
// items, and a stock debit for every line that was not back-ordered. Any
// failure, including an out-of-stock raised by a concurrent debit since the
// draft was built, rolls back the entire order.
func (s *OrderService) CreateOrder(ctx context.Context, draft *order.Draft) (*order.Order, error) {
	work := s.newUOW()

	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = work.Rollback(ctx) }()

	now := s.now()

	inserted, err := work.OrderRepository().Insert(ctx, order.Order{
		UserID:              draft.UserID,
		Status:              order.StatusPending,
		DeliveryMode:        draft.DeliveryMode,
		DeliveryAddress:     draft.DeliveryAddress,
		CityID:              draft.CityID,
		DeliveryChargeCents: draft.DeliveryChargeCents,
		TotalPriceCents:     draft.TotalPriceCents,
		Currency:            draft.Currency,
		EstimatedDeliveryAt: draft.EstimatedDeliveryAt,
		OrderedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		return nil, classify(err)
	}

	items := make([]orderitem.OrderItem, 0, len(draft.Items))
	for _, di := range draft.Items {
		items = append(items, orderitem.OrderItem{
			OrderID:         inserted.ID,
			VariantID:       di.VariantID,
			Quantity:        di.Quantity,
			UnitPriceCents:  di.UnitPriceCents,
			TotalPriceCents: di.TotalPriceCents,
			Currency:        di.Currency,
			Backordered:     di.Backordered,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	items, err = work.OrderItemRepository().BulkInsert(ctx, items)
	if err != nil {
		return nil, classify(err)
	}
	inserted.Items = items

	// Debit in variant-id order so concurrent multi-line orders acquire
	// variant row locks in a consistent order and cannot deadlock each other.
	debits := make([]orderitem.OrderItem, len(items))
	copy(debits, items)
	sort.Slice(debits, func(i, j int) bool { return debits[i].VariantID < debits[j].VariantID })

	for _, item := range debits {
		if item.Backordered {
			continue
		}
		if _, err := work.VariantRepository().AdjustStock(ctx, item.VariantID, -item.Quantity); err != nil {
			return nil, classify(err)
		}
	}

	if err := s.enqueueEvent(ctx, work, outbox.EventOrderCreated, inserted); err != nil {
		return nil, classify(err)
	}

	if err := commit(ctx, work); err != nil {
		return nil, err
	}

	return inserted, nil
}

// GetOrder retrieves an order with its items.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*order.Order, error) {
	work := s.newUOW()

	o, err := work.OrderRepository().Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	items, err := work.OrderItemRepository().ListByOrders(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items

	return o, nil
}

// GetOrders retrieves orders with their items based on filter.
func (s *OrderService) GetOrders(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	work := s.newUOW()

	orders, err := work.OrderRepository().Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		return []order.Order{}, nil
	}

	orderIDs := make([]int64, 0, len(orders))
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
	}

	items, err := work.OrderItemRepository().ListByOrders(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		for _, item := range items {
			if item.OrderID == orders[i].ID {
				orders[i].Items = append(orders[i].Items, item)
			}
		}
	}

	return orders, nil
}

// CancelOrder cancels an order and restores stock for every line that was
// actually debited. Back-ordered lines never reserved stock, so they are not
// restocked. Freed stock is immediately offered to other customers'
// back-orders within the same transaction. Cancelling an already-cancelled
// order is a no-op.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64) error {
	work := s.newUOW()

	if err := work.Begin(ctx); err != nil {
		return err
	}
	defer func() { _ = work.Rollback(ctx) }()

	o, err := work.OrderRepository().GetForUpdate(ctx, orderID)
	if err != nil {
		return classify(err)
	}

	if o.Status == order.StatusCancelled {
		return nil
	}

	items, err := work.OrderItemRepository().ListByOrders(ctx, []int64{o.ID})
	if err != nil {
		return classify(err)
	}

	if err := work.OrderRepository().UpdateStatus(ctx, o.ID, order.StatusCancelled); err != nil {
		return classify(err)
	}

	// Restock in variant-id order, matching the debit lock order in
	// CreateOrder.
	restocks := make([]orderitem.OrderItem, len(items))
	copy(restocks, items)
	sort.Slice(restocks, func(i, j int) bool { return restocks[i].VariantID < restocks[j].VariantID })

	var affected []int64
	for _, item := range restocks {
		if item.Backordered {
			continue
		}
		if _, err := work.VariantRepository().AdjustStock(ctx, item.VariantID, item.Quantity); err != nil {
			return classify(err)
		}
		if len(affected) == 0 || affected[len(affected)-1] != item.VariantID {
			affected = append(affected, item.VariantID)
		}
	}

	for _, variantID := range affected {
		if _, err := s.resolveBackorders(ctx, work, variantID); err != nil {
			return classify(err)
		}
	}

	o.Status = order.StatusCancelled
	o.Items = items
	if err := s.enqueueEvent(ctx, work, outbox.EventOrderCancelled, o); err != nil {
		return classify(err)
	}

	return commit(ctx, work)
}

// HandlePaymentUpdate applies an out-of-band payment status update keyed by
// order id. A paid update confirms a pending order.
func (s *OrderService) HandlePaymentUpdate(ctx context.Context, orderID int64, paymentIntentID string, paid bool) error {
	work := s.newUOW()

	if err := work.Begin(ctx); err != nil {
		return err
	}
	defer func() { _ = work.Rollback(ctx) }()

	o, err := work.OrderRepository().GetForUpdate(ctx, orderID)
	if err != nil {
		return classify(err)
	}

	if err := work.OrderRepository().SetPayment(ctx, o.ID, paymentIntentID, paid); err != nil {
		return classify(err)
	}

	if paid && o.Status == order.StatusPending {
		if err := work.OrderRepository().UpdateStatus(ctx, o.ID, order.StatusConfirmed); err != nil {
			return classify(err)
		}
	}

	return commit(ctx, work)
}

// enqueueEvent writes an event to the outbox within the current transaction.
func (s *OrderService) enqueueEvent(ctx context.Context, work unitOfWork, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", routingKey, err)
	}

	maxRetries := viper.GetInt("rabbitmq.outbox.max_retries")
	if maxRetries == 0 {
		maxRetries = 5
	}

	now := s.now()

	return work.OutboxRepository().Insert(ctx, outbox.Message{
		QueueName:   routingKey,
		RoutingKey:  routingKey,
		Payload:     body,
		ContentType: "application/json",
		MaxRetries:  maxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
		NextRetryAt: now,
	})
}
