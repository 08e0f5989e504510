package ordersvc

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopcore/fulfillment/internal/dal/interfaces/icityrepo"
	"github.com/shopcore/fulfillment/internal/dal/interfaces/iorderitemrepo"
	"github.com/shopcore/fulfillment/internal/dal/interfaces/iorderrepo"
	"github.com/shopcore/fulfillment/internal/dal/interfaces/ioutboxrepo"
	"github.com/shopcore/fulfillment/internal/dal/interfaces/iuserrepo"
	"github.com/shopcore/fulfillment/internal/dal/interfaces/ivariantrepo"
	"github.com/shopcore/fulfillment/internal/service/models/city"
	"github.com/shopcore/fulfillment/internal/service/models/order"
	"github.com/shopcore/fulfillment/internal/service/models/orderitem"
	"github.com/shopcore/fulfillment/internal/service/models/outbox"
	"github.com/shopcore/fulfillment/internal/service/models/user"
	"github.com/shopcore/fulfillment/internal/service/models/variant"
)

// fakeStore is an in-memory stand-in for the database shared by every unit
// of work a test service creates.
type fakeStore struct {
	variants map[int64]variant.ProductVariant
	orders   map[int64]order.Order
	items    map[int64]orderitem.OrderItem
	cities   map[int64]city.City
	users    map[int64]user.User
	outbox   []outbox.Message
	nextID   int64

	// adjustErr, when set, fails the next stock adjustments the way the
	// driver would. adjustLog records the variant ids of every adjustment
	// attempt in call order. Neither participates in snapshot/rollback.
	adjustErr error
	adjustLog []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		variants: make(map[int64]variant.ProductVariant),
		orders:   make(map[int64]order.Order),
		items:    make(map[int64]orderitem.OrderItem),
		cities:   make(map[int64]city.City),
		users:    make(map[int64]user.User),
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) clone() *fakeStore {
	c := newFakeStore()
	c.nextID = s.nextID
	for k, v := range s.variants {
		c.variants[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.cities {
		c.cities[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	c.outbox = append(c.outbox, s.outbox...)
	return c
}

func (s *fakeStore) restore(from *fakeStore) {
	s.variants = from.variants
	s.orders = from.orders
	s.items = from.items
	s.cities = from.cities
	s.users = from.users
	s.outbox = from.outbox
	s.nextID = from.nextID
}

func (s *fakeStore) addVariant(v variant.ProductVariant) {
	if v.ID == 0 {
		v.ID = s.id()
	}
	s.variants[v.ID] = v
}

func (s *fakeStore) addUser(u user.User) {
	if u.ID == 0 {
		u.ID = s.id()
	}
	s.users[u.ID] = u
}

func (s *fakeStore) addCity(c city.City) city.City {
	if c.ID == 0 {
		c.ID = s.id()
	}
	s.cities[c.ID] = c
	return c
}

// fakeUOW implements the service's unitOfWork contract with snapshot-based
// rollback, so transaction atomicity is observable in tests.
type fakeUOW struct {
	store    *fakeStore
	snapshot *fakeStore
}

func (u *fakeUOW) Begin(_ context.Context) error {
	u.snapshot = u.store.clone()
	return nil
}

func (u *fakeUOW) Commit(_ context.Context) error {
	u.snapshot = nil
	return nil
}

func (u *fakeUOW) Rollback(_ context.Context) error {
	if u.snapshot != nil {
		u.store.restore(u.snapshot)
		u.snapshot = nil
	}
	return nil
}

func (u *fakeUOW) OrderRepository() iorderrepo.IOrderRepository {
	return &fakeOrderRepo{s: u.store}
}

func (u *fakeUOW) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return &fakeOrderItemRepo{s: u.store}
}

func (u *fakeUOW) VariantRepository() ivariantrepo.IVariantRepository {
	return &fakeVariantRepo{s: u.store}
}

func (u *fakeUOW) CityRepository() icityrepo.ICityRepository {
	return &fakeCityRepo{s: u.store}
}

func (u *fakeUOW) UserRepository() iuserrepo.IUserRepository {
	return &fakeUserRepo{s: u.store}
}

func (u *fakeUOW) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return &fakeOutboxRepo{s: u.store}
}

type fakeVariantRepo struct{ s *fakeStore }

func (r *fakeVariantRepo) Get(_ context.Context, variantID int64) (*variant.ProductVariant, error) {
	v, ok := r.s.variants[variantID]
	if !ok {
		return nil, variant.ErrVariantNotFound
	}
	return &v, nil
}

func (r *fakeVariantRepo) GetForUpdate(ctx context.Context, variantID int64) (*variant.ProductVariant, error) {
	return r.Get(ctx, variantID)
}

func (r *fakeVariantRepo) AdjustStock(_ context.Context, variantID int64, delta int) (*variant.ProductVariant, error) {
	r.s.adjustLog = append(r.s.adjustLog, variantID)
	if r.s.adjustErr != nil {
		return nil, r.s.adjustErr
	}
	v, ok := r.s.variants[variantID]
	if !ok {
		return nil, variant.ErrVariantNotFound
	}
	newStock := v.Stock + delta
	if newStock < 0 {
		return nil, fmt.Errorf("variant %d: stock %d, delta %d: %w", variantID, v.Stock, delta, variant.ErrOutOfStock)
	}
	v.Stock = newStock
	r.s.variants[variantID] = v
	return &v, nil
}

type fakeOrderRepo struct{ s *fakeStore }

func (r *fakeOrderRepo) Insert(_ context.Context, o order.Order) (*order.Order, error) {
	o.ID = r.s.id()
	stored := o
	stored.Items = nil
	r.s.orders[o.ID] = stored
	o.Items = []orderitem.OrderItem{}
	return &o, nil
}

func (r *fakeOrderRepo) Get(_ context.Context, orderID int64) (*order.Order, error) {
	o, ok := r.s.orders[orderID]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return &o, nil
}

func (r *fakeOrderRepo) GetForUpdate(ctx context.Context, orderID int64) (*order.Order, error) {
	return r.Get(ctx, orderID)
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, orderID int64, status order.Status) error {
	o, ok := r.s.orders[orderID]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.Status = status
	r.s.orders[orderID] = o
	return nil
}

func (r *fakeOrderRepo) SetPayment(_ context.Context, orderID int64, paymentIntentID string, paid bool) error {
	o, ok := r.s.orders[orderID]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.PaymentIntentID = paymentIntentID
	o.Paid = paid
	r.s.orders[orderID] = o
	return nil
}

func (r *fakeOrderRepo) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	var result []order.Order
	for _, o := range r.s.orders {
		if len(filter.Ids) > 0 && !containsID(filter.Ids, o.ID) {
			continue
		}
		if len(filter.UserIds) > 0 && !containsID(filter.UserIds, o.UserID) {
			continue
		}
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type fakeOrderItemRepo struct{ s *fakeStore }

func (r *fakeOrderItemRepo) BulkInsert(_ context.Context, orderItems []orderitem.OrderItem) ([]orderitem.OrderItem, error) {
	result := make([]orderitem.OrderItem, 0, len(orderItems))
	for _, item := range orderItems {
		item.ID = r.s.id()
		r.s.items[item.ID] = item
		result = append(result, item)
	}
	return result, nil
}

func (r *fakeOrderItemRepo) ListByOrders(_ context.Context, orderIDs []int64) ([]orderitem.OrderItem, error) {
	var result []orderitem.OrderItem
	for _, item := range r.s.items {
		if containsID(orderIDs, item.OrderID) {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *fakeOrderItemRepo) ListBackorderedForUpdate(_ context.Context, variantID int64) ([]orderitem.OrderItem, error) {
	var result []orderitem.OrderItem
	for _, item := range r.s.items {
		if item.VariantID != variantID || !item.Backordered {
			continue
		}
		if o, ok := r.s.orders[item.OrderID]; ok && o.Status == order.StatusCancelled {
			continue
		}
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *fakeOrderItemRepo) ClearBackordered(_ context.Context, itemIDs []int64) error {
	for _, id := range itemIDs {
		item, ok := r.s.items[id]
		if !ok {
			continue
		}
		item.Backordered = false
		r.s.items[id] = item
	}
	return nil
}

type fakeCityRepo struct{ s *fakeStore }

func (r *fakeCityRepo) GetByName(_ context.Context, name string) (*city.City, error) {
	for _, c := range r.s.cities {
		if c.Name == name {
			return &c, nil
		}
	}
	return nil, city.ErrCityNotFound
}

func (r *fakeCityRepo) Insert(_ context.Context, c city.City) (*city.City, error) {
	stored := r.s.addCity(c)
	return &stored, nil
}

type fakeUserRepo struct{ s *fakeStore }

func (r *fakeUserRepo) Get(_ context.Context, userID int64) (*user.User, error) {
	u, ok := r.s.users[userID]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return &u, nil
}

type fakeOutboxRepo struct{ s *fakeStore }

func (r *fakeOutboxRepo) Insert(_ context.Context, msg outbox.Message) error {
	msg.ID = r.s.id()
	r.s.outbox = append(r.s.outbox, msg)
	return nil
}

func (r *fakeOutboxRepo) GetPendingMessages(_ context.Context, limit int) ([]outbox.Message, error) {
	if limit > len(r.s.outbox) {
		limit = len(r.s.outbox)
	}
	return append([]outbox.Message(nil), r.s.outbox[:limit]...), nil
}

func (r *fakeOutboxRepo) UpdateRetry(_ context.Context, _ int64, _ int, _ string, _ time.Time) error {
	return nil
}

func (r *fakeOutboxRepo) Delete(_ context.Context, id int64) error {
	for i, msg := range r.s.outbox {
		if msg.ID == id {
			r.s.outbox = append(r.s.outbox[:i], r.s.outbox[i+1:]...)
			return nil
		}
	}
	return nil
}

// fakeClock lets tests advance time between operations so item creation
// order is observable.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestService(store *fakeStore, clk *fakeClock) *OrderService {
	return &OrderService{
		uowFactory:          func() unitOfWork { return &fakeUOW{store: store} },
		now:                 clk.Now,
		standardChargeCents: 500,
	}
}
