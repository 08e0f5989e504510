package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopcore/fulfillment/internal/dal/postgres"
	"github.com/shopcore/fulfillment/internal/service/models/currency"
	"github.com/shopcore/fulfillment/internal/service/models/order"
	"github.com/shopcore/fulfillment/internal/service/models/orderitem"
)

// OrderDal represents order data access layer model
type OrderDal struct {
	Id                  int64     `db:"id"`
	UserId              int64     `db:"user_id"`
	Status              string    `db:"status"`
	DeliveryMode        string    `db:"delivery_mode"`
	DeliveryAddress     string    `db:"delivery_address"`
	CityId              *int64    `db:"city_id"`
	DeliveryChargeCents int64     `db:"delivery_charge_cents"`
	TotalPriceCents     int64     `db:"total_price_cents"`
	Currency            string    `db:"currency"`
	PaymentIntentId     string    `db:"payment_intent_id"`
	Paid                bool      `db:"paid"`
	EstimatedDeliveryAt time.Time `db:"estimated_delivery_at"`
	OrderedAt           time.Time `db:"ordered_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

// ToModel converts OrderDal to service layer Order model
func (o *OrderDal) ToModel() (*order.Order, error) {
	cur, err := currency.ParseCurrency(o.Currency)
	if err != nil {
		return nil, err
	}

	status, err := order.ParseStatus(o.Status)
	if err != nil {
		return nil, err
	}

	mode, err := order.ParseDeliveryMode(o.DeliveryMode)
	if err != nil {
		return nil, err
	}

	return &order.Order{
		ID:                  o.Id,
		UserID:              o.UserId,
		Status:              status,
		DeliveryMode:        mode,
		DeliveryAddress:     o.DeliveryAddress,
		CityID:              o.CityId,
		DeliveryChargeCents: o.DeliveryChargeCents,
		TotalPriceCents:     o.TotalPriceCents,
		Currency:            cur,
		PaymentIntentID:     o.PaymentIntentId,
		Paid:                o.Paid,
		EstimatedDeliveryAt: o.EstimatedDeliveryAt,
		OrderedAt:           o.OrderedAt,
		UpdatedAt:           o.UpdatedAt,
		Items:               []orderitem.OrderItem{}, // Will be populated separately
	}, nil
}

// PostgresOrderRepository represents a Postgres order repository.
type PostgresOrderRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderRepository creates a new Postgres order repository.
func NewPostgresOrderRepository(conn postgres.GenericConn) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

var orderColumns = []string{
	"id",
	"user_id",
	"status",
	"delivery_mode",
	"delivery_address",
	"city_id",
	"delivery_charge_cents",
	"total_price_cents",
	"currency",
	"payment_intent_id",
	"paid",
	"estimated_delivery_at",
	"ordered_at",
	"updated_at",
}

func (r *PostgresOrderRepository) scanOne(row pgx.Row) (*order.Order, error) {
	var dal OrderDal
	err := row.Scan(
		&dal.Id,
		&dal.UserId,
		&dal.Status,
		&dal.DeliveryMode,
		&dal.DeliveryAddress,
		&dal.CityId,
		&dal.DeliveryChargeCents,
		&dal.TotalPriceCents,
		&dal.Currency,
		&dal.PaymentIntentId,
		&dal.Paid,
		&dal.EstimatedDeliveryAt,
		&dal.OrderedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}

		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	return dal.ToModel()
}

// Insert persists a new order row and returns it with its generated ID.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) (*order.Order, error) {
	query, args, err := r.sb.Insert("orders").
		Columns(
			"user_id",
			"status",
			"delivery_mode",
			"delivery_address",
			"city_id",
			"delivery_charge_cents",
			"total_price_cents",
			"currency",
			"payment_intent_id",
			"paid",
			"estimated_delivery_at",
			"ordered_at",
			"updated_at",
		).
		Values(
			o.UserID,
			o.Status.String(),
			o.DeliveryMode.String(),
			o.DeliveryAddress,
			o.CityID,
			o.DeliveryChargeCents,
			o.TotalPriceCents,
			o.Currency.String(),
			o.PaymentIntentID,
			o.Paid,
			o.EstimatedDeliveryAt,
			o.OrderedAt,
			o.UpdatedAt,
		).
		Suffix("RETURNING " + strings.Join(orderColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order insert query: %w", err)
	}

	inserted, err := r.scanOne(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	return inserted, nil
}

// Get retrieves a single order without its items.
func (r *PostgresOrderRepository) Get(ctx context.Context, orderID int64) (*order.Order, error) {
	query, args, err := r.sb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": orderID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order query: %w", err)
	}

	return r.scanOne(r.conn.QueryRow(ctx, query, args...))
}

// GetForUpdate retrieves an order holding an exclusive row lock, so that
// concurrent cancellations serialize on the order row.
func (r *PostgresOrderRepository) GetForUpdate(ctx context.Context, orderID int64) (*order.Order, error) {
	query, args, err := r.sb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": orderID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order lock query: %w", err)
	}

	return r.scanOne(r.conn.QueryRow(ctx, query, args...))
}

// UpdateStatus sets the order status.
func (r *PostgresOrderRepository) UpdateStatus(ctx context.Context, orderID int64, status order.Status) error {
	query, args, err := r.sb.Update("orders").
		Set("status", status.String()).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": orderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build status update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}

	return nil
}

// SetPayment records a payment update delivered out-of-band, keyed by order
// id.
func (r *PostgresOrderRepository) SetPayment(ctx context.Context, orderID int64, paymentIntentID string, paid bool) error {
	query, args, err := r.sb.Update("orders").
		Set("payment_intent_id", paymentIntentID).
		Set("paid", paid).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": orderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build payment update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}

	return nil
}

// Query retrieves orders based on filter criteria
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	builder := r.sb.Select(orderColumns...).
		From("orders").
		OrderBy("id")

	if len(filter.Ids) > 0 {
		builder = builder.Where(sq.Eq{"id": filter.Ids})
	}
	if len(filter.UserIds) > 0 {
		builder = builder.Where(sq.Eq{"user_id": filter.UserIds})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build orders query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		var dal OrderDal
		err := rows.Scan(
			&dal.Id,
			&dal.UserId,
			&dal.Status,
			&dal.DeliveryMode,
			&dal.DeliveryAddress,
			&dal.CityId,
			&dal.DeliveryChargeCents,
			&dal.TotalPriceCents,
			&dal.Currency,
			&dal.PaymentIntentId,
			&dal.Paid,
			&dal.EstimatedDeliveryAt,
			&dal.OrderedAt,
			&dal.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
		}
		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
