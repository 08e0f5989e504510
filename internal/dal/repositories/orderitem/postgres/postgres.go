package postgresrepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopcore/fulfillment/internal/dal/postgres"
	"github.com/shopcore/fulfillment/internal/service/models/currency"
	"github.com/shopcore/fulfillment/internal/service/models/orderitem"
)

// OrderItemDal represents order item data access layer model.
type OrderItemDal struct {
	Id              int64     `db:"id"`
	OrderId         int64     `db:"order_id"`
	VariantId       int64     `db:"variant_id"`
	Quantity        int       `db:"quantity"`
	UnitPriceCents  int64     `db:"unit_price_cents"`
	TotalPriceCents int64     `db:"total_price_cents"`
	Currency        string    `db:"currency"`
	Backordered     bool      `db:"backordered"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// ToModel converts OrderItemDal to service layer OrderItem model.
func (oi *OrderItemDal) ToModel() (*orderitem.OrderItem, error) {
	cur, err := currency.ParseCurrency(oi.Currency)
	if err != nil {
		return nil, err
	}

	return &orderitem.OrderItem{
		ID:              oi.Id,
		OrderID:         oi.OrderId,
		VariantID:       oi.VariantId,
		Quantity:        oi.Quantity,
		UnitPriceCents:  oi.UnitPriceCents,
		TotalPriceCents: oi.TotalPriceCents,
		Currency:        cur,
		Backordered:     oi.Backordered,
		CreatedAt:       oi.CreatedAt,
		UpdatedAt:       oi.UpdatedAt,
	}, nil
}

// PostgresOrderItemRepository represents a Postgres order item repository.
type PostgresOrderItemRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderItemRepository creates a new Postgres order item repository.
func NewPostgresOrderItemRepository(conn postgres.GenericConn) *PostgresOrderItemRepository {
	return &PostgresOrderItemRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

var orderItemColumns = []string{
	"id",
	"order_id",
	"variant_id",
	"quantity",
	"unit_price_cents",
	"total_price_cents",
	"currency",
	"backordered",
	"created_at",
	"updated_at",
}

// BulkInsert inserts multiple order items and returns them with generated
// IDs, preserving input order.
func (r *PostgresOrderItemRepository) BulkInsert(
	ctx context.Context,
	orderItems []orderitem.OrderItem,
) ([]orderitem.OrderItem, error) {
	if len(orderItems) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	builder := r.sb.Insert("order_items").
		Columns(
			"order_id",
			"variant_id",
			"quantity",
			"unit_price_cents",
			"total_price_cents",
			"currency",
			"backordered",
			"created_at",
			"updated_at",
		)

	for _, oi := range orderItems {
		builder = builder.Values(
			oi.OrderID,
			oi.VariantID,
			oi.Quantity,
			oi.UnitPriceCents,
			oi.TotalPriceCents,
			oi.Currency.String(),
			oi.Backordered,
			oi.CreatedAt,
			oi.UpdatedAt,
		)
	}

	query, args, err := builder.
		Suffix("RETURNING " + strings.Join(orderItemColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order items insert query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert order items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// ListByOrders retrieves all items belonging to the given orders.
func (r *PostgresOrderItemRepository) ListByOrders(ctx context.Context, orderIDs []int64) ([]orderitem.OrderItem, error) {
	if len(orderIDs) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	query, args, err := r.sb.Select(orderItemColumns...).
		From("order_items").
		Where(sq.Eq{"order_id": orderIDs}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order items query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// ListBackorderedForUpdate retrieves the back-ordered items for a variant,
// oldest first, locking them for the enclosing transaction. Ordering is by
// item creation time: the earliest request is served first regardless of
// quantity or order value. Items of cancelled orders are excluded; their
// stock was never reserved and never will be.
func (r *PostgresOrderItemRepository) ListBackorderedForUpdate(ctx context.Context, variantID int64) ([]orderitem.OrderItem, error) {
	cols := make([]string, len(orderItemColumns))
	for i, c := range orderItemColumns {
		cols[i] = "order_items." + c
	}

	query, args, err := r.sb.Select(cols...).
		From("order_items").
		Join("orders ON orders.id = order_items.order_id").
		Where(sq.Eq{"order_items.variant_id": variantID, "order_items.backordered": true}).
		Where(sq.NotEq{"orders.status": "cancelled"}).
		OrderBy("order_items.created_at", "order_items.id").
		Suffix("FOR UPDATE OF order_items").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build backordered items query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backordered items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// ClearBackordered clears the back-ordered flag on the given items.
func (r *PostgresOrderItemRepository) ClearBackordered(ctx context.Context, itemIDs []int64) error {
	if len(itemIDs) == 0 {
		return nil
	}

	query, args, err := r.sb.Update("order_items").
		Set("backordered", false).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": itemIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build clear backordered query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear backordered flags: %w", err)
	}

	return nil
}

func scanItems(rows pgx.Rows) ([]orderitem.OrderItem, error) {
	var result []orderitem.OrderItem
	for rows.Next() {
		var dal OrderItemDal
		err := rows.Scan(
			&dal.Id,
			&dal.OrderId,
			&dal.VariantId,
			&dal.Quantity,
			&dal.UnitPriceCents,
			&dal.TotalPriceCents,
			&dal.Currency,
			&dal.Backordered,
			&dal.CreatedAt,
			&dal.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order item dal to model: %w", err)
		}
		result = append(result, *model)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
