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
	"github.com/shopcore/fulfillment/internal/service/models/variant"
)

// VariantDal represents product variant data access layer model.
type VariantDal struct {
	Id         int64     `db:"id"`
	Sku        string    `db:"sku"`
	Title      string    `db:"title"`
	PriceCents int64     `db:"price_cents"`
	Currency   string    `db:"currency"`
	Stock      int       `db:"stock"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// ToModel converts VariantDal to service layer ProductVariant model.
func (v *VariantDal) ToModel() (*variant.ProductVariant, error) {
	cur, err := currency.ParseCurrency(v.Currency)
	if err != nil {
		return nil, err
	}

	return &variant.ProductVariant{
		ID:         v.Id,
		SKU:        v.Sku,
		Title:      v.Title,
		PriceCents: v.PriceCents,
		Currency:   cur,
		Stock:      v.Stock,
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}, nil
}

// PostgresVariantRepository is the stock ledger: the only writer of variant
// stock counts.
type PostgresVariantRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresVariantRepository creates a new Postgres variant repository.
// Pass a transaction-bound connection for any stock mutation.
func NewPostgresVariantRepository(conn postgres.GenericConn) *PostgresVariantRepository {
	return &PostgresVariantRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

var variantColumns = []string{
	"id",
	"sku",
	"title",
	"price_cents",
	"currency",
	"stock",
	"created_at",
	"updated_at",
}

func (r *PostgresVariantRepository) scanOne(row pgx.Row) (*variant.ProductVariant, error) {
	var dal VariantDal
	err := row.Scan(
		&dal.Id,
		&dal.Sku,
		&dal.Title,
		&dal.PriceCents,
		&dal.Currency,
		&dal.Stock,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, variant.ErrVariantNotFound
		}

		return nil, fmt.Errorf("failed to scan variant: %w", err)
	}

	return dal.ToModel()
}

// Get retrieves a variant without locking it. Used by the order builder for
// pricing and back-order determination.
func (r *PostgresVariantRepository) Get(ctx context.Context, variantID int64) (*variant.ProductVariant, error) {
	query, args, err := r.sb.Select(variantColumns...).
		From("product_variants").
		Where(sq.Eq{"id": variantID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build variant query: %w", err)
	}

	return r.scanOne(r.conn.QueryRow(ctx, query, args...))
}

// GetForUpdate retrieves a variant holding an exclusive row lock for the
// rest of the enclosing transaction. Must run inside a transaction.
func (r *PostgresVariantRepository) GetForUpdate(ctx context.Context, variantID int64) (*variant.ProductVariant, error) {
	query, args, err := r.sb.Select(variantColumns...).
		From("product_variants").
		Where(sq.Eq{"id": variantID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build variant lock query: %w", err)
	}

	return r.scanOne(r.conn.QueryRow(ctx, query, args...))
}

// AdjustStock applies a signed delta to the variant's stock under an
// exclusive row lock and returns the updated record. Fails with
// variant.ErrOutOfStock if the result would be negative. Must run inside a
// transaction; the failure aborts it.
func (r *PostgresVariantRepository) AdjustStock(ctx context.Context, variantID int64, delta int) (*variant.ProductVariant, error) {
	current, err := r.GetForUpdate(ctx, variantID)
	if err != nil {
		return nil, err
	}

	newStock := current.Stock + delta
	if newStock < 0 {
		return nil, fmt.Errorf("variant %d: stock %d, delta %d: %w",
			variantID, current.Stock, delta, variant.ErrOutOfStock)
	}

	query, args, err := r.sb.Update("product_variants").
		Set("stock", newStock).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": variantID}).
		Suffix("RETURNING " + strings.Join(variantColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build stock update query: %w", err)
	}

	return r.scanOne(r.conn.QueryRow(ctx, query, args...))
}
