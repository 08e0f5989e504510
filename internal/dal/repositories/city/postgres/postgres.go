package postgresrepo

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopcore/fulfillment/internal/dal/postgres"
	"github.com/shopcore/fulfillment/internal/service/models/city"
)

// PostgresCityRepository represents a Postgres city repository.
type PostgresCityRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresCityRepository creates a new Postgres city repository.
func NewPostgresCityRepository(conn postgres.GenericConn) *PostgresCityRepository {
	return &PostgresCityRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// GetByName retrieves a city by its unique name.
func (r *PostgresCityRepository) GetByName(ctx context.Context, name string) (*city.City, error) {
	query, args, err := r.sb.Select("id", "name", "is_main").
		From("cities").
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build city query: %w", err)
	}

	var c city.City
	err = r.conn.QueryRow(ctx, query, args...).Scan(&c.ID, &c.Name, &c.IsMain)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, city.ErrCityNotFound
		}

		return nil, fmt.Errorf("failed to scan city: %w", err)
	}

	return &c, nil
}

// Insert creates a new city. Races on the unique name are resolved in favor
// of the existing row.
func (r *PostgresCityRepository) Insert(ctx context.Context, c city.City) (*city.City, error) {
	query, args, err := r.sb.Insert("cities").
		Columns("name", "is_main").
		Values(c.Name, c.IsMain).
		Suffix("ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id, name, is_main").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build city insert query: %w", err)
	}

	var inserted city.City
	err = r.conn.QueryRow(ctx, query, args...).Scan(&inserted.ID, &inserted.Name, &inserted.IsMain)
	if err != nil {
		return nil, fmt.Errorf("failed to insert city: %w", err)
	}

	return &inserted, nil
}
