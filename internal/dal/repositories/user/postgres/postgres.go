package postgresrepo

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopcore/fulfillment/internal/dal/postgres"
	"github.com/shopcore/fulfillment/internal/service/models/user"
)

// PostgresUserRepository reads user profiles for the address fallback. User
// management itself lives outside this service.
type PostgresUserRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresUserRepository creates a new Postgres user repository.
func NewPostgresUserRepository(conn postgres.GenericConn) *PostgresUserRepository {
	return &PostgresUserRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Get retrieves a user profile.
func (r *PostgresUserRepository) Get(ctx context.Context, userID int64) (*user.User, error) {
	query, args, err := r.sb.Select("id", "name", "address", "city_name").
		From("users").
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	var u user.User
	err = r.conn.QueryRow(ctx, query, args...).Scan(&u.ID, &u.Name, &u.Address, &u.CityName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}

		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	return &u, nil
}
