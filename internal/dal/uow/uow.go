package uow

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopcore/fulfillment/internal/dal/interfaces/icityrepo"
	"github.com/shopcore/fulfillment/internal/dal/interfaces/iorderitemrepo"
	"github.com/shopcore/fulfillment/internal/dal/interfaces/iorderrepo"
	"github.com/shopcore/fulfillment/internal/dal/interfaces/ioutboxrepo"
	"github.com/shopcore/fulfillment/internal/dal/interfaces/iuserrepo"
	"github.com/shopcore/fulfillment/internal/dal/interfaces/ivariantrepo"
	"github.com/shopcore/fulfillment/internal/dal/postgres"
	cityrepo "github.com/shopcore/fulfillment/internal/dal/repositories/city/postgres"
	orderrepo "github.com/shopcore/fulfillment/internal/dal/repositories/order/postgres"
	orderitemrepo "github.com/shopcore/fulfillment/internal/dal/repositories/orderitem/postgres"
	outboxrepo "github.com/shopcore/fulfillment/internal/dal/repositories/outbox/postgres"
	userrepo "github.com/shopcore/fulfillment/internal/dal/repositories/user/postgres"
	variantrepo "github.com/shopcore/fulfillment/internal/dal/repositories/variant/postgres"
)

// unitOfWork scopes all repositories to one connection. Before Begin the
// repositories run on the pool; after Begin they share a single pgx
// transaction, so every read-modify-write between Begin and Commit holds
// its row locks until the transaction ends.
type unitOfWork struct {
	pool          *pgxpool.Pool
	tx            pgx.Tx
	orderRepo     iorderrepo.IOrderRepository
	orderItemRepo iorderitemrepo.IOrderItemRepository
	variantRepo   ivariantrepo.IVariantRepository
	cityRepo      icityrepo.ICityRepository
	userRepo      iuserrepo.IUserRepository
	outboxRepo    ioutboxrepo.IOutboxRepository
}

func NewUnitOfWork(client *postgres.Client) *unitOfWork {
	pool := client.Pool()
	u := &unitOfWork{pool: pool}
	u.bindRepos(pool)

	return u
}

func (u *unitOfWork) bindRepos(conn postgres.GenericConn) {
	u.orderRepo = orderrepo.NewPostgresOrderRepository(conn)
	u.orderItemRepo = orderitemrepo.NewPostgresOrderItemRepository(conn)
	u.variantRepo = variantrepo.NewPostgresVariantRepository(conn)
	u.cityRepo = cityrepo.NewPostgresCityRepository(conn)
	u.userRepo = userrepo.NewPostgresUserRepository(conn)
	u.outboxRepo = outboxrepo.NewPostgresOutboxRepository(conn)
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return err
	}

	u.tx = tx
	u.bindRepos(tx)

	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Commit(ctx)
}

// Rollback aborts the transaction if it is still open. Safe to defer after a
// successful Commit.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Rollback(ctx)
}

func (u *unitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *unitOfWork) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return u.orderItemRepo
}

func (u *unitOfWork) VariantRepository() ivariantrepo.IVariantRepository {
	return u.variantRepo
}

func (u *unitOfWork) CityRepository() icityrepo.ICityRepository {
	return u.cityRepo
}

func (u *unitOfWork) UserRepository() iuserrepo.IUserRepository {
	return u.userRepo
}

func (u *unitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}
