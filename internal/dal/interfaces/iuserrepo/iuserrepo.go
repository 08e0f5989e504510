package iuserrepo

import (
	"context"

	"github.com/shopcore/fulfillment/internal/service/models/user"
)

// IUserRepository reads user profiles for the address fallback.
type IUserRepository interface {
	Get(ctx context.Context, userID int64) (*user.User, error)
}
