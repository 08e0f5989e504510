package icityrepo

import (
	"context"

	"github.com/shopcore/fulfillment/internal/service/models/city"
)

// ICityRepository is an interface for city postgres repository.
type ICityRepository interface {
	GetByName(ctx context.Context, name string) (*city.City, error)
	Insert(ctx context.Context, c city.City) (*city.City, error)
}
