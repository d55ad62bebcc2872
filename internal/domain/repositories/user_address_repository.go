package repositories

import (
	"context"

	"github.com/qqdog1/ws/internal/domain/entities"
)

// UserAddressRepository persists custodial addresses.
// Lookups return nil, nil when no row matches.
type UserAddressRepository interface {
	GetByID(ctx context.Context, id int) (*entities.UserAddress, error)
	GetByAddress(ctx context.Context, chain, address string) (*entities.UserAddress, error)
	Save(ctx context.Context, address *entities.UserAddress) error
	List(ctx context.Context) ([]entities.UserAddress, error)
}
