package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/qqdog1/ws/internal/domain/apperr"
	"github.com/qqdog1/ws/internal/domain/entities"
)

type UserAddressRepository struct {
	locker sync.RWMutex
	nextID int
	byID   map[int]entities.UserAddress
}

// NewUserAddressRepository returns an empty address store
func NewUserAddressRepository() *UserAddressRepository {
	return &UserAddressRepository{
		nextID: 1,
		byID:   make(map[int]entities.UserAddress),
	}
}

func (r *UserAddressRepository) GetByID(ctx context.Context, id int) (*entities.UserAddress, error) {
	r.locker.RLock()
	defer r.locker.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *UserAddressRepository) GetByAddress(ctx context.Context, chain, address string) (*entities.UserAddress, error) {
	r.locker.RLock()
	defer r.locker.RUnlock()

	address = strings.ToLower(address)
	for _, a := range r.byID {
		if a.Chain == chain && a.Address == address {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (r *UserAddressRepository) Save(ctx context.Context, address *entities.UserAddress) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	row := *address
	row.Address = strings.ToLower(row.Address)
	for _, a := range r.byID {
		if a.Chain == row.Chain && a.Address == row.Address {
			return apperr.New(apperr.StorageConflict, "user_address.save", "address %s already stored", row.Address)
		}
	}
	row.ID = r.nextID
	r.nextID++
	r.byID[row.ID] = row

	address.ID = row.ID
	address.Address = row.Address
	return nil
}

func (r *UserAddressRepository) List(ctx context.Context) ([]entities.UserAddress, error) {
	r.locker.RLock()
	defer r.locker.RUnlock()

	result := make([]entities.UserAddress, 0, len(r.byID))
	for id := 1; id < r.nextID; id++ {
		if a, ok := r.byID[id]; ok {
			result = append(result, a)
		}
	}
	return result, nil
}
