package repositories

import (
	"context"
	"strings"

	"github.com/qqdog1/ws/internal/domain/apperr"
	"github.com/qqdog1/ws/internal/domain/entities"
	"gorm.io/gorm"
)

// KeyCipher seals private keys before they reach the pkey column.
type KeyCipher interface {
	Seal(plain string) (string, error)
	Open(stored string) (string, error)
}

type UserAddressRepository struct {
	db     *gorm.DB
	cipher KeyCipher
}

// NewUserAddressRepository stores keys as plain hex when cipher is nil.
func NewUserAddressRepository(db *gorm.DB, cipher KeyCipher) *UserAddressRepository {
	return &UserAddressRepository{db: db, cipher: cipher}
}

// GetByID retrieves an address by its id
func (r *UserAddressRepository) GetByID(ctx context.Context, id int) (*entities.UserAddress, error) {
	var rows []entities.UserAddress
	if err := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, storageError(err, "user_address.get")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return r.open(&rows[0])
}

// GetByAddress retrieves an address by chain and hex address
func (r *UserAddressRepository) GetByAddress(ctx context.Context, chain, address string) (*entities.UserAddress, error) {
	var rows []entities.UserAddress
	err := r.db.WithContext(ctx).
		Where("chain = ? AND address = ?", chain, strings.ToLower(address)).
		Limit(1).Find(&rows).Error
	if err != nil {
		return nil, storageError(err, "user_address.getByAddress")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return r.open(&rows[0])
}

// Save inserts a new address and assigns its id
func (r *UserAddressRepository) Save(ctx context.Context, address *entities.UserAddress) error {
	row := *address
	row.Address = strings.ToLower(row.Address)
	if r.cipher != nil {
		sealed, err := r.cipher.Seal(row.PrivateKey)
		if err != nil {
			return apperr.Wrap(err, apperr.Internal, "user_address.seal")
		}
		row.PrivateKey = sealed
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return storageError(err, "user_address.save")
	}
	address.ID = row.ID
	address.Address = row.Address
	return nil
}

// List returns every address ordered by id
func (r *UserAddressRepository) List(ctx context.Context) ([]entities.UserAddress, error) {
	var rows []entities.UserAddress
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, storageError(err, "user_address.list")
	}
	for i := range rows {
		if _, err := r.open(&rows[i]); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (r *UserAddressRepository) open(row *entities.UserAddress) (*entities.UserAddress, error) {
	if r.cipher == nil {
		return row, nil
	}
	plain, err := r.cipher.Open(row.PrivateKey)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, "user_address.open")
	}
	row.PrivateKey = plain
	return row, nil
}
