package repositories

import (
	"context"
	"strings"

	"github.com/qqdog1/ws/internal/domain/entities"
	"gorm.io/gorm"
)

type UserTransactionRepository struct {
	db *gorm.DB
}

func NewUserTransactionRepository(db *gorm.DB) *UserTransactionRepository {
	return &UserTransactionRepository{db: db}
}

// ExistsByHash reports whether a record with the hash exists
func (r *UserTransactionRepository) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.UserTransaction{}).
		Where("hash = ?", strings.ToLower(hash)).Count(&count).Error
	if err != nil {
		return false, storageError(err, "user_transaction.exists")
	}
	return count > 0, nil
}

// FindByHash retrieves a record by hash, nil when absent
func (r *UserTransactionRepository) FindByHash(ctx context.Context, hash string) (*entities.UserTransaction, error) {
	var rows []entities.UserTransaction
	err := r.db.WithContext(ctx).Where("hash = ?", strings.ToLower(hash)).Limit(1).Find(&rows).Error
	if err != nil {
		return nil, storageError(err, "user_transaction.find")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Save inserts a record. A duplicate hash yields StorageConflict.
func (r *UserTransactionRepository) Save(ctx context.Context, tx *entities.UserTransaction) error {
	return storageError(r.db.WithContext(ctx).Create(tx).Error, "user_transaction.save")
}

// FindByFromAddress returns withdrawals of an address, newest first
func (r *UserTransactionRepository) FindByFromAddress(ctx context.Context, address string) ([]entities.UserTransaction, error) {
	return r.findBy(ctx, "from_address", address)
}

// FindByToAddress returns deposits of an address, newest first
func (r *UserTransactionRepository) FindByToAddress(ctx context.Context, address string) ([]entities.UserTransaction, error) {
	return r.findBy(ctx, "to_address", address)
}

func (r *UserTransactionRepository) findBy(ctx context.Context, column, address string) ([]entities.UserTransaction, error) {
	var rows []entities.UserTransaction
	err := r.db.WithContext(ctx).
		Where(column+" = ?", strings.ToLower(address)).
		Order("block_number DESC").Order("hash").
		Find(&rows).Error
	if err != nil {
		return nil, storageError(err, "user_transaction.findBy")
	}
	return rows, nil
}

// UpdateConfirmations records inclusion progress for a transaction
func (r *UserTransactionRepository) UpdateConfirmations(ctx context.Context, hash string, blockNumber uint64, confirmCount int) error {
	err := r.db.WithContext(ctx).Model(&entities.UserTransaction{}).
		Where("hash = ?", strings.ToLower(hash)).
		Updates(map[string]interface{}{
			"block_number":  blockNumber,
			"confirm_count": confirmCount,
		}).Error
	return storageError(err, "user_transaction.updateConfirmations")
}
