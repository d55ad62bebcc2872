package repositories

import (
	"context"

	"github.com/qqdog1/ws/internal/domain/entities"
)

// UserTransactionRepository persists transaction records keyed by hash.
// Save fails with a StorageConflict error when the hash already exists.
// Address queries are ordered by block number, newest first.
type UserTransactionRepository interface {
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	FindByHash(ctx context.Context, hash string) (*entities.UserTransaction, error)
	Save(ctx context.Context, tx *entities.UserTransaction) error
	FindByFromAddress(ctx context.Context, address string) ([]entities.UserTransaction, error)
	FindByToAddress(ctx context.Context, address string) ([]entities.UserTransaction, error)
	UpdateConfirmations(ctx context.Context, hash string, blockNumber uint64, confirmCount int) error
}
