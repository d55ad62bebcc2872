package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/qqdog1/ws/internal/domain/apperr"
	"github.com/qqdog1/ws/internal/domain/entities"
)

type UserTransactionRepository struct {
	locker sync.RWMutex
	txs    map[string]entities.UserTransaction
}

// NewUserTransactionRepository returns an empty transaction store
func NewUserTransactionRepository() *UserTransactionRepository {
	return &UserTransactionRepository{txs: make(map[string]entities.UserTransaction)}
}

func (r *UserTransactionRepository) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	r.locker.RLock()
	defer r.locker.RUnlock()

	_, ok := r.txs[strings.ToLower(hash)]
	return ok, nil
}

func (r *UserTransactionRepository) FindByHash(ctx context.Context, hash string) (*entities.UserTransaction, error) {
	r.locker.RLock()
	defer r.locker.RUnlock()

	tx, ok := r.txs[strings.ToLower(hash)]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

func (r *UserTransactionRepository) Save(ctx context.Context, tx *entities.UserTransaction) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	key := strings.ToLower(tx.Hash)
	if _, ok := r.txs[key]; ok {
		return apperr.New(apperr.StorageConflict, "user_transaction.save", "hash %s already stored", key)
	}
	r.txs[key] = *tx
	return nil
}

func (r *UserTransactionRepository) FindByFromAddress(ctx context.Context, address string) ([]entities.UserTransaction, error) {
	return r.filter(func(tx entities.UserTransaction) bool {
		return strings.EqualFold(tx.FromAddress, address)
	}), nil
}

func (r *UserTransactionRepository) FindByToAddress(ctx context.Context, address string) ([]entities.UserTransaction, error) {
	return r.filter(func(tx entities.UserTransaction) bool {
		return strings.EqualFold(tx.ToAddress, address)
	}), nil
}

func (r *UserTransactionRepository) UpdateConfirmations(ctx context.Context, hash string, blockNumber uint64, confirmCount int) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	key := strings.ToLower(hash)
	tx, ok := r.txs[key]
	if !ok {
		return nil
	}
	tx.BlockNumber = blockNumber
	tx.ConfirmCount = confirmCount
	r.txs[key] = tx
	return nil
}

func (r *UserTransactionRepository) filter(match func(entities.UserTransaction) bool) []entities.UserTransaction {
	r.locker.RLock()
	defer r.locker.RUnlock()

	result := make([]entities.UserTransaction, 0)
	for _, tx := range r.txs {
		if match(tx) {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].BlockNumber != result[j].BlockNumber {
			return result[i].BlockNumber > result[j].BlockNumber
		}
		return result[i].Hash < result[j].Hash
	})
	return result
}
