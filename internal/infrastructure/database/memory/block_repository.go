package memory

import (
	"context"
	"sync"

	"github.com/qqdog1/ws/internal/domain/entities"
)

type BlockRepository struct {
	locker sync.RWMutex
	blocks map[string]uint64
}

// NewBlockRepository returns an empty block height store
func NewBlockRepository() *BlockRepository {
	return &BlockRepository{blocks: make(map[string]uint64)}
}

func (r *BlockRepository) GetLastBlock(ctx context.Context, chain string) (*entities.Block, error) {
	r.locker.RLock()
	defer r.locker.RUnlock()

	height, ok := r.blocks[chain]
	if !ok {
		return nil, nil
	}
	return &entities.Block{Chain: chain, LastBlock: height}, nil
}

func (r *BlockRepository) UpdateLastBlock(ctx context.Context, chain string, height uint64) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	if current, ok := r.blocks[chain]; !ok || height > current {
		r.blocks[chain] = height
	}
	return nil
}
