package repositories

import (
	"context"

	"github.com/qqdog1/ws/internal/domain/entities"
)

// BlockRepository tracks the last observed block per chain.
type BlockRepository interface {
	GetLastBlock(ctx context.Context, chain string) (*entities.Block, error)
	// UpdateLastBlock never lowers the stored height.
	UpdateLastBlock(ctx context.Context, chain string, height uint64) error
}
