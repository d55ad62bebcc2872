package repositories

import (
	"context"

	"github.com/qqdog1/ws/internal/domain/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BlockRepository struct {
	db *gorm.DB
}

func NewBlockRepository(db *gorm.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

// GetLastBlock retrieves the tracked height of a chain, nil when untracked
func (r *BlockRepository) GetLastBlock(ctx context.Context, chain string) (*entities.Block, error) {
	var rows []entities.Block
	if err := r.db.WithContext(ctx).Where("chain = ?", chain).Limit(1).Find(&rows).Error; err != nil {
		return nil, storageError(err, "block.get")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// UpdateLastBlock upserts the height, keeping the larger value on conflict
func (r *BlockRepository) UpdateLastBlock(ctx context.Context, chain string, height uint64) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chain"}},
		DoUpdates: clause.Set{{
			Column: clause.Column{Name: "last_block"},
			Value:  gorm.Expr("GREATEST(block.last_block, EXCLUDED.last_block)"),
		}},
	}).Create(&entities.Block{Chain: chain, LastBlock: height}).Error
	return storageError(err, "block.update")
}
