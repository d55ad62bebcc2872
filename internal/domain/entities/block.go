package entities

// Block tracks the highest block height observed per chain.
type Block struct {
	Chain     string `gorm:"primaryKey;size:20;column:chain" json:"chain"`
	LastBlock uint64 `gorm:"column:last_block" json:"lastBlock"`
}

func (Block) TableName() string {
	return "block"
}
