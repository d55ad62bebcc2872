package entities

// UserAddress is a custodial address owned by one user.
// PrivateKey holds the secp256k1 scalar as lowercase hex without 0x and is never serialized.
type UserAddress struct {
	ID         int    `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Chain      string `gorm:"size:20;not null;column:chain;uniqueIndex:idx_user_address_chain_address" json:"chain"`
	Address    string `gorm:"size:42;not null;column:address;uniqueIndex:idx_user_address_chain_address" json:"address"`
	PrivateKey string `gorm:"type:text;not null;column:pkey" json:"-"`
}

func (UserAddress) TableName() string {
	return "user_address"
}
