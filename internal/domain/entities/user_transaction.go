package entities

// UserTransaction is the local record of a transfer sent from a custodial address.
// BlockNumber 0 means pending. ConfirmCount is maintained by the block scanner.
type UserTransaction struct {
	Hash         string `gorm:"primaryKey;size:66;column:hash" json:"hash"`
	FromAddress  string `gorm:"size:42;column:from_address;index:idx_user_transaction_from" json:"fromAddress"`
	ToAddress    string `gorm:"size:42;column:to_address;index:idx_user_transaction_to" json:"toAddress"`
	Currency     string `gorm:"size:20;column:currency" json:"currency"`
	Amount       string `gorm:"column:amount" json:"amount"`
	Gas          string `gorm:"column:gas" json:"gas"`
	BlockNumber  uint64 `gorm:"column:block_number" json:"blockNumber"`
	ConfirmCount int    `gorm:"column:confirm_count;default:0" json:"confirmCount"`
}

func (UserTransaction) TableName() string {
	return "user_transaction"
}
