package entities

import "math/big"

const MaxTokenDecimals = 36

// ContractDescriptor describes an ERC-20 token enabled for transfers.
type ContractDescriptor struct {
	Chain           string
	Currency        string
	ContractAddress string
	Decimals        int
	GasLimit        uint64
}

// Scale returns 10^Decimals.
func (d ContractDescriptor) Scale() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Decimals)), nil)
}
