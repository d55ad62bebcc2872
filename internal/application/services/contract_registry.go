package services

import (
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/qqdog1/ws/internal/domain/apperr"
	"github.com/qqdog1/ws/internal/domain/entities"
)

const DefaultTokenGasLimit uint64 = 65000

type contractKey struct {
	chain    string
	currency string
}

// ContractRegistry maps (chain, currency) to the token contract enabled for transfers.
// It is built once at startup and only read afterwards.
type ContractRegistry struct {
	contracts map[contractKey]entities.ContractDescriptor
}

// NewContractRegistry validates descriptors and fills in the default gas limit.
func NewContractRegistry(descriptors []entities.ContractDescriptor) (*ContractRegistry, error) {
	r := &ContractRegistry{contracts: make(map[contractKey]entities.ContractDescriptor, len(descriptors))}
	for _, d := range descriptors {
		if d.Chain == "" || d.Currency == "" {
			return nil, apperr.New(apperr.Internal, "contractRegistry", "contract %q is missing chain or currency", d.ContractAddress)
		}
		if !common.IsHexAddress(d.ContractAddress) {
			return nil, apperr.New(apperr.Internal, "contractRegistry", "%s/%s: invalid contract address %q", d.Chain, d.Currency, d.ContractAddress)
		}
		if d.Decimals < 0 || d.Decimals > entities.MaxTokenDecimals {
			return nil, apperr.New(apperr.Internal, "contractRegistry", "%s/%s: decimals %d out of range", d.Chain, d.Currency, d.Decimals)
		}
		if d.GasLimit == 0 {
			d.GasLimit = DefaultTokenGasLimit
		}
		d.Chain = strings.ToUpper(d.Chain)
		d.Currency = strings.ToUpper(d.Currency)
		d.ContractAddress = strings.ToLower(d.ContractAddress)

		key := contractKey{chain: d.Chain, currency: d.Currency}
		if _, dup := r.contracts[key]; dup {
			return nil, apperr.New(apperr.Internal, "contractRegistry", "%s/%s configured twice", d.Chain, d.Currency)
		}
		r.contracts[key] = d
	}
	return r, nil
}

// Lookup returns the descriptor for a currency, matched case-insensitively.
func (r *ContractRegistry) Lookup(chain, currency string) (entities.ContractDescriptor, error) {
	d, ok := r.contracts[contractKey{chain: strings.ToUpper(chain), currency: strings.ToUpper(currency)}]
	if !ok {
		return entities.ContractDescriptor{}, apperr.New(apperr.UnknownCurrency, "lookupContract", "no contract for %s on %s", currency, chain)
	}
	return d, nil
}

// Currencies lists the configured token symbols of a chain in sorted order.
func (r *ContractRegistry) Currencies(chain string) []string {
	chain = strings.ToUpper(chain)
	out := make([]string, 0)
	for k := range r.contracts {
		if k.chain == chain {
			out = append(out, k.currency)
		}
	}
	sort.Strings(out)
	return out
}
