package ethereum

import (
	"bytes"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

type ERC20Type string

const (
	ERC20_Transfer  ERC20Type = "transfer"
	ERC20_BalanceOf ERC20Type = "balanceOf"
)

func (e ERC20Type) String() string {
	return string(e)
}

// ERC20Abi holds the subset of the ERC-20 interface used for custody.
const ERC20Abi = `[
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

const wordSize = 32

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ERC20Codec encodes and decodes ERC-20 call data.
type ERC20Codec struct {
	parsedABI abi.ABI
}

func NewERC20Codec() (*ERC20Codec, error) {
	parsed, err := abi.JSON(strings.NewReader(ERC20Abi))
	if err != nil {
		return nil, errors.Wrap(err, "parse erc20 abi")
	}
	return &ERC20Codec{parsedABI: parsed}, nil
}

// Selector returns the 4-byte method id.
func (c *ERC20Codec) Selector(method ERC20Type) []byte {
	return c.parsedABI.Methods[method.String()].ID
}

// EncodeBalanceOf builds balanceOf(owner) call data.
func (c *ERC20Codec) EncodeBalanceOf(owner common.Address) ([]byte, error) {
	return c.parsedABI.Pack(ERC20_BalanceOf.String(), owner)
}

// EncodeTransfer builds transfer(to, value) call data. value must fit uint256.
func (c *ERC20Codec) EncodeTransfer(to common.Address, value *big.Int) ([]byte, error) {
	if value == nil || value.Sign() < 0 || value.Cmp(maxUint256) > 0 {
		return nil, errors.New("transfer value out of uint256 range")
	}
	return c.parsedABI.Pack(ERC20_Transfer.String(), to, value)
}

// DecodeBalance reads a uint256 return value.
func (c *ERC20Codec) DecodeBalance(data []byte) (*big.Int, error) {
	if len(data) == 0 || len(data)%wordSize != 0 {
		return nil, errors.Errorf("return data length %d is not a positive multiple of %d", len(data), wordSize)
	}
	out, err := c.parsedABI.Unpack(ERC20_BalanceOf.String(), data)
	if err != nil {
		return nil, errors.Wrap(err, "unpack balanceOf")
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.New("balanceOf did not return uint256")
	}
	return balance, nil
}

// DecodeTransfer parses transfer call data back into its arguments.
func (c *ERC20Codec) DecodeTransfer(data []byte) (common.Address, *big.Int, error) {
	method := c.parsedABI.Methods[ERC20_Transfer.String()]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return common.Address{}, nil, errors.New("not a transfer call")
	}
	if (len(data)-4)%wordSize != 0 {
		return common.Address{}, nil, errors.Errorf("argument length %d is not a multiple of %d", len(data)-4, wordSize)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return common.Address{}, nil, errors.Wrap(err, "unpack transfer")
	}
	to, ok := args[0].(common.Address)
	if !ok {
		return common.Address{}, nil, errors.New("unexpected recipient type")
	}
	value, ok := args[1].(*big.Int)
	if !ok {
		return common.Address{}, nil, errors.New("unexpected value type")
	}
	return to, value, nil
}
