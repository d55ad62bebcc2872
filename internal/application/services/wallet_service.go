package services

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/qqdog1/ws/internal/crypto"
	"github.com/qqdog1/ws/internal/domain/apperr"
	"github.com/qqdog1/ws/internal/domain/entities"
	"github.com/qqdog1/ws/internal/domain/repositories"
	"github.com/qqdog1/ws/internal/infrastructure/external/blockchain/ethereum"
	"go.uber.org/zap"
)

const (
	DefaultChain          = "ETH"
	DefaultNativeGasLimit = 21000

	persistTimeout = 15 * time.Second
)

// ChainReader answers read-only balance queries.
type ChainReader interface {
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// TransactionSender signs, submits and confirms a transaction.
type TransactionSender interface {
	BuildAndSend(ctx context.Context, req ethereum.SendRequest) (*ethereum.SendResult, error)
}

// AddressFactory creates new custodial key pairs.
type AddressFactory interface {
	NewAddress() (*entities.UserAddress, error)
}

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type WalletConfig struct {
	Chain          string
	NativeCurrency string
	NativeGasLimit uint64
}

type WalletServiceDeps struct {
	Addresses    repositories.UserAddressRepository
	Transactions repositories.UserTransactionRepository
	Blocks       repositories.BlockRepository
	Chain        ChainReader
	Sender       TransactionSender
	Registry     *ContractRegistry
	Keys         AddressFactory
	Codec        *ethereum.ERC20Codec
	Notifier     Notifier
	Logger       *zap.Logger
}

// WalletService creates custodial addresses, queries balances and sends
// native and token transfers, recording each sent transaction once.
type WalletService struct {
	cfg          WalletConfig
	addresses    repositories.UserAddressRepository
	transactions repositories.UserTransactionRepository
	blocks       repositories.BlockRepository
	chain        ChainReader
	sender       TransactionSender
	registry     *ContractRegistry
	keys         AddressFactory
	codec        *ethereum.ERC20Codec
	notifier     Notifier
	locks        *KeyedMutex
	logger       *zap.Logger
}

func NewWalletService(cfg WalletConfig, deps WalletServiceDeps) *WalletService {
	if cfg.Chain == "" {
		cfg.Chain = DefaultChain
	}
	if cfg.NativeCurrency == "" {
		cfg.NativeCurrency = cfg.Chain
	}
	if cfg.NativeGasLimit == 0 {
		cfg.NativeGasLimit = DefaultNativeGasLimit
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalletService{
		cfg:          cfg,
		addresses:    deps.Addresses,
		transactions: deps.Transactions,
		blocks:       deps.Blocks,
		chain:        deps.Chain,
		sender:       deps.Sender,
		registry:     deps.Registry,
		keys:         deps.Keys,
		codec:        deps.Codec,
		notifier:     deps.Notifier,
		locks:        NewKeyedMutex(),
		logger:       logger,
	}
}

// Chain returns the chain tag this service operates on.
func (s *WalletService) Chain() string {
	return s.cfg.Chain
}

// Currencies lists the token symbols enabled for transfers.
func (s *WalletService) Currencies() []string {
	return s.registry.Currencies(s.cfg.Chain)
}

// Decimals returns the decimals of currency, or of the native coin when
// currency is empty or names it.
func (s *WalletService) Decimals(currency string) (int, error) {
	if currency == "" || strings.EqualFold(currency, s.cfg.NativeCurrency) {
		return ethereum.EtherDecimals, nil
	}
	desc, err := s.registry.Lookup(s.cfg.Chain, currency)
	if err != nil {
		return 0, err
	}
	return desc.Decimals, nil
}

// CreateAddress generates a key pair and stores it as a new user address.
func (s *WalletService) CreateAddress(ctx context.Context) (*entities.UserAddress, error) {
	addr, err := s.keys.NewAddress()
	if err != nil {
		s.logger.Error("Failed to generate key pair", zap.Error(err))
		return nil, err
	}
	addr.Chain = s.cfg.Chain
	if err := s.addresses.Save(ctx, addr); err != nil {
		s.logger.Error("Failed to store address", zap.String("address", addr.Address), zap.Error(err))
		return nil, err
	}
	s.logger.Info("Address created", zap.Int("id", addr.ID), zap.String("address", addr.Address))
	return addr, nil
}

// GetAddress returns the address stored under id.
func (s *WalletService) GetAddress(ctx context.Context, id int) (*entities.UserAddress, error) {
	addr, err := s.addresses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if addr == nil {
		return nil, apperr.New(apperr.IdNotFound, "getAddress", "no address with id %d", id)
	}
	return addr, nil
}

func (s *WalletService) ListAddresses(ctx context.Context) ([]entities.UserAddress, error) {
	return s.addresses.List(ctx)
}

// GetNativeBalance returns the latest balance of address in wei.
func (s *WalletService) GetNativeBalance(ctx context.Context, address string) (*big.Int, error) {
	owner, err := parseAddress("getNativeBalance", address)
	if err != nil {
		return nil, err
	}
	return s.chain.BalanceAt(ctx, owner)
}

// GetTokenBalance returns the token balance of address in base units.
func (s *WalletService) GetTokenBalance(ctx context.Context, address, currency string) (*big.Int, error) {
	desc, err := s.registry.Lookup(s.cfg.Chain, currency)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress("getTokenBalance", address)
	if err != nil {
		return nil, err
	}
	data, err := s.codec.EncodeBalanceOf(owner)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, "getTokenBalance")
	}
	out, err := s.chain.CallContract(ctx, common.HexToAddress(desc.ContractAddress), data)
	if err != nil {
		return nil, err
	}
	balance, err := s.codec.DecodeBalance(out)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, "getTokenBalance")
	}
	return balance, nil
}

// TransferNative sends amount (in whole coins) from the user's address to `to`.
func (s *WalletService) TransferNative(ctx context.Context, userID int, to, amount string) (*entities.UserTransaction, error) {
	user, key, err := s.loadSigner(ctx, "transferNative", userID)
	if err != nil {
		return nil, err
	}
	recipient, err := parseAddress("transferNative", to)
	if err != nil {
		return nil, err
	}
	wei, err := ethereum.ConvertEtherToWei(amount)
	if err != nil {
		return nil, err
	}
	return s.transfer(ctx, user, key, transferPlan{
		request: ethereum.SendRequest{
			To:       recipient,
			Value:    wei,
			GasLimit: s.cfg.NativeGasLimit,
		},
		currency:  s.cfg.NativeCurrency,
		recipient: recipient,
		amount:    amount,
	})
}

// TransferToken sends amount of currency from the user's address to `to`.
// The stored record names the recipient, not the token contract.
func (s *WalletService) TransferToken(ctx context.Context, currency string, userID int, to, amount string) (*entities.UserTransaction, error) {
	desc, err := s.registry.Lookup(s.cfg.Chain, currency)
	if err != nil {
		return nil, err
	}
	user, key, err := s.loadSigner(ctx, "transferToken", userID)
	if err != nil {
		return nil, err
	}
	recipient, err := parseAddress("transferToken", to)
	if err != nil {
		return nil, err
	}
	raw, err := ethereum.ConvertTokenToBigInt(amount, desc.Decimals)
	if err != nil {
		return nil, err
	}
	data, err := s.codec.EncodeTransfer(recipient, raw)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InvalidAmount, "transferToken")
	}
	return s.transfer(ctx, user, key, transferPlan{
		request: ethereum.SendRequest{
			To:       common.HexToAddress(desc.ContractAddress),
			Value:    new(big.Int),
			Data:     data,
			GasLimit: desc.GasLimit,
		},
		currency:  desc.Currency,
		recipient: recipient,
		amount:    amount,
	})
}

type transferPlan struct {
	request   ethereum.SendRequest
	currency  string
	recipient common.Address
	amount    string
}

// transfer runs one send at a time per source address so pending nonces do not collide.
func (s *WalletService) transfer(ctx context.Context, user *entities.UserAddress, key *ecdsa.PrivateKey, plan transferPlan) (*entities.UserTransaction, error) {
	unlock, err := s.locks.Lock(ctx, user.Address)
	if err != nil {
		s.logger.Warn("Gave up waiting for address lock", zap.Int("user_id", user.ID), zap.String("from", user.Address), zap.Error(err))
		return nil, apperr.Wrap(err, apperr.Internal, "transfer")
	}
	defer unlock()

	log := s.logger.With(
		zap.Int("user_id", user.ID),
		zap.String("from", user.Address),
		zap.String("to", strings.ToLower(plan.recipient.Hex())),
		zap.String("currency", plan.currency),
		zap.String("amount", plan.amount),
	)

	plan.request.PrivateKey = key
	res, sendErr := s.sender.BuildAndSend(ctx, plan.request)
	switch {
	case sendErr == nil:
	case apperr.Is(sendErr, apperr.RevertedExecution) && res != nil && res.Receipt != nil:
		log.Warn("Transfer reverted", zap.String("tx_hash", res.Hash.Hex()))
		s.alert(ctx, fmt.Sprintf("[%s] %s transfer reverted: %s", s.cfg.Chain, plan.currency, res.Hash.Hex()))
	case apperr.Is(sendErr, apperr.ReceiptTimeout) && res != nil:
		log.Warn("Transfer receipt timed out", zap.String("tx_hash", res.Hash.Hex()))
		s.alert(ctx, fmt.Sprintf("[%s] %s transfer pending without receipt: %s", s.cfg.Chain, plan.currency, res.Hash.Hex()))
		return nil, sendErr
	default:
		log.Error("Transfer failed", zap.Error(sendErr))
		return nil, sendErr
	}

	record := &entities.UserTransaction{
		Hash:        strings.ToLower(res.Hash.Hex()),
		FromAddress: user.Address,
		ToAddress:   strings.ToLower(plan.recipient.Hex()),
		Currency:    plan.currency,
		Amount:      plan.amount,
		Gas:         strconv.FormatUint(res.Receipt.GasUsed, 10),
	}
	if res.Receipt.BlockNumber != nil {
		record.BlockNumber = res.Receipt.BlockNumber.Uint64()
	}

	// The transaction is on chain; finish recording it even if the caller went away.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	saved, err := s.SaveUserTransaction(saveCtx, record)
	if err != nil {
		log.Error("Failed to record transaction", zap.String("tx_hash", record.Hash), zap.Error(err))
		return nil, err
	}

	log.Info("Transfer recorded", zap.String("tx_hash", saved.Hash), zap.Uint64("block", saved.BlockNumber))
	return saved, sendErr
}

// SaveUserTransaction inserts tx unless a record with the same hash exists,
// in which case the stored record is returned.
func (s *WalletService) SaveUserTransaction(ctx context.Context, tx *entities.UserTransaction) (*entities.UserTransaction, error) {
	existing, err := s.transactions.FindByHash(ctx, tx.Hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	err = s.transactions.Save(ctx, tx)
	if err == nil {
		return tx, nil
	}
	if !apperr.Is(err, apperr.StorageConflict) {
		return nil, err
	}
	winner, findErr := s.transactions.FindByHash(ctx, tx.Hash)
	if findErr != nil {
		return nil, findErr
	}
	if winner == nil {
		return nil, err
	}
	return winner, nil
}

// ListWithdrawals returns transfers sent from the user's address, newest first.
func (s *WalletService) ListWithdrawals(ctx context.Context, userID int) ([]entities.UserTransaction, error) {
	user, err := s.GetAddress(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.transactions.FindByFromAddress(ctx, user.Address)
}

// ListDeposits returns recorded transfers received by the user's address, newest first.
func (s *WalletService) ListDeposits(ctx context.Context, userID int) ([]entities.UserTransaction, error) {
	user, err := s.GetAddress(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.transactions.FindByToAddress(ctx, user.Address)
}

func (s *WalletService) GetTransaction(ctx context.Context, hash string) (*entities.UserTransaction, error) {
	tx, err := s.transactions.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, apperr.New(apperr.IdNotFound, "getTransaction", "no transaction %s", hash)
	}
	return tx, nil
}

// GetLastBlock returns the last block height observed for chain.
func (s *WalletService) GetLastBlock(ctx context.Context, chain string) (*entities.Block, error) {
	block, err := s.blocks.GetLastBlock(ctx, strings.ToUpper(chain))
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, apperr.New(apperr.IdNotFound, "getLastBlock", "chain %s is not tracked", chain)
	}
	return block, nil
}

func (s *WalletService) loadSigner(ctx context.Context, op string, userID int) (*entities.UserAddress, *ecdsa.PrivateKey, error) {
	user, err := s.GetAddress(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	key, err := crypto.PrivateKeyFromHex(user.PrivateKey)
	if err != nil {
		return nil, nil, apperr.Wrap(err, apperr.Internal, op)
	}
	return user, key, nil
}

func (s *WalletService) alert(ctx context.Context, message string) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, message); err != nil {
		s.logger.Warn("Failed to send alert", zap.Error(err))
	}
}

func parseAddress(op, address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, apperr.New(apperr.InvalidAddress, op, "invalid address %q", address)
	}
	return common.HexToAddress(address), nil
}
