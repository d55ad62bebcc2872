package ethereum

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/qqdog1/ws/internal/domain/apperr"
	"github.com/qqdog1/ws/pkg/logger"
)

const (
	TxTypeLegacy  = "legacy"
	TxTypeDynamic = "dynamic"
)

var defaultTipCap = big.NewInt(1_000_000_000)

// ChainClient is the subset of node calls needed to submit a transaction.
type ChainClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

type SenderConfig struct {
	ChainID         *big.Int
	DefaultGasPrice *big.Int
	PollInterval    time.Duration
	ReceiptTimeout  time.Duration
	TxType          string
}

// SendRequest describes one outgoing transaction. A nil GasPrice asks the node.
type SendRequest struct {
	PrivateKey *ecdsa.PrivateKey
	To         common.Address
	Value      *big.Int
	Data       []byte
	GasLimit   uint64
	GasPrice   *big.Int
}

// SendResult is filled as far as the submission got. Hash is set once the
// transaction was accepted by the node, Receipt once it was mined.
type SendResult struct {
	From     common.Address
	Hash     common.Hash
	Nonce    uint64
	GasPrice *big.Int
	Receipt  *types.Receipt
}

// Sender builds, signs and submits transactions, then waits for their receipt.
type Sender struct {
	client          ChainClient
	chainID         *big.Int
	defaultGasPrice *big.Int
	pollInterval    time.Duration
	receiptTimeout  time.Duration
	txType          string
}

func NewSender(client ChainClient, cfg SenderConfig) *Sender {
	s := &Sender{
		client:          client,
		chainID:         cfg.ChainID,
		defaultGasPrice: cfg.DefaultGasPrice,
		pollInterval:    cfg.PollInterval,
		receiptTimeout:  cfg.ReceiptTimeout,
		txType:          cfg.TxType,
	}
	if s.defaultGasPrice == nil {
		s.defaultGasPrice = big.NewInt(20_000_000_000)
	}
	if s.pollInterval <= 0 {
		s.pollInterval = time.Second
	}
	if s.receiptTimeout <= 0 {
		s.receiptTimeout = 10 * time.Minute
	}
	if s.txType == "" {
		s.txType = TxTypeLegacy
	}
	return s
}

// BuildAndSend signs req with the pending nonce, broadcasts it and polls for
// the receipt. A receipt with status 0 is returned together with a
// RevertedExecution error.
func (s *Sender) BuildAndSend(ctx context.Context, req SendRequest) (*SendResult, error) {
	from := crypto.PubkeyToAddress(req.PrivateKey.PublicKey)
	result := &SendResult{From: from}
	log := logger.GetLogger().WithFields(map[string]interface{}{
		"from":     from.Hex(),
		"to":       req.To.Hex(),
		"gasLimit": req.GasLimit,
	})

	nonce, err := s.client.PendingNonceAt(ctx, from)
	if err != nil {
		return result, err
	}
	result.Nonce = nonce

	gasPrice := req.GasPrice
	if gasPrice == nil {
		gasPrice, err = s.client.SuggestGasPrice(ctx)
		if err != nil || gasPrice == nil {
			log.WithError(err).Warn("Gas price unavailable, using default")
			gasPrice = new(big.Int).Set(s.defaultGasPrice)
		}
	}
	result.GasPrice = gasPrice

	signed, err := s.sign(ctx, req, nonce, gasPrice)
	if err != nil {
		return result, err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return result, apperr.Wrap(err, apperr.Internal, "encodeTransaction")
	}

	log = log.WithFields(map[string]interface{}{
		"nonce":    nonce,
		"gasPrice": gasPrice.String(),
		"txHash":   signed.Hash().Hex(),
	})
	log.Info("Sending transaction")

	hash, err := s.client.SendRawTransaction(ctx, raw)
	if err != nil {
		if !strings.Contains(strings.ToLower(err.Error()), "already known") {
			log.WithError(err).Error("Failed to send transaction")
			return result, classifySendError(err)
		}
		log.Info("Transaction already known to node")
	}
	if hash == (common.Hash{}) {
		hash = signed.Hash()
	}
	result.Hash = hash

	receipt, err := s.waitReceipt(ctx, hash)
	if err != nil {
		log.WithError(err).Warn("Transaction receipt not available")
		return result, err
	}
	result.Receipt = receipt
	if receipt.Status == types.ReceiptStatusFailed {
		log.WithField("block", receipt.BlockNumber).Warn("Transaction reverted")
		return result, apperr.New(apperr.RevertedExecution, "buildAndSend", "transaction %s reverted in block %v", hash.Hex(), receipt.BlockNumber)
	}

	log.WithField("block", receipt.BlockNumber).Info("Transaction confirmed")
	return result, nil
}

func (s *Sender) sign(ctx context.Context, req SendRequest, nonce uint64, gasPrice *big.Int) (*types.Transaction, error) {
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To

	var (
		tx     *types.Transaction
		signer types.Signer
	)
	switch s.txType {
	case TxTypeDynamic:
		tip, err := s.client.SuggestGasTipCap(ctx)
		if err != nil || tip == nil {
			tip = new(big.Int).Set(defaultTipCap)
		}
		feeCap := new(big.Int).Add(new(big.Int).Mul(gasPrice, big.NewInt(2)), tip)
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   s.chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       req.GasLimit,
			To:        &to,
			Value:     value,
			Data:      req.Data,
		})
		signer = types.NewLondonSigner(s.chainID)
	default:
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      req.GasLimit,
			To:       &to,
			Value:    value,
			Data:     req.Data,
		})
		signer = types.NewEIP155Signer(s.chainID)
	}

	signed, err := types.SignTx(tx, signer, req.PrivateKey)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, "signTransaction")
	}
	return signed, nil
}

// waitReceipt polls until a receipt appears, the window closes or ctx is cancelled.
func (s *Sender) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.client.TransactionReceipt(ctx, hash)
		switch {
		case err != nil && ctx.Err() == nil:
			logger.GetLogger().WithError(err).WithField("txHash", hash.Hex()).Warn("Receipt poll failed")
		case receipt != nil:
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, apperr.Wrap(
				errors.Wrapf(ctx.Err(), "no receipt for %s within %s", hash.Hex(), s.receiptTimeout),
				apperr.ReceiptTimeout, "waitReceipt")
		case <-ticker.C:
		}
	}
}

// classifySendError keeps kinds assigned by the client and marks the rest as submission failures.
func classifySendError(err error) error {
	switch apperr.KindOf(err) {
	case apperr.InvalidNonce, apperr.InsufficientFunds, apperr.RpcUnavailable, apperr.SubmissionError:
		return err
	default:
		return apperr.Wrap(err, apperr.SubmissionError, "eth_sendRawTransaction")
	}
}
