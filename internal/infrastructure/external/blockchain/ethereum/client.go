package ethereum

import (
	"context"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/qqdog1/ws/internal/domain/apperr"
	"github.com/qqdog1/ws/pkg/logger"
	"golang.org/x/time/rate"
)

// ClientConfig configures the JSON-RPC transport.
type ClientConfig struct {
	RpcURL       string
	APIKey       string
	RPCTimeout   time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
}

// Client is a JSON-RPC client for one EVM node with per-call timeouts,
// rate limiting and bounded retries of transport failures.
type Client struct {
	rpc        *rpc.Client
	eth        *ethclient.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
}

// CustomTransport adds the content type and bearer API key to every request
type CustomTransport struct {
	Base   http.RoundTripper
	ApiKey string
}

func (t *CustomTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")
	if t.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.ApiKey)
	}
	return t.Base.RoundTrip(req)
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.RPCTimeout <= 0 {
		cfg.RPCTimeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}

	httpClient := &http.Client{
		Timeout: cfg.RPCTimeout,
		Transport: &CustomTransport{
			Base:   http.DefaultTransport,
			ApiKey: cfg.APIKey,
		},
	}
	rpcClient, err := rpc.DialHTTPWithClient(cfg.RpcURL, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "dial rpc")
	}

	c := &Client{
		rpc:        rpcClient,
		eth:        ethclient.NewClient(rpcClient),
		timeout:    cfg.RPCTimeout,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c, nil
}

func (c *Client) Close() {
	c.rpc.Close()
}

// BalanceAt returns the latest wei balance of account.
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.do(ctx, "eth_getBalance", func(ctx context.Context) (err error) {
		balance, err = c.eth.BalanceAt(ctx, account, nil)
		return err
	})
	return balance, err
}

// CallContract runs a read-only call against the latest block.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	err := c.do(ctx, "eth_call", func(ctx context.Context) (err error) {
		out, err = c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		return err
	})
	return out, err
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := c.do(ctx, "eth_gasPrice", func(ctx context.Context) (err error) {
		price, err = c.eth.SuggestGasPrice(ctx)
		return err
	})
	return price, err
}

func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var tip *big.Int
	err := c.do(ctx, "eth_maxPriorityFeePerGas", func(ctx context.Context) (err error) {
		tip, err = c.eth.SuggestGasTipCap(ctx)
		return err
	})
	return tip, err
}

// PendingNonceAt returns the nonce including pending transactions.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var nonce uint64
	err := c.do(ctx, "eth_getTransactionCount", func(ctx context.Context) (err error) {
		nonce, err = c.eth.PendingNonceAt(ctx, account)
		return err
	})
	return nonce, err
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var id *big.Int
	err := c.do(ctx, "eth_chainId", func(ctx context.Context) (err error) {
		id, err = c.eth.ChainID(ctx)
		return err
	})
	return id, err
}

// SendRawTransaction broadcasts an encoded signed transaction and returns its hash.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var hash common.Hash
	err := c.do(ctx, "eth_sendRawTransaction", func(ctx context.Context) error {
		return c.rpc.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw))
	})
	return hash, err
}

// TransactionReceipt returns nil, nil while the transaction is not mined.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.do(ctx, "eth_getTransactionReceipt", func(ctx context.Context) (err error) {
		receipt, err = c.eth.TransactionReceipt(ctx, hash)
		if errors.Is(err, ethereum.NotFound) {
			receipt, err = nil, nil
		}
		return err
	})
	return receipt, err
}

// do runs fn with the per-call timeout. Transport failures are retried with
// exponential backoff; JSON-RPC error objects are returned immediately.
func (c *Client) do(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	log := logger.GetLogger().WithField("method", method)
	backoff := c.backoff

	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return apperr.Wrap(ctx.Err(), apperr.RpcUnavailable, method)
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if c.limiter != nil {
			if werr := c.limiter.Wait(ctx); werr != nil {
				return apperr.Wrap(werr, apperr.RpcUnavailable, method)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if isProtocolError(err) {
			return protocolError(method, err)
		}
		if ctx.Err() != nil {
			break
		}
		log.WithError(err).WithField("attempt", attempt+1).Warn("RPC call failed, retrying")
	}
	return apperr.Wrap(err, apperr.RpcUnavailable, method)
}

func isProtocolError(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr)
}

// protocolError classifies a JSON-RPC error object by its message.
func protocolError(method string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "nonce too low"),
		strings.Contains(msg, "nonce too high"),
		strings.Contains(msg, "replacement transaction underpriced"):
		return apperr.Wrap(err, apperr.InvalidNonce, method)
	case strings.Contains(msg, "insufficient funds"):
		return apperr.Wrap(err, apperr.InsufficientFunds, method)
	case strings.Contains(msg, "execution reverted"):
		return apperr.Wrap(err, apperr.RevertedExecution, method)
	case method == "eth_sendRawTransaction":
		return apperr.Wrap(err, apperr.SubmissionError, method)
	default:
		return apperr.Wrap(err, apperr.Internal, method)
	}
}
