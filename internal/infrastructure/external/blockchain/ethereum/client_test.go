package ethereum

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/qqdog1/ws/internal/domain/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcHandler answers one JSON-RPC call. A zero status means 200.
type rpcHandler func(req rpcRequest) (result interface{}, rerr *rpcError, status int)

func newRPCServer(t *testing.T, calls *int32, handle rpcHandler) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		result, rerr, status := handle(req)
		if status != 0 && status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rerr != nil {
			resp["error"] = rerr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		RpcURL:       url,
		APIKey:       "secret",
		RPCTimeout:   2 * time.Second,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func param(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func TestClientBalanceAt(t *testing.T) {
	owner := common.HexToAddress("0x7e5f4552091a69125d5dfcb7b8c2659029395bdf")
	srv := newRPCServer(t, nil, func(req rpcRequest) (interface{}, *rpcError, int) {
		assert.Equal(t, "eth_getBalance", req.Method)
		assert.Equal(t, strings.ToLower(owner.Hex()), strings.ToLower(param(t, req.Params[0])))
		assert.Equal(t, "latest", param(t, req.Params[1]))
		return "0xde0b6b3a7640000", nil, 0
	})
	defer srv.Close()

	balance, err := newTestClient(t, srv.URL).BalanceAt(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", balance.String())
}

func TestClientSendsAPIKey(t *testing.T) {
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": "0x4a817c800"})
	}))
	defer srv.Close()

	price, err := newTestClient(t, srv.URL).SuggestGasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20_000_000_000), price)
	assert.Equal(t, "Bearer secret", auth.Load())
}

func TestClientPendingNonce(t *testing.T) {
	srv := newRPCServer(t, nil, func(req rpcRequest) (interface{}, *rpcError, int) {
		assert.Equal(t, "eth_getTransactionCount", req.Method)
		assert.Equal(t, "pending", param(t, req.Params[1]))
		return "0x5", nil, 0
	})
	defer srv.Close()

	nonce, err := newTestClient(t, srv.URL).PendingNonceAt(context.Background(), common.Address{})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), nonce)
}

func TestClientCallContract(t *testing.T) {
	token := common.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec7")
	srv := newRPCServer(t, nil, func(req rpcRequest) (interface{}, *rpcError, int) {
		assert.Equal(t, "eth_call", req.Method)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(req.Params[0], &msg))
		assert.Equal(t, strings.ToLower(token.Hex()), strings.ToLower(msg["to"].(string)))
		assert.Equal(t, "latest", param(t, req.Params[1]))
		return "0x00000000000000000000000000000000000000000000000000000000000f4240", nil, 0
	})
	defer srv.Close()

	out, err := newTestClient(t, srv.URL).CallContract(context.Background(), token, []byte{0x70, 0xa0, 0x82, 0x31})
	require.NoError(t, err)
	assert.Len(t, out, 32)
	assert.Equal(t, int64(1_000_000), new(big.Int).SetBytes(out).Int64())
}

func TestClientProtocolErrorsAreNotRetried(t *testing.T) {
	var calls int32
	srv := newRPCServer(t, &calls, func(req rpcRequest) (interface{}, *rpcError, int) {
		return nil, &rpcError{Code: -32000, Message: "nonce too low"}, 0
	})
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).SendRawTransaction(context.Background(), []byte{0x01})
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidNonce, apperr.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientProtocolErrorKinds(t *testing.T) {
	cases := map[string]apperr.Kind{
		"insufficient funds for gas * price + value": apperr.InsufficientFunds,
		"replacement transaction underpriced":        apperr.InvalidNonce,
		"intrinsic gas too low":                      apperr.SubmissionError,
	}
	for msg, kind := range cases {
		msg := msg
		srv := newRPCServer(t, nil, func(req rpcRequest) (interface{}, *rpcError, int) {
			return nil, &rpcError{Code: -32000, Message: msg}, 0
		})
		_, err := newTestClient(t, srv.URL).SendRawTransaction(context.Background(), []byte{0x01})
		assert.Equal(t, kind, apperr.KindOf(err), msg)
		srv.Close()
	}
}

func TestClientRetriesTransportFailures(t *testing.T) {
	var calls int32
	srv := newRPCServer(t, &calls, func(req rpcRequest) (interface{}, *rpcError, int) {
		return nil, nil, http.StatusInternalServerError
	})
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).SuggestGasPrice(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.RpcUnavailable, apperr.KindOf(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientWithRetriesDisabled(t *testing.T) {
	var calls int32
	srv := newRPCServer(t, &calls, func(req rpcRequest) (interface{}, *rpcError, int) {
		return nil, nil, http.StatusServiceUnavailable
	})
	defer srv.Close()

	c, err := NewClient(ClientConfig{RpcURL: srv.URL, MaxRetries: -1, RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.ChainID(context.Background())
	assert.Equal(t, apperr.RpcUnavailable, apperr.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientRecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	srv := newRPCServer(t, &calls, func(req rpcRequest) (interface{}, *rpcError, int) {
		if atomic.LoadInt32(&calls) == 1 {
			return nil, nil, http.StatusBadGateway
		}
		return "0x1", nil, 0
	})
	defer srv.Close()

	id, err := newTestClient(t, srv.URL).ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.Int64())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientReceiptNotFound(t *testing.T) {
	srv := newRPCServer(t, nil, func(req rpcRequest) (interface{}, *rpcError, int) {
		return nil, nil, 0
	})
	defer srv.Close()

	receipt, err := newTestClient(t, srv.URL).TransactionReceipt(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	assert.Nil(t, receipt)
}

func TestClientReceipt(t *testing.T) {
	hash := common.HexToHash("0xabc0000000000000000000000000000000000000000000000000000000000def")
	srv := newRPCServer(t, nil, func(req rpcRequest) (interface{}, *rpcError, int) {
		assert.Equal(t, "eth_getTransactionReceipt", req.Method)
		return map[string]interface{}{
			"transactionHash":   hash.Hex(),
			"transactionIndex":  "0x0",
			"blockHash":         "0x" + strings.Repeat("11", 32),
			"blockNumber":       "0x64",
			"cumulativeGasUsed": "0x5208",
			"gasUsed":           "0x5208",
			"effectiveGasPrice": "0x4a817c800",
			"logsBloom":         "0x" + strings.Repeat("00", 256),
			"logs":              []interface{}{},
			"status":            "0x1",
			"type":              "0x0",
		}, nil, 0
	})
	defer srv.Close()

	receipt, err := newTestClient(t, srv.URL).TransactionReceipt(context.Background(), hash)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, uint64(1), receipt.Status)
	assert.Equal(t, uint64(21000), receipt.GasUsed)
	assert.Equal(t, int64(100), receipt.BlockNumber.Int64())
	assert.Equal(t, hash, receipt.TxHash)
}

func TestClientSendRawTransaction(t *testing.T) {
	hash := common.HexToHash("0x" + strings.Repeat("ab", 32))
	srv := newRPCServer(t, nil, func(req rpcRequest) (interface{}, *rpcError, int) {
		assert.Equal(t, "eth_sendRawTransaction", req.Method)
		assert.Equal(t, "0xf86b", param(t, req.Params[0]))
		return hash.Hex(), nil, 0
	})
	defer srv.Close()

	got, err := newTestClient(t, srv.URL).SendRawTransaction(context.Background(), []byte{0xf8, 0x6b})
	require.NoError(t, err)
	assert.Equal(t, hash, got)
}
