package apperr

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := Wrap(errors.New("dial tcp: refused"), RpcUnavailable, "eth_getBalance")
	assert.Equal(t, RpcUnavailable, KindOf(err))

	wrapped := fmt.Errorf("balance: %w", err)
	assert.True(t, Is(wrapped, RpcUnavailable))
	assert.False(t, Is(wrapped, Internal))

	assert.Equal(t, Internal, KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Nil(t, Wrap(nil, Internal, "noop"))
}

func TestErrorMessage(t *testing.T) {
	err := New(InvalidAmount, "transferNative", "amount %q has fractional wei", "0.0000000000000000001")
	assert.Equal(t, `transferNative: InvalidAmount: amount "0.0000000000000000001" has fractional wei`, err.Error())
	assert.Equal(t, "ReceiptTimeout", (&Error{Kind: ReceiptTimeout}).Error())
}
