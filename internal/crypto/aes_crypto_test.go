package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESCryptoRoundTrip(t *testing.T) {
	c, err := NewAESCrypto("correct horse battery staple")
	require.NoError(t, err)

	pk := "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	sealed, err := c.Seal(pk)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "{"))
	assert.NotContains(t, sealed, pk)

	opened, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, pk, opened)

	other, err := c.Seal(pk)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, other)
}

func TestAESCryptoOpen(t *testing.T) {
	c, err := NewAESCrypto("passphrase")
	require.NoError(t, err)

	plain, err := c.Open("1")
	require.NoError(t, err)
	assert.Equal(t, "1", plain)

	_, err = c.Open(`{"algorithm":"aes-128-gcm"}`)
	assert.Error(t, err)

	_, err = c.Open(`{"algorithm":"aes-256-cbc","salt":"00","iv":"00","data":"00"}`)
	assert.Error(t, err)

	_, err = NewAESCrypto("")
	assert.Error(t, err)
}
