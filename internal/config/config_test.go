package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: "9090"
database:
  driver: memory
ethereum:
  rpc_url: http://node:8545
  chain_id: 5
  rpc_timeout: 5s
  receipt_timeout: 2m
contracts:
  - currency: usdt
    address: "0xdac17f958d2ee523a2206206994597c13d831ec7"
    decimals: 6
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wallet.yaml"), []byte(yaml), 0o600))
	t.Setenv("ETHEREUM_API_KEY", "from-env")

	cfg, err := LoadConfigFromYAML("wallet", dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "http://node:8545", cfg.Ethereum.RpcURL)
	assert.Equal(t, "from-env", cfg.Ethereum.APIKey)
	assert.Equal(t, int64(5), cfg.Ethereum.ChainID)
	assert.Equal(t, 5*time.Second, cfg.Ethereum.RPCTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Ethereum.ReceiptTimeout)
	assert.Equal(t, time.Second, cfg.Ethereum.PollInterval)
	assert.Equal(t, 3, cfg.Ethereum.MaxRetries)
	assert.Equal(t, uint64(21000), cfg.Ethereum.NativeGasLimit)
	assert.Equal(t, "ETH", cfg.Ethereum.Chain)

	descriptors := cfg.ContractDescriptors()
	require.Len(t, descriptors, 1)
	assert.Equal(t, "ETH", descriptors[0].Chain)
	assert.Equal(t, "usdt", descriptors[0].Currency)
	assert.Equal(t, 6, descriptors[0].Decimals)
}

func TestLoadConfigFromYAMLMissingFile(t *testing.T) {
	_, err := LoadConfigFromYAML("absent", t.TempDir())
	assert.Error(t, err)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("ETHEREUM_CHAIN_ID", "11155111")
	t.Setenv("ETHEREUM_RECEIPT_TIMEOUT", "90s")
	t.Setenv("ETHEREUM_DEFAULT_GAS_PRICE", "1000000000")
	t.Setenv("CONTRACTS", "USDT:0xdac17f958d2ee523a2206206994597c13d831ec7:6:70000, DAI:0x6b175474e89094c44da98b954eedeac495271d0f:18")

	cfg := LoadConfigFromEnv()
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, int64(11155111), cfg.Ethereum.ChainID)
	assert.Equal(t, 90*time.Second, cfg.Ethereum.ReceiptTimeout)
	assert.Equal(t, 30*time.Second, cfg.Ethereum.RPCTimeout)

	price, err := cfg.Ethereum.DefaultGasPriceWei()
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000), price.Int64())

	require.Len(t, cfg.Contracts, 2)
	assert.Equal(t, uint64(70000), cfg.Contracts[0].GasLimit)
	assert.Equal(t, "DAI", cfg.Contracts[1].Currency)
	assert.Equal(t, 18, cfg.Contracts[1].Decimals)
}

func TestParseContractsRejectsMalformed(t *testing.T) {
	for _, in := range []string{"USDT", "USDT:0xabc:six", "USDT:0xabc:6:many"} {
		_, err := ParseContracts(in)
		assert.Error(t, err, in)
	}

	out, err := ParseContracts("")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDefaultGasPriceWeiRejectsGarbage(t *testing.T) {
	_, err := EthereumConfig{DefaultGasPrice: "twenty"}.DefaultGasPriceWei()
	assert.Error(t, err)
}

func TestRetriesCanBeDisabled(t *testing.T) {
	t.Setenv("ETHEREUM_MAX_RETRIES", "-1")
	cfg := LoadConfigFromEnv()
	assert.Equal(t, -1, cfg.Ethereum.MaxRetries)

	t.Setenv("ETHEREUM_MAX_RETRIES", "")
	cfg = LoadConfigFromEnv()
	assert.Equal(t, 3, cfg.Ethereum.MaxRetries)
}

func TestChainIDLeftForNodeWhenUnset(t *testing.T) {
	t.Setenv("ETHEREUM_CHAIN_ID", "")
	cfg := LoadConfigFromEnv()
	assert.Equal(t, int64(0), cfg.Ethereum.ChainID)
	assert.NoError(t, cfg.Validate())
}

func TestValidateTxType(t *testing.T) {
	t.Setenv("ETHEREUM_TX_TYPE", " Dynamic ")
	cfg := LoadConfigFromEnv()
	assert.Equal(t, TxTypeDynamic, cfg.Ethereum.TxType)
	assert.NoError(t, cfg.Validate())

	t.Setenv("ETHEREUM_TX_TYPE", "eip1559")
	cfg = LoadConfigFromEnv()
	assert.Error(t, cfg.Validate())

	t.Setenv("ETHEREUM_TX_TYPE", "")
	cfg = LoadConfigFromEnv()
	assert.Equal(t, TxTypeLegacy, cfg.Ethereum.TxType)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadGasPrice(t *testing.T) {
	t.Setenv("ETHEREUM_DEFAULT_GAS_PRICE", "twenty")
	cfg := LoadConfigFromEnv()
	assert.Error(t, cfg.Validate())
}
