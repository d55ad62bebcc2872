package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/qqdog1/ws/internal/domain/entities"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Ethereum     EthereumConfig     `mapstructure:"ethereum"`
	Contracts    []ContractConfig   `mapstructure:"contracts"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Crypto       CryptoConfig       `mapstructure:"crypto"`
	AWS          AWSConfig          `mapstructure:"aws"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// DatabaseConfig holds database configuration. Driver is postgres or memory.
type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	Host        string `mapstructure:"host"`
	Port        string `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Database    string `mapstructure:"database"`
	SSLMode     string `mapstructure:"sslmode"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// EthereumConfig holds node and transaction settings
type EthereumConfig struct {
	Chain           string        `mapstructure:"chain"`
	RpcURL          string        `mapstructure:"rpc_url"`
	APIKey          string        `mapstructure:"api_key"`
	ChainID         int64         `mapstructure:"chain_id"` // 0 takes the node's eth_chainId
	RPCTimeout      time.Duration `mapstructure:"rpc_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"` // negative disables retries
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	ReceiptTimeout  time.Duration `mapstructure:"receipt_timeout"`
	DefaultGasPrice string        `mapstructure:"default_gas_price"`
	NativeGasLimit  uint64        `mapstructure:"native_gas_limit"`
	TxType          string        `mapstructure:"tx_type"`
}

// ContractConfig describes one ERC-20 token on the configured chain
type ContractConfig struct {
	Currency string `mapstructure:"currency"`
	Address  string `mapstructure:"address"`
	Decimals int    `mapstructure:"decimals"`
	GasLimit uint64 `mapstructure:"gas_limit"`
}

// NotificationConfig holds notification configuration
type NotificationConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds Telegram specific configuration
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Dir    string `mapstructure:"dir"`
}

// CryptoConfig holds the passphrase sealing private keys at rest
type CryptoConfig struct {
	Passphrase string `mapstructure:"passphrase"`
}

// AWSConfig names the Secrets Manager secret (and optional KMS key) holding the passphrase
type AWSConfig struct {
	SecretID string `mapstructure:"secret_id"`
	KeyAlias string `mapstructure:"key_alias"`
}

// LoadConfig loads configuration from YAML file or environment variables
func LoadConfig() *Config {
	if config, err := LoadConfigFromYAML(getEnv("CONFIG_NAME", "config.dev"), "./configs", "../configs", "../../configs"); err == nil {
		return config
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromYAML reads <name>.yaml from the first path containing it
func LoadConfigFromYAML(name string, paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideWithEnvVars(&config)
	applyDefaults(&config)
	return &config, nil
}

// overrideWithEnvVars lets secrets live outside the YAML file
func overrideWithEnvVars(config *Config) {
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		config.Database.Password = password
	}
	if url := os.Getenv("ETHEREUM_RPC_URL"); url != "" {
		config.Ethereum.RpcURL = url
	}
	if key := os.Getenv("ETHEREUM_API_KEY"); key != "" {
		config.Ethereum.APIKey = key
	}
	if passphrase := os.Getenv("CRYPTO_PASSPHRASE"); passphrase != "" {
		config.Crypto.Passphrase = passphrase
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		config.Notification.Telegram.BotToken = token
	}
}

// LoadConfigFromEnv loads configuration from environment variables
func LoadConfigFromEnv() *Config {
	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Driver:      getEnv("DB_DRIVER", "postgres"),
			Host:        getEnv("DB_URL", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "password"),
			Database:    getEnv("DB_DATABASE", "wallet"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Ethereum: EthereumConfig{
			Chain:           getEnv("ETHEREUM_CHAIN", ""),
			RpcURL:          getEnv("ETHEREUM_RPC_URL", ""),
			APIKey:          getEnv("ETHEREUM_API_KEY", ""),
			ChainID:         int64(getEnvAsInt("ETHEREUM_CHAIN_ID", 0)),
			RPCTimeout:      getEnvAsDuration("ETHEREUM_RPC_TIMEOUT", 0),
			MaxRetries:      getEnvAsInt("ETHEREUM_MAX_RETRIES", 0),
			RetryBackoff:    getEnvAsDuration("ETHEREUM_RETRY_BACKOFF", 0),
			RateLimit:       getEnvAsFloat("ETHEREUM_RATE_LIMIT", 0),
			PollInterval:    getEnvAsDuration("ETHEREUM_POLL_INTERVAL", 0),
			ReceiptTimeout:  getEnvAsDuration("ETHEREUM_RECEIPT_TIMEOUT", 0),
			DefaultGasPrice: getEnv("ETHEREUM_DEFAULT_GAS_PRICE", ""),
			NativeGasLimit:  uint64(getEnvAsInt("ETHEREUM_NATIVE_GAS_LIMIT", 0)),
			TxType:          getEnv("ETHEREUM_TX_TYPE", ""),
		},
		Notification: NotificationConfig{
			Telegram: TelegramConfig{
				BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
				ChatID:   getEnv("TELEGRAM_BOT_MESSAGE_GROUP", ""),
			},
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Dir:    getEnv("LOG_DIR", ""),
		},
		Crypto: CryptoConfig{
			Passphrase: getEnv("CRYPTO_PASSPHRASE", ""),
		},
		AWS: AWSConfig{
			SecretID: getEnv("SECRETID", ""),
			KeyAlias: getEnv("KEYALIAS", ""),
		},
	}

	contracts, err := ParseContracts(getEnv("CONTRACTS", ""))
	if err == nil {
		config.Contracts = contracts
	}
	applyDefaults(config)
	return config
}

func applyDefaults(config *Config) {
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	if config.Database.Driver == "" {
		config.Database.Driver = "postgres"
	}
	e := &config.Ethereum
	if e.Chain == "" {
		e.Chain = "ETH"
	}
	e.Chain = strings.ToUpper(e.Chain)
	if e.RPCTimeout <= 0 {
		e.RPCTimeout = 30 * time.Second
	}
	if e.MaxRetries == 0 {
		e.MaxRetries = 3
	}
	if e.RetryBackoff <= 0 {
		e.RetryBackoff = 200 * time.Millisecond
	}
	if e.PollInterval <= 0 {
		e.PollInterval = time.Second
	}
	if e.ReceiptTimeout <= 0 {
		e.ReceiptTimeout = 10 * time.Minute
	}
	if e.DefaultGasPrice == "" {
		e.DefaultGasPrice = "20000000000"
	}
	if e.NativeGasLimit == 0 {
		e.NativeGasLimit = 21000
	}
	e.TxType = strings.ToLower(strings.TrimSpace(e.TxType))
	if e.TxType == "" {
		e.TxType = TxTypeLegacy
	}
}

const (
	TxTypeLegacy  = "legacy"
	TxTypeDynamic = "dynamic"
)

// Validate rejects settings that have no sensible fallback
func (c *Config) Validate() error {
	e := c.Ethereum
	switch e.TxType {
	case TxTypeLegacy, TxTypeDynamic:
	default:
		return fmt.Errorf("ethereum.tx_type %q: want %s or %s", e.TxType, TxTypeLegacy, TxTypeDynamic)
	}
	if e.ChainID < 0 {
		return fmt.Errorf("ethereum.chain_id %d is negative", e.ChainID)
	}
	if _, err := e.DefaultGasPriceWei(); err != nil {
		return err
	}
	return nil
}

// DefaultGasPriceWei parses DefaultGasPrice, a decimal wei amount
func (e EthereumConfig) DefaultGasPriceWei() (*big.Int, error) {
	price, ok := new(big.Int).SetString(e.DefaultGasPrice, 10)
	if !ok || price.Sign() <= 0 {
		return nil, fmt.Errorf("invalid default gas price %q", e.DefaultGasPrice)
	}
	return price, nil
}

// ContractDescriptors converts the configured contracts for the registry
func (c *Config) ContractDescriptors() []entities.ContractDescriptor {
	out := make([]entities.ContractDescriptor, 0, len(c.Contracts))
	for _, cc := range c.Contracts {
		out = append(out, entities.ContractDescriptor{
			Chain:           c.Ethereum.Chain,
			Currency:        cc.Currency,
			ContractAddress: cc.Address,
			Decimals:        cc.Decimals,
			GasLimit:        cc.GasLimit,
		})
	}
	return out
}

// ParseContracts reads SYMBOL:address:decimals[:gasLimit] entries separated by commas
func ParseContracts(s string) ([]ContractConfig, error) {
	var out []ContractConfig
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 3 && len(parts) != 4 {
			return nil, fmt.Errorf("contract %q: want SYMBOL:address:decimals[:gasLimit]", item)
		}
		decimals, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("contract %q: bad decimals: %w", item, err)
		}
		cc := ContractConfig{Currency: parts[0], Address: parts[1], Decimals: decimals}
		if len(parts) == 4 {
			gas, err := strconv.ParseUint(parts[3], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("contract %q: bad gas limit: %w", item, err)
			}
			cc.GasLimit = gas
		}
		out = append(out, cc)
	}
	return out, nil
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvAsInt gets an environment variable as integer with a fallback value
func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
