package container

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/qqdog1/ws/internal/application/services"
	"github.com/qqdog1/ws/internal/config"
	"github.com/qqdog1/ws/internal/crypto"
	domainRepos "github.com/qqdog1/ws/internal/domain/repositories"
	"github.com/qqdog1/ws/internal/infrastructure/database/memory"
	"github.com/qqdog1/ws/internal/infrastructure/database/repositories"
	"github.com/qqdog1/ws/internal/infrastructure/external/blockchain/ethereum"
	"github.com/qqdog1/ws/internal/infrastructure/external/cloud"
	"github.com/qqdog1/ws/internal/notification"
	"github.com/qqdog1/ws/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	DB     *gorm.DB
	Logger *zap.Logger

	// Repositories
	UserAddressRepo     domainRepos.UserAddressRepository
	UserTransactionRepo domainRepos.UserTransactionRepository
	BlockRepo           domainRepos.BlockRepository

	EthClient     *ethereum.Client
	ChainID       *big.Int
	Notifier      notification.Notifier
	Registry      *services.ContractRegistry
	WalletService *services.WalletService
}

// NewContainer creates a new container with all dependencies
func NewContainer(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (*Container, error) {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	c := &Container{Config: cfg, Logger: zapLogger}

	cipher, err := newKeyCipher(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := c.initRepositories(cipher); err != nil {
		return nil, err
	}

	registry, err := services.NewContractRegistry(cfg.ContractDescriptors())
	if err != nil {
		return nil, errors.Wrap(err, "contract registry")
	}
	c.Registry = registry

	ethClient, err := ethereum.NewClient(ethereum.ClientConfig{
		RpcURL:       cfg.Ethereum.RpcURL,
		APIKey:       cfg.Ethereum.APIKey,
		RPCTimeout:   cfg.Ethereum.RPCTimeout,
		MaxRetries:   cfg.Ethereum.MaxRetries,
		RetryBackoff: cfg.Ethereum.RetryBackoff,
		RateLimit:    cfg.Ethereum.RateLimit,
	})
	if err != nil {
		return nil, err
	}
	c.EthClient = ethClient

	chainID, err := resolveChainID(ctx, ethClient, cfg.Ethereum.ChainID)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.ChainID = chainID

	defaultGasPrice, err := cfg.Ethereum.DefaultGasPriceWei()
	if err != nil {
		return nil, err
	}
	sender := ethereum.NewSender(ethClient, ethereum.SenderConfig{
		ChainID:         chainID,
		DefaultGasPrice: defaultGasPrice,
		PollInterval:    cfg.Ethereum.PollInterval,
		ReceiptTimeout:  cfg.Ethereum.ReceiptTimeout,
		TxType:          cfg.Ethereum.TxType,
	})

	c.Notifier = notification.New(cfg.Notification.Telegram.BotToken, cfg.Notification.Telegram.ChatID)

	codec, err := ethereum.NewERC20Codec()
	if err != nil {
		return nil, err
	}

	c.WalletService = services.NewWalletService(
		services.WalletConfig{
			Chain:          cfg.Ethereum.Chain,
			NativeGasLimit: cfg.Ethereum.NativeGasLimit,
		},
		services.WalletServiceDeps{
			Addresses:    c.UserAddressRepo,
			Transactions: c.UserTransactionRepo,
			Blocks:       c.BlockRepo,
			Chain:        ethClient,
			Sender:       sender,
			Registry:     registry,
			Keys:         crypto.NewKeyFactory(cfg.Ethereum.Chain, nil),
			Codec:        codec,
			Notifier:     c.Notifier,
			Logger:       zapLogger.Named("wallet"),
		},
	)
	return c, nil
}

type chainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// resolveChainID checks the configured chain id against the node. An unset
// id is taken from the node; a mismatch stops startup.
func resolveChainID(ctx context.Context, node chainIDReader, configured int64) (*big.Int, error) {
	nodeID, err := node.ChainID(ctx)
	if err != nil {
		if configured > 0 {
			logger.GetLogger().WithError(err).WithField("chain_id", configured).Warn("Node chain id unavailable, using configured value")
			return big.NewInt(configured), nil
		}
		return nil, errors.Wrap(err, "chain id not configured and node did not report one")
	}
	if configured > 0 && nodeID.Cmp(big.NewInt(configured)) != 0 {
		return nil, errors.Errorf("configured chain id %d does not match node chain id %s", configured, nodeID)
	}
	logger.GetLogger().WithField("chain_id", nodeID.String()).Info("Using chain id")
	return nodeID, nil
}

func (c *Container) initRepositories(cipher repositories.KeyCipher) error {
	if c.Config.Database.Driver == "memory" {
		logger.GetLogger().Warn("Using in-memory storage, data is lost on restart")
		c.UserAddressRepo = memory.NewUserAddressRepository()
		c.UserTransactionRepo = memory.NewUserTransactionRepository()
		c.BlockRepo = memory.NewBlockRepository()
		return nil
	}

	db, err := config.NewDatabase(c.Config.Database)
	if err != nil {
		return errors.Wrap(err, "database")
	}
	c.DB = db
	c.UserAddressRepo = repositories.NewUserAddressRepository(db, cipher)
	c.UserTransactionRepo = repositories.NewUserTransactionRepository(db)
	c.BlockRepo = repositories.NewBlockRepository(db)
	return nil
}

// newKeyCipher returns nil when no passphrase is configured, keys are then stored as plain hex.
func newKeyCipher(ctx context.Context, cfg *config.Config) (repositories.KeyCipher, error) {
	passphrase := cfg.Crypto.Passphrase
	if passphrase == "" && cfg.AWS.SecretID != "" {
		client, err := cloud.NewSecretClient(ctx)
		if err != nil {
			return nil, err
		}
		passphrase, err = client.Passphrase(ctx, cfg.AWS.SecretID, cfg.AWS.KeyAlias)
		if err != nil {
			return nil, errors.Wrap(err, "passphrase from secrets manager")
		}
	}
	if passphrase == "" {
		logger.GetLogger().Warn("No key passphrase configured, private keys are stored unencrypted")
		return nil, nil
	}
	cipher, err := crypto.NewAESCrypto(passphrase)
	if err != nil {
		return nil, err
	}
	return cipher, nil
}

// Close releases the node connection and database pool
func (c *Container) Close() {
	if c.EthClient != nil {
		c.EthClient.Close()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = c.Logger.Sync()
}
