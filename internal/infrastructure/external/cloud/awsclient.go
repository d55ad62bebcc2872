package cloud

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/pkg/errors"
	"github.com/qqdog1/ws/pkg/logger"
)

const defaultSecretTTL = 15 * time.Minute

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type kmsAPI interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// SecretCache keeps fetched secrets for a fixed TTL
type SecretCache struct {
	mu         sync.RWMutex
	data       map[string]CacheItem
	defaultTTL time.Duration
	now        func() time.Time
}

// CacheItem is one cached secret
type CacheItem struct {
	Value     string
	ExpiresAt time.Time
}

func NewSecretCache(defaultTTL time.Duration) *SecretCache {
	return &SecretCache{
		data:       make(map[string]CacheItem),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (c *SecretCache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = CacheItem{
		Value:     value,
		ExpiresAt: c.now().Add(c.defaultTTL),
	}
}

func (c *SecretCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.data[key]
	if !exists {
		return "", false
	}
	if c.now().After(item.ExpiresAt) {
		delete(c.data, key)
		return "", false
	}
	return item.Value, true
}

// SecretClient reads the key sealing passphrase from Secrets Manager,
// optionally KMS encrypted.
type SecretClient struct {
	secretsClient secretsAPI
	kmsClient     kmsAPI
	cache         *SecretCache
}

// passphraseSecret is the JSON shape accepted in the secret string
type passphraseSecret struct {
	Passphrase string `json:"passphrase"`
}

// NewSecretClient uses the default AWS credential chain
func NewSecretClient(ctx context.Context) (*SecretClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}
	return newSecretClient(secretsmanager.NewFromConfig(cfg), kms.NewFromConfig(cfg), defaultSecretTTL), nil
}

func newSecretClient(secrets secretsAPI, kmsClient kmsAPI, ttl time.Duration) *SecretClient {
	return &SecretClient{
		secretsClient: secrets,
		kmsClient:     kmsClient,
		cache:         NewSecretCache(ttl),
	}
}

// GetSecretFromSecretsManager returns the secret string, served from cache while fresh
func (w *SecretClient) GetSecretFromSecretsManager(ctx context.Context, secretID string) (string, error) {
	if cached, ok := w.cache.Get(secretID); ok {
		return cached, nil
	}

	result, err := w.secretsClient.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to get secret value")
	}
	if result.SecretString == nil {
		return "", errors.New("secret string is nil")
	}

	w.cache.Set(secretID, *result.SecretString)
	logger.GetLogger().WithField("secret_id", secretID).Info("Secret fetched from Secrets Manager")
	return *result.SecretString, nil
}

// DecryptWithKMS decrypts base64 ciphertext with the given key
func (w *SecretClient) DecryptWithKMS(ctx context.Context, keyAlias, encryptedData string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encryptedData))
	if err != nil {
		return "", errors.Wrap(err, "failed to decode base64 data")
	}

	result, err := w.kmsClient.Decrypt(ctx, &kms.DecryptInput{
		KeyId:          aws.String(keyAlias),
		CiphertextBlob: ciphertext,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to decrypt with KMS")
	}
	return string(result.Plaintext), nil
}

// Passphrase resolves the sealing passphrase. The secret may be the bare value
// or {"passphrase": "..."}; with a key alias the value is KMS ciphertext.
func (w *SecretClient) Passphrase(ctx context.Context, secretID, keyAlias string) (string, error) {
	secret, err := w.GetSecretFromSecretsManager(ctx, secretID)
	if err != nil {
		return "", err
	}

	value := secret
	if strings.HasPrefix(strings.TrimSpace(secret), "{") {
		var ps passphraseSecret
		if err := json.Unmarshal([]byte(secret), &ps); err != nil {
			return "", errors.Wrap(err, "failed to unmarshal secret")
		}
		value = ps.Passphrase
	}

	if keyAlias != "" {
		value, err = w.DecryptWithKMS(ctx, keyAlias, value)
		if err != nil {
			return "", err
		}
	}
	if value == "" {
		return "", errors.New("secret holds an empty passphrase")
	}
	return value, nil
}
