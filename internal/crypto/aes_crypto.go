package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	envelopeAlgorithm = "aes-256-cbc"
	pbkdf2Iterations  = 10000
)

type EncryptedData struct {
	Algorithm string `json:"algorithm"`
	Salt      string `json:"salt"`
	IV        string `json:"iv"`
	Data      string `json:"data"`
}

// AESCrypto seals private keys at rest with a passphrase derived AES-256-CBC key.
type AESCrypto struct {
	passphrase string
	rand       io.Reader
}

func NewAESCrypto(passphrase string) (*AESCrypto, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	return &AESCrypto{passphrase: passphrase, rand: rand.Reader}, nil
}

func (a *AESCrypto) deriveKey(salt []byte) []byte {
	return pbkdf2.Key([]byte(a.passphrase), salt, pbkdf2Iterations, 32, sha256.New)
}

func pkcs7Padding(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpadding(data []byte, blockSize int) ([]byte, error) {
	length := len(data)
	if length == 0 || length%blockSize != 0 {
		return nil, errors.New("invalid padding")
	}
	unpadding := int(data[length-1])
	if unpadding == 0 || unpadding > blockSize {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[length-unpadding:] {
		if int(b) != unpadding {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:length-unpadding], nil
}

// Seal encrypts plain and returns the JSON envelope stored in the pkey column.
func (a *AESCrypto) Seal(plain string) (string, error) {
	salt := make([]byte, 16)
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(a.rand, salt); err != nil {
		return "", errors.Wrap(err, "salt")
	}
	if _, err := io.ReadFull(a.rand, iv); err != nil {
		return "", errors.Wrap(err, "iv")
	}

	block, err := aes.NewCipher(a.deriveKey(salt))
	if err != nil {
		return "", err
	}
	padded := pkcs7Padding([]byte(plain), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	out, err := json.Marshal(EncryptedData{
		Algorithm: envelopeAlgorithm,
		Salt:      hex.EncodeToString(salt),
		IV:        hex.EncodeToString(iv),
		Data:      hex.EncodeToString(ciphertext),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Open reverses Seal. Values that are not an envelope are returned as is,
// so rows written before a passphrase was configured stay readable.
func (a *AESCrypto) Open(stored string) (string, error) {
	if !strings.HasPrefix(strings.TrimSpace(stored), "{") {
		return stored, nil
	}
	var enc EncryptedData
	if err := json.Unmarshal([]byte(stored), &enc); err != nil {
		return "", errors.Wrap(err, "envelope")
	}
	if enc.Algorithm != envelopeAlgorithm {
		return "", errors.Errorf("unsupported algorithm %q", enc.Algorithm)
	}
	salt, err := hex.DecodeString(enc.Salt)
	if err != nil {
		return "", errors.Wrap(err, "salt")
	}
	iv, err := hex.DecodeString(enc.IV)
	if err != nil || len(iv) != aes.BlockSize {
		return "", errors.New("invalid iv")
	}
	ciphertext, err := hex.DecodeString(enc.Data)
	if err != nil {
		return "", errors.Wrap(err, "data")
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", errors.New("ciphertext is not a multiple of the block size")
	}

	block, err := aes.NewCipher(a.deriveKey(salt))
	if err != nil {
		return "", err
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)
	plain, err = pkcs7Unpadding(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
