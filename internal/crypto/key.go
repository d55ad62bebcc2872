package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"io"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/qqdog1/ws/internal/domain/apperr"
	"github.com/qqdog1/ws/internal/domain/entities"
)

const maxKeyAttempts = 16

// KeyFactory creates custodial secp256k1 key pairs.
type KeyFactory struct {
	chain string
	rand  io.Reader
}

// NewKeyFactory draws entropy from r, or crypto/rand when r is nil.
func NewKeyFactory(chain string, r io.Reader) *KeyFactory {
	if r == nil {
		r = rand.Reader
	}
	return &KeyFactory{chain: chain, rand: r}
}

// NewAddress draws a scalar in [1, n-1] and derives its address.
// Out of range draws are discarded and redrawn.
func (f *KeyFactory) NewAddress() (*entities.UserAddress, error) {
	buf := make([]byte, 32)
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		if _, err := io.ReadFull(f.rand, buf); err != nil {
			return nil, apperr.Wrap(err, apperr.KeyGenerationError, "createAddress")
		}
		key, err := gethcrypto.ToECDSA(buf)
		if err != nil {
			continue
		}
		return &entities.UserAddress{
			Chain:      f.chain,
			Address:    AddressOf(key),
			PrivateKey: PrivateKeyToHex(key),
		}, nil
	}
	return nil, apperr.New(apperr.KeyGenerationError, "createAddress", "no valid scalar after %d draws", maxKeyAttempts)
}

// PrivateKeyToHex renders the scalar as unpadded lowercase hex.
func PrivateKeyToHex(key *ecdsa.PrivateKey) string {
	return key.D.Text(16)
}

// PrivateKeyFromHex parses a stored scalar. Leading zeros and a 0x prefix are optional.
func PrivateKeyFromHex(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	d, ok := new(big.Int).SetString(s, 16)
	if !ok || d.Sign() <= 0 || d.BitLen() > 256 {
		return nil, errors.New("malformed private key")
	}
	key, err := gethcrypto.ToECDSA(math.PaddedBigBytes(d, 32))
	if err != nil {
		return nil, errors.New("private key out of range")
	}
	return key, nil
}

// AddressOf returns the lowercase 0x address of key.
func AddressOf(key *ecdsa.PrivateKey) string {
	return strings.ToLower(gethcrypto.PubkeyToAddress(key.PublicKey).Hex())
}
