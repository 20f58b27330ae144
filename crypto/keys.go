package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the bech32 human-readable part of a rendered address.
type AddressPrefix string

const (
	// PrincipalPrefix is used for contributors, managers, reviewers and recipients.
	PrincipalPrefix AddressPrefix = "cf"
	// CampaignPrefix is used for campaign instance addresses.
	CampaignPrefix AddressPrefix = "cfc"
)

const addressLength = 20

var errEmptyAddress = errors.New("crypto: empty address")

// Format renders raw as a bech32 string under prefix.
func Format(prefix AddressPrefix, raw [20]byte) string {
	words, err := bech32.ConvertBits(raw[:], 8, 5, true)
	if err != nil {
		return ""
	}
	encoded, err := bech32.Encode(string(prefix), words)
	if err != nil {
		return ""
	}
	return encoded
}

// Decode splits a bech32 address into its prefix and 20-byte payload.
func Decode(s string) (AddressPrefix, [20]byte, error) {
	var raw [20]byte
	if s == "" {
		return "", raw, errEmptyAddress
	}
	hrp, words, err := bech32.Decode(s)
	if err != nil {
		return "", raw, fmt.Errorf("invalid bech32 string: %w", err)
	}
	payload, err := bech32.ConvertBits(words, 5, 8, false)
	if err != nil {
		return "", raw, fmt.Errorf("error converting bits: %w", err)
	}
	if len(payload) != addressLength {
		return "", raw, fmt.Errorf("address must be %d bytes long, got %d", addressLength, len(payload))
	}
	copy(raw[:], payload)
	return AddressPrefix(hrp), raw, nil
}

// ParsePrincipal decodes s and requires it to carry prefix.
func ParsePrincipal(prefix AddressPrefix, s string) ([20]byte, error) {
	got, raw, err := Decode(s)
	if err != nil {
		return [20]byte{}, err
	}
	if got != prefix {
		return [20]byte{}, fmt.Errorf("unexpected address prefix %q, want %q", got, prefix)
	}
	return raw, nil
}

// PrivateKey is a secp256k1 signing key controlling one principal.
type PrivateKey struct {
	*ecdsa.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the 32-byte scalar.
func (k *PrivateKey) Bytes() []byte {
	return ethcrypto.FromECDSA(k.PrivateKey)
}

// Principal derives the 20-byte principal the key controls, the last 20 bytes
// of the Keccak-256 hash of the public key.
func (k *PrivateKey) Principal() [20]byte {
	var raw [20]byte
	copy(raw[:], ethcrypto.PubkeyToAddress(k.PublicKey).Bytes())
	return raw
}

// String renders the controlled principal.
func (k *PrivateKey) String() string {
	return Format(PrincipalPrefix, k.Principal())
}
