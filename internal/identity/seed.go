package identity

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"
)

const (
	hkdfInfoWallet     = "mpc-wallet/secp256k1/v1"
	maxDeriveAttempts  = 8
	mnemonicEntropyLen = 256
)

var (
	ErrInvalidMnemonic  = errors.New("invalid mnemonic")
	ErrMnemonicRequired = errors.New("mnemonic is required")
	ErrSeedNotAvailable = errors.New("seed is not available")
	ErrKeyDerivation    = errors.New("wallet key derivation failed")
)

// SeedManager holds the master seed every wallet key is derived from.
type SeedManager struct {
	mu   sync.RWMutex
	seed []byte
}

func NewSeedManager() *SeedManager {
	return &SeedManager{}
}

// Create generates a fresh 24-word mnemonic and loads it.
func (s *SeedManager) Create() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyLen)
	if err != nil {
		return "", err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", err
	}
	if err := s.Import(mnemonic); err != nil {
		return "", err
	}
	return mnemonic, nil
}

func (s *SeedManager) Import(mnemonic string) error {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if mnemonic == "" {
		return ErrMnemonicRequired
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, "")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed = seed
	return nil
}

// DeriveWalletKey maps (network, verifier, verifierID) to a secp256k1 key.
// The same inputs always yield the same key for a given seed.
func (s *SeedManager) DeriveWalletKey(network, verifier, verifierID string) (*ecdsa.PrivateKey, error) {
	s.mu.RLock()
	seed := append([]byte(nil), s.seed...)
	s.mu.RUnlock()
	if len(seed) == 0 {
		return nil, ErrSeedNotAvailable
	}
	defer zeroBytes(seed)

	info := strings.Join([]string{hkdfInfoWallet, network, verifier, verifierID}, "|")
	reader := hkdf.New(sha256.New, seed, nil, []byte(info))
	candidate := make([]byte, 32)
	defer zeroBytes(candidate)
	// Out-of-range scalars are skipped by reading further from the stream.
	for i := 0; i < maxDeriveAttempts; i++ {
		if _, err := io.ReadFull(reader, candidate); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
		}
		if key, err := crypto.ToECDSA(candidate); err == nil {
			return key, nil
		}
	}
	return nil, ErrKeyDerivation
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
