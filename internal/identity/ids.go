package identity

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58/base58"
	"golang.org/x/crypto/blake2b"
)

const sessionIDPrefix = "mpc1"

// BuildSessionID names a wallet session after its public key.
func BuildSessionID(pub *ecdsa.PublicKey) string {
	if pub == nil {
		return ""
	}
	h := blake2b.Sum256(crypto.FromECDSAPub(pub))
	return sessionIDPrefix + base58.Encode(h[:])
}
