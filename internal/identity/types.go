package identity

import (
	"time"

	"mpc-wallet/go-backend/internal/contracts"
)

const (
	seedRecordName    = "seed"
	sessionRecordName = "session"
)

type seedRecord struct {
	Mnemonic  string    `json:"mnemonic"`
	CreatedAt time.Time `json:"created_at"`
}

// persistedSession is what survives a restart. The wallet key is not stored;
// it is derived again from the seed.
type persistedSession struct {
	Network    string             `json:"network"`
	Verifier   string             `json:"verifier"`
	VerifierID string             `json:"verifier_id"`
	User       contracts.UserInfo `json:"user"`
	CreatedAt  time.Time          `json:"created_at"`
}
