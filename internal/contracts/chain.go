package contracts

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// SigningProvider grants chain reads and signing for one session. It is the
// only surface chain operations may use.
type SigningProvider interface {
	ChainID(ctx context.Context) (*big.Int, error)
	Accounts(ctx context.Context) ([]common.Address, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	SignTransaction(ctx context.Context, req TxRequest) (*SignedEnvelope, error)
	SendTransaction(ctx context.Context, req TxRequest) (*types.Receipt, error)
}

// TypedField is one entry of a legacy (v1) typed-data message.
type TypedField struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// TxRequest is a value transfer. Nil fee fields are filled by the provider;
// a nil ChainID means the chain the provider is connected to.
type TxRequest struct {
	From                 common.Address
	To                   common.Address
	Value                *big.Int
	MaxPriorityFeePerGas *big.Int
	MaxFeePerGas         *big.Int
	ChainID              *big.Int
}

// SignedEnvelope is a signed transaction that has not been broadcast.
type SignedEnvelope struct {
	Raw                  hexutil.Bytes  `json:"raw"`
	Hash                 common.Hash    `json:"hash"`
	From                 common.Address `json:"from"`
	To                   common.Address `json:"to"`
	Value                *hexutil.Big   `json:"value"`
	Nonce                hexutil.Uint64 `json:"nonce"`
	Gas                  hexutil.Uint64 `json:"gas"`
	MaxPriorityFeePerGas *hexutil.Big   `json:"maxPriorityFeePerGas"`
	MaxFeePerGas         *hexutil.Big   `json:"maxFeePerGas"`
	ChainID              *hexutil.Big   `json:"chainId"`
}
