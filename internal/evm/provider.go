// Package evm implements contracts.SigningProvider on top of go-ethereum:
// a locally held secp256k1 key signs, and an RPC endpoint serves reads and
// broadcasts.
package evm

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"mpc-wallet/go-backend/internal/contracts"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"
)

const DefaultReceiptPollInterval = time.Second

var (
	ErrNoKey              = errors.New("signing key is required")
	ErrNoRPCClient        = errors.New("rpc client is required")
	ErrUnknownAccount     = errors.New("account is not managed by this provider")
	ErrChainMismatch      = errors.New("requested chain id does not match the connected chain")
	ErrUnsupportedMethod  = errors.New("method is not supported by this provider")
	ErrInvalidRequestArgs = errors.New("invalid request params")
)

var _ contracts.SigningProvider = (*Provider)(nil)

type Provider struct {
	key          *ecdsa.PrivateKey
	address      common.Address
	rpc          *rpc.Client
	eth          *ethclient.Client
	pollInterval time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	chainID *big.Int
}

type Option func(*Provider)

func WithReceiptPollInterval(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvider binds key to an established RPC client. The provider does not
// own the client's lifetime unless Close is called.
func NewProvider(key *ecdsa.PrivateKey, client *rpc.Client, opts ...Option) (*Provider, error) {
	if key == nil {
		return nil, ErrNoKey
	}
	if client == nil {
		return nil, ErrNoRPCClient
	}
	p := &Provider{
		key:          key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		rpc:          client,
		eth:          ethclient.NewClient(client),
		pollInterval: DefaultReceiptPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "evm")
	return p, nil
}

// Dial connects to rpcTarget. HTTP targets connect lazily, so an unreachable
// node surfaces on the first call rather than here.
func Dial(ctx context.Context, rpcTarget string, key *ecdsa.PrivateKey, opts ...Option) (*Provider, error) {
	client, err := rpc.DialContext(ctx, strings.TrimSpace(rpcTarget))
	if err != nil {
		return nil, fmt.Errorf("dial rpc target: %w", err)
	}
	p, err := NewProvider(key, client, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	return p, nil
}

func (p *Provider) Close() {
	p.rpc.Close()
}

func (p *Provider) Address() common.Address {
	return p.address
}

func (p *Provider) ChainID(ctx context.Context) (*big.Int, error) {
	p.mu.Lock()
	cached := p.chainID
	p.mu.Unlock()
	if cached != nil {
		return new(big.Int).Set(cached), nil
	}
	id, err := p.eth.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.chainID = new(big.Int).Set(id)
	p.mu.Unlock()
	return id, nil
}

func (p *Provider) Accounts(context.Context) ([]common.Address, error) {
	return []common.Address{p.address}, nil
}

func (p *Provider) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return p.eth.BalanceAt(ctx, account, nil)
}

// Request serves a raw provider method. Account and typed-data signing
// methods are answered locally; everything else is forwarded to the node.
func (p *Provider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	switch method {
	case "eth_accounts", "eth_requestAccounts":
		return json.Marshal([]common.Address{p.address})
	case "eth_chainId":
		id, err := p.ChainID(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal((*hexutil.Big)(id))
	case "eth_signTypedData", "eth_signTypedData_v1":
		return p.signTypedDataRequest(params)
	case "eth_sign", "personal_sign", "eth_sendTransaction", "eth_signTransaction":
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	var out json.RawMessage
	if err := p.rpc.CallContext(ctx, &out, method, params...); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Provider) signTypedDataRequest(params []any) (json.RawMessage, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("%w: expected [typedData, address]", ErrInvalidRequestArgs)
	}
	fields, err := parseTypedFields(params[0])
	if err != nil {
		return nil, err
	}
	addr, ok := params[1].(string)
	if !ok || !common.IsHexAddress(addr) {
		return nil, fmt.Errorf("%w: address", ErrInvalidRequestArgs)
	}
	if common.HexToAddress(addr) != p.address {
		return nil, ErrUnknownAccount
	}
	sig, err := p.SignTypedDataV1(fields)
	if err != nil {
		return nil, err
	}
	return json.Marshal(hexutil.Encode(sig))
}

// SignTypedDataV1 signs legacy typed data and returns r||s||v with v in
// {27, 28}.
func (p *Provider) SignTypedDataV1(fields []contracts.TypedField) ([]byte, error) {
	hash, err := TypedDataV1Hash(fields)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash, p.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func (p *Provider) SignTransaction(ctx context.Context, req contracts.TxRequest) (*contracts.SignedEnvelope, error) {
	signed, chainID, err := p.buildSigned(ctx, req)
	if err != nil {
		return nil, err
	}
	return envelopeFor(signed, p.address, chainID)
}

// SendTransaction signs, broadcasts and blocks until the receipt is available
// or ctx ends.
func (p *Provider) SendTransaction(ctx context.Context, req contracts.TxRequest) (*types.Receipt, error) {
	signed, _, err := p.buildSigned(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := p.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}
	p.logger.Info("transaction broadcast", "operation", "send_transaction", "tx_hash", signed.Hash().Hex())
	return p.waitMined(ctx, signed.Hash())
}

func (p *Provider) buildSigned(ctx context.Context, req contracts.TxRequest) (*types.Transaction, *big.Int, error) {
	if req.From != p.address {
		return nil, nil, ErrUnknownAccount
	}
	chainID, err := p.ChainID(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("chain id: %w", err)
	}
	if req.ChainID != nil && req.ChainID.Cmp(chainID) != 0 {
		return nil, nil, fmt.Errorf("%w: requested %s, connected %s", ErrChainMismatch, req.ChainID, chainID)
	}
	nonce, err := p.eth.PendingNonceAt(ctx, p.address)
	if err != nil {
		return nil, nil, fmt.Errorf("nonce: %w", err)
	}
	tip := req.MaxPriorityFeePerGas
	if tip == nil {
		if tip, err = p.eth.SuggestGasTipCap(ctx); err != nil {
			return nil, nil, fmt.Errorf("gas tip: %w", err)
		}
	}
	feeCap := req.MaxFeePerGas
	if feeCap == nil {
		price, err := p.eth.SuggestGasPrice(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("gas price: %w", err)
		}
		feeCap = new(big.Int).Add(price, tip)
	}
	if feeCap.Cmp(tip) < 0 {
		feeCap = new(big.Int).Set(tip)
	}
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       params.TxGas,
		To:        &to,
		Value:     value,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), p.key)
	if err != nil {
		return nil, nil, fmt.Errorf("sign: %w", err)
	}
	return signed, chainID, nil
}

func (p *Provider) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := p.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("receipt: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func envelopeFor(tx *types.Transaction, from common.Address, chainID *big.Int) (*contracts.SignedEnvelope, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var to common.Address
	if tx.To() != nil {
		to = *tx.To()
	}
	return &contracts.SignedEnvelope{
		Raw:                  raw,
		Hash:                 tx.Hash(),
		From:                 from,
		To:                   to,
		Value:                (*hexutil.Big)(tx.Value()),
		Nonce:                hexutil.Uint64(tx.Nonce()),
		Gas:                  hexutil.Uint64(tx.Gas()),
		MaxPriorityFeePerGas: (*hexutil.Big)(tx.GasTipCap()),
		MaxFeePerGas:         (*hexutil.Big)(tx.GasFeeCap()),
		ChainID:              (*hexutil.Big)(new(big.Int).Set(chainID)),
	}, nil
}
