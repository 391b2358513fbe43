// Package walletfake provides in-memory identity and signing providers for
// tests. Each fake counts the calls it receives so tests can assert that no
// upstream call happened.
package walletfake

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"

	"mpc-wallet/go-backend/internal/contracts"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

var DefaultAccount = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

type SigningProvider struct {
	mu       sync.Mutex
	Chain    *big.Int
	Addrs    []common.Address
	Balance  *big.Int
	Err      error
	calls    int
	Requests []RawRequest
	Signed   []contracts.TxRequest
	Sent     []contracts.TxRequest
}

type RawRequest struct {
	Method string
	Params []any
}

func NewSigningProvider() *SigningProvider {
	return &SigningProvider{
		Chain:   big.NewInt(1),
		Addrs:   []common.Address{DefaultAccount},
		Balance: big.NewInt(42),
	}
}

func (p *SigningProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *SigningProvider) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.Err
}

func (p *SigningProvider) ChainID(context.Context) (*big.Int, error) {
	if err := p.begin(); err != nil {
		return nil, err
	}
	return new(big.Int).Set(p.Chain), nil
}

func (p *SigningProvider) Accounts(context.Context) ([]common.Address, error) {
	if err := p.begin(); err != nil {
		return nil, err
	}
	return append([]common.Address(nil), p.Addrs...), nil
}

func (p *SigningProvider) BalanceAt(_ context.Context, _ common.Address) (*big.Int, error) {
	if err := p.begin(); err != nil {
		return nil, err
	}
	return new(big.Int).Set(p.Balance), nil
}

func (p *SigningProvider) Request(_ context.Context, method string, params ...any) (json.RawMessage, error) {
	if err := p.begin(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.Requests = append(p.Requests, RawRequest{Method: method, Params: params})
	p.mu.Unlock()
	return json.RawMessage(`"0xsigned"`), nil
}

func (p *SigningProvider) SignTransaction(_ context.Context, req contracts.TxRequest) (*contracts.SignedEnvelope, error) {
	if err := p.begin(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.Signed = append(p.Signed, req)
	p.mu.Unlock()
	chainID := p.Chain
	if req.ChainID != nil {
		chainID = req.ChainID
	}
	return &contracts.SignedEnvelope{
		Raw:                  hexutil.Bytes{0x02},
		From:                 req.From,
		To:                   req.To,
		Value:                (*hexutil.Big)(new(big.Int).Set(req.Value)),
		Gas:                  21000,
		MaxPriorityFeePerGas: (*hexutil.Big)(req.MaxPriorityFeePerGas),
		MaxFeePerGas:         (*hexutil.Big)(req.MaxFeePerGas),
		ChainID:              (*hexutil.Big)(chainID),
	}, nil
}

func (p *SigningProvider) SendTransaction(_ context.Context, req contracts.TxRequest) (*types.Receipt, error) {
	if err := p.begin(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.Sent = append(p.Sent, req)
	p.mu.Unlock()
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: 21000, Logs: []*types.Log{}}, nil
}

var ErrNoCachedSession = errors.New("no cached session")

// IdentityProvider is a scripted identity provider. Errors set on the
// struct are returned by the matching operation.
type IdentityProvider struct {
	mu sync.Mutex

	Restored   contracts.SigningProvider
	Issued     contracts.SigningProvider
	Token      string
	User       contracts.UserInfo
	InitErr    error
	ConnectErr error
	LogoutErr  error

	// OnConnect runs after Connect has chosen its result, without the lock.
	OnConnect func()

	InitCalls    int
	ConnectCalls int
	LogoutCalls  int
	LastLogin    contracts.LoginParams
	seen         bool
}

func (p *IdentityProvider) Init(context.Context, contracts.AuthConfig) (contracts.SigningProvider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.InitCalls++
	if p.InitErr != nil {
		return nil, p.InitErr
	}
	if p.Restored != nil {
		p.seen = true
	}
	return p.Restored, nil
}

func (p *IdentityProvider) Connect(_ context.Context, params contracts.LoginParams) (contracts.SigningProvider, error) {
	provider, err := p.connect(params)
	p.mu.Lock()
	hook := p.OnConnect
	p.mu.Unlock()
	if hook != nil {
		hook()
	}
	return provider, err
}

func (p *IdentityProvider) connect(params contracts.LoginParams) (contracts.SigningProvider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls++
	p.LastLogin = params
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if params.LoginHint == "" && !params.Relogin && !p.seen {
		return nil, ErrNoCachedSession
	}
	p.seen = true
	return p.Issued, nil
}

func (p *IdentityProvider) AuthenticateUser(context.Context) (contracts.IdentityToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return contracts.IdentityToken{IDToken: p.Token}, nil
}

func (p *IdentityProvider) GetUserInfo(context.Context) (contracts.UserInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.User, nil
}

func (p *IdentityProvider) Logout(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LogoutCalls++
	return p.LogoutErr
}
