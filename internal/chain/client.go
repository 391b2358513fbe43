// Package chain turns a SigningProvider into chain reads and writes. A Client
// is built fresh for every call and never keeps state of its own; every
// operation reports its outcome as a value.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"mpc-wallet/go-backend/internal/contracts"
	"mpc-wallet/go-backend/internal/outcome"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	DemoMessage       = "Hello MPC, bye bye seedphrase"
	SignTypedDataV1   = "eth_signTypedData"
	SignAmountEther   = "0.00001"
	SendAmountEther   = "0.001"
	DefaultSendChain  = 5
	maxPriorityFeeWei = 5_000_000_000
	maxFeeWei         = 6_000_000_000_000
)

var (
	ErrNoProvider = outcome.PreconditionError("provider not initialized yet")
	ErrNoAccounts = errors.New("provider returned no accounts")
)

type Client struct {
	provider  contracts.SigningProvider
	sendChain *big.Int
}

type Option func(*Client)

// WithSendChainID overrides the chain id stamped on broadcast transfers.
func WithSendChainID(id *big.Int) Option {
	return func(c *Client) {
		if id != nil && id.Sign() > 0 {
			c.sendChain = new(big.Int).Set(id)
		}
	}
}

// New wraps provider. A nil provider is a precondition failure.
func New(provider contracts.SigningProvider, opts ...Option) (*Client, error) {
	if provider == nil {
		return nil, ErrNoProvider
	}
	c := &Client{provider: provider, sendChain: big.NewInt(DefaultSendChain)}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) GetChainID(ctx context.Context) outcome.Result[string] {
	id, err := c.provider.ChainID(ctx)
	if err != nil {
		return outcome.Fail[string](fmt.Errorf("chain id: %w", err))
	}
	return outcome.Success(id.String())
}

// GetAccounts lists the provider's accounts; the first is the active one.
func (c *Client) GetAccounts(ctx context.Context) outcome.Result[[]string] {
	accounts, err := c.provider.Accounts(ctx)
	if err != nil {
		return outcome.Fail[[]string](fmt.Errorf("accounts: %w", err))
	}
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.Hex())
	}
	return outcome.Success(out)
}

// GetBalance returns the wei balance of the active account in base 10.
func (c *Client) GetBalance(ctx context.Context) outcome.Result[string] {
	account, err := c.activeAccount(ctx)
	if err != nil {
		return outcome.Fail[string](err)
	}
	balance, err := c.provider.BalanceAt(ctx, account)
	if err != nil {
		return outcome.Fail[string](fmt.Errorf("balance: %w", err))
	}
	return outcome.Success(balance.String())
}

// SignMessage signs the demo message as v1 typed data through a raw
// provider request; the provider has no plain personal-sign support.
func (c *Client) SignMessage(ctx context.Context) outcome.Result[string] {
	account, err := c.activeAccount(ctx)
	if err != nil {
		return outcome.Fail[string](err)
	}
	typed, err := json.Marshal([]contracts.TypedField{{Type: "string", Name: "message", Value: DemoMessage}})
	if err != nil {
		return outcome.Fail[string](err)
	}
	raw, err := c.provider.Request(ctx, SignTypedDataV1, string(typed), account.Hex())
	if err != nil {
		return outcome.Fail[string](fmt.Errorf("sign message: %w", err))
	}
	var signature string
	if err := json.Unmarshal(raw, &signature); err != nil {
		return outcome.Fail[string](fmt.Errorf("sign message: unexpected response %s", string(raw)))
	}
	return outcome.Success(signature)
}

// SignTransaction signs a self-transfer without broadcasting it.
func (c *Client) SignTransaction(ctx context.Context) outcome.Result[*contracts.SignedEnvelope] {
	account, err := c.activeAccount(ctx)
	if err != nil {
		return outcome.Fail[*contracts.SignedEnvelope](err)
	}
	value, err := ToWei(SignAmountEther)
	if err != nil {
		return outcome.Fail[*contracts.SignedEnvelope](err)
	}
	env, err := c.provider.SignTransaction(ctx, contracts.TxRequest{
		From:                 account,
		To:                   account,
		Value:                value,
		MaxPriorityFeePerGas: big.NewInt(maxPriorityFeeWei),
		MaxFeePerGas:         big.NewInt(maxFeeWei),
	})
	if err != nil {
		return outcome.Fail[*contracts.SignedEnvelope](fmt.Errorf("sign transaction: %w", err))
	}
	return outcome.Success(env)
}

// SendTransaction broadcasts a self-transfer on the send chain and waits for
// its receipt.
func (c *Client) SendTransaction(ctx context.Context) outcome.Result[*types.Receipt] {
	account, err := c.activeAccount(ctx)
	if err != nil {
		return outcome.Fail[*types.Receipt](err)
	}
	value, err := ToWei(SendAmountEther)
	if err != nil {
		return outcome.Fail[*types.Receipt](err)
	}
	receipt, err := c.provider.SendTransaction(ctx, contracts.TxRequest{
		From:    account,
		To:      account,
		Value:   value,
		ChainID: new(big.Int).Set(c.sendChain),
	})
	if err != nil {
		return outcome.Fail[*types.Receipt](fmt.Errorf("send transaction: %w", err))
	}
	return outcome.Success(receipt)
}

func (c *Client) activeAccount(ctx context.Context) (common.Address, error) {
	accounts, err := c.provider.Accounts(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("accounts: %w", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, ErrNoAccounts
	}
	return accounts[0], nil
}
