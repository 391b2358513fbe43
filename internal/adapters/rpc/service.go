package rpc

import (
	"context"

	"mpc-wallet/go-backend/internal/contracts"
	"mpc-wallet/go-backend/internal/idtoken"
	"mpc-wallet/go-backend/internal/outcome"
	"mpc-wallet/go-backend/internal/session"

	"github.com/ethereum/go-ethereum/core/types"
)

// WalletService is the use-case surface the RPC methods call into.
type WalletService interface {
	Status() session.Session
	Login(ctx context.Context, relogin bool, loginHint string) outcome.Result[session.Session]
	Logout(ctx context.Context) outcome.Result[session.Session]
	UserInfo(ctx context.Context) outcome.Result[contracts.UserInfo]
	IDToken(ctx context.Context) outcome.Result[contracts.IdentityToken]
	ParseIDToken(ctx context.Context) outcome.Result[idtoken.Claims]
	ChainID(ctx context.Context) outcome.Result[string]
	Accounts(ctx context.Context) outcome.Result[[]string]
	Balance(ctx context.Context) outcome.Result[string]
	SignMessage(ctx context.Context) outcome.Result[string]
	SignTransaction(ctx context.Context) outcome.Result[*contracts.SignedEnvelope]
	SendTransaction(ctx context.Context) outcome.Result[*types.Receipt]
	LastDisplay() string
}
