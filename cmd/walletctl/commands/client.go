package commands

import (
	"context"

	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"mpc-wallet/go-backend/internal/adapters/rpc"
)

func dial(ctx context.Context, url, rpcToken string) (*gethrpc.Client, error) {
	opts := []gethrpc.ClientOption{}
	if rpcToken != "" {
		opts = append(opts, gethrpc.WithHeader(rpc.TokenHeader, rpcToken))
	}
	return gethrpc.DialOptions(ctx, url, opts...)
}
