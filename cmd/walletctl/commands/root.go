package commands

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mpc-wallet/go-backend/internal/adapters/rpc"
	"mpc-wallet/go-backend/internal/console"
)

var (
	addr      string
	token     string
	tokenFile string
	timeout   time.Duration
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "walletctl",
		Short:        "Drive a local walletd over JSON-RPC",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&addr, "addr", "http://"+rpc.DefaultRPCAddr+"/rpc", "walletd JSON-RPC URL")
	root.PersistentFlags().StringVar(&token, "token", os.Getenv("MPCW_RPC_TOKEN"), "RPC token (default $MPCW_RPC_TOKEN)")
	root.PersistentFlags().StringVar(&tokenFile, "token-file", os.Getenv("MPCW_RPC_TOKEN_FILE"), "read the RPC token from a file")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 3*time.Minute, "per-call timeout")

	root.AddCommand(
		healthCmd(), statusCmd(), loginCmd(), logoutCmd(), userInfoCmd(),
		idTokenCmd(), parseIDTokenCmd(), lastCmd(),
		chainIDCmd(), accountsCmd(), balanceCmd(),
		signMessageCmd(), signTxCmd(), sendTxCmd(),
	)
	return root
}

func resolveToken() string {
	if strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token)
	}
	if tokenFile == "" {
		return ""
	}
	raw, err := os.ReadFile(tokenFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// call invokes method and prints the result the way the daemon's console
// renders it.
func call(cmd *cobra.Command, method string, args ...any) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	client, err := dial(ctx, addr, resolveToken())
	if err != nil {
		return err
	}
	defer client.Close()

	var result json.RawMessage
	if err := client.CallContext(ctx, &result, method, args...); err != nil {
		return err
	}
	console.New(cmd.OutOrStdout()).Show(result)
	return nil
}

// noArgCmd builds a command that maps 1:1 onto a parameterless method.
func noArgCmd(use, short, method string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, method)
		},
	}
}
