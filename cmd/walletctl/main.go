package main

import (
	"os"

	"mpc-wallet/go-backend/cmd/walletctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
