package commands

import "github.com/spf13/cobra"

func chainIDCmd() *cobra.Command {
	return noArgCmd("chain-id", "Show the connected chain id", "chain_get_chain_id")
}

func accountsCmd() *cobra.Command {
	return noArgCmd("accounts", "List wallet accounts", "chain_get_accounts")
}

func balanceCmd() *cobra.Command {
	return noArgCmd("balance", "Show the active account's balance in wei", "chain_get_balance")
}

func signMessageCmd() *cobra.Command {
	return noArgCmd("sign-message", "Sign the demo typed-data message", "chain_sign_message")
}

func signTxCmd() *cobra.Command {
	return noArgCmd("sign-tx", "Sign a self-transfer without broadcasting", "chain_sign_transaction")
}

func sendTxCmd() *cobra.Command {
	return noArgCmd("send-tx", "Send a self-transfer and wait for the receipt", "chain_send_transaction")
}
