package commands

import (
	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	return noArgCmd("health", "Check that walletd answers", "health_check")
}

func statusCmd() *cobra.Command {
	return noArgCmd("status", "Show the session state", "session_status")
}

func loginCmd() *cobra.Command {
	var (
		hint    string
		relogin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a JWT login hint, or reuse the cached session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, "session_login", relogin, hint)
		},
	}
	cmd.Flags().StringVar(&hint, "hint", "", "JWT issued by the configured login tenant")
	cmd.Flags().BoolVar(&relogin, "relogin", true, "reuse the cached identity when no hint is given")
	return cmd
}

func logoutCmd() *cobra.Command {
	return noArgCmd("logout", "End the session", "session_logout")
}

func userInfoCmd() *cobra.Command {
	return noArgCmd("user-info", "Show the logged-in user", "session_user_info")
}

func idTokenCmd() *cobra.Command {
	return noArgCmd("id-token", "Issue an identity token", "session_id_token")
}

func parseIDTokenCmd() *cobra.Command {
	return noArgCmd("parse-id-token", "Issue an identity token and show its claims", "session_parse_id_token")
}

func lastCmd() *cobra.Command {
	return noArgCmd("last", "Show the daemon console's last output", "console_last")
}
