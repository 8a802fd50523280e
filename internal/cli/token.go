package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haggle-network/haggle/internal/auth"
	"github.com/haggle-network/haggle/internal/daemon"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token ACCOUNT_ID",
	Short: "Mint a bearer token for the trade API",
	Long:  `Mint a JWT for the given account, signed with [api].auth_secret.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.API.AuthSecret == "" {
		return fmt.Errorf("[api].auth_secret is not set; auth is disabled")
	}

	token, err := auth.GenerateToken(cfg.API.AuthSecret, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, token)
	return nil
}
