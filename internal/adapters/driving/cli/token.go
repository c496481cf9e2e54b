package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-tube/internal/adapters/driven/auth"
)

var (
	tokenScope string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token [subject]",
	Short: "Mint a bearer token for the API",
	Long: `Signs an HS256 token with JWT_SECRET. The API only checks tokens when
JWT_SECRET is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenScope, "scope", "", "scope claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if services == nil || services.Auth == nil {
		return errors.New("JWT_SECRET is not set")
	}
	if tokenTTL <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", tokenTTL)
	}

	token, err := services.Auth.GenerateToken(auth.NewClaims(args[0], tokenScope, tokenTTL))
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	cmd.Println(token)
	return nil
}
