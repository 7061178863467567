package main

import (
	"fmt"

	"github.com/crewhire/onboarding-backend/internal/utils"
	"github.com/spf13/cobra"
)

var generateSecretsCmd = &cobra.Command{
	Use:   "generate-secrets",
	Short: "Print fresh JWT signing secrets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		accessSecret, refreshSecret, err := utils.GenerateJWTSecrets()
		if err != nil {
			return fmt.Errorf("failed to generate secrets: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "# Add these to your .env file or secret store. Never commit them.")
		fmt.Fprintf(out, "JWT_SECRET=%s\n", accessSecret)
		fmt.Fprintf(out, "JWT_REFRESH_SECRET=%s\n", refreshSecret)
		return nil
	},
}
