package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/crewhire/onboarding-backend/internal/config"
	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/services"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run the expired-data cleanup once",
	Long:  "Delete expired OTPs, rate limit rows, approval tokens, refresh tokens and old audit logs, the same job the server runs hourly.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		logger := newLogger()
		cleanup := services.NewCleanupService(
			services.NewOTPService(db, config.OTPConfig{}),
			services.NewRateLimitService(db, services.DefaultRateLimitConfig()),
			services.NewAuditService(db, true),
			database.NewApprovalTokenRepository(db),
			database.NewRefreshTokenRepository(db),
			logger,
		)

		result, err := cleanup.RunOnce(cmd.Context())
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "otps: %d\n", result.OTPs)
		fmt.Fprintf(out, "rate_limits: %d\n", result.RateLimits)
		fmt.Fprintf(out, "approval_tokens: %d\n", result.ApprovalTokens)
		fmt.Fprintf(out, "refresh_tokens: %d\n", result.RefreshTokens)
		fmt.Fprintf(out, "audit_logs: %d\n", result.AuditLogs)
		return err
	},
}

// clearTables lists every table clear-data truncates
var clearTables = []string{
	"application_documents",
	"approval_tokens",
	"deactivation_requests",
	"onboarding_applications",
	"otp_verifications",
	"otp_rate_limits",
	"audit_logs",
	"staff_refresh_tokens",
}

var clearDataYes bool

var clearDataCmd = &cobra.Command{
	Use:   "clear-data",
	Short: "Truncate candidate and session data (staging only)",
	Long: `Truncate candidate applications, documents, tokens and audit data.
Staff accounts, outlets and roles are kept. Uploaded objects in S3 are not removed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearDataYes {
			fmt.Fprint(cmd.OutOrStdout(), "This deletes all candidate data. Type 'yes' to continue: ")
			answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if strings.TrimSpace(answer) != "yes" {
				return fmt.Errorf("aborted")
			}
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		truncateSQL := "TRUNCATE TABLE " + strings.Join(clearTables, ", ") + " RESTART IDENTITY CASCADE"
		if _, err := db.ExecContext(ctx, truncateSQL); err != nil {
			return fmt.Errorf("failed to truncate tables: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Post-clear row counts:")
		for _, t := range clearTables {
			var count int
			if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+t); err != nil {
				fmt.Fprintf(out, "  %s: error: %v\n", t, err)
				continue
			}
			fmt.Fprintf(out, "  %s: %d\n", t, count)
		}
		return nil
	},
}

func init() {
	clearDataCmd.Flags().BoolVar(&clearDataYes, "yes", false, "skip the confirmation prompt")
}
