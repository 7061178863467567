package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/internal/services"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var adminFlags struct {
	email    string
	name     string
	password string
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create a super_admin staff account",
	Long: `Create a super_admin staff account.

The password is read from --password or, preferably, from the
ONBOARDCTL_ADMIN_PASSWORD environment variable so it stays out of shell history.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := adminFlags.password
		if password == "" {
			password = os.Getenv("ONBOARDCTL_ADMIN_PASSWORD")
		}
		if len(password) < 8 {
			return fmt.Errorf("password must be at least 8 characters")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		staff := services.NewStaffService(
			database.NewUserRepository(db),
			database.NewRefreshTokenRepository(db),
			bcrypt.DefaultCost,
		)
		user, err := staff.CreateUser(cmd.Context(), models.CreateUserRequest{
			Email:    strings.TrimSpace(adminFlags.email),
			Password: password,
			FullName: strings.TrimSpace(adminFlags.name),
			Role:     models.RoleSuperAdmin,
		}, nil)
		if err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created super_admin %s (%s)\n", user.Email, user.ID)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminFlags.email, "email", "", "login email")
	createAdminCmd.Flags().StringVar(&adminFlags.name, "name", "", "full name")
	createAdminCmd.Flags().StringVar(&adminFlags.password, "password", "", "password (defaults to $ONBOARDCTL_ADMIN_PASSWORD)")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("name")
}
