package main

import (
	"fmt"

	"github.com/crewhire/onboarding-backend/migrations"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded schema migrations",
	Long: `Apply the embedded schema migrations in file-name order.

Every statement is idempotent, so running migrate against an existing
database only creates what is missing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := migrations.All()
		if err != nil {
			return fmt.Errorf("failed to load migrations: %w", err)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		logger := newLogger()
		for _, m := range list {
			if _, err := db.ExecContext(cmd.Context(), m.SQL); err != nil {
				return fmt.Errorf("migration %s failed: %w", m.Name, err)
			}
			logger.WithField("migration", m.Name).Info("Migration applied")
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", m.Name)
		}
		return nil
	},
}
