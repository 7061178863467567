// Command onboardctl is the operator CLI for the onboarding backend.
package main

import (
	"fmt"
	"os"

	"github.com/crewhire/onboarding-backend/internal/config"
	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	databaseURL string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "onboardctl",
	Short: "Operator tooling for the crew onboarding backend",
	Long: `Operator tooling for the crew onboarding backend.

Commands that touch the database read DATABASE_URL (a .env file in the
working directory is loaded first) unless --database-url is given.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(createAdminCmd, generateSecretsCmd, migrateCmd, cleanupCmd, clearDataCmd, resumeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stderr)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// openDB connects with a small pool without loading the full server config
func openDB() (*database.PostgresDB, error) {
	url := databaseURL
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set and --database-url was not provided")
	}

	return database.NewConnection(config.DatabaseConfig{
		URL:                url,
		MaxConnections:     5,
		MaxIdleConnections: 2,
	})
}
