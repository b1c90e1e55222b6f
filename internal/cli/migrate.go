package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flicky/storefront-api/internal/config"
	"github.com/flicky/storefront-api/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := database.Connect(cmd.Context(), cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.Migrate(cmd.Context(), pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("schema up to date", "database", cfg.DB.Name)
	return nil
}
